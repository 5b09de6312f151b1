package driver

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrDriverNotConfigured = errors.New("billing driver is not configured")
	ErrCustomerNotLinked   = errors.New("user has no linked gateway customer")
)

// NotFoundError means the referenced remote entity no longer exists on the
// gateway. Not retried automatically; the local record has drifted.
type NotFoundError struct {
	Resource string
	Ref      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found on gateway", e.Resource, e.Ref)
}

// ValidationError means the gateway rejected a payload as structurally
// invalid. Retrying with identical input fails identically.
type ValidationError struct {
	Message string
	Param   string
}

func (e *ValidationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("gateway rejected request: %s (param: %s)", e.Message, e.Param)
	}
	return "gateway rejected request: " + e.Message
}

// PaymentError is a business-outcome failure: the charge itself was declined.
// Distinct from transport failures, which are RetryableError.
type PaymentError struct {
	Code        string
	DeclineCode string
	Message     string
}

func (e *PaymentError) Error() string {
	if e.DeclineCode != "" {
		return fmt.Sprintf("payment declined: %s (code: %s, decline: %s)", e.Message, e.Code, e.DeclineCode)
	}
	return fmt.Sprintf("payment failed: %s (code: %s)", e.Message, e.Code)
}

// RetryableError wraps transport and timeout failures. Callers own the
// retry/backoff policy; the driver never retries internally.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("gateway call %s failed: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// PaymentErrorData is the last-error snapshot owned by one driver instance.
type PaymentErrorData struct {
	Code        string
	DeclineCode string
	Message     string
	OccurredAt  time.Time
}

type errorTracker struct {
	mu   sync.Mutex
	last *PaymentErrorData
}

func (t *errorTracker) record(err *PaymentError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &PaymentErrorData{
		Code:        err.Code,
		DeclineCode: err.DeclineCode,
		Message:     err.Message,
		OccurredAt:  time.Now().UTC(),
	}
}

func (t *errorTracker) lastError() *PaymentErrorData {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return nil
	}
	snapshot := *t.last
	return &snapshot
}
