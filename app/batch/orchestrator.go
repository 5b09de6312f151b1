package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
)

var (
	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_batch_units_total",
		Help: "Batch units attempted, partitioned by batch name and outcome.",
	}, []string{"batch", "result"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_batch_duration_seconds",
		Help:    "Wall time of whole batch runs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"batch"})
)

// Unit is one independent per-target operation within a named batch.
// Units share no mutable state and carry no ordering guarantee.
type Unit struct {
	Ref string
	Run func(ctx context.Context) error
}

// Result is the aggregate accounting of one batch run. Per-unit failures are
// recorded here, never escalated to the batch itself.
type Result struct {
	BatchID   string
	Name      string
	Total     int32
	Succeeded int32
	Failed    int32

	UnitErrors map[string]string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Orchestrator fans independent units out over a worker pool. The batch
// completes when every unit has been attempted, success or failure.
type Orchestrator struct {
	workers int
	logger  logrus.FieldLogger
}

func NewOrchestrator(workers int) *Orchestrator {
	if workers <= 0 {
		workers = 4
	}
	return &Orchestrator{
		workers: workers,
		logger:  factory.NewModuleLogger("batch-orchestrator"),
	}
}

func (o *Orchestrator) Run(ctx context.Context, name string, units []Unit) *Result {
	result := &Result{
		BatchID:    uuid.NewString(),
		Name:       name,
		Total:      int32(len(units)),
		UnitErrors: map[string]string{},
		StartedAt:  time.Now().UTC(),
	}

	var succeeded, failed atomic.Int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	jobs := make(chan Unit)
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range jobs {
				if err := o.runUnit(ctx, unit); err != nil {
					failed.Add(1)
					unitsTotal.WithLabelValues(name, "failed").Inc()
					mu.Lock()
					result.UnitErrors[unit.Ref] = err.Error()
					mu.Unlock()
					o.logger.WithError(err).
						WithField("batch", name).
						WithField("unit", unit.Ref).
						Warn("batch unit failed")
					continue
				}
				succeeded.Add(1)
				unitsTotal.WithLabelValues(name, "succeeded").Inc()
			}
		}()
	}

	for _, unit := range units {
		jobs <- unit
	}
	close(jobs)
	wg.Wait()

	result.Succeeded = succeeded.Load()
	result.Failed = failed.Load()
	result.FinishedAt = time.Now().UTC()
	batchDuration.WithLabelValues(name).Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	o.logger.WithField("batch", name).
		WithField("batch_id", result.BatchID).
		WithField("total", result.Total).
		WithField("succeeded", result.Succeeded).
		WithField("failed", result.Failed).
		Info("batch_completed")

	return result
}

// runUnit confines a unit's panic to that unit so siblings keep running.
func (o *Orchestrator) runUnit(ctx context.Context, unit Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit panicked: %v", r)
		}
	}()
	return unit.Run(ctx)
}
