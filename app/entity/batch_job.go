package entity

import "time"

const (
	BatchJobStatusRunning   int32 = 1
	BatchJobStatusCompleted int32 = 10
)

// BatchJob is the aggregate accounting row for one named fan-out run.
// Unit failures are counted here, never escalated to the batch itself.
type BatchJob struct {
	ID uint64

	BatchID string
	Name    string

	Status         int32
	TotalUnits     int32
	SucceededUnits int32
	FailedUnits    int32

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

type BatchUnit struct {
	ID      uint64
	BatchID string

	TargetRef string
	Succeeded bool
	LastError *string

	CreatedAt time.Time
}
