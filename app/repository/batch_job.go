package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var ErrBatchJobNotFound = errors.New("batch job not found")

type BatchJobRepository struct {
	db DBTX
}

func NewBatchJobRepository(db DBTX) *BatchJobRepository {
	return &BatchJobRepository{db: db}
}

func (r *BatchJobRepository) Create(ctx context.Context, job *entity.BatchJob) error {
	query := `
		INSERT INTO batch_jobs (batch_id, name, status, total_units, succeeded_units, failed_units, created_at, updated_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		job.BatchID,
		job.Name,
		job.Status,
		job.TotalUnits,
		job.SucceededUnits,
		job.FailedUnits,
		job.CreatedAt,
		job.UpdatedAt,
		nullableTimeValue(job.FinishedAt),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	job.ID = uint64(id)
	return nil
}

func (r *BatchJobRepository) Update(ctx context.Context, job *entity.BatchJob) error {
	query := `
		UPDATE batch_jobs SET
			status = ?,
			total_units = ?,
			succeeded_units = ?,
			failed_units = ?,
			updated_at = ?,
			finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.TotalUnits,
		job.SucceededUnits,
		job.FailedUnits,
		job.UpdatedAt,
		nullableTimeValue(job.FinishedAt),
		job.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBatchJobNotFound
	}
	return nil
}

func (r *BatchJobRepository) FindByBatchID(ctx context.Context, batchID string) (*entity.BatchJob, error) {
	query := `
		SELECT id, batch_id, name, status, total_units, succeeded_units, failed_units, created_at, updated_at, finished_at
		FROM batch_jobs
		WHERE batch_id = ?
	`

	job := &entity.BatchJob{}
	var finishedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, batchID).Scan(
		&job.ID,
		&job.BatchID,
		&job.Name,
		&job.Status,
		&job.TotalUnits,
		&job.SucceededUnits,
		&job.FailedUnits,
		&job.CreatedAt,
		&job.UpdatedAt,
		&finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job.FinishedAt = timePtrFromNull(finishedAt)
	return job, nil
}

func (r *BatchJobRepository) CreateUnit(ctx context.Context, unit *entity.BatchUnit) error {
	query := `
		INSERT INTO batch_units (batch_id, target_ref, succeeded, last_error, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		unit.BatchID,
		unit.TargetRef,
		unit.Succeeded,
		nullableStringValue(unit.LastError),
		unit.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	unit.ID = uint64(id)
	return nil
}
