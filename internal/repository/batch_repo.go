package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dstam/smart-import/internal/domain/entity"
	"github.com/dstam/smart-import/pkg/database"
)

// BatchJobRepository persists batch job progress so an interrupted run
// can resume from its cursor.
type BatchJobRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewBatchJobRepository creates a new batch job repository
func NewBatchJobRepository(db *database.DB, logger *zap.Logger) *BatchJobRepository {
	return &BatchJobRepository{
		db:     db,
		logger: logger,
	}
}

// GetRunning returns the running job of the given kind, or nil
func (r *BatchJobRepository) GetRunning(ctx context.Context, kind string) (*entity.BatchJob, error) {
	query := `
		SELECT id, kind, status, cursor, total, processed, results, started_at, updated_at, finished_at
		FROM batch_jobs
		WHERE kind = ? AND status = 'running'
		ORDER BY started_at DESC
		LIMIT 1
	`
	return r.scanJob(r.db.QueryRowContext(ctx, query, kind))
}

// GetByKind returns the job of the given kind regardless of status, or
// nil. Create keeps at most one row per kind.
func (r *BatchJobRepository) GetByKind(ctx context.Context, kind string) (*entity.BatchJob, error) {
	query := `
		SELECT id, kind, status, cursor, total, processed, results, started_at, updated_at, finished_at
		FROM batch_jobs
		WHERE kind = ?
		ORDER BY started_at DESC
		LIMIT 1
	`
	return r.scanJob(r.db.QueryRowContext(ctx, query, kind))
}

// Get returns a job by id, or nil
func (r *BatchJobRepository) Get(ctx context.Context, id string) (*entity.BatchJob, error) {
	query := `
		SELECT id, kind, status, cursor, total, processed, results, started_at, updated_at, finished_at
		FROM batch_jobs
		WHERE id = ?
	`
	return r.scanJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *BatchJobRepository) scanJob(row *sql.Row) (*entity.BatchJob, error) {
	var job entity.BatchJob
	var results string
	var finished sql.NullTime

	err := row.Scan(&job.ID, &job.Kind, &job.Status, &job.Cursor, &job.Total,
		&job.Processed, &results, &job.StartedAt, &job.UpdatedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch job: %w", err)
	}
	if finished.Valid {
		job.FinishedAt = &finished.Time
	}
	if err := json.Unmarshal([]byte(results), &job.Results); err != nil {
		r.logger.Warn("Corrupt batch results, resetting", zap.String("id", job.ID), zap.Error(err))
		job.Results = nil
	}
	return &job, nil
}

// Create inserts a new job. Any prior job of the same kind is removed
// first so the kind has at most one history entry.
func (r *BatchJobRepository) Create(ctx context.Context, job *entity.BatchJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.StartedAt = now
	job.UpdatedAt = now
	job.Status = entity.BatchRunning

	return r.db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM batch_jobs WHERE kind = ?", job.Kind); err != nil {
			return fmt.Errorf("failed to clear prior batch jobs: %w", err)
		}
		results, err := json.Marshal(job.Results)
		if err != nil {
			return fmt.Errorf("failed to marshal batch results: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO batch_jobs (id, kind, status, cursor, total, processed, results, started_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, job.ID, job.Kind, job.Status, job.Cursor, job.Total, job.Processed,
			string(results), job.StartedAt, job.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create batch job: %w", err)
		}
		return nil
	})
}

// Update persists the job's cursor and accumulated results
func (r *BatchJobRepository) Update(ctx context.Context, job *entity.BatchJob) error {
	job.UpdatedAt = time.Now().UTC()

	results, err := json.Marshal(job.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal batch results: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE batch_jobs
		SET status = ?, cursor = ?, total = ?, processed = ?, results = ?, updated_at = ?, finished_at = ?
		WHERE id = ?
	`, job.Status, job.Cursor, job.Total, job.Processed, string(results),
		job.UpdatedAt, job.FinishedAt, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update batch job: %w", err)
	}
	return nil
}
