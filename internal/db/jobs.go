package db

import (
	"context"
	"fmt"
	"time"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/google/uuid"
)

const jobColumns = `
	id, project_id, type, status, attempts, payload, result,
	started_at, finished_at, error_message, created_at
`

func scanJob(row rowScanner, job *models.Job) error {
	return row.Scan(
		&job.ID, &job.ProjectID, &job.Type, &job.Status, &job.Attempts,
		&job.Payload, &job.Result, &job.StartedAt, &job.FinishedAt,
		&job.ErrorMessage, &job.CreatedAt,
	)
}

func (t *Tx) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, project_id, type, status, attempts, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := t.tx.QueryRowContext(
		ctx, query,
		job.ID, job.ProjectID, job.Type, job.Status, job.Attempts, job.Payload,
	).Scan(&job.CreatedAt)
	return translate(err, "create job")
}

func (t *Tx) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job := &models.Job{}
	if err := scanJob(t.tx.QueryRowContext(ctx, query, id), job); err != nil {
		return nil, translate(err, fmt.Sprintf("get job %s", id))
	}
	return job, nil
}

func (t *Tx) GetProjectJobs(ctx context.Context, projectID uuid.UUID) ([]models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE project_id = $1 ORDER BY created_at`

	rows, err := t.tx.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		var job models.Job
		if err := scanJob(rows, &job); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// UpdateJobStatus stamps started_at (and counts an attempt) when a job
// starts running, and finished_at when it reaches a final status.
func (t *Tx) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	now := time.Now()
	query := `UPDATE jobs SET status = $1 WHERE id = $2`
	args := []any{status, id}

	switch status {
	case models.JobStatusRunning:
		query = `UPDATE jobs SET status = $1, started_at = $2, attempts = attempts + 1 WHERE id = $3`
		args = []any{status, now, id}
	case models.JobStatusSucceeded, models.JobStatusFailed:
		query = `UPDATE jobs SET status = $1, finished_at = $2 WHERE id = $3`
		args = []any{status, now, id}
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	return execAffected(res, err, fmt.Sprintf("update job %s", id))
}

func (t *Tx) UpdateJobResult(ctx context.Context, id uuid.UUID, result models.JSONB) error {
	query := `
		UPDATE jobs
		SET status = $1, result = $2, finished_at = $3
		WHERE id = $4
	`
	res, err := t.tx.ExecContext(ctx, query, models.JobStatusSucceeded, result, time.Now(), id)
	return execAffected(res, err, fmt.Sprintf("update job %s", id))
}

func (t *Tx) UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, finished_at = $3
		WHERE id = $4
	`
	res, err := t.tx.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, time.Now(), id)
	return execAffected(res, err, fmt.Sprintf("update job %s", id))
}
