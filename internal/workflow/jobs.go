package workflow

import (
	"context"
	"fmt"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/models"
	"github.com/bobarin/photoscript/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AsyncEnabled reports whether jobs can be queued.
func (w *Workflow) AsyncEnabled() bool {
	return w.queue != nil
}

// SubmitMatch queues a Match run for the worker.
func (w *Workflow) SubmitMatch(ctx context.Context, userID, projectID uuid.UUID, req models.MatchProjectRequest) (*models.Job, error) {
	if _, err := w.matchOptions(req.MaxCandidates, req.VideoPriority); err != nil {
		return nil, err
	}
	req.Async = false
	return w.submit(ctx, userID, projectID, models.JobTypeMatch, req)
}

// SubmitGenerate queues a Generate run for the worker.
func (w *Workflow) SubmitGenerate(ctx context.Context, userID, projectID uuid.UUID, req models.GenerateProjectRequest) (*models.Job, error) {
	if _, err := w.matchOptions(req.MaxCandidates, req.VideoPriority); err != nil {
		return nil, err
	}
	req.Async = false
	return w.submit(ctx, userID, projectID, models.JobTypeGenerate, req)
}

func (w *Workflow) submit(ctx context.Context, userID, projectID uuid.UUID, jobType models.JobType, req any) (*models.Job, error) {
	if w.queue == nil {
		return nil, apperr.Validation("async processing is not configured")
	}
	payload, err := models.ToJSONB(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}

	job := &models.Job{
		ID:        uuid.New(),
		ProjectID: projectID,
		Type:      jobType,
		Status:    models.JobStatusQueued,
		Payload:   payload,
	}
	err = w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := ownedProject(ctx, tx, userID, projectID); err != nil {
			return err
		}
		return tx.CreateJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	if err := w.queue.Enqueue(ctx, job); err != nil {
		w.log.Error("failed to enqueue job", zap.String("job_id", job.ID.String()), zap.Error(err))
		msg := fmt.Sprintf("failed to enqueue job: %v", err)
		_ = w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.UpdateJobError(ctx, job.ID, msg)
		})
		return nil, apperr.ExternalService("job queue", err)
	}

	w.log.Info("job queued",
		zap.String("job_id", job.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("type", string(jobType)),
	)
	return job, nil
}

// RunJob executes a queued job's workflow and returns its result. The job
// was authorized when it was submitted.
func (w *Workflow) RunJob(ctx context.Context, job *models.Job) (any, error) {
	switch job.Type {
	case models.JobTypeMatch:
		var req models.MatchProjectRequest
		if err := job.Payload.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid match payload: %w", err)
		}
		return w.match(ctx, job.ProjectID, req.MaxCandidates, req.VideoPriority)
	case models.JobTypeGenerate:
		var req models.GenerateProjectRequest
		if err := job.Payload.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid generate payload: %w", err)
		}
		return w.generate(ctx, job.ProjectID, req)
	default:
		return nil, fmt.Errorf("unknown job type %q", job.Type)
	}
}

// GetJob returns a job of one of the user's projects.
func (w *Workflow) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*models.Job, error) {
	var job *models.Job
	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		job, err = tx.GetJob(ctx, jobID)
		if store.IsNotFound(err) {
			return apperr.JobNotFound(jobID)
		}
		if err != nil {
			return err
		}
		if _, err := ownedProject(ctx, tx, userID, job.ProjectID); err != nil {
			if apperr.Is(err, apperr.CodeProjectNotFound) {
				return apperr.JobNotFound(jobID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ProjectJobs lists the project's jobs, oldest first.
func (w *Workflow) ProjectJobs(ctx context.Context, userID, projectID uuid.UUID) ([]models.Job, error) {
	var jobs []models.Job
	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := ownedProject(ctx, tx, userID, projectID); err != nil {
			return err
		}
		var err error
		jobs, err = tx.GetProjectJobs(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	return jobs, nil
}
