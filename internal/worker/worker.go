package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/bobarin/photoscript/internal/queue"
	"github.com/bobarin/photoscript/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dequeueTimeout = 5 * time.Second
	errorPause     = time.Second
)

// Source yields queued job messages.
type Source interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Message, error)
}

// Runner executes a job and returns its result document.
type Runner interface {
	RunJob(ctx context.Context, job *models.Job) (any, error)
}

type Worker struct {
	store  store.Store
	source Source
	runner Runner
	log    *zap.Logger
}

func New(st store.Store, source Source, runner Runner, log *zap.Logger) *Worker {
	return &Worker{
		store:  st,
		source: source,
		runner: runner,
		log:    log.Named("worker"),
	}
}

// Start runs concurrency consumers until ctx is cancelled and waits for
// in-flight jobs to finish.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	w.log.Info("worker started", zap.Int("concurrency", concurrency))

	var g errgroup.Group
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			w.consume(ctx)
			return nil
		})
	}
	_ = g.Wait()

	w.log.Info("worker stopped")
}

func (w *Worker) consume(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := w.source.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error("failed to dequeue", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorPause):
			}
			continue
		}
		if msg == nil {
			continue
		}

		w.Process(ctx, msg)
	}
}

// Process runs the job a message points at and records the outcome.
// Messages for unknown or already finished jobs are dropped.
func (w *Worker) Process(ctx context.Context, msg *queue.Message) {
	log := w.log.With(
		zap.String("job_id", msg.ID.String()),
		zap.String("type", string(msg.Type)),
		zap.String("project_id", msg.ProjectID.String()),
	)

	var job *models.Job
	stale := false
	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		job, err = tx.GetJob(ctx, msg.ID)
		if err != nil {
			return err
		}
		if job.Status != models.JobStatusQueued {
			stale = true
			return nil
		}
		if err := tx.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning); err != nil {
			return err
		}
		job.Status = models.JobStatusRunning
		return nil
	})
	if store.IsNotFound(err) {
		log.Warn("dropping message for unknown job")
		return
	}
	if err != nil {
		log.Error("failed to start job", zap.Error(err))
		return
	}
	if stale {
		log.Warn("dropping message for job that is not queued", zap.String("status", string(job.Status)))
		return
	}

	log.Info("processing job")
	started := time.Now()

	result, runErr := w.runner.RunJob(ctx, job)
	var doc models.JSONB
	if runErr == nil {
		doc, runErr = models.ToJSONB(result)
		if runErr != nil {
			runErr = fmt.Errorf("failed to encode job result: %w", runErr)
		}
	}

	// Record the outcome even when shutdown cancelled the run.
	recordCtx := context.WithoutCancel(ctx)
	err = w.store.WithTx(recordCtx, func(ctx context.Context, tx store.Tx) error {
		if runErr != nil {
			return tx.UpdateJobError(ctx, job.ID, runErr.Error())
		}
		return tx.UpdateJobResult(ctx, job.ID, doc)
	})
	if err != nil {
		log.Error("failed to record job outcome", zap.Error(err))
	}

	if runErr != nil {
		log.Warn("job failed", zap.Error(runErr), zap.Duration("took", time.Since(started)))
		return
	}
	log.Info("job succeeded", zap.Duration("took", time.Since(started)))
}
