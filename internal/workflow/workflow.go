// Package workflow orchestrates project-level operations: project CRUD,
// script splitting, asset matching and async job submission. Block-level
// edits live in package blocks; this package checks ownership and drives
// the splitter, matcher and reconciler across a project's blocks.
package workflow

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/assets"
	"github.com/bobarin/photoscript/internal/blocks"
	"github.com/bobarin/photoscript/internal/models"
	"github.com/bobarin/photoscript/internal/services"
	"github.com/bobarin/photoscript/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultTitleLength = 50
	maxTitleLength     = 255

	defaultListLimit = 20
	maxListLimit     = 100

	maxKeywordsLimit   = 10
	maxCandidatesLimit = 30
)

// Options are the request defaults and limits taken from configuration.
type Options struct {
	MaxScriptLength       int
	DefaultMaxKeywords    int
	MaxCandidatesPerBlock int
	MatchConcurrency      int
}

// Enqueuer hands a queued job to the background worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type Workflow struct {
	store      store.Store
	blocks     *blocks.Service
	reconciler *assets.Reconciler
	matcher    *assets.Matcher
	splitter   services.ScriptSplitter
	queue      Enqueuer
	opts       Options
	log        *zap.Logger
}

// New builds a Workflow. queue may be nil, which disables async jobs.
func New(st store.Store, blockSvc *blocks.Service, reconciler *assets.Reconciler, matcher *assets.Matcher, splitter services.ScriptSplitter, queue Enqueuer, opts Options, log *zap.Logger) *Workflow {
	if opts.MatchConcurrency < 1 {
		opts.MatchConcurrency = 1
	}
	return &Workflow{
		store:      st,
		blocks:     blockSvc,
		reconciler: reconciler,
		matcher:    matcher,
		splitter:   splitter,
		queue:      queue,
		opts:       opts,
		log:        log.Named("workflow"),
	}
}

// CreateProject stores a new project for userID. The title defaults to the
// first characters of the script.
func (w *Workflow) CreateProject(ctx context.Context, userID uuid.UUID, req models.CreateProjectRequest) (*models.Project, error) {
	if err := w.validateScript(req.Script); err != nil {
		return nil, err
	}
	title, err := resolveTitle(req.Title, req.Script)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		ScriptRaw: req.Script,
	}
	err = w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateProject(ctx, project)
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("project created",
		zap.String("project_id", project.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("script_len", utf8.RuneCountInString(req.Script)),
	)
	return project, nil
}

func (w *Workflow) GetProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	var project *models.Project
	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		project, err = ownedProject(ctx, tx, userID, projectID)
		return err
	})
	return project, err
}

// ListProjects pages through the user's projects, newest first. A zero
// limit selects the default page size.
func (w *Workflow) ListProjects(ctx context.Context, userID uuid.UUID, limit, offset int) (*models.ListProjectsResponse, error) {
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit < 1 || limit > maxListLimit {
		return nil, apperr.Validation("limit must be between 1 and %d", maxListLimit)
	}
	if offset < 0 {
		return nil, apperr.Validation("offset must not be negative")
	}

	resp := &models.ListProjectsResponse{Limit: limit, Offset: offset}
	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		projects, err := tx.ListProjects(ctx, userID, limit, offset)
		if err != nil {
			return err
		}
		total, err := tx.CountProjects(ctx, userID)
		if err != nil {
			return err
		}
		if projects == nil {
			projects = []models.Project{}
		}
		resp.Projects = projects
		resp.Total = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// UpdateProject changes the title and/or raw script. Existing blocks are
// left alone; re-run Split to rebuild them.
func (w *Workflow) UpdateProject(ctx context.Context, userID, projectID uuid.UUID, req models.UpdateProjectRequest) (*models.Project, error) {
	if req.Title == nil && req.Script == nil {
		return nil, apperr.Validation("title or script must be provided")
	}
	if req.Script != nil {
		if err := w.validateScript(*req.Script); err != nil {
			return nil, err
		}
	}

	var project *models.Project
	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		project, err = ownedProject(ctx, tx, userID, projectID)
		if err != nil {
			return err
		}
		if req.Script != nil {
			project.ScriptRaw = *req.Script
		}
		if req.Title != nil {
			title, err := resolveTitle(req.Title, project.ScriptRaw)
			if err != nil {
				return err
			}
			project.Title = title
		}
		return tx.UpdateProject(ctx, project)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteProject removes the project with its blocks, links and jobs.
func (w *Workflow) DeleteProject(ctx context.Context, userID, projectID uuid.UUID) error {
	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := ownedProject(ctx, tx, userID, projectID); err != nil {
			return err
		}
		return tx.DeleteProject(ctx, projectID)
	})
	if err != nil {
		return err
	}
	w.log.Info("project deleted", zap.String("project_id", projectID.String()))
	return nil
}

// Detail returns the project with its blocks in order, each with its
// primary asset.
func (w *Workflow) Detail(ctx context.Context, userID, projectID uuid.UUID) (*models.ProjectDetail, error) {
	var detail *models.ProjectDetail
	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		project, err := ownedProject(ctx, tx, userID, projectID)
		if err != nil {
			return err
		}
		list, err := tx.ListBlocks(ctx, projectID)
		if err != nil {
			return err
		}
		primaries, err := tx.PrimaryAssets(ctx, projectID)
		if err != nil {
			return err
		}

		detail = &models.ProjectDetail{Project: *project, Blocks: make([]models.BlockWithPrimary, 0, len(list))}
		for _, b := range list {
			detail.Blocks = append(detail.Blocks, models.BlockWithPrimary{Block: b, PrimaryAsset: primaries[b.ID]})
		}
		return nil
	})
	return detail, err
}

// AuthorizeProject fails with ProjectNotFound unless userID owns the project.
func (w *Workflow) AuthorizeProject(ctx context.Context, userID, projectID uuid.UUID) error {
	return w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := ownedProject(ctx, tx, userID, projectID)
		return err
	})
}

// AuthorizeBlock fails with BlockNotFound unless userID owns the block's project.
func (w *Workflow) AuthorizeBlock(ctx context.Context, userID, blockID uuid.UUID) error {
	return w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := ownedBlock(ctx, tx, userID, blockID)
		return err
	})
}

func (w *Workflow) validateScript(script string) error {
	if strings.TrimSpace(script) == "" {
		return apperr.Validation("script must not be empty")
	}
	if n := utf8.RuneCountInString(script); w.opts.MaxScriptLength > 0 && n > w.opts.MaxScriptLength {
		return apperr.Validation("script is %d characters, the limit is %d", n, w.opts.MaxScriptLength)
	}
	return nil
}

func resolveTitle(title *string, script string) (string, error) {
	if title != nil {
		if t := strings.TrimSpace(*title); t != "" {
			if utf8.RuneCountInString(t) > maxTitleLength {
				return "", apperr.Validation("title must be at most %d characters", maxTitleLength)
			}
			return t, nil
		}
	}
	runes := []rune(strings.TrimSpace(script))
	if len(runes) > defaultTitleLength {
		runes = runes[:defaultTitleLength]
	}
	return strings.TrimSpace(string(runes)), nil
}

// ownedProject loads a project, reporting other users' projects as missing.
func ownedProject(ctx context.Context, tx store.ProjectRepo, userID, projectID uuid.UUID) (*models.Project, error) {
	project, err := tx.GetProject(ctx, projectID)
	if store.IsNotFound(err) {
		return nil, apperr.ProjectNotFound(projectID)
	}
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, apperr.ProjectNotFound(projectID)
	}
	return project, nil
}

func ownedBlock(ctx context.Context, tx store.Tx, userID, blockID uuid.UUID) (*models.Block, error) {
	block, err := tx.GetBlock(ctx, blockID)
	if store.IsNotFound(err) {
		return nil, apperr.BlockNotFound(blockID)
	}
	if err != nil {
		return nil, err
	}
	if _, err := ownedProject(ctx, tx, userID, block.ProjectID); err != nil {
		if apperr.Is(err, apperr.CodeProjectNotFound) {
			return nil, apperr.BlockNotFound(blockID)
		}
		return nil, err
	}
	return block, nil
}
