// Package store declares the persistence contract shared by the Postgres
// and in-memory backends. Every service operation runs inside a single
// unit of work obtained from Store.WithTx.
package store

import (
	"context"
	"errors"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned (wrapped) when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned (wrapped) when a unique constraint is violated.
var ErrConflict = errors.New("conflict")

// Store opens units of work. fn's changes are committed when it returns
// nil and rolled back otherwise, including on panic. Units of work must
// not be nested.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is a single unit of work.
type Tx interface {
	ProjectRepo
	BlockRepo
	AssetRepo
	UserRepo
	JobRepo
}

type ProjectRepo interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, error)
	CountProjects(ctx context.Context, userID uuid.UUID) (int, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	// DeleteProject removes the project with its blocks, links and jobs.
	DeleteProject(ctx context.Context, id uuid.UUID) error
}

// BlockRepo is the block store. ListBlocks returns blocks by ascending order.
type BlockRepo interface {
	CreateBlock(ctx context.Context, block *models.Block) error
	GetBlock(ctx context.Context, id uuid.UUID) (*models.Block, error)
	ListBlocks(ctx context.Context, projectID uuid.UUID) ([]models.Block, error)
	// UpdateBlock persists text, keywords, status and order.
	UpdateBlock(ctx context.Context, block *models.Block) error
	// DeleteBlock removes the block after its candidate links.
	DeleteBlock(ctx context.Context, id uuid.UUID) error
	// DeleteProjectBlocks removes every block of a project with its links.
	DeleteProjectBlocks(ctx context.Context, projectID uuid.UUID) (int64, error)
}

type AssetRepo interface {
	GetAssetBySourceURL(ctx context.Context, sourceURL string) (*models.Asset, error)
	// CreateAsset inserts asset, or loads the existing row with the same
	// source URL into it.
	CreateAsset(ctx context.Context, asset *models.Asset) error

	CreateBlockAsset(ctx context.Context, link *models.BlockAsset) error
	GetBlockAsset(ctx context.Context, blockID, assetID uuid.UUID) (*models.BlockAsset, error)
	// ListBlockAssets returns a block's links by descending score, with Asset populated.
	ListBlockAssets(ctx context.Context, blockID uuid.UUID) ([]models.BlockAsset, error)
	// UpdateBlockAsset persists is_primary and chosen_by.
	UpdateBlockAsset(ctx context.Context, link *models.BlockAsset) error
	DeleteBlockAssets(ctx context.Context, blockID uuid.UUID) (int64, error)
	// PrimaryAssets maps block id to primary asset for a project's blocks.
	PrimaryAssets(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]*models.Asset, error)
}

type UserRepo interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByNickname(ctx context.Context, nickname string) (*models.User, error)
}

type JobRepo interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetProjectJobs(ctx context.Context, projectID uuid.UUID) ([]models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error
	UpdateJobResult(ctx context.Context, id uuid.UUID, result models.JSONB) error
	UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
