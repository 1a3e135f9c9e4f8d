// Package assets attaches stock media candidates to blocks. The Reconciler
// persists candidate sets; the Matcher finds and ranks them.
package assets

import (
	"context"
	"fmt"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/models"
	"github.com/bobarin/photoscript/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mode selects how Reconcile treats a block's existing links.
type Mode int

const (
	// ModeClearExisting replaces the block's candidate set.
	ModeClearExisting Mode = iota
	// ModeAdditive keeps existing links and the existing primary.
	ModeAdditive
)

func (m Mode) String() string {
	if m == ModeAdditive {
		return "additive"
	}
	return "clear_existing"
}

// Reconciler works inside the caller's unit of work. It never changes the
// block's status; callers apply the matching transition.
type Reconciler struct {
	log *zap.Logger
}

func NewReconciler(log *zap.Logger) *Reconciler {
	return &Reconciler{log: log.Named("reconciler")}
}

// Reconcile merges candidates into the block's links. Candidates are taken
// in the given order; the first newly linked one becomes the AUTO primary
// when the block has no primary. It returns the links it created.
func (r *Reconciler) Reconcile(ctx context.Context, tx store.AssetRepo, blockID uuid.UUID, candidates []models.Candidate, mode Mode) ([]models.BlockAsset, error) {
	linked := map[uuid.UUID]bool{}
	hasPrimary := false

	switch mode {
	case ModeClearExisting:
		if _, err := tx.DeleteBlockAssets(ctx, blockID); err != nil {
			return nil, err
		}
	case ModeAdditive:
		existing, err := tx.ListBlockAssets(ctx, blockID)
		if err != nil {
			return nil, err
		}
		for _, link := range existing {
			linked[link.AssetID] = true
			hasPrimary = hasPrimary || link.IsPrimary
		}
	}

	created := make([]models.BlockAsset, 0, len(candidates))
	for _, c := range candidates {
		asset, err := r.resolveAsset(ctx, tx, c)
		if err != nil {
			return nil, err
		}
		if linked[asset.ID] {
			continue
		}

		link := models.BlockAsset{
			ID:        uuid.New(),
			BlockID:   blockID,
			AssetID:   asset.ID,
			Score:     c.Score,
			IsPrimary: !hasPrimary,
			ChosenBy:  models.ChosenByAuto,
		}
		if err := tx.CreateBlockAsset(ctx, &link); err != nil {
			return nil, err
		}
		link.Asset = asset
		linked[asset.ID] = true
		hasPrimary = true
		created = append(created, link)
	}

	r.log.Debug("reconciled block assets",
		zap.String("block_id", blockID.String()),
		zap.Stringer("mode", mode),
		zap.Int("candidates", len(candidates)),
		zap.Int("linked", len(created)),
	)
	return created, nil
}

// resolveAsset returns the stored asset for the candidate's source URL,
// creating it on first sight.
func (r *Reconciler) resolveAsset(ctx context.Context, tx store.AssetRepo, c models.Candidate) (*models.Asset, error) {
	if c.SourceURL == "" {
		return nil, fmt.Errorf("candidate from %s has no source url", c.Provider)
	}
	asset, err := tx.GetAssetBySourceURL(ctx, c.SourceURL)
	if err == nil {
		return asset, nil
	}
	if !store.IsNotFound(err) {
		return nil, err
	}
	asset = c.ToAsset()
	if err := tx.CreateAsset(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// Clear removes every candidate link of the block.
func (r *Reconciler) Clear(ctx context.Context, tx store.AssetRepo, blockID uuid.UUID) (int64, error) {
	return tx.DeleteBlockAssets(ctx, blockID)
}

// SetPrimary makes assetID the block's primary, chosen by the user. The
// previous primary reverts to a plain AUTO candidate.
func (r *Reconciler) SetPrimary(ctx context.Context, tx store.AssetRepo, blockID, assetID uuid.UUID) (*models.BlockAsset, error) {
	target, err := tx.GetBlockAsset(ctx, blockID, assetID)
	if store.IsNotFound(err) {
		return nil, apperr.AssetNotFound(blockID, assetID)
	}
	if err != nil {
		return nil, err
	}

	links, err := tx.ListBlockAssets(ctx, blockID)
	if err != nil {
		return nil, err
	}
	for i := range links {
		link := &links[i]
		if !link.IsPrimary || link.ID == target.ID {
			continue
		}
		link.IsPrimary = false
		link.ChosenBy = models.ChosenByAuto
		if err := tx.UpdateBlockAsset(ctx, link); err != nil {
			return nil, err
		}
	}

	target.IsPrimary = true
	target.ChosenBy = models.ChosenByUser
	if err := tx.UpdateBlockAsset(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}
