// Package blocks implements the block lifecycle: single inserts, edits,
// splits, merges, deletes and reindexing. Every operation runs in one unit
// of work and never renumbers sibling blocks, except for an automatic
// reindex when the gap at an insertion point is exhausted.
package blocks

import (
	"context"
	"slices"
	"strings"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/assets"
	"github.com/bobarin/photoscript/internal/models"
	"github.com/bobarin/photoscript/internal/ordering"
	"github.com/bobarin/photoscript/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// SplitKeywordCutoff is how many keywords the first half of a split keeps.
	SplitKeywordCutoff = 3
	// MaxMergedKeywords caps the keyword union of a merge.
	MaxMergedKeywords = 10
	// MergeSeparator joins the texts of merged blocks.
	MergeSeparator = "\n\n"
)

// Draft is the content of a block created in bulk.
type Draft struct {
	Text     string
	Keywords []string
}

type Service struct {
	store      store.Store
	reconciler *assets.Reconciler
	log        *zap.Logger
}

func NewService(st store.Store, reconciler *assets.Reconciler, log *zap.Logger) *Service {
	return &Service{
		store:      st,
		reconciler: reconciler,
		log:        log.Named("blocks"),
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Block, error) {
	var block *models.Block
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		block, err = getBlock(ctx, tx, id)
		return err
	})
	return block, err
}

// List returns the project's blocks in reading order.
func (s *Service) List(ctx context.Context, projectID uuid.UUID) ([]models.Block, error) {
	var blocks []models.Block
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := requireProject(ctx, tx, projectID); err != nil {
			return err
		}
		var err error
		blocks, err = tx.ListBlocks(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []models.Block{}
	}
	return blocks, nil
}

// Create inserts a single DRAFT block. The request names at most one
// placement: an explicit order, a block to insert after, or the start of
// the project. Without one the block is appended.
func (s *Service) Create(ctx context.Context, projectID uuid.UUID, req models.CreateBlockRequest) (*models.Block, error) {
	placements := 0
	if req.Order != nil {
		placements++
	}
	if req.AfterBlockID != nil {
		placements++
	}
	if req.AtStart {
		placements++
	}
	if placements > 1 {
		return nil, apperr.Validation("only one of order, after_block_id and at_start may be set")
	}
	if req.Order != nil && !ordering.Valid(*req.Order) {
		return nil, apperr.Validation("order must be a positive number no greater than %v", ordering.MaxKey)
	}

	block := &models.Block{
		ID:        uuid.New(),
		ProjectID: projectID,
		Text:      strings.TrimSpace(req.Text),
		Keywords:  models.NormalizeKeywords(req.Keywords, 0),
		Status:    models.StatusForInsert(),
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := requireProject(ctx, tx, projectID); err != nil {
			return err
		}
		siblings, err := tx.ListBlocks(ctx, projectID)
		if err != nil {
			return err
		}

		switch {
		case req.Order != nil:
			for _, b := range siblings {
				if b.Order == *req.Order {
					return apperr.Validation("order %v is already used in this project", *req.Order)
				}
			}
			block.Order = *req.Order
		case req.AfterBlockID != nil:
			idx := indexOf(siblings, *req.AfterBlockID)
			if idx < 0 {
				return apperr.BlockNotFound(*req.AfterBlockID)
			}
			block.Order, err = s.keyAt(ctx, tx, siblings, idx+1)
		case req.AtStart:
			block.Order, err = s.keyAt(ctx, tx, siblings, 0)
		default:
			block.Order, err = s.keyAt(ctx, tx, siblings, len(siblings))
		}
		if err != nil {
			return err
		}
		return tx.CreateBlock(ctx, block)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("block created",
		zap.String("project_id", projectID.String()),
		zap.String("block_id", block.ID.String()),
		zap.Float64("order", block.Order),
	)
	return block, nil
}

// Update edits text and/or keywords. Any edit drops the block's candidates
// and resets it to DRAFT.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req models.UpdateBlockRequest) (*models.Block, error) {
	if req.Text == nil && req.Keywords == nil {
		return nil, apperr.Validation("text or keywords must be provided")
	}

	var block *models.Block
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		block, err = getBlock(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.Text != nil {
			block.Text = *req.Text
		}
		if req.Keywords != nil {
			block.Keywords = models.NormalizeKeywords(*req.Keywords, 0)
		}
		return s.invalidate(ctx, tx, block)
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// Split cuts the block's text at position, counted in characters. The
// first half keeps the block's identity and order; the second half is a
// new block placed right after it. Both become DRAFT without candidates.
func (s *Service) Split(ctx context.Context, id uuid.UUID, position int) (*models.Block, *models.Block, error) {
	var first, second *models.Block
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		block, err := getBlock(ctx, tx, id)
		if err != nil {
			return err
		}

		runes := []rune(block.Text)
		if position <= 0 || position >= len(runes) {
			return apperr.BlockSplit("position %d is outside the text (1..%d)", position, len(runes)-1)
		}
		head := strings.TrimSpace(string(runes[:position]))
		tail := strings.TrimSpace(string(runes[position:]))
		if head == "" || tail == "" {
			return apperr.BlockSplit("split at position %d would leave an empty block", position)
		}
		headKeywords, tailKeywords := partitionKeywords(block.Keywords)

		siblings, err := tx.ListBlocks(ctx, block.ProjectID)
		if err != nil {
			return err
		}
		idx := indexOf(siblings, id)
		if idx < 0 {
			return apperr.BlockNotFound(id)
		}
		key, err := s.keyAt(ctx, tx, siblings, idx+1)
		if err != nil {
			return err
		}

		first = &siblings[idx]
		first.Text = head
		first.Keywords = headKeywords
		if err := s.invalidate(ctx, tx, first); err != nil {
			return err
		}

		second = &models.Block{
			ID:        uuid.New(),
			ProjectID: block.ProjectID,
			Order:     key,
			Text:      tail,
			Keywords:  tailKeywords,
			Status:    models.StatusForInsert(),
		}
		return tx.CreateBlock(ctx, second)
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("block split",
		zap.String("block_id", first.ID.String()),
		zap.String("new_block_id", second.ID.String()),
		zap.Int("position", position),
	)
	return first, second, nil
}

// Merge joins adjacent blocks into the one with the lowest order. The
// others are deleted; no remaining block changes order.
func (s *Service) Merge(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) (*models.Block, error) {
	if len(ids) < 2 {
		return nil, apperr.BlockMerge("at least two blocks are required")
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, apperr.BlockMerge("block %s is listed twice", id)
		}
		seen[id] = true
	}

	var survivor *models.Block
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := requireProject(ctx, tx, projectID); err != nil {
			return err
		}
		siblings, err := tx.ListBlocks(ctx, projectID)
		if err != nil {
			return err
		}

		positions, err := mergePositions(siblings, ids)
		if err != nil {
			return err
		}

		survivor = &siblings[positions[0]]
		texts := make([]string, 0, len(positions))
		var keywords []string
		for _, pos := range positions {
			texts = append(texts, siblings[pos].Text)
			keywords = append(keywords, siblings[pos].Keywords...)
		}

		for _, pos := range positions[1:] {
			if err := tx.DeleteBlock(ctx, siblings[pos].ID); err != nil {
				return err
			}
		}
		survivor.Text = strings.Join(texts, MergeSeparator)
		survivor.Keywords = models.NormalizeKeywords(keywords, MaxMergedKeywords)
		return s.invalidate(ctx, tx, survivor)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("blocks merged",
		zap.String("project_id", projectID.String()),
		zap.String("block_id", survivor.ID.String()),
		zap.Int("merged", len(ids)),
	)
	return survivor, nil
}

// Delete removes the block and its candidate links.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := getBlock(ctx, tx, id); err != nil {
			return err
		}
		return tx.DeleteBlock(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("block deleted", zap.String("block_id", id.String()))
	return nil
}

// Reindex renumbers the project's blocks to Gap, 2*Gap, ... keeping their order.
func (s *Service) Reindex(ctx context.Context, projectID uuid.UUID) ([]models.Block, error) {
	var blocks []models.Block
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := requireProject(ctx, tx, projectID); err != nil {
			return err
		}
		var err error
		blocks, err = tx.ListBlocks(ctx, projectID)
		if err != nil {
			return err
		}
		return reindex(ctx, tx, blocks)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("project reindexed", zap.String("project_id", projectID.String()), zap.Int("blocks", len(blocks)))
	return blocks, nil
}

// SetPrimaryAsset makes assetID the block's primary and marks the block CUSTOM.
func (s *Service) SetPrimaryAsset(ctx context.Context, blockID, assetID uuid.UUID) (*models.BlockAsset, error) {
	var link *models.BlockAsset
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		block, err := getBlock(ctx, tx, blockID)
		if err != nil {
			return err
		}
		link, err = s.reconciler.SetPrimary(ctx, tx, blockID, assetID)
		if err != nil {
			return err
		}
		block.ChoosePrimary()
		return tx.UpdateBlock(ctx, block)
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// ListAssets returns the block's candidates by descending score.
func (s *Service) ListAssets(ctx context.Context, blockID uuid.UUID) ([]models.BlockAsset, error) {
	var links []models.BlockAsset
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := getBlock(ctx, tx, blockID); err != nil {
			return err
		}
		var err error
		links, err = tx.ListBlockAssets(ctx, blockID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []models.BlockAsset{}
	}
	return links, nil
}

// ReplaceAll swaps the project's blocks for drafts inside the caller's unit
// of work, keyed Gap, 2*Gap, ... Generated blocks start PENDING (or
// NO_RESULT without keywords); the rest start DRAFT.
func (s *Service) ReplaceAll(ctx context.Context, tx store.BlockRepo, projectID uuid.UUID, drafts []Draft, generated bool) ([]models.Block, error) {
	removed, err := tx.DeleteProjectBlocks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	keys := ordering.Sequence(len(drafts))
	created := make([]models.Block, 0, len(drafts))
	for i, d := range drafts {
		block := models.Block{
			ID:        uuid.New(),
			ProjectID: projectID,
			Order:     keys[i],
			Text:      d.Text,
			Keywords:  models.NormalizeKeywords(d.Keywords, 0),
			Status:    models.StatusForInsert(),
		}
		if generated {
			block.Status = models.StatusForGenerated(block.Keywords)
		}
		if err := tx.CreateBlock(ctx, &block); err != nil {
			return nil, err
		}
		created = append(created, block)
	}

	s.log.Debug("project blocks replaced",
		zap.String("project_id", projectID.String()),
		zap.Int64("removed", removed),
		zap.Int("created", len(created)),
	)
	return created, nil
}

// invalidate persists an edited block as DRAFT without candidates.
func (s *Service) invalidate(ctx context.Context, tx store.Tx, block *models.Block) error {
	if _, err := s.reconciler.Clear(ctx, tx, block.ID); err != nil {
		return err
	}
	block.Invalidate()
	return tx.UpdateBlock(ctx, block)
}

// keyAt returns an order key for a block inserted at index pos of the
// sorted siblings. When the neighbors are too close it reindexes the
// siblings first, updating the slice in place.
func (s *Service) keyAt(ctx context.Context, tx store.BlockRepo, siblings []models.Block, pos int) (float64, error) {
	low, high := neighbors(siblings, pos)
	if ordering.Exhausted(low, high) {
		s.log.Warn("order keys exhausted, reindexing project",
			zap.String("project_id", siblings[0].ProjectID.String()),
			zap.Int("blocks", len(siblings)),
		)
		if err := reindex(ctx, tx, siblings); err != nil {
			return 0, err
		}
		low, high = neighbors(siblings, pos)
	}
	return ordering.Between(low, high), nil
}

func neighbors(siblings []models.Block, pos int) (low, high *float64) {
	if pos > 0 {
		v := siblings[pos-1].Order
		low = &v
	}
	if pos < len(siblings) {
		v := siblings[pos].Order
		high = &v
	}
	return low, high
}

// reindex assigns fresh keys to blocks, which must be sorted, and persists
// the ones that changed.
func reindex(ctx context.Context, tx store.BlockRepo, blocks []models.Block) error {
	keys := ordering.Sequence(len(blocks))
	for i := range blocks {
		if blocks[i].Order == keys[i] {
			continue
		}
		blocks[i].Order = keys[i]
		if err := tx.UpdateBlock(ctx, &blocks[i]); err != nil {
			return err
		}
	}
	return nil
}

// mergePositions resolves ids to indexes in siblings, sorted, and checks
// that they form one contiguous run.
func mergePositions(siblings []models.Block, ids []uuid.UUID) ([]int, error) {
	index := make(map[uuid.UUID]int, len(siblings))
	for i, b := range siblings {
		index[b.ID] = i
	}

	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		pos, ok := index[id]
		if !ok {
			return nil, apperr.BlockMerge("block %s not found in project", id)
		}
		positions = append(positions, pos)
	}
	slices.Sort(positions)

	for i := 1; i < len(positions); i++ {
		if positions[i] != positions[i-1]+1 {
			return nil, apperr.BlockMerge("blocks must be adjacent")
		}
	}
	return positions, nil
}

func indexOf(blocks []models.Block, id uuid.UUID) int {
	for i, b := range blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func getBlock(ctx context.Context, tx store.BlockRepo, id uuid.UUID) (*models.Block, error) {
	block, err := tx.GetBlock(ctx, id)
	if store.IsNotFound(err) {
		return nil, apperr.BlockNotFound(id)
	}
	return block, err
}

func requireProject(ctx context.Context, tx store.ProjectRepo, id uuid.UUID) error {
	_, err := tx.GetProject(ctx, id)
	if store.IsNotFound(err) {
		return apperr.ProjectNotFound(id)
	}
	return err
}
