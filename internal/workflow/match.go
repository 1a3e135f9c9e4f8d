package workflow

import (
	"context"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/assets"
	"github.com/bobarin/photoscript/internal/blocks"
	"github.com/bobarin/photoscript/internal/models"
	"github.com/bobarin/photoscript/internal/services"
	"github.com/bobarin/photoscript/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Split replaces the project's blocks with DRAFT blocks from the splitter.
// The splitter runs before anything is changed, so a failure keeps the
// existing blocks.
func (w *Workflow) Split(ctx context.Context, userID, projectID uuid.UUID, req models.SplitProjectRequest) (*models.SplitResult, error) {
	if err := w.AuthorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return w.split(ctx, projectID, req.MaxKeywords)
}

func (w *Workflow) split(ctx context.Context, projectID uuid.UUID, maxKeywords *int) (*models.SplitResult, error) {
	created, err := w.splitAndReplace(ctx, projectID, maxKeywords, false)
	if err != nil {
		return nil, err
	}
	return &models.SplitResult{BlocksCount: len(created), Blocks: created}, nil
}

// Match re-matches every block of the project in clear-existing mode. A
// failed search only affects its own block.
func (w *Workflow) Match(ctx context.Context, userID, projectID uuid.UUID, req models.MatchProjectRequest) (*models.MatchResult, error) {
	if err := w.AuthorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return w.match(ctx, projectID, req.MaxCandidates, req.VideoPriority)
}

func (w *Workflow) match(ctx context.Context, projectID uuid.UUID, maxCandidates *int, videoPriority *bool) (*models.MatchResult, error) {
	opts, err := w.matchOptions(maxCandidates, videoPriority)
	if err != nil {
		return nil, err
	}

	var list []models.Block
	err = w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		list, err = tx.ListBlocks(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.Validation("project has no blocks, split the script first")
	}

	return w.matchBlocks(ctx, projectID, list, opts)
}

// Generate splits the script into PENDING blocks and matches them.
func (w *Workflow) Generate(ctx context.Context, userID, projectID uuid.UUID, req models.GenerateProjectRequest) (*models.GenerateResult, error) {
	if err := w.AuthorizeProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return w.generate(ctx, projectID, req)
}

func (w *Workflow) generate(ctx context.Context, projectID uuid.UUID, req models.GenerateProjectRequest) (*models.GenerateResult, error) {
	opts, err := w.matchOptions(req.MaxCandidates, req.VideoPriority)
	if err != nil {
		return nil, err
	}

	created, err := w.splitAndReplace(ctx, projectID, req.MaxKeywords, true)
	if err != nil {
		return nil, err
	}
	matched, err := w.matchBlocks(ctx, projectID, created, opts)
	if err != nil {
		return nil, err
	}

	result := &models.GenerateResult{MatchResult: *matched}
	err = w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		result.Blocks, err = tx.ListBlocks(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MatchBlock re-matches a single block in clear-existing mode.
func (w *Workflow) MatchBlock(ctx context.Context, userID, blockID uuid.UUID, req models.MatchProjectRequest) (*models.BlockOutcome, error) {
	opts, err := w.matchOptions(req.MaxCandidates, req.VideoPriority)
	if err != nil {
		return nil, err
	}

	var block *models.Block
	err = w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		block, err = ownedBlock(ctx, tx, userID, blockID)
		return err
	})
	if err != nil {
		return nil, err
	}

	outcome := w.matchBlock(ctx, *block, opts)
	return &outcome, nil
}

// SearchMore adds candidates for one extra keyword without touching the
// block's existing candidates, primary or keywords.
func (w *Workflow) SearchMore(ctx context.Context, userID, blockID uuid.UUID, req models.SearchMoreRequest) (*models.SearchMoreResult, error) {
	keyword := models.NormalizeKeywords([]string{req.Keyword}, 1)
	if len(keyword) == 0 {
		return nil, apperr.Validation("keyword must not be empty")
	}
	count := assets.DefaultMaxHits
	if req.Count != nil {
		if *req.Count < 1 || *req.Count > maxCandidatesLimit {
			return nil, apperr.Validation("count must be between 1 and %d", maxCandidatesLimit)
		}
		count = *req.Count
	}
	opts := assets.MatchOptions{MaxCandidates: count, VideoPriority: boolOr(req.VideoPriority, true)}

	if err := w.AuthorizeBlock(ctx, userID, blockID); err != nil {
		return nil, err
	}

	candidates, err := w.matcher.FindCandidates(ctx, keyword, opts)
	if err != nil {
		return nil, apperr.ExternalService("media search", err)
	}

	result := &models.SearchMoreResult{}
	err = w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		block, err := tx.GetBlock(ctx, blockID)
		if store.IsNotFound(err) {
			return apperr.BlockNotFound(blockID)
		}
		if err != nil {
			return err
		}
		added, err := w.reconciler.Reconcile(ctx, tx, blockID, candidates, assets.ModeAdditive)
		if err != nil {
			return err
		}
		links, err := tx.ListBlockAssets(ctx, blockID)
		if err != nil {
			return err
		}
		block.ApplyAdditiveMatch(len(links) > 0)
		if err := tx.UpdateBlock(ctx, block); err != nil {
			return err
		}
		result.Block = *block
		result.Added = added
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("search more",
		zap.String("block_id", blockID.String()),
		zap.String("keyword", keyword[0]),
		zap.Int("added", len(result.Added)),
	)
	return result, nil
}

// splitAndReplace calls the splitter and swaps the project's blocks for
// its output in one unit of work.
func (w *Workflow) splitAndReplace(ctx context.Context, projectID uuid.UUID, maxKeywords *int, generated bool) ([]models.Block, error) {
	n := w.opts.DefaultMaxKeywords
	if maxKeywords != nil {
		n = *maxKeywords
	}
	if n < 1 || n > maxKeywordsLimit {
		return nil, apperr.Validation("max_keywords must be between 1 and %d", maxKeywordsLimit)
	}

	var script string
	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		project, err := tx.GetProject(ctx, projectID)
		if store.IsNotFound(err) {
			return apperr.ProjectNotFound(projectID)
		}
		if err != nil {
			return err
		}
		script = project.ScriptRaw
		return nil
	})
	if err != nil {
		return nil, err
	}

	parts, err := w.splitter.ProcessScript(ctx, script, n)
	if err != nil {
		w.log.Warn("script splitting failed", zap.String("project_id", projectID.String()), zap.Error(err))
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.ScriptProcessing("script splitting failed", err)
		}
		return nil, err
	}

	drafts := make([]blocks.Draft, 0, len(parts))
	for _, p := range parts {
		drafts = append(drafts, draftFrom(p))
	}

	var created []models.Block
	err = w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			if store.IsNotFound(err) {
				return apperr.ProjectNotFound(projectID)
			}
			return err
		}
		var err error
		created, err = w.blocks.ReplaceAll(ctx, tx, projectID, drafts, generated)
		return err
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("project split",
		zap.String("project_id", projectID.String()),
		zap.Int("blocks", len(created)),
		zap.Bool("generated", generated),
	)
	return created, nil
}

// matchBlocks matches each block, up to MatchConcurrency at a time, and
// aggregates the outcomes in block order.
func (w *Workflow) matchBlocks(ctx context.Context, projectID uuid.UUID, list []models.Block, opts assets.MatchOptions) (*models.MatchResult, error) {
	outcomes := make([]models.BlockOutcome, len(list))

	var g errgroup.Group
	g.SetLimit(w.opts.MatchConcurrency)
	for i := range list {
		g.Go(func() error {
			outcomes[i] = w.matchBlock(ctx, list[i], opts)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &models.MatchResult{BlocksCount: len(list), Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Status == models.BlockStatusMatched {
			result.MatchedCount++
		}
	}

	w.log.Info("project matched",
		zap.String("project_id", projectID.String()),
		zap.Int("blocks", result.BlocksCount),
		zap.Int("matched", result.MatchedCount),
	)
	return result, nil
}

// matchBlock searches outside any transaction, then replaces the block's
// candidates and records MATCHED or NO_RESULT in one unit of work. Search
// failures count as no candidates.
func (w *Workflow) matchBlock(ctx context.Context, block models.Block, opts assets.MatchOptions) models.BlockOutcome {
	outcome := models.BlockOutcome{BlockID: block.ID, Status: models.BlockStatusNoResult}

	var candidates []models.Candidate
	if block.HasKeywords() {
		found, err := w.matcher.FindCandidates(ctx, block.Keywords, opts)
		if err != nil {
			w.log.Warn("block search failed",
				zap.String("block_id", block.ID.String()),
				zap.Strings("keywords", block.Keywords),
				zap.Error(err),
			)
			outcome.Error = err.Error()
		} else {
			candidates = found
		}
	}

	err := w.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetBlock(ctx, block.ID)
		if err != nil {
			return err
		}
		created, err := w.reconciler.Reconcile(ctx, tx, block.ID, candidates, assets.ModeClearExisting)
		if err != nil {
			return err
		}
		current.ApplyMatch(len(created) > 0)
		if err := tx.UpdateBlock(ctx, current); err != nil {
			return err
		}
		outcome.Status = current.Status
		outcome.Candidates = len(created)
		return nil
	})
	if err != nil {
		w.log.Error("failed to store block match", zap.String("block_id", block.ID.String()), zap.Error(err))
		outcome.Status = models.BlockStatusNoResult
		outcome.Candidates = 0
		outcome.Error = err.Error()
	}
	return outcome
}

func (w *Workflow) matchOptions(maxCandidates *int, videoPriority *bool) (assets.MatchOptions, error) {
	n := w.opts.MaxCandidatesPerBlock
	if maxCandidates != nil {
		n = *maxCandidates
	}
	if n < 1 || n > maxCandidatesLimit {
		return assets.MatchOptions{}, apperr.Validation("max_candidates must be between 1 and %d", maxCandidatesLimit)
	}
	return assets.MatchOptions{MaxCandidates: n, VideoPriority: boolOr(videoPriority, true)}, nil
}

func draftFrom(b services.ScriptBlock) blocks.Draft {
	return blocks.Draft{Text: b.Text, Keywords: b.Keywords}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
