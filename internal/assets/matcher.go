package assets

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bobarin/photoscript/internal/models"
	"go.uber.org/zap"
)

// Per-keyword fetch sizes. The preferred media type gets the larger share.
const (
	PreferredPerKeyword = 5
	SecondaryPerKeyword = 2
)

// Score components.
const (
	BaseScore      = 1.0
	TitleBonus     = 0.5
	VideoBonus     = 0.3
	ImageBonus     = 0.1
	DefaultMaxHits = 10
)

// MediaSearcher is a stock media provider. It returns an empty slice when
// nothing matches and an error only when the provider could not be reached.
type MediaSearcher interface {
	Search(ctx context.Context, keyword string, count int, assetType models.AssetType) ([]models.Candidate, error)
}

type MatchOptions struct {
	MaxCandidates int
	VideoPriority bool
}

// Relevance scores a candidate found for keyword.
func Relevance(keyword string, c models.Candidate, videoPriority bool) float64 {
	score := BaseScore
	if keyword != "" && strings.Contains(strings.ToLower(c.Title), strings.ToLower(keyword)) {
		score += TitleBonus
	}
	if videoPriority && c.AssetType == models.AssetTypeVideo {
		score += VideoBonus
	} else if !videoPriority && c.AssetType == models.AssetTypeImage {
		score += ImageBonus
	}
	return score
}

// DedupeBySourceURL keeps the first candidate for each source URL.
func DedupeBySourceURL(candidates []models.Candidate) []models.Candidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.SourceURL] {
			continue
		}
		seen[c.SourceURL] = true
		out = append(out, c)
	}
	return out
}

type fetch struct {
	assetType models.AssetType
	count     int
}

// fetchPlan lists the per-keyword searches, preferred media type first.
func fetchPlan(videoPriority bool) []fetch {
	if videoPriority {
		return []fetch{
			{models.AssetTypeVideo, PreferredPerKeyword},
			{models.AssetTypeImage, SecondaryPerKeyword},
		}
	}
	return []fetch{
		{models.AssetTypeImage, PreferredPerKeyword},
		{models.AssetTypeVideo, SecondaryPerKeyword},
	}
}

type Matcher struct {
	search MediaSearcher
	log    *zap.Logger
}

func NewMatcher(search MediaSearcher, log *zap.Logger) *Matcher {
	return &Matcher{search: search, log: log.Named("matcher")}
}

// FindCandidates searches every keyword, scores and pools the hits, drops
// duplicate URLs and returns at most MaxCandidates by descending score.
// Any search error fails the whole call.
func (m *Matcher) FindCandidates(ctx context.Context, keywords []string, opts MatchOptions) ([]models.Candidate, error) {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxHits
	}

	plan := fetchPlan(opts.VideoPriority)

	var pool []models.Candidate
	for _, keyword := range keywords {
		for _, f := range plan {
			hits, err := m.search.Search(ctx, keyword, f.count, f.assetType)
			if err != nil {
				return nil, fmt.Errorf("search %q (%s): %w", keyword, f.assetType, err)
			}
			for _, hit := range hits {
				hit.MatchedKeyword = keyword
				hit.Score = Relevance(keyword, hit, opts.VideoPriority)
				pool = append(pool, hit)
			}
		}
	}

	pool = DedupeBySourceURL(pool)
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })
	if len(pool) > opts.MaxCandidates {
		pool = pool[:opts.MaxCandidates]
	}

	m.log.Debug("found candidates",
		zap.Strings("keywords", keywords),
		zap.Bool("video_priority", opts.VideoPriority),
		zap.Int("candidates", len(pool)),
	)
	return pool, nil
}
