package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bobarin/photoscript/internal/apperr"
	"github.com/bobarin/photoscript/internal/assets"
	"github.com/bobarin/photoscript/internal/blocks"
	"github.com/bobarin/photoscript/internal/models"
	"github.com/bobarin/photoscript/internal/services"
	"github.com/bobarin/photoscript/internal/store"
	"github.com/bobarin/photoscript/internal/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSearcher returns one image per keyword unless the keyword is listed in
// empty or failing.
type fakeSearcher struct {
	mu      sync.Mutex
	empty   map[string]bool
	failing map[string]bool
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, keyword string, _ int, assetType models.AssetType) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing[keyword] {
		return nil, errors.New("pexels unavailable")
	}
	if f.empty[keyword] || assetType != models.AssetTypeImage {
		return []models.Candidate{}, nil
	}
	return []models.Candidate{{
		Provider:     "pexels",
		AssetType:    models.AssetTypeImage,
		SourceURL:    "https://images.pexels.test/" + keyword + ".jpg",
		ThumbnailURL: "https://images.pexels.test/" + keyword + "-small.jpg",
		Title:        keyword + " photo",
	}}, nil
}

type fakeSplitter struct {
	blocks []services.ScriptBlock
	err    error
	calls  int
}

func (f *fakeSplitter) ProcessScript(_ context.Context, _ string, _ int) ([]services.ScriptBlock, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.blocks, nil
}

type fakeQueue struct {
	jobs []*models.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job *models.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fixture struct {
	store    *memory.Store
	wf       *Workflow
	blocks   *blocks.Service
	searcher *fakeSearcher
	splitter *fakeSplitter
	user     uuid.UUID
}

type fixtureOption func(*Options)

func newFixture(t *testing.T, queue Enqueuer, opts ...fixtureOption) *fixture {
	t.Helper()
	st := memory.New()
	log := zap.NewNop()
	reconciler := assets.NewReconciler(log)
	blockSvc := blocks.NewService(st, reconciler, log)
	searcher := &fakeSearcher{empty: map[string]bool{}, failing: map[string]bool{}}
	splitter := &fakeSplitter{blocks: []services.ScriptBlock{
		{Text: "The city wakes up.", Keywords: []string{"city", "sunrise"}},
		{Text: "People walk to work.", Keywords: []string{"commute"}},
	}}

	o := Options{MaxScriptLength: 1000, DefaultMaxKeywords: 5, MaxCandidatesPerBlock: 10, MatchConcurrency: 1}
	for _, apply := range opts {
		apply(&o)
	}

	f := &fixture{
		store:    st,
		blocks:   blockSvc,
		searcher: searcher,
		splitter: splitter,
		user:     uuid.New(),
	}
	f.wf = New(st, blockSvc, reconciler, assets.NewMatcher(searcher, log), splitter, queue, o, log)
	f.addUser(t, f.user, "director")
	return f
}

func (f *fixture) addUser(t *testing.T, id uuid.UUID, nickname string) {
	t.Helper()
	err := f.store.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.CreateUser(ctx, &models.User{ID: id, Nickname: nickname, IsActive: true})
	})
	require.NoError(t, err)
}

func (f *fixture) project(t *testing.T) uuid.UUID {
	t.Helper()
	p, err := f.wf.CreateProject(context.Background(), f.user, models.CreateProjectRequest{Script: "The city wakes up. People walk to work."})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) list(t *testing.T, projectID uuid.UUID) []models.Block {
	t.Helper()
	list, err := f.blocks.List(context.Background(), projectID)
	require.NoError(t, err)
	return list
}

func ptr[T any](v T) *T { return &v }

func TestCreateProjectTitle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	long := strings.Repeat("a", 60)
	tests := []struct {
		name  string
		req   models.CreateProjectRequest
		title string
	}{
		{name: "explicit", req: models.CreateProjectRequest{Title: ptr("  Morning  "), Script: "script"}, title: "Morning"},
		{name: "default from script", req: models.CreateProjectRequest{Script: "  Short script  "}, title: "Short script"},
		{name: "blank title falls back", req: models.CreateProjectRequest{Title: ptr(" "), Script: "abc"}, title: "abc"},
		{name: "default is truncated", req: models.CreateProjectRequest{Script: long}, title: long[:50]},
		{name: "truncation counts runes", req: models.CreateProjectRequest{Script: strings.Repeat("я", 70)}, title: strings.Repeat("я", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.wf.CreateProject(ctx, f.user, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.title, p.Title)
			assert.Equal(t, f.user, p.UserID)
		})
	}
}

func TestCreateProjectValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.CreateProjectRequest
	}{
		{name: "empty script", req: models.CreateProjectRequest{Script: "  \n "}},
		{name: "script too long", req: models.CreateProjectRequest{Script: strings.Repeat("x", 1001)}},
		{name: "title too long", req: models.CreateProjectRequest{Title: ptr(strings.Repeat("t", 256)), Script: "ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.wf.CreateProject(ctx, f.user, tt.req)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestProjectOwnership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)

	other := uuid.New()
	f.addUser(t, other, "intruder")

	_, err := f.wf.GetProject(ctx, other, projectID)
	assert.True(t, apperr.Is(err, apperr.CodeProjectNotFound))

	_, err = f.wf.Detail(ctx, other, projectID)
	assert.True(t, apperr.Is(err, apperr.CodeProjectNotFound))

	err = f.wf.DeleteProject(ctx, other, projectID)
	assert.True(t, apperr.Is(err, apperr.CodeProjectNotFound))

	_, err = f.wf.Split(ctx, other, projectID, models.SplitProjectRequest{})
	assert.True(t, apperr.Is(err, apperr.CodeProjectNotFound))
	assert.Zero(t, f.splitter.calls)

	_, err = f.wf.GetProject(ctx, f.user, uuid.New())
	assert.True(t, apperr.Is(err, apperr.CodeProjectNotFound))

	p, err := f.wf.GetProject(ctx, f.user, projectID)
	require.NoError(t, err)
	assert.Equal(t, projectID, p.ID)
}

func TestAuthorizeBlock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)
	_, err := f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{})
	require.NoError(t, err)
	blockID := f.list(t, projectID)[0].ID

	other := uuid.New()
	f.addUser(t, other, "intruder")

	assert.NoError(t, f.wf.AuthorizeBlock(ctx, f.user, blockID))
	assert.True(t, apperr.Is(f.wf.AuthorizeBlock(ctx, other, blockID), apperr.CodeBlockNotFound))
	assert.True(t, apperr.Is(f.wf.AuthorizeBlock(ctx, f.user, uuid.New()), apperr.CodeBlockNotFound))
}

func TestListProjects(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.wf.CreateProject(ctx, f.user, models.CreateProjectRequest{Script: fmt.Sprintf("script %d", i)})
		require.NoError(t, err)
	}

	resp, err := f.wf.ListProjects(ctx, f.user, 2, 0)
	require.NoError(t, err)
	assert.Len(t, resp.Projects, 2)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Limit)

	resp, err = f.wf.ListProjects(ctx, f.user, 0, 2)
	require.NoError(t, err)
	assert.Len(t, resp.Projects, 1)
	assert.Equal(t, 20, resp.Limit)

	other := uuid.New()
	f.addUser(t, other, "empty")
	resp, err = f.wf.ListProjects(ctx, other, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, resp.Projects)
	assert.Empty(t, resp.Projects)

	for _, bad := range [][2]int{{101, 0}, {-1, 0}, {10, -1}} {
		_, err := f.wf.ListProjects(ctx, f.user, bad[0], bad[1])
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "limit=%d offset=%d", bad[0], bad[1])
	}
}

func TestUpdateProject(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)
	_, err := f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{})
	require.NoError(t, err)

	_, err = f.wf.UpdateProject(ctx, f.user, projectID, models.UpdateProjectRequest{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	p, err := f.wf.UpdateProject(ctx, f.user, projectID, models.UpdateProjectRequest{
		Title:  ptr("Evening"),
		Script: ptr("A new script."),
	})
	require.NoError(t, err)
	assert.Equal(t, "Evening", p.Title)
	assert.Equal(t, "A new script.", p.ScriptRaw)

	// Blocks are rebuilt only by an explicit split.
	assert.Len(t, f.list(t, projectID), 2)
}

func TestDeleteProjectCascades(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)
	_, err := f.wf.Generate(ctx, f.user, projectID, models.GenerateProjectRequest{})
	require.NoError(t, err)
	blockID := f.list(t, projectID)[0].ID

	require.NoError(t, f.wf.DeleteProject(ctx, f.user, projectID))

	_, err = f.wf.GetProject(ctx, f.user, projectID)
	assert.True(t, apperr.Is(err, apperr.CodeProjectNotFound))
	err = f.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetBlock(ctx, blockID)
		return err
	})
	assert.True(t, store.IsNotFound(err))
}

func TestSplitReplacesBlocks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)

	result, err := f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.BlocksCount)

	f.splitter.blocks = []services.ScriptBlock{
		{Text: "One.", Keywords: []string{"one"}},
		{Text: "Two.", Keywords: nil},
		{Text: "Three.", Keywords: []string{"three", "3"}},
	}
	result, err = f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{MaxKeywords: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, result.BlocksCount)

	list := f.list(t, projectID)
	require.Len(t, list, 3)
	for i, b := range list {
		assert.Equal(t, float64(i+1), b.Order)
		assert.Equal(t, models.BlockStatusDraft, b.Status)
		assert.NotNil(t, b.Keywords)
	}
	assert.Equal(t, "One.", list[0].Text)
}

func TestSplitFailureKeepsBlocks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)
	_, err := f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{})
	require.NoError(t, err)
	before := f.list(t, projectID)

	f.splitter.err = errors.New("model overloaded")
	_, err = f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeScriptProcessing))
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))

	assert.Equal(t, before, f.list(t, projectID))
}

func TestSplitMaxKeywordsValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)

	for _, n := range []int{0, 11} {
		_, err := f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{MaxKeywords: ptr(n)})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "max_keywords=%d", n)
	}
	assert.Zero(t, f.splitter.calls)
}

func TestMatchWithoutBlocks(t *testing.T) {
	f := newFixture(t, nil)
	projectID := f.project(t)

	_, err := f.wf.Match(context.Background(), f.user, projectID, models.MatchProjectRequest{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestMatchProject(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			f := newFixture(t, nil, func(o *Options) { o.MatchConcurrency = concurrency })
			ctx := context.Background()
			projectID := f.project(t)
			f.splitter.blocks = []services.ScriptBlock{
				{Text: "City.", Keywords: []string{"city"}},
				{Text: "Broken.", Keywords: []string{"outage"}},
				{Text: "Silent.", Keywords: nil},
				{Text: "Nothing.", Keywords: []string{"void"}},
			}
			f.searcher.failing["outage"] = true
			f.searcher.empty["void"] = true

			_, err := f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{})
			require.NoError(t, err)

			result, err := f.wf.Match(ctx, f.user, projectID, models.MatchProjectRequest{})
			require.NoError(t, err)
			assert.Equal(t, 4, result.BlocksCount)
			assert.Equal(t, 1, result.MatchedCount)
			require.Len(t, result.Outcomes, 4)

			list := f.list(t, projectID)
			want := []models.BlockStatus{
				models.BlockStatusMatched,
				models.BlockStatusNoResult,
				models.BlockStatusNoResult,
				models.BlockStatusNoResult,
			}
			for i, b := range list {
				assert.Equal(t, want[i], b.Status, b.Text)
				assert.Equal(t, b.ID, result.Outcomes[i].BlockID)
				assert.Equal(t, want[i], result.Outcomes[i].Status)
			}
			assert.Equal(t, 1, result.Outcomes[0].Candidates)
			assert.NotEmpty(t, result.Outcomes[1].Error)
			assert.Empty(t, result.Outcomes[3].Error)
		})
	}
}

func TestMatchClearsPreviousCandidates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)
	_, err := f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{})
	require.NoError(t, err)

	_, err = f.wf.Match(ctx, f.user, projectID, models.MatchProjectRequest{})
	require.NoError(t, err)
	first := f.list(t, projectID)[0]
	links, err := f.blocks.ListAssets(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)

	f.searcher.empty["city"] = true
	f.searcher.empty["sunrise"] = true
	_, err = f.wf.Match(ctx, f.user, projectID, models.MatchProjectRequest{})
	require.NoError(t, err)

	links, err = f.blocks.ListAssets(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.Equal(t, models.BlockStatusNoResult, f.list(t, projectID)[0].Status)
}

func TestMatchOptionsValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)

	for _, n := range []int{0, 31} {
		_, err := f.wf.Match(ctx, f.user, projectID, models.MatchProjectRequest{MaxCandidates: ptr(n)})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "max_candidates=%d", n)
	}
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)
	f.splitter.blocks = []services.ScriptBlock{
		{Text: "City.", Keywords: []string{"city"}},
		{Text: "Silent.", Keywords: nil},
	}

	result, err := f.wf.Generate(ctx, f.user, projectID, models.GenerateProjectRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.BlocksCount)
	assert.Equal(t, 1, result.MatchedCount)
	require.Len(t, result.Blocks, 2)
	assert.Equal(t, models.BlockStatusMatched, result.Blocks[0].Status)
	assert.Equal(t, models.BlockStatusNoResult, result.Blocks[1].Status)

	detail, err := f.wf.Detail(ctx, f.user, projectID)
	require.NoError(t, err)
	require.Len(t, detail.Blocks, 2)
	require.NotNil(t, detail.Blocks[0].PrimaryAsset)
	assert.Equal(t, "https://images.pexels.test/city.jpg", detail.Blocks[0].PrimaryAsset.SourceURL)
	assert.Nil(t, detail.Blocks[1].PrimaryAsset)
}

func TestMatchBlock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)
	_, err := f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{})
	require.NoError(t, err)
	list := f.list(t, projectID)

	outcome, err := f.wf.MatchBlock(ctx, f.user, list[1].ID, models.MatchProjectRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.BlockStatusMatched, outcome.Status)
	assert.Equal(t, 1, outcome.Candidates)

	after := f.list(t, projectID)
	assert.Equal(t, models.BlockStatusDraft, after[0].Status)
	assert.Equal(t, models.BlockStatusMatched, after[1].Status)

	other := uuid.New()
	f.addUser(t, other, "intruder")
	_, err = f.wf.MatchBlock(ctx, other, list[1].ID, models.MatchProjectRequest{})
	assert.True(t, apperr.Is(err, apperr.CodeBlockNotFound))
}

func TestSearchMoreKeepsUserPrimary(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)
	_, err := f.wf.Generate(ctx, f.user, projectID, models.GenerateProjectRequest{})
	require.NoError(t, err)
	block := f.list(t, projectID)[0]

	links, err := f.blocks.ListAssets(ctx, block.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	var chosen models.BlockAsset
	for _, l := range links {
		if !l.IsPrimary {
			chosen = l
		}
	}
	_, err = f.blocks.SetPrimaryAsset(ctx, block.ID, chosen.AssetID)
	require.NoError(t, err)

	result, err := f.wf.SearchMore(ctx, f.user, block.ID, models.SearchMoreRequest{Keyword: "  skyline "})
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	assert.False(t, result.Added[0].IsPrimary)
	assert.Equal(t, models.BlockStatusCustom, result.Block.Status)
	assert.Equal(t, block.Keywords, result.Block.Keywords)

	links, err = f.blocks.ListAssets(ctx, block.ID)
	require.NoError(t, err)
	require.Len(t, links, 3)
	primaries := 0
	for _, l := range links {
		if l.IsPrimary {
			primaries++
			assert.Equal(t, chosen.AssetID, l.AssetID)
			assert.Equal(t, models.ChosenByUser, l.ChosenBy)
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestSearchMoreOnEmptyBlock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)
	_, err := f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{})
	require.NoError(t, err)
	block := f.list(t, projectID)[1]

	result, err := f.wf.SearchMore(ctx, f.user, block.ID, models.SearchMoreRequest{Keyword: "office", Count: ptr(3)})
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	assert.True(t, result.Added[0].IsPrimary)
	assert.Equal(t, models.BlockStatusMatched, result.Block.Status)

	f.searcher.empty["desert"] = true
	other := f.list(t, projectID)[0]
	result, err = f.wf.SearchMore(ctx, f.user, other.ID, models.SearchMoreRequest{Keyword: "desert"})
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.Equal(t, models.BlockStatusNoResult, result.Block.Status)
}

func TestSearchMoreErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	projectID := f.project(t)
	_, err := f.wf.Split(ctx, f.user, projectID, models.SplitProjectRequest{})
	require.NoError(t, err)
	blockID := f.list(t, projectID)[0].ID

	_, err = f.wf.SearchMore(ctx, f.user, blockID, models.SearchMoreRequest{Keyword: "  "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.wf.SearchMore(ctx, f.user, blockID, models.SearchMoreRequest{Keyword: "x", Count: ptr(31)})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.wf.SearchMore(ctx, f.user, uuid.New(), models.SearchMoreRequest{Keyword: "x"})
	assert.True(t, apperr.Is(err, apperr.CodeBlockNotFound))

	f.searcher.failing["storm"] = true
	_, err = f.wf.SearchMore(ctx, f.user, blockID, models.SearchMoreRequest{Keyword: "storm"})
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))
	assert.Equal(t, models.BlockStatusDraft, f.list(t, projectID)[0].Status)
}

func TestSubmitWithoutQueue(t *testing.T) {
	f := newFixture(t, nil)
	projectID := f.project(t)

	assert.False(t, f.wf.AsyncEnabled())
	_, err := f.wf.SubmitMatch(context.Background(), f.user, projectID, models.MatchProjectRequest{Async: true})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSubmitAndRunJob(t *testing.T) {
	q := &fakeQueue{}
	f := newFixture(t, q)
	ctx := context.Background()
	projectID := f.project(t)
	require.True(t, f.wf.AsyncEnabled())

	job, err := f.wf.SubmitGenerate(ctx, f.user, projectID, models.GenerateProjectRequest{MaxCandidates: ptr(5), Async: true})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, models.JobTypeGenerate, job.Type)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, job.ID, q.jobs[0].ID)
	assert.Empty(t, f.list(t, projectID), "nothing runs until the worker picks the job up")

	stored, err := f.wf.GetJob(ctx, f.user, job.ID)
	require.NoError(t, err)

	out, err := f.wf.RunJob(ctx, stored)
	require.NoError(t, err)
	result, ok := out.(*models.GenerateResult)
	require.True(t, ok)
	assert.Equal(t, 2, result.BlocksCount)
	assert.Equal(t, 2, result.MatchedCount)

	match, err := f.wf.SubmitMatch(ctx, f.user, projectID, models.MatchProjectRequest{})
	require.NoError(t, err)
	out, err = f.wf.RunJob(ctx, match)
	require.NoError(t, err)
	assert.IsType(t, &models.MatchResult{}, out)

	jobs, err := f.wf.ProjectJobs(ctx, f.user, projectID)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	_, err = f.wf.RunJob(ctx, &models.Job{Type: "render", ProjectID: projectID})
	assert.Error(t, err)
}

func TestSubmitEnqueueFailure(t *testing.T) {
	q := &fakeQueue{err: errors.New("connection refused")}
	f := newFixture(t, q)
	ctx := context.Background()
	projectID := f.project(t)

	_, err := f.wf.SubmitMatch(ctx, f.user, projectID, models.MatchProjectRequest{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))

	jobs, err := f.wf.ProjectJobs(ctx, f.user, projectID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusFailed, jobs[0].Status)
	require.NotNil(t, jobs[0].ErrorMessage)
	assert.Contains(t, *jobs[0].ErrorMessage, "connection refused")
}

func TestJobOwnership(t *testing.T) {
	q := &fakeQueue{}
	f := newFixture(t, q)
	ctx := context.Background()
	projectID := f.project(t)

	other := uuid.New()
	f.addUser(t, other, "intruder")

	_, err := f.wf.SubmitMatch(ctx, other, projectID, models.MatchProjectRequest{})
	assert.True(t, apperr.Is(err, apperr.CodeProjectNotFound))
	assert.Empty(t, q.jobs)

	job, err := f.wf.SubmitMatch(ctx, f.user, projectID, models.MatchProjectRequest{})
	require.NoError(t, err)

	_, err = f.wf.GetJob(ctx, other, job.ID)
	assert.True(t, apperr.Is(err, apperr.CodeJobNotFound))
	_, err = f.wf.GetJob(ctx, f.user, uuid.New())
	assert.True(t, apperr.Is(err, apperr.CodeJobNotFound))
	_, err = f.wf.ProjectJobs(ctx, other, projectID)
	assert.True(t, apperr.Is(err, apperr.CodeProjectNotFound))
}
