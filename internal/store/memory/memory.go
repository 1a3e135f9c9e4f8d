// Package memory is an in-process implementation of store.Store. A unit of
// work runs against a private copy of the data that replaces the shared
// copy on commit, so a failed operation leaves nothing behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/bobarin/photoscript/internal/store"
	"github.com/google/uuid"
)

type row[T any] struct {
	v   T
	seq int64
}

type state struct {
	seq      int64
	users    map[uuid.UUID]row[models.User]
	projects map[uuid.UUID]row[models.Project]
	blocks   map[uuid.UUID]row[models.Block]
	assets   map[uuid.UUID]row[models.Asset]
	links    map[uuid.UUID]row[models.BlockAsset]
	jobs     map[uuid.UUID]row[models.Job]
}

func newState() *state {
	return &state{
		users:    map[uuid.UUID]row[models.User]{},
		projects: map[uuid.UUID]row[models.Project]{},
		blocks:   map[uuid.UUID]row[models.Block]{},
		assets:   map[uuid.UUID]row[models.Asset]{},
		links:    map[uuid.UUID]row[models.BlockAsset]{},
		jobs:     map[uuid.UUID]row[models.Job]{},
	}
}

func cloneMap[T any](m map[uuid.UUID]row[T]) map[uuid.UUID]row[T] {
	out := make(map[uuid.UUID]row[T], len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:      s.seq,
		users:    cloneMap(s.users),
		projects: cloneMap(s.projects),
		blocks:   cloneMap(s.blocks),
		assets:   cloneMap(s.assets),
		links:    cloneMap(s.links),
		jobs:     cloneMap(s.jobs),
	}
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store serializes units of work behind one mutex.
type Store struct {
	mu    sync.Mutex
	data  *state
	clock func() time.Time
}

func New() *Store {
	return &Store{data: newState(), clock: time.Now}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &tx{st: work, now: s.clock}); err != nil {
		return err
	}
	s.data = work
	return nil
}

type tx struct {
	st  *state
	now func() time.Time
}

func notFound(kind string, key any) error {
	return fmt.Errorf("%s %v: %w", kind, key, store.ErrNotFound)
}

func copyStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Projects

func (t *tx) CreateProject(ctx context.Context, p *models.Project) error {
	if _, ok := t.st.users[p.UserID]; !ok {
		return notFound("user", p.UserID)
	}
	now := t.now()
	p.CreatedAt, p.UpdatedAt = now, now
	t.st.projects[p.ID] = row[models.Project]{v: *p, seq: t.st.next()}
	return nil
}

func (t *tx) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	r, ok := t.st.projects[id]
	if !ok {
		return nil, notFound("project", id)
	}
	p := r.v
	return &p, nil
}

func (t *tx) userProjects(userID uuid.UUID) []row[models.Project] {
	var rows []row[models.Project]
	for _, r := range t.st.projects {
		if r.v.UserID == userID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	return rows
}

func (t *tx) ListProjects(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, error) {
	rows := t.userProjects(userID)
	var out []models.Project
	for i := offset; i < len(rows) && len(out) < limit; i++ {
		out = append(out, rows[i].v)
	}
	return out, nil
}

func (t *tx) CountProjects(ctx context.Context, userID uuid.UUID) (int, error) {
	return len(t.userProjects(userID)), nil
}

func (t *tx) UpdateProject(ctx context.Context, p *models.Project) error {
	r, ok := t.st.projects[p.ID]
	if !ok {
		return notFound("project", p.ID)
	}
	r.v.Title = p.Title
	r.v.ScriptRaw = p.ScriptRaw
	r.v.UpdatedAt = t.now()
	t.st.projects[p.ID] = r
	p.UpdatedAt = r.v.UpdatedAt
	return nil
}

func (t *tx) DeleteProject(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st.projects[id]; !ok {
		return notFound("project", id)
	}
	if _, err := t.DeleteProjectBlocks(ctx, id); err != nil {
		return err
	}
	for jid, r := range t.st.jobs {
		if r.v.ProjectID == id {
			delete(t.st.jobs, jid)
		}
	}
	delete(t.st.projects, id)
	return nil
}

// Blocks

func (t *tx) CreateBlock(ctx context.Context, b *models.Block) error {
	if _, ok := t.st.projects[b.ProjectID]; !ok {
		return notFound("project", b.ProjectID)
	}
	now := t.now()
	b.CreatedAt, b.UpdatedAt = now, now
	b.Keywords = copyStrings(b.Keywords)
	stored := *b
	stored.Keywords = copyStrings(b.Keywords)
	t.st.blocks[b.ID] = row[models.Block]{v: stored, seq: t.st.next()}
	return nil
}

func (t *tx) GetBlock(ctx context.Context, id uuid.UUID) (*models.Block, error) {
	r, ok := t.st.blocks[id]
	if !ok {
		return nil, notFound("block", id)
	}
	b := r.v
	b.Keywords = copyStrings(r.v.Keywords)
	return &b, nil
}

func (t *tx) ListBlocks(ctx context.Context, projectID uuid.UUID) ([]models.Block, error) {
	var blocks []models.Block
	for _, r := range t.st.blocks {
		if r.v.ProjectID == projectID {
			b := r.v
			b.Keywords = copyStrings(r.v.Keywords)
			blocks = append(blocks, b)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Order < blocks[j].Order })
	return blocks, nil
}

func (t *tx) UpdateBlock(ctx context.Context, b *models.Block) error {
	r, ok := t.st.blocks[b.ID]
	if !ok {
		return notFound("block", b.ID)
	}
	r.v.Text = b.Text
	r.v.Keywords = copyStrings(b.Keywords)
	r.v.Status = b.Status
	r.v.Order = b.Order
	r.v.UpdatedAt = t.now()
	t.st.blocks[b.ID] = r
	b.UpdatedAt = r.v.UpdatedAt
	return nil
}

func (t *tx) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st.blocks[id]; !ok {
		return notFound("block", id)
	}
	if _, err := t.DeleteBlockAssets(ctx, id); err != nil {
		return err
	}
	delete(t.st.blocks, id)
	return nil
}

func (t *tx) DeleteProjectBlocks(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var n int64
	for id, r := range t.st.blocks {
		if r.v.ProjectID != projectID {
			continue
		}
		if err := t.DeleteBlock(ctx, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Assets

func (t *tx) GetAssetBySourceURL(ctx context.Context, sourceURL string) (*models.Asset, error) {
	for _, r := range t.st.assets {
		if r.v.SourceURL == sourceURL {
			a := r.v
			return &a, nil
		}
	}
	return nil, notFound("asset", sourceURL)
}

func (t *tx) CreateAsset(ctx context.Context, a *models.Asset) error {
	if existing, err := t.GetAssetBySourceURL(ctx, a.SourceURL); err == nil {
		*a = *existing
		return nil
	}
	a.CreatedAt = t.now()
	t.st.assets[a.ID] = row[models.Asset]{v: *a, seq: t.st.next()}
	return nil
}

func (t *tx) CreateBlockAsset(ctx context.Context, link *models.BlockAsset) error {
	if _, ok := t.st.blocks[link.BlockID]; !ok {
		return notFound("block", link.BlockID)
	}
	if _, ok := t.st.assets[link.AssetID]; !ok {
		return notFound("asset", link.AssetID)
	}
	for _, r := range t.st.links {
		if r.v.BlockID != link.BlockID {
			continue
		}
		if r.v.AssetID == link.AssetID {
			return fmt.Errorf("block asset (%s, %s): %w", link.BlockID, link.AssetID, store.ErrConflict)
		}
		if link.IsPrimary && r.v.IsPrimary {
			return fmt.Errorf("second primary for block %s: %w", link.BlockID, store.ErrConflict)
		}
	}
	now := t.now()
	link.CreatedAt, link.UpdatedAt = now, now
	stored := *link
	stored.Asset = nil
	t.st.links[link.ID] = row[models.BlockAsset]{v: stored, seq: t.st.next()}
	return nil
}

func (t *tx) withAsset(link models.BlockAsset) models.BlockAsset {
	if r, ok := t.st.assets[link.AssetID]; ok {
		a := r.v
		link.Asset = &a
	}
	return link
}

func (t *tx) GetBlockAsset(ctx context.Context, blockID, assetID uuid.UUID) (*models.BlockAsset, error) {
	for _, r := range t.st.links {
		if r.v.BlockID == blockID && r.v.AssetID == assetID {
			link := t.withAsset(r.v)
			return &link, nil
		}
	}
	return nil, notFound("block asset", fmt.Sprintf("(%s, %s)", blockID, assetID))
}

func (t *tx) ListBlockAssets(ctx context.Context, blockID uuid.UUID) ([]models.BlockAsset, error) {
	var rows []row[models.BlockAsset]
	for _, r := range t.st.links {
		if r.v.BlockID == blockID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].v.Score != rows[j].v.Score {
			return rows[i].v.Score > rows[j].v.Score
		}
		return rows[i].seq < rows[j].seq
	})
	links := make([]models.BlockAsset, 0, len(rows))
	for _, r := range rows {
		links = append(links, t.withAsset(r.v))
	}
	return links, nil
}

func (t *tx) UpdateBlockAsset(ctx context.Context, link *models.BlockAsset) error {
	r, ok := t.st.links[link.ID]
	if !ok {
		return notFound("block asset", link.ID)
	}
	if link.IsPrimary {
		for id, other := range t.st.links {
			if id != link.ID && other.v.BlockID == r.v.BlockID && other.v.IsPrimary {
				return fmt.Errorf("second primary for block %s: %w", r.v.BlockID, store.ErrConflict)
			}
		}
	}
	r.v.IsPrimary = link.IsPrimary
	r.v.ChosenBy = link.ChosenBy
	r.v.UpdatedAt = t.now()
	t.st.links[link.ID] = r
	link.UpdatedAt = r.v.UpdatedAt
	return nil
}

func (t *tx) DeleteBlockAssets(ctx context.Context, blockID uuid.UUID) (int64, error) {
	var n int64
	for id, r := range t.st.links {
		if r.v.BlockID == blockID {
			delete(t.st.links, id)
			n++
		}
	}
	return n, nil
}

func (t *tx) PrimaryAssets(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]*models.Asset, error) {
	out := map[uuid.UUID]*models.Asset{}
	for _, r := range t.st.links {
		if !r.v.IsPrimary {
			continue
		}
		b, ok := t.st.blocks[r.v.BlockID]
		if !ok || b.v.ProjectID != projectID {
			continue
		}
		if a, ok := t.st.assets[r.v.AssetID]; ok {
			asset := a.v
			out[r.v.BlockID] = &asset
		}
	}
	return out, nil
}

// Users

func (t *tx) CreateUser(ctx context.Context, u *models.User) error {
	for _, r := range t.st.users {
		if r.v.Nickname == u.Nickname {
			return fmt.Errorf("nickname %q: %w", u.Nickname, store.ErrConflict)
		}
	}
	now := t.now()
	u.CreatedAt, u.UpdatedAt = now, now
	t.st.users[u.ID] = row[models.User]{v: *u, seq: t.st.next()}
	return nil
}

func (t *tx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r, ok := t.st.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	u := r.v
	return &u, nil
}

func (t *tx) GetUserByNickname(ctx context.Context, nickname string) (*models.User, error) {
	for _, r := range t.st.users {
		if r.v.Nickname == nickname {
			u := r.v
			return &u, nil
		}
	}
	return nil, notFound("user", nickname)
}

// Jobs

func (t *tx) CreateJob(ctx context.Context, job *models.Job) error {
	if _, ok := t.st.projects[job.ProjectID]; !ok {
		return notFound("project", job.ProjectID)
	}
	job.CreatedAt = t.now()
	t.st.jobs[job.ID] = row[models.Job]{v: *job, seq: t.st.next()}
	return nil
}

func (t *tx) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	r, ok := t.st.jobs[id]
	if !ok {
		return nil, notFound("job", id)
	}
	j := r.v
	return &j, nil
}

func (t *tx) GetProjectJobs(ctx context.Context, projectID uuid.UUID) ([]models.Job, error) {
	var rows []row[models.Job]
	for _, r := range t.st.jobs {
		if r.v.ProjectID == projectID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	jobs := make([]models.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, r.v)
	}
	return jobs, nil
}

func (t *tx) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	r, ok := t.st.jobs[id]
	if !ok {
		return notFound("job", id)
	}
	now := t.now()
	r.v.Status = status
	if status == models.JobStatusSucceeded || status == models.JobStatusFailed {
		r.v.FinishedAt = &now
	} else if status == models.JobStatusRunning {
		r.v.StartedAt = &now
		r.v.Attempts++
	}
	t.st.jobs[id] = r
	return nil
}

func (t *tx) UpdateJobResult(ctx context.Context, id uuid.UUID, result models.JSONB) error {
	r, ok := t.st.jobs[id]
	if !ok {
		return notFound("job", id)
	}
	now := t.now()
	r.v.Status = models.JobStatusSucceeded
	r.v.Result = result
	r.v.FinishedAt = &now
	t.st.jobs[id] = r
	return nil
}

func (t *tx) UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	r, ok := t.st.jobs[id]
	if !ok {
		return notFound("job", id)
	}
	now := t.now()
	msg := errorMessage
	r.v.Status = models.JobStatusFailed
	r.v.ErrorMessage = &msg
	r.v.FinishedAt = &now
	t.st.jobs[id] = r
	return nil
}
