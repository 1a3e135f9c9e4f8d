package assets

import (
	"context"
	"testing"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/bobarin/photoscript/internal/store"
	"github.com/bobarin/photoscript/internal/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, keyword string, count int, assetType models.AssetType) ([]models.Candidate, error) {
	args := m.Called(ctx, keyword, count, assetType)
	hits, _ := args.Get(0).([]models.Candidate)
	return hits, args.Error(1)
}

// seedBlocks creates a user, a project and n blocks, returning the block ids.
func seedBlocks(t *testing.T, s *memory.Store, n int) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	err := s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		user := &models.User{ID: uuid.New(), Nickname: "tester", IsActive: true}
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		project := &models.Project{ID: uuid.New(), UserID: user.ID, ScriptRaw: "script"}
		if err := tx.CreateProject(ctx, project); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			b := &models.Block{ID: uuid.New(), ProjectID: project.ID, Order: float64(i + 1), Status: models.BlockStatusDraft}
			if err := tx.CreateBlock(ctx, b); err != nil {
				return err
			}
			ids = append(ids, b.ID)
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}

func candidate(url string, score float64) models.Candidate {
	return models.Candidate{
		Provider:  "pexels",
		AssetType: models.AssetTypeImage,
		SourceURL: url,
		Score:     score,
	}
}
