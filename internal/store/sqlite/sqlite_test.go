package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/store/storetest"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

func openTemp(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "vacancies.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTemp(t) })
}

func TestEmbeddingSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	saved, err := s.SaveVacancy(ctx, &vacancy.Vacancy{URL: "https://board.example.com/jobs/7", Embedding: []float32{0.25, -1}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetVacancy(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, []float32{0.25, -1}, got.Embedding)
	require.False(t, got.ScrapedAt.IsZero())
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), " ", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}
