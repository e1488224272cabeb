// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

// Run exercises a fresh store returned by open for each subtest.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("vacancies are unique by url", func(t *testing.T) { testVacancyUniqueness(t, open(t)) })
	t.Run("vacancy lookup and update", func(t *testing.T) { testVacancyUpdate(t, open(t)) })
	t.Run("nearest resumes", func(t *testing.T) { testNearestResumes(t, open(t)) })
	t.Run("resume update", func(t *testing.T) { testResumeUpdate(t, open(t)) })
	t.Run("match upsert keeps review status", func(t *testing.T) { testMatchUpsert(t, open(t)) })
}

func testVacancyUniqueness(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, err := s.SaveVacancy(ctx, &vacancy.Vacancy{
		URL:       "https://board.example.com/jobs/1",
		Title:     "Go Developer",
		Company:   "Acme",
		Embedding: []float32{1, 0, 0},
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, vacancy.StatusNew, first.Status)

	again, err := s.SaveVacancy(ctx, &vacancy.Vacancy{URL: "https://board.example.com/jobs/1/", Title: "Changed"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Go Developer", again.Title)

	_, err = s.SaveVacancy(ctx, &vacancy.Vacancy{URL: "https://board.example.com/jobs/2", Title: "SRE"})
	require.NoError(t, err)

	known, err := s.KnownURLs(ctx)
	require.NoError(t, err)
	assert.Len(t, known, 2)
	assert.Contains(t, known, "https://board.example.com/jobs/1")

	all, err := s.ListVacancies(ctx, store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testVacancyUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetVacancy(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound), "expected ErrNotFound, got %v", err)

	saved, err := s.SaveVacancy(ctx, &vacancy.Vacancy{URL: "https://board.example.com/jobs/9", Title: "Analist", ScrapedAt: time.Now().UTC()})
	require.NoError(t, err)

	status := vacancy.StatusReviewed
	updated, err := s.UpdateVacancy(ctx, saved.ID, vacancy.VacancyPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, vacancy.StatusReviewed, updated.Status)
	assert.Equal(t, "Analist", updated.Title)

	got, err := s.GetVacancy(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, vacancy.StatusReviewed, got.Status)

	reviewed, err := s.ListVacancies(ctx, store.ListOptions{Status: vacancy.StatusReviewed})
	require.NoError(t, err)
	require.Len(t, reviewed, 1)
	assert.Equal(t, saved.ID, reviewed[0].ID)

	fresh, err := s.ListVacancies(ctx, store.ListOptions{Status: vacancy.StatusNew})
	require.NoError(t, err)
	assert.Empty(t, fresh)

	_, err = s.UpdateVacancy(ctx, "missing", vacancy.VacancyPatch{Status: &status})
	assert.True(t, errors.Is(err, store.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func testNearestResumes(t *testing.T, s store.Store) {
	ctx := context.Background()

	near, err := s.SaveResume(ctx, &vacancy.Resume{Name: "Near", Text: "go", Active: true, Embedding: []float32{1, 0.1, 0}})
	require.NoError(t, err)
	far, err := s.SaveResume(ctx, &vacancy.Resume{Name: "Far", Text: "cooking", Active: true, Embedding: []float32{0, 0, 1}})
	require.NoError(t, err)
	_, err = s.SaveResume(ctx, &vacancy.Resume{Name: "Inactive", Text: "go", Active: false, Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)
	pending, err := s.SaveResume(ctx, &vacancy.Resume{Name: "Pending", Text: "go too", Active: true})
	require.NoError(t, err)

	hits, err := s.NearestResumes(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, near.ID, hits[0].Resume.ID)
	assert.Equal(t, far.ID, hits[1].Resume.ID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)

	require.NoError(t, s.SetResumeEmbedding(ctx, pending.ID, []float32{1, 0, 0}))

	hits, err = s.NearestResumes(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, pending.ID, hits[0].Resume.ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)

	active, err := s.ListResumes(ctx, store.ListOptions{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func testResumeUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()

	saved, err := s.SaveResume(ctx, &vacancy.Resume{Name: "Anna", Email: "anna@example.com", Text: "old", Active: true, Embedding: []float32{1, 0, 0}})
	require.NoError(t, err)

	inactive := false
	text := "new text"
	updated, err := s.UpdateResume(ctx, saved.ID, vacancy.ResumePatch{Text: &text, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "new text", updated.Text)
	assert.False(t, updated.Active)
	assert.Equal(t, "anna@example.com", updated.Email)

	got, err := s.GetResume(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "new text", got.Text)

	_, err = s.GetResume(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound), "expected ErrNotFound, got %v", err)
}

func testMatchUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()

	v, err := s.SaveVacancy(ctx, &vacancy.Vacancy{URL: "https://board.example.com/jobs/m", Title: "Go"})
	require.NoError(t, err)
	r, err := s.SaveResume(ctx, &vacancy.Resume{Name: "Anna", Text: "go", Active: true})
	require.NoError(t, err)
	other, err := s.SaveResume(ctx, &vacancy.Resume{Name: "Bram", Text: "java", Active: true})
	require.NoError(t, err)

	first, err := s.SaveMatch(ctx, &vacancy.Match{VacancyID: v.ID, ResumeID: r.ID, Score: 0.7, Fit: true, Similarity: 0.8, Reason: "good"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, vacancy.MatchPending, first.Status)

	status := vacancy.MatchShortlisted
	reviewed, err := s.UpdateMatch(ctx, first.ID, vacancy.MatchPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, vacancy.MatchShortlisted, reviewed.Status)

	second, err := s.SaveMatch(ctx, &vacancy.Match{VacancyID: v.ID, ResumeID: r.ID, Score: 0.9, Fit: true, Reason: "better"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, vacancy.MatchShortlisted, second.Status)

	_, err = s.SaveMatch(ctx, &vacancy.Match{VacancyID: v.ID, ResumeID: other.ID, Score: 0.2})
	require.NoError(t, err)

	byVacancy, err := s.ListMatches(ctx, store.MatchFilter{VacancyID: v.ID})
	require.NoError(t, err)
	require.Len(t, byVacancy, 2)
	assert.Equal(t, 0.9, byVacancy[0].Score)
	assert.Equal(t, "better", byVacancy[0].Reason)

	strong, err := s.ListMatches(ctx, store.MatchFilter{MinScore: 0.5})
	require.NoError(t, err)
	assert.Len(t, strong, 1)

	_, err = s.UpdateMatch(ctx, "missing", vacancy.MatchPatch{Status: &status})
	assert.True(t, errors.Is(err, store.ErrNotFound), "expected ErrNotFound, got %v", err)
}
