package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

func TestPageVacancies(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []*vacancy.Vacancy{
		{ID: "a", Status: vacancy.StatusNew, ScrapedAt: base},
		{ID: "b", Status: vacancy.StatusMatched, ScrapedAt: base.Add(time.Hour)},
		{ID: "c", Status: vacancy.StatusNew, ScrapedAt: base.Add(2 * time.Hour)},
	}

	all := PageVacancies(items, ListOptions{})
	assert.Equal(t, []string{"c", "b", "a"}, vacancyIDs(all))

	onlyNew := PageVacancies(items, ListOptions{Status: vacancy.StatusNew, Limit: 1, Offset: 1})
	assert.Equal(t, []string{"a"}, vacancyIDs(onlyNew))

	assert.Empty(t, PageVacancies(items, ListOptions{Offset: 10}))
}

func TestPageMatches(t *testing.T) {
	t.Parallel()

	items := []*vacancy.Match{
		{ID: "1", VacancyID: "v1", Score: 0.4},
		{ID: "2", VacancyID: "v1", Score: 0.9, Fit: true},
		{ID: "3", VacancyID: "v2", Score: 0.8, Fit: true, Status: vacancy.MatchShortlisted},
	}

	got := PageMatches(items, MatchFilter{MinScore: 0.5})
	assert.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)

	assert.Len(t, PageMatches(items, MatchFilter{VacancyID: "v1"}), 2)
	assert.Len(t, PageMatches(items, MatchFilter{Status: vacancy.MatchShortlisted}), 1)
	assert.Len(t, PageMatches(items, MatchFilter{FitOnly: true, VacancyID: "v2"}), 1)
}

func TestListOptionsNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultLimit, ListOptions{}.Normalize().Limit)
	assert.Equal(t, MaxLimit, ListOptions{Limit: 10_000}.Normalize().Limit)
	assert.Equal(t, 0, ListOptions{Offset: -5}.Normalize().Offset)
}

func vacancyIDs(items []*vacancy.Vacancy) []string {
	ids := make([]string, 0, len(items))
	for _, v := range items {
		ids = append(ids, v.ID)
	}
	return ids
}
