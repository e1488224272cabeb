package store

import (
	"sort"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

// The helpers below serve backends that filter and page in process.

func PageVacancies(items []*vacancy.Vacancy, opts ListOptions) []*vacancy.Vacancy {
	opts = opts.Normalize()

	filtered := make([]*vacancy.Vacancy, 0, len(items))
	for _, v := range items {
		if opts.Status != "" && v.Status != opts.Status {
			continue
		}
		filtered = append(filtered, v)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].ScrapedAt.After(filtered[j].ScrapedAt)
	})

	return page(filtered, opts.Offset, opts.Limit)
}

func PageResumes(items []*vacancy.Resume, opts ListOptions) []*vacancy.Resume {
	opts = opts.Normalize()

	filtered := make([]*vacancy.Resume, 0, len(items))
	for _, r := range items {
		if opts.ActiveOnly && !r.Active {
			continue
		}
		filtered = append(filtered, r)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	return page(filtered, opts.Offset, opts.Limit)
}

func PageMatches(items []*vacancy.Match, filter MatchFilter) []*vacancy.Match {
	filter = filter.Normalize()

	filtered := make([]*vacancy.Match, 0, len(items))
	for _, m := range items {
		if filter.Accepts(m) {
			filtered = append(filtered, m)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})

	return page(filtered, filter.Offset, filter.Limit)
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
