// Package store defines the persistence contract shared by every backend.
package store

import (
	"context"
	"errors"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound       = errors.New("not found")
	// ErrUnsupported marks operations a backend cannot perform.
	ErrUnsupported    = errors.New("not supported by backend")
	// ErrUnknownBackend is returned for an unrecognised backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Page size bounds for listings.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Store persists vacancies, résumés and matches. Implementations must be safe for concurrent use.
type Store interface {
	// KnownURLs returns the normalized URLs of every stored vacancy.
	KnownURLs(ctx context.Context) (map[string]struct{}, error)
	// SaveVacancy inserts the vacancy unless its URL is already stored, in
	// which case the stored record is returned unchanged.
	SaveVacancy(ctx context.Context, v *vacancy.Vacancy) (*vacancy.Vacancy, error)
	GetVacancy(ctx context.Context, id string) (*vacancy.Vacancy, error)
	ListVacancies(ctx context.Context, opts ListOptions) ([]*vacancy.Vacancy, error)
	UpdateVacancy(ctx context.Context, id string, patch vacancy.VacancyPatch) (*vacancy.Vacancy, error)

	SaveResume(ctx context.Context, r *vacancy.Resume) (*vacancy.Resume, error)
	GetResume(ctx context.Context, id string) (*vacancy.Resume, error)
	ListResumes(ctx context.Context, opts ListOptions) ([]*vacancy.Resume, error)
	UpdateResume(ctx context.Context, id string, patch vacancy.ResumePatch) (*vacancy.Resume, error)
	SetResumeEmbedding(ctx context.Context, id string, embedding []float32) error
	// NearestResumes returns active résumés ordered by descending cosine similarity.
	NearestResumes(ctx context.Context, embedding []float32, limit int) ([]ResumeHit, error)

	// SaveMatch upserts by (vacancy, résumé). The review status of an existing match is kept.
	SaveMatch(ctx context.Context, m *vacancy.Match) (*vacancy.Match, error)
	ListMatches(ctx context.Context, filter MatchFilter) ([]*vacancy.Match, error)
	UpdateMatch(ctx context.Context, id string, patch vacancy.MatchPatch) (*vacancy.Match, error)

	Close() error
}

// ListOptions narrows vacancy and résumé listings.
type ListOptions struct {
	Limit  int
	Offset int
	// Status filters vacancies by status.
	Status string
	// ActiveOnly filters résumés.
	ActiveOnly bool
}

// Normalize applies default and maximum limits.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// MatchFilter narrows match listings.
type MatchFilter struct {
	VacancyID string
	ResumeID  string
	Status    string
	MinScore  float64
	FitOnly   bool
	Limit     int
	Offset    int
}

// Normalize applies default and maximum limits.
func (f MatchFilter) Normalize() MatchFilter {
	o := ListOptions{Limit: f.Limit, Offset: f.Offset}.Normalize()
	f.Limit, f.Offset = o.Limit, o.Offset
	return f
}

// Accepts reports whether m passes the filter.
func (f MatchFilter) Accepts(m *vacancy.Match) bool {
	switch {
	case f.VacancyID != "" && m.VacancyID != f.VacancyID:
		return false
	case f.ResumeID != "" && m.ResumeID != f.ResumeID:
		return false
	case f.Status != "" && m.Status != f.Status:
		return false
	case m.Score < f.MinScore:
		return false
	case f.FitOnly && !m.Fit:
		return false
	}
	return true
}

// ResumeHit is a résumé together with its similarity to the query vector.
type ResumeHit struct {
	Resume     *vacancy.Resume
	Similarity float64
}
