// Package memory is a process-local Store used for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

type Store struct {
	mu        sync.RWMutex
	vacancies map[string]*vacancy.Vacancy
	byURL     map[string]string
	resumes   map[string]*vacancy.Resume
	matches   map[string]*vacancy.Match
	byPair    map[string]string
	now       func() time.Time
}

func New() *Store {
	return &Store{
		vacancies: map[string]*vacancy.Vacancy{},
		byURL:     map[string]string{},
		resumes:   map[string]*vacancy.Resume{},
		matches:   map[string]*vacancy.Match{},
		byPair:    map[string]string{},
		now:       time.Now,
	}
}

func (s *Store) KnownURLs(context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	known := make(map[string]struct{}, len(s.byURL))
	for u := range s.byURL {
		known[u] = struct{}{}
	}
	return known, nil
}

func (s *Store) SaveVacancy(_ context.Context, v *vacancy.Vacancy) (*vacancy.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := utils.NormalizeURL(v.URL)
	if id, ok := s.byURL[key]; ok {
		cp := *s.vacancies[id]
		return &cp, nil
	}

	stored := *v
	stored.ID = uuid.NewString()
	if stored.ScrapedAt.IsZero() {
		stored.ScrapedAt = s.now().UTC()
	}
	if stored.Status == "" {
		stored.Status = vacancy.StatusNew
	}
	s.vacancies[stored.ID] = &stored
	s.byURL[key] = stored.ID

	cp := stored
	return &cp, nil
}

func (s *Store) GetVacancy(_ context.Context, id string) (*vacancy.Vacancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vacancies[id]
	if !ok {
		return nil, fmt.Errorf("vacancy %s: %w", id, store.ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (s *Store) ListVacancies(_ context.Context, opts store.ListOptions) ([]*vacancy.Vacancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*vacancy.Vacancy, 0, len(s.vacancies))
	for _, v := range s.vacancies {
		cp := *v
		items = append(items, &cp)
	}
	return store.PageVacancies(items, opts), nil
}

func (s *Store) UpdateVacancy(_ context.Context, id string, patch vacancy.VacancyPatch) (*vacancy.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vacancies[id]
	if !ok {
		return nil, fmt.Errorf("vacancy %s: %w", id, store.ErrNotFound)
	}
	updated := patch.Apply(v, s.now().UTC())
	s.vacancies[id] = updated

	cp := *updated
	return &cp, nil
}

func (s *Store) SaveResume(_ context.Context, r *vacancy.Resume) (*vacancy.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *r
	stored.ID = uuid.NewString()
	now := s.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.resumes[stored.ID] = &stored

	cp := stored
	return &cp, nil
}

func (s *Store) GetResume(_ context.Context, id string) (*vacancy.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resumes[id]
	if !ok {
		return nil, fmt.Errorf("resume %s: %w", id, store.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListResumes(_ context.Context, opts store.ListOptions) ([]*vacancy.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*vacancy.Resume, 0, len(s.resumes))
	for _, r := range s.resumes {
		cp := *r
		items = append(items, &cp)
	}
	return store.PageResumes(items, opts), nil
}

func (s *Store) UpdateResume(_ context.Context, id string, patch vacancy.ResumePatch) (*vacancy.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resumes[id]
	if !ok {
		return nil, fmt.Errorf("resume %s: %w", id, store.ErrNotFound)
	}
	updated := patch.Apply(r, s.now().UTC())
	if patch.TextChanged(r) {
		updated.Embedding = nil
	}
	s.resumes[id] = updated

	cp := *updated
	return &cp, nil
}

func (s *Store) SetResumeEmbedding(_ context.Context, id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resumes[id]
	if !ok {
		return fmt.Errorf("resume %s: %w", id, store.ErrNotFound)
	}
	r.Embedding = append([]float32(nil), embedding...)
	return nil
}

func (s *Store) NearestResumes(_ context.Context, embedding []float32, limit int) ([]store.ResumeHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]*vacancy.Resume, 0, len(s.resumes))
	for _, r := range s.resumes {
		cp := *r
		candidates = append(candidates, &cp)
	}
	return store.RankResumes(embedding, candidates, limit), nil
}

func (s *Store) SaveMatch(_ context.Context, m *vacancy.Match) (*vacancy.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := m.VacancyID + "/" + m.ResumeID
	stored := *m
	if id, ok := s.byPair[key]; ok {
		existing := s.matches[id]
		stored.ID = existing.ID
		stored.Status = existing.Status
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.ID = uuid.NewString()
		stored.CreatedAt = s.now().UTC()
		if stored.Status == "" {
			stored.Status = vacancy.MatchPending
		}
		s.byPair[key] = stored.ID
	}
	s.matches[stored.ID] = &stored

	cp := stored
	return &cp, nil
}

func (s *Store) ListMatches(_ context.Context, filter store.MatchFilter) ([]*vacancy.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*vacancy.Match, 0, len(s.matches))
	for _, m := range s.matches {
		cp := *m
		items = append(items, &cp)
	}
	return store.PageMatches(items, filter), nil
}

func (s *Store) UpdateMatch(_ context.Context, id string, patch vacancy.MatchPatch) (*vacancy.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, store.ErrNotFound)
	}
	updated := patch.Apply(m)
	s.matches[id] = updated

	cp := *updated
	return &cp, nil
}

func (s *Store) Close() error { return nil }
