package rest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

// Tables names the remote table per entity.
type Tables struct {
	Vacancies string
	Resumes   string
	Matches   string
}

func (t Tables) validate() error {
	if t.Vacancies == "" || t.Resumes == "" || t.Matches == "" {
		return errors.New("vacancies, resumes and matches tables must be configured")
	}
	return nil
}

// upserter is implemented by services with a native upsert.
type upserter interface {
	Upsert(ctx context.Context, table string, conflict []string, fields map[string]any) (Record, error)
}

// nearer is implemented by services with server-side vector search.
type nearer interface {
	Nearest(ctx context.Context, embedding []float32, limit int) ([]Record, []float64, error)
}

// Store maps domain entities onto remote tables through a recordAPI.
type Store struct {
	name   string
	api    recordAPI
	tables Tables
	fields store.Fields
	encode store.EncodeOptions
	logger *zap.Logger
	now    func() time.Time
}

type AirtableOptions struct {
	BaseID string
	Token  string
	Tables Tables
	Fields map[string]map[string]string
	Client ClientOptions
}

func NewAirtable(opts AirtableOptions, logger *zap.Logger) (*Store, error) {
	if opts.BaseID == "" || opts.Token == "" {
		return nil, errors.New("airtable base id and token are required")
	}
	if err := opts.Tables.validate(); err != nil {
		return nil, fmt.Errorf("airtable: %w", err)
	}
	api := newAirtable(opts.BaseID, opts.Token, opts.Client, logger)
	return newStore("airtable", api, opts.Tables, store.DutchFields().WithOverrides(opts.Fields), true, logger), nil
}

type NocoDBOptions struct {
	Token  string
	Tables Tables
	Fields map[string]map[string]string
	Client ClientOptions
}

func NewNocoDB(opts NocoDBOptions, logger *zap.Logger) (*Store, error) {
	if opts.Client.BaseURL == "" || opts.Token == "" {
		return nil, errors.New("nocodb url and token are required")
	}
	if err := opts.Tables.validate(); err != nil {
		return nil, fmt.Errorf("nocodb: %w", err)
	}
	api := newNocoDB(opts.Token, opts.Client, logger)
	return newStore("nocodb", api, opts.Tables, store.DutchFields().WithOverrides(opts.Fields), true, logger), nil
}

type SupabaseOptions struct {
	Key           string
	MatchFunction string
	Tables        Tables
	Fields        map[string]map[string]string
	Client        ClientOptions
}

// NewSupabase expects tables whose id columns default to gen_random_uuid() and
// a unique (vacancy_id, resume_id) constraint on matches.
func NewSupabase(opts SupabaseOptions, logger *zap.Logger) (*Store, error) {
	if opts.Client.BaseURL == "" || opts.Key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	if err := opts.Tables.validate(); err != nil {
		return nil, fmt.Errorf("supabase: %w", err)
	}
	if opts.MatchFunction == "" {
		opts.MatchFunction = "match_resumes"
	}
	api := newSupabase(opts.Key, opts.MatchFunction, opts.Client, logger)
	return newStore("supabase", api, opts.Tables, store.EnglishFields().WithOverrides(opts.Fields), false, logger), nil
}

func newStore(name string, api recordAPI, tables Tables, fields store.Fields, embeddingAsText bool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		name:   name,
		api:    api,
		tables: tables,
		fields: fields,
		encode: store.EncodeOptions{
			EmbeddingAsText: embeddingAsText,
			TimeLayout:      time.RFC3339,
		},
		logger: logger,
		now:    time.Now,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) remote(entity, canonical string) string {
	return s.fields[entity].Remote(canonical)
}

func (s *Store) encodeOpts(omit ...string) store.EncodeOptions {
	o := s.encode
	o.Omit = append([]string{"id"}, omit...)
	return o
}

func (s *Store) KnownURLs(ctx context.Context) (map[string]struct{}, error) {
	records, err := s.api.List(ctx, s.tables.Vacancies, nil)
	if err != nil {
		return nil, err
	}

	field := s.remote(store.EntityVacancy, "url")
	known := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if u, ok := rec.Fields[field].(string); ok && u != "" {
			known[utils.NormalizeURL(u)] = struct{}{}
		}
	}
	return known, nil
}

// SaveVacancy stores the normalized URL so equality filters find it again.
func (s *Store) SaveVacancy(ctx context.Context, v *vacancy.Vacancy) (*vacancy.Vacancy, error) {
	key := utils.NormalizeURL(v.URL)
	if key == "" {
		return nil, errors.New("vacancy url is empty")
	}

	existing, err := s.api.List(ctx, s.tables.Vacancies, []Condition{{Field: s.remote(store.EntityVacancy, "url"), Value: key}})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return s.decodeVacancy(existing[0])
	}

	stored := *v
	stored.URL = key
	if stored.Status == "" {
		stored.Status = vacancy.StatusNew
	}
	if stored.ScrapedAt.IsZero() {
		stored.ScrapedAt = s.now().UTC()
	}

	fields, err := store.Encode(&stored, s.fields[store.EntityVacancy], s.encodeOpts())
	if err != nil {
		return nil, err
	}
	rec, err := s.api.Create(ctx, s.tables.Vacancies, fields)
	if err != nil {
		return nil, err
	}
	return s.decodeVacancy(rec)
}

func (s *Store) GetVacancy(ctx context.Context, id string) (*vacancy.Vacancy, error) {
	rec, err := s.api.Get(ctx, s.tables.Vacancies, id)
	if err != nil {
		return nil, notFound("vacancy", id, err)
	}
	return s.decodeVacancy(rec)
}

func (s *Store) ListVacancies(ctx context.Context, opts store.ListOptions) ([]*vacancy.Vacancy, error) {
	var where []Condition
	if opts.Status != "" {
		where = append(where, Condition{Field: s.remote(store.EntityVacancy, "status"), Value: opts.Status})
	}

	records, err := s.api.List(ctx, s.tables.Vacancies, where)
	if err != nil {
		return nil, err
	}

	items := make([]*vacancy.Vacancy, 0, len(records))
	for _, rec := range records {
		v, err := s.decodeVacancy(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return store.PageVacancies(items, opts), nil
}

func (s *Store) UpdateVacancy(ctx context.Context, id string, patch vacancy.VacancyPatch) (*vacancy.Vacancy, error) {
	canonical := patch.Fields()
	canonical["updated_at"] = s.now().UTC()

	fields, err := s.encodeFields(store.EntityVacancy, canonical)
	if err != nil {
		return nil, err
	}
	rec, err := s.api.Update(ctx, s.tables.Vacancies, id, fields)
	if err != nil {
		return nil, notFound("vacancy", id, err)
	}
	return s.decodeVacancy(rec)
}

func (s *Store) SaveResume(ctx context.Context, r *vacancy.Resume) (*vacancy.Resume, error) {
	stored := *r
	stored.CreatedAt = s.now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	fields, err := store.Encode(&stored, s.fields[store.EntityResume], s.encodeOpts())
	if err != nil {
		return nil, err
	}
	rec, err := s.api.Create(ctx, s.tables.Resumes, fields)
	if err != nil {
		return nil, err
	}
	return s.decodeResume(rec)
}

func (s *Store) GetResume(ctx context.Context, id string) (*vacancy.Resume, error) {
	rec, err := s.api.Get(ctx, s.tables.Resumes, id)
	if err != nil {
		return nil, notFound("resume", id, err)
	}
	return s.decodeResume(rec)
}

func (s *Store) ListResumes(ctx context.Context, opts store.ListOptions) ([]*vacancy.Resume, error) {
	items, err := s.listResumes(ctx, opts.ActiveOnly)
	if err != nil {
		return nil, err
	}
	return store.PageResumes(items, opts), nil
}

func (s *Store) listResumes(ctx context.Context, activeOnly bool) ([]*vacancy.Resume, error) {
	var where []Condition
	if activeOnly {
		where = append(where, Condition{Field: s.remote(store.EntityResume, "active"), Value: true})
	}

	records, err := s.api.List(ctx, s.tables.Resumes, where)
	if err != nil {
		return nil, err
	}

	items := make([]*vacancy.Resume, 0, len(records))
	for _, rec := range records {
		r, err := s.decodeResume(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, nil
}

func (s *Store) UpdateResume(ctx context.Context, id string, patch vacancy.ResumePatch) (*vacancy.Resume, error) {
	current, err := s.GetResume(ctx, id)
	if err != nil {
		return nil, err
	}

	canonical := patch.Fields()
	canonical["updated_at"] = s.now().UTC()
	fields, err := s.encodeFields(store.EntityResume, canonical)
	if err != nil {
		return nil, err
	}
	if patch.TextChanged(current) {
		fields[s.remote(store.EntityResume, "embedding")] = nil
	}

	rec, err := s.api.Update(ctx, s.tables.Resumes, id, fields)
	if err != nil {
		return nil, notFound("resume", id, err)
	}
	return s.decodeResume(rec)
}

func (s *Store) SetResumeEmbedding(ctx context.Context, id string, embedding []float32) error {
	value, _, err := store.EncodeValue(embedding, s.encode)
	if err != nil {
		return err
	}
	_, err = s.api.Update(ctx, s.tables.Resumes, id, map[string]any{s.remote(store.EntityResume, "embedding"): value})
	if err != nil {
		return notFound("resume", id, err)
	}
	return nil
}

func (s *Store) NearestResumes(ctx context.Context, embedding []float32, limit int) ([]store.ResumeHit, error) {
	if n, ok := s.api.(nearer); ok {
		records, similarities, err := n.Nearest(ctx, embedding, limit)
		if err != nil {
			return nil, err
		}
		hits := make([]store.ResumeHit, 0, len(records))
		for i, rec := range records {
			r, err := s.decodeResume(rec)
			if err != nil {
				return nil, err
			}
			hits = append(hits, store.ResumeHit{Resume: r, Similarity: similarities[i]})
		}
		return hits, nil
	}

	candidates, err := s.listResumes(ctx, true)
	if err != nil {
		return nil, err
	}
	return store.RankResumes(embedding, candidates, limit), nil
}

func (s *Store) SaveMatch(ctx context.Context, m *vacancy.Match) (*vacancy.Match, error) {
	fieldMap := s.fields[store.EntityMatch]
	// Review status and creation time belong to the stored row.
	fields, err := store.Encode(m, fieldMap, s.encodeOpts("status", "created_at"))
	if err != nil {
		return nil, err
	}

	if u, ok := s.api.(upserter); ok {
		conflict := []string{fieldMap.Remote("vacancy_id"), fieldMap.Remote("resume_id")}
		rec, err := u.Upsert(ctx, s.tables.Matches, conflict, fields)
		if err != nil {
			return nil, err
		}
		return s.decodeMatch(rec)
	}

	existing, err := s.api.List(ctx, s.tables.Matches, []Condition{
		{Field: fieldMap.Remote("vacancy_id"), Value: m.VacancyID},
		{Field: fieldMap.Remote("resume_id"), Value: m.ResumeID},
	})
	if err != nil {
		return nil, err
	}

	var rec Record
	if len(existing) > 0 {
		rec, err = s.api.Update(ctx, s.tables.Matches, existing[0].ID, fields)
	} else {
		status := m.Status
		if status == "" {
			status = vacancy.MatchPending
		}
		fields[fieldMap.Remote("status")] = status
		fields[fieldMap.Remote("created_at")] = s.now().UTC().Format(s.encode.TimeLayout)
		rec, err = s.api.Create(ctx, s.tables.Matches, fields)
	}
	if err != nil {
		return nil, err
	}
	return s.decodeMatch(rec)
}

func (s *Store) ListMatches(ctx context.Context, filter store.MatchFilter) ([]*vacancy.Match, error) {
	fieldMap := s.fields[store.EntityMatch]
	var where []Condition
	if filter.VacancyID != "" {
		where = append(where, Condition{Field: fieldMap.Remote("vacancy_id"), Value: filter.VacancyID})
	}
	if filter.ResumeID != "" {
		where = append(where, Condition{Field: fieldMap.Remote("resume_id"), Value: filter.ResumeID})
	}
	if filter.Status != "" {
		where = append(where, Condition{Field: fieldMap.Remote("status"), Value: filter.Status})
	}

	records, err := s.api.List(ctx, s.tables.Matches, where)
	if err != nil {
		return nil, err
	}

	items := make([]*vacancy.Match, 0, len(records))
	for _, rec := range records {
		m, err := s.decodeMatch(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return store.PageMatches(items, filter), nil
}

func (s *Store) UpdateMatch(ctx context.Context, id string, patch vacancy.MatchPatch) (*vacancy.Match, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	rec, err := s.api.Update(ctx, s.tables.Matches, id, map[string]any{s.remote(store.EntityMatch, "status"): *patch.Status})
	if err != nil {
		return nil, notFound("match", id, err)
	}
	return s.decodeMatch(rec)
}

func (s *Store) encodeFields(entity string, canonical map[string]any) (map[string]any, error) {
	for key, value := range canonical {
		encoded, keep, err := store.EncodeValue(value, s.encode)
		if err != nil {
			return nil, err
		}
		if !keep {
			delete(canonical, key)
			continue
		}
		canonical[key] = encoded
	}
	return store.EncodePatch(canonical, s.fields[entity]), nil
}

func (s *Store) decodeVacancy(rec Record) (*vacancy.Vacancy, error) {
	var v vacancy.Vacancy
	if err := store.Decode(rec.Fields, s.fields[store.EntityVacancy], &v); err != nil {
		return nil, fmt.Errorf("%s vacancy %s: %w", s.name, rec.ID, err)
	}
	v.ID = rec.ID
	return &v, nil
}

func (s *Store) decodeResume(rec Record) (*vacancy.Resume, error) {
	var r vacancy.Resume
	if err := store.Decode(rec.Fields, s.fields[store.EntityResume], &r); err != nil {
		return nil, fmt.Errorf("%s resume %s: %w", s.name, rec.ID, err)
	}
	r.ID = rec.ID
	return &r, nil
}

func (s *Store) decodeMatch(rec Record) (*vacancy.Match, error) {
	var m vacancy.Match
	if err := store.Decode(rec.Fields, s.fields[store.EntityMatch], &m); err != nil {
		return nil, fmt.Errorf("%s match %s: %w", s.name, rec.ID, err)
	}
	m.ID = rec.ID
	return &m, nil
}

func notFound(entity, id string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s %s: %w", entity, id, store.ErrNotFound)
	}
	return err
}
