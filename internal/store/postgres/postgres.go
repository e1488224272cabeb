// Package postgres implements store.Store on PostgreSQL with the pgvector extension.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const DefaultDimensions = 1536

type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

// Open creates the vector extension and tables, then returns a pooled store.
func Open(ctx context.Context, dsn string, dimensions int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	// The vector type must exist before pooled connections register it.
	if err := bootstrap(ctx, dsn, dimensions); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Debug("postgres store ready", zap.Int("dimensions", dimensions))
	return &Store{pool: pool, logger: logger, now: time.Now}, nil
}

func bootstrap(ctx context.Context, dsn string, dimensions int) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := conn.Exec(ctx, schema(dimensions)); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) KnownURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT url_key FROM vacancies`)
	if err != nil {
		return nil, fmt.Errorf("query known urls: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan known urls: %w", err)
	}

	known := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		known[u] = struct{}{}
	}
	return known, nil
}

func (s *Store) SaveVacancy(ctx context.Context, v *vacancy.Vacancy) (*vacancy.Vacancy, error) {
	key := utils.NormalizeURL(v.URL)
	if key == "" {
		return nil, errors.New("vacancy url is empty")
	}
	status := v.Status
	if status == "" {
		status = vacancy.StatusNew
	}
	scraped := v.ScrapedAt
	if scraped.IsZero() {
		scraped = s.now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO vacancies (id, url, url_key, title, company, location, hours, rate, published_at,
			description, source, status, embedding, scraped_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (url_key) DO NOTHING`,
		uuid.NewString(), v.URL, key, v.Title, v.Company, v.Location, v.Hours, v.Rate, v.PublishedAt,
		v.Description, v.Source, status, toVector(v.Embedding), scraped, nullTime(v.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert vacancy %s: %w", v.URL, err)
	}

	return scanVacancy(s.pool.QueryRow(ctx, `SELECT `+vacancyColumns+` FROM vacancies WHERE url_key = $1`, key))
}

func (s *Store) GetVacancy(ctx context.Context, id string) (*vacancy.Vacancy, error) {
	if !validID(id) {
		return nil, fmt.Errorf("vacancy %s: %w", id, store.ErrNotFound)
	}
	v, err := scanVacancy(s.pool.QueryRow(ctx, `SELECT `+vacancyColumns+` FROM vacancies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("vacancy %s: %w", id, store.ErrNotFound)
	}
	return v, err
}

func (s *Store) ListVacancies(ctx context.Context, opts store.ListOptions) ([]*vacancy.Vacancy, error) {
	opts = opts.Normalize()

	rows, err := s.pool.Query(ctx, `
		SELECT `+vacancyColumns+` FROM vacancies
		WHERE ($1 = '' OR status = $1)
		ORDER BY scraped_at DESC LIMIT $2 OFFSET $3`,
		opts.Status, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list vacancies: %w", err)
	}
	defer rows.Close()

	items := []*vacancy.Vacancy{}
	for rows.Next() {
		v, err := scanVacancy(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (s *Store) UpdateVacancy(ctx context.Context, id string, patch vacancy.VacancyPatch) (*vacancy.Vacancy, error) {
	current, err := s.GetVacancy(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := patch.Apply(current, s.now().UTC())

	_, err = s.pool.Exec(ctx, `
		UPDATE vacancies SET title = $1, company = $2, location = $3, hours = $4, rate = $5,
			description = $6, status = $7, updated_at = $8
		WHERE id = $9`,
		updated.Title, updated.Company, updated.Location, updated.Hours, updated.Rate,
		updated.Description, updated.Status, updated.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update vacancy %s: %w", id, err)
	}
	return updated, nil
}

func (s *Store) SaveResume(ctx context.Context, r *vacancy.Resume) (*vacancy.Resume, error) {
	stored := *r
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	_, err := s.pool.Exec(ctx, `
		INSERT INTO resumes (id, name, email, text, active, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		stored.ID, stored.Name, stored.Email, stored.Text, stored.Active, toVector(stored.Embedding),
		stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert resume %q: %w", r.Name, err)
	}
	return &stored, nil
}

func (s *Store) GetResume(ctx context.Context, id string) (*vacancy.Resume, error) {
	if !validID(id) {
		return nil, fmt.Errorf("resume %s: %w", id, store.ErrNotFound)
	}
	r, err := scanResume(s.pool.QueryRow(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resume %s: %w", id, store.ErrNotFound)
	}
	return r, err
}

func (s *Store) ListResumes(ctx context.Context, opts store.ListOptions) ([]*vacancy.Resume, error) {
	opts = opts.Normalize()

	rows, err := s.pool.Query(ctx, `
		SELECT `+resumeColumns+` FROM resumes
		WHERE (NOT $1 OR active)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		opts.ActiveOnly, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	defer rows.Close()

	items := []*vacancy.Resume{}
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (s *Store) UpdateResume(ctx context.Context, id string, patch vacancy.ResumePatch) (*vacancy.Resume, error) {
	current, err := s.GetResume(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := patch.Apply(current, s.now().UTC())
	if patch.TextChanged(current) {
		updated.Embedding = nil
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE resumes SET name = $1, email = $2, text = $3, active = $4, embedding = $5, updated_at = $6
		WHERE id = $7`,
		updated.Name, updated.Email, updated.Text, updated.Active, toVector(updated.Embedding), updated.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update resume %s: %w", id, err)
	}
	return updated, nil
}

func (s *Store) SetResumeEmbedding(ctx context.Context, id string, embedding []float32) error {
	if !validID(id) {
		return fmt.Errorf("resume %s: %w", id, store.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE resumes SET embedding = $1 WHERE id = $2`, toVector(embedding), id)
	if err != nil {
		return fmt.Errorf("set resume %s embedding: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resume %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// NearestResumes delegates ranking to the pgvector cosine distance operator.
func (s *Store) NearestResumes(ctx context.Context, embedding []float32, limit int) ([]store.ResumeHit, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding is empty")
	}
	if limit <= 0 {
		limit = store.DefaultLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+resumeColumns+`, 1 - (embedding <=> $1) AS similarity
		FROM resumes
		WHERE active AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query nearest resumes: %w", err)
	}
	defer rows.Close()

	hits := []store.ResumeHit{}
	for rows.Next() {
		var (
			r          vacancy.Resume
			vec        *pgvector.Vector
			similarity float64
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Text, &r.Active, &vec, &r.CreatedAt, &r.UpdatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scan nearest resume: %w", err)
		}
		r.Embedding = fromVector(vec)
		hits = append(hits, store.ResumeHit{Resume: &r, Similarity: similarity})
	}
	return hits, rows.Err()
}

func (s *Store) SaveMatch(ctx context.Context, m *vacancy.Match) (*vacancy.Match, error) {
	status := m.Status
	if status == "" {
		status = vacancy.MatchPending
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO matches (id, vacancy_id, resume_id, score, fit, reason, message, similarity, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (vacancy_id, resume_id) DO UPDATE SET
			score = EXCLUDED.score,
			fit = EXCLUDED.fit,
			reason = EXCLUDED.reason,
			message = EXCLUDED.message,
			similarity = EXCLUDED.similarity,
			error = EXCLUDED.error
		RETURNING `+matchColumns,
		uuid.NewString(), m.VacancyID, m.ResumeID, m.Score, m.Fit, m.Reason, m.Message,
		m.Similarity, status, m.Error, s.now().UTC(),
	)
	saved, err := scanMatch(row)
	if err != nil {
		return nil, fmt.Errorf("upsert match %s/%s: %w", m.VacancyID, m.ResumeID, err)
	}
	return saved, nil
}

func (s *Store) ListMatches(ctx context.Context, filter store.MatchFilter) ([]*vacancy.Match, error) {
	filter = filter.Normalize()

	where := []string{"score >= $1"}
	args := []any{filter.MinScore}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.VacancyID != "" {
		if !validID(filter.VacancyID) {
			return []*vacancy.Match{}, nil
		}
		add("vacancy_id = $%d", filter.VacancyID)
	}
	if filter.ResumeID != "" {
		if !validID(filter.ResumeID) {
			return []*vacancy.Match{}, nil
		}
		add("resume_id = $%d", filter.ResumeID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.FitOnly {
		where = append(where, "fit")
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM matches WHERE %s ORDER BY score DESC LIMIT $%d OFFSET $%d`,
		matchColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	items := []*vacancy.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (s *Store) UpdateMatch(ctx context.Context, id string, patch vacancy.MatchPatch) (*vacancy.Match, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, fmt.Errorf("match %s: %w", id, store.ErrNotFound)
	}

	m, err := scanMatch(s.pool.QueryRow(ctx,
		`UPDATE matches SET status = $1 WHERE id = $2 RETURNING `+matchColumns, *patch.Status, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", id, store.ErrNotFound)
	}
	return m, err
}

// validID guards UUID columns against malformed input, which Postgres rejects with a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
