// Package sqlite implements store.Store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const timeLayout = time.RFC3339Nano

type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open creates the database file if needed and applies the schema.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is empty")
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// go-sqlite3 serialises writers per file anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	logger.Debug("sqlite store ready", zap.String("path", path))
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) KnownURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url_key FROM vacancies`)
	if err != nil {
		return nil, fmt.Errorf("query known urls: %w", err)
	}
	defer rows.Close()

	known := map[string]struct{}{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan known url: %w", err)
		}
		known[u] = struct{}{}
	}
	return known, rows.Err()
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
	embedding, err := encodeEmbedding(v.Embedding)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vacancies (id, url, url_key, title, company, location, hours, rate, published_at,
			description, source, status, embedding, scraped_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url_key) DO NOTHING`,
		uuid.NewString(), v.URL, key, v.Title, v.Company, v.Location, v.Hours, v.Rate, v.PublishedAt,
		v.Description, v.Source, status, embedding, formatTime(scraped), formatTime(v.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert vacancy %s: %w", v.URL, err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+vacancyColumns+` FROM vacancies WHERE url_key = ?`, key)
	return scanVacancy(row)
}

func (s *Store) GetVacancy(ctx context.Context, id string) (*vacancy.Vacancy, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+vacancyColumns+` FROM vacancies WHERE id = ?`, id)
	v, err := scanVacancy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vacancy %s: %w", id, store.ErrNotFound)
	}
	return v, err
}

func (s *Store) ListVacancies(ctx context.Context, opts store.ListOptions) ([]*vacancy.Vacancy, error) {
	opts = opts.Normalize()

	query := `SELECT ` + vacancyColumns + ` FROM vacancies`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, opts.Status)
	}
	query += ` ORDER BY scraped_at DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
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

	_, err = s.db.ExecContext(ctx, `
		UPDATE vacancies SET title = ?, company = ?, location = ?, hours = ?, rate = ?,
			description = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		updated.Title, updated.Company, updated.Location, updated.Hours, updated.Rate,
		updated.Description, updated.Status, formatTime(updated.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update vacancy %s: %w", id, err)
	}
	return updated, nil
}

func (s *Store) SaveResume(ctx context.Context, r *vacancy.Resume) (*vacancy.Resume, error) {
	embedding, err := encodeEmbedding(r.Embedding)
	if err != nil {
		return nil, err
	}

	stored := *r
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resumes (`+resumeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.Name, stored.Email, stored.Text, stored.Active, embedding,
		formatTime(stored.CreatedAt), formatTime(stored.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert resume %q: %w", r.Name, err)
	}
	return &stored, nil
}

func (s *Store) GetResume(ctx context.Context, id string) (*vacancy.Resume, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resumeColumns+` FROM resumes WHERE id = ?`, id)
	r, err := scanResume(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resume %s: %w", id, store.ErrNotFound)
	}
	return r, err
}

func (s *Store) ListResumes(ctx context.Context, opts store.ListOptions) ([]*vacancy.Resume, error) {
	opts = opts.Normalize()

	query := `SELECT ` + resumeColumns + ` FROM resumes`
	if opts.ActiveOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	return s.queryResumes(ctx, query, opts.Limit, opts.Offset)
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
	embedding, err := encodeEmbedding(updated.Embedding)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE resumes SET name = ?, email = ?, text = ?, active = ?, embedding = ?, updated_at = ?
		WHERE id = ?`,
		updated.Name, updated.Email, updated.Text, updated.Active, embedding, formatTime(updated.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update resume %s: %w", id, err)
	}
	return updated, nil
}

func (s *Store) SetResumeEmbedding(ctx context.Context, id string, embedding []float32) error {
	encoded, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE resumes SET embedding = ? WHERE id = ?`, encoded, id)
	if err != nil {
		return fmt.Errorf("set resume %s embedding: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("resume %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// NearestResumes ranks in process: SQLite has no vector index.
func (s *Store) NearestResumes(ctx context.Context, embedding []float32, limit int) ([]store.ResumeHit, error) {
	candidates, err := s.queryResumes(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE active = 1 AND embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	return store.RankResumes(embedding, candidates, limit), nil
}

func (s *Store) queryResumes(ctx context.Context, query string, args ...any) ([]*vacancy.Resume, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query resumes: %w", err)
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

func (s *Store) SaveMatch(ctx context.Context, m *vacancy.Match) (*vacancy.Match, error) {
	status := m.Status
	if status == "" {
		status = vacancy.MatchPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vacancy_id, resume_id) DO UPDATE SET
			score = excluded.score,
			fit = excluded.fit,
			reason = excluded.reason,
			message = excluded.message,
			similarity = excluded.similarity,
			error = excluded.error`,
		uuid.NewString(), m.VacancyID, m.ResumeID, m.Score, m.Fit, m.Reason, m.Message,
		m.Similarity, status, m.Error, formatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert match %s/%s: %w", m.VacancyID, m.ResumeID, err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE vacancy_id = ? AND resume_id = ?`, m.VacancyID, m.ResumeID)
	return scanMatch(row)
}

func (s *Store) ListMatches(ctx context.Context, filter store.MatchFilter) ([]*vacancy.Match, error) {
	filter = filter.Normalize()

	where := []string{"score >= ?"}
	args := []any{filter.MinScore}
	if filter.VacancyID != "" {
		where = append(where, "vacancy_id = ?")
		args = append(args, filter.VacancyID)
	}
	if filter.ResumeID != "" {
		where = append(where, "resume_id = ?")
		args = append(args, filter.ResumeID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.FitOnly {
		where = append(where, "fit = 1")
	}
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE `+
		strings.Join(where, " AND ")+` ORDER BY score DESC LIMIT ? OFFSET ?`, args...)
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
	row := s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	current, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(current)
	if _, err := s.db.ExecContext(ctx, `UPDATE matches SET status = ? WHERE id = ?`, updated.Status, id); err != nil {
		return nil, fmt.Errorf("update match %s: %w", id, err)
	}
	return updated, nil
}
