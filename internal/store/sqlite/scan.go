package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanVacancy(row scanner) (*vacancy.Vacancy, error) {
	var (
		v                  vacancy.Vacancy
		embedding          sql.NullString
		scraped, updatedAt string
	)
	err := row.Scan(&v.ID, &v.URL, &v.Title, &v.Company, &v.Location, &v.Hours, &v.Rate, &v.PublishedAt,
		&v.Description, &v.Source, &v.Status, &embedding, &scraped, &updatedAt)
	if err != nil {
		return nil, err
	}

	if v.Embedding, err = decodeEmbedding(embedding); err != nil {
		return nil, err
	}
	v.ScrapedAt = parseTime(scraped)
	v.UpdatedAt = parseTime(updatedAt)
	return &v, nil
}

func scanResume(row scanner) (*vacancy.Resume, error) {
	var (
		r                  vacancy.Resume
		embedding          sql.NullString
		created, updatedAt string
	)
	err := row.Scan(&r.ID, &r.Name, &r.Email, &r.Text, &r.Active, &embedding, &created, &updatedAt)
	if err != nil {
		return nil, err
	}

	if r.Embedding, err = decodeEmbedding(embedding); err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func scanMatch(row scanner) (*vacancy.Match, error) {
	var (
		m       vacancy.Match
		created string
	)
	err := row.Scan(&m.ID, &m.VacancyID, &m.ResumeID, &m.Score, &m.Fit, &m.Reason, &m.Message,
		&m.Similarity, &m.Status, &m.Error, &created)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(created)
	return &m, nil
}

// Embeddings are stored as JSON arrays; NULL means "not embedded yet".
func encodeEmbedding(e []float32) (sql.NullString, error) {
	if len(e) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode embedding: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeEmbedding(s sql.NullString) ([]float32, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var out []float32
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
