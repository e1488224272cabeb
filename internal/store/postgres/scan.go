package postgres

import (
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

func scanVacancy(row pgx.Row) (*vacancy.Vacancy, error) {
	var (
		v       vacancy.Vacancy
		vec     *pgvector.Vector
		updated *time.Time
	)
	err := row.Scan(&v.ID, &v.URL, &v.Title, &v.Company, &v.Location, &v.Hours, &v.Rate, &v.PublishedAt,
		&v.Description, &v.Source, &v.Status, &vec, &v.ScrapedAt, &updated)
	if err != nil {
		return nil, err
	}
	v.Embedding = fromVector(vec)
	if updated != nil {
		v.UpdatedAt = *updated
	}
	return &v, nil
}

func scanResume(row pgx.Row) (*vacancy.Resume, error) {
	var (
		r   vacancy.Resume
		vec *pgvector.Vector
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Email, &r.Text, &r.Active, &vec, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Embedding = fromVector(vec)
	return &r, nil
}

func scanMatch(row pgx.Row) (*vacancy.Match, error) {
	var m vacancy.Match
	err := row.Scan(&m.ID, &m.VacancyID, &m.ResumeID, &m.Score, &m.Fit, &m.Reason, &m.Message,
		&m.Similarity, &m.Status, &m.Error, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// toVector returns nil for an empty embedding so the column stays NULL.
func toVector(e []float32) any {
	if len(e) == 0 {
		return nil
	}
	return pgvector.NewVector(e)
}

func fromVector(v *pgvector.Vector) []float32 {
	if v == nil {
		return nil
	}
	return v.Slice()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
