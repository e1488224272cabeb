package postgres

import "fmt"

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS vacancies (
	id           UUID PRIMARY KEY,
	url          TEXT NOT NULL,
	url_key      TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL DEFAULT '',
	company      TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	hours        TEXT NOT NULL DEFAULT '',
	rate         TEXT NOT NULL DEFAULT '',
	published_at TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'new',
	embedding    vector(%[1]d),
	scraped_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS vacancies_status_idx ON vacancies (status);

CREATE TABLE IF NOT EXISTS resumes (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	embedding  vector(%[1]d),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS matches (
	id         UUID PRIMARY KEY,
	vacancy_id UUID NOT NULL REFERENCES vacancies (id) ON DELETE CASCADE,
	resume_id  UUID NOT NULL REFERENCES resumes (id) ON DELETE CASCADE,
	score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	fit        BOOLEAN NOT NULL DEFAULT FALSE,
	reason     TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'pending',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (vacancy_id, resume_id)
);
`

const (
	vacancyColumns = `id::text, url, title, company, location, hours, rate, published_at, description, source, status, embedding, scraped_at, updated_at`
	resumeColumns  = `id::text, name, email, text, active, embedding, created_at, updated_at`
	matchColumns   = `id::text, vacancy_id::text, resume_id::text, score, fit, reason, message, similarity, status, error, created_at`
)

func schema(dimensions int) string {
	return fmt.Sprintf(schemaTemplate, dimensions)
}
