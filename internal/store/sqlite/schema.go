package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS vacancies (
	id           TEXT PRIMARY KEY,
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
	embedding    TEXT,
	scraped_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS vacancies_status_idx ON vacancies (status);

CREATE TABLE IF NOT EXISTS resumes (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1,
	embedding  TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS matches (
	id         TEXT PRIMARY KEY,
	vacancy_id TEXT NOT NULL REFERENCES vacancies (id) ON DELETE CASCADE,
	resume_id  TEXT NOT NULL REFERENCES resumes (id) ON DELETE CASCADE,
	score      REAL NOT NULL DEFAULT 0,
	fit        INTEGER NOT NULL DEFAULT 0,
	reason     TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	similarity REAL NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'pending',
	error      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	UNIQUE (vacancy_id, resume_id)
);
`

const (
	vacancyColumns = `id, url, title, company, location, hours, rate, published_at, description, source, status, embedding, scraped_at, updated_at`
	resumeColumns  = `id, name, email, text, active, embedding, created_at, updated_at`
	matchColumns   = `id, vacancy_id, resume_id, score, fit, reason, message, similarity, status, error, created_at`
)
