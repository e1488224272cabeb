// Package backend opens the store.Store named in the storage configuration.
package backend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/secrets"
	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/store/dynamo"
	"github.com/spigell/vacancy-matcher/internal/store/memory"
	"github.com/spigell/vacancy-matcher/internal/store/postgres"
	"github.com/spigell/vacancy-matcher/internal/store/rest"
	"github.com/spigell/vacancy-matcher/internal/store/sqlite"
)

func Open(ctx context.Context, cfg *config.StorageConfig, log *zap.Logger) (store.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	log = logger.Named(log, "store").With(zap.String(logger.FieldBackend, name))

	switch name {
	case "memory":
		return memory.New(), nil

	case "sqlite":
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("sqlite: path is required")
		}
		return opened(sqlite.Open(ctx, cfg.SQLite.Path, log))

	case "postgres":
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres: dsn is required")
		}
		dsn, err := secrets.Load(secrets.Source{Name: "postgres dsn", Value: cfg.Postgres.DSN, File: cfg.Postgres.DSNFile})
		if err != nil {
			return nil, err
		}
		return opened(postgres.Open(ctx, dsn, cfg.Postgres.Dimensions, log))

	case "supabase":
		c := cfg.Supabase
		if c == nil {
			return nil, fmt.Errorf("supabase: url and key are required")
		}
		key, err := secrets.Load(secrets.Source{Name: "supabase key", Value: c.Key, File: c.KeyFile})
		if err != nil {
			return nil, err
		}
		return opened(rest.NewSupabase(rest.SupabaseOptions{
			Key:           key,
			MatchFunction: c.MatchFunction,
			Tables:        restTables(c.Tables),
			Fields:        cfg.Fields,
			Client:        rest.ClientOptions{BaseURL: strings.TrimRight(c.URL, "/")},
		}, log))

	case "airtable":
		c := cfg.Airtable
		if c == nil {
			return nil, fmt.Errorf("airtable: base id and token are required")
		}
		token, err := secrets.Load(secrets.Source{Name: "airtable token", Value: c.Token, File: c.TokenFile})
		if err != nil {
			return nil, err
		}
		return opened(rest.NewAirtable(rest.AirtableOptions{
			BaseID: c.BaseID,
			Token:  token,
			Tables: restTables(c.Tables),
			Fields: cfg.Fields,
			Client: rest.ClientOptions{BaseURL: strings.TrimRight(c.BaseURL, "/")},
		}, log))

	case "nocodb":
		c := cfg.NocoDB
		if c == nil {
			return nil, fmt.Errorf("nocodb: url and token are required")
		}
		token, err := secrets.Load(secrets.Source{Name: "nocodb token", Value: c.Token, File: c.TokenFile})
		if err != nil {
			return nil, err
		}
		return opened(rest.NewNocoDB(rest.NocoDBOptions{
			Token:  token,
			Tables: restTables(c.Tables),
			Fields: cfg.Fields,
			Client: rest.ClientOptions{BaseURL: strings.TrimRight(c.URL, "/")},
		}, log))

	case "dynamodb":
		c := cfg.DynamoDB
		if c == nil {
			return nil, fmt.Errorf("dynamodb: region is required")
		}
		return opened(dynamo.Open(ctx, dynamo.Options{
			Region:       c.Region,
			Endpoint:     c.Endpoint,
			CreateTables: c.CreateTables,
			Tables: dynamo.Tables{
				Vacancies: c.Tables.Vacancies,
				Resumes:   c.Tables.Resumes,
				Matches:   c.Tables.Matches,
			},
		}, log))
	}

	return nil, fmt.Errorf("%w: %q", store.ErrUnknownBackend, cfg.Backend)
}

func restTables(t config.Tables) rest.Tables {
	return rest.Tables{Vacancies: t.Vacancies, Resumes: t.Resumes, Matches: t.Matches}
}

// opened avoids handing out a typed nil store alongside an error.
func opened[S store.Store](s S, err error) (store.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
