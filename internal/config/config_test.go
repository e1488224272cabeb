package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

const sampleYAML = `
board:
  listing-url: https://board.example.com/vacatures
  username: recruiter@example.com
  scroll-delay: 2s
  allowed-domains: [board.example.com]
filters:
  exclude-companies: [Acme]
ai:
  provider: gemini
  minimum-fit-score: 0.7
storage:
  backend: airtable
  airtable:
    base-id: appXYZ
  fields:
    vacancy:
      rate: Uurtarief
schedule:
  hours: "8-18"
  days: [mon, tue, wed]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vacancy-matcher.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesFileDefaultsAndEnv(t *testing.T) {
	t.Setenv("VM_AI_GEMINI_API_KEY", "from-env")
	t.Setenv("VM_STORAGE_AIRTABLE_TOKEN", "pat123")

	cfg, err := Load(viper.New(), writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Board.ScrollDelay != 2*time.Second {
		t.Fatalf("expected scroll delay 2s, got %s", cfg.Board.ScrollDelay)
	}
	if cfg.Board.PageTimeout != 30*time.Second {
		t.Fatalf("expected default page timeout, got %s", cfg.Board.PageTimeout)
	}
	if cfg.Board.Login.Submit == "" {
		t.Fatal("expected default submit selector")
	}
	if cfg.AI.Gemini.APIKey != "from-env" {
		t.Fatalf("expected api key from env, got %q", cfg.AI.Gemini.APIKey)
	}
	if cfg.Storage.Airtable.Token != "pat123" {
		t.Fatalf("expected airtable token from env, got %q", cfg.Storage.Airtable.Token)
	}
	if cfg.Storage.Airtable.Tables.Vacancies != "Vacatures" {
		t.Fatalf("expected dutch default table name, got %q", cfg.Storage.Airtable.Tables.Vacancies)
	}
	if cfg.Storage.Fields["vacancy"]["rate"] != "Uurtarief" {
		t.Fatalf("expected field override, got %v", cfg.Storage.Fields)
	}
	if len(cfg.Schedule.Days) != 3 {
		t.Fatalf("expected 3 days, got %v", cfg.Schedule.Days)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "nil", cfg: nil, wantErr: "config is required"},
		{name: "no storage", cfg: &Config{}, wantErr: "storage section"},
		{
			name:    "unknown backend",
			cfg:     &Config{Storage: &StorageConfig{Backend: "mysql"}},
			wantErr: "unknown storage backend",
		},
		{
			name:    "postgres without dsn",
			cfg:     &Config{Storage: &StorageConfig{Backend: "postgres", Postgres: &PostgresConfig{}}},
			wantErr: "dsn",
		},
		{
			name: "score out of range",
			cfg: &Config{
				Storage: &StorageConfig{Backend: "sqlite", SQLite: &SQLiteConfig{Path: "db"}},
				AI:      &AIConfig{MinimumFitScore: 7},
			},
			wantErr: "minimum-fit-score",
		},
		{
			name: "valid sqlite",
			cfg:  &Config{Storage: &StorageConfig{Backend: "sqlite", SQLite: &SQLiteConfig{Path: "db"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
