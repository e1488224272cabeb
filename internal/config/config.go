package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the full application configuration decoded from the config file and environment.
type Config struct {
	Board    *BoardConfig    `mapstructure:"board"`
	Filters  *FiltersConfig  `mapstructure:"filters"`
	AI       *AIConfig       `mapstructure:"ai"`
	Storage  *StorageConfig  `mapstructure:"storage"`
	Schedule *ScheduleConfig `mapstructure:"schedule"`
	API      *APIConfig      `mapstructure:"api"`
	Export   *ExportConfig   `mapstructure:"export"`
}

type BoardConfig struct {
	Name           string          `mapstructure:"name"`
	LoginURL       string          `mapstructure:"login-url"`
	ListingURL     string          `mapstructure:"listing-url"`
	Username       string          `mapstructure:"username"`
	Password       string          `mapstructure:"password"`
	PasswordFile   string          `mapstructure:"password-file"`
	Login          LoginSelectors  `mapstructure:"login"`
	Listing        ListingSelector `mapstructure:"listing"`
	Detail         DetailSelectors `mapstructure:"detail"`
	Scrolls        int             `mapstructure:"scrolls"`
	ScrollDelay    time.Duration   `mapstructure:"scroll-delay"`
	PageTimeout    time.Duration   `mapstructure:"page-timeout"`
	MaxPages       int             `mapstructure:"max-pages"`
	MaxPostings    int             `mapstructure:"max-postings"`
	Parallelism    int             `mapstructure:"parallelism"`
	Headless       bool            `mapstructure:"headless"`
	ChromePath     string          `mapstructure:"chrome-path"`
	UserAgent      string          `mapstructure:"user-agent"`
	AllowedDomains []string        `mapstructure:"allowed-domains"`
}

type LoginSelectors struct {
	Username string `mapstructure:"username-selector"`
	Password string `mapstructure:"password-selector"`
	Submit   string `mapstructure:"submit-selector"`
	Ready    string `mapstructure:"ready-selector"`
}

type ListingSelector struct {
	Item     string `mapstructure:"item-selector"`
	Link     string `mapstructure:"link-selector"`
	Title    string `mapstructure:"title-selector"`
	Company  string `mapstructure:"company-selector"`
	Location string `mapstructure:"location-selector"`
	Next     string `mapstructure:"next-selector"`
}

type DetailSelectors struct {
	Title       string `mapstructure:"title-selector"`
	Company     string `mapstructure:"company-selector"`
	Location    string `mapstructure:"location-selector"`
	Hours       string `mapstructure:"hours-selector"`
	Rate        string `mapstructure:"rate-selector"`
	Description string `mapstructure:"description-selector"`
	Published   string `mapstructure:"published-selector"`
}

type FiltersConfig struct {
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
	ExcludeKeywords  []string `mapstructure:"exclude-keywords"`
	RequireKeywords  []string `mapstructure:"require-keywords"`
	ExcludeFile      string   `mapstructure:"exclude-file"`
}

type AIConfig struct {
	Provider        string           `mapstructure:"provider"`
	MinimumFitScore float64          `mapstructure:"minimum-fit-score"`
	Candidates      int              `mapstructure:"candidates"`
	MaxRetries      int              `mapstructure:"max-retries"`
	MaxLogLength    int              `mapstructure:"max-log-length"`
	Prompt          PromptConfig     `mapstructure:"prompt"`
	OpenAI          *OpenAIConfig    `mapstructure:"openai"`
	Gemini          *GeminiConfig    `mapstructure:"gemini"`
	Embedding       *EmbeddingConfig `mapstructure:"embedding"`
}

type PromptConfig struct {
	ExtraCriteria     string `mapstructure:"extra-criteria"`
	DealBreakers      string `mapstructure:"deal-breakers"`
	CustomKeywords    string `mapstructure:"keywords"`
	Tone              string `mapstructure:"tone"`
	RegionConstraints string `mapstructure:"region-constraints"`
	UserInstructions  string `mapstructure:"instructions"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type EmbeddingConfig struct {
	Host       string `mapstructure:"host"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type StorageConfig struct {
	Backend  string                       `mapstructure:"backend"`
	Fields   map[string]map[string]string `mapstructure:"fields"`
	SQLite   *SQLiteConfig                `mapstructure:"sqlite"`
	Postgres *PostgresConfig              `mapstructure:"postgres"`
	Supabase *SupabaseConfig              `mapstructure:"supabase"`
	Airtable *AirtableConfig              `mapstructure:"airtable"`
	NocoDB   *NocoDBConfig                `mapstructure:"nocodb"`
	DynamoDB *DynamoDBConfig              `mapstructure:"dynamodb"`
}

// Tables names the remote table per entity.
type Tables struct {
	Vacancies string `mapstructure:"vacancies"`
	Resumes   string `mapstructure:"resumes"`
	Matches   string `mapstructure:"matches"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN        string `mapstructure:"dsn"`
	DSNFile    string `mapstructure:"dsn-file"`
	Dimensions int    `mapstructure:"dimensions"`
}

type SupabaseConfig struct {
	URL           string `mapstructure:"url"`
	Key           string `mapstructure:"key"`
	KeyFile       string `mapstructure:"key-file"`
	MatchFunction string `mapstructure:"match-function"`
	Tables        Tables `mapstructure:"tables"`
}

type AirtableConfig struct {
	BaseURL   string `mapstructure:"base-url"`
	BaseID    string `mapstructure:"base-id"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	Tables    Tables `mapstructure:"tables"`
}

type NocoDBConfig struct {
	URL       string `mapstructure:"url"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	Tables    Tables `mapstructure:"tables"`
}

type DynamoDBConfig struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	CreateTables bool   `mapstructure:"create-tables"`
	Tables       Tables `mapstructure:"tables"`
}

type ScheduleConfig struct {
	Spec       string   `mapstructure:"spec"`
	Timezone   string   `mapstructure:"timezone"`
	Hours      string   `mapstructure:"hours"`
	Days       []string `mapstructure:"days"`
	RunOnStart bool     `mapstructure:"run-on-start"`
}

type APIConfig struct {
	Listen       string        `mapstructure:"listen"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	PasswordFile string        `mapstructure:"password-file"`
	CacheTTL     time.Duration `mapstructure:"cache-ttl"`
	CacheSize    int64         `mapstructure:"cache-size"`
}

type ExportConfig struct {
	Dir string    `mapstructure:"dir"`
	S3  *S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// Backends supported by the storage layer.
var Backends = []string{"memory", "sqlite", "postgres", "supabase", "airtable", "nocodb", "dynamodb"}

// Validate checks cross-field requirements that defaults cannot cover.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}
	if c.Storage == nil {
		return errors.New("storage section is required")
	}

	var errs []error

	backend := strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch backend {
	case "memory":
	case "sqlite":
		if c.Storage.SQLite == nil || strings.TrimSpace(c.Storage.SQLite.Path) == "" {
			errs = append(errs, errors.New("storage.sqlite.path is required"))
		}
	case "postgres":
		if c.Storage.Postgres == nil || (c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "") {
			errs = append(errs, errors.New("storage.postgres.dsn or dsn-file is required"))
		}
	case "supabase":
		if c.Storage.Supabase == nil || c.Storage.Supabase.URL == "" {
			errs = append(errs, errors.New("storage.supabase.url is required"))
		}
	case "airtable":
		if c.Storage.Airtable == nil || c.Storage.Airtable.BaseID == "" {
			errs = append(errs, errors.New("storage.airtable.base-id is required"))
		}
	case "nocodb":
		if c.Storage.NocoDB == nil || c.Storage.NocoDB.URL == "" {
			errs = append(errs, errors.New("storage.nocodb.url is required"))
		}
		if c.Storage.NocoDB != nil && (c.Storage.NocoDB.Tables.Vacancies == "" || c.Storage.NocoDB.Tables.Resumes == "" || c.Storage.NocoDB.Tables.Matches == "") {
			errs = append(errs, errors.New("storage.nocodb.tables must name vacancies, resumes and matches table ids"))
		}
	case "dynamodb":
		if c.Storage.DynamoDB == nil || c.Storage.DynamoDB.Region == "" {
			errs = append(errs, errors.New("storage.dynamodb.region is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q (supported: %s)", c.Storage.Backend, strings.Join(Backends, ", ")))
	}

	if c.AI != nil {
		switch strings.ToLower(strings.TrimSpace(c.AI.Provider)) {
		case "", "openai", "gemini":
		default:
			errs = append(errs, fmt.Errorf("unknown ai provider %q", c.AI.Provider))
		}
		if c.AI.MinimumFitScore < 0 || c.AI.MinimumFitScore > 1 {
			errs = append(errs, fmt.Errorf("ai.minimum-fit-score must be within [0,1], got %v", c.AI.MinimumFitScore))
		}
	}

	if c.Board != nil && strings.TrimSpace(c.Board.ListingURL) == "" {
		errs = append(errs, errors.New("board.listing-url is required"))
	}

	return errors.Join(errs...)
}
