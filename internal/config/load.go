package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. VM_STORAGE_BACKEND.
	EnvPrefix = "VM"
	// DefaultName is the config file name looked up in the working directory.
	DefaultName = "vacancy-matcher"
)

// SetDefaults registers default values. Every key that may come from the
// environment needs a default so that viper includes it in Unmarshal.
func SetDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"board.name":                        "board",
		"board.login-url":                   "",
		"board.listing-url":                 "",
		"board.username":                    "",
		"board.password":                    "",
		"board.password-file":               "",
		"board.login.username-selector":     `input[name="username"]`,
		"board.login.password-selector":     `input[name="password"]`,
		"board.login.submit-selector":       `button[type="submit"]`,
		"board.login.ready-selector":        "body",
		"board.listing.item-selector":       "article",
		"board.listing.link-selector":       "a",
		"board.listing.title-selector":      "h2",
		"board.listing.company-selector":    ".company",
		"board.listing.location-selector":   ".location",
		"board.listing.next-selector":       "",
		"board.detail.title-selector":       "h1",
		"board.detail.company-selector":     ".company",
		"board.detail.location-selector":    ".location",
		"board.detail.hours-selector":       ".hours",
		"board.detail.rate-selector":        ".rate",
		"board.detail.description-selector": ".description",
		"board.detail.published-selector":   "time",
		"board.scrolls":                     3,
		"board.scroll-delay":                time.Second,
		"board.page-timeout":                30 * time.Second,
		"board.max-pages":                   1,
		"board.max-postings":                0,
		"board.parallelism":                 4,
		"board.headless":                    true,
		"board.chrome-path":                 "",
		"board.user-agent":                  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",

		"filters.exclude-file": "",

		"ai.provider":               "openai",
		"ai.minimum-fit-score":      0.6,
		"ai.candidates":             5,
		"ai.max-retries":            3,
		"ai.max-log-length":         200,
		"ai.prompt.instructions":    "",
		"ai.openai.api-key":         "",
		"ai.openai.api-key-file":    "",
		"ai.openai.model":           "gpt-4o-mini",
		"ai.openai.base-url":        "",
		"ai.gemini.api-key":         "",
		"ai.gemini.api-key-file":    "",
		"ai.gemini.model":           "gemini-2.5-flash",
		"ai.embedding.host":         "https://api.openai.com/v1",
		"ai.embedding.model":        "text-embedding-3-small",
		"ai.embedding.api-key":      "",
		"ai.embedding.api-key-file": "",

		"storage.backend":                   "sqlite",
		"storage.sqlite.path":               "vacancy-matcher.db",
		"storage.postgres.dsn":              "",
		"storage.postgres.dsn-file":         "",
		"storage.postgres.dimensions":       1536,
		"storage.supabase.url":              "",
		"storage.supabase.key":              "",
		"storage.supabase.key-file":         "",
		"storage.supabase.match-function":   "match_resumes",
		"storage.supabase.tables.vacancies": "vacancies",
		"storage.supabase.tables.resumes":   "resumes",
		"storage.supabase.tables.matches":   "matches",
		"storage.airtable.base-url":         "https://api.airtable.com",
		"storage.airtable.base-id":          "",
		"storage.airtable.token":            "",
		"storage.airtable.token-file":       "",
		"storage.airtable.tables.vacancies": "Vacatures",
		"storage.airtable.tables.resumes":   "Kandidaten",
		"storage.airtable.tables.matches":   "Matches",
		"storage.nocodb.url":                "",
		"storage.nocodb.token":              "",
		"storage.nocodb.token-file":         "",
		"storage.dynamodb.region":           "",
		"storage.dynamodb.endpoint":         "",
		"storage.dynamodb.create-tables":    false,
		"storage.dynamodb.tables.vacancies": "vacancies",
		"storage.dynamodb.tables.resumes":   "resumes",
		"storage.dynamodb.tables.matches":   "matches",

		"schedule.spec":         "@every 30m",
		"schedule.timezone":     "Local",
		"schedule.hours":        "",
		"schedule.run-on-start": false,

		"api.listen":        ":8080",
		"api.username":      "",
		"api.password":      "",
		"api.password-file": "",
		"api.cache-ttl":     time.Minute,
		"api.cache-size":    int64(64 << 20),

		"export.dir":         ".",
		"export.s3.bucket":   "",
		"export.s3.prefix":   "",
		"export.s3.region":   "",
		"export.s3.endpoint": "",
	}

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Load reads .env (if present), the config file and environment overrides into a Config.
// When cfgFile is empty a missing default config file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return config, nil
}
