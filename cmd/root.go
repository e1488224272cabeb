package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/logger"
)

const (
	app = "vacancy-matcher"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "vacancy-matcher scrapes a vacancy board and matches new postings against stored résumés",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is vacancy-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file")

	for _, name := range []string{"debug", "json", "log-file"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			log.Fatalf("binding %s flag: %v", name, err)
		}
	}
}

// setup builds the process logger and loads the configuration. Any failure is fatal.
func setup() (*config.Config, *zap.Logger) {
	logger, err := logger.New(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
		File:  viper.GetString("log-file"),
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		logger.Fatal("loading config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(cfg), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return cfg, logger
}

// redacted returns a copy of cfg that is safe to log.
func redacted(cfg *config.Config) *config.Config {
	out := *cfg
	if cfg.Board != nil {
		board := *cfg.Board
		board.Password = mask(board.Password)
		out.Board = &board
	}
	if cfg.API != nil {
		api := *cfg.API
		api.Password = mask(api.Password)
		out.API = &api
	}
	if cfg.AI != nil {
		ai := *cfg.AI
		if ai.OpenAI != nil {
			openai := *ai.OpenAI
			openai.APIKey = mask(openai.APIKey)
			ai.OpenAI = &openai
		}
		if ai.Gemini != nil {
			gemini := *ai.Gemini
			gemini.APIKey = mask(gemini.APIKey)
			ai.Gemini = &gemini
		}
		if ai.Embedding != nil {
			embedding := *ai.Embedding
			embedding.APIKey = mask(embedding.APIKey)
			ai.Embedding = &embedding
		}
		out.AI = &ai
	}
	// Storage credentials live in nested backend sections; drop them entirely.
	if cfg.Storage != nil {
		out.Storage = &config.StorageConfig{Backend: cfg.Storage.Backend}
	}
	return &out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
