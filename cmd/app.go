package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/ai"
	"github.com/spigell/vacancy-matcher/internal/ai/provider"
	"github.com/spigell/vacancy-matcher/internal/board"
	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/filtering"
	"github.com/spigell/vacancy-matcher/internal/matching"
	"github.com/spigell/vacancy-matcher/internal/pipeline"
	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/store/backend"
)

// components holds everything a command may need. Fields a command did not
// ask for stay nil.
type components struct {
	store    store.Store
	embedder ai.Embedder
	matcher  *matching.Matcher
	board    *board.Client
	pipeline *pipeline.Pipeline
}

func (c *components) Close() {
	if c.board != nil {
		c.board.Close()
	}
	if c.store != nil {
		_ = c.store.Close()
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	s, err := backend.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Backend, err)
	}
	logger.Info("storage opened", zap.String("backend", cfg.Storage.Backend))
	return &components{store: s}, nil
}

// withEmbedder attaches the embeddings client. It is optional for commands
// that only read; required reports whether a failure is fatal.
func (c *components) withEmbedder(cfg *config.Config, logger *zap.Logger, required bool) error {
	embedder, err := provider.NewEmbedder(cfg.AI, logger)
	if err != nil {
		if required {
			return fmt.Errorf("building embedder: %w", err)
		}
		logger.Warn("embeddings disabled", zap.Error(err))
		return nil
	}
	c.embedder = embedder
	return nil
}

func (c *components) withMatcher(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if c.embedder == nil {
		return fmt.Errorf("matching requires an embedder")
	}
	llm, err := provider.NewMatcher(ctx, cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("building ai matcher: %w", err)
	}
	c.matcher = matching.New(c.store, c.embedder, llm, matching.Options{
		Candidates: cfg.AI.Candidates,
		MinScore:   cfg.AI.MinimumFitScore,
	}, logger)
	return nil
}

// withPipeline builds the board client and the pipeline. When match is false
// no AI component is created, which allows dry runs without API keys.
// Filters named in disabled stay in the chain but are skipped.
func (c *components) withPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger, match bool, disabled []string) error {
	if match {
		if c.embedder == nil {
			if err := c.withEmbedder(cfg, logger, true); err != nil {
				return err
			}
		}
		if err := c.withMatcher(ctx, cfg, logger); err != nil {
			return err
		}
	}

	client, err := board.New(cfg.Board, logger)
	if err != nil {
		return fmt.Errorf("building board client: %w", err)
	}
	c.board = client

	deps := pipeline.Deps{
		Store:       c.store,
		Board:       client,
		Embedder:    c.embedder,
		Filters:     filtering.NewConfig(cfg.Filters),
		Parallelism: cfg.Board.Parallelism,
		Logger:      logger,
	}
	if c.matcher != nil {
		deps.Matcher = c.matcher
	}

	steps := filtering.Default()
	for _, name := range disabled {
		filtering.DisableByName(steps, name, "disabled from the command line")
	}
	for _, st := range filtering.Describe(steps) {
		logger.Debug("filter step", zap.String("name", st.Name), zap.Bool("enabled", st.Enabled))
	}
	deps.Steps = steps

	p, err := pipeline.New(deps)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	c.pipeline = p
	return nil
}
