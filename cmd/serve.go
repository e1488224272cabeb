package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/api"
	"github.com/spigell/vacancy-matcher/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API over stored vacancies, résumés and matches",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, logger := setup()
	logger.Info("starting the vacancy-matcher api", zap.String("version", version))

	comp, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}
	defer comp.Close()

	if err := comp.withEmbedder(cfg, logger, false); err != nil {
		logger.Fatal("preparing embedder", zap.Error(err))
	}
	if err := comp.withPipeline(ctx, cfg, logger, comp.embedder != nil, nil); err != nil {
		logger.Warn("runs are disabled", zap.Error(err))
	}

	if err := runAPI(ctx, cfg, comp, logger); err != nil {
		logger.Error("api stopped", zap.Error(err))
	}
}

func runAPI(ctx context.Context, cfg *config.Config, comp *components, logger *zap.Logger) error {
	deps := api.Deps{
		Store:    comp.store,
		Embedder: comp.embedder,
		Logger:   logger,
	}
	if comp.pipeline != nil {
		deps.Runner = comp.pipeline
	}

	server, err := api.New(cfg.API, deps)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
