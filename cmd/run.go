package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape the board once, store new vacancies and match them against résumés",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("dry-run", false, "scrape and filter only; write nothing and call no model")
	runCmd.Flags().Bool("skip-match", false, "store vacancies without matching them")
	runCmd.Flags().StringSlice("disable-filter", nil, "filter steps to skip (known_urls, companies, keywords, exclude_file)")
}

func run(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	config, logger := setup()
	logger.Info("starting the vacancy-matcher", zap.String("version", version))

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	skipMatch, _ := cmd.Flags().GetBool("skip-match")
	disabled, _ := cmd.Flags().GetStringSlice("disable-filter")

	comp, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}
	defer comp.Close()

	if err := comp.withPipeline(ctx, config, logger, !dryRun && !skipMatch, disabled); err != nil {
		logger.Fatal("preparing the run", zap.Error(err))
	}

	stats, err := comp.pipeline.Run(ctx, pipeline.Options{DryRun: dryRun, SkipMatch: skipMatch})
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			logger.Info("exiting", zap.String("reason", "another run is in progress"))
			return
		}
		logger.Error("run failed", zap.Error(err))
		comp.Close()
		cancel()
		// logger.Fatal skips deferred calls, so release resources first.
		logger.Fatal("exiting", zap.String("reason", "run failed"))
	}

	logger.Info("done", stats.Fields()...)
}
