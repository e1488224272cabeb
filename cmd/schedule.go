package cmd

import (
	"context"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/pipeline"
	"github.com/spigell/vacancy-matcher/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline periodically inside the configured hours and days",
	Run: func(cmd *cobra.Command, _ []string) {
		schedule(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().Bool("serve", false, "serve the HTTP API alongside the scheduler")
	scheduleCmd.Flags().Bool("skip-match", false, "store vacancies without matching them")
}

func schedule(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	config, logger := setup()
	logger.Info("starting the vacancy-matcher scheduler", zap.String("version", version))

	withAPI, _ := cmd.Flags().GetBool("serve")
	skipMatch, _ := cmd.Flags().GetBool("skip-match")

	comp, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}
	defer comp.Close()

	if err := comp.withPipeline(ctx, config, logger, !skipMatch, nil); err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	sched, err := scheduler.New(config.Schedule, func(ctx context.Context) error {
		_, err := comp.pipeline.Run(ctx, pipeline.Options{SkipMatch: skipMatch})
		return err
	}, logger)
	if err != nil {
		logger.Fatal("preparing the scheduler", zap.Error(err))
	}

	var wg sync.WaitGroup
	if withAPI {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runAPI(ctx, config, comp, logger); err != nil {
				logger.Error("api stopped", zap.Error(err))
				cancel()
			}
		}()
	}

	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler stopped", zap.Error(err))
		cancel()
	}
	wg.Wait()
}
