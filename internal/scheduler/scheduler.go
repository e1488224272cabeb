// Package scheduler triggers pipeline runs on a cron schedule inside a time window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/pipeline"
)

const DefaultSpec = "@every 30m"

// RunFunc performs one pipeline pass.
type RunFunc func(ctx context.Context) error

type Scheduler struct {
	spec       string
	location   *time.Location
	window     Window
	runOnStart bool
	run        RunFunc
	logger     *zap.Logger
	now        func() time.Time
}

func New(cfg *config.ScheduleConfig, run RunFunc, log *zap.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("run function is required")
	}
	if cfg == nil {
		cfg = &config.ScheduleConfig{}
	}

	spec := strings.TrimSpace(cfg.Spec)
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}

	location := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		var err error
		if location, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
		}
	}

	window, err := ParseWindow(cfg.Hours, cfg.Days)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule window: %w", err)
	}

	return &Scheduler{
		spec:       spec,
		location:   location,
		window:     window,
		runOnStart: cfg.RunOnStart,
		run:        run,
		logger:     logger.Named(log, "scheduler"),
		now:        time.Now,
	}, nil
}

// Start runs the schedule until ctx is cancelled and waits for a running job to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	cronLog := cronLogger{s.logger.Sugar()}
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	id, err := c.AddFunc(s.spec, func() { s.tick(ctx) })
	if err != nil {
		return fmt.Errorf("scheduling %q: %w", s.spec, err)
	}

	c.Start()
	s.logger.Info("scheduler started",
		zap.String("spec", s.spec),
		zap.String("timezone", s.location.String()),
		zap.Stringer("window", s.window),
		zap.Time("next", c.Entry(id).Next),
	)

	if s.runOnStart {
		go c.Entry(id).WrappedJob.Run()
	}

	<-ctx.Done()
	s.logger.Info("stopping scheduler")
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().In(s.location)
	if !s.window.Contains(now) {
		s.logger.Debug("outside schedule window, skipping", zap.Time("now", now), zap.Stringer("window", s.window))
		return
	}
	if ctx.Err() != nil {
		return
	}

	err := s.run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		s.logger.Info("previous run still in progress, skipping")
	case err != nil:
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
