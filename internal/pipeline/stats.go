package pipeline

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RunStats counts what happened during one run. Counters are updated from
// concurrent workers.
type RunStats struct {
	Scraped  atomic.Int64
	Skipped  atomic.Int64
	Filtered atomic.Int64
	Saved    atomic.Int64
	Matched  atomic.Int64
	Fits     atomic.Int64
	Failed   atomic.Int64

	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool
}

// Summary is a plain copy of RunStats.
type Summary struct {
	Scraped   int64     `json:"scraped"`
	Skipped   int64     `json:"skipped"`
	Filtered  int64     `json:"filtered"`
	Saved     int64     `json:"saved"`
	Matched   int64     `json:"matched"`
	Fits      int64     `json:"fits"`
	Failed    int64     `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	DryRun    bool      `json:"dry_run"`
	Error     string    `json:"error,omitempty"`
}

// Summary snapshots the counters.
func (s *RunStats) Summary() Summary {
	return Summary{
		Scraped:   s.Scraped.Load(),
		Skipped:   s.Skipped.Load(),
		Filtered:  s.Filtered.Load(),
		Saved:     s.Saved.Load(),
		Matched:   s.Matched.Load(),
		Fits:      s.Fits.Load(),
		Failed:    s.Failed.Load(),
		StartedAt: s.StartedAt,
		Duration:  s.Duration.Round(time.Millisecond).String(),
		DryRun:    s.DryRun,
	}
}

// Fields renders the counters as log fields.
func (s *RunStats) Fields() []zap.Field {
	return []zap.Field{
		zap.Int64("scraped", s.Scraped.Load()),
		zap.Int64("skipped", s.Skipped.Load()),
		zap.Int64("filtered", s.Filtered.Load()),
		zap.Int64("saved", s.Saved.Load()),
		zap.Int64("matched", s.Matched.Load()),
		zap.Int64("fits", s.Fits.Load()),
		zap.Int64("failed", s.Failed.Load()),
		zap.Duration("duration", s.Duration),
		zap.Bool("dry_run", s.DryRun),
	}
}
