package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/pipeline"
)

// 2026-10-12 is a Monday.
func at(day, hour int) time.Time {
	return time.Date(2026, 10, day, hour, 30, 0, 0, time.UTC)
}

func TestWindowContains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		hours string
		days  []string
		t     time.Time
		want  bool
	}{
		{name: "unrestricted", t: at(12, 3), want: true},
		{name: "inside hours", hours: "8-18", t: at(12, 8), want: true},
		{name: "end is exclusive", hours: "8-18", t: at(12, 18), want: false},
		{name: "before hours", hours: "8-18", t: at(12, 7), want: false},
		{name: "wrapped evening", hours: "22-6", t: at(12, 23), want: true},
		{name: "wrapped morning", hours: "22-6", t: at(13, 5), want: true},
		{name: "wrapped gap", hours: "22-6", t: at(12, 12), want: false},
		{name: "allowed day", days: []string{"mon", "Tuesday"}, t: at(13, 12), want: true},
		{name: "other day", days: []string{"mon"}, t: at(14, 12), want: false},
		{name: "wrapped morning belongs to previous day", hours: "22-6", days: []string{"fri"}, t: at(17, 2), want: true},
		{name: "wrapped morning of excluded day", hours: "22-6", days: []string{"fri"}, t: at(16, 2), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, err := ParseWindow(tt.hours, tt.days)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := w.Contains(tt.t); got != tt.want {
				t.Fatalf("Contains(%s) = %v, want %v (window %s)", tt.t.Format(time.RFC1123), got, tt.want, w)
			}
		})
	}
}

func TestParseWindowErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		hours string
		days  []string
	}{
		{hours: "8"},
		{hours: "8-8"},
		{hours: "x-18"},
		{hours: "8-25"},
		{days: []string{"someday"}},
	}

	for _, tt := range tests {
		if _, err := ParseWindow(tt.hours, tt.days); err == nil {
			t.Fatalf("expected error for hours %q days %v", tt.hours, tt.days)
		}
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	run := func(context.Context) error { return nil }
	tests := []struct {
		name string
		cfg  *config.ScheduleConfig
		run  RunFunc
	}{
		{name: "missing run", cfg: &config.ScheduleConfig{}},
		{name: "bad spec", cfg: &config.ScheduleConfig{Spec: "every now and then"}, run: run},
		{name: "bad timezone", cfg: &config.ScheduleConfig{Timezone: "Mars/Olympus"}, run: run},
		{name: "bad hours", cfg: &config.ScheduleConfig{Hours: "25-3"}, run: run},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg, tt.run, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	s, err := New(nil, run, nil)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if s.spec != DefaultSpec {
		t.Fatalf("expected default spec, got %q", s.spec)
	}
}

func TestTickHonoursWindow(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	calls := 0
	s, err := New(&config.ScheduleConfig{Hours: "8-18", Timezone: "UTC"}, func(context.Context) error {
		calls++
		return nil
	}, zap.New(core))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.now = func() time.Time { return at(12, 20) }
	s.tick(context.Background())
	if calls != 0 {
		t.Fatal("tick outside the window must not run")
	}
	if logs.FilterMessage("outside schedule window, skipping").Len() != 1 {
		t.Fatal("expected skip log")
	}

	s.now = func() time.Time { return at(12, 9) }
	s.tick(context.Background())
	if calls != 1 {
		t.Fatalf("expected one run, got %d", calls)
	}
}

func TestTickLogsBusyAndFailedRuns(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	var result error
	s, err := New(&config.ScheduleConfig{}, func(context.Context) error { return result }, zap.New(core))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result = fmt.Errorf("wrapped: %w", pipeline.ErrAlreadyRunning)
	s.tick(context.Background())
	if logs.FilterMessage("previous run still in progress, skipping").Len() != 1 {
		t.Fatal("expected busy log")
	}

	result = fmt.Errorf("board down")
	s.tick(context.Background())
	if logs.FilterMessage("scheduled run failed").Len() != 1 {
		t.Fatal("expected failure log")
	}
}

func TestStartRunsOnStartAndStops(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New(&config.ScheduleConfig{Spec: "@every 1h", RunOnStart: true}, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("run-on-start did not trigger")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
