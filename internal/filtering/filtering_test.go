package filtering

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

type staticURLs struct {
	urls map[string]struct{}
	err  error
}

func (s staticURLs) KnownURLs(context.Context) (map[string]struct{}, error) {
	return s.urls, s.err
}

func sample() *vacancy.Vacancies {
	return &vacancy.Vacancies{Items: []*vacancy.Vacancy{
		{URL: "https://board.example/jobs/1", Title: "Go Developer", Company: "Acme", Description: "Kubernetes and Go"},
		{URL: "https://board.example/jobs/2", Title: "PHP Developer", Company: "Initech", Description: "Legacy PHP"},
		{URL: "https://board.example/jobs/3", Title: "SRE", Company: "ACME ", Description: "On call"},
		{URL: "https://board.example/jobs/4", Title: "Data Engineer", Company: "Globex", Description: "Spark and Go"},
	}}
}

func urls(v []*vacancy.Vacancy) []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		out = append(out, item.URL)
	}
	return out
}

func TestRunAppliesStepsInOrder(t *testing.T) {
	dir := t.TempDir()
	excludeFile := filepath.Join(dir, "exclude.json")
	if err := AppendExcluded(excludeFile, []*vacancy.Vacancy{{URL: "https://board.example/jobs/4/"}}, time.Now()); err != nil {
		t.Fatalf("seed exclude file: %v", err)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	deps := Deps{
		Logger: zap.New(core),
		Known:  staticURLs{urls: map[string]struct{}{"https://board.example/jobs/1": {}}},
	}
	cfg := &Config{
		Companies:       []string{"acme"},
		ExcludeKeywords: []string{"php"},
		ExcludeFile:     excludeFile,
	}

	left, dropped, err := Run(context.Background(), cfg, deps, Default(), sample())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if left.Len() != 0 {
		t.Fatalf("expected every vacancy filtered, left %v", left.URLs())
	}

	want := []string{
		"https://board.example/jobs/1",
		"https://board.example/jobs/3",
		"https://board.example/jobs/2",
		"https://board.example/jobs/4",
	}
	got := urls(dropped)
	if len(got) != len(want) {
		t.Fatalf("expected dropped %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dropped[%d]: expected %s, got %s", i, want[i], got[i])
		}
	}

	steps := logs.FilterMessage("filter step").All()
	if len(steps) != 4 {
		t.Fatalf("expected 4 filter step logs, got %d", len(steps))
	}
	if name := steps[0].ContextMap()["name"]; name != "known_urls" {
		t.Fatalf("expected known_urls first, got %v", name)
	}
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		exclude []string
		require []string
		want    []string
	}{
		{
			name: "no keywords keeps everything",
			want: []string{"https://board.example/jobs/1", "https://board.example/jobs/2", "https://board.example/jobs/3", "https://board.example/jobs/4"},
		},
		{
			name:    "exclude is case insensitive",
			exclude: []string{"  PHP "},
			want:    []string{"https://board.example/jobs/1", "https://board.example/jobs/3", "https://board.example/jobs/4"},
		},
		{
			name:    "require keeps vacancies with any keyword",
			require: []string{"go"},
			want:    []string{"https://board.example/jobs/1", "https://board.example/jobs/4"},
		},
		{
			name:    "exclude wins over require",
			exclude: []string{"spark"},
			require: []string{"go"},
			want:    []string{"https://board.example/jobs/1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := NewKeywords()
			if err := f.Validate(&Config{ExcludeKeywords: tt.exclude, RequireKeywords: tt.require}); err != nil {
				t.Fatalf("validate: %v", err)
			}
			v, step, err := f.Apply(context.Background(), Deps{}, sample())
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			got := v.URLs()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
			if step.Initial != 4 || step.Left != len(tt.want) || step.Dropped != 4-len(tt.want) {
				t.Fatalf("unexpected step %+v", step)
			}
		})
	}
}

func TestKeywordsRejectsConflicts(t *testing.T) {
	t.Parallel()

	err := NewKeywords().Validate(&Config{ExcludeKeywords: []string{"Go"}, RequireKeywords: []string{"go"}})
	if err == nil {
		t.Fatal("expected conflict error")
	}
}

func TestRunStopsOnStepError(t *testing.T) {
	t.Parallel()

	deps := Deps{Known: staticURLs{err: errors.New("store down")}}
	if _, _, err := Run(context.Background(), nil, deps, Default(), sample()); err == nil {
		t.Fatal("expected error from known_urls step")
	}
}

func TestDisabledStepIsSkipped(t *testing.T) {
	t.Parallel()

	steps := Default()
	DisableByName(steps, "known_urls", "dry run")

	deps := Deps{Known: staticURLs{err: errors.New("must not be called")}}
	left, dropped, err := Run(context.Background(), &Config{}, deps, steps, sample())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if left.Len() != 4 || len(dropped) != 0 {
		t.Fatalf("expected nothing filtered, left %d dropped %d", left.Len(), len(dropped))
	}

	statuses := Describe(steps)
	if statuses[0].Enabled || statuses[0].Reason != "dry run" {
		t.Fatalf("unexpected status %+v", statuses[0])
	}
}

func TestDisableEachFilterByName(t *testing.T) {
	t.Parallel()

	excludeFile := filepath.Join(t.TempDir(), "exclude.json")
	if err := AppendExcluded(excludeFile, []*vacancy.Vacancy{{URL: "https://board.example/jobs/4"}}, time.Now()); err != nil {
		t.Fatalf("seed exclude file: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
		deps Deps
	}{
		{
			name: "known_urls",
			deps: Deps{Known: staticURLs{urls: map[string]struct{}{"https://board.example/jobs/1": {}}}},
		},
		{name: "companies", cfg: Config{Companies: []string{"acme"}}},
		{name: "keywords", cfg: Config{ExcludeKeywords: []string{"php"}}},
		{name: "exclude_file", cfg: Config{ExcludeFile: excludeFile}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			steps := Default()
			DisableByName(steps, tt.name, "disabled from the command line")

			left, dropped, err := Run(context.Background(), &tt.cfg, tt.deps, steps, sample())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if left.Len() != 4 || len(dropped) != 0 {
				t.Fatalf("disabled %s filter still dropped %v", tt.name, urls(dropped))
			}

			for _, st := range Describe(steps) {
				if st.Name != tt.name {
					if !st.Enabled {
						t.Fatalf("filter %s unexpectedly disabled", st.Name)
					}
					continue
				}
				if st.Enabled || st.Reason != "disabled from the command line" {
					t.Fatalf("unexpected status %+v", st)
				}
			}
		})
	}
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(&config.FiltersConfig{ExcludeCompanies: []string{"Acme"}, ExcludeFile: " exclude.json "})
	if len(cfg.Companies) != 1 || cfg.ExcludeFile != "exclude.json" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if NewConfig(nil) == nil {
		t.Fatal("nil section must produce an empty config")
	}
}

func TestAppendExcludedDedupes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exclude.json")
	items := []*vacancy.Vacancy{{URL: "https://board.example/jobs/1", Company: "Acme"}}
	for i := 0; i < 2; i++ {
		if err := AppendExcluded(path, items, time.Now()); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	excluded, err := vacancy.LoadExcluded(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(excluded.Items) != 1 {
		t.Fatalf("expected a single entry, got %d", len(excluded.Items))
	}
}
