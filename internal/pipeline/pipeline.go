// Package pipeline runs one scrape-and-match pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/ai"
	"github.com/spigell/vacancy-matcher/internal/board"
	"github.com/spigell/vacancy-matcher/internal/filtering"
	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const defaultParallelism = 4

// ErrAlreadyRunning is returned when a run is requested while another one is in progress.
var ErrAlreadyRunning = errors.New("a run is already in progress")

// Scraper returns vacancies not in known.
type Scraper interface {
	Scrape(ctx context.Context, known map[string]struct{}) (*board.ScrapeResult, error)
}

// Matcher scores one vacancy against stored résumés.
type Matcher interface {
	Match(ctx context.Context, v *vacancy.Vacancy) ([]*vacancy.Match, error)
	EnsureResumeEmbeddings(ctx context.Context) (int, error)
}

// Deps wires a Pipeline.
type Deps struct {
	Store    store.Store
	Board    Scraper
	Embedder ai.Embedder
	// Matcher may be nil; matching is then skipped.
	Matcher     Matcher
	Filters     *filtering.Config
	Steps       []filtering.Filter
	Parallelism int
	Logger      *zap.Logger
}

// Options tune a single run.
type Options struct {
	// DryRun scrapes and filters but writes nothing and calls no model.
	DryRun    bool
	SkipMatch bool
}

// Pipeline runs scrape, filter, save and match passes, one at a time.
type Pipeline struct {
	deps    Deps
	logger  *zap.Logger
	now     func() time.Time
	running atomic.Bool

	mu    sync.Mutex
	last  *Summary
	hooks []func(Summary)
}

// New validates deps and applies defaults.
func New(deps Deps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Board == nil {
		return nil, errors.New("board is required")
	}
	if deps.Parallelism <= 0 {
		deps.Parallelism = defaultParallelism
	}
	if deps.Filters == nil {
		deps.Filters = &filtering.Config{}
	}
	if deps.Steps == nil {
		deps.Steps = filtering.Default()
	}

	return &Pipeline{
		deps:   deps,
		logger: logger.Named(deps.Logger, "pipeline"),
		now:    time.Now,
	}, nil
}

// Running reports whether a run is in progress.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Last returns the summary of the last finished run.
func (p *Pipeline) Last() (Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Summary{}, false
	}
	return *p.last, true
}

// OnFinish registers fn to be called with the summary of every finished run.
func (p *Pipeline) OnFinish(fn func(Summary)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, fn)
}

// Run executes one pass. Per-vacancy failures are counted in the stats;
// only setup failures are returned. Concurrent calls get ErrAlreadyRunning.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*RunStats, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer p.running.Store(false)

	return p.execute(ctx, opts)
}

// Start claims the run slot and executes the pass in the background.
func (p *Pipeline) Start(ctx context.Context, opts Options) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	go func() {
		defer p.running.Store(false)
		_, _ = p.execute(ctx, opts)
	}()
	return nil
}

func (p *Pipeline) execute(ctx context.Context, opts Options) (*RunStats, error) {
	stats := &RunStats{StartedAt: p.now().UTC(), DryRun: opts.DryRun}
	err := p.run(ctx, opts, stats)
	stats.Duration = p.now().Sub(stats.StartedAt)

	summary := stats.Summary()
	if err != nil {
		summary.Error = err.Error()
		p.logger.Error("run failed", append(stats.Fields(), zap.Error(err))...)
	} else {
		p.logger.Info("run finished", stats.Fields()...)
	}

	p.mu.Lock()
	p.last = &summary
	hooks := append(([]func(Summary))(nil), p.hooks...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(summary)
	}

	return stats, err
}

func (p *Pipeline) run(ctx context.Context, opts Options, stats *RunStats) error {
	known, err := p.deps.Store.KnownURLs(ctx)
	if err != nil {
		return fmt.Errorf("listing known urls: %w", err)
	}
	if known == nil {
		known = map[string]struct{}{}
	}
	if path := p.deps.Filters.ExcludeFile; path != "" && p.stepEnabled("exclude_file") {
		excluded, err := vacancy.LoadExcluded(path)
		if err != nil {
			return fmt.Errorf("loading exclude file: %w", err)
		}
		for _, u := range excluded.URLs() {
			known[utils.NormalizeURL(u)] = struct{}{}
		}
	}
	p.logger.Info("starting run", zap.Int("known_urls", len(known)), zap.Bool("dry_run", opts.DryRun))

	scraped, err := p.deps.Board.Scrape(ctx, known)
	if err != nil {
		return fmt.Errorf("scraping board: %w", err)
	}
	stats.Scraped.Add(int64(len(scraped.Vacancies)))
	stats.Skipped.Add(int64(scraped.Skipped))
	stats.Failed.Add(int64(scraped.Failed))

	if len(scraped.Vacancies) == 0 {
		p.logger.Info("no new vacancies")
		return nil
	}

	left, dropped, err := filtering.Run(ctx, p.deps.Filters, filtering.Deps{
		Logger: p.logger,
		Known:  p.deps.Store,
	}, p.deps.Steps, &vacancy.Vacancies{Items: scraped.Vacancies})
	if err != nil {
		return fmt.Errorf("filtering: %w", err)
	}
	stats.Filtered.Add(int64(len(dropped)))

	if !opts.DryRun {
		if err := filtering.AppendExcluded(p.deps.Filters.ExcludeFile, dropped, p.now()); err != nil {
			p.logger.Warn("updating exclude file failed", zap.Error(err))
		}
	}

	match := p.deps.Matcher != nil && !opts.SkipMatch && !opts.DryRun
	if match {
		if n, err := p.deps.Matcher.EnsureResumeEmbeddings(ctx); err != nil {
			p.logger.Warn("some resumes could not be embedded", zap.Int("embedded", n), zap.Error(err))
		} else if n > 0 {
			p.logger.Info("resumes embedded", zap.Int("count", n))
		}
	}

	sem := make(chan struct{}, p.deps.Parallelism)
	var wg sync.WaitGroup

	for _, v := range left.Items {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}

		go func(v *vacancy.Vacancy) {
			defer wg.Done()
			defer func() { <-sem }()

			log := p.logger.With(zap.String(logger.FieldVacancyURL, v.URL))
			if opts.DryRun {
				log.Info("dry run: would save vacancy", zap.String("title", v.Title), zap.String("company", v.Company))
				stats.Saved.Add(1)
				return
			}

			if err := p.process(ctx, log, v, match, stats); err != nil {
				stats.Failed.Add(1)
				log.Warn("processing vacancy failed", zap.Error(err))
			}
		}(v)
	}
	wg.Wait()

	return ctx.Err()
}

func (p *Pipeline) stepEnabled(name string) bool {
	for _, step := range p.deps.Steps {
		if step.Name() == name {
			return step.IsEnabled()
		}
	}
	return false
}

func (p *Pipeline) process(ctx context.Context, log *zap.Logger, v *vacancy.Vacancy, match bool, stats *RunStats) error {
	if p.deps.Embedder != nil && len(v.Embedding) == 0 {
		embedding, err := p.deps.Embedder.EmbedText(ctx, v.EmbeddingText())
		if err != nil {
			return fmt.Errorf("embedding vacancy: %w", err)
		}
		v.Embedding = embedding
	}

	v.Status = vacancy.StatusNew
	saved, err := p.deps.Store.SaveVacancy(ctx, v)
	if err != nil {
		return fmt.Errorf("saving vacancy: %w", err)
	}
	stats.Saved.Add(1)
	log = log.With(zap.String(logger.FieldVacancyID, saved.ID))

	if !match {
		return nil
	}
	if len(saved.Embedding) == 0 {
		saved.Embedding = v.Embedding
	}

	matches, err := p.deps.Matcher.Match(ctx, saved)
	if len(matches) > 0 {
		stats.Matched.Add(1)
	}
	fits := 0
	for _, m := range matches {
		if m.Fit {
			fits++
		}
	}
	stats.Fits.Add(int64(fits))
	if err != nil {
		return fmt.Errorf("matching: %w", err)
	}

	if fits > 0 {
		status := vacancy.StatusMatched
		if _, err := p.deps.Store.UpdateVacancy(ctx, saved.ID, vacancy.VacancyPatch{Status: &status}); err != nil {
			return fmt.Errorf("marking vacancy matched: %w", err)
		}
	}
	log.Info("vacancy processed", zap.Int("candidates", len(matches)), zap.Int("fits", fits))
	return nil
}
