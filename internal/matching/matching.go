// Package matching pairs stored vacancies with the closest résumés and lets
// the language model score each pair.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/ai"
	"github.com/spigell/vacancy-matcher/internal/ai/prompt"
	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const defaultCandidates = 5

type Options struct {
	// Candidates is the number of nearest résumés evaluated per vacancy.
	Candidates int
	MinScore   float64
}

type Matcher struct {
	store    store.Store
	embedder ai.Embedder
	matcher  ai.Matcher
	opts     Options
	logger   *zap.Logger
}

func New(s store.Store, embedder ai.Embedder, matcher ai.Matcher, opts Options, log *zap.Logger) *Matcher {
	if opts.Candidates <= 0 {
		opts.Candidates = defaultCandidates
	}
	if opts.MinScore < 0 {
		opts.MinScore = 0
	}
	return &Matcher{
		store:    s,
		embedder: embedder,
		matcher:  matcher,
		opts:     opts,
		logger:   logger.Named(log, "matching"),
	}
}

// Match evaluates the nearest active résumés against v and stores one match
// per pair. A failed evaluation is stored with its error and Fit unset.
func (m *Matcher) Match(ctx context.Context, v *vacancy.Vacancy) ([]*vacancy.Match, error) {
	if v == nil || v.ID == "" {
		return nil, errors.New("vacancy must be stored before matching")
	}
	log := m.logger.With(zap.String(logger.FieldVacancyID, v.ID), zap.String(logger.FieldVacancyURL, v.URL))

	query := v.Embedding
	if len(query) == 0 {
		var err error
		query, err = m.embedder.EmbedText(ctx, v.EmbeddingText())
		if err != nil {
			return nil, fmt.Errorf("embedding vacancy: %w", err)
		}
		v.Embedding = query
	}

	hits, err := m.store.NearestResumes(ctx, query, m.opts.Candidates)
	if err != nil {
		return nil, fmt.Errorf("finding candidate resumes: %w", err)
	}
	if len(hits) == 0 {
		log.Info("no candidate resumes")
		return nil, nil
	}

	var (
		matches []*vacancy.Match
		errs    []error
	)
	for _, hit := range hits {
		if err := ctx.Err(); err != nil {
			return matches, err
		}

		match := m.evaluate(ctx, log, v, hit)
		saved, err := m.store.SaveMatch(ctx, match)
		if err != nil {
			errs = append(errs, fmt.Errorf("saving match for resume %s: %w", hit.Resume.ID, err))
			continue
		}
		matches = append(matches, saved)
	}

	return matches, errors.Join(errs...)
}

func (m *Matcher) evaluate(ctx context.Context, log *zap.Logger, v *vacancy.Vacancy, hit store.ResumeHit) *vacancy.Match {
	match := &vacancy.Match{
		VacancyID:  v.ID,
		ResumeID:   hit.Resume.ID,
		Similarity: hit.Similarity,
		Status:     vacancy.MatchPending,
	}
	pairLog := log.With(zap.String(logger.FieldResumeID, hit.Resume.ID))

	assessment, err := m.matcher.Evaluate(ctx, hit.Resume, v)
	if err != nil {
		pairLog.Warn("AI evaluation failed", zap.Error(err))
		match.Error = err.Error()
		return match
	}

	assessment.Score = prompt.NormalizeScore(assessment.Score)
	prompt.ApplyThreshold(assessment, m.opts.MinScore)
	match.Score = assessment.Score
	match.Fit = assessment.Fit
	match.Reason = strings.TrimSpace(assessment.Reason)
	match.Message = strings.TrimSpace(assessment.Message)

	pairLog.Info("pair evaluated",
		zap.Bool("fit", match.Fit),
		zap.Float64("ai_score", match.Score),
		zap.Float64("similarity", match.Similarity),
	)
	return match
}

// EnsureResumeEmbedding embeds r and persists the vector when it has none.
func (m *Matcher) EnsureResumeEmbedding(ctx context.Context, r *vacancy.Resume) error {
	if r.HasEmbedding() {
		return nil
	}
	text := r.EmbeddingText()
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("resume %s has no text to embed", r.ID)
	}

	embedding, err := m.embedder.EmbedText(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding resume %s: %w", r.ID, err)
	}
	if err := m.store.SetResumeEmbedding(ctx, r.ID, embedding); err != nil {
		return fmt.Errorf("storing embedding of resume %s: %w", r.ID, err)
	}
	r.Embedding = embedding

	m.logger.Info("resume embedded", zap.String(logger.FieldResumeID, r.ID), zap.Int("dimensions", len(embedding)))
	return nil
}

// EnsureResumeEmbeddings embeds every active résumé that lacks a vector and
// returns how many were embedded.
func (m *Matcher) EnsureResumeEmbeddings(ctx context.Context) (int, error) {
	var (
		embedded int
		errs     []error
	)
	for offset := 0; ; offset += store.MaxLimit {
		page, err := m.store.ListResumes(ctx, store.ListOptions{ActiveOnly: true, Limit: store.MaxLimit, Offset: offset})
		if err != nil {
			return embedded, fmt.Errorf("listing resumes: %w", err)
		}
		for _, r := range page {
			if r.HasEmbedding() {
				continue
			}
			if err := m.EnsureResumeEmbedding(ctx, r); err != nil {
				errs = append(errs, err)
				continue
			}
			embedded++
		}
		if len(page) < store.MaxLimit {
			break
		}
	}
	return embedded, errors.Join(errs...)
}
