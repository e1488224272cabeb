package llm

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/ai"
	"github.com/spigell/vacancy-matcher/internal/ai/prompt"
	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const defaultMaxLogLength = 200

// Completer is a chat model that answers one system + user message exchange.
type Completer interface {
	Complete(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Matcher implements ai.Matcher on top of any Completer.
type Matcher struct {
	completer Completer
	provider  string
	minScore  float64
	overrides prompt.Overrides
	maxLogLen int
	logger    *zap.Logger
}

func NewMatcher(completer Completer, provider string, minScore float64, maxLogLength int, log *zap.Logger) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if minScore < 0 {
		minScore = 0
	}

	return &Matcher{
		completer: completer,
		provider:  provider,
		minScore:  minScore,
		maxLogLen: maxLogLength,
		logger:    logger.WithCommonFields(log, provider, completer.Model()),
	}
}

// SetPromptOverrides replaces the user preferences injected into every prompt.
func (m *Matcher) SetPromptOverrides(o prompt.Overrides) {
	m.overrides = o
}

func (m *Matcher) Evaluate(ctx context.Context, resume *vacancy.Resume, v *vacancy.Vacancy) (*ai.FitAssessment, error) {
	message, err := prompt.Build(resume, v, m.overrides)
	if err != nil {
		return nil, err
	}

	pair := logger.PairFields(v.ID, resume.ID)
	m.logger.Debug("model request",
		append(pair,
			zap.String(logger.FieldVacancyURL, v.URL),
			zap.Int("prompt_length", utf8.RuneCountInString(message)),
			zap.String("prompt_preview", utils.TruncateForLog(message, m.maxLogLen)),
		)...,
	)

	raw, err := m.completer.Complete(ctx, prompt.System, message)
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", m.provider, err)
	}

	m.logger.Debug("model response",
		append(pair,
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
		)...,
	)

	assessment, err := prompt.ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	if prompt.ApplyThreshold(assessment, m.minScore) {
		m.logger.Debug("set fit to false by score threshold",
			append(pair,
				zap.Float64("score", assessment.Score),
				zap.Float64("threshold", m.minScore),
			)...,
		)
	}

	return assessment, nil
}
