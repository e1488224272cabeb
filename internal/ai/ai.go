package ai

import (
	"context"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

// FitAssessment is the language model's verdict on one résumé/vacancy pair.
type FitAssessment struct {
	Fit     bool
	Score   float64
	Reason  string
	Message string
	Raw     string
}

type Matcher interface {
	Evaluate(ctx context.Context, resume *vacancy.Resume, vacancy *vacancy.Vacancy) (*FitAssessment, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
