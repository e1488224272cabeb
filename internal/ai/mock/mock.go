// Package mock provides deterministic AI implementations for tests and dry runs.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/spigell/vacancy-matcher/internal/ai"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

// Embedder hashes words into a fixed number of buckets. Texts sharing words get similar vectors.
type Embedder struct {
	Dimensions int

	mu    sync.Mutex
	calls int
}

func NewEmbedder(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 16
	}
	return &Embedder{Dimensions: dimensions}
}

func (e *Embedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	vector := make([]float32, e.Dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vector[h.Sum32()%uint32(e.Dimensions)]++
	}

	var norm float64
	for _, x := range vector {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return vector, nil
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector, nil
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Calls reports how many texts were embedded.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Matcher returns assessments from a function, recording every evaluated pair.
type Matcher struct {
	Func func(r *vacancy.Resume, v *vacancy.Vacancy) (*ai.FitAssessment, error)

	mu    sync.Mutex
	pairs [][2]string
}

func (m *Matcher) Evaluate(_ context.Context, r *vacancy.Resume, v *vacancy.Vacancy) (*ai.FitAssessment, error) {
	m.mu.Lock()
	m.pairs = append(m.pairs, [2]string{v.ID, r.ID})
	m.mu.Unlock()

	if m.Func == nil {
		return &ai.FitAssessment{Fit: true, Score: 1, Reason: "mock"}, nil
	}
	return m.Func(r, v)
}

// Pairs returns the evaluated (vacancy id, résumé id) pairs.
func (m *Matcher) Pairs() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]string(nil), m.pairs...)
}
