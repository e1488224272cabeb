package store

import (
	"math"
	"sort"

	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

// Cosine returns the cosine similarity of a and b, or 0 when the vectors
// differ in length or either is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankResumes scores candidates against query in process. Inactive résumés and
// résumés without embeddings are skipped.
func RankResumes(query []float32, candidates []*vacancy.Resume, limit int) []ResumeHit {
	hits := make([]ResumeHit, 0, len(candidates))
	for _, r := range candidates {
		if r == nil || !r.Active || !r.HasEmbedding() {
			continue
		}
		hits = append(hits, ResumeHit{Resume: r, Similarity: Cosine(query, r.Embedding)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
