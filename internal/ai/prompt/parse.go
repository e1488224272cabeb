package prompt

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spigell/vacancy-matcher/internal/ai"
)

// ParseResponse decodes a model reply into an assessment. Code fences are
// stripped and loosely typed values are coerced. Scores on a 0..100 scale are
// normalised to 0..1 and the result is clamped.
func ParseResponse(raw string) (*ai.FitAssessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	return &ai.FitAssessment{
		Fit:     coerceBool(data["fit"]),
		Score:   NormalizeScore(coerceFloat(data["score"])),
		Reason:  coerceString(data["reason"]),
		Message: coerceString(data["message"]),
		Raw:     raw,
	}, nil
}

// NormalizeScore maps a model score to [0,1].
func NormalizeScore(score float64) float64 {
	switch {
	case math.IsNaN(score) || math.IsInf(score, 0):
		return 0
	case score > 1 && score <= 100:
		score /= 100
	}
	return math.Max(0, math.Min(1, score))
}

// ApplyThreshold clears Fit when the score is below minScore and reports whether it did.
func ApplyThreshold(a *ai.FitAssessment, minScore float64) bool {
	if a == nil || minScore <= 0 || !a.Fit {
		return false
	}
	if a.Score < minScore {
		a.Fit = false
		return true
	}
	return false
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Some models wrap the object in prose.
	if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start != -1 && end > start {
			raw = raw[start : end+1]
		}
	}
	return raw
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes" || lower == "ja"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
