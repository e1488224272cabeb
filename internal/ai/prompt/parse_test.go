package prompt

import (
	"testing"

	"github.com/spigell/vacancy-matcher/internal/ai"
)

func TestParseResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		fit     bool
		score   float64
		message string
		wantErr bool
	}{
		{
			name:    "plain",
			raw:     `{"fit": true, "score": 0.9, "reason": "Matches skills", "message": "Hello"}`,
			fit:     true,
			score:   0.9,
			message: "Hello",
		},
		{
			name:    "code block with string score",
			raw:     "```json\n{\"fit\": true, \"score\": \"0.8\", \"reason\": \"Looks good\", \"message\": \"Hi\"}\n```",
			fit:     true,
			score:   0.8,
			message: "Hi",
		},
		{
			name:  "percentage scale",
			raw:   `{"fit": "yes", "score": 85}`,
			fit:   true,
			score: 0.85,
		},
		{
			name:  "prose around object",
			raw:   "Here you go: {\"fit\": false, \"score\": \"0,4\"} thanks",
			score: 0.4,
		},
		{
			name:  "missing score",
			raw:   `{"fit": false}`,
			score: 0,
		},
		{
			name:    "not json",
			raw:     "I cannot help with that",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseResponse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Fit != tt.fit {
				t.Fatalf("expected fit %v, got %v", tt.fit, got.Fit)
			}
			if got.Score != tt.score {
				t.Fatalf("expected score %v, got %v", tt.score, got.Score)
			}
			if got.Message != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, got.Message)
			}
			if got.Raw != tt.raw {
				t.Fatal("expected raw response to be kept")
			}
		})
	}
}

func TestNormalizeScore(t *testing.T) {
	t.Parallel()

	cases := map[float64]float64{-3: 0, 0.5: 0.5, 1: 1, 70: 0.7, 250: 1}
	for in, want := range cases {
		if got := NormalizeScore(in); got != want {
			t.Fatalf("NormalizeScore(%v): expected %v, got %v", in, want, got)
		}
	}
}

func TestApplyThreshold(t *testing.T) {
	t.Parallel()

	low := &ai.FitAssessment{Fit: true, Score: 0.3}
	if !ApplyThreshold(low, 0.5) || low.Fit {
		t.Fatal("expected fit to be cleared below threshold")
	}

	high := &ai.FitAssessment{Fit: true, Score: 0.7}
	if ApplyThreshold(high, 0.5) || !high.Fit {
		t.Fatal("expected fit to be kept above threshold")
	}

	if ApplyThreshold(&ai.FitAssessment{Fit: true}, 0) {
		t.Fatal("zero threshold disables the check")
	}
}
