package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/store/memory"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

func seedMatch(t *testing.T, s *memory.Store) (*vacancy.Vacancy, *vacancy.Match) {
	t.Helper()
	ctx := context.Background()

	v, err := s.SaveVacancy(ctx, &vacancy.Vacancy{URL: "https://board.example/jobs/1", Title: "Go developer", Company: "Acme", Description: "Build services"})
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.SaveResume(ctx, &vacancy.Resume{Name: "Ann", Text: "Go", Active: true})
	if err != nil {
		t.Fatal(err)
	}
	m, err := s.SaveMatch(ctx, &vacancy.Match{VacancyID: v.ID, ResumeID: r.ID, Score: 0.8, Fit: true, Reason: "strong Go background"})
	if err != nil {
		t.Fatal(err)
	}
	return v, m
}

func TestReviewerHandle(t *testing.T) {
	tests := []struct {
		action     string
		wantDone   bool
		wantErr    error
		wantStatus string
	}{
		{action: PromptShortlist, wantDone: true, wantStatus: vacancy.MatchShortlisted},
		{action: PromptReject, wantDone: true, wantStatus: vacancy.MatchRejected},
		{action: PromptSkip, wantDone: true, wantStatus: vacancy.MatchPending},
		{action: PromptDetails, wantDone: false, wantStatus: vacancy.MatchPending},
		{action: PromptQuit, wantDone: true, wantErr: errExit, wantStatus: vacancy.MatchPending},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			t.Parallel()

			s := memory.New()
			v, m := seedMatch(t, s)
			var out bytes.Buffer
			r := &reviewer{store: s, names: newNames(s), out: &out, logger: zap.NewNop()}

			done, err := r.handle(context.Background(), tt.action, m, v)
			if done != tt.wantDone {
				t.Fatalf("expected done=%v, got %v", tt.wantDone, done)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}

			matches, err := s.ListMatches(context.Background(), store.MatchFilter{})
			if err != nil {
				t.Fatal(err)
			}
			if len(matches) != 1 || matches[0].Status != tt.wantStatus {
				t.Fatalf("expected status %q, got %+v", tt.wantStatus, matches)
			}

			if tt.action == PromptDetails && !strings.Contains(out.String(), "strong Go background") {
				t.Fatalf("details do not show the reason: %q", out.String())
			}
		})
	}
}

func TestReviewerRejectsUnknownAction(t *testing.T) {
	s := memory.New()
	v, m := seedMatch(t, s)
	r := &reviewer{store: s, names: newNames(s), out: &bytes.Buffer{}, logger: zap.NewNop()}

	if _, err := r.handle(context.Background(), "Apply", m, v); err == nil {
		t.Fatal("expected error")
	}
}

func TestNamesFallBackToIDs(t *testing.T) {
	s := memory.New()
	v, m := seedMatch(t, s)
	n := newNames(s)

	if got := n.vacancy(context.Background(), v.ID); got.Title != "Go developer" {
		t.Fatalf("unexpected title %q", got.Title)
	}
	if got := n.vacancy(context.Background(), "missing"); got.Title != "missing" {
		t.Fatalf("expected id fallback, got %q", got.Title)
	}
	if got := n.resume(context.Background(), m.ResumeID); got != "Ann" {
		t.Fatalf("unexpected name %q", got)
	}
	if n.vacancies.Len() != 2 {
		t.Fatalf("expected both vacancies cached, got %d", n.vacancies.Len())
	}
}

func TestPrintMatchesIncludesNames(t *testing.T) {
	s := memory.New()
	_, m := seedMatch(t, s)

	var out bytes.Buffer
	printMatches(context.Background(), &out, newNames(s), []*vacancy.Match{m}, 0.6)

	for _, want := range []string{"Ann", "Go developer", "Acme", m.ID} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output misses %q:\n%s", want, out.String())
		}
	}
}
