package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const (
	PromptShortlist = "Shortlist"
	PromptReject    = "Reject"
	PromptDetails   = "Show details"
	PromptSkip      = "Skip"
	PromptQuit      = "Quit"
)

var errExit = errors.New("exit requested")

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "Inspect and review résumé/vacancy matches",
}

var matchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored matches, best scores first",
	Run: func(cmd *cobra.Command, _ []string) {
		listMatches(cmd)
	},
}

var matchesReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Shortlist or reject pending matches interactively",
	Run: func(cmd *cobra.Command, _ []string) {
		reviewMatches(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchesCmd)
	matchesCmd.AddCommand(matchesListCmd, matchesReviewCmd)

	matchesListCmd.Flags().Float64("min-score", 0, "only matches scoring at least this much")
	matchesListCmd.Flags().String("status", "", "only matches with this status (pending, shortlisted, rejected)")
	matchesListCmd.Flags().Bool("fit", false, "only matches the model considered a fit")
	matchesListCmd.Flags().Int("limit", store.DefaultLimit, "maximum number of matches")

	matchesReviewCmd.Flags().Bool("all", false, "also review pending matches that are not a fit")
	matchesReviewCmd.Flags().Int("limit", store.DefaultLimit, "maximum number of matches to review")
}

func listMatches(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	config, log := setup()

	minScore, _ := cmd.Flags().GetFloat64("min-score")
	status, _ := cmd.Flags().GetString("status")
	fit, _ := cmd.Flags().GetBool("fit")
	limit, _ := cmd.Flags().GetInt("limit")

	if status != "" && !vacancy.IsValidMatchStatus(status) {
		log.Fatal("unknown match status", zap.String("status", status))
	}

	comp, err := openStore(ctx, config, log)
	if err != nil {
		log.Fatal("opening storage", zap.Error(err))
	}
	defer comp.Close()

	items, err := comp.store.ListMatches(ctx, store.MatchFilter{
		Status:   status,
		MinScore: minScore,
		FitOnly:  fit,
		Limit:    limit,
	})
	if err != nil {
		log.Fatal("listing matches", zap.Error(err))
	}

	threshold := 0.0
	if config.AI != nil {
		threshold = config.AI.MinimumFitScore
	}
	printMatches(ctx, cmd.OutOrStdout(), newNames(comp.store), items, threshold)
}

func reviewMatches(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	config, log := setup()

	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")

	comp, err := openStore(ctx, config, log)
	if err != nil {
		log.Fatal("opening storage", zap.Error(err))
	}
	defer comp.Close()

	pending, err := comp.store.ListMatches(ctx, store.MatchFilter{
		Status:  vacancy.MatchPending,
		FitOnly: !all,
		Limit:   limit,
	})
	if err != nil {
		log.Fatal("listing matches", zap.Error(err))
	}
	if len(pending) == 0 {
		log.Info("exiting", zap.String("reason", "no pending matches"))
		return
	}
	log.Info("pending matches", zap.Int("count", len(pending)))

	r := &reviewer{store: comp.store, names: newNames(comp.store), out: cmd.OutOrStdout(), logger: log}
	if err := r.review(ctx, pending); err != nil && !errors.Is(err, errExit) {
		log.Fatal("review failed", zap.Error(err))
	}
	log.Info("review finished", zap.Int("shortlisted", r.shortlisted), zap.Int("rejected", r.rejected))
}

type reviewer struct {
	store  store.Store
	names  *names
	out    io.Writer
	logger *zap.Logger

	shortlisted int
	rejected    int
}

func (r *reviewer) review(ctx context.Context, matches []*vacancy.Match) error {
	for i, m := range matches {
		v := r.names.vacancy(ctx, m.VacancyID)
		candidate := r.names.resume(ctx, m.ResumeID)

		for {
			prompt := promptui.Select{
				Label: fmt.Sprintf("[%d/%d] %s → %s @ %s (score %.2f)", i+1, len(matches), candidate, v.Title, v.Company, m.Score),
				Items: []string{PromptShortlist, PromptReject, PromptDetails, PromptSkip, PromptQuit},
			}
			_, action, err := prompt.Run()
			if err != nil {
				return err
			}

			done, err := r.handle(ctx, action, m, v)
			if err != nil {
				return err
			}
			if done {
				break
			}
		}
	}
	return nil
}

// handle applies one prompt action. It reports whether the match is settled.
func (r *reviewer) handle(ctx context.Context, action string, m *vacancy.Match, v *vacancy.Vacancy) (bool, error) {
	switch action {
	case PromptShortlist:
		return true, r.setStatus(ctx, m, vacancy.MatchShortlisted)
	case PromptReject:
		return true, r.setStatus(ctx, m, vacancy.MatchRejected)
	case PromptDetails:
		r.details(m, v)
		return false, nil
	case PromptSkip:
		return true, nil
	case PromptQuit:
		return true, errExit
	default:
		return false, fmt.Errorf("invalid action: %s", action)
	}
}

func (r *reviewer) setStatus(ctx context.Context, m *vacancy.Match, status string) error {
	if _, err := r.store.UpdateMatch(ctx, m.ID, vacancy.MatchPatch{Status: &status}); err != nil {
		return fmt.Errorf("updating match %s: %w", m.ID, err)
	}
	switch status {
	case vacancy.MatchShortlisted:
		r.shortlisted++
	case vacancy.MatchRejected:
		r.rejected++
	}
	r.logger.Info("match updated",
		append(logger.PairFields(m.VacancyID, m.ResumeID), zap.String("status", status))...,
	)
	return nil
}

func (r *reviewer) details(m *vacancy.Match, v *vacancy.Vacancy) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "%s %s\n", bold("Vacancy:"), v.URL)
	fmt.Fprintf(r.out, "%s %s | %s | %s\n", bold("Where:"), v.Location, v.Hours, v.Rate)
	fmt.Fprintf(r.out, "%s %s\n", bold("Reason:"), m.Reason)
	if m.Message != "" {
		fmt.Fprintf(r.out, "%s %s\n", bold("Message:"), m.Message)
	}
	if m.Error != "" {
		fmt.Fprintf(r.out, "%s %s\n", color.RedString("Error:"), m.Error)
	}
	fmt.Fprintf(r.out, "\n%s\n\n", clip(v.Description, 1500))
}
