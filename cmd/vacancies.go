package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

var vacanciesCmd = &cobra.Command{
	Use:   "vacancies",
	Short: "Inspect stored vacancies",
}

var vacanciesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored vacancies",
	Run: func(cmd *cobra.Command, _ []string) {
		listVacancies(cmd)
	},
}

func init() {
	rootCmd.AddCommand(vacanciesCmd)
	vacanciesCmd.AddCommand(vacanciesListCmd)

	vacanciesListCmd.Flags().String("status", "", "only vacancies with this status (new, matched, reviewed, archived)")
	vacanciesListCmd.Flags().Int("limit", store.DefaultLimit, "maximum number of vacancies")
	vacanciesListCmd.Flags().Bool("report", false, "print a report grouped by company instead of a table")
	vacanciesListCmd.Flags().Bool("dump", false, "also dump the listed vacancies to a temporary json file")
}

func listVacancies(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	config, log := setup()

	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	report, _ := cmd.Flags().GetBool("report")
	dump, _ := cmd.Flags().GetBool("dump")

	if status != "" && !vacancy.IsValidStatus(status) {
		log.Fatal("unknown vacancy status", zap.String("status", status))
	}

	comp, err := openStore(ctx, config, log)
	if err != nil {
		log.Fatal("opening storage", zap.Error(err))
	}
	defer comp.Close()

	items, err := comp.store.ListVacancies(ctx, store.ListOptions{Limit: limit, Status: status})
	if err != nil {
		log.Fatal("listing vacancies", zap.Error(err))
	}
	vacancies := &vacancy.Vacancies{Items: items}

	if report {
		pretty, _ := json.MarshalIndent(vacancies.ReportByCompany(), "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
	} else {
		printVacancies(cmd.OutOrStdout(), items)
	}

	if dump {
		filename, err := vacancies.DumpToTmpFile()
		if err != nil {
			log.Fatal("dump results to file", zap.Error(err))
		}
		log.Info("dumping result to file", zap.String("filename", filename), zap.Int("count", vacancies.Len()))
	}
}
