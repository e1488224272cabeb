package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/logger"
	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Manage stored résumés",
}

var resumeAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Store a plain text or markdown résumé and embed it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		addResume(cmd, args[0])
	},
}

var resumeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored résumés",
	Run: func(cmd *cobra.Command, _ []string) {
		listResumes(cmd)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
	resumeCmd.AddCommand(resumeAddCmd, resumeListCmd)

	resumeAddCmd.Flags().String("name", "", "candidate name (default is the file name)")
	resumeAddCmd.Flags().String("email", "", "candidate email")
	resumeAddCmd.Flags().Bool("inactive", false, "store the résumé without using it for matching")

	resumeListCmd.Flags().Bool("active", false, "only active résumés")
	resumeListCmd.Flags().Int("limit", store.DefaultLimit, "maximum number of résumés")
}

func addResume(cmd *cobra.Command, file string) {
	ctx, cancel := signalContext()
	defer cancel()

	config, log := setup()

	text, err := os.ReadFile(file)
	if err != nil {
		log.Fatal("reading resume", zap.String("file", file), zap.Error(err))
	}
	if strings.TrimSpace(string(text)) == "" {
		log.Fatal("resume file is empty", zap.String("file", file))
	}

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	inactive, _ := cmd.Flags().GetBool("inactive")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}

	comp, err := openStore(ctx, config, log)
	if err != nil {
		log.Fatal("opening storage", zap.Error(err))
	}
	defer comp.Close()

	if err := comp.withEmbedder(config, log, false); err != nil {
		log.Fatal("preparing embedder", zap.Error(err))
	}

	r := &vacancy.Resume{Name: name, Email: email, Text: string(text), Active: !inactive}
	if comp.embedder != nil {
		embedding, err := comp.embedder.EmbedText(ctx, r.EmbeddingText())
		if err != nil {
			// The next run embeds résumés without a vector.
			log.Warn("embedding resume failed, storing without embedding", zap.Error(err))
		} else {
			r.Embedding = embedding
		}
	}

	saved, err := comp.store.SaveResume(ctx, r)
	if err != nil {
		log.Fatal("saving resume", zap.Error(err))
	}

	log.Info("resume stored",
		zap.String(logger.FieldResumeID, saved.ID),
		zap.String("name", saved.Name),
		zap.Bool("embedded", saved.HasEmbedding()),
	)
}

func listResumes(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	config, log := setup()

	active, _ := cmd.Flags().GetBool("active")
	limit, _ := cmd.Flags().GetInt("limit")

	comp, err := openStore(ctx, config, log)
	if err != nil {
		log.Fatal("opening storage", zap.Error(err))
	}
	defer comp.Close()

	items, err := comp.store.ListResumes(ctx, store.ListOptions{Limit: limit, ActiveOnly: active})
	if err != nil {
		log.Fatal("listing resumes", zap.Error(err))
	}
	printResumes(cmd.OutOrStdout(), items)
}
