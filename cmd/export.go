package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/config"
	"github.com/spigell/vacancy-matcher/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write JSON Lines snapshots of the stored data and optionally upload them to S3",
	Run: func(cmd *cobra.Command, _ []string) {
		runExport(cmd)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("dir", "", "output directory (default is export.dir)")
	exportCmd.Flags().String("s3-bucket", "", "upload the snapshot to this bucket (default is export.s3.bucket)")
}

func runExport(cmd *cobra.Command) {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, log := setup()

	exportCfg := cfg.Export
	if exportCfg == nil {
		exportCfg = &config.ExportConfig{}
	}
	dir := exportCfg.Dir
	if flag, _ := cmd.Flags().GetString("dir"); flag != "" {
		dir = flag
	}
	s3Cfg := config.S3Config{}
	if exportCfg.S3 != nil {
		s3Cfg = *exportCfg.S3
	}
	if flag, _ := cmd.Flags().GetString("s3-bucket"); flag != "" {
		s3Cfg.Bucket = flag
	}

	comp, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("opening storage", zap.Error(err))
	}
	defer comp.Close()

	files, err := export.Snapshot(ctx, comp.store, dir)
	if err != nil {
		log.Fatal("writing snapshot", zap.Error(err))
	}
	log.Info("snapshot written", zap.String("dir", dir), zap.Strings("files", files))

	if s3Cfg.Bucket == "" {
		return
	}

	uploader, err := export.NewUploader(ctx, &s3Cfg, log)
	if err != nil {
		log.Fatal("preparing s3 upload", zap.Error(err))
	}
	if err := uploader.Upload(ctx, files); err != nil {
		log.Fatal("uploading snapshot", zap.Error(err))
	}
	log.Info("snapshot uploaded", zap.String("bucket", s3Cfg.Bucket), zap.String("prefix", s3Cfg.Prefix))
}
