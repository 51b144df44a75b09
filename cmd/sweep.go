package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/grabd/internal/output"
	"github.com/tanq16/grabd/internal/storage"
	"github.com/tanq16/grabd/internal/sweeper"
)

func newSweepCmd() *cobra.Command {
	var ttl time.Duration
	var archive bool

	cmd := &cobra.Command{
		Use:   "sweep [--ttl DURATION] [--archive]",
		Short: "Remove artifacts older than the TTL from the download directory",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				output.PrintError(fmt.Sprintf("Invalid configuration: %v", err))
				os.Exit(1)
			}
			if ttl <= 0 {
				ttl = cfg.ArtifactTTL
			}
			ctx := context.Background()
			var archiver sweeper.Archiver
			if archive {
				a, err := storage.NewS3Archiver(ctx, cfg.Archive)
				if err != nil {
					output.PrintError(fmt.Sprintf("Archive unavailable: %v", err))
					os.Exit(1)
				}
				archiver = a
			}
			removed, err := sweeper.SweepDir(ctx, cfg.DownloadDir, ttl, time.Now(), archiver)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error sweeping %s: %v", cfg.DownloadDir, err))
				os.Exit(1)
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d artifacts older than %s from %s", removed, ttl, cfg.DownloadDir))
		},
	}

	cmd.Flags().DurationVarP(&ttl, "ttl", "t", 0, "Age threshold (defaults to artifact_ttl)")
	cmd.Flags().BoolVar(&archive, "archive", false, "Upload artifacts to the configured S3 bucket before removing them")
	return cmd
}
