package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/grabd/internal/downloaders/media"
	"github.com/tanq16/grabd/internal/output"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that yt-dlp and ffmpeg are available",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				output.PrintError(fmt.Sprintf("Invalid configuration: %v", err))
				os.Exit(1)
			}
			md := media.New(media.Options{
				Dir:          cfg.DownloadDir,
				YtdlpPath:    cfg.YtdlpPath,
				FFmpegPath:   cfg.FFmpegPath,
				TitleTimeout: cfg.TitleTimeout,
			})
			h := md.Health(context.Background())
			output.PrintHeader("External tools")
			output.PrintTool("yt-dlp", h.YtDlp)
			output.PrintTool("ffmpeg", h.FFmpeg)
			if h.YtDlp == nil {
				output.PrintError("Media downloads will fail until yt-dlp is installed")
				os.Exit(1)
			}
		},
	}
}
