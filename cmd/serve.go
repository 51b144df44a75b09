package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/grabd/internal/config"
	"github.com/tanq16/grabd/internal/downloaders/image"
	"github.com/tanq16/grabd/internal/downloaders/media"
	"github.com/tanq16/grabd/internal/output"
	"github.com/tanq16/grabd/internal/scheduler"
	"github.com/tanq16/grabd/internal/server"
	"github.com/tanq16/grabd/internal/storage"
	"github.com/tanq16/grabd/internal/sweeper"
	"github.com/tanq16/grabd/internal/task"
	"github.com/tanq16/grabd/internal/utils"
)

func newServeCmd() *cobra.Command {
	var addr string
	var maxActive int
	var headers []string

	cmd := &cobra.Command{
		Use:   "serve [--addr ADDR] [--max-active N]",
		Short: "Run the download service and its HTTP API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				output.PrintError(fmt.Sprintf("Invalid configuration: %v", err))
				os.Exit(1)
			}
			if addr != "" {
				cfg.Listen = addr
			}
			if maxActive > 0 {
				cfg.MaxActive = maxActive
			}
			cfg.Headers = append(cfg.Headers, headers...)
			if err := serve(cfg); err != nil {
				log.Error().Str("op", "cmd/serve").Err(err).Msg("server stopped")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides listen)")
	cmd.Flags().IntVarP(&maxActive, "max-active", "m", 0, "Maximum pending plus downloading tasks (overrides max_active)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom header for image fetches (like 'Referer: https://example.com'); can be specified multiple times")
	return cmd
}

func serve(cfg config.Config) error {
	if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
		return fmt.Errorf("error creating download dir: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := task.NewManager(cfg.PublicPrefix)
	svc := scheduler.New(manager, cfg.MaxActive)

	md := media.New(media.Options{
		Dir:          cfg.DownloadDir,
		YtdlpPath:    cfg.YtdlpPath,
		FFmpegPath:   cfg.FFmpegPath,
		TitleTimeout: cfg.TitleTimeout,
	})
	client := utils.NewGrabdHTTPClient(utils.HTTPClientConfig{
		Timeout:   cfg.ImageTimeout,
		ProxyURL:  cfg.Proxy,
		UserAgent: cfg.UserAgent,
		Headers:   utils.ParseHeaderArgs(cfg.Headers),
	})
	svc.Register(task.CategoryVideo, md)
	svc.Register(task.CategoryAudio, md)
	svc.Register(task.CategoryImage, image.New(cfg.DownloadDir, client))
	svc.SetProber(md)

	var archiver sweeper.Archiver
	if cfg.Archive.Bucket != "" {
		a, err := storage.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		archiver = a
		log.Info().Str("op", "cmd/serve").Msgf("archiving expired artifacts to s3://%s", cfg.Archive.Bucket)
	}
	go sweeper.New(manager, cfg.DownloadDir, cfg.ArtifactTTL, cfg.SweepInterval, archiver).Run(ctx)

	return server.New(svc, cfg.DownloadDir, cfg.PublicPrefix).ListenAndServe(ctx, cfg.Listen)
}
