package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/grabd/internal/config"
	"github.com/tanq16/grabd/internal/utils"
)

var (
	configPath string
	debug      bool
	downDir    string
)

var GrabdVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "grabd",
	Short:   "grabd is a background media and image download service",
	Version: GrabdVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", config.DefaultPath, "Path to YAML config file (defaults apply when missing)")
	rootCmd.PersistentFlags().StringVarP(&downDir, "dir", "d", "", "Download directory (overrides download_dir)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newSweepCmd())
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if downDir != "" {
		cfg.DownloadDir = downDir
	}
	return cfg, cfg.Validate()
}
