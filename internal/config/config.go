package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "grabd.yaml"

type Archive struct {
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Profile string `yaml:"profile"`
	Region  string `yaml:"region"`
}

type Config struct {
	Listen        string        `yaml:"listen"`
	DownloadDir   string        `yaml:"download_dir"`
	PublicPrefix  string        `yaml:"public_prefix"`
	MaxActive     int           `yaml:"max_active"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	ArtifactTTL   time.Duration `yaml:"artifact_ttl"`
	YtdlpPath     string        `yaml:"ytdlp_path"`
	FFmpegPath    string        `yaml:"ffmpeg_path"`
	TitleTimeout  time.Duration `yaml:"title_timeout"`
	ImageTimeout  time.Duration `yaml:"image_timeout"`
	UserAgent     string        `yaml:"user_agent"`
	Proxy         string        `yaml:"proxy"`
	Headers       []string      `yaml:"headers"`
	Archive       Archive       `yaml:"archive"`
}

func Default() Config {
	return Config{
		Listen:        "0.0.0.0:8000",
		DownloadDir:   "downloads",
		PublicPrefix:  "/downloads/",
		MaxActive:     20,
		SweepInterval: 30 * time.Second,
		ArtifactTTL:   10 * time.Minute,
		TitleTimeout:  20 * time.Second,
		ImageTimeout:  60 * time.Second,
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("error reading config: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config: %v", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DownloadDir == "" {
		return fmt.Errorf("download_dir must not be empty")
	}
	if c.MaxActive < 1 {
		return fmt.Errorf("max_active must be at least 1, got %d", c.MaxActive)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	if c.ArtifactTTL <= 0 {
		return fmt.Errorf("artifact_ttl must be positive")
	}
	if len(c.PublicPrefix) < 2 || c.PublicPrefix[0] != '/' || c.PublicPrefix[len(c.PublicPrefix)-1] != '/' {
		return fmt.Errorf("public_prefix must start and end with '/', got %q", c.PublicPrefix)
	}
	return nil
}
