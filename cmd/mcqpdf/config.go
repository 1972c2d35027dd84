package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/mcqpdf/internal/model"
	"github.com/tinytelemetry/mcqpdf/internal/socketrpc"
)

// autoSocket selects socketrpc.DefaultSocketPath.
const autoSocket = "auto"

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	BackendURL       string        `mapstructure:"backend-url"`
	ExamType         string        `mapstructure:"exam-type"`
	PDFFormat        string        `mapstructure:"pdf-format"`
	StatusInterval   time.Duration `mapstructure:"status-interval"`
	HealthInterval   time.Duration `mapstructure:"health-interval"`
	AdStatusInterval time.Duration `mapstructure:"ad-status-interval"`
	CreateTimeout    time.Duration `mapstructure:"create-timeout"`
	StatusTimeout    time.Duration `mapstructure:"status-timeout"`
	MaxRetries       int           `mapstructure:"max-retries"`
	BridgeSocket     string        `mapstructure:"bridge-socket"`
	DownloadDir      string        `mapstructure:"download-dir"`
	LogLevel         string        `mapstructure:"log-level"`
	LogFile          string        `mapstructure:"log-file"`
	ConfigPath       string        `mapstructure:"-"` // not from config file
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("MCQPDF")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("backend-url", model.DefaultBackendURL)
	v.SetDefault("exam-type", string(model.DefaultExamType))
	v.SetDefault("pdf-format", string(model.DefaultPDFFormat))
	v.SetDefault("status-interval", model.StatusPollInterval)
	v.SetDefault("health-interval", model.HealthCheckInterval)
	v.SetDefault("ad-status-interval", model.AdStatusInterval)
	v.SetDefault("create-timeout", model.CreateJobTimeout)
	v.SetDefault("status-timeout", model.JobStatusTimeout)
	v.SetDefault("max-retries", model.MaxRetryAttempts)
	v.SetDefault("bridge-socket", "")
	v.SetDefault("download-dir", filepath.Join(home, "Downloads"))
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "mcqpdf", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.DownloadDir, &cfg.BridgeSocket, &cfg.LogFile} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}
	if cfg.BridgeSocket == autoSocket {
		cfg.BridgeSocket = socketrpc.DefaultSocketPath()
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")

	return cfg, nil
}

func (c appConfig) validate() error {
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return fmt.Errorf("invalid backend-url: %q", c.BackendURL)
	}
	if !model.ExamType(c.ExamType).Valid() {
		return fmt.Errorf("invalid exam-type: %q", c.ExamType)
	}
	if !model.PDFFormat(c.PDFFormat).Valid() {
		return fmt.Errorf("invalid pdf-format: %q", c.PDFFormat)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max-retries: %d", c.MaxRetries)
	}
	for name, d := range map[string]time.Duration{
		"status-interval":    c.StatusInterval,
		"health-interval":    c.HealthInterval,
		"ad-status-interval": c.AdStatusInterval,
		"create-timeout":     c.CreateTimeout,
		"status-timeout":     c.StatusTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s: %s", name, d)
		}
	}
	return nil
}
