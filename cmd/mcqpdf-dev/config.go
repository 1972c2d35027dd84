package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/mcqpdf/internal/httpserver"
	"github.com/tinytelemetry/mcqpdf/internal/socketrpc"
)

const (
	defaultAddr        = "127.0.0.1:8001"
	defaultUnlockDelay = 3 * time.Second

	// autoSocket selects socketrpc.DefaultSocketPath.
	autoSocket = "auto"
)

// devConfig is internal runtime configuration for the development server.
type devConfig struct {
	Addr            string        `mapstructure:"addr"`
	ScenarioFile    string        `mapstructure:"scenario-file"`
	TotalLinks      int           `mapstructure:"total-links"`
	MCQsPerLink     int           `mapstructure:"mcqs-per-link"`
	StepInterval    time.Duration `mapstructure:"step-interval"`
	FailTopics      []string      `mapstructure:"fail-topics"`
	RestartWindow   time.Duration `mapstructure:"restart-window"`
	BridgeSocket    string        `mapstructure:"bridge-socket"`
	UnlockDelay     time.Duration `mapstructure:"unlock-delay"`
	HandleDownloads bool          `mapstructure:"handle-downloads"`
	LogLevel        string        `mapstructure:"log-level"`
	ConfigPath      string        `mapstructure:"-"` // not from config file
}

func loadDevConfig(configPath string) (devConfig, error) {
	var cfg devConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	sc := httpserver.DefaultScenario()

	v := viper.New()
	v.SetEnvPrefix("MCQPDF_DEV")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("addr", defaultAddr)
	v.SetDefault("scenario-file", "")
	v.SetDefault("total-links", sc.TotalLinks)
	v.SetDefault("mcqs-per-link", sc.MCQsPerLink)
	v.SetDefault("step-interval", sc.StepInterval)
	v.SetDefault("fail-topics", []string{})
	v.SetDefault("restart-window", sc.RestartWindow)
	v.SetDefault("bridge-socket", "")
	v.SetDefault("unlock-delay", defaultUnlockDelay)
	v.SetDefault("handle-downloads", false)
	v.SetDefault("log-level", "debug")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "mcqpdf", "dev.yml"))
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

	for _, p := range []*string{&cfg.ScenarioFile, &cfg.BridgeSocket} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}
	if cfg.BridgeSocket == autoSocket {
		cfg.BridgeSocket = socketrpc.DefaultSocketPath()
	}
	return cfg, nil
}

// scenario returns the scenario file's contents when one is configured,
// otherwise the scenario built from individual keys.
func (c devConfig) scenario() (httpserver.Scenario, error) {
	if c.ScenarioFile != "" {
		return httpserver.LoadScenario(c.ScenarioFile)
	}
	sc := httpserver.Scenario{
		TotalLinks:    c.TotalLinks,
		MCQsPerLink:   c.MCQsPerLink,
		StepInterval:  c.StepInterval,
		FailTopics:    c.FailTopics,
		RestartWindow: c.RestartWindow,
	}
	if err := sc.Validate(); err != nil {
		return sc, fmt.Errorf("invalid scenario: %w", err)
	}
	return sc, nil
}
