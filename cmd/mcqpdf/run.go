package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/tinytelemetry/mcqpdf/internal/adbridge"
	"github.com/tinytelemetry/mcqpdf/internal/api"
	"github.com/tinytelemetry/mcqpdf/internal/logging"
	"github.com/tinytelemetry/mcqpdf/internal/model"
	"github.com/tinytelemetry/mcqpdf/internal/poller"
	"github.com/tinytelemetry/mcqpdf/internal/retry"
	"github.com/tinytelemetry/mcqpdf/internal/socketrpc"
	"github.com/tinytelemetry/mcqpdf/internal/tui"
)

func runTUI(cfg appConfig) error {
	logger, closeLog, err := logging.New("mcqpdf", logging.Config{Level: cfg.LogLevel, Path: cfg.LogFile})
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("starting",
		zap.String("version", version),
		zap.String("backend", cfg.BackendURL),
		zap.String("config", cfg.ConfigPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge := dialBridge(cfg.BridgeSocket, logger)
	if c, ok := bridge.(*socketrpc.Client); ok {
		defer c.Close()
	}
	gate := adbridge.NewGate(bridge, logger.Named("adbridge"))
	gate.SetCallbacks(adCallbacks(logger.Named("ads")))

	client := api.NewClient(cfg.BackendURL)
	session := poller.NewSession(client, gate, poller.Config{
		StatusInterval: cfg.StatusInterval,
		HealthInterval: cfg.HealthInterval,
		CreateTimeout:  cfg.CreateTimeout,
		StatusTimeout:  cfg.StatusTimeout,
		RetryOptions:   []retry.Option{retry.WithMaxAttempts(cfg.MaxRetries)},
	}, logger.Named("poller"))
	defer session.Close()

	if gate.Hosted() {
		ads := poller.NewScheduler(logger.Named("ads"))
		ads.Start(ctx, poller.Task{
			Name:      "ad-status",
			Interval:  cfg.AdStatusInterval,
			Immediate: true,
			Run:       gate.Refresh,
		})
		defer ads.Stop()
	}

	form := tui.NewFormPage(ctx, session, gate, tui.FormDefaults{
		ExamType:  model.ExamType(cfg.ExamType),
		PDFFormat: model.PDFFormat(cfg.PDFFormat),
	})
	job := tui.NewJobPage(ctx, session, gate, cfg.DownloadDir)
	app := tui.NewApp(form, job)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// dialBridge connects to the ad host when a socket is configured. A host
// that cannot be reached degrades to browser mode.
func dialBridge(socketPath string, logger *zap.Logger) adbridge.Bridge {
	if socketPath == "" {
		return adbridge.Browser{}
	}
	c, err := socketrpc.Dial(socketPath)
	if err != nil {
		logger.Warn("ad host unavailable, continuing in browser mode",
			zap.String("socket", socketPath),
			zap.Error(err),
		)
		return adbridge.Browser{}
	}
	return c
}

// adCallbacks records host ad events in the log. User-facing messages come
// from the gate's notices.
func adCallbacks(logger *zap.Logger) adbridge.Callbacks {
	return adbridge.Callbacks{
		OnFeatureUnlocked: func() { logger.Info("screenshot feature unlocked") },
		OnFeatureUsed:     func() { logger.Info("screenshot feature used") },
		OnDownloadAdWatched: func(url, filename string) {
			logger.Info("download ad watched", zap.String("url", url), zap.String("filename", filename))
		},
		OnAdError: func(message string) { logger.Warn("ad error", zap.String("message", message)) },
	}
}
