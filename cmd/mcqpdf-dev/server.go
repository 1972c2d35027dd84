package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/mcqpdf/internal/adbridge"
	"github.com/tinytelemetry/mcqpdf/internal/httpserver"
	"github.com/tinytelemetry/mcqpdf/internal/logging"
	"github.com/tinytelemetry/mcqpdf/internal/socketrpc"
)

// runServer starts the simulated backend and, when configured, the
// simulated ad host.
func runServer(cfg devConfig) error {
	logger, closeLog, err := logging.New("mcqpdf-dev", logging.Config{
		Level:   cfg.LogLevel,
		Stderr:  true,
		Console: true,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	sc, err := cfg.scenario()
	if err != nil {
		return err
	}

	backend, err := httpserver.NewServer(cfg.Addr, sc, logger.Named("backend"))
	if err != nil {
		return err
	}
	if err := backend.Start(); err != nil {
		return fmt.Errorf("failed to start backend: %w", err)
	}
	defer backend.Stop()

	var host *adbridge.SimulatedHost
	if cfg.BridgeSocket != "" {
		host = adbridge.NewSimulatedHost(cfg.UnlockDelay)
		host.HandleDownloads = cfg.HandleDownloads
		defer host.Close()

		sockServer := socketrpc.NewServer(cfg.BridgeSocket, host, logger.Named("adhost"))
		if err := sockServer.Start(); err != nil {
			logger.Warn("failed to start ad host socket", zap.Error(err))
			host = nil
		} else {
			defer sockServer.Stop()
		}
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.BridgeSocket)
		os.Exit(1)
	}()

	printStartupBanner(cfg, backend.Addr(), sc, host != nil)

	g, gctx := errgroup.WithContext(ctx)

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("errgroup exited with error", zap.Error(err))
	}

	signal.Stop(sigCh)
	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func shortenPath(p string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return p
	}
	if rel, err := filepath.Rel(home, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.Join("~", rel)
	}
	return p
}

func printStartupBanner(cfg devConfig, addr string, sc httpserver.Scenario, hostEnabled bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, cyan.Bold(true).Render("    mcqpdf-dev")+"  "+dim.Render("v"+version))
	lines = append(lines, "")
	lines = append(lines, dim.Render("    ─────────────────────────────────"))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Endpoints"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render("http://"+addr)))
	if hostEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Ad Host        %s", check, cyan.Render(shortenPath(cfg.BridgeSocket))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Ad Host        %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Scenario"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Links          %s", check, dim.Render(fmt.Sprintf("%d × %d MCQs every %s", sc.TotalLinks, sc.MCQsPerLink, sc.StepInterval))))
	if len(sc.FailTopics) > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Failing topics %s", check, dim.Render(strings.Join(sc.FailTopics, ", "))))
	}
	lines = append(lines, fmt.Sprintf("    %s  Restart window %s", check, dim.Render(sc.RestartWindow.String())))
	lines = append(lines, "")
	lines = append(lines, dim.Render("    Press Ctrl+C to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}
