package main

import (
	"flag"
	"fmt"
	"os"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var backendURL string
	var bridgeSocket string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/mcqpdf/config.yml)")
	flag.StringVar(&backendURL, "backend", "", "override backend origin, e.g. http://localhost:8001")
	flag.StringVar(&bridgeSocket, "bridge", "", "override ad host socket path")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("mcqpdf - MCQ PDF Generator\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if bridgeSocket != "" {
		cfg.BridgeSocket = bridgeSocket
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
