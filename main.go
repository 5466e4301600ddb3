// Package main provides an acoustic event monitor that listens to a microphone,
// toggles an LED matrix on a double clap and sounds an alarm on sustained noise.
//
// Usage:
//
//	soundguard [-config path/to/config.json] [-list-devices] [-version]
//
// If -config is not specified, the monitor looks for config.json in the same
// directory as the binary. Files ending in .yaml or .yml are read as YAML.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/config"
	"github.com/oszuidwest/zwfm-soundguard/internal/monitor"
	"github.com/oszuidwest/zwfm-soundguard/internal/util"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	showDevices := flag.Bool("list-devices", false, "List host capture devices and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *showDevices {
		if err := listDevices(); err != nil {
			slog.Error("failed to list capture devices", "error", err)
			os.Exit(1)
		}
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	snap := cfg.Snapshot()
	setupLogging(snap.LogLevel)

	dev, closeDev, err := openPeripherals(snap)
	if err != nil {
		slog.Error("failed to open peripherals", "driver", snap.Driver, "error", err)
		os.Exit(1)
	}

	mon := monitor.New(cfg, dev)
	srv := NewServer(cfg, mon, snap.Driver)

	slog.Info("starting monitor")
	if err := mon.Start(context.Background()); err != nil {
		slog.Error("failed to start monitor", "error", err)
		_ = closeDev()
		os.Exit(1)
	}

	// Start web server.
	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")

	// Stop version checker goroutine
	srv.version.Stop()

	// Shut down HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := mon.Stop(); err != nil {
		slog.Error("error stopping monitor", "error", err)
	}

	if err := closeDev(); err != nil {
		slog.Error("error closing peripherals", "error", err)
	}

	slog.Info("shutdown complete")
}

// setupLogging installs the default logger at the configured level.
func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
