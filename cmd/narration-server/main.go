package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rheath/echojam/internal/app"
	"github.com/rheath/echojam/internal/config"
	"github.com/rheath/echojam/internal/jobs"
	"github.com/rheath/echojam/internal/mcpserver"
	"github.com/rheath/echojam/internal/observability"
)

var version = "dev"

func main() {
	cfgFile := flag.String("config", "", "Config file (default ./echojam.yaml)")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		observability.InitLogger("info", "json").Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.InitLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("EchoJam narration server starting...", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := observability.InitTracer(ctx, "echojam-narration", version, cfg.Server.Environment)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("Tracer shutdown error", "error", err)
			}
		}()
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create app", "error", err)
		os.Exit(1)
	}

	personas, err := a.Personas()
	if err != nil {
		logger.Error("Invalid default personas", "error", err)
		os.Exit(1)
	}

	mgr := jobs.NewManager(ctx, a.Store, a.Orchestrator(nil), cfg.Generation.ModeFile, cfg.Generation.MaxJobs, logger)
	srv := mcpserver.New(mcpserver.Config{
		Port:         cfg.Server.Port,
		MetricsAddr:  cfg.Server.MetricsAddr,
		Version:      version,
		Personas:     personas,
		ScriptAPIKey: cfg.ScriptAPIKey(),
		SpeechAPIKey: cfg.SpeechAPIKey(),
	}, mgr, a.Store, a.Metrics, logger)

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received, waiting for active jobs...")
		// Running jobs see the cancelled context and mark themselves failed.
		// Leave them time to write that before the platform kills us.
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 8*time.Second)
		srv.Shutdown(waitCtx)
		waitCancel()
		a.Close()
		logger.Info("Shutdown complete")
		os.Exit(0)
	}()

	if err := srv.Start(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
