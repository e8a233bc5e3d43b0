// Package mcpserver exposes narration jobs as MCP tools over streamable HTTP.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rheath/echojam/internal/jobs"
	"github.com/rheath/echojam/internal/metrics"
	"github.com/rheath/echojam/internal/persona"
	"github.com/rheath/echojam/internal/store"
)

// Config holds server configuration.
type Config struct {
	Port        int
	MetricsAddr string // empty disables the metrics listener
	Version     string
	// Default personas and provider keys used when a tool call omits them.
	Personas     []persona.Name
	ScriptAPIKey string
	SpeechAPIKey string
}

// Server is the MCP server for narration generation.
type Server struct {
	cfg      Config
	mcp      *server.MCPServer
	handlers *Handlers
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// New creates the MCP server and registers its tools.
func New(cfg Config, mgr *jobs.Manager, jobStore store.Jobs, m *metrics.Metrics, logger *slog.Logger) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	handlers := NewHandlers(mgr, jobStore, cfg, logger)

	mcpServer := server.NewMCPServer(
		"echojam",
		cfg.Version,
		server.WithToolCapabilities(true),
	)

	tools := ToolDefs()
	mcpServer.AddTool(tools[0], handlers.HandleGenerateNarration)
	mcpServer.AddTool(tools[1], handlers.HandleGetJob)
	mcpServer.AddTool(tools[2], handlers.HandleCancelJob)
	mcpServer.AddTool(tools[3], handlers.HandleValidateMix)

	return &Server{
		cfg:      cfg,
		mcp:      mcpServer,
		handlers: handlers,
		metrics:  m,
		log:      logger,
	}
}

// Start runs the HTTP MCP server and, when configured, the metrics listener.
// It blocks until the MCP listener fails.
func (s *Server) Start() error {
	if s.cfg.MetricsAddr != "" && s.metrics != nil {
		go s.serveMetrics()
	}

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.log.Info("Starting MCP server", "addr", addr)

	httpServer := server.NewStreamableHTTPServer(s.mcp,
		server.WithStateLess(true),
	)
	return httpServer.Start(addr)
}

func (s *Server) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	srv := &http.Server{
		Addr:              s.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("Serving metrics", "addr", s.cfg.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("Metrics server error", "error", err)
	}
}

// Shutdown waits for running jobs, giving up when ctx ends.
func (s *Server) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.handlers.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("All jobs finished")
	case <-ctx.Done():
		s.log.Warn("Shutdown deadline reached with jobs still running", "running", s.handlers.jobs.Running())
	}
}
