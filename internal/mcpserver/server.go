package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/metrics"
	"github.com/mark3labs/contestr/internal/wizard"
)

// DefaultAddr listens on a random loopback port.
const DefaultAddr = "127.0.0.1:0"

// Server exposes one wizard controller as MCP tools over streamable HTTP,
// alongside the Prometheus metrics of the process.
type Server struct {
	ctrl      *wizard.Controller
	metrics   *metrics.Metrics
	mcpServer *server.MCPServer
	stdServer *http.Server
	port      int
	mu        sync.Mutex
}

// New creates a server for ctrl. m may be nil, in which case /metrics is not
// served.
func New(ctrl *wizard.Controller, m *metrics.Metrics) *Server {
	return &Server{
		ctrl:    ctrl,
		metrics: m,
	}
}

// Handler builds the HTTP handler serving /mcp and /metrics.
func (s *Server) Handler() http.Handler {
	s.mcpServer = server.NewMCPServer(
		"contestr",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithStateLess(true),
	))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// Start listens on addr and serves in the background. It returns the bound
// port.
func (s *Server) Start(ctx context.Context, addr string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer != nil {
		return 0, fmt.Errorf("server already started")
	}
	if addr == "" {
		addr = DefaultAddr
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	s.stdServer = &http.Server{Handler: s.Handler()}

	logger.Info("MCP server listening on port %d", s.port)

	stdServer := s.stdServer
	go func() {
		if err := stdServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP server error: %v", err)
		}
	}()

	return s.port, nil
}

// Stop shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer == nil {
		return nil
	}

	logger.Debug("Stopping MCP server")
	if err := s.stdServer.Shutdown(ctx); err != nil {
		logger.Warn("Error stopping MCP server: %v", err)
		return fmt.Errorf("failed to stop server: %w", err)
	}

	s.stdServer = nil
	s.mcpServer = nil
	return nil
}

// URL returns the MCP endpoint.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/mcp", s.port)
}

// MetricsURL returns the metrics endpoint.
func (s *Server) MetricsURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/metrics", s.port)
}
