// Package mcpserver exposes the search service as MCP tools over stdio or
// streamable HTTP.
package mcpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"pplx-bridge/internal/config"
	"pplx-bridge/internal/service"
)

const (
	serverName    = "pplx-bridge"
	serverVersion = "1.0.0"

	shutdownGracePeriod = 10 * time.Second
)

// Server wraps the MCP tool server and its transports.
type Server struct {
	cfg    config.MCPConfig
	apiKey string
	mcp    *server.MCPServer
}

// New builds the tool server. apiKey guards the HTTP transport only; stdio
// runs for a local client that already owns the process.
func New(svc *service.Service, defaults config.DefaultsConfig, cfg config.MCPConfig, apiKey string) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service must not be nil")
	}

	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)
	registerTools(s, svc, defaults)

	return &Server{
		cfg:    cfg,
		apiKey: apiKey,
		mcp:    s,
	}, nil
}

// ServeStdio serves MCP over stdin/stdout and blocks until the client
// disconnects. Diagnostics go to stderr; stdout belongs to the protocol.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp,
		server.WithErrorLogger(log.New(os.Stderr, "mcp: ", log.LstdFlags)),
	)
}

// Handler returns the streamable HTTP handler, wrapped with API-key
// authentication when a key is configured. Suitable for mounting inside
// another HTTP server.
func (s *Server) Handler() http.Handler {
	var h http.Handler = server.NewStreamableHTTPServer(s.mcp)
	if s.apiKey != "" {
		h = requireAPIKey(s.apiKey, h)
	}
	return h
}

// ServeHTTP runs a standalone streamable HTTP listener and blocks until the
// context is cancelled.
func (s *Server) ServeHTTP(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	slog.Info("starting MCP server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("MCP server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func requireAPIKey(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"missing or invalid API key","type":"authentication_error"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
