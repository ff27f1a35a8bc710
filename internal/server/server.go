package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"pplx-bridge/internal/catalog"
	"pplx-bridge/internal/config"
	"pplx-bridge/internal/service"
	"pplx-bridge/internal/translator"
	"pplx-bridge/internal/upstream"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

type Server struct {
	cfg     config.Config
	svc     *service.Service
	mcp     http.Handler
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware. A
// non-nil mcpHandler is mounted at /mcp alongside the REST endpoints.
func New(cfg config.Config, svc *service.Service, mcpHandler http.Handler) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service must not be nil")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = openAIErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	if cfg.Server.AuthEnabled() {
		e.Use(apiKeyMiddleware(cfg.Server.APIKey))
	}

	srv := &Server{
		cfg:     cfg,
		svc:     svc,
		mcp:     mcpHandler,
		app:     e,
		address: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg, s.mcp != nil)
	slog.Info("starting server", "addr", s.address)

	// No WriteTimeout: answer streams legitimately stay open for minutes.
	httpServer := &http.Server{
		Addr:        s.address,
		Handler:     s.app,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/v1/models", s.handleListModels)
	s.app.POST("/v1/chat/completions", s.handleChatCompletions)

	if s.mcp != nil {
		s.app.Any("/mcp", echo.WrapHandler(s.mcp))
		s.app.Any("/mcp/*", echo.WrapHandler(s.mcp))
	}
}

func apiKeyMiddleware(apiKey string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:X-API-Key",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return requestError{
				Status:  http.StatusUnauthorized,
				Message: "missing or invalid API key",
				Type:    "authentication_error",
			}
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	status := "ok"
	if !s.svc.Healthy() {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, translator.NewModelList(s.svc.Models()))
}

func (s *Server) handleChatCompletions(c echo.Context) error {
	var req translator.ChatCompletionRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	sreq := service.Request{
		Prompt:    req.Prompt(),
		Model:     req.Model,
		Incognito: true,
	}

	if req.Stream {
		return s.streamChatCompletion(c, sreq, req.Model)
	}

	answer, _, err := s.svc.Complete(ctx, sreq)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, translator.NewResponse(req.Model, answer))
}

// streamChatCompletion writes the answer as OpenAI chat chunks over SSE.
// The status line is committed lazily on the first delta so that failures
// before any output still produce a proper JSON error body.
func (s *Server) streamChatCompletion(c echo.Context, sreq service.Request, modelID string) error {
	ctx := c.Request().Context()
	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Type:    "server_error",
		}
	}

	formatter := translator.NewStreamFormatter(modelID)
	started := false
	start := func() error {
		header := c.Response().Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		c.Response().WriteHeader(http.StatusOK)
		if err := writeChunk(writer, formatter.Role()); err != nil {
			return err
		}
		flusher.Flush()
		started = true
		return nil
	}

	answer, _, err := s.svc.Stream(ctx, sreq, func(delta string) error {
		if !started {
			if err := start(); err != nil {
				return err
			}
		}
		if err := writeChunk(writer, formatter.Content(delta)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !started {
			return toHTTPError(err)
		}
		slog.Error("answer stream aborted", "err", err)
		return nil
	}

	if !started {
		if err := start(); err != nil {
			return err
		}
	}
	if trailer := translator.Trailer(answer); trailer != "" {
		if err := writeChunk(writer, formatter.Content(trailer)); err != nil {
			return err
		}
	}
	if err := writeChunk(writer, formatter.Final()); err != nil {
		return err
	}
	if _, err := io.WriteString(writer, translator.StreamDone); err != nil {
		return fmt.Errorf("write stream terminator: %w", err)
	}
	flusher.Flush()
	return nil
}

func writeChunk(w io.Writer, chunk translator.ChatCompletionChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal stream chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write stream chunk: %w", err)
	}
	return nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType, code string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	payload.Error.Code = code
	return c.JSON(status, payload)
}

func openAIErrorHandler(err error, c echo.Context) {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type, reqErr.Code)
		return
	}

	type httpError interface {
		Code() int
		Error() string
	}

	if he, ok := err.(httpError); ok {
		_ = writeError(c, he.Code(), he.Error(), "invalid_request_error", "")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error", "")
}

func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	switch {
	case errors.Is(err, catalog.ErrUnknownModel):
		return requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    "invalid_request_error",
			Code:    "model_not_found",
		}
	case errors.Is(err, upstream.ErrAuthentication):
		return requestError{
			Status:  http.StatusUnauthorized,
			Message: "upstream rejected the session credentials; refresh them and restart",
			Type:    "authentication_error",
		}
	case errors.Is(err, upstream.ErrTimeout):
		return requestError{
			Status:  http.StatusGatewayTimeout,
			Message: "upstream timed out before completing the answer",
			Type:    "upstream_error",
			Code:    "timeout",
		}
	case errors.Is(err, upstream.ErrUnavailable):
		return requestError{
			Status:  http.StatusBadGateway,
			Message: "upstream is unavailable",
			Type:    "upstream_error",
		}
	}

	return requestError{
		Status:  http.StatusBadGateway,
		Message: "upstream provider error",
		Type:    "upstream_error",
	}
}

func printStartupBanner(cfg config.Config, mcpMounted bool) {
	fmt.Println()
	fmt.Println("pplx-bridge ready")
	fmt.Printf("Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /v1/models")
	fmt.Println("  POST /v1/chat/completions")
	if mcpMounted {
		fmt.Println("  ANY  /mcp")
	}
	fmt.Printf("OpenAI-style example:\n  curl http://%s:%d/v1/chat/completions -H 'Content-Type: application/json' -d '{\"model\":\"%s\",\"messages\":[{\"role\":\"user\",\"content\":\"hello\"}]}'\n\n",
		cfg.Server.Host, cfg.Server.Port, cfg.Defaults.Model)
}
