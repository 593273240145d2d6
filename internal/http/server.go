// Package http provides the HTTP API of the vocabulary optimizer service.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vocabopt/internal/jobs"
	"github.com/fyrsmithlabs/vocabopt/internal/logging"
	"github.com/fyrsmithlabs/vocabopt/internal/sheets"
	v1 "github.com/fyrsmithlabs/vocabopt/pkg/api/v1"
)

// Server provides HTTP endpoints for the optimizer.
type Server struct {
	echo    *echo.Echo
	tracker *jobs.Tracker
	outputs *sheets.OutputStore
	logger  *logging.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// UploadDir receives sentence files until their job finishes.
	UploadDir string
	// MaxUploadMB caps the request body of POST /api/optimize.
	MaxUploadMB int
	// AllowedExtensions are the accepted sentence file extensions.
	AllowedExtensions []string
	// Defaults applied when a form field is empty.
	DefaultMaxSentences int
	DefaultStrictness   string
	DefaultAlgorithm    string
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		Host:                "localhost",
		Port:                5000,
		UploadDir:           "uploads",
		MaxUploadMB:         100,
		AllowedExtensions:   []string{".csv", ".txt", ".tsv"},
		DefaultMaxSentences: 600,
		DefaultStrictness:   v1.StrictnessNormal,
		DefaultAlgorithm:    v1.AlgorithmWeightedGreedy,
	}
}

// NewServer creates a new HTTP server.
func NewServer(tracker *jobs.Tracker, outputs *sheets.OutputStore, logger *logging.Logger, cfg *Config) (*Server, error) {
	if tracker == nil {
		return nil, fmt.Errorf("tracker cannot be nil")
	}
	if outputs == nil {
		return nil, fmt.Errorf("output store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if ctx, ok := logging.TryWithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID)); ok {
				c.SetRequest(c.Request().WithContext(ctx))
			}
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:    e,
		tracker: tracker,
		outputs: outputs,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET(v1.PathHealth, s.handleHealth)

	api := s.echo.Group("/api")
	limit := middleware.BodyLimit(strconv.Itoa(s.config.MaxUploadMB) + "M")
	api.POST("/optimize", s.handleOptimize, limit)
	api.GET("/progress", s.handleProgress)
	api.GET("/list-outputs", s.handleListOutputs)
	api.GET("/download/:name", s.handleDownload)
	api.GET("/test", s.handleTest)
}

// Echo exposes the router so callers can mount extra handlers such as
// /metrics.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// errorHandler renders every error as an ErrorResponse.
func errorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}
		if code >= http.StatusInternalServerError {
			logger.Error(c.Request().Context(), "request failed",
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, v1.ErrorResponse{Error: msg})
		}
		if err != nil {
			logger.Warn(c.Request().Context(), "failed to write error response", zap.Error(err))
		}
	}
}
