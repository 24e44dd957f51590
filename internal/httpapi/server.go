// Package httpapi exposes the question answering pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mattchw/mad-matt-ai/internal/domain"
)

// Answerer answers a question against an ingested namespace.
type Answerer interface {
	Answer(ctx context.Context, question, namespace string, topK int) (domain.Answer, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host      string
	Port      int
	Namespace string
}

// Server provides the chat HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	answerer Answerer
	logger   *zap.Logger
	config   Config
}

// NewServer creates an HTTP server around the given answerer.
func NewServer(answerer Answerer, logger *zap.Logger, cfg Config) (*Server, error) {
	if answerer == nil {
		return nil, fmt.Errorf("answerer cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		answerer: answerer,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.POST("/chat", s.handleChat)
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Question  string `json:"question"`
	Namespace string `json:"namespace,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

// ChatSource describes one retrieved passage backing an answer.
type ChatSource struct {
	ID     string            `json:"id"`
	Text   string            `json:"text"`
	Score  float32           `json:"score"`
	Source string            `json:"source,omitempty"`
	Title  string            `json:"title,omitempty"`
	Meta   map[string]string `json:"metadata,omitempty"`
}

// ChatResponse is the response body for POST /api/chat.
type ChatResponse struct {
	Answer  string       `json:"answer"`
	Sources []ChatSource `json:"sources"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "no question in the request")
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = s.config.Namespace
	}

	answer, err := s.answerer.Answer(c.Request().Context(), req.Question, namespace, req.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, "no question in the request")
		}
		s.logger.Error("answer failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	sources := make([]ChatSource, 0, len(answer.Context))
	for _, rec := range answer.Context {
		src := ChatSource{
			ID:    rec.ID,
			Text:  rec.Text,
			Score: rec.Score,
		}
		if rec.Metadata != nil {
			src.Source = rec.Metadata[domain.MetaSource]
			src.Title = rec.Metadata[domain.MetaTitle]
			src.Meta = rec.Metadata
		}
		sources = append(sources, src)
	}

	return c.JSON(http.StatusOK, ChatResponse{Answer: answer.Text, Sources: sources})
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("http server starting", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
