// Package server exposes the TopicBook HTTP API: task submission, the SSE
// status stream, book retrieval and operational endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/topicbook/config"
	"github.com/mohammad-safakhou/topicbook/internal/books"
	"github.com/mohammad-safakhou/topicbook/internal/logging"
	"github.com/mohammad-safakhou/topicbook/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Tasks is the part of the task registry the API needs.
type Tasks interface {
	Submit(req task.Request) (string, error)
	Snapshot(id string) (task.Snapshot, error)
	Observe(ctx context.Context, id string) (<-chan task.Event, error)
}

// Library lists and reads persisted books.
type Library interface {
	List() ([]string, error)
	Retrieve(name string) (books.Document, error)
}

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "topicbook_http_requests_total",
	Help: "HTTP requests by route and status code.",
}, []string{"method", "route", "code"})

// Server wires the echo instance to the registry and the book store.
type Server struct {
	e         *echo.Echo
	tasks     Tasks
	library   Library
	heartbeat time.Duration
	logger    *logrus.Entry
}

func New(cfg config.ServerConfig, tasks Tasks, library Library, logger logrus.FieldLogger) *Server {
	cfg = cfg.Normalize()
	s := &Server{
		e:         echo.New(),
		tasks:     tasks,
		library:   library,
		heartbeat: cfg.StreamHeartbeat,
		logger:    logging.Component(logger, "http"),
	}
	e := s.e
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(countRequests)

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to the TopicBook API!"})
	})
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/generate", s.generate)
	e.GET("/status/:task_id", s.status)
	e.GET("/tasks/:task_id", s.snapshot)
	e.GET("/books", s.listBooks)
	e.GET("/books/:filename", s.showBook)
	return s
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves until Shutdown; http.ErrServerClosed is not an error.
func (s *Server) Start(addr string) error {
	s.logger.WithField("addr", addr).Info("listening")
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// handleError renders every error as {"error": "..."} with a mapped status.
func (s *Server) handleError(err error, c echo.Context) {
	code, msg := statusFor(err)
	req := c.Request()
	entry := s.logger.WithFields(logrus.Fields{
		"code":   code,
		"method": req.Method,
		"path":   req.URL.Path,
		"remote": c.RealIP(),
	}).WithError(err)
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	case errors.Is(err, task.ErrEmptyTopic), errors.Is(err, books.ErrInvalidName):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, task.ErrTaskNotFound), errors.Is(err, books.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, task.ErrRegistryClosed):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		code := c.Response().Status
		if err != nil {
			code, _ = statusFor(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(code)).Inc()
		return err
	}
}
