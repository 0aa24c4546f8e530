// Package api exposes the ops surface: manual pipeline triggers and queue
// diagnostics, behind an admin session.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/minki/fundscan/internal/config"
	"github.com/minki/fundscan/internal/models"
	"github.com/minki/fundscan/internal/store"
)

// OpsStore is the read/requeue surface the API needs.
type OpsStore interface {
	QueueStats(ctx context.Context) (map[models.ProcessingStatus]int, error)
	SkipReasons(ctx context.Context) (map[string]int, error)
	RecentRuns(ctx context.Context, limit int) ([]store.ScrapeRun, error)
	RequeueJob(ctx context.Context, jobID uuid.UUID, maxAttempts int) error
	RequeueFailed(ctx context.Context, maxAttempts int) (int, error)
	FieldPopulationRates(ctx context.Context) ([]store.FieldPopulation, error)
}

// Discoverer triggers a discovery pass.
type Discoverer interface {
	DiscoverAll(ctx context.Context) error
}

// Processor drains the job queue.
type Processor interface {
	Run(ctx context.Context, filter store.JobFilter) error
}

// Server is the ops HTTP server.
type Server struct {
	echo        *echo.Echo
	store       OpsStore
	discoverer  Discoverer
	processor   Processor
	cfg         config.ServerConfig
	maxAttempts int
	base        context.Context // lifetime of operator-triggered background runs
}

func NewServer(st OpsStore, d Discoverer, p Processor, cfg config.ServerConfig, maxAttempts int) *Server {
	s := &Server{
		echo:        echo.New(),
		store:       st,
		discoverer:  d,
		processor:   p,
		cfg:         cfg,
		maxAttempts: maxAttempts,
		base:        context.Background(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.Use(middleware.Recover())
	if s.cfg.CORSOrigins != "" {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: strings.Split(s.cfg.CORSOrigins, ","),
		}))
	}

	e.GET("/healthz", s.handleHealth)
	e.POST("/api/auth/login", s.handleLogin)

	admin := e.Group("/api", requireAuth(s.cfg.JWTSecret))
	admin.GET("/queue", s.handleQueue)
	admin.GET("/skips", s.handleSkips)
	admin.GET("/runs", s.handleRuns)
	admin.GET("/fields", s.handleFields)
	admin.POST("/discover", s.handleDiscover)
	admin.POST("/process", s.handleProcess)
	admin.POST("/jobs/requeue", s.handleRequeueFailed)
	admin.POST("/jobs/:id/requeue", s.handleRequeueJob)
}

// Start blocks serving until ctx is cancelled. Runs triggered through the
// API share the same ctx, so shutdown cancels them too.
func (s *Server) Start(ctx context.Context) error {
	s.base = ctx
	go func() {
		<-ctx.Done()
		if err := s.echo.Shutdown(context.Background()); err != nil {
			zap.S().Warnw("server shutdown", "error", err)
		}
	}()
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Secret string `json:"secret"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bad request body")
	}
	if s.cfg.AdminSecretHash == "" {
		return echo.NewHTTPError(http.StatusForbidden, "admin access not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminSecretHash), []byte(req.Secret)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid secret")
	}
	token, err := issueToken(s.cfg.JWTSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "token issue failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleQueue(c echo.Context) error {
	stats, err := s.store.QueueStats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleSkips(c echo.Context) error {
	reasons, err := s.store.SkipReasons(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, reasons)
}

func (s *Server) handleRuns(c echo.Context) error {
	runs, err := s.store.RecentRuns(c.Request().Context(), 20)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleFields(c echo.Context) error {
	rates, err := s.store.FieldPopulationRates(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rates)
}

// handleDiscover fires a discovery pass in the background; the caller polls
// /api/runs for the outcome.
func (s *Server) handleDiscover(c echo.Context) error {
	go func() {
		if err := s.discoverer.DiscoverAll(s.base); err != nil {
			zap.S().Errorw("triggered discovery failed", "error", err)
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleProcess(c echo.Context) error {
	go func() {
		if err := s.processor.Run(s.base, store.JobFilter{}); err != nil {
			zap.S().Errorw("triggered processing failed", "error", err)
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleRequeueFailed(c echo.Context) error {
	n, err := s.store.RequeueFailed(c.Request().Context(), s.maxAttempts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"requeued": n})
}

func (s *Server) handleRequeueJob(c echo.Context) error {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bad job id")
	}
	if err := s.store.RequeueJob(c.Request().Context(), jobID, s.maxAttempts); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "requeued"})
}
