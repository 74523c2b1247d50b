// Package server exposes the login guard over HTTP with gin.
package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gokaycavdar/go-loginguard/pkg/guard"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// Guard is the pipeline behind the handlers.
type Guard interface {
	Process(ctx context.Context, req guard.Request) (guard.Outcome, error)
	LockStatus(userID string) (locked bool, expiresAt time.Time)
	Events(ctx context.Context, limit int) ([]models.LoginEvent, error)
	Results(ctx context.Context, limit int) ([]models.RiskAssessment, error)
}

type Config struct {
	// IngestRatePerSecond limits ingest per client IP; 0 disables it.
	IngestRatePerSecond float64
	IngestBurst         int
	// TrustedProxies are passed to gin for ClientIP resolution.
	TrustedProxies []string
}

type Server struct {
	guard  Guard
	cfg    Config
	engine *gin.Engine
}

func New(g Guard, cfg Config) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	s := &Server{guard: g, cfg: cfg, engine: r}

	r.Use(gin.Recovery(), requestID(), accessLog())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	ingest := []gin.HandlerFunc{}
	if cfg.IngestRatePerSecond > 0 {
		limiter, err := newClientLimiter(cfg.IngestRatePerSecond, cfg.IngestBurst)
		if err != nil {
			return nil, err
		}
		ingest = append(ingest, limiter.middleware())
	}
	ingest = append(ingest, s.handleIngest)
	v1.POST("/ingest", ingest...)
	v1.GET("/events", s.handleEvents)
	v1.GET("/results", s.handleResults)
	v1.GET("/users/:user_id/lock", s.handleLockStatus)

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() *gin.Engine {
	return s.engine
}
