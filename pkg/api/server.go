package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cuemby/lookout/pkg/distributor"
	"github.com/cuemby/lookout/pkg/log"
	"github.com/cuemby/lookout/pkg/manager"
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Config configures the HTTP server
type Config struct {
	Addr string

	// ReadOnly rejects every mutating request
	ReadOnly bool

	// Heartbeat is the keep-alive interval of push connections
	Heartbeat time.Duration
}

// Server exposes the control API, the push endpoints and the health and
// metrics endpoints
type Server struct {
	cfg         Config
	manager     *manager.Manager
	distributor *distributor.Distributor
	router      *gin.Engine
	http        *http.Server
	logger      zerolog.Logger
}

// NewServer creates a new API server
func NewServer(mgr *manager.Manager, dist *distributor.Distributor, cfg Config) *Server {
	s := &Server{
		cfg:         cfg,
		manager:     mgr,
		distributor: dist,
		logger:      log.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the gin engine for embedding or testing
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), requestMetrics())

	registerHealthRoutes(r)

	api := r.Group("/api")
	if s.cfg.ReadOnly {
		api.Use(readOnly())
	}

	api.GET("/sources", s.listSources)
	api.POST("/sources", s.saveSource)
	api.GET("/sources/:id", s.getSource)
	api.PUT("/sources/:id", s.saveSource)
	api.DELETE("/sources/:id", s.deleteSource)
	api.POST("/sources/:id/:action", s.sourceAction)

	api.GET("/events", s.listEvents)

	api.GET("/dashboards", s.listDashboards)
	api.POST("/dashboards", s.saveDashboard)
	api.GET("/dashboards/:id", s.getDashboard)
	api.PUT("/dashboards/:id", s.saveDashboard)
	api.DELETE("/dashboards/:id", s.deleteDashboard)

	r.GET("/events", s.streamSSE)
	r.GET("/ws", s.streamWS)

	return r
}

// Start serves HTTP until Shutdown is called
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metrics.RegisterComponent(metrics.ComponentAPI, true, "listening on "+s.cfg.Addr)
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("HTTP API listening")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.UpdateComponent(metrics.ComponentAPI, false, err.Error())
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Open push connections end when ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	metrics.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
