package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cuemby/lookout/pkg/distributor"
	"github.com/cuemby/lookout/pkg/manager"
	"github.com/cuemby/lookout/pkg/stream"
	"github.com/cuemby/lookout/pkg/types"
	"github.com/gin-gonic/gin"
)

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

// writeError maps manager errors to HTTP status codes. Errors that are not
// manager sentinels get fallback.
func writeError(c *gin.Context, fallback int, err error) {
	code := fallback
	switch {
	case errors.Is(err, manager.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, manager.ErrNotEnabled),
		errors.Is(err, manager.ErrAlreadyRunning),
		errors.Is(err, manager.ErrNotRunning):
		code = http.StatusConflict
	}
	c.JSON(code, errorResp{Error: err.Error()})
}

// --- Sources ---

func (s *Server) listSources(c *gin.Context) {
	statuses, err := s.manager.Statuses()
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (s *Server) getSource(c *gin.Context) {
	status, err := s.manager.Status(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) saveSource(c *gin.Context) {
	var src types.SourceInstance
	if err := c.ShouldBindJSON(&src); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if id := c.Param("id"); id != "" {
		src.ID = id
	}
	if err := s.manager.SaveSource(&src); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, src)
}

func (s *Server) deleteSource(c *gin.Context) {
	if err := s.manager.DeleteSource(c.Param("id")); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (s *Server) sourceAction(c *gin.Context) {
	id := c.Param("id")

	var err error
	switch c.Param("action") {
	case "start":
		err = s.manager.StartSource(id, false)
	case "stop":
		err = s.manager.StopSource(id)
	case "restart":
		err = s.manager.RestartSource(id)
	case "trigger":
		err = s.manager.TriggerSource(id)
	case "enable":
		err = s.manager.SetEnabled(id, true)
	case "disable":
		err = s.manager.SetEnabled(id, false)
	default:
		c.JSON(http.StatusNotFound, errorResp{Error: "unknown action " + c.Param("action")})
		return
	}
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

// --- Events ---

func (s *Server) listEvents(c *gin.Context) {
	c.JSON(http.StatusOK, s.distributor.CachedEvents())
}

// --- Dashboards ---

func (s *Server) listDashboards(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.ListDashboards())
}

func (s *Server) getDashboard(c *gin.Context) {
	d, err := s.manager.GetDashboard(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) saveDashboard(c *gin.Context) {
	var d types.Dashboard
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if id := c.Param("id"); id != "" {
		d.ID = id
	}
	if err := s.manager.SaveDashboard(&d); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) deleteDashboard(c *gin.Context) {
	if err := s.manager.DeleteDashboard(c.Param("id")); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

// --- Push connections ---

// subscription reads the dashboard scope and rate limit of a push request
func (s *Server) subscription(c *gin.Context) (distributor.Subscription, bool) {
	var sub distributor.Subscription

	if id := c.Query("dashboard"); id != "" {
		scope, err := s.manager.ScopeFor(id)
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return sub, false
		}
		sub.Scope = scope
	}

	if raw := c.Query("rate"); raw != "" {
		limit, err := strconv.ParseFloat(raw, 64)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid rate " + raw})
			return sub, false
		}
		sub.RateLimit = limit
	}

	return sub, true
}

func (s *Server) streamSSE(c *gin.Context) {
	sub, ok := s.subscription(c)
	if !ok {
		return
	}

	conn, err := stream.NewSSEConn(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}

	sub.Conn = conn
	s.distributor.ConnectionOpened(sub)
	defer s.distributor.ConnectionClosed(conn.ID())

	conn.Serve(c.Request.Context(), s.cfg.Heartbeat)
}

func (s *Server) streamWS(c *gin.Context) {
	sub, ok := s.subscription(c)
	if !ok {
		return
	}

	conn, err := stream.UpgradeWS(c.Writer, c.Request)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sub.Conn = conn
	s.distributor.ConnectionOpened(sub)
	defer s.distributor.ConnectionClosed(conn.ID())

	conn.Serve(c.Request.Context(), s.cfg.Heartbeat)
}
