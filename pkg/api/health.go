package api

import (
	"github.com/cuemby/lookout/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// registerHealthRoutes mounts the probes and the Prometheus endpoint
func registerHealthRoutes(r *gin.Engine) {
	r.GET("/health", gin.WrapF(metrics.HealthHandler()))
	r.GET("/ready", gin.WrapF(metrics.ReadyHandler()))
	r.GET("/live", gin.WrapF(metrics.LivenessHandler()))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}
