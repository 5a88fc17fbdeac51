package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/logtower/backend/internal/infrastructure/logger"
	"github.com/logtower/backend/internal/infrastructure/persistence"
	"github.com/logtower/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Database is what the health check needs from the store
type Database interface {
	Ping(ctx context.Context) error
	Stats() (persistence.ConnectionStats, error)
}

// SystemHandler serves health and system information
type SystemHandler struct {
	BaseHandler
	db        Database
	name      string
	version   string
	startTime time.Time
}

// NewSystemHandler creates a SystemHandler; db may be nil when the API runs without a store
func NewSystemHandler(db Database, name, version string) *SystemHandler {
	return &SystemHandler{
		db:        db,
		name:      name,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status      string                       `json:"status"`
	Time        string                       `json:"time"`
	Database    string                       `json:"database"`
	Connections *persistence.ConnectionStats `json:"connections,omitempty"`
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// RegisterRoutes mounts the system endpoints under /system
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/system/info", h.GetSystemInfo)
}

// Health reports whether the API and its database are usable
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Time:     time.Now().Format(time.RFC3339),
		Database: "disabled",
	}
	if h.db == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	if err := h.db.Ping(c.Request.Context()); err != nil {
		logger.FromContext(c.Request.Context()).Warn("Health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "error"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp.Database = "ok"
	if stats, err := h.db.Stats(); err == nil {
		resp.Connections = &stats
	}
	c.JSON(http.StatusOK, resp)
}

// GetSystemInfo returns the service name, version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}
