package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
)

// Version is set via ldflags at build time
var Version = "dev"

// SystemHandler serves health and version information
type SystemHandler struct {
	instanceID string
}

// NewSystemHandler creates a SystemHandler
func NewSystemHandler(instanceID string) *SystemHandler {
	return &SystemHandler{instanceID: instanceID}
}

// HealthResponse is the health check body
type HealthResponse struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
}

// Health godoc
// @Summary Health check
// @Description Reports that the server is up, with its instance id and version
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "ok",
		InstanceID: h.instanceID,
		Version:    Version,
		GoVersion:  runtime.Version(),
	})
}
