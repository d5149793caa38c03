package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hrdesk/hrdesk/internal/service"
	"github.com/hrdesk/hrdesk/internal/syncbus"
)

// RoleHandler serves the role manager
type RoleHandler struct {
	svc *service.RoleService
	bus *syncbus.Bus
}

// NewRoleHandler creates a RoleHandler
func NewRoleHandler(svc *service.RoleService, bus *syncbus.Bus) *RoleHandler {
	return &RoleHandler{svc: svc, bus: bus}
}

// ListRoles godoc
// @Summary List active roles
// @Description Active roles in display order, filtered by a case-insensitive substring of the name (and of the description when roles.search_descriptions is on)
// @Tags roles
// @Produce json
// @Param q query string false "Name or description filter"
// @Success 200 {array} models.Role
// @Router /roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.List(c.Query("q")))
}

// CreateRole godoc
// @Summary Create a role
// @Tags roles
// @Accept json
// @Produce json
// @Param role body service.RoleRequest true "Role"
// @Success 201 {object} models.Role
// @Failure 400 {object} ErrorResponse
// @Router /roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req service.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "role name and description are required"})
		return
	}

	role, err := h.svc.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

// UpdateRole godoc
// @Summary Update a role
// @Tags roles
// @Accept json
// @Produce json
// @Param id path int true "Role ID"
// @Param role body service.RoleRequest true "Role"
// @Success 200 {object} models.Role
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /roles/{id} [put]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req service.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "role name and description are required"})
		return
	}

	role, err := h.svc.Update(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// DeleteRole godoc
// @Summary Move a role to the recycle bin
// @Tags roles
// @Produce json
// @Param id path int true "Role ID"
// @Success 200 {object} models.Role
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	role, err := h.svc.SoftDelete(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// ListTrash godoc
// @Summary List the recycle bin
// @Tags roles
// @Produce json
// @Success 200 {array} models.Role
// @Router /roles/trash [get]
func (h *RoleHandler) ListTrash(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Trash())
}

// RestoreRole godoc
// @Summary Restore a role from the recycle bin
// @Tags roles
// @Produce json
// @Param id path int true "Role ID"
// @Success 200 {object} models.Role
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /roles/trash/{id}/restore [post]
func (h *RoleHandler) RestoreRole(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	role, err := h.svc.Restore(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// PurgeRole godoc
// @Summary Delete a role permanently
// @Tags roles
// @Param id path int true "Role ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /roles/trash/{id} [delete]
func (h *RoleHandler) PurgeRole(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Purge(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Events godoc
// @Summary Role change events
// @Description Server-sent "roles" events, one per burst of role changes
// @Tags roles
// @Produce text/event-stream
// @Success 200
// @Router /roles/events [get]
// @Router /users/role-options/events [get]
func (h *RoleHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	ticks := h.bus.Stream(ctx)
	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"at": time.Now().UTC()})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticks:
			c.SSEvent("roles", gin.H{"at": time.Now().UTC()})
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		}
	})
}
