package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hrdesk/hrdesk/internal/audit"
	"github.com/hrdesk/hrdesk/internal/auth"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"gorm.io/gorm"
)

// AuthHandler serves captcha, login, logout and the dashboard
type AuthHandler struct {
	db       *gorm.DB
	auth     *auth.Authenticator
	cookies  *auth.CookieHelper
	enforcer *rbac.Enforcer
}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler(db *gorm.DB, authenticator *auth.Authenticator, cookies *auth.CookieHelper, enforcer *rbac.Enforcer) *AuthHandler {
	return &AuthHandler{db: db, auth: authenticator, cookies: cookies, enforcer: enforcer}
}

// DashboardResponse is the landing page payload
type DashboardResponse struct {
	Username string          `json:"username"`
	Role     string          `json:"role"`
	Sidebar  []rbac.MenuItem `json:"sidebar"`
}

// Captcha godoc
// @Summary Issue a captcha
// @Description Returns a new captcha id and word; the word is valid for five minutes and one attempt
// @Tags auth
// @Produce json
// @Success 200 {object} auth.Captcha
// @Failure 500 {object} ErrorResponse
// @Router /captcha [get]
func (h *AuthHandler) Captcha(c *gin.Context) {
	captcha, err := h.auth.Captcha().Issue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, captcha)
}

// Login godoc
// @Summary User login
// @Description Verify the captcha and credentials, then set the session cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body auth.LoginRequest true "Login credentials"
// @Success 200 {object} auth.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	resp, lifetime, err := h.auth.Login(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCaptcha):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, auth.ErrInvalidCredentials):
			h.record(c, req.Username, audit.ActionLoginFailed)
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		default:
			respondError(c, err)
		}
		return
	}

	h.record(c, resp.Username, audit.ActionLogin)
	h.cookies.SetSession(c, resp.Token, lifetime)
	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary User logout
// @Description Clear the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if session, err := h.auth.SessionFromRequest(c); err == nil {
		h.record(c, session.Username, audit.ActionLogout)
	}
	h.cookies.ClearSession(c)
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

// Dashboard godoc
// @Summary Dashboard
// @Description Returns the caller and the sidebar entries their role may view
// @Tags auth
// @Produce json
// @Success 200 {object} DashboardResponse
// @Failure 401 {object} ErrorResponse
// @Router /dashboard [get]
func (h *AuthHandler) Dashboard(c *gin.Context) {
	session, err := auth.SessionFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	// a trashed or missing role grants nothing
	roleID := session.RoleID
	if session.Role == "" {
		roleID = 0
	}
	sidebar, err := h.enforcer.Sidebar(roleID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, DashboardResponse{
		Username: session.Username,
		Role:     session.Role,
		Sidebar:  sidebar,
	})
}

func (h *AuthHandler) record(c *gin.Context, username, action string) {
	details := map[string]string{"ip": c.ClientIP()}
	if err := audit.LogAction(c.Request.Context(), h.db, username, action, "session", details); err != nil {
		slog.Warn("Failed to write audit log", "action", action, "error", err)
	}
}
