package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// AccessTokenCookie carries the session token for browser clients
const AccessTokenCookie = "access_token"

// CookieHelper manages the session cookie.
type CookieHelper struct {
	Secure bool
	Path   string
	Domain string
}

// NewCookieHelper creates a cookie helper scoped to the whole site.
func NewCookieHelper(secure bool) *CookieHelper {
	return &CookieHelper{Secure: secure, Path: "/"}
}

// SetSession stores token in an HttpOnly, SameSite=Lax cookie.
func (h *CookieHelper) SetSession(c *gin.Context, token string, lifetime time.Duration) {
	h.set(c, token, int(lifetime.Seconds()))
}

// ClearSession expires the session cookie.
func (h *CookieHelper) ClearSession(c *gin.Context) {
	h.set(c, "", -1)
}

func (h *CookieHelper) set(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, value, maxAge, h.Path, h.Domain, h.Secure, true)
}
