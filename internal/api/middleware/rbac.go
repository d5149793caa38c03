package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hrdesk/hrdesk/internal/auth"
	"github.com/hrdesk/hrdesk/internal/rbac"
)

// RequireModule ensures the caller's role may view module.
// A role that is missing or in the recycle bin grants nothing.
func RequireModule(enforcer *rbac.Enforcer, module string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := auth.SessionFromContext(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		if session.Role == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			c.Abort()
			return
		}

		allowed, err := enforcer.CanView(session.RoleID, module)
		if err != nil {
			slog.Error("Module check failed", "module", module, "error", err)
		}
		if err != nil || !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			c.Abort()
			return
		}

		c.Next()
	}
}
