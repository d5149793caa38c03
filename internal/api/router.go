package api

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hrdesk/hrdesk/internal/api/handlers"
	"github.com/hrdesk/hrdesk/internal/api/middleware"
	"github.com/hrdesk/hrdesk/internal/auth"
	"github.com/hrdesk/hrdesk/internal/config"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/service"
	"github.com/hrdesk/hrdesk/internal/syncbus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Deps holds what the router wires into handlers
type Deps struct {
	DB            *gorm.DB
	Bus           *syncbus.Bus
	Authenticator *auth.Authenticator
	Enforcer      *rbac.Enforcer
	Roles         *service.RoleService
	Users         *service.UserService
	InstanceID    string
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware())
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	cookies := auth.NewCookieHelper(cfg.Auth.CookieSecure)
	systemHandler := handlers.NewSystemHandler(deps.InstanceID)
	authHandler := handlers.NewAuthHandler(deps.DB, deps.Authenticator, cookies, deps.Enforcer)
	roleHandler := handlers.NewRoleHandler(deps.Roles, deps.Bus)
	userHandler := handlers.NewUserHandler(deps.Users)

	// Public routes
	public := router.Group("/api")
	{
		public.GET("/health", systemHandler.Health)
		public.GET("/captcha", authHandler.Captcha)
		public.POST("/login", authHandler.Login)
		public.POST("/logout", authHandler.Logout)
	}

	// Protected routes (require authentication)
	protected := router.Group("/api")
	protected.Use(deps.Authenticator.Middleware())
	{
		protected.GET("/dashboard", authHandler.Dashboard)

		roles := protected.Group("/roles", middleware.RequireModule(deps.Enforcer, rbac.ModuleRoleManager))
		{
			roles.GET("", roleHandler.ListRoles)
			roles.POST("", roleHandler.CreateRole)
			roles.PUT("/:id", roleHandler.UpdateRole)
			roles.DELETE("/:id", roleHandler.DeleteRole)
			roles.GET("/trash", roleHandler.ListTrash)
			roles.POST("/trash/:id/restore", roleHandler.RestoreRole)
			roles.DELETE("/trash/:id", roleHandler.PurgeRole)
			roles.GET("/events", roleHandler.Events)
		}

		users := protected.Group("/users", middleware.RequireModule(deps.Enforcer, rbac.ModuleUserManager))
		{
			users.GET("", userHandler.ListUsers)
			users.GET("/role-options", userHandler.RoleOptions)
			users.GET("/role-options/events", roleHandler.Events)
			users.POST("", userHandler.CreateUser)
			users.GET("/:id", userHandler.GetUser)
			users.PUT("/:id", userHandler.UpdateUser)
			users.DELETE("/:id", userHandler.DeleteUser)
		}
	}

	// Swagger documentation
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	slog.Info("API router initialized", "mode", cfg.Server.Mode)
	return router
}

// requestIDMiddleware tags each request with an id for log correlation
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		slog.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		)
	}
}

// corsMiddleware adds CORS headers for the configured origins. Credentials
// are allowed, so the origin is echoed rather than wildcarded.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && slices.Contains(allowed, origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
