package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hrdesk/hrdesk/internal/models"
	"gorm.io/gorm"
)

const (
	// SessionContextKey is the key used to store the session in Gin context
	SessionContextKey = "session"
	// TokenDuration is the validity period for session tokens
	TokenDuration = 24 * time.Hour
	// RememberDuration is used instead when the user asks to be remembered
	RememberDuration = 30 * 24 * time.Hour
)

// Claims represents JWT claims
type Claims struct {
	UserID uint   `json:"uid"`
	Role   string `json:"role"`
	RoleID int    `json:"role_id"`
	jwt.RegisteredClaims
}

// Authenticator verifies captcha and password logins and validates session tokens
type Authenticator struct {
	db        *gorm.DB
	jwtSecret []byte
	roles     RoleResolver
	captcha   *CaptchaService
	now       func() time.Time
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(db *gorm.DB, jwtSecret string, roles RoleResolver, captcha *CaptchaService) *Authenticator {
	return &Authenticator{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		roles:     roles,
		captcha:   captcha,
		now:       time.Now,
	}
}

// Captcha returns the captcha service used by Login
func (a *Authenticator) Captcha() *CaptchaService {
	return a.captcha
}

// Login checks the captcha, then the password, and returns a signed token
// together with its lifetime.
func (a *Authenticator) Login(ctx context.Context, req LoginRequest) (*LoginResponse, time.Duration, error) {
	ok, err := a.captcha.Verify(ctx, req.CaptchaID, req.Captcha)
	if err != nil {
		return nil, 0, fmt.Errorf("captcha check failed: %w", err)
	}
	if !ok {
		slog.Warn("Login attempt with invalid captcha", "username", req.Username)
		return nil, 0, ErrInvalidCaptcha
	}

	var user models.User
	result := a.db.WithContext(ctx).Where("username = ?", req.Username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Warn("Login attempt with non-existent username", "username", req.Username)
			return nil, 0, ErrInvalidCredentials
		}
		return nil, 0, fmt.Errorf("database error: %w", result.Error)
	}

	if !VerifyPassword(user.PasswordHash, req.Password) {
		slog.Warn("Login attempt with incorrect password", "username", req.Username)
		return nil, 0, ErrInvalidCredentials
	}

	lifetime := TokenDuration
	if req.Remember {
		lifetime = RememberDuration
	}

	role := resolveRole(a.roles, user.RoleID)
	token, err := a.generateToken(&user, role, lifetime)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to generate token: %w", err)
	}

	slog.Info("User logged in successfully", "user_id", user.ID, "username", user.Username, "role", role)
	return &LoginResponse{
		Msg:      "ok",
		Username: user.Username,
		Role:     role,
		RoleID:   user.RoleID,
		Token:    token,
	}, lifetime, nil
}

// generateToken creates a JWT token for a user
func (a *Authenticator) generateToken(user *models.User, role string, lifetime time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: user.ID,
		Role:   role,
		RoleID: user.RoleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "hrdesk",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateToken validates a JWT token and returns claims
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrUnauthorized
}

// LoadSession validates a token and re-reads the user so the session carries
// the user's current role rather than the one baked into the token.
func (a *Authenticator) LoadSession(ctx context.Context, tokenString string) (*Session, error) {
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := a.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return &Session{
		UserID:   user.ID,
		Username: user.Username,
		RoleID:   user.RoleID,
		Role:     resolveRole(a.roles, user.RoleID),
	}, nil
}

// tokenFromRequest checks the Authorization header first, then the session cookie.
func tokenFromRequest(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("invalid authorization header format")
		}
		return parts[1], nil
	}
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token, nil
	}
	return "", errors.New("missing authorization")
}

// SessionFromRequest loads the session of a request that did not pass through Middleware
func (a *Authenticator) SessionFromRequest(c *gin.Context) (*Session, error) {
	tokenString, err := tokenFromRequest(c)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return a.LoadSession(c.Request.Context(), tokenString)
}

// Middleware returns a Gin middleware that requires a valid session
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFromRequest(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		session, err := a.LoadSession(c.Request.Context(), tokenString)
		if err != nil {
			slog.Warn("Invalid token", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(SessionContextKey, session)
		c.Next()
	}
}

// SessionFromContext extracts the authenticated session from the Gin context
func SessionFromContext(c *gin.Context) (*Session, error) {
	value, exists := c.Get(SessionContextKey)
	if !exists {
		return nil, ErrUnauthorized
	}

	session, ok := value.(*Session)
	if !ok {
		return nil, errors.New("invalid session in context")
	}
	return session, nil
}
