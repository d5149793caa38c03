package auth

import (
	"errors"

	"github.com/hrdesk/hrdesk/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCaptcha     = errors.New("captcha invalid or expired")
	ErrUnauthorized       = errors.New("unauthorized")
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Captcha   string `json:"captcha" binding:"required"`
	CaptchaID string `json:"captcha_id"`
	Remember  bool   `json:"remember"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Msg      string `json:"msg"`
	Username string `json:"username"`
	Role     string `json:"role"`
	RoleID   int    `json:"role_id"`
	Token    string `json:"token"`
}

// Session is the authenticated caller attached to a request
type Session struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	RoleID   int    `json:"role_id"`
	Role     string `json:"role"`
}

// RoleResolver resolves role ids to their current names
type RoleResolver interface {
	Lookup(id int) (role models.Role, inTrash bool, found bool)
}

// resolveRole returns the name of an active role, or "" when the role is
// missing or sits in the recycle bin.
func resolveRole(roles RoleResolver, id int) string {
	if id == 0 || roles == nil {
		return ""
	}
	role, inTrash, found := roles.Lookup(id)
	if !found || inTrash {
		return ""
	}
	return role.Name
}
