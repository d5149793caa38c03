package service

import "fmt"

// OnDeletePolicy decides what happens to users whose role is deleted.
type OnDeletePolicy string

const (
	// OnDeleteNullify lets users keep a trashed role and clears it on purge.
	OnDeleteNullify OnDeletePolicy = "nullify"
	// OnDeleteBlock refuses to delete or purge a role that users still hold.
	OnDeleteBlock OnDeletePolicy = "block"
)

// ParseOnDeletePolicy maps the roles.on_delete setting. Empty means nullify.
func ParseOnDeletePolicy(s string) (OnDeletePolicy, error) {
	switch OnDeletePolicy(s) {
	case "", OnDeleteNullify:
		return OnDeleteNullify, nil
	case OnDeleteBlock:
		return OnDeleteBlock, nil
	default:
		return "", fmt.Errorf("unknown role on_delete policy %q", s)
	}
}

// UserRequest holds the user form fields.
type UserRequest struct {
	FirstName       string `json:"first_name" binding:"required"`
	MiddleName      string `json:"middle_name"`
	Surname         string `json:"surname" binding:"required"`
	Email           string `json:"email" binding:"required"`
	RoleID          int    `json:"role_id"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// RoleRequest holds the role form fields.
type RoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
}
