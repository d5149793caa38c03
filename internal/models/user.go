package models

import (
	"time"
)

// User represents a portal account. RoleID refers to a role in the role
// store; zero means no role.
type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	FirstName    string    `gorm:"not null" json:"first_name"`
	MiddleName   string    `json:"middle_name"`
	Surname      string    `gorm:"not null" json:"surname"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"not null" json:"email"`
	RoleID       int       `gorm:"index" json:"role_id"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
