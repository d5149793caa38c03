package models

import (
	"time"
)

// AuditLog represents a record of user actions for compliance
type AuditLog struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Actor       string    `gorm:"not null;index" json:"actor"`   // username, or "System"
	Action      string    `gorm:"not null" json:"action"`        // e.g., "create_role", "login"
	Resource    string    `gorm:"not null" json:"resource"`      // e.g., "role:3", "user:12"
	DetailsJSON string    `gorm:"type:text" json:"details_json"` // Additional context in JSON
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
}
