package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hrdesk/hrdesk/internal/models"
	"gorm.io/gorm"
)

// LogAction records an audit log entry
func LogAction(ctx context.Context, db *gorm.DB, actor, action, resource string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	log := models.AuditLog{
		Actor:       actor,
		Action:      action,
		Resource:    resource,
		DetailsJSON: string(detailsJSON),
		Timestamp:   time.Now().UTC(),
	}

	return db.WithContext(ctx).Create(&log).Error
}

// Recent returns the newest entries first
func Recent(ctx context.Context, db *gorm.DB, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	if err := db.WithContext(ctx).Order("timestamp DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// RoleResource and UserResource name audit targets
func RoleResource(id int) string  { return fmt.Sprintf("role:%d", id) }
func UserResource(id uint) string { return fmt.Sprintf("user:%d", id) }

// Audit actions constants
const (
	ActionCreateRole  = "create_role"
	ActionUpdateRole  = "update_role"
	ActionDeleteRole  = "delete_role"
	ActionRestoreRole = "restore_role"
	ActionPurgeRole   = "purge_role"
	ActionCreateUser  = "create_user"
	ActionUpdateUser  = "update_user"
	ActionDeleteUser  = "delete_user"
	ActionLogin       = "login"
	ActionLoginFailed = "login_failed"
	ActionLogout      = "logout"
)
