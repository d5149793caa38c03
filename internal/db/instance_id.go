package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hrdesk/hrdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InstanceIDKey is the kv_entries key holding the instance id
const InstanceIDKey = "instance_id"

// GetOrCreateInstanceID retrieves the instance ID from the database,
// or generates and stores a new one if it doesn't exist.
// Call it during startup after migrations.
func GetOrCreateInstanceID(db *gorm.DB) (string, error) {
	var entry models.KVEntry

	err := db.Where("key = ?", InstanceIDKey).First(&entry).Error
	if err == nil {
		slog.Info("Found existing instance ID", "instance_id", entry.Value)
		return entry.Value, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to query instance id: %w", err)
	}

	entry = models.KVEntry{Key: InstanceIDKey, Value: uuid.NewString()}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return "", fmt.Errorf("failed to create instance id: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// another process won the race
		if err := db.Where("key = ?", InstanceIDKey).First(&entry).Error; err != nil {
			return "", fmt.Errorf("failed to query instance id: %w", err)
		}
	}

	slog.Info("Generated new instance ID", "instance_id", entry.Value)
	return entry.Value, nil
}
