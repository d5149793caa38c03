package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hrdesk/hrdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBStore keeps values in the kv_entries table of the application database.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a DBStore. The kv_entries table must already be migrated.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry models.KVEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return []byte(entry.Value), nil
}

func (s *DBStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMulti(ctx, []Entry{{Key: key, Value: value}})
}

func (s *DBStore) SetMulti(ctx context.Context, entries []Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, e := range entries {
			row := models.KVEntry{Key: e.Key, Value: string(e.Value), UpdatedAt: now}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("failed to write key %s: %w", e.Key, err)
			}
		}
		return nil
	})
}

// Close is a no-op; the database handle is owned by the caller.
func (s *DBStore) Close() error { return nil }
