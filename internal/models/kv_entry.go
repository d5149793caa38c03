package models

import (
	"time"
)

// KVEntry backs the database flavour of the key-value store
type KVEntry struct {
	Key       string    `gorm:"primarykey;not null" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name
func (KVEntry) TableName() string {
	return "kv_entries"
}
