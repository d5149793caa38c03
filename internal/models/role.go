package models

import "time"

// Role is a named permission bundle managed by the role manager. Roles live
// in the role store snapshot rather than in a database table.
type Role struct {
	ID          int       `json:"id" yaml:"id" toml:"id"`
	Name        string    `json:"name" yaml:"name" toml:"name"`
	Description string    `json:"description" yaml:"description" toml:"description"`
	ModifiedBy  string    `json:"modified_by" yaml:"modified_by" toml:"modified_by"`
	DeletedBy   string    `json:"deleted_by,omitempty" yaml:"deleted_by,omitempty" toml:"deleted_by,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at" toml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at" toml:"updated_at"`
}

// SystemActor attributes changes made by the server itself, such as seeding.
const SystemActor = "System"
