package db

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hrdesk/hrdesk/internal/config"
	"github.com/hrdesk/hrdesk/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := New(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestNew_RejectsUnknownDriver(t *testing.T) {
	if _, err := New(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestGetOrCreateInstanceID_CreatesNewID(t *testing.T) {
	db := setupTestDB(t)

	id, err := GetOrCreateInstanceID(db)
	if err != nil {
		t.Fatalf("GetOrCreateInstanceID failed: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("instance ID is not a valid UUID: %v", err)
	}

	var entry models.KVEntry
	if err := db.Where("key = ?", InstanceIDKey).First(&entry).Error; err != nil {
		t.Fatalf("failed to query kv entry: %v", err)
	}
	if entry.Value != id {
		t.Errorf("stored instance ID mismatch: got %s, want %s", entry.Value, id)
	}
}

func TestGetOrCreateInstanceID_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	first, err := GetOrCreateInstanceID(db)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := GetOrCreateInstanceID(db)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if first != second {
		t.Errorf("expected same ID, got %s and %s", first, second)
	}
}

func TestCreateDefaultAdmin(t *testing.T) {
	db := setupTestDB(t)
	t.Setenv("ADMIN_USERNAME", "Jane.Doe")
	t.Setenv("ADMIN_PASSWORD", "s3cret")
	t.Setenv("ADMIN_EMAIL", "")

	if err := CreateDefaultAdmin(db); err != nil {
		t.Fatalf("CreateDefaultAdmin failed: %v", err)
	}

	var user models.User
	if err := db.First(&user).Error; err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if user.Username != "jane.doe" || user.FirstName != "Jane" || user.Surname != "Doe" {
		t.Errorf("unexpected names: %+v", user)
	}
	if user.RoleID != AdminRoleID {
		t.Errorf("expected role %d, got %d", AdminRoleID, user.RoleID)
	}
	if user.Email != "Jane.Doe@hrdesk.local" {
		t.Errorf("unexpected email %s", user.Email)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret")) != nil {
		t.Error("password hash does not match")
	}

	// second run is a no-op
	if err := CreateDefaultAdmin(db); err != nil {
		t.Fatalf("second CreateDefaultAdmin failed: %v", err)
	}
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 user, got %d", count)
	}
}

func TestCreateDefaultAdmin_SkipsWithoutCredentials(t *testing.T) {
	db := setupTestDB(t)
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD", "")

	if err := CreateDefaultAdmin(db); err != nil {
		t.Fatalf("CreateDefaultAdmin failed: %v", err)
	}
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no users, got %d", count)
	}
}
