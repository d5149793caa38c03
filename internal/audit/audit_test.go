package audit

import (
	"context"
	"math"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/hrdesk/hrdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestLogAction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := LogAction(ctx, db, "jane.doe", ActionCreateRole, RoleResource(3), map[string]string{"name": "Auditor"}); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}
	if err := LogAction(ctx, db, "jane.doe", ActionDeleteUser, UserResource(7), nil); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}

	logs, err := Recent(ctx, db, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(logs))
	}
	if logs[0].Resource != "user:7" || logs[1].Resource != "role:3" {
		t.Errorf("unexpected order: %s, %s", logs[0].Resource, logs[1].Resource)
	}
	if logs[1].DetailsJSON != `{"name":"Auditor"}` {
		t.Errorf("unexpected details: %s", logs[1].DetailsJSON)
	}
}

func TestLogAction_UnencodableDetails(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := LogAction(ctx, db, "System", ActionLogin, "session", math.Inf(1)); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}
	logs, _ := Recent(ctx, db, 1)
	if len(logs) != 1 || logs[0].DetailsJSON != "{}" {
		t.Errorf("expected fallback details, got %+v", logs)
	}
}
