package service

import (
	"context"
	"log/slog"

	"github.com/hrdesk/hrdesk/internal/audit"
	"github.com/hrdesk/hrdesk/internal/models"
	"github.com/hrdesk/hrdesk/internal/users"
	"gorm.io/gorm"
)

// UserService contains the business logic for the user manager.
type UserService struct {
	db    *gorm.DB
	table *users.Table
}

// NewUserService creates a UserService.
func NewUserService(db *gorm.DB, table *users.Table) *UserService {
	return &UserService{db: db, table: table}
}

func (req UserRequest) input() users.Input {
	return users.Input{
		FirstName:       req.FirstName,
		MiddleName:      req.MiddleName,
		Surname:         req.Surname,
		Email:           req.Email,
		RoleID:          req.RoleID,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	}
}

// Rows renders the user table.
func (s *UserService) Rows(ctx context.Context, filter string) ([]users.Row, error) {
	return s.table.Rows(ctx, filter)
}

// RoleOptions returns the role selection list.
func (s *UserService) RoleOptions() []users.RoleOption {
	return s.table.RoleOptions()
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.table.Get(ctx, id)
}

// Create adds a user.
func (s *UserService) Create(ctx context.Context, actor string, req UserRequest) (*models.User, error) {
	user, err := s.table.Create(ctx, req.input())
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionCreateUser, user)
	return user, nil
}

// Update edits a user.
func (s *UserService) Update(ctx context.Context, actor string, id uint, req UserRequest) (*models.User, error) {
	user, err := s.table.Update(ctx, id, req.input())
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionUpdateUser, user)
	return user, nil
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, actor string, id uint) error {
	user, err := s.table.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionDeleteUser, user)
	return nil
}

func (s *UserService) record(ctx context.Context, actor, action string, user *models.User) {
	details := map[string]interface{}{
		"username": user.Username,
		"role_id":  user.RoleID,
	}
	if err := audit.LogAction(ctx, s.db, actor, action, audit.UserResource(user.ID), details); err != nil {
		slog.Warn("Failed to write audit log", "action", action, "error", err)
	}
}
