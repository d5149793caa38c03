package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hrdesk/hrdesk/internal/apperr"
	"github.com/hrdesk/hrdesk/internal/audit"
	"github.com/hrdesk/hrdesk/internal/models"
	"github.com/hrdesk/hrdesk/internal/roles"
	"github.com/hrdesk/hrdesk/internal/users"
	"gorm.io/gorm"
)

// RoleService contains the business logic for the role manager.
type RoleService struct {
	db       *gorm.DB
	roles    *roles.Store
	users    *users.Table
	onDelete OnDeletePolicy
}

// NewRoleService creates a RoleService.
func NewRoleService(db *gorm.DB, store *roles.Store, table *users.Table, onDelete OnDeletePolicy) *RoleService {
	if onDelete == "" {
		onDelete = OnDeleteNullify
	}
	return &RoleService{db: db, roles: store, users: table, onDelete: onDelete}
}

// List returns active roles whose name matches filter.
func (s *RoleService) List(filter string) []models.Role {
	return s.roles.List(filter)
}

// Trash returns the recycle bin.
func (s *RoleService) Trash() []models.Role {
	return s.roles.Trash()
}

// Get returns an active role.
func (s *RoleService) Get(id int) (models.Role, error) {
	return s.roles.Get(id)
}

// Create adds a role.
func (s *RoleService) Create(ctx context.Context, actor string, req RoleRequest) (models.Role, error) {
	role, err := s.roles.Create(ctx, actor, req.Name, req.Description)
	if err != nil {
		return models.Role{}, err
	}
	s.record(ctx, actor, audit.ActionCreateRole, role.ID, map[string]interface{}{
		"name": role.Name,
	})
	return role, nil
}

// Update edits an active role.
func (s *RoleService) Update(ctx context.Context, actor string, id int, req RoleRequest) (models.Role, error) {
	role, err := s.roles.Update(ctx, actor, id, req.Name, req.Description)
	if err != nil {
		return models.Role{}, err
	}
	s.record(ctx, actor, audit.ActionUpdateRole, role.ID, map[string]interface{}{
		"name":        role.Name,
		"description": role.Description,
	})
	return role, nil
}

// SoftDelete moves a role into the recycle bin.
func (s *RoleService) SoftDelete(ctx context.Context, actor string, id int) (models.Role, error) {
	if err := s.checkUnused(ctx, id, "delete"); err != nil {
		return models.Role{}, err
	}
	role, err := s.roles.SoftDelete(ctx, actor, id)
	if err != nil {
		return models.Role{}, err
	}
	s.record(ctx, actor, audit.ActionDeleteRole, role.ID, map[string]interface{}{
		"name": role.Name,
	})
	return role, nil
}

// Restore brings a role back from the recycle bin.
func (s *RoleService) Restore(ctx context.Context, actor string, id int) (models.Role, error) {
	role, err := s.roles.Restore(ctx, actor, id)
	if err != nil {
		return models.Role{}, err
	}
	s.record(ctx, actor, audit.ActionRestoreRole, role.ID, map[string]interface{}{
		"name": role.Name,
	})
	return role, nil
}

// Purge deletes a trashed role permanently. Under the nullify policy the
// users that held it are left without a role. Unlike the store, an id that
// is not in the recycle bin is reported as ErrNotFound.
func (s *RoleService) Purge(ctx context.Context, actor string, id int) error {
	if !s.roles.InTrash(id) {
		return fmt.Errorf("trashed role %d: %w", id, apperr.ErrNotFound)
	}

	// With the active_only id policy an active role can share the id; the
	// users then belong to the active one.
	_, activeErr := s.roles.Get(id)
	shared := activeErr == nil

	if !shared {
		if err := s.checkUnused(ctx, id, "purge"); err != nil {
			return err
		}
	}

	// Users are detached first and reattached if the store write fails.
	var cleared []uint
	if s.onDelete == OnDeleteNullify && !shared {
		ids, err := s.users.ClearRole(ctx, id)
		if err != nil {
			return err
		}
		cleared = ids
	}

	if err := s.roles.Purge(ctx, id); err != nil {
		if rbErr := s.users.AssignRole(ctx, cleared, id); rbErr != nil {
			slog.Error("Failed to reattach users after purge failure", "role_id", id, "users", cleared, "error", rbErr)
			return errors.Join(err, rbErr)
		}
		return err
	}

	s.record(ctx, actor, audit.ActionPurgeRole, id, map[string]interface{}{
		"users_cleared": len(cleared),
	})
	return nil
}

func (s *RoleService) checkUnused(ctx context.Context, id int, verb string) error {
	if s.onDelete != OnDeleteBlock {
		return nil
	}
	n, err := s.users.CountWithRole(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict(fmt.Sprintf("cannot %s role %d: %d user(s) still hold it", verb, id, n))
	}
	return nil
}

func (s *RoleService) record(ctx context.Context, actor, action string, id int, details interface{}) {
	if err := audit.LogAction(ctx, s.db, actor, action, audit.RoleResource(id), details); err != nil {
		slog.Warn("Failed to write audit log", "action", action, "error", err)
	}
}
