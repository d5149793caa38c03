// Package users is the user manager. Users are addressed by their database id;
// the table view with display positions is computed from the records on each
// read and is never used to find a record.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"

	"github.com/hrdesk/hrdesk/internal/apperr"
	"github.com/hrdesk/hrdesk/internal/auth"
	"github.com/hrdesk/hrdesk/internal/models"
	"github.com/hrdesk/hrdesk/internal/syncbus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// RoleSource is the read side of the role store.
type RoleSource interface {
	List(filter string) []models.Role
	Lookup(id int) (role models.Role, inTrash bool, found bool)
}

// RoleOption is one entry of the role selection list.
type RoleOption struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Row is one line of the rendered user table.
type Row struct {
	Index       int    `json:"index"` // 1-based display position
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	RoleID      int    `json:"role_id"`
	Role        string `json:"role"`
	RoleDeleted bool   `json:"role_deleted"`
}

// Input carries the user form fields.
type Input struct {
	FirstName       string
	MiddleName      string
	Surname         string
	Email           string
	RoleID          int
	Password        string
	ConfirmPassword string
}

// DeriveUsername builds the login name "first.surname" in lower case.
func DeriveUsername(firstName, surname string) string {
	lower := cases.Lower(language.Und)
	return lower.String(strings.TrimSpace(firstName)) + "." + lower.String(strings.TrimSpace(surname))
}

// Table manages user records and keeps a role option list in step with the role store.
type Table struct {
	db    *gorm.DB
	roles RoleSource
	log   *slog.Logger

	mu          sync.RWMutex
	options     []RoleOption
	unsubscribe syncbus.Unsubscribe
}

// NewTable loads the role options and, when bus is non-nil, refreshes them on every role change.
func NewTable(db *gorm.DB, roles RoleSource, bus *syncbus.Bus, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Table{db: db, roles: roles, log: logger}
	t.RefreshRoleOptions()
	if bus != nil {
		t.unsubscribe = bus.Subscribe(t.RefreshRoleOptions)
	}
	return t
}

// Close detaches the table from the bus.
func (t *Table) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
}

// RefreshRoleOptions re-reads the active roles.
func (t *Table) RefreshRoleOptions() {
	active := t.roles.List("")
	options := make([]RoleOption, len(active))
	for i, r := range active {
		options[i] = RoleOption{ID: r.ID, Name: r.Name}
	}

	t.mu.Lock()
	t.options = options
	t.mu.Unlock()

	t.log.Debug("Role options refreshed", "count", len(options))
}

// RoleOptions returns the role selection list. An empty list means no roles are available.
func (t *Table) RoleOptions() []RoleOption {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RoleOption, len(t.options))
	copy(out, t.options)
	return out
}

func (t *Table) validate(in *Input, creating bool) error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.MiddleName = strings.TrimSpace(in.MiddleName)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Email = strings.TrimSpace(in.Email)

	if in.FirstName == "" || in.Surname == "" {
		return apperr.Invalid("first name and surname are required")
	}
	if in.Email == "" {
		return apperr.Invalid("email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperr.Invalid("email is not valid")
	}
	if creating && in.Password == "" {
		return apperr.Invalid("password is required")
	}
	if in.Password != in.ConfirmPassword {
		return apperr.Invalid("passwords do not match")
	}
	return nil
}

// checkRole accepts active roles, no role, or the role the user already has.
func (t *Table) checkRole(roleID, current int) error {
	if roleID == 0 || roleID == current {
		return nil
	}
	_, inTrash, found := t.roles.Lookup(roleID)
	if !found || inTrash {
		return apperr.Invalid(fmt.Sprintf("role %d is not available", roleID))
	}
	return nil
}

func (t *Table) checkUsername(ctx context.Context, username string, self uint) error {
	var count int64
	err := t.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND id <> ?", username, self).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return apperr.Conflict(fmt.Sprintf("username %s is already taken", username))
	}
	return nil
}

// Create adds a user.
func (t *Table) Create(ctx context.Context, in Input) (*models.User, error) {
	if err := t.validate(&in, true); err != nil {
		return nil, err
	}
	if err := t.checkRole(in.RoleID, 0); err != nil {
		return nil, err
	}

	username := DeriveUsername(in.FirstName, in.Surname)
	if err := t.checkUsername(ctx, username, 0); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		Surname:      in.Surname,
		Username:     username,
		Email:        in.Email,
		RoleID:       in.RoleID,
		PasswordHash: hash,
	}
	if err := t.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	t.log.Info("User created", "user_id", user.ID, "username", user.Username)
	return &user, nil
}

// Get returns a user by id.
func (t *Table) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := t.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

// Update replaces a user's fields. An empty password keeps the current one.
func (t *Table) Update(ctx context.Context, id uint, in Input) (*models.User, error) {
	if err := t.validate(&in, false); err != nil {
		return nil, err
	}

	user, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.checkRole(in.RoleID, user.RoleID); err != nil {
		return nil, err
	}

	username := DeriveUsername(in.FirstName, in.Surname)
	if err := t.checkUsername(ctx, username, id); err != nil {
		return nil, err
	}

	user.FirstName = in.FirstName
	user.MiddleName = in.MiddleName
	user.Surname = in.Surname
	user.Username = username
	user.Email = in.Email
	user.RoleID = in.RoleID
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := t.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	t.log.Info("User updated", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Delete removes a user permanently.
func (t *Table) Delete(ctx context.Context, id uint) (*models.User, error) {
	user, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.db.WithContext(ctx).Delete(&models.User{}, id).Error; err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	t.log.Info("User deleted", "user_id", id, "username", user.Username)
	return user, nil
}

// Rows renders the user table. filter matches username or email, ignoring case.
func (t *Table) Rows(ctx context.Context, filter string) ([]Row, error) {
	query := t.db.WithContext(ctx).Order("id ASC")
	if filter = strings.TrimSpace(filter); filter != "" {
		like := "%" + strings.ToLower(filter) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var list []models.User
	if err := query.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}

	rows := make([]Row, len(list))
	for i, u := range list {
		rows[i] = Row{
			Index:    i + 1,
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			RoleID:   u.RoleID,
		}
		if u.RoleID != 0 {
			role, inTrash, found := t.roles.Lookup(u.RoleID)
			if found {
				rows[i].Role = role.Name
			}
			rows[i].RoleDeleted = !found || inTrash
		}
	}
	return rows, nil
}

// CountWithRole returns how many users reference roleID.
func (t *Table) CountWithRole(ctx context.Context, roleID int) (int64, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&models.User{}).Where("role_id = ?", roleID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count users with role %d: %w", roleID, err)
	}
	return count, nil
}

// ClearRole detaches every user from roleID and returns the ids it changed,
// so the caller can hand them back with AssignRole.
func (t *Table) ClearRole(ctx context.Context, roleID int) ([]uint, error) {
	var ids []uint
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("role_id = ?", roleID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.User{}).Where("id IN ?", ids).Update("role_id", 0).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clear role %d: %w", roleID, err)
	}
	return ids, nil
}

// AssignRole sets roleID on the given users without validating the role.
func (t *Table) AssignRole(ctx context.Context, ids []uint, roleID int) error {
	if len(ids) == 0 {
		return nil
	}
	err := t.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Update("role_id", roleID).Error
	if err != nil {
		return fmt.Errorf("failed to assign role %d: %w", roleID, err)
	}
	return nil
}
