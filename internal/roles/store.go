// Package roles is the role manager: a record store of roles with a
// recycle bin, seeded with Admin and User on first run.
package roles

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hrdesk/hrdesk/internal/apperr"
	"github.com/hrdesk/hrdesk/internal/kv"
	"github.com/hrdesk/hrdesk/internal/models"
	"github.com/hrdesk/hrdesk/internal/recordstore"
	"github.com/hrdesk/hrdesk/internal/syncbus"
)

// Storage keys of the role snapshots.
const (
	ActiveKey = "roles"
	TrashKey  = "deletedRoles"
)

// Ids of the seeded roles.
const (
	AdminRoleID = 1
	UserRoleID  = 2
)

// Options configures a Store.
type Options struct {
	Storage  kv.Store
	Bus      *syncbus.Bus
	IDPolicy recordstore.IDPolicy

	// SearchDescriptions makes List match descriptions as well as names.
	SearchDescriptions bool

	// Now is the clock used for audit timestamps. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Store manages roles.
type Store struct {
	records *recordstore.Store[models.Role]
	now     func() time.Time
}

// New creates a role store. Call Load before use.
func New(opts Options) (*Store, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	stamp := func() time.Time { return now().UTC() }

	schema := recordstore.Schema[models.Role]{
		ID:    func(r models.Role) int { return r.ID },
		SetID: func(r *models.Role, id int) { r.ID = id },
		Text: func(r models.Role) []string {
			return []string{r.Name}
		},
		OnSoftDelete: func(r *models.Role, actor string) {
			r.DeletedBy = actor
			r.ModifiedBy = actor
			r.UpdatedAt = stamp()
		},
		OnRestore: func(r *models.Role, actor string) {
			r.DeletedBy = ""
			r.ModifiedBy = actor
			r.UpdatedAt = stamp()
		},
	}
	if opts.SearchDescriptions {
		schema.Text = func(r models.Role) []string {
			return []string{r.Name, r.Description}
		}
	}

	records, err := recordstore.New(recordstore.Options[models.Role]{
		Schema:    schema,
		Storage:   opts.Storage,
		ActiveKey: ActiveKey,
		TrashKey:  TrashKey,
		Bus:       opts.Bus,
		IDPolicy:  opts.IDPolicy,
		Seed: func() []models.Role {
			ts := stamp()
			return []models.Role{
				{ID: AdminRoleID, Name: "Admin", Description: "Full system access", ModifiedBy: models.SystemActor, CreatedAt: ts, UpdatedAt: ts},
				{ID: UserRoleID, Name: "User", Description: "Basic access", ModifiedBy: models.SystemActor, CreatedAt: ts, UpdatedAt: ts},
			}
		},
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Store{records: records, now: stamp}, nil
}

// Load reads the persisted roles, seeding them on first run.
func (s *Store) Load(ctx context.Context) error {
	return s.records.Load(ctx)
}

// Reset drops every role and reseeds the defaults.
func (s *Store) Reset(ctx context.Context) error {
	return s.records.Reset(ctx)
}

func normalize(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" || description == "" {
		return "", "", apperr.Invalid("role name and description are required")
	}
	return name, description, nil
}

// Create adds a role attributed to actor.
func (s *Store) Create(ctx context.Context, actor, name, description string) (models.Role, error) {
	name, description, err := normalize(name, description)
	if err != nil {
		return models.Role{}, err
	}

	ts := s.now()
	return s.records.Create(ctx, models.Role{
		Name:        name,
		Description: description,
		ModifiedBy:  actor,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	})
}

// Update renames or redescribes an active role.
func (s *Store) Update(ctx context.Context, actor string, id int, name, description string) (models.Role, error) {
	name, description, err := normalize(name, description)
	if err != nil {
		return models.Role{}, err
	}

	return s.records.Update(ctx, id, func(r *models.Role) error {
		r.Name = name
		r.Description = description
		r.ModifiedBy = actor
		r.UpdatedAt = s.now()
		return nil
	})
}

// SoftDelete moves a role into the recycle bin.
func (s *Store) SoftDelete(ctx context.Context, actor string, id int) (models.Role, error) {
	return s.records.SoftDelete(ctx, id, actor)
}

// Restore brings a role back from the recycle bin.
func (s *Store) Restore(ctx context.Context, actor string, id int) (models.Role, error) {
	return s.records.Restore(ctx, id, actor)
}

// Purge deletes a role from the recycle bin permanently.
func (s *Store) Purge(ctx context.Context, id int) error {
	return s.records.Purge(ctx, id)
}

// List returns active roles matching filter.
func (s *Store) List(filter string) []models.Role {
	return s.records.List(filter)
}

// Trash returns the recycle bin.
func (s *Store) Trash() []models.Role {
	return s.records.Trash()
}

// Get returns an active role.
func (s *Store) Get(id int) (models.Role, error) {
	return s.records.Get(id)
}

// Lookup finds a role whether active or trashed.
func (s *Store) Lookup(id int) (role models.Role, inTrash bool, found bool) {
	return s.records.Lookup(id)
}

// InTrash reports whether the recycle bin holds id.
func (s *Store) InTrash(id int) bool {
	return s.records.InTrash(id)
}

// Exists reports whether id names a role in either the active set or the trash.
func (s *Store) Exists(id int) bool {
	_, _, found := s.records.Lookup(id)
	return found
}
