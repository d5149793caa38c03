// Package rbac decides which portal modules a role may view. Policies are
// (role:<id>, <module>, view) triples kept in the casbin_rule table.
package rbac

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelConf string

// ActionView is the only action a module policy grants
const ActionView = "view"

// Modules guarded by the API
const (
	ModuleDashboard   = "dashboard"
	ModuleUserManager = "user_manager"
	ModuleRoleManager = "role_manager"
	ModuleReports     = "reports"
	ModuleSettings    = "settings"
)

// AllModules grants every module
const AllModules = "*"

// Subject returns the policy subject for a role id
func Subject(roleID int) string {
	return "role:" + strconv.Itoa(roleID)
}

func roleFromSubject(sub string) (int, bool) {
	rest, ok := strings.CutPrefix(sub, "role:")
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	return id, err == nil
}

// Enforcer wraps a casbin enforcer with the portal's module policies
type Enforcer struct {
	e    *casbin.SyncedEnforcer
	menu []MenuItem
	log  *slog.Logger
}

// NewEnforcer creates the casbin_rule table if needed and loads its policies
func NewEnforcer(db *gorm.DB, logger *slog.Logger) (*Enforcer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	menu, err := loadMenu()
	if err != nil {
		return nil, err
	}

	logger.Info("RBAC enforcer initialized")
	return &Enforcer{e: e, menu: menu, log: logger}, nil
}

// SeedDefaults grants Admin every module and User the dashboard and settings.
// It does nothing once any policy exists.
func (r *Enforcer) SeedDefaults(adminRoleID, userRoleID int) error {
	policies, err := r.e.GetPolicy()
	if err != nil {
		return fmt.Errorf("failed to read policies: %w", err)
	}
	if len(policies) > 0 {
		return nil
	}

	defaults := [][]string{
		{Subject(adminRoleID), AllModules, ActionView},
		{Subject(userRoleID), ModuleDashboard, ActionView},
		{Subject(userRoleID), ModuleSettings, ActionView},
	}
	if _, err := r.e.AddPolicies(defaults); err != nil {
		return fmt.Errorf("failed to seed policies: %w", err)
	}
	r.log.Info("Seeded default module policies", "count", len(defaults))
	return nil
}

// CanView reports whether roleID may view module. Role 0 sees nothing.
func (r *Enforcer) CanView(roleID int, module string) (bool, error) {
	if roleID == 0 {
		return false, nil
	}
	return r.e.Enforce(Subject(roleID), module, ActionView)
}

// Grant lets roleID view module
func (r *Enforcer) Grant(roleID int, module string) error {
	if _, err := r.e.AddPolicy(Subject(roleID), module, ActionView); err != nil {
		return fmt.Errorf("failed to grant %s to role %d: %w", module, roleID, err)
	}
	return nil
}

// Revoke removes a grant made with Grant
func (r *Enforcer) Revoke(roleID int, module string) error {
	if _, err := r.e.RemovePolicy(Subject(roleID), module, ActionView); err != nil {
		return fmt.Errorf("failed to revoke %s from role %d: %w", module, roleID, err)
	}
	return nil
}

// Modules lists the modules granted to roleID
func (r *Enforcer) Modules(roleID int) ([]string, error) {
	policies, err := r.e.GetFilteredPolicy(0, Subject(roleID))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(policies))
	for _, p := range policies {
		if len(p) >= 2 {
			out = append(out, p[1])
		}
	}
	return out, nil
}

// Prune drops the policies of roles for which exists reports false
func (r *Enforcer) Prune(exists func(roleID int) bool) error {
	policies, err := r.e.GetPolicy()
	if err != nil {
		return fmt.Errorf("failed to read policies: %w", err)
	}

	seen := make(map[string]bool)
	for _, p := range policies {
		if len(p) == 0 || seen[p[0]] {
			continue
		}
		seen[p[0]] = true

		id, ok := roleFromSubject(p[0])
		if !ok || exists(id) {
			continue
		}
		if _, err := r.e.RemoveFilteredPolicy(0, p[0]); err != nil {
			return fmt.Errorf("failed to prune policies of role %d: %w", id, err)
		}
		r.log.Info("Pruned policies of purged role", "role_id", id)
	}
	return nil
}
