package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hrdesk/hrdesk/internal/auth"
	"github.com/hrdesk/hrdesk/internal/config"
	"github.com/hrdesk/hrdesk/internal/db"
	"github.com/hrdesk/hrdesk/internal/kv"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/recordstore"
	"github.com/hrdesk/hrdesk/internal/roles"
	"github.com/hrdesk/hrdesk/internal/service"
	"github.com/hrdesk/hrdesk/internal/syncbus"
	"github.com/hrdesk/hrdesk/internal/users"
	"github.com/valkey-io/valkey-go"
	"gorm.io/gorm"
)

// App is the wired set of stores and services shared by the HTTP server and
// the admin commands.
type App struct {
	DB            *gorm.DB
	Bus           *syncbus.Bus
	Storage       kv.Store
	Roles         *roles.Store
	Users         *users.Table
	Enforcer      *rbac.Enforcer
	Authenticator *auth.Authenticator
	RoleService   *service.RoleService
	UserService   *service.UserService
	InstanceID    string

	closers []func() error
}

// Open connects the database and storage backends and wires every component.
func Open(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Bus: syncbus.New()}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = cfg.Log.Level
	}
	app.DB, err = db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if sqlDB, dbErr := app.DB.DB(); dbErr == nil {
		app.closers = append(app.closers, sqlDB.Close)
	}
	slog.Info("Database initialized", "driver", cfg.Database.Driver)

	if err = db.Migrate(app.DB); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	app.InstanceID, err = db.GetOrCreateInstanceID(app.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize instance ID: %w", err)
	}

	if err = db.CreateDefaultAdmin(app.DB); err != nil {
		return nil, fmt.Errorf("failed to create default admin user: %w", err)
	}

	var valkeyClient valkey.Client
	app.Storage, valkeyClient, err = createStorage(cfg, app.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.closers = append(app.closers, app.Storage.Close)
	slog.Info("Role storage initialized", "type", cfg.Storage.Type)

	policy, err := recordstore.ParseIDPolicy(cfg.Roles.IDPolicy)
	if err != nil {
		return nil, err
	}
	app.Roles, err = roles.New(roles.Options{
		Storage:            app.Storage,
		Bus:                app.Bus,
		IDPolicy:           policy,
		SearchDescriptions: cfg.Roles.SearchDescriptions,
		Logger:             slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	if err = app.Roles.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}

	app.Users = users.NewTable(app.DB, app.Roles, app.Bus, slog.Default())
	app.closers = append(app.closers, func() error { app.Users.Close(); return nil })

	app.Enforcer, err = rbac.NewEnforcer(app.DB, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RBAC: %w", err)
	}
	if err = app.Enforcer.SeedDefaults(roles.AdminRoleID, roles.UserRoleID); err != nil {
		return nil, err
	}
	unsubscribe := app.Bus.Subscribe(func() {
		if err := app.Enforcer.Prune(app.Roles.Exists); err != nil {
			slog.Error("Failed to prune role policies", "error", err)
		}
	})
	app.closers = append(app.closers, func() error { unsubscribe(); return nil })

	captchaStore, err := createCaptchaStore(cfg, valkeyClient, app)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize captcha store: %w", err)
	}
	captcha := auth.NewCaptchaService(captchaStore, cfg.Auth.CaptchaBypass)
	app.Authenticator = auth.NewAuthenticator(app.DB, cfg.Auth.JWTSecret, app.Roles, captcha)

	onDelete, err := service.ParseOnDeletePolicy(cfg.Roles.OnDelete)
	if err != nil {
		return nil, err
	}
	app.RoleService = service.NewRoleService(app.DB, app.Roles, app.Users, onDelete)
	app.UserService = service.NewUserService(app.DB, app.Users)

	return app, nil
}

// Close releases the storage backends in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// createStorage creates the role storage backend based on configuration.
// The valkey client is returned so the captcha store can share it.
func createStorage(cfg *config.Config, database *gorm.DB) (kv.Store, valkey.Client, error) {
	switch cfg.Storage.Type {
	case "memory":
		return kv.NewMemoryStore(), nil, nil
	case "file":
		return kv.NewFileStore(cfg.Storage.Dir), nil, nil
	case "database":
		return kv.NewDBStore(database), nil, nil
	case "valkey":
		if cfg.Storage.ValkeyAddr == "" {
			return nil, nil, fmt.Errorf("valkey address is required when storage type is valkey")
		}
		store, err := kv.OpenValkeyStore(cfg.Storage.ValkeyAddr, cfg.Storage.KeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Client(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s (supported: memory, file, database, valkey)", cfg.Storage.Type)
	}
}

func createCaptchaStore(cfg *config.Config, shared valkey.Client, app *App) (auth.CaptchaStore, error) {
	switch cfg.Auth.CaptchaStore {
	case "", "memory":
		return auth.NewMemoryCaptchaStore(), nil
	case "valkey":
		client := shared
		if client == nil {
			var err error
			client, err = kv.DialValkey(cfg.Storage.ValkeyAddr)
			if err != nil {
				return nil, err
			}
			app.closers = append(app.closers, func() error { client.Close(); return nil })
		}
		return auth.NewValkeyCaptchaStore(client, cfg.Storage.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported captcha store: %s (supported: memory, valkey)", cfg.Auth.CaptchaStore)
	}
}
