package db

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hrdesk/hrdesk/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminRoleID is the id of the seeded Admin role
const AdminRoleID = 1

// CreateDefaultAdmin creates an admin user from ADMIN_USERNAME and ADMIN_PASSWORD
// when both are set and the users table is empty.
func CreateDefaultAdmin(db *gorm.DB) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	email := os.Getenv("ADMIN_EMAIL")

	if username == "" || password == "" {
		slog.Info("No ADMIN_USERNAME or ADMIN_PASSWORD set, skipping default admin creation")
		return nil
	}

	if email == "" {
		email = fmt.Sprintf("%s@hrdesk.local", username)
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		slog.Info("Users already exist, skipping default admin creation")
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// "jane.doe" gives first name Jane and surname Doe; a bare name is used for both
	first, surname, found := strings.Cut(username, ".")
	if !found || surname == "" {
		surname = first
	}

	user := models.User{
		FirstName:    first,
		Surname:      surname,
		Username:     strings.ToLower(username),
		Email:        email,
		RoleID:       AdminRoleID,
		PasswordHash: string(hashedPassword),
	}
	if err := db.Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("Default admin user created", "username", user.Username, "email", email)
	return nil
}
