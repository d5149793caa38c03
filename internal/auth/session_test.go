package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/hrdesk/hrdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeRoles map[int]struct {
	name    string
	trashed bool
}

func (f fakeRoles) Lookup(id int) (models.Role, bool, bool) {
	r, ok := f[id]
	if !ok {
		return models.Role{}, false, false
	}
	return models.Role{ID: id, Name: r.name}, r.trashed, true
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, username, password string, roleID int) models.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	user := models.User{
		FirstName: "Jane", Surname: "Doe", Username: username,
		Email: username + "@example.com", RoleID: roleID, PasswordHash: hash,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func newTestAuthenticator(t *testing.T, roles fakeRoles) (*Authenticator, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	captcha := NewCaptchaService(NewMemoryCaptchaStore(), "")
	return NewAuthenticator(db, "test-secret", roles, captcha), db
}

func login(t *testing.T, a *Authenticator, username, password string, remember bool) (*LoginResponse, time.Duration, error) {
	t.Helper()
	c, err := a.Captcha().Issue(context.Background())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return a.Login(context.Background(), LoginRequest{
		Username: username, Password: password,
		CaptchaID: c.ID, Captcha: c.Word, Remember: remember,
	})
}

func TestLogin_Success(t *testing.T) {
	a, db := newTestAuthenticator(t, fakeRoles{1: {name: "Admin"}})
	createUser(t, db, "jane.doe", "secret", 1)

	resp, lifetime, err := login(t, a, "jane.doe", "secret", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.Role != "Admin" || resp.RoleID != 1 || resp.Username != "jane.doe" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if lifetime != TokenDuration {
		t.Errorf("expected lifetime %v, got %v", TokenDuration, lifetime)
	}

	claims, err := a.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "jane.doe" || claims.Issuer != "hrdesk" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestLogin_RememberExtendsLifetime(t *testing.T) {
	a, db := newTestAuthenticator(t, fakeRoles{})
	createUser(t, db, "jane.doe", "secret", 0)

	_, lifetime, err := login(t, a, "jane.doe", "secret", true)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if lifetime != RememberDuration {
		t.Errorf("expected lifetime %v, got %v", RememberDuration, lifetime)
	}
}

func TestLogin_Failures(t *testing.T) {
	a, db := newTestAuthenticator(t, fakeRoles{})
	createUser(t, db, "jane.doe", "secret", 0)

	if _, _, err := login(t, a, "jane.doe", "wrong", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := login(t, a, "nobody", "secret", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}

	_, _, err := a.Login(context.Background(), LoginRequest{
		Username: "jane.doe", Password: "secret", CaptchaID: "missing", Captcha: "ABCD",
	})
	if !errors.Is(err, ErrInvalidCaptcha) {
		t.Errorf("bad captcha: expected ErrInvalidCaptcha, got %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	a, db := newTestAuthenticator(t, fakeRoles{})
	user := createUser(t, db, "jane.doe", "secret", 0)

	issued := time.Now().Add(-48 * time.Hour)
	a.now = func() time.Time { return issued }
	token, err := a.generateToken(&user, "", TokenDuration)
	if err != nil {
		t.Fatalf("generateToken failed: %v", err)
	}
	a.now = time.Now

	if _, err := a.ValidateToken(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestLoadSession_ResolvesCurrentRole(t *testing.T) {
	roles := fakeRoles{3: {name: "Auditor"}}
	a, db := newTestAuthenticator(t, roles)
	createUser(t, db, "jane.doe", "secret", 3)

	resp, _, err := login(t, a, "jane.doe", "secret", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	roles[3] = struct {
		name    string
		trashed bool
	}{name: "Auditor", trashed: true}

	session, err := a.LoadSession(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if session.Role != "" {
		t.Errorf("expected trashed role to resolve to empty name, got %q", session.Role)
	}
	if session.RoleID != 3 {
		t.Errorf("expected role id 3, got %d", session.RoleID)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, db := newTestAuthenticator(t, fakeRoles{1: {name: "Admin"}})
	createUser(t, db, "jane.doe", "secret", 1)
	resp, _, err := login(t, a, "jane.doe", "secret", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	r := gin.New()
	r.GET("/me", a.Middleware(), func(c *gin.Context) {
		s, err := SessionFromContext(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, s.Username+":"+s.Role)
	})

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+resp.Token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: resp.Token}) }, http.StatusOK},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Token abc") }, http.StatusUnauthorized},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
			if tt.status == http.StatusOK && w.Body.String() != "jane.doe:Admin" {
				t.Errorf("unexpected body %q", w.Body.String())
			}
		})
	}
}

func TestCookieHelper(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	NewCookieHelper(false).SetSession(c, "tok", time.Hour)
	cookie := w.Result().Cookies()[0]
	if cookie.Name != AccessTokenCookie || cookie.Value != "tok" || !cookie.HttpOnly {
		t.Errorf("unexpected cookie: %+v", cookie)
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSite=Lax, got %v", cookie.SameSite)
	}
	if cookie.MaxAge != 3600 {
		t.Errorf("expected MaxAge 3600, got %d", cookie.MaxAge)
	}
}
