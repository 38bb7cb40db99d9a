package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/hugh/testforge/internal/auth"
	"github.com/hugh/testforge/internal/database"
	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/pkg/crypto"
	"github.com/hugh/testforge/pkg/util"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword satisfies the registration password rules.
const TestPassword = "Passw0rd1"

// SetupTestDB creates a migrated in-memory SQLite database. A single
// connection keeps every query on the same in-memory instance.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CreateTestUser inserts an active user whose password is TestPassword.
func CreateTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

func CreateTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()

	enc, err := crypto.NewEncryptor("")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	return enc
}

// LoginTestUser runs a real login so the returned token has a session row.
func LoginTestUser(t *testing.T, svc *auth.Service, user *models.User) string {
	t.Helper()

	resp, err := svc.Login(context.Background(), auth.LoginInput{
		Identifier: user.Username,
		Password:   TestPassword,
	})
	if err != nil {
		t.Fatalf("failed to log in test user: %v", err)
	}
	return resp.Token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB          *gorm.DB
	JWTService  *auth.JWTService
	AuthService *auth.Service
	Encryptor   *crypto.Encryptor
	User        *models.User
	Token       string
}

// NewTestContext creates a DB, services and a logged-in user "alice".
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	authService := auth.NewService(db, jwtService, auth.WithLogger(util.DiscardLogger()))

	ts := &TestSetup{
		DB:          db,
		JWTService:  jwtService,
		AuthService: authService,
		Encryptor:   CreateTestEncryptor(t),
	}
	ts.User, ts.Token = ts.AddUser(t, "alice")
	return ts
}

// AddUser creates another logged-in user in the same database.
func (ts *TestSetup) AddUser(t *testing.T, username string) (*models.User, string) {
	t.Helper()

	user := CreateTestUser(t, ts.DB, username)
	return user, LoginTestUser(t, ts.AuthService, user)
}
