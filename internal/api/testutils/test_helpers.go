package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/aditpra/smartcare-server/internal/api"
	"github.com/aditpra/smartcare-server/internal/models"
	"github.com/aditpra/smartcare-server/internal/notify"
	"github.com/aditpra/smartcare-server/internal/repository"
	"github.com/aditpra/smartcare-server/internal/service"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests. Each call to
// SetupTestContext builds a fresh in-memory repository, so tests are
// isolated without any cleanup.
type TestContext struct {
	Router     *gin.Engine
	Repository repository.Repository
	Service    service.Service
	Hub        *notify.Hub
	JWTSecret  []byte

	// Seeded accounts: a customer, a verified mitra, and an admin
	UserID   string
	UserJWT  string
	MitraID  string
	MitraJWT string
	AdminID  string
	AdminJWT string
}

// SetupTestContext creates a new test context with initialized dependencies
func SetupTestContext(t *testing.T) *TestContext {
	repo := repository.NewMemoryRepository()
	hub := notify.NewHub()
	svc := service.NewDefaultService(repo, hub, testJWTSecret)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	testCtx := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		Hub:        hub,
		JWTSecret:  []byte(testJWTSecret),
	}

	testCtx.UserID, testCtx.UserJWT = createTestUser(t, repo,
		"customer@example.com", models.RoleUser, "")
	testCtx.MitraID, testCtx.MitraJWT = createTestUser(t, repo,
		"mitra@example.com", models.RoleMitra, models.VerificationVerified)
	testCtx.AdminID, testCtx.AdminJWT = createTestUser(t, repo,
		"admin@example.com", models.RoleAdmin, "")

	return testCtx
}

// Helper functions
func createTestUser(t *testing.T, repo repository.Repository, email string, role models.Role, verification models.VerificationStatus) (string, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.MinCost)

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         "Test " + string(role),
		Password:     string(hashedPassword),
		Role:         role,
		Verification: verification,
	}

	err := repo.CreateUser(context.Background(), user)
	assert.NoError(t, err, "Failed to create test user")

	// Generate JWT token the way the service does
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID,
		"role": string(role),
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(testJWTSecret))
	assert.NoError(t, err, "Failed to generate JWT token")

	return user.ID, tokenString
}

// SeedBalance credits an account with an immediate income transaction
func SeedBalance(t *testing.T, testCtx *TestContext, userID string, amount int64) {
	_, err := testCtx.Service.ApplyTransaction(context.Background(),
		userID, amount, models.TransactionIncome, "seed balance")
	assert.NoError(t, err, "Failed to seed balance")
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
