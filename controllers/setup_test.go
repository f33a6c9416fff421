package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/carrigar/order-crm-api/config"
	"github.com/carrigar/order-crm-api/middleware"
	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...), "Failed to migrate test database")

	env = testEnv{
		db:    db,
		cfg:   &config.Config{GoEnv: "test", IDGenerationAttempts: 3},
		store: services.NewMockFileStore(),
	}
	t.Cleanup(func() { env = testEnv{} })
	return db
}

// testEnv holds what the current test builds its API from
type testEnv struct {
	db    *gorm.DB
	cfg   *config.Config
	store services.FileStore
	cache services.ReportCache
}

var env testEnv

// testAPI builds handlers from the current test environment. Routers built
// before a use* call keep the previous collaborators.
func testAPI() *API {
	return NewAPI(env.db, env.cfg, env.store, env.cache)
}

// useConfig swaps cfg in for the duration of the test
func useConfig(t *testing.T, cfg *config.Config) {
	t.Helper()

	previous := env.cfg
	env.cfg = cfg
	t.Cleanup(func() { env.cfg = previous })
}

// useFileStore swaps store in for the duration of the test
func useFileStore(t *testing.T, store services.FileStore) {
	t.Helper()

	previous := env.store
	env.store = store
	t.Cleanup(func() { env.store = previous })
}

// useReportCache swaps cache in for the duration of the test
func useReportCache(t *testing.T, cache services.ReportCache) {
	t.Helper()

	previous := env.cache
	env.cache = cache
	t.Cleanup(func() { env.cache = previous })
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// setupMockAuth0Server creates a mock HTTP server that simulates Auth0's /userinfo endpoint
func setupMockAuth0Server(userInfoMap map[string]*services.Auth0UserInfo) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < 7 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		userInfo, exists := userInfoMap[authHeader[7:]]
		if !exists {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userInfo)
	}))
}

// mockAuthMiddleware sets up the context exactly as the real token middleware does
func mockAuthMiddleware(auth0ID, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: auth0ID},
			CustomClaims:     &middleware.CustomClaims{Role: role},
		}
		middleware.SetAuthContext(c, claims, accessToken)
		c.Next()
	}
}

// mockProjectManager stores pm the way RequireProjectManager does
func mockProjectManager(pm *models.ProjectManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", pm.User.Auth0ID)
		c.Set("project_manager", pm)
		c.Next()
	}
}

func createTestUser(t *testing.T, db *gorm.DB, auth0ID, name, email string) models.User {
	t.Helper()

	user := models.User{Auth0ID: auth0ID, Name: name, Email: email, Role: models.RoleCustomer}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createTestPM(t *testing.T, db *gorm.DB, auth0ID, employeeID string) *models.ProjectManager {
	t.Helper()

	user := models.User{
		Auth0ID: auth0ID,
		Name:    "PM " + employeeID,
		Email:   employeeID + "@carrigar.example",
		Role:    models.RoleStaff,
	}
	require.NoError(t, db.Create(&user).Error)

	pm := models.ProjectManager{UserID: user.ID, EmployeeID: employeeID, Department: "Operations", IsActive: true}
	require.NoError(t, db.Create(&pm).Error)
	pm.User = user
	return &pm
}

// apiResponse is the decoded success/error envelope
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func performJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Response body: %s", w.Body.String())
	return resp
}

// decodeData unmarshals the data field of a success envelope into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	resp := decodeResponse(t, w)
	require.True(t, resp.Success, "Response body: %s", w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

// newRequestAs builds a request for handlers that read the caller from X-Test-User
func newRequestAs(method, path, auth0ID string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Test-User", auth0ID)
	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testContext() context.Context {
	return context.Background()
}
