package testutil

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/carrigar/order-crm-api/config"
	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/services"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MustSetTestEnvironment sets GO_ENV to test and fails if it cannot be set
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}
	if os.Getenv("GO_ENV") != "test" {
		t.Fatal("Failed to verify GO_ENV=test")
	}
}

// TestConfig is a complete configuration for in-process tests
func TestConfig(uploadDir string) *config.Config {
	return &config.Config{
		DatabaseURL:          ":memory:",
		Port:                 "8080",
		GoEnv:                "test",
		Auth0Domain:          "test.auth0.com",
		Auth0Audience:        "https://api.test.com",
		FileStorage:          "local",
		UploadDir:            uploadDir,
		IDGenerationAttempts: 3,
		CORSAllowedOrigins:   []string{"*"},
		LogLevel:             "silent",
	}
}

// SetupTestDB opens a migrated in-memory database that is closed when the test ends
func SetupTestDB(t *testing.T) *gorm.DB {
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

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser inserts a customer account
func CreateUser(t *testing.T, db *gorm.DB, auth0ID, name, email string) models.User {
	t.Helper()

	user := models.User{Auth0ID: auth0ID, Name: name, Email: email, Role: models.RoleCustomer}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// CreateProjectManager inserts a staff account with a project manager profile
func CreateProjectManager(t *testing.T, db *gorm.DB, auth0ID, employeeID string, active bool) *models.ProjectManager {
	t.Helper()

	user := models.User{
		Auth0ID: auth0ID,
		Name:    "PM " + employeeID,
		Email:   strings.ToLower(employeeID) + "@carrigar.example",
		Role:    models.RoleStaff,
	}
	require.NoError(t, db.Create(&user).Error)

	pm := models.ProjectManager{UserID: user.ID, EmployeeID: employeeID, Department: "Operations", IsActive: active}
	require.NoError(t, db.Create(&pm).Error)
	pm.User = user
	return &pm
}

// CreateVendor inserts an active vendor through the vendor service
func CreateVendor(t *testing.T, db *gorm.DB, pm *models.ProjectManager, name string, service models.ServiceType) *models.Vendor {
	t.Helper()

	vendor, err := services.NewVendorService(db, 3).CreateVendor(context.Background(), services.VendorInput{
		CompanyName:    name,
		PrimaryService: service,
		Rating:         4,
	}, pm)
	require.NoError(t, err)
	return vendor
}
