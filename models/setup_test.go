package models

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupModelTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to connect to test database")

	// Every connection to ":memory:" is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(All()...), "Failed to migrate test database")
	return db
}

func createTestPM(t *testing.T, db *gorm.DB) ProjectManager {
	t.Helper()

	user := User{Auth0ID: "auth0|pm1", Name: "Priya Menon", Email: "priya@carrigar.example", Role: RoleStaff}
	require.NoError(t, db.Create(&user).Error)

	pm := ProjectManager{UserID: user.ID, EmployeeID: "EMP001", Department: "Operations", IsActive: true}
	require.NoError(t, db.Create(&pm).Error)
	return pm
}
