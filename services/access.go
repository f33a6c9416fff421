package services

import (
	"context"
	"errors"

	"github.com/carrigar/order-crm-api/models"
	"gorm.io/gorm"
)

// RequireProjectManager returns the active project manager for the given Auth0 subject.
// A missing account, missing CRM profile or inactive profile is an Authorization error;
// storage failures are Internal and never treated as "not a project manager".
func RequireProjectManager(ctx context.Context, db *gorm.DB, auth0ID string) (*models.ProjectManager, error) {
	if auth0ID == "" {
		return nil, Forbidden("FORBIDDEN", "Project manager access required")
	}

	var user models.User
	if err := db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Forbidden("FORBIDDEN", "Project manager access required")
		}
		return nil, Internal("Failed to look up user", err)
	}

	var pm models.ProjectManager
	if err := db.WithContext(ctx).Preload("User").Where("user_id = ?", user.ID).First(&pm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Forbidden("FORBIDDEN", "Project manager access required")
		}
		return nil, Internal("Failed to look up project manager", err)
	}

	if !pm.IsActive {
		return nil, Forbidden("INACTIVE_PROJECT_MANAGER", "Project manager account is inactive")
	}
	return &pm, nil
}

// ProjectManagerSeed describes the staff account provisioned by the admin command.
type ProjectManagerSeed struct {
	Auth0ID    string
	Email      string
	Name       string
	EmployeeID string
	Department string
}

// EnsureProjectManager gets or creates the staff user and its active CRM profile.
// The user is matched by Auth0 subject when one is given, otherwise by email.
// Existing records are left as they are; the booleans report what was created.
func EnsureProjectManager(ctx context.Context, db *gorm.DB, seed ProjectManagerSeed) (*models.ProjectManager, bool, bool, error) {
	if seed.Email == "" || seed.EmployeeID == "" {
		return nil, false, false, Validation("VALIDATION_ERROR", "Email and employee ID are required")
	}
	if seed.Auth0ID == "" {
		seed.Auth0ID = "local|" + seed.EmployeeID
	}

	var pm models.ProjectManager
	var userCreated, pmCreated bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("auth0_id = ? OR email = ?", seed.Auth0ID, seed.Email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{
				Auth0ID: seed.Auth0ID,
				Name:    seed.Name,
				Email:   seed.Email,
				Role:    models.RoleStaff,
			}
			if err := tx.Create(&user).Error; err != nil {
				return Internal("Failed to create staff user", err)
			}
			userCreated = true
		case err != nil:
			return Internal("Failed to look up user", err)
		}

		err = tx.Preload("User").Where("user_id = ?", user.ID).First(&pm).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			pm = models.ProjectManager{
				UserID:     user.ID,
				EmployeeID: seed.EmployeeID,
				Department: seed.Department,
				IsActive:   true,
			}
			if err := tx.Create(&pm).Error; err != nil {
				return wrapDBError(err, nil, "EMPLOYEE_ID_EXISTS", "Employee ID is already assigned")
			}
			pm.User = user
			pmCreated = true
		case err != nil:
			return Internal("Failed to look up project manager", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, false, err
	}
	return &pm, userCreated, pmCreated, nil
}
