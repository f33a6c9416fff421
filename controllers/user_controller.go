package controllers

import (
	"net/http"
	"strings"

	"github.com/carrigar/order-crm-api/middleware"
	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/services"
	"github.com/gin-gonic/gin"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name            *string `json:"name" binding:"omitempty,min=1,max=100"`
	Email           *string `json:"email" binding:"omitempty,email"`
	Phone           *string `json:"phone" binding:"omitempty,max=15"`
	IsCompany       *bool   `json:"is_company"`
	CompanyName     *string `json:"company_name" binding:"omitempty,max=100"`
	GSTNumber       *string `json:"gst_number" binding:"omitempty,max=20"`
	BusinessAddress *string `json:"business_address"`
	Address         *string `json:"address"`
}

// profileResponse is a user with its derived profile fields
type profileResponse struct {
	models.User
	ProfileType string `json:"profile_type"`
	DisplayName string `json:"display_name"`
}

func newProfileResponse(user models.User) profileResponse {
	return profileResponse{User: user, ProfileType: user.ProfileType(), DisplayName: user.DisplayName()}
}

func (r UpdateUserRequest) updates() map[string]interface{} {
	updates := make(map[string]interface{})
	if r.Name != nil {
		updates["name"] = strings.TrimSpace(*r.Name)
	}
	if r.Email != nil {
		updates["email"] = strings.TrimSpace(*r.Email)
	}
	if r.Phone != nil {
		updates["phone"] = *r.Phone
	}
	if r.IsCompany != nil {
		updates["is_company"] = *r.IsCompany
	}
	if r.CompanyName != nil {
		updates["company_name"] = *r.CompanyName
	}
	if r.GSTNumber != nil {
		updates["gst_number"] = *r.GSTNumber
	}
	if r.BusinessAddress != nil {
		updates["business_address"] = *r.BusinessAddress
	}
	if r.Address != nil {
		updates["address"] = *r.Address
	}
	return updates
}

// CreateUser handles POST /api/v1/users - creates a new user from Auth0 userinfo
func (a *API) CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token")
		return
	}

	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found")
		return
	}

	userInfo, err := a.auth0.GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "AUTH0_ERROR", "Failed to fetch user information from Auth0")
		return
	}

	if userInfo.Email == "" {
		respondError(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided by Auth0")
		return
	}

	role := middleware.GetRole(c)
	if role == "" {
		role = models.RoleCustomer
	}

	user := models.User{
		Auth0ID: auth0ID,
		Name:    userInfo.DisplayName(),
		Email:   userInfo.Email,
		Role:    role,
	}

	db := a.db.WithContext(c.Request.Context())
	if err := db.Create(&user).Error; err != nil {
		if services.IsUniqueViolation(err) {
			respondError(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists")
			return
		}
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create user")
		return
	}

	respondSuccess(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func (a *API) GetMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}

	var user models.User
	if err := a.db.WithContext(c.Request.Context()).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return
	}

	respondSuccess(c, http.StatusOK, newProfileResponse(user))
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func (a *API) UpdateMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	db := a.db.WithContext(c.Request.Context())
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found")
		return
	}

	updates := req.updates()
	if len(updates) == 0 {
		respondSuccess(c, http.StatusOK, newProfileResponse(user))
		return
	}

	companyAfter := user.IsCompany
	if req.IsCompany != nil {
		companyAfter = *req.IsCompany
	}
	companyName := user.CompanyName
	if req.CompanyName != nil {
		companyName = *req.CompanyName
	}
	if companyAfter && strings.TrimSpace(companyName) == "" {
		respondError(c, http.StatusBadRequest, "MISSING_COMPANY_NAME", "Company name is required for company accounts")
		return
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		if services.IsUniqueViolation(err) {
			respondError(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists")
			return
		}
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update user profile")
		return
	}

	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch updated profile")
		return
	}

	respondSuccess(c, http.StatusOK, newProfileResponse(user))
}
