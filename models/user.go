package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

// User represents an account in the system (customer or internal staff)
type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Auth0ID         string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name            string         `gorm:"not null" json:"name"`
	Email           string         `gorm:"uniqueIndex;not null" json:"email"`
	Role            string         `gorm:"not null;default:'customer'" json:"role"` // "customer" or "staff"
	Phone           string         `gorm:"size:15" json:"phone"`
	IsCompany       bool           `gorm:"not null" json:"is_company"`
	CompanyName     string         `gorm:"size:100" json:"company_name"`
	GSTNumber       string         `gorm:"size:20" json:"gst_number"`
	BusinessAddress string         `gorm:"type:text" json:"business_address"`
	Address         string         `gorm:"type:text" json:"address"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// ProfileType reports whether the account belongs to a company or an individual
func (u User) ProfileType() string {
	if u.IsCompany {
		return "Company"
	}
	return "Individual"
}

// DisplayName returns the company name for company accounts, otherwise the person's name
func (u User) DisplayName() string {
	if u.IsCompany && u.CompanyName != "" {
		return u.CompanyName
	}
	return u.Name
}
