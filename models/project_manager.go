package models

import "time"

// ProjectManager is the CRM capability attached one-to-one to a staff account
type ProjectManager struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID" json:"user"`
	EmployeeID string    `gorm:"uniqueIndex;size:20;not null" json:"employee_id"`
	Department string    `gorm:"size:100" json:"department"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for the ProjectManager model
func (ProjectManager) TableName() string {
	return "project_managers"
}
