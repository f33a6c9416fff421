package models

import (
	"time"

	"gorm.io/gorm"
)

// UpdateType classifies an entry in an order's timeline
type UpdateType string

const (
	UpdateStatusChange     UpdateType = "status_change"
	UpdateNote             UpdateType = "note"
	UpdateQuoteSent        UpdateType = "quote_sent"
	UpdateCustomerResponse UpdateType = "customer_response"
	UpdateProduction       UpdateType = "production_update"
	UpdateDelivery         UpdateType = "delivery_update"
	UpdateIssue            UpdateType = "issue"
)

var updateTypeLabels = map[UpdateType]string{
	UpdateStatusChange:     "Status Change",
	UpdateNote:             "Note",
	UpdateQuoteSent:        "Quote Sent",
	UpdateCustomerResponse: "Customer Response",
	UpdateProduction:       "Production Update",
	UpdateDelivery:         "Delivery Update",
	UpdateIssue:            "Issue",
}

// Valid reports whether t is a known update type
func (t UpdateType) Valid() bool {
	_, ok := updateTypeLabels[t]
	return ok
}

// Label returns the human-readable name of the update type
func (t UpdateType) Label() string {
	if label, ok := updateTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// OrderUpdate is an immutable timeline entry authored by a project manager
type OrderUpdate struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	OrderID           uint            `gorm:"not null;index" json:"order_id"`
	Order             *Order          `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	ProjectManagerID  uint            `gorm:"not null;index" json:"project_manager_id"`
	ProjectManager    *ProjectManager `gorm:"foreignKey:ProjectManagerID" json:"project_manager,omitempty"`
	UpdateType        UpdateType      `gorm:"size:20;not null" json:"update_type"`
	Title             string          `gorm:"size:200;not null" json:"title"`
	Description       string          `gorm:"type:text" json:"description"`
	OldStatus         *OrderStatus    `gorm:"size:20" json:"old_status"`
	NewStatus         *OrderStatus    `gorm:"size:20" json:"new_status"`
	IsCustomerVisible bool            `gorm:"not null" json:"is_customer_visible"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the OrderUpdate model
func (OrderUpdate) TableName() string {
	return "order_updates"
}

// BeforeUpdate blocks in-place edits of timeline entries
func (u *OrderUpdate) BeforeUpdate(tx *gorm.DB) error {
	return ErrAppendOnly
}

// BeforeDelete blocks removal of timeline entries
func (u *OrderUpdate) BeforeDelete(tx *gorm.DB) error {
	return ErrAppendOnly
}

// NewestFirst orders an update query newest-first, breaking timestamp ties by id
func NewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}
