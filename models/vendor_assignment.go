package models

import (
	"time"

	"gorm.io/gorm"
)

// Derived delivery statuses reported by VendorAssignment.DeliveryStatus
const (
	DeliveryPending        = "Pending"
	DeliveryOverdue        = "Overdue"
	DeliveryOTIF           = "OTIF"
	DeliveryOnTime         = "On Time"
	DeliveryInFull         = "In Full"
	DeliveryLateIncomplete = "Late/Incomplete"
)

const (
	MinQualityRating = 1
	MaxQualityRating = 5
)

// VendorAssignment binds one vendor to one order and tracks its delivery
type VendorAssignment struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	OrderID              uint            `gorm:"uniqueIndex;not null" json:"order_id"` // at most one assignment per order
	Order                *Order          `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	VendorID             uint            `gorm:"not null;index" json:"vendor_id"`
	Vendor               *Vendor         `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	AssignedByID         uint            `gorm:"not null;index" json:"assigned_by_id"`
	AssignedBy           *ProjectManager `gorm:"foreignKey:AssignedByID" json:"assigned_by,omitempty"`
	AssignedDate         time.Time       `gorm:"not null" json:"assigned_date"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
	ActualDeliveryDate   *time.Time      `json:"actual_delivery_date"`
	DispatchDate         *time.Time      `json:"dispatch_date"`
	IsOnTime             bool            `gorm:"not null" json:"is_on_time"`
	IsInFull             bool            `gorm:"not null" json:"is_in_full"`
	QualityRating        *int            `json:"quality_rating"`
	DeliveryNotes        string          `gorm:"type:text" json:"delivery_notes"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the VendorAssignment model
func (VendorAssignment) TableName() string {
	return "vendor_assignments"
}

// BeforeSave recomputes IsOnTime when both the actual and the expected date are known.
// When either is missing the previous value is kept.
func (a *VendorAssignment) BeforeSave(tx *gorm.DB) error {
	if a.AssignedDate.IsZero() {
		a.AssignedDate = time.Now().UTC()
	}
	expected := a.EffectiveExpectedDate()
	if a.ActualDeliveryDate != nil && expected != nil {
		a.IsOnTime = !DateOf(*a.ActualDeliveryDate).After(DateOf(*expected))
	}
	return nil
}

// EffectiveExpectedDate is the assignment's expected delivery date, falling back to
// the order's expected completion date when the order is loaded.
func (a *VendorAssignment) EffectiveExpectedDate() *time.Time {
	if a.ExpectedDeliveryDate != nil {
		return a.ExpectedDeliveryDate
	}
	if a.Order != nil {
		return a.Order.ExpectedCompletionDate
	}
	return nil
}

// DeliveryStatus derives the display status of the delivery as of now
func (a *VendorAssignment) DeliveryStatus(now time.Time) string {
	if a.ActualDeliveryDate == nil {
		if expected := a.EffectiveExpectedDate(); expected != nil && DateOf(now).After(DateOf(*expected)) {
			return DeliveryOverdue
		}
		return DeliveryPending
	}

	switch {
	case a.IsOnTime && a.IsInFull:
		return DeliveryOTIF
	case a.IsOnTime:
		return DeliveryOnTime
	case a.IsInFull:
		return DeliveryInFull
	default:
		return DeliveryLateIncomplete
	}
}

// CalculateOTIFPercentage returns the share of assignments on completed orders that were
// delivered on time and in full. Assignments without a loaded order are ignored.
func CalculateOTIFPercentage(assignments []VendorAssignment) float64 {
	var completed, otif int64
	for _, a := range assignments {
		if a.Order == nil || a.Order.Status != StatusCompleted {
			continue
		}
		completed++
		if a.IsOnTime && a.IsInFull {
			otif++
		}
	}
	return Percentage(otif, completed)
}
