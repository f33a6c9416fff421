package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carrigar/order-crm-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentService binds vendors to orders and records deliveries
type AssignmentService struct {
	db *gorm.DB

	// Now is replaceable for tests
	Now func() time.Time
}

// NewAssignmentService creates an assignment service bound to db
func NewAssignmentService(db *gorm.DB) *AssignmentService {
	return &AssignmentService{db: db, Now: time.Now}
}

// AssignVendor creates the order's assignment, or reassigns it in place when one exists.
// A concurrent creator that loses the race on the order's unique index gets a Conflict.
func (s *AssignmentService) AssignVendor(ctx context.Context, orderNumber string, vendorID uint, actor *models.ProjectManager, expected *time.Time) (*models.VendorAssignment, error) {
	if actor == nil {
		return nil, Forbidden("FORBIDDEN", "Project manager access required")
	}

	var assignment models.VendorAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
			return wrapDBError(err, orderNotFound(orderNumber), "", "Failed to load order")
		}

		var vendor models.Vendor
		if err := tx.First(&vendor, vendorID).Error; err != nil {
			return wrapDBError(err, vendorNotFound(vendorID), "", "Failed to load vendor")
		}

		err := tx.Where("order_id = ?", order.ID).First(&assignment).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			assignment = models.VendorAssignment{
				OrderID:      order.ID,
				AssignedDate: s.Now().UTC(),
			}
		case err != nil:
			return Internal("Failed to load vendor assignment", err)
		}

		assignment.VendorID = vendor.ID
		assignment.AssignedByID = actor.ID
		if expected != nil {
			assignment.ExpectedDeliveryDate = models.DatePtr(*expected)
		}
		assignment.Order = &order

		if err := tx.Omit(clause.Associations).Save(&assignment).Error; err != nil {
			return wrapDBError(err, nil, "ASSIGNMENT_CONFLICT", "Order already has a vendor assignment")
		}

		update := models.OrderUpdate{
			OrderID:           order.ID,
			ProjectManagerID:  actor.ID,
			UpdateType:        models.UpdateNote,
			Title:             fmt.Sprintf("Vendor assigned: %s", vendor.CompanyName),
			Description:       fmt.Sprintf("Order assigned to vendor %s - %s", vendor.VendorCode, vendor.CompanyName),
			IsCustomerVisible: false,
		}
		if err := tx.Create(&update).Error; err != nil {
			return Internal("Failed to record vendor assignment", err)
		}

		assignment.Vendor = &vendor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// DeliveryInput is a delivery report. Nil dates and rating leave the stored values alone;
// IsInFull and Notes are always written.
type DeliveryInput struct {
	ActualDeliveryDate *time.Time
	DispatchDate       *time.Time
	IsInFull           bool
	QualityRating      *int
	Notes              string
}

// RecordDelivery applies a delivery report, recomputes on-time status and appends a
// customer-visible delivery_update describing the resulting delivery status.
func (s *AssignmentService) RecordDelivery(ctx context.Context, assignmentID uint, in DeliveryInput, actor *models.ProjectManager) (*models.VendorAssignment, error) {
	if actor == nil {
		return nil, Forbidden("FORBIDDEN", "Project manager access required")
	}
	if in.QualityRating != nil && (*in.QualityRating < models.MinQualityRating || *in.QualityRating > models.MaxQualityRating) {
		return nil, Validation("INVALID_RATING", "Quality rating must be between %d and %d", models.MinQualityRating, models.MaxQualityRating)
	}

	var assignment models.VendorAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Order").Preload("Vendor").First(&assignment, assignmentID).Error
		if err != nil {
			return wrapDBError(err,
				NotFound("ASSIGNMENT_NOT_FOUND", "Vendor assignment %d not found", assignmentID),
				"", "Failed to load vendor assignment")
		}

		if in.ActualDeliveryDate != nil {
			assignment.ActualDeliveryDate = models.DatePtr(*in.ActualDeliveryDate)
		}
		if in.DispatchDate != nil {
			assignment.DispatchDate = models.DatePtr(*in.DispatchDate)
		}
		if in.QualityRating != nil {
			assignment.QualityRating = in.QualityRating
		}
		assignment.IsInFull = in.IsInFull
		assignment.DeliveryNotes = in.Notes

		if err := tx.Omit(clause.Associations).Save(&assignment).Error; err != nil {
			return Internal("Failed to save delivery information", err)
		}

		vendorName := ""
		if assignment.Vendor != nil {
			vendorName = assignment.Vendor.CompanyName
		}
		update := models.OrderUpdate{
			OrderID:          assignment.OrderID,
			ProjectManagerID: actor.ID,
			UpdateType:       models.UpdateDelivery,
			Title:            "Delivery information updated",
			Description: fmt.Sprintf("Delivery status updated for vendor %s. Status: %s",
				vendorName, assignment.DeliveryStatus(s.Now())),
			IsCustomerVisible: true,
		}
		if err := tx.Create(&update).Error; err != nil {
			return Internal("Failed to record delivery update", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// AssignmentForOrder returns the order's assignment, or NotFound when the order has none
func (s *AssignmentService) AssignmentForOrder(ctx context.Context, orderNumber string) (*models.VendorAssignment, error) {
	db := s.db.WithContext(ctx)

	var order models.Order
	if err := db.Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, wrapDBError(err, orderNotFound(orderNumber), "", "Failed to load order")
	}

	var assignment models.VendorAssignment
	err := db.Preload("Vendor").Preload("AssignedBy.User").Where("order_id = ?", order.ID).First(&assignment).Error
	if err != nil {
		return nil, wrapDBError(err,
			NotFound("ASSIGNMENT_NOT_FOUND", "Order %s has no vendor assignment", orderNumber),
			"", "Failed to load vendor assignment")
	}
	assignment.Order = &order
	return &assignment, nil
}
