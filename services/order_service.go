package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carrigar/order-crm-api/config"
	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPageSize is the number of rows returned per page by list operations
const DefaultPageSize = 20

// OrderService implements the order lifecycle: submission, status changes and the audit timeline
type OrderService struct {
	db       *gorm.DB
	strict   bool
	attempts int

	// IDs and Now are replaceable for tests
	IDs utils.IDGenerator
	Now func() time.Time
}

// NewOrderService creates an order service bound to db
func NewOrderService(db *gorm.DB, cfg *config.Config) *OrderService {
	s := &OrderService{
		db:       db,
		attempts: 3,
		IDs:      utils.DefaultIDGenerator,
		Now:      time.Now,
	}
	if cfg != nil {
		s.strict = cfg.StrictStatusTransitions
		if cfg.IDGenerationAttempts > 0 {
			s.attempts = cfg.IDGenerationAttempts
		}
	}
	return s
}

// NewOrderItem is one requested line of work
type NewOrderItem struct {
	ServiceType models.ServiceType
	Description string
	Quantity    *int
	UnitPrice   decimal.NullDecimal
}

// NewOrder is a customer order submission
type NewOrder struct {
	OwnerAuth0ID           string // empty for anonymous submissions
	OrderType              models.OrderType
	ContactName            string
	ContactEmail           string
	ContactPhone           string
	CompanyName            string
	PickupLocation         string
	DeliveryLocation       string
	Notes                  string
	ExpectedCompletionDate *time.Time
	Items                  []NewOrderItem
}

func orderNotFound(orderNumber string) *ServiceError {
	return NotFound("ORDER_NOT_FOUND", "Order %s not found", orderNumber)
}

// CreateOrder validates and persists a new order with its items. The identifier is
// generated for each insert attempt and regenerated on a uniqueness violation.
func (s *OrderService) CreateOrder(ctx context.Context, in NewOrder) (*models.Order, error) {
	if !in.OrderType.Valid() {
		return nil, Validation("INVALID_ORDER_TYPE", "Order type must be 'small' or 'bulk'")
	}
	if len(in.Items) == 0 {
		return nil, Validation("MISSING_ITEMS", "At least one order item is required")
	}
	for i, item := range in.Items {
		if !item.ServiceType.Valid() {
			return nil, Validation("INVALID_SERVICE_TYPE", "Item %d has unknown service type %q", i+1, item.ServiceType)
		}
		if item.Quantity != nil && *item.Quantity < 1 {
			return nil, Validation("INVALID_QUANTITY", "Item %d quantity must be at least 1", i+1)
		}
		if item.UnitPrice.Valid && item.UnitPrice.Decimal.IsNegative() {
			return nil, Validation("INVALID_PRICE", "Item %d unit price cannot be negative", i+1)
		}
	}

	db := s.db.WithContext(ctx)

	var owner *models.User
	if in.OwnerAuth0ID != "" {
		var user models.User
		if err := db.Where("auth0_id = ?", in.OwnerAuth0ID).First(&user).Error; err != nil {
			return nil, wrapDBError(err,
				NotFound("USER_NOT_FOUND", "User profile not found. Please create a profile first."),
				"", "Failed to look up order owner")
		}
		owner = &user
	}

	if in.OrderType == models.OrderTypeBulk && owner == nil {
		return nil, Forbidden("LOGIN_REQUIRED", "Bulk orders require a signed-in account")
	}
	if owner == nil && strings.TrimSpace(in.ContactEmail) == "" {
		return nil, Validation("MISSING_CONTACT", "Contact email is required for orders without an account")
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		order := s.buildOrder(in, owner)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
				return err
			}

			items := make([]models.OrderItem, len(in.Items))
			for i, item := range in.Items {
				qty := item.Quantity
				if qty == nil {
					one := 1
					qty = &one
				}
				items[i] = models.OrderItem{
					OrderID:     order.ID,
					ServiceType: item.ServiceType,
					Description: item.Description,
					Quantity:    qty,
					UnitPrice:   item.UnitPrice,
				}
			}
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
			order.Items = items

			order.RecalculateTotal()
			if order.TotalAmount.Valid {
				return tx.Model(&order).Update("total_amount", order.TotalAmount).Error
			}
			return nil
		})
		if err == nil {
			order.User = owner
			return &order, nil
		}
		if !IsUniqueViolation(err) {
			return nil, Internal("Failed to create order", err)
		}
		lastErr = err
	}

	return nil, Conflict("ID_CONFLICT",
		fmt.Sprintf("Could not allocate a unique order identifier after %d attempts", s.attempts), lastErr)
}

func (s *OrderService) buildOrder(in NewOrder, owner *models.User) models.Order {
	order := models.Order{
		OrderNumber:      s.IDs.OrderID(s.Now()),
		OrderType:        in.OrderType,
		Status:           models.StatusPending,
		ContactName:      in.ContactName,
		ContactEmail:     in.ContactEmail,
		ContactPhone:     in.ContactPhone,
		CompanyName:      in.CompanyName,
		PickupLocation:   in.PickupLocation,
		DeliveryLocation: in.DeliveryLocation,
		Notes:            in.Notes,
	}
	if in.ExpectedCompletionDate != nil {
		order.ExpectedCompletionDate = models.DatePtr(*in.ExpectedCompletionDate)
	}
	if in.OrderType == models.OrderTypeSmall {
		pn := s.IDs.ProjectNumber()
		order.ProjectNumber = &pn
	}
	if owner != nil {
		order.UserID = &owner.ID
		if order.ContactName == "" {
			order.ContactName = owner.Name
		}
		if order.ContactEmail == "" {
			order.ContactEmail = owner.Email
		}
		if order.ContactPhone == "" {
			order.ContactPhone = owner.Phone
		}
		if order.CompanyName == "" && owner.IsCompany {
			order.CompanyName = owner.CompanyName
		}
	}
	return order
}

// StatusChange is a requested status transition with optional timeline text
type StatusChange struct {
	Status      models.OrderStatus
	Title       string
	Description string
}

// ChangeStatus moves an order to a new status and records the matching status_change
// update in the same transaction.
func (s *OrderService) ChangeStatus(ctx context.Context, orderNumber string, actor *models.ProjectManager, change StatusChange) (*models.Order, *models.OrderUpdate, error) {
	if actor == nil {
		return nil, nil, Forbidden("FORBIDDEN", "Project manager access required")
	}
	if !change.Status.Valid() {
		return nil, nil, Validation("INVALID_STATUS", "Unknown order status %q", change.Status)
	}

	var order models.Order
	var update models.OrderUpdate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
			return wrapDBError(err, orderNotFound(orderNumber), "", "Failed to load order")
		}

		if s.strict && !models.CanTransition(order.Status, change.Status) {
			return Validation("INVALID_TRANSITION", "Cannot change status from %s to %s",
				order.Status.Label(), change.Status.Label())
		}

		oldStatus := order.ApplyStatus(change.Status, s.Now())
		if err := tx.Omit(clause.Associations).Save(&order).Error; err != nil {
			return wrapDBError(err, nil, "", "Failed to save order status")
		}

		newStatus := order.Status
		title := change.Title
		if title == "" {
			title = fmt.Sprintf("Status changed to %s", newStatus.Label())
		}
		description := change.Description
		if description == "" {
			description = fmt.Sprintf("Order status updated from %s to %s", oldStatus.Label(), newStatus.Label())
		}

		update = models.OrderUpdate{
			OrderID:           order.ID,
			ProjectManagerID:  actor.ID,
			UpdateType:        models.UpdateStatusChange,
			Title:             title,
			Description:       description,
			OldStatus:         &oldStatus,
			NewStatus:         &newStatus,
			IsCustomerVisible: true,
		}
		if err := tx.Create(&update).Error; err != nil {
			return wrapDBError(err, nil, "", "Failed to record status change")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &order, &update, nil
}

// NewUpdate is a free-form timeline entry added by a project manager
type NewUpdate struct {
	UpdateType        models.UpdateType
	Title             string
	Description       string
	IsCustomerVisible bool
}

// AddUpdate appends a timeline entry to an order. Status changes must go through ChangeStatus.
func (s *OrderService) AddUpdate(ctx context.Context, orderNumber string, actor *models.ProjectManager, in NewUpdate) (*models.OrderUpdate, error) {
	if actor == nil {
		return nil, Forbidden("FORBIDDEN", "Project manager access required")
	}
	if in.UpdateType == "" {
		in.UpdateType = models.UpdateNote
	}
	if !in.UpdateType.Valid() {
		return nil, Validation("INVALID_UPDATE_TYPE", "Unknown update type %q", in.UpdateType)
	}
	if in.UpdateType == models.UpdateStatusChange {
		return nil, Validation("INVALID_UPDATE_TYPE", "Use the status endpoint to change order status")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, Validation("MISSING_TITLE", "Update title is required")
	}

	db := s.db.WithContext(ctx)
	order, err := s.findOrder(db, orderNumber)
	if err != nil {
		return nil, err
	}

	update := models.OrderUpdate{
		OrderID:           order.ID,
		ProjectManagerID:  actor.ID,
		UpdateType:        in.UpdateType,
		Title:             strings.TrimSpace(in.Title),
		Description:       in.Description,
		IsCustomerVisible: in.IsCustomerVisible,
	}
	if err := db.Create(&update).Error; err != nil {
		return nil, Internal("Failed to add order update", err)
	}
	return &update, nil
}

// SetExpectedCompletionDate sets or clears the planned completion date
func (s *OrderService) SetExpectedCompletionDate(ctx context.Context, orderNumber string, date *time.Time) (*models.Order, error) {
	return s.setDate(ctx, orderNumber, "expected_completion_date", date)
}

// SetActualCompletionDate sets or clears the recorded completion date
func (s *OrderService) SetActualCompletionDate(ctx context.Context, orderNumber string, date *time.Time) (*models.Order, error) {
	return s.setDate(ctx, orderNumber, "actual_completion_date", date)
}

func (s *OrderService) setDate(ctx context.Context, orderNumber, column string, date *time.Time) (*models.Order, error) {
	db := s.db.WithContext(ctx)
	order, err := s.findOrder(db, orderNumber)
	if err != nil {
		return nil, err
	}

	var value *time.Time
	if date != nil {
		value = models.DatePtr(*date)
	}
	switch column {
	case "expected_completion_date":
		order.ExpectedCompletionDate = value
	case "actual_completion_date":
		order.ActualCompletionDate = value
	}

	if err := db.Omit(clause.Associations).Save(order).Error; err != nil {
		return nil, Internal("Failed to update order date", err)
	}
	return order, nil
}

// ItemPricing changes the price inputs of one order item
type ItemPricing struct {
	UnitPrice     *decimal.Decimal
	Quantity      *int
	ClearQuantity bool
}

// UpsertItemPricing applies pricing to an item and refreshes the order total
func (s *OrderService) UpsertItemPricing(ctx context.Context, orderNumber string, itemID uint, in ItemPricing) (*models.Order, error) {
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return nil, Validation("INVALID_PRICE", "Unit price cannot be negative")
	}
	if in.Quantity != nil && *in.Quantity < 1 {
		return nil, Validation("INVALID_QUANTITY", "Quantity must be at least 1")
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.findOrder(tx, orderNumber)
		if err != nil {
			return err
		}

		var item models.OrderItem
		if err := tx.Where("id = ? AND order_id = ?", itemID, order.ID).First(&item).Error; err != nil {
			return wrapDBError(err, NotFound("ITEM_NOT_FOUND", "Item %d not found on order %s", itemID, orderNumber), "", "Failed to load order item")
		}

		if in.UnitPrice != nil {
			item.UnitPrice = decimal.NewNullDecimal(in.UnitPrice.Round(2))
		}
		if in.ClearQuantity {
			item.Quantity = nil
		} else if in.Quantity != nil {
			item.Quantity = in.Quantity
		}
		if err := tx.Save(&item).Error; err != nil {
			return Internal("Failed to save item pricing", err)
		}

		if err := tx.Where("order_id = ?", order.ID).Order("id").Find(&order.Items).Error; err != nil {
			return Internal("Failed to load order items", err)
		}
		order.RecalculateTotal()
		if err := tx.Model(order).Update("total_amount", order.TotalAmount).Error; err != nil {
			return Internal("Failed to update order total", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder loads an order with its items, files, timeline and vendor assignment
func (s *OrderService) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Updates", models.NewestFirst).
		Preload("Updates.ProjectManager.User").
		Preload("VendorAssignment.Vendor").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, wrapDBError(err, orderNotFound(orderNumber), "", "Failed to load order")
	}
	return &order, nil
}

// TrackOrder returns an order and its customer-visible timeline. Orders owned by an
// account are only visible to that account; anonymous orders are looked up by identifier.
func (s *OrderService) TrackOrder(ctx context.Context, orderNumber, requesterAuth0ID string) (*models.Order, []models.OrderUpdate, error) {
	db := s.db.WithContext(ctx)

	var order models.Order
	err := db.Preload("User").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, nil, wrapDBError(err, orderNotFound(orderNumber), "", "Failed to load order")
	}

	if order.User != nil && order.User.Auth0ID != requesterAuth0ID {
		return nil, nil, Forbidden("FORBIDDEN", "You can only view your own orders")
	}

	updates, err := s.updates(db, order.ID, true)
	if err != nil {
		return nil, nil, err
	}
	return &order, updates, nil
}

// Updates returns an order's timeline newest-first, optionally only customer-visible entries
func (s *OrderService) Updates(ctx context.Context, orderNumber string, visibleOnly bool) ([]models.OrderUpdate, error) {
	db := s.db.WithContext(ctx)
	order, err := s.findOrder(db, orderNumber)
	if err != nil {
		return nil, err
	}
	return s.updates(db, order.ID, visibleOnly)
}

func (s *OrderService) updates(db *gorm.DB, orderID uint, visibleOnly bool) ([]models.OrderUpdate, error) {
	query := db.Scopes(models.NewestFirst).Preload("ProjectManager.User").Where("order_id = ?", orderID)
	if visibleOnly {
		query = query.Where("is_customer_visible = ?", true)
	}

	var updates []models.OrderUpdate
	if err := query.Find(&updates).Error; err != nil {
		return nil, Internal("Failed to load order updates", err)
	}
	return updates, nil
}

// OrderFilter narrows ListOrders
type OrderFilter struct {
	Status    models.OrderStatus
	OrderType models.OrderType
	Search    string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// Pagination describes one page of a listing
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// ListOrders returns orders newest-first matching the filter
func (s *OrderService) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, Pagination, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, Pagination{}, Validation("INVALID_STATUS", "Unknown order status %q", f.Status)
	}
	if f.OrderType != "" && !f.OrderType.Valid() {
		return nil, Pagination{}, Validation("INVALID_ORDER_TYPE", "Order type must be 'small' or 'bulk'")
	}
	page, pageSize := normalizePage(f.Page, f.PageSize)
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Order{}).Scopes(f.apply).Count(&total).Error; err != nil {
		return nil, Pagination{}, Internal("Failed to count orders", err)
	}

	var orders []models.Order
	err := db.Scopes(f.apply).
		Preload("User").
		Preload("VendorAssignment.Vendor").
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		return nil, Pagination{}, Internal("Failed to list orders", err)
	}
	return orders, newPagination(page, pageSize, total), nil
}

func (f OrderFilter) apply(query *gorm.DB) *gorm.DB {
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.OrderType != "" {
		query = query.Where("order_type = ?", f.OrderType)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where(
			"LOWER(order_number) LIKE ? OR LOWER(contact_name) LIKE ? OR LOWER(contact_email) LIKE ? OR LOWER(company_name) LIKE ? OR LOWER(COALESCE(project_number, '')) LIKE ?",
			like, like, like, like, like)
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", models.DateOf(*f.From))
	}
	if f.To != nil {
		query = query.Where("created_at < ?", models.DateOf(*f.To).AddDate(0, 0, 1))
	}
	return query
}

func (s *OrderService) findOrder(db *gorm.DB, orderNumber string) (*models.Order, error) {
	var order models.Order
	if err := db.Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(orderNumber)
		}
		return nil, Internal("Failed to load order", err)
	}
	return &order, nil
}
