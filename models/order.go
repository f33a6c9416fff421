package models

import (
	"time"

	"github.com/carrigar/order-crm-api/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderType distinguishes small one-off jobs from bulk production runs
type OrderType string

const (
	OrderTypeSmall OrderType = "small"
	OrderTypeBulk  OrderType = "bulk"
)

// Valid reports whether t is a known order type
func (t OrderType) Valid() bool {
	return t == OrderTypeSmall || t == OrderTypeBulk
}

// OrderStatus is a stage in the order pipeline
type OrderStatus string

const (
	StatusPending      OrderStatus = "pending"
	StatusReviewing    OrderStatus = "reviewing"
	StatusQuoted       OrderStatus = "quoted"
	StatusConfirmed    OrderStatus = "confirmed"
	StatusInProduction OrderStatus = "in_production"
	StatusCompleted    OrderStatus = "completed"
	StatusCancelled    OrderStatus = "cancelled"
)

// OrderStatuses lists every status in pipeline order
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusReviewing,
	StatusQuoted,
	StatusConfirmed,
	StatusInProduction,
	StatusCompleted,
	StatusCancelled,
}

var statusLabels = map[OrderStatus]string{
	StatusPending:      "Pending",
	StatusReviewing:    "Under Review",
	StatusQuoted:       "Quote Sent",
	StatusConfirmed:    "Confirmed",
	StatusInProduction: "In Production",
	StatusCompleted:    "Completed",
	StatusCancelled:    "Cancelled",
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human-readable name of the status
func (s OrderStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Terminal reports whether no further transitions are allowed from s in strict mode
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s OrderStatus) rank() int {
	for i, status := range OrderStatuses {
		if status == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether from -> to is allowed by the strict transition table:
// forward along the pipeline, or to cancelled from any non-terminal status.
func CanTransition(from, to OrderStatus) bool {
	if !from.Valid() || !to.Valid() || from == to || from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return to.rank() > from.rank()
}

// Order represents a customer's manufacturing job request
type Order struct {
	ID                     uint                `gorm:"primaryKey" json:"id"`
	// OrderNumber is the public order identifier; it is written on create only
	OrderNumber            string              `gorm:"column:order_number;uniqueIndex;size:32;not null;<-:create" json:"order_id"`
	UserID                 *uint               `gorm:"index" json:"user_id"` // nullable, anonymous orders have no owner
	User                   *User               `gorm:"foreignKey:UserID" json:"user,omitempty"`
	OrderType              OrderType           `gorm:"size:10;not null" json:"order_type"`
	Status                 OrderStatus         `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ProjectNumber          *string             `gorm:"uniqueIndex;size:20" json:"project_number"` // generated for small orders only
	ContactName            string              `gorm:"size:100" json:"contact_name"`
	ContactEmail           string              `gorm:"size:254" json:"contact_email"`
	ContactPhone           string              `gorm:"size:15" json:"contact_phone"`
	CompanyName            string              `gorm:"size:100" json:"company_name"`
	PickupLocation         string              `gorm:"type:text" json:"pickup_location"`
	DeliveryLocation       string              `gorm:"type:text" json:"delivery_location"`
	Notes                  string              `gorm:"type:text" json:"notes"`
	TotalAmount            decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"total_amount"`
	ExpectedCompletionDate *time.Time          `json:"expected_completion_date"`
	ActualCompletionDate   *time.Time          `json:"actual_completion_date"`
	Items                  []OrderItem         `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Files                  []OrderFile         `gorm:"foreignKey:OrderID" json:"files,omitempty"`
	Updates                []OrderUpdate       `gorm:"foreignKey:OrderID" json:"updates,omitempty"`
	VendorAssignment       *VendorAssignment   `gorm:"foreignKey:OrderID" json:"vendor_assignment,omitempty"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeSave generates the project number for small orders that lack one
func (o *Order) BeforeSave(tx *gorm.DB) error {
	if o.OrderType == OrderTypeSmall && o.ProjectNumber == nil {
		pn := utils.NewProjectNumber()
		o.ProjectNumber = &pn
	}
	return nil
}

// BeforeCreate assigns the public order identifier on first persistence
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderNumber == "" {
		o.OrderNumber = utils.NewOrderID(time.Now())
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	return nil
}

// ApplyStatus moves the order to status and returns the previous status.
// Entering completed from another status stamps ActualCompletionDate if it is unset.
func (o *Order) ApplyStatus(status OrderStatus, now time.Time) OrderStatus {
	old := o.Status
	o.Status = status
	if status == StatusCompleted && old != StatusCompleted && o.ActualCompletionDate == nil {
		o.ActualCompletionDate = DatePtr(now)
	}
	return old
}

// CustomerName is the name used for file keys and listings
func (o *Order) CustomerName() string {
	if o.User != nil && o.User.Name != "" {
		return o.User.Name
	}
	return o.ContactName
}

// RecalculateTotal sets TotalAmount to the sum of priced item totals, or null when no item is priced
func (o *Order) RecalculateTotal() {
	total := decimal.Zero
	priced := false
	for _, item := range o.Items {
		if item.TotalPrice.Valid {
			total = total.Add(item.TotalPrice.Decimal)
			priced = true
		}
	}
	if !priced {
		o.TotalAmount = decimal.NullDecimal{}
		return
	}
	o.TotalAmount = decimal.NewNullDecimal(total.Round(2))
}
