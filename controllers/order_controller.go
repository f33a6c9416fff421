package controllers

import (
	"net/http"

	"github.com/carrigar/order-crm-api/middleware"
	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateOrderItemRequest is one requested line of work
type CreateOrderItemRequest struct {
	ServiceType string              `json:"service_type" binding:"required"`
	Description string              `json:"description"`
	Quantity    *int                `json:"quantity" binding:"omitempty,gt=0"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
}

// CreateOrderRequest represents the request body for submitting an order
type CreateOrderRequest struct {
	OrderType              string                   `json:"order_type" binding:"required,oneof=small bulk"`
	ContactName            string                   `json:"contact_name" binding:"max=100"`
	ContactEmail           string                   `json:"contact_email" binding:"omitempty,email"`
	ContactPhone           string                   `json:"contact_phone" binding:"max=15"`
	CompanyName            string                   `json:"company_name" binding:"max=100"`
	PickupLocation         string                   `json:"pickup_location"`
	DeliveryLocation       string                   `json:"delivery_location"`
	Notes                  string                   `json:"notes"`
	ExpectedCompletionDate string                   `json:"expected_completion_date"`
	Items                  []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (r CreateOrderRequest) toNewOrder(ownerAuth0ID string) (services.NewOrder, error) {
	expected, err := parseDate(r.ExpectedCompletionDate)
	if err != nil {
		return services.NewOrder{}, err
	}

	in := services.NewOrder{
		OwnerAuth0ID:           ownerAuth0ID,
		OrderType:              models.OrderType(r.OrderType),
		ContactName:            r.ContactName,
		ContactEmail:           r.ContactEmail,
		ContactPhone:           r.ContactPhone,
		CompanyName:            r.CompanyName,
		PickupLocation:         r.PickupLocation,
		DeliveryLocation:       r.DeliveryLocation,
		Notes:                  r.Notes,
		ExpectedCompletionDate: expected,
	}
	for _, item := range r.Items {
		in.Items = append(in.Items, services.NewOrderItem{
			ServiceType: models.ServiceType(item.ServiceType),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return in, nil
}

// CreateOrder handles POST /api/v1/orders - submits an order, signed in or anonymous
func (a *API) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	in, err := req.toNewOrder(middleware.OptionalUserID(c))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "expected_completion_date must be YYYY-MM-DD")
		return
	}

	order, err := a.orders.CreateOrder(c.Request.Context(), in)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, order)
}

// TrackOrder handles GET /api/v1/orders/:order_id - order status and the customer-visible timeline
func (a *API) TrackOrder(c *gin.Context) {
	order, updates, err := a.orders.TrackOrder(c.Request.Context(), c.Param("order_id"), middleware.OptionalUserID(c))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	a.files.ResolveURLs(c.Request.Context(), order.Files)

	respondSuccess(c, http.StatusOK, gin.H{
		"order":        order,
		"status_label": order.Status.Label(),
		"updates":      updates,
	})
}

// UploadOrderFile handles POST /api/v1/orders/:order_id/files - attaches a drawing or document
func (a *API) UploadOrderFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "A file is required in the 'file' form field")
		return
	}

	if a.store == nil {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File storage is not configured")
		return
	}

	file, err := a.files.Attach(c.Request.Context(), c.Param("order_id"), middleware.OptionalUserID(c), fileHeader)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, file)
}
