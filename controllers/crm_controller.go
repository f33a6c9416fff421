package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/carrigar/order-crm-api/middleware"
	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// UpdateStatusRequest represents the request body for changing an order's status
type UpdateStatusRequest struct {
	Status      string `json:"status" binding:"required"`
	Title       string `json:"title" binding:"max=200"`
	Description string `json:"description"`
}

// AddUpdateRequest represents the request body for a timeline entry
type AddUpdateRequest struct {
	UpdateType        string `json:"update_type"`
	Title             string `json:"title" binding:"required,max=200"`
	Description       string `json:"description"`
	IsCustomerVisible bool   `json:"is_customer_visible"`
}

// SetDateRequest sets or clears a completion date; an empty date clears it
type SetDateRequest struct {
	Date string `json:"date"`
}

// ItemPricingRequest represents the request body for pricing an order item
type ItemPricingRequest struct {
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	Quantity      *int             `json:"quantity"`
	ClearQuantity bool             `json:"clear_quantity"`
}

// AssignVendorRequest represents the request body for assigning a vendor
type AssignVendorRequest struct {
	VendorID             uint   `json:"vendor_id" binding:"required"`
	ExpectedDeliveryDate string `json:"expected_delivery_date"`
}

// DeliveryRequest represents the request body for a delivery report
type DeliveryRequest struct {
	ActualDeliveryDate string `json:"actual_delivery_date"`
	DispatchDate       string `json:"dispatch_date"`
	IsInFull           bool   `json:"is_in_full"`
	QualityRating      *int   `json:"quality_rating"`
	Notes              string `json:"notes"`
}

// currentProjectManager returns the profile stored by RequireProjectManager
func (a *API) currentProjectManager(c *gin.Context) (*models.ProjectManager, bool) {
	pm, err := middleware.GetProjectManager(c)
	if err != nil {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Project manager access required")
		return nil, false
	}
	return pm, true
}

// GetDashboard handles GET /crm/dashboard
func (a *API) GetDashboard(c *gin.Context) {
	pm, ok := a.currentProjectManager(c)
	if !ok {
		return
	}

	dashboard, err := a.analytics.Dashboard(c.Request.Context(), pm)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, dashboard)
}

// ListOrders handles GET /crm/orders with status, order_type, search, from, to and paging filters
func (a *API) ListOrders(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "to must be YYYY-MM-DD")
		return
	}

	orders, page, err := a.orders.ListOrders(c.Request.Context(), services.OrderFilter{
		Status:    models.OrderStatus(c.Query("status")),
		OrderType: models.OrderType(c.Query("order_type")),
		Search:    c.Query("search"),
		From:      from,
		To:        to,
		Page:      queryInt(c, "page"),
		PageSize:  queryInt(c, "page_size"),
	})
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"orders":     orders,
		"pagination": page,
	})
}

// GetOrderDetail handles GET /crm/orders/:order_id - the full order with its internal timeline
func (a *API) GetOrderDetail(c *gin.Context) {
	order, err := a.orders.GetOrder(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	a.files.ResolveURLs(c.Request.Context(), order.Files)

	deliveryStatus := ""
	if order.VendorAssignment != nil {
		assignment := *order.VendorAssignment
		assignment.Order = order
		deliveryStatus = assignment.DeliveryStatus(time.Now())
	}

	vendors, err := a.vendors.ActiveVendors(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"order":             order,
		"status_label":      order.Status.Label(),
		"delivery_status":   deliveryStatus,
		"available_vendors": vendors,
	})
}

// UpdateOrderStatus handles PUT /crm/orders/:order_id/status
func (a *API) UpdateOrderStatus(c *gin.Context) {
	pm, ok := a.currentProjectManager(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	order, update, err := a.orders.ChangeStatus(c.Request.Context(), c.Param("order_id"), pm, services.StatusChange{
		Status:      models.OrderStatus(req.Status),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"order":  order,
		"update": update,
	})
}

// AddOrderUpdate handles POST /crm/orders/:order_id/updates
func (a *API) AddOrderUpdate(c *gin.Context) {
	pm, ok := a.currentProjectManager(c)
	if !ok {
		return
	}

	var req AddUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	update, err := a.orders.AddUpdate(c.Request.Context(), c.Param("order_id"), pm, services.NewUpdate{
		UpdateType:        models.UpdateType(req.UpdateType),
		Title:             req.Title,
		Description:       req.Description,
		IsCustomerVisible: req.IsCustomerVisible,
	})
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, update)
}

// SetExpectedDate handles PUT /crm/orders/:order_id/expected-date
func (a *API) SetExpectedDate(c *gin.Context) {
	a.setOrderDate(c, (*services.OrderService).SetExpectedCompletionDate)
}

// SetActualDate handles PUT /crm/orders/:order_id/actual-date
func (a *API) SetActualDate(c *gin.Context) {
	a.setOrderDate(c, (*services.OrderService).SetActualCompletionDate)
}

func (a *API) setOrderDate(c *gin.Context, set func(*services.OrderService, context.Context, string, *time.Time) (*models.Order, error)) {
	var req SetDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}

	order, err := set(a.orders, c.Request.Context(), c.Param("order_id"), date)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, order)
}

// UpdateItemPricing handles PUT /crm/orders/:order_id/items/:item_id/pricing
func (a *API) UpdateItemPricing(c *gin.Context) {
	itemID, ok := parseID(c, "item_id")
	if !ok {
		return
	}

	var req ItemPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	order, err := a.orders.UpsertItemPricing(c.Request.Context(), c.Param("order_id"), itemID, services.ItemPricing{
		UnitPrice:     req.UnitPrice,
		Quantity:      req.Quantity,
		ClearQuantity: req.ClearQuantity,
	})
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, order)
}

// AssignVendor handles POST /crm/orders/:order_id/vendor
func (a *API) AssignVendor(c *gin.Context) {
	pm, ok := a.currentProjectManager(c)
	if !ok {
		return
	}

	var req AssignVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	expected, err := parseDate(req.ExpectedDeliveryDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "expected_delivery_date must be YYYY-MM-DD")
		return
	}

	assignment, err := a.assignments.AssignVendor(c.Request.Context(), c.Param("order_id"), req.VendorID, pm, expected)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, assignment)
}

// RecordDelivery handles PUT /crm/assignments/:id/delivery
func (a *API) RecordDelivery(c *gin.Context) {
	pm, ok := a.currentProjectManager(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req DeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	actual, err := parseDate(req.ActualDeliveryDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "actual_delivery_date must be YYYY-MM-DD")
		return
	}
	dispatch, err := parseDate(req.DispatchDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "dispatch_date must be YYYY-MM-DD")
		return
	}

	assignment, err := a.assignments.RecordDelivery(c.Request.Context(), id, services.DeliveryInput{
		ActualDeliveryDate: actual,
		DispatchDate:       dispatch,
		IsInFull:           req.IsInFull,
		QualityRating:      req.QualityRating,
		Notes:              req.Notes,
	}, pm)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"assignment":      assignment,
		"delivery_status": assignment.DeliveryStatus(time.Now()),
	})
}
