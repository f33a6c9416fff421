package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func crmRouter(pm *models.ProjectManager) *gin.Engine {
	api := testAPI()
	router := setupTestRouter()
	crm := router.Group("/crm")
	if pm != nil {
		crm.Use(mockProjectManager(pm))
	}
	crm.GET("/dashboard", api.GetDashboard)
	crm.GET("/orders", api.ListOrders)
	crm.GET("/orders/:order_id", api.GetOrderDetail)
	crm.PUT("/orders/:order_id/status", api.UpdateOrderStatus)
	crm.POST("/orders/:order_id/updates", api.AddOrderUpdate)
	crm.PUT("/orders/:order_id/expected-date", api.SetExpectedDate)
	crm.PUT("/orders/:order_id/actual-date", api.SetActualDate)
	crm.PUT("/orders/:order_id/items/:item_id/pricing", api.UpdateItemPricing)
	crm.POST("/orders/:order_id/vendor", api.AssignVendor)
	crm.PUT("/assignments/:id/delivery", api.RecordDelivery)
	crm.GET("/vendors", api.ListVendors)
	crm.POST("/vendors", api.CreateVendor)
	crm.GET("/vendors/:id", api.GetVendor)
	crm.PUT("/vendors/:id", api.UpdateVendor)
	crm.GET("/analytics", api.GetAnalytics)
	return router
}

// crmFixture is a project manager, a vendor and one anonymous order
type crmFixture struct {
	db     *gorm.DB
	pm     *models.ProjectManager
	vendor *models.Vendor
	order  models.Order
	router *gin.Engine
}

func setupCRM(t *testing.T) *crmFixture {
	t.Helper()

	db := setupTestDB(t)

	pm := createTestPM(t, db, "auth0|pm", "EMP001")
	vendor, err := services.NewVendorService(db, 3).CreateVendor(testContext(), services.VendorInput{
		CompanyName:    "Precision Cutters",
		PrimaryService: models.ServiceSheetLaser,
		HasSheetLaser:  true,
		Rating:         4,
	}, pm)
	require.NoError(t, err)

	return &crmFixture{
		db:     db,
		pm:     pm,
		vendor: vendor,
		order:  submitOrder(t, orderRouter(""), smallOrderBody("walkin@example.com")),
		router: crmRouter(pm),
	}
}

func (f *crmFixture) path(format string, args ...interface{}) string {
	return "/crm/orders/" + f.order.OrderNumber + fmt.Sprintf(format, args...)
}

func TestCRMRequiresProjectManager(t *testing.T) {
	setupTestDB(t)
	router := crmRouter(nil)

	w := performJSON(router, http.MethodGet, "/crm/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeResponse(t, w).Error.Code)

	w = performJSON(router, http.MethodPut, "/crm/orders/ORD1/status", map[string]string{"status": "quoted"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	f := setupCRM(t)

	t.Run("changes status and records the timeline entry", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, f.path("/status"), map[string]string{"status": "quoted"})
		require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

		var data struct {
			Order  models.Order       `json:"order"`
			Update models.OrderUpdate `json:"update"`
		}
		decodeData(t, w, &data)
		assert.Equal(t, models.StatusQuoted, data.Order.Status)
		assert.Equal(t, "Status changed to Quote Sent", data.Update.Title)
		assert.Equal(t, "Order status updated from Pending to Quote Sent", data.Update.Description)
		assert.True(t, data.Update.IsCustomerVisible)
		require.NotNil(t, data.Update.OldStatus)
		assert.Equal(t, models.StatusPending, *data.Update.OldStatus)
	})

	t.Run("completion stamps the actual date", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, f.path("/status"), map[string]string{"status": "completed"})
		require.Equal(t, http.StatusOK, w.Code)

		stored := orderByNumber(t, f.db, f.order.OrderNumber)
		assert.NotNil(t, stored.ActualCompletionDate)
	})

	t.Run("unknown status", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, f.path("/status"), map[string]string{"status": "shipped"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_STATUS", decodeResponse(t, w).Error.Code)
	})

	t.Run("missing status", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, f.path("/status"), map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeResponse(t, w).Error.Code)
	})

	t.Run("unknown order", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, "/crm/orders/ORDMISSING/status", map[string]string{"status": "quoted"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "ORDER_NOT_FOUND", decodeResponse(t, w).Error.Code)
	})
}

func TestAddOrderUpdate(t *testing.T) {
	f := setupCRM(t)

	w := performJSON(f.router, http.MethodPost, f.path("/updates"), map[string]interface{}{
		"update_type":         "production_update",
		"title":               "Cutting started",
		"is_customer_visible": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, "Response body: %s", w.Body.String())

	var update models.OrderUpdate
	decodeData(t, w, &update)
	assert.Equal(t, models.UpdateProduction, update.UpdateType)
	assert.Equal(t, f.pm.ID, update.ProjectManagerID)
	assert.True(t, update.IsCustomerVisible)

	t.Run("note is the default type and hidden by default", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPost, f.path("/updates"), map[string]interface{}{"title": "Called customer"})
		require.Equal(t, http.StatusCreated, w.Code)

		var note models.OrderUpdate
		decodeData(t, w, &note)
		assert.Equal(t, models.UpdateNote, note.UpdateType)
		assert.False(t, note.IsCustomerVisible)
	})

	t.Run("status changes are refused", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPost, f.path("/updates"), map[string]interface{}{
			"update_type": "status_change",
			"title":       "Sneaky",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_UPDATE_TYPE", decodeResponse(t, w).Error.Code)
	})

	t.Run("title is required", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPost, f.path("/updates"), map[string]interface{}{"description": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOrderDates(t *testing.T) {
	f := setupCRM(t)

	w := performJSON(f.router, http.MethodPut, f.path("/expected-date"), map[string]string{"date": "2026-11-01"})
	require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())
	stored := orderByNumber(t, f.db, f.order.OrderNumber)
	require.NotNil(t, stored.ExpectedCompletionDate)
	assert.Equal(t, "2026-11-01", stored.ExpectedCompletionDate.Format("2006-01-02"))

	w = performJSON(f.router, http.MethodPut, f.path("/actual-date"), map[string]string{"date": "2026-10-30"})
	require.Equal(t, http.StatusOK, w.Code)
	stored = orderByNumber(t, f.db, f.order.OrderNumber)
	require.NotNil(t, stored.ActualCompletionDate)

	w = performJSON(f.router, http.MethodPut, f.path("/expected-date"), map[string]string{"date": ""})
	require.Equal(t, http.StatusOK, w.Code)
	stored = orderByNumber(t, f.db, f.order.OrderNumber)
	assert.Nil(t, stored.ExpectedCompletionDate, "empty date clears")

	w = performJSON(f.router, http.MethodPut, f.path("/expected-date"), map[string]string{"date": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_DATE", decodeResponse(t, w).Error.Code)
}

func TestUpdateItemPricing(t *testing.T) {
	f := setupCRM(t)
	itemID := f.order.Items[0].ID

	w := performJSON(f.router, http.MethodPut, f.path("/items/%d/pricing", itemID), map[string]interface{}{"unit_price": "12.345"})
	require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var order models.Order
	decodeData(t, w, &order)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "12.35", order.Items[0].UnitPrice.Decimal.StringFixed(2))
	assert.Equal(t, "49.40", order.TotalAmount.Decimal.StringFixed(2))

	t.Run("negative price", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, f.path("/items/%d/pricing", itemID), map[string]interface{}{"unit_price": "-1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_PRICE", decodeResponse(t, w).Error.Code)
	})

	t.Run("unknown item", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, f.path("/items/%d/pricing", itemID+100), map[string]interface{}{"quantity": 2})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "ITEM_NOT_FOUND", decodeResponse(t, w).Error.Code)
	})

	t.Run("invalid item id", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, f.path("/items/abc/pricing"), map[string]interface{}{"quantity": 2})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_ID", decodeResponse(t, w).Error.Code)
	})
}

func TestVendorAssignmentFlow(t *testing.T) {
	f := setupCRM(t)

	w := performJSON(f.router, http.MethodPost, f.path("/vendor"), map[string]interface{}{
		"vendor_id":              f.vendor.ID,
		"expected_delivery_date": "2026-10-20",
	})
	require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

	var assignment models.VendorAssignment
	decodeData(t, w, &assignment)
	assert.Equal(t, f.vendor.ID, assignment.VendorID)
	assert.Equal(t, f.pm.ID, assignment.AssignedByID)

	t.Run("unknown vendor", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPost, f.path("/vendor"), map[string]interface{}{"vendor_id": 999})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "VENDOR_NOT_FOUND", decodeResponse(t, w).Error.Code)
	})

	t.Run("delivery on time and in full", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, fmt.Sprintf("/crm/assignments/%d/delivery", assignment.ID), map[string]interface{}{
			"actual_delivery_date": "2026-10-19",
			"dispatch_date":        "2026-10-18",
			"is_in_full":           true,
			"quality_rating":       5,
		})
		require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

		var data struct {
			Assignment     models.VendorAssignment `json:"assignment"`
			DeliveryStatus string                  `json:"delivery_status"`
		}
		decodeData(t, w, &data)
		assert.True(t, data.Assignment.IsOnTime)
		assert.True(t, data.Assignment.IsInFull)
		assert.Equal(t, models.DeliveryOTIF, data.DeliveryStatus)
	})

	t.Run("order detail shows the assignment", func(t *testing.T) {
		w := performJSON(f.router, http.MethodGet, f.path(""), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var data struct {
			Order            models.Order    `json:"order"`
			DeliveryStatus   string          `json:"delivery_status"`
			AvailableVendors []models.Vendor `json:"available_vendors"`
		}
		decodeData(t, w, &data)
		require.Len(t, data.AvailableVendors, 1)
		assert.Equal(t, f.vendor.ID, data.AvailableVendors[0].ID)
		require.NotNil(t, data.Order.VendorAssignment)
		assert.Equal(t, "Precision Cutters", data.Order.VendorAssignment.Vendor.CompanyName)
		assert.Equal(t, models.DeliveryOTIF, data.DeliveryStatus)
		assert.Len(t, data.Order.Updates, 2, "assignment note and delivery update")
	})

	t.Run("quality rating out of range", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, fmt.Sprintf("/crm/assignments/%d/delivery", assignment.ID), map[string]interface{}{"quality_rating": 9})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_RATING", decodeResponse(t, w).Error.Code)
	})

	t.Run("unknown assignment", func(t *testing.T) {
		w := performJSON(f.router, http.MethodPut, "/crm/assignments/999/delivery", map[string]interface{}{"is_in_full": true})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "ASSIGNMENT_NOT_FOUND", decodeResponse(t, w).Error.Code)
	})
}

func TestListOrdersAndDashboard(t *testing.T) {
	f := setupCRM(t)
	submitOrder(t, orderRouter(""), smallOrderBody("second@example.com"))

	w := performJSON(f.router, http.MethodPut, f.path("/status"), map[string]string{"status": "in_production"})
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("filters by status", func(t *testing.T) {
		w := performJSON(f.router, http.MethodGet, "/crm/orders?status=in_production", nil)
		require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

		var data struct {
			Orders     []models.Order      `json:"orders"`
			Pagination services.Pagination `json:"pagination"`
		}
		decodeData(t, w, &data)
		require.Len(t, data.Orders, 1)
		assert.Equal(t, f.order.OrderNumber, data.Orders[0].OrderNumber)
		assert.Equal(t, int64(1), data.Pagination.Total)
	})

	t.Run("searches contact email with paging", func(t *testing.T) {
		w := performJSON(f.router, http.MethodGet, "/crm/orders?search=SECOND@&page=1&page_size=5", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var data struct {
			Orders     []models.Order      `json:"orders"`
			Pagination services.Pagination `json:"pagination"`
		}
		decodeData(t, w, &data)
		require.Len(t, data.Orders, 1)
		assert.Equal(t, 5, data.Pagination.PageSize)
	})

	t.Run("rejects bad filters", func(t *testing.T) {
		w := performJSON(f.router, http.MethodGet, "/crm/orders?status=lost", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = performJSON(f.router, http.MethodGet, "/crm/orders?from=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_DATE", decodeResponse(t, w).Error.Code)
	})

	t.Run("dashboard", func(t *testing.T) {
		w := performJSON(f.router, http.MethodGet, "/crm/dashboard", nil)
		require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())

		var dashboard services.Dashboard
		decodeData(t, w, &dashboard)
		assert.Equal(t, int64(2), dashboard.TotalOrders)
		assert.Equal(t, int64(1), dashboard.PendingOrders)
		assert.Equal(t, int64(1), dashboard.InProductionOrders)
		assert.Len(t, dashboard.RecentOrders, 2)
		require.Len(t, dashboard.RecentUpdates, 1)
		assert.Equal(t, models.UpdateStatusChange, dashboard.RecentUpdates[0].UpdateType)

		fields := rawJSON(t, dashboard)
		assert.Contains(t, fields, "status_counts")
	})
}
