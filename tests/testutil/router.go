package testutil

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carrigar/order-crm-api/config"
	"github.com/carrigar/order-crm-api/controllers"
	"github.com/carrigar/order-crm-api/middleware"
	"github.com/carrigar/order-crm-api/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewRouter mounts the application routes on db and store with header-based mock
// authentication in place of the token middleware.
func NewRouter(db *gorm.DB, cfg *config.Config, store services.FileStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	api := controllers.NewAPI(db, cfg, store, nil)
	router := gin.New()
	router.Use(gin.Recovery(), MockAuthFromHeader())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", api.CreateOrder)
		v1.GET("/orders/:order_id", api.TrackOrder)
		v1.POST("/orders/:order_id/files", api.UploadOrderFile)
		v1.GET("/uploads/*key", api.GetUploadedFile)

		users := v1.Group("/users", RequireMockUser())
		{
			users.POST("", api.CreateUser)
			users.GET("/me", api.GetMyProfile)
			users.PUT("/me", api.UpdateMyProfile)
		}

		crm := v1.Group("/crm", RequireMockUser(), middleware.RequireProjectManager(db))
		{
			crm.GET("/dashboard", api.GetDashboard)
			crm.GET("/analytics", api.GetAnalytics)
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
		}
	}

	return router
}

// Envelope is the decoded success/error response body
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// NewJSONRequest builds a request with an optional JSON body sent as auth0ID ("" for anonymous)
func NewJSONRequest(method, url, auth0ID string, body interface{}) *http.Request {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}

	req, _ := http.NewRequest(method, url, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth0ID != "" {
		req.Header.Set(UserHeader, auth0ID)
	}
	return req
}

// NewUploadRequest builds a multipart request with one "file" part
func NewUploadRequest(url, auth0ID, filename string, content []byte) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", filename)
	_, _ = part.Write(content)
	_ = writer.Close()

	req, _ := http.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if auth0ID != "" {
		req.Header.Set(UserHeader, auth0ID)
	}
	return req
}

// Serve runs req through router
func Serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// DecodeEnvelope decodes a response body
func DecodeEnvelope(t *testing.T, body []byte) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env), "Response body: %s", string(body))
	return env
}

// DecodeData decodes the data field of a successful response into out
func DecodeData(t *testing.T, body []byte, out interface{}) {
	t.Helper()

	env := DecodeEnvelope(t, body)
	require.True(t, env.Success, "Response body: %s", string(body))
	require.NoError(t, json.Unmarshal(env.Data, out))
}
