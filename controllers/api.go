package controllers

import (
	"github.com/carrigar/order-crm-api/config"
	"github.com/carrigar/order-crm-api/services"
	"gorm.io/gorm"
)

// API holds the services behind the HTTP handlers. It is built once at startup
// and its handler methods are registered on the router.
type API struct {
	db    *gorm.DB
	cfg   *config.Config
	store services.FileStore

	orders      *services.OrderService
	files       *services.OrderFileService
	vendors     *services.VendorService
	assignments *services.AssignmentService
	analytics   *services.AnalyticsService
	auth0       *services.Auth0Service
}

// NewAPI wires the handlers to db and store. cache may be nil to compute every report.
func NewAPI(db *gorm.DB, cfg *config.Config, store services.FileStore, cache services.ReportCache) *API {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &API{
		db:          db,
		cfg:         cfg,
		store:       store,
		orders:      services.NewOrderService(db, cfg),
		files:       services.NewOrderFileService(db, store),
		vendors:     services.NewVendorService(db, cfg.IDGenerationAttempts),
		assignments: services.NewAssignmentService(db),
		analytics:   services.NewAnalyticsService(db, cache, cfg.AnalyticsCacheTTL),
		auth0:       services.NewAuth0Service(cfg),
	}
}
