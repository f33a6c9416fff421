package main

import (
	"context"
	"log"
	"net/http"

	"github.com/carrigar/order-crm-api/config"
	"github.com/carrigar/order-crm-api/controllers"
	"github.com/carrigar/order-crm-api/logging"
	"github.com/carrigar/order-crm-api/middleware"
	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	log.Println("Starting Carrigar Order CRM API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := config.ConnectDatabase(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	store, err := services.NewFileStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}
	log.Printf("File storage: %s", cfg.FileStorage)

	// The analytics cache is optional; without it reports are computed per request
	var cache services.ReportCache
	if cfg.RedisURL != "" {
		client, err := services.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Printf("Analytics cache disabled: %v", err)
		} else {
			defer client.Close()
			cache = services.NewRedisReportCache(client)
			log.Printf("Analytics cache enabled (ttl %s)", cfg.AnalyticsCacheTTL)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, db, store, cache)

	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
		corsCfg.AllowCredentials = true
	}
	return corsCfg
}

// setupRouter builds the full API router around handlers created at startup
func setupRouter(cfg *config.Config, db *gorm.DB, store services.FileStore, cache services.ReportCache) *gin.Engine {
	api := controllers.NewAPI(db, cfg, store, cache)

	router := gin.New()
	router.Use(gin.Recovery(), logging.JSONLogger(), cors.New(corsConfig(cfg)))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus(db))

		// Orders can be submitted and tracked without an account
		orders := v1.Group("/orders")
		orders.Use(middleware.OptionalToken(cfg))
		{
			orders.POST("", api.CreateOrder)
			orders.GET("/:order_id", api.TrackOrder)
			orders.POST("/:order_id/files", api.UploadOrderFile)
		}

		v1.GET("/uploads/*key", api.GetUploadedFile)

		users := v1.Group("/users")
		users.Use(middleware.EnsureValidToken(cfg))
		{
			users.POST("", api.CreateUser)
			users.GET("/me", api.GetMyProfile)
			users.PUT("/me", api.UpdateMyProfile)
		}

		crm := v1.Group("/crm")
		crm.Use(middleware.EnsureValidToken(cfg))
		if cfg.CRMScope != "" {
			crm.Use(middleware.RequireScope(cfg.CRMScope))
		}
		crm.Use(middleware.RequireProjectManager(db))
		registerCRMRoutes(crm, api)
	}

	return router
}

func registerCRMRoutes(crm *gin.RouterGroup, api *controllers.API) {
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

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Carrigar Order CRM API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Database is not configured",
				},
			})
			return
		}

		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to get database instance",
				},
			})
			return
		}

		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_CONNECTION_ERROR",
					"message": "Database connection failed",
				},
			})
			return
		}

		// Migrator covers both the postgres and sqlite catalogs
		tables, err := db.Migrator().GetTables()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_QUERY_ERROR",
					"message": "Failed to query tables",
				},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
			"tables":  tables,
		})
	}
}
