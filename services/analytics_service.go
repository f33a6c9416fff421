package services

import (
	"context"
	"fmt"
	"time"

	"github.com/carrigar/order-crm-api/logging"
	"github.com/carrigar/order-crm-api/models"
	"gorm.io/gorm"
)

const (
	// DefaultWindowDays is the length of the default analytics window, ending today
	DefaultWindowDays = 30
	// MaxWindowDays bounds caller-supplied windows
	MaxWindowDays = 366

	topCustomerLimit     = 10
	vendorRankingLimit   = 10
	dashboardOrderLimit  = 10
	dashboardUpdateLimit = 5
)

// Window is an inclusive range of calendar dates
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow returns the DefaultWindowDays calendar days ending on now's
// date. Today is the last day of the window, so orders placed today count;
// a window of the 30 days before today would leave them out.
func DefaultWindow(now time.Time) Window {
	end := models.DateOf(now.UTC())
	return Window{Start: end.AddDate(0, 0, -(DefaultWindowDays - 1)), End: end}
}

// Days returns the number of calendar days in the window
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// StatusCount is one bar of the status histogram
type StatusCount struct {
	Status models.OrderStatus `json:"status"`
	Label  string             `json:"label"`
	Count  int64              `json:"count"`
}

// ServiceCount is one bar of the service histogram
type ServiceCount struct {
	Service models.ServiceType `json:"service"`
	Label   string             `json:"label"`
	Count   int64              `json:"count"`
}

// DayCount is one point of the daily order timeline
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// CustomerCount ranks an account by number of orders
type CustomerCount struct {
	UserID     uint   `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	OrderCount int64  `json:"order_count"`
}

// VendorPerformance is a vendor's delivery record for the ranking table
type VendorPerformance struct {
	VendorID        uint    `json:"vendor_id"`
	VendorCode      string  `json:"vendor_code"`
	Vendor          string  `json:"vendor"`
	OTIF            float64 `json:"otif"`
	TotalOrders     int64   `json:"total_orders"`
	CompletedOrders int64   `json:"completed_orders"`
}

// Report is the analytics roll-up. Status and service histograms cover all orders;
// only the timeline is restricted to the window.
type Report struct {
	StartDate         string              `json:"start_date"`
	EndDate           string              `json:"end_date"`
	StatusData        []StatusCount       `json:"status_data"`
	ServiceData       []ServiceCount      `json:"service_data"`
	Timeline          []DayCount          `json:"orders_timeline"`
	TopCustomers      []CustomerCount     `json:"top_customers"`
	OverallOTIF       float64             `json:"overall_otif"`
	OTIFEligible      int64               `json:"otif_eligible_orders"`
	VendorPerformance []VendorPerformance `json:"vendor_performance"`
	GeneratedAt       time.Time           `json:"generated_at"`
}

// AnalyticsService computes read-side reports over orders and vendor assignments.
// Reads are not synchronised with writers, so reports may trail in-flight changes.
type AnalyticsService struct {
	db    *gorm.DB
	cache ReportCache
	ttl   time.Duration

	// Now is replaceable for tests
	Now func() time.Time
}

// NewAnalyticsService creates an analytics service; cache may be nil
func NewAnalyticsService(db *gorm.DB, cache ReportCache, ttl time.Duration) *AnalyticsService {
	return &AnalyticsService{db: db, cache: cache, ttl: ttl, Now: time.Now}
}

// ResolveWindow fills missing bounds and validates the range
func (s *AnalyticsService) ResolveWindow(start, end *time.Time) (Window, error) {
	w := DefaultWindow(s.Now())
	switch {
	case start != nil && end != nil:
		w = Window{Start: models.DateOf(*start), End: models.DateOf(*end)}
	case start != nil:
		w = Window{Start: models.DateOf(*start), End: models.DateOf(*start).AddDate(0, 0, DefaultWindowDays-1)}
	case end != nil:
		w = Window{Start: models.DateOf(*end).AddDate(0, 0, -(DefaultWindowDays - 1)), End: models.DateOf(*end)}
	}

	if w.End.Before(w.Start) {
		return Window{}, Validation("INVALID_DATE_RANGE", "End date must not be before start date")
	}
	if w.Days() > MaxWindowDays {
		return Window{}, Validation("INVALID_DATE_RANGE", "Date range cannot exceed %d days", MaxWindowDays)
	}
	return w, nil
}

// Report returns the analytics report for w, from cache when available
func (s *AnalyticsService) Report(ctx context.Context, w Window) (*Report, error) {
	key := fmt.Sprintf("report:%s:%s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logging.LogKV("warn", "analytics cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		} else if ok {
			return cached, nil
		}
	}

	report, err := s.buildReport(ctx, w)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.ttl); err != nil {
			logging.LogKV("warn", "analytics cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return report, nil
}

func (s *AnalyticsService) buildReport(ctx context.Context, w Window) (*Report, error) {
	db := s.db.WithContext(ctx)
	report := &Report{
		StartDate:   w.Start.Format("2006-01-02"),
		EndDate:     w.End.Format("2006-01-02"),
		GeneratedAt: s.Now().UTC(),
	}

	var err error
	if report.StatusData, err = statusCounts(db); err != nil {
		return nil, err
	}
	if report.ServiceData, err = serviceCounts(db); err != nil {
		return nil, err
	}
	if report.Timeline, err = timeline(db, w); err != nil {
		return nil, err
	}
	if report.TopCustomers, err = topCustomers(db); err != nil {
		return nil, err
	}
	if report.OverallOTIF, report.OTIFEligible, err = overallOTIF(db); err != nil {
		return nil, err
	}
	if report.VendorPerformance, err = vendorPerformance(db); err != nil {
		return nil, err
	}
	return report, nil
}

// statusCounts counts all orders per status, zero-filled in pipeline order
func statusCounts(db *gorm.DB) ([]StatusCount, error) {
	type row struct {
		Status models.OrderStatus
		Count  int64
	}
	var rows []row
	if err := db.Model(&models.Order{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, Internal("Failed to count orders by status", err)
	}

	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	out := make([]StatusCount, len(models.OrderStatuses))
	for i, status := range models.OrderStatuses {
		out[i] = StatusCount{Status: status, Label: status.Label(), Count: counts[status]}
	}
	return out, nil
}

// serviceCounts counts all order items per service type, zero-filled
func serviceCounts(db *gorm.DB) ([]ServiceCount, error) {
	type row struct {
		ServiceType models.ServiceType
		Count       int64
	}
	var rows []row
	if err := db.Model(&models.OrderItem{}).Select("service_type, COUNT(*) AS count").Group("service_type").Scan(&rows).Error; err != nil {
		return nil, Internal("Failed to count items by service", err)
	}

	counts := make(map[models.ServiceType]int64, len(rows))
	for _, r := range rows {
		counts[r.ServiceType] = r.Count
	}

	out := make([]ServiceCount, len(models.ServiceTypes))
	for i, service := range models.ServiceTypes {
		out[i] = ServiceCount{Service: service, Label: service.Label(), Count: counts[service]}
	}
	return out, nil
}

// timeline counts orders created on each day of the window (UTC), zero-filled
func timeline(db *gorm.DB, w Window) ([]DayCount, error) {
	var created []time.Time
	err := db.Model(&models.Order{}).
		Where("created_at >= ? AND created_at < ?", w.Start, w.End.AddDate(0, 0, 1)).
		Pluck("created_at", &created).Error
	if err != nil {
		return nil, Internal("Failed to load order timeline", err)
	}

	perDay := make(map[string]int64)
	for _, t := range created {
		perDay[models.DateOf(t.UTC()).Format("2006-01-02")]++
	}

	days := w.Days()
	out := make([]DayCount, days)
	for i := 0; i < days; i++ {
		day := w.Start.AddDate(0, 0, i).Format("2006-01-02")
		out[i] = DayCount{Date: day, Count: perDay[day]}
	}
	return out, nil
}

// topCustomers ranks accounts by order count; ties keep the older account first
func topCustomers(db *gorm.DB) ([]CustomerCount, error) {
	var rows []CustomerCount
	err := db.Table("orders").
		Select("users.id AS user_id, users.name AS name, users.email AS email, COUNT(orders.id) AS order_count").
		Joins("JOIN users ON users.id = orders.user_id").
		Where("orders.user_id IS NOT NULL").
		Group("users.id, users.name, users.email").
		Order("order_count DESC").Order("users.id ASC").
		Limit(topCustomerLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, Internal("Failed to rank customers", err)
	}
	return rows, nil
}

// overallOTIF is the share of completed orders with both completion dates where the
// actual date did not pass the expected one
func overallOTIF(db *gorm.DB) (float64, int64, error) {
	var orders []models.Order
	err := db.Select("id", "expected_completion_date", "actual_completion_date").
		Where("status = ?", models.StatusCompleted).
		Where("expected_completion_date IS NOT NULL AND actual_completion_date IS NOT NULL").
		Find(&orders).Error
	if err != nil {
		return 0, 0, Internal("Failed to load completed orders", err)
	}

	var onTime int64
	for _, o := range orders {
		if !models.DateOf(*o.ActualCompletionDate).After(models.DateOf(*o.ExpectedCompletionDate)) {
			onTime++
		}
	}
	eligible := int64(len(orders))
	return models.Percentage(onTime, eligible), eligible, nil
}

// vendorPerformance annotates the most recently added active vendors with their OTIF record
func vendorPerformance(db *gorm.DB) ([]VendorPerformance, error) {
	var vendors []models.Vendor
	err := db.Where("status = ?", models.VendorActive).
		Preload("Assignments.Order").
		Order("created_at DESC").Order("id DESC").
		Limit(vendorRankingLimit).
		Find(&vendors).Error
	if err != nil {
		return nil, Internal("Failed to load vendor performance", err)
	}

	out := make([]VendorPerformance, len(vendors))
	for i, v := range vendors {
		m := Metrics(v.Assignments)
		out[i] = VendorPerformance{
			VendorID:        v.ID,
			VendorCode:      v.VendorCode,
			Vendor:          v.CompanyName,
			OTIF:            m.OTIFPercentage,
			TotalOrders:     m.TotalAssignments,
			CompletedOrders: m.CompletedAssignments,
		}
	}
	return out, nil
}

// Dashboard is the CRM landing summary
type Dashboard struct {
	TotalOrders        int64                `json:"total_orders"`
	PendingOrders      int64                `json:"pending_orders"`
	InReviewOrders     int64                `json:"in_review_orders"`
	InProductionOrders int64                `json:"in_production_orders"`
	StatusCounts       []StatusCount        `json:"status_counts"`
	RecentOrders       []models.Order       `json:"recent_orders"`
	RecentUpdates      []models.OrderUpdate `json:"recent_updates"`
}

// Dashboard summarises order counts, the newest orders and the actor's latest updates
func (s *AnalyticsService) Dashboard(ctx context.Context, actor *models.ProjectManager) (*Dashboard, error) {
	if actor == nil {
		return nil, Forbidden("FORBIDDEN", "Project manager access required")
	}
	db := s.db.WithContext(ctx)

	counts, err := statusCounts(db)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{StatusCounts: counts}
	for _, c := range counts {
		d.TotalOrders += c.Count
		switch c.Status {
		case models.StatusPending:
			d.PendingOrders = c.Count
		case models.StatusReviewing:
			d.InReviewOrders = c.Count
		case models.StatusInProduction:
			d.InProductionOrders = c.Count
		}
	}

	err = db.Preload("User").Preload("Items").Preload("Files").
		Order("created_at DESC").Order("id DESC").
		Limit(dashboardOrderLimit).
		Find(&d.RecentOrders).Error
	if err != nil {
		return nil, Internal("Failed to load recent orders", err)
	}

	err = db.Scopes(models.NewestFirst).
		Preload("Order").
		Where("project_manager_id = ?", actor.ID).
		Limit(dashboardUpdateLimit).
		Find(&d.RecentUpdates).Error
	if err != nil {
		return nil, Internal("Failed to load recent updates", err)
	}
	return d, nil
}
