package services

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/carrigar/order-crm-api/models"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var analyticsNow = time.Date(2026, 10, 14, 16, 45, 0, 0, time.UTC)

func newTestAnalytics(db *gorm.DB, cache ReportCache) *AnalyticsService {
	s := NewAnalyticsService(db, cache, time.Minute)
	s.Now = fixedClock(analyticsNow)
	return s
}

func setCreatedAt(t *testing.T, db *gorm.DB, order *models.Order, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).UpdateColumn("created_at", at).Error)
}

func setOrderState(t *testing.T, db *gorm.DB, order *models.Order, status models.OrderStatus, expected, actual *time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).UpdateColumns(map[string]interface{}{
		"status":                   status,
		"expected_completion_date": expected,
		"actual_completion_date":   actual,
	}).Error)
}

func TestResolveWindow(t *testing.T) {
	s := newTestAnalytics(nil, nil)

	t.Run("defaults to thirty days ending today", func(t *testing.T) {
		w, err := s.ResolveWindow(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "2026-09-15", w.Start.Format("2006-01-02"))
		assert.Equal(t, "2026-10-14", w.End.Format("2006-01-02"))
		assert.Equal(t, DefaultWindowDays, w.Days())
	})

	t.Run("explicit range", func(t *testing.T) {
		start, end := day(2026, 1, 1), day(2026, 1, 31)
		w, err := s.ResolveWindow(&start, &end)
		require.NoError(t, err)
		assert.Equal(t, 31, w.Days())
	})

	t.Run("single bound extends by the default length", func(t *testing.T) {
		start := day(2026, 3, 1)
		w, err := s.ResolveWindow(&start, nil)
		require.NoError(t, err)
		assert.Equal(t, "2026-03-30", w.End.Format("2006-01-02"))

		end := day(2026, 3, 30)
		w, err = s.ResolveWindow(nil, &end)
		require.NoError(t, err)
		assert.Equal(t, "2026-03-01", w.Start.Format("2006-01-02"))
	})

	t.Run("single day", func(t *testing.T) {
		d := day(2026, 5, 5)
		w, err := s.ResolveWindow(&d, &d)
		require.NoError(t, err)
		assert.Equal(t, 1, w.Days())
	})

	t.Run("rejects inverted and oversized ranges", func(t *testing.T) {
		start, end := day(2026, 2, 1), day(2026, 1, 1)
		_, err := s.ResolveWindow(&start, &end)
		requireKind(t, err, KindValidation, "INVALID_DATE_RANGE")

		start, end = day(2024, 1, 1), day(2026, 1, 1)
		_, err = s.ResolveWindow(&start, &end)
		requireKind(t, err, KindValidation, "INVALID_DATE_RANGE")
	})
}

func TestAnalyticsReport(t *testing.T) {
	db := setupServiceTestDB(t)
	orders := newTestOrderService(db)
	vendors := NewVendorService(db, 3)
	pm := createPM(t, db, "auth0|pm", "EMP100", true)
	heavy := createCustomer(t, db, "auth0|heavy", "Heavy Buyer", "heavy@example.com")
	light := createCustomer(t, db, "auth0|light", "Light Buyer", "light@example.com")

	ownedOrder := func(owner models.User, service models.ServiceType) *models.Order {
		o, err := orders.CreateOrder(testCtx, NewOrder{
			OwnerAuth0ID: owner.Auth0ID,
			OrderType:    models.OrderTypeSmall,
			Items:        []NewOrderItem{{ServiceType: service}},
		})
		require.NoError(t, err)
		return o
	}

	a := ownedOrder(heavy, models.ServiceSheetLaser)
	b := ownedOrder(heavy, models.ServiceSheetLaser)
	c := ownedOrder(heavy, models.ServiceCNCMachining)
	d := ownedOrder(light, models.ServiceTubeLaser)
	anon := createSmallOrder(t, orders, "anon@example.com")
	old := createSmallOrder(t, orders, "old@example.com")

	setCreatedAt(t, db, a, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	setCreatedAt(t, db, b, time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC))
	setCreatedAt(t, db, c, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	setCreatedAt(t, db, d, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC))
	setCreatedAt(t, db, anon, time.Date(2026, 9, 20, 10, 0, 0, 0, time.UTC))
	setCreatedAt(t, db, old, time.Date(2026, 9, 14, 23, 0, 0, 0, time.UTC))

	// Two completed with dates: one on time, one late. One completed without dates.
	setOrderState(t, db, a, models.StatusCompleted, models.DatePtr(day(2026, 10, 10)), models.DatePtr(day(2026, 10, 10)))
	setOrderState(t, db, b, models.StatusCompleted, models.DatePtr(day(2026, 10, 10)), models.DatePtr(day(2026, 10, 12)))
	setOrderState(t, db, c, models.StatusCompleted, nil, nil)
	setOrderState(t, db, d, models.StatusInProduction, nil, nil)

	vendor := createVendor(t, vendors, "Alpha")
	require.NoError(t, db.Create(&models.VendorAssignment{
		OrderID: a.ID, VendorID: vendor.ID, AssignedByID: pm.ID, IsOnTime: true, IsInFull: true,
	}).Error)
	require.NoError(t, db.Create(&models.VendorAssignment{
		OrderID: d.ID, VendorID: vendor.ID, AssignedByID: pm.ID,
	}).Error)
	inactive := vendorInput("Dormant")
	inactive.Status = models.VendorInactive
	_, err := vendors.CreateVendor(testCtx, inactive, nil)
	require.NoError(t, err)

	s := newTestAnalytics(db, nil)
	report, err := s.Report(testCtx, DefaultWindow(analyticsNow))
	require.NoError(t, err)

	t.Run("window bounds", func(t *testing.T) {
		assert.Equal(t, "2026-09-15", report.StartDate)
		assert.Equal(t, "2026-10-14", report.EndDate)
	})

	t.Run("status histogram covers every status", func(t *testing.T) {
		require.Len(t, report.StatusData, len(models.OrderStatuses))
		counts := map[models.OrderStatus]int64{}
		for _, sc := range report.StatusData {
			counts[sc.Status] = sc.Count
		}
		assert.Equal(t, int64(3), counts[models.StatusCompleted])
		assert.Equal(t, int64(1), counts[models.StatusInProduction])
		assert.Equal(t, int64(2), counts[models.StatusPending])
		assert.Equal(t, int64(0), counts[models.StatusCancelled])
		assert.Equal(t, "Pending", report.StatusData[0].Label)
	})

	t.Run("service histogram covers every service", func(t *testing.T) {
		require.Len(t, report.ServiceData, len(models.ServiceTypes))
		counts := map[models.ServiceType]int64{}
		for _, sc := range report.ServiceData {
			counts[sc.Service] = sc.Count
		}
		assert.Equal(t, int64(4), counts[models.ServiceSheetLaser], "includes orders outside the window")
		assert.Equal(t, int64(1), counts[models.ServiceCNCMachining])
		assert.Equal(t, int64(0), counts[models.Service3DPrinting])
	})

	t.Run("timeline is zero-filled and inclusive", func(t *testing.T) {
		require.Len(t, report.Timeline, 30)
		assert.Equal(t, "2026-09-15", report.Timeline[0].Date)
		assert.Equal(t, int64(1), report.Timeline[0].Count)
		assert.Equal(t, "2026-10-14", report.Timeline[29].Date)
		assert.Equal(t, int64(2), report.Timeline[29].Count)

		var total int64
		for _, dc := range report.Timeline {
			total += dc.Count
		}
		assert.Equal(t, int64(5), total, "order from the day before the window is excluded")
	})

	t.Run("top customers", func(t *testing.T) {
		require.Len(t, report.TopCustomers, 2)
		assert.Equal(t, "Heavy Buyer", report.TopCustomers[0].Name)
		assert.Equal(t, int64(3), report.TopCustomers[0].OrderCount)
		assert.Equal(t, "light@example.com", report.TopCustomers[1].Email)
	})

	t.Run("overall OTIF uses completed orders with both dates", func(t *testing.T) {
		assert.Equal(t, int64(2), report.OTIFEligible)
		assert.Equal(t, 50.0, report.OverallOTIF)
	})

	t.Run("vendor performance lists active vendors", func(t *testing.T) {
		require.Len(t, report.VendorPerformance, 1)
		vp := report.VendorPerformance[0]
		assert.Equal(t, "VEN001", vp.VendorCode)
		assert.Equal(t, int64(2), vp.TotalOrders)
		assert.Equal(t, int64(1), vp.CompletedOrders)
		assert.Equal(t, 100.0, vp.OTIF)
	})
}

func TestAnalyticsReportEmpty(t *testing.T) {
	db := setupServiceTestDB(t)
	s := newTestAnalytics(db, nil)

	report, err := s.Report(testCtx, DefaultWindow(analyticsNow))
	require.NoError(t, err)
	assert.Len(t, report.StatusData, 7)
	assert.Len(t, report.ServiceData, 5)
	assert.Len(t, report.Timeline, 30)
	assert.Empty(t, report.TopCustomers)
	assert.Zero(t, report.OverallOTIF)
	assert.Empty(t, report.VendorPerformance)
}

func TestAnalyticsReportCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db := setupServiceTestDB(t)
	orders := newTestOrderService(db)
	s := newTestAnalytics(db, NewRedisReportCache(client))
	w := DefaultWindow(analyticsNow)

	o := createSmallOrder(t, orders, "a@example.com")
	setCreatedAt(t, db, o, analyticsNow)

	first, err := s.Report(testCtx, w)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Timeline[29].Count)
	assert.True(t, mr.Exists("crm:analytics:report:2026-09-15:2026-10-14"))

	// A new order is not visible until the cached report expires
	o2 := createSmallOrder(t, orders, "b@example.com")
	setCreatedAt(t, db, o2, analyticsNow)

	cached, err := s.Report(testCtx, w)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.Timeline[29].Count)

	mr.FastForward(2 * time.Minute)
	fresh, err := s.Report(testCtx, w)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.Timeline[29].Count)
}

func TestAnalyticsReportCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	db := setupServiceTestDB(t)
	s := newTestAnalytics(db, NewRedisReportCache(client))

	report, err := s.Report(testCtx, DefaultWindow(analyticsNow))
	require.NoError(t, err, "cache failures must not fail the report")
	assert.Len(t, report.Timeline, 30)
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(testCtx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	_, err = ConnectRedis(testCtx, "not a url")
	assert.Error(t, err)
}

func TestDashboard(t *testing.T) {
	db := setupServiceTestDB(t)
	orders := newTestOrderService(db)
	pm := createPM(t, db, "auth0|pm", "EMP100", true)
	other := createPM(t, db, "auth0|pm2", "EMP200", true)

	for i := 0; i < 12; i++ {
		createSmallOrder(t, orders, "c@example.com")
	}
	recent, _, err := orders.ListOrders(testCtx, OrderFilter{PageSize: 3})
	require.NoError(t, err)
	_, _, err = orders.ChangeStatus(testCtx, recent[0].OrderNumber, pm, StatusChange{Status: models.StatusReviewing})
	require.NoError(t, err)
	_, _, err = orders.ChangeStatus(testCtx, recent[1].OrderNumber, pm, StatusChange{Status: models.StatusInProduction})
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err = orders.AddUpdate(testCtx, recent[2].OrderNumber, pm, NewUpdate{Title: "note"})
		require.NoError(t, err)
	}
	_, err = orders.AddUpdate(testCtx, recent[2].OrderNumber, other, NewUpdate{Title: "not mine"})
	require.NoError(t, err)

	s := newTestAnalytics(db, nil)
	d, err := s.Dashboard(testCtx, pm)
	require.NoError(t, err)

	assert.Equal(t, int64(12), d.TotalOrders)
	assert.Equal(t, int64(10), d.PendingOrders)
	assert.Equal(t, int64(1), d.InReviewOrders)
	assert.Equal(t, int64(1), d.InProductionOrders)
	assert.Len(t, d.StatusCounts, 7)
	assert.Len(t, d.RecentOrders, 10)
	require.Len(t, d.RecentUpdates, 5)
	for _, u := range d.RecentUpdates {
		assert.Equal(t, pm.ID, u.ProjectManagerID)
		require.NotNil(t, u.Order)
	}

	_, err = s.Dashboard(testCtx, nil)
	requireKind(t, err, KindAuthorization, "FORBIDDEN")
}
