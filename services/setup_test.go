package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/carrigar/order-crm-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testCtx = context.Background()

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...), "Failed to migrate test database")
	return db
}

func createCustomer(t *testing.T, db *gorm.DB, auth0ID, name, email string) models.User {
	t.Helper()

	user := models.User{Auth0ID: auth0ID, Name: name, Email: email, Role: models.RoleCustomer}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createPM(t *testing.T, db *gorm.DB, auth0ID, employeeID string, active bool) *models.ProjectManager {
	t.Helper()

	user := models.User{
		Auth0ID: auth0ID,
		Name:    "PM " + employeeID,
		Email:   employeeID + "@carrigar.example",
		Role:    models.RoleStaff,
	}
	require.NoError(t, db.Create(&user).Error)

	pm := models.ProjectManager{UserID: user.ID, EmployeeID: employeeID, Department: "Operations", IsActive: active}
	require.NoError(t, db.Create(&pm).Error)
	pm.User = user
	return &pm
}

// seqIDs hands out preset order identifiers, then numbered fallbacks
type seqIDs struct {
	mu       sync.Mutex
	orderIDs []string
	next     int
	pn       int
}

func (g *seqIDs) OrderID(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.orderIDs) > 0 {
		id := g.orderIDs[0]
		g.orderIDs = g.orderIDs[1:]
		return id
	}
	g.next++
	return fmt.Sprintf("ORD%s%08X", now.Format("20060102"), g.next)
}

func (g *seqIDs) ProjectNumber() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pn++
	return fmt.Sprintf("CARR%06d", g.pn)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int {
	return &v
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func newTestOrderService(db *gorm.DB) *OrderService {
	s := NewOrderService(db, nil)
	s.IDs = &seqIDs{}
	s.Now = fixedClock(time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC))
	return s
}

func createSmallOrder(t *testing.T, s *OrderService, email string) *models.Order {
	t.Helper()

	order, err := s.CreateOrder(testCtx, NewOrder{
		OrderType:    models.OrderTypeSmall,
		ContactName:  "Walk In",
		ContactEmail: email,
		Items: []NewOrderItem{
			{ServiceType: models.ServiceSheetLaser, Description: "Brackets", Quantity: intPtr(4)},
		},
	})
	require.NoError(t, err)
	return order
}

func requireKind(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()

	require.Error(t, err)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	require.Equal(t, kind, se.Kind, "unexpected kind for %v", err)
	if code != "" {
		require.Equal(t, code, se.Code)
	}
}

// beforeCreate runs fn ahead of every insert into table, on the same connection, to stand
// in for a concurrent writer. fn receives the row about to be inserted. Inserts made by fn
// do not re-trigger it.
func beforeCreate(t *testing.T, db *gorm.DB, table string, fn func(tx *gorm.DB, pending interface{})) {
	t.Helper()

	name := "test:before_create_" + table
	inside := false
	err := db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if inside || tx.Statement.Schema == nil || tx.Statement.Schema.Table != table {
			return
		}
		inside = true
		defer func() { inside = false }()
		fn(tx.Session(&gorm.Session{NewDB: true}), tx.Statement.Dest)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Callback().Create().Remove(name) })
}
