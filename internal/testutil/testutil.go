// Package testutil opens an isolated in-memory store with the production
// schema and seeds common fixtures.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"farmops-backend/internal/database"
	"farmops-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB returns a migrated SQLite database private to the test. A single
// connection serialises transactions the way row locks would on Postgres.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		name, dbSeq.Add(1))

	cfg := database.Config()
	cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db, zap.NewNop()))
	return db
}

func CreateFarm(t testing.TB, db *gorm.DB, name string) models.Farm {
	t.Helper()
	farm := models.Farm{Name: name, Location: "Kindia"}
	require.NoError(t, db.Create(&farm).Error)
	return farm
}

func CreateUser(t testing.TB, db *gorm.DB, farmID *uint, role models.UserRole, email string) models.User {
	t.Helper()
	user := models.User{FarmID: farmID, Name: email, Email: email, Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func CreateCustomer(t testing.TB, db *gorm.DB, farmID uint, name string) models.Customer {
	t.Helper()
	customer := models.Customer{FarmID: farmID, Name: name, Phone: "+224600000000"}
	require.NoError(t, db.Create(&customer).Error)
	return customer
}

func CreateProduct(t testing.TB, db *gorm.DB, farmID uint, name string, price float64, stock int, available bool) models.Product {
	t.Helper()
	product := models.Product{
		FarmID:        farmID,
		Name:          name,
		Unit:          "tray",
		UnitPrice:     price,
		StockQuantity: stock,
		IsAvailable:   available,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func CreateFlock(t testing.TB, db *gorm.DB, farmID uint, name string, birds int) models.Flock {
	t.Helper()
	flock := models.Flock{FarmID: farmID, Name: name, Breed: "ISA Brown", LiveBirdCount: birds}
	require.NoError(t, db.Create(&flock).Error)
	return flock
}

func Ptr[T any](v T) *T { return &v }

// OnceBeforeUpdate runs fn right before the next UPDATE on table executes.
// fn receives a handle on the same connection as the update, so whatever it
// writes is already visible when the update's WHERE clause is evaluated,
// like a competing request that committed in between.
func OnceBeforeUpdate(t testing.TB, db *gorm.DB, table string, fn func(tx *gorm.DB)) {
	t.Helper()

	name := fmt.Sprintf("testutil:before_update_%d", dbSeq.Add(1))
	var fired atomic.Bool
	err := db.Callback().Update().Before("gorm:update").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != table || !fired.CompareAndSwap(false, true) {
			return
		}
		fn(tx.Session(&gorm.Session{NewDB: true}))
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Callback().Update().Remove(name) })
}
