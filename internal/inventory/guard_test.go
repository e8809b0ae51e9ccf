package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"farmops-backend/internal/apperr"
	"farmops-backend/internal/database"
	"farmops-backend/internal/inventory"
	"farmops-backend/internal/models"
	"farmops-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

func stockOf(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.StockQuantity
}

func TestCheckStock(t *testing.T) {
	db := testutil.NewDB(t)
	farm := testutil.CreateFarm(t, db, "Dubréka")
	eggs := testutil.CreateProduct(t, db, farm.ID, "Egg tray", 10, 5, true)
	hidden := testutil.CreateProduct(t, db, farm.ID, "Broiler", 40, 20, false)
	guard := inventory.NewGuard(nil)
	ctx := context.Background()

	st, err := guard.CheckStock(ctx, db, eggs.ID, 5)
	require.NoError(t, err)
	assert.True(t, st.Sufficient)
	assert.Equal(t, 10.0, st.UnitPrice)
	assert.Equal(t, "Egg tray", st.Name)
	assert.Equal(t, farm.ID, st.FarmID)

	st, err = guard.CheckStock(ctx, db, eggs.ID, 6)
	require.NoError(t, err)
	assert.False(t, st.Sufficient)
	assert.Equal(t, 5, st.CurrentStock)

	st, err = guard.CheckStock(ctx, db, hidden.ID, 1)
	require.NoError(t, err)
	assert.False(t, st.IsAvailable)
	assert.False(t, st.Sufficient, "unavailable product is never sufficient")

	_, err = guard.CheckStock(ctx, db, 9999, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDecrementStock(t *testing.T) {
	db := testutil.NewDB(t)
	farm := testutil.CreateFarm(t, db, "Dubréka")
	eggs := testutil.CreateProduct(t, db, farm.ID, "Egg tray", 10, 5, true)
	hidden := testutil.CreateProduct(t, db, farm.ID, "Broiler", 40, 20, false)
	guard := inventory.NewGuard(nil)
	ctx := context.Background()

	require.NoError(t, guard.DecrementStock(ctx, db, eggs.ID, 3))
	assert.Equal(t, 2, stockOf(t, db, eggs.ID))

	err := guard.DecrementStock(ctx, db, eggs.ID, 3)
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, err.Error(), `insufficient stock for product "Egg tray"`)
	assert.Equal(t, 2, stockOf(t, db, eggs.ID))

	err = guard.DecrementStock(ctx, db, hidden.ID, 1)
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, err.Error(), "not available")
	assert.Equal(t, 20, stockOf(t, db, hidden.ID))

	assert.ErrorIs(t, guard.DecrementStock(ctx, db, 9999, 1), apperr.ErrNotFound)
	assert.ErrorIs(t, guard.DecrementStock(ctx, db, eggs.ID, 0), apperr.ErrValidation)
}

func TestRestockProduct(t *testing.T) {
	db := testutil.NewDB(t)
	farm := testutil.CreateFarm(t, db, "Dubréka")
	eggs := testutil.CreateProduct(t, db, farm.ID, "Egg tray", 10, 2, true)
	guard := inventory.NewGuard(nil)
	ctx := context.Background()

	require.NoError(t, guard.RestockProduct(ctx, db, eggs.ID, 3))
	assert.Equal(t, 5, stockOf(t, db, eggs.ID))
	assert.ErrorIs(t, guard.RestockProduct(ctx, db, 9999, 1), apperr.ErrNotFound)
	assert.ErrorIs(t, guard.RestockProduct(ctx, db, eggs.ID, -1), apperr.ErrValidation)
}

// SQLite runs these transactions one at a time; the interleaved cases are
// covered by TestDecrementRefusesAfterStaleCheck and by internal/integration.
func TestConcurrentDecrementNeverOversells(t *testing.T) {
	const stock, buyers = 5, 12

	db := testutil.NewDB(t)
	farm := testutil.CreateFarm(t, db, "Dubréka")
	eggs := testutil.CreateProduct(t, db, farm.ID, "Egg tray", 10, stock, true)
	guard := inventory.NewGuard(nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := database.WithTx(context.Background(), db, func(tx *gorm.DB) error {
				return guard.DecrementStock(context.Background(), tx, eggs.ID, 1)
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, stock, successes)
	assert.Equal(t, buyers-stock, conflicts)
	assert.Zero(t, stockOf(t, db, eggs.ID))
}

func TestDecrementRefusesAfterStaleCheck(t *testing.T) {
	db := testutil.NewDB(t)
	farm := testutil.CreateFarm(t, db, "Dubréka")
	eggs := testutil.CreateProduct(t, db, farm.ID, "Egg tray", 10, 1, true)
	guard := inventory.NewGuard(nil)
	ctx := context.Background()

	// another sale takes the last tray between the check and the decrement
	testutil.OnceBeforeUpdate(t, db, "products", func(tx *gorm.DB) {
		require.NoError(t, tx.Exec("UPDATE products SET stock_quantity = 0 WHERE id = ?", eggs.ID).Error)
	})

	var decErr error
	err := database.WithTx(ctx, db, func(tx *gorm.DB) error {
		st, err := guard.CheckStock(ctx, tx, eggs.ID, 1)
		require.NoError(t, err)
		require.True(t, st.Sufficient)

		decErr = guard.DecrementStock(ctx, tx, eggs.ID, 1)
		return nil
	})
	require.NoError(t, err)

	require.ErrorIs(t, decErr, apperr.ErrConflict)
	assert.Contains(t, decErr.Error(), "requested 1, available 0")
	assert.Zero(t, stockOf(t, db, eggs.ID))
}

func TestBothChecksPassOnlyOneDecrementWins(t *testing.T) {
	db := testutil.NewDB(t)
	farm := testutil.CreateFarm(t, db, "Dubréka")
	eggs := testutil.CreateProduct(t, db, farm.ID, "Egg tray", 10, 1, true)
	guard := inventory.NewGuard(nil)
	ctx := context.Background()

	first, err := guard.CheckStock(ctx, db, eggs.ID, 1)
	require.NoError(t, err)
	second, err := guard.CheckStock(ctx, db, eggs.ID, 1)
	require.NoError(t, err)
	require.True(t, first.Sufficient)
	require.True(t, second.Sufficient)

	require.NoError(t, guard.DecrementStock(ctx, db, eggs.ID, 1))
	assert.ErrorIs(t, guard.DecrementStock(ctx, db, eggs.ID, 1), apperr.ErrConflict)
	assert.Zero(t, stockOf(t, db, eggs.ID))
}
