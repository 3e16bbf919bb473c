package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tokosaku/backend/pkg/db/models"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int) *models.Product {
	t.Helper()
	product := &models.Product{Name: "test product", Price: 10000, Stock: stock, IsActive: true}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestDecrement(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 5)

	require.NoError(t, Decrement(ctx, db, product.ID, 3))

	var loaded models.Product
	require.NoError(t, db.First(&loaded, "id = ?", product.ID).Error)
	assert.Equal(t, 2, loaded.Stock)
	assert.Equal(t, 3, loaded.SoldCount)
}

func TestDecrementInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 2)

	err := Decrement(ctx, db, product.ID, 3)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var loaded models.Product
	require.NoError(t, db.First(&loaded, "id = ?", product.ID).Error)
	assert.Equal(t, 2, loaded.Stock)
	assert.Equal(t, 0, loaded.SoldCount)
}

func TestRestore(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, 1)

	require.NoError(t, Restore(ctx, db, product.ID, 4))

	var loaded models.Product
	require.NoError(t, db.First(&loaded, "id = ?", product.ID).Error)
	assert.Equal(t, 5, loaded.Stock)
}
