package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokosaku/backend/pkg/db/models"
)

func TestRepositoryFindByOrderNumber(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 2)

	loaded, err := repo.FindByOrderNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, loaded.ID)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, product.ID, loaded.Items[0].ProductID)
	assert.Equal(t, 2, loaded.Items[0].Qty)
}

func TestRepositoryClaimStockUpdate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 1)

	claimed, err := repo.ClaimStockUpdate(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Only the first claimant wins; every later attempt observes false.
	for i := 0; i < 3; i++ {
		claimed, err = repo.ClaimStockUpdate(ctx, order.OrderNumber)
		require.NoError(t, err)
		assert.False(t, claimed)
	}

	loaded, err := repo.FindByOrderNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.True(t, loaded.StockUpdated)
}

func TestRepositoryClaimStockUpdateUnknownOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)

	claimed, err := repo.ClaimStockUpdate(context.Background(), "ORDER-missing")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRepositoryDelete(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 1)

	require.NoError(t, repo.Delete(ctx, order.ID))

	var orderCount, itemCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&itemCount).Error)
	assert.Zero(t, orderCount)
	assert.Zero(t, itemCount)
}
