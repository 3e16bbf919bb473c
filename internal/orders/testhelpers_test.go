package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tokosaku/backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
	))
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func seedTestProduct(t *testing.T, db *gorm.DB, stock int) *models.Product {
	t.Helper()
	product := &models.Product{Name: "widget", Price: 25000, Stock: stock, IsActive: true}
	require.NoError(t, db.Create(product).Error)
	return product
}

func seedTestOrder(t *testing.T, db *gorm.DB, product *models.Product, qty int) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:   "ORDER-" + uuid.NewString(),
		CustomerID:    uuid.New(),
		TotalAmount:   product.Price * int64(qty),
		CustomerName:  "Budi",
		CustomerEmail: "budi@example.com",
		CustomerPhone: "+628123456789",
		Items: []models.OrderItem{
			{ProductID: product.ID, Qty: qty, UnitPrice: product.Price},
		},
	}
	require.NoError(t, db.Create(order).Error)
	return order
}
