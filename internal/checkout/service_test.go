package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tokosaku/backend/internal/cart"
	"github.com/tokosaku/backend/internal/catalog"
	"github.com/tokosaku/backend/internal/gateway"
	"github.com/tokosaku/backend/internal/orders"
	"github.com/tokosaku/backend/pkg/config"
	"github.com/tokosaku/backend/pkg/db/models"
	"github.com/tokosaku/backend/pkg/enums"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Voucher{},
		&models.CartItem{},
	))
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubSessionCreator struct {
	session *gateway.Session
	err     error
	lastReq gateway.CreateTransactionRequest
	calls   int
}

func (s *stubSessionCreator) CreateTransaction(ctx context.Context, req gateway.CreateTransactionRequest) (*gateway.Session, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func newServiceUnderTest(t *testing.T, db *gorm.DB, gw *stubSessionCreator) Service {
	t.Helper()
	svc, err := NewService(
		orders.NewRepository(db),
		catalog.NewRepository(db),
		cart.NewRepository(db),
		gormTxRunner{db: db},
		gw,
		config.CheckoutConfig{OrderNumberAttempts: 3},
		nil,
		nil,
	)
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, price int64, discountPercent, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:            "sneaker",
		Price:           price,
		DiscountPercent: discountPercent,
		Stock:           stock,
		IsActive:        true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func baseInput(customerID uuid.UUID, items ...ItemInput) Input {
	return Input{
		CustomerID:    customerID,
		CustomerName:  "Sari",
		CustomerEmail: "sari@example.com",
		CustomerPhone: "+628111222333",
		Items:         items,
	}
}

func TestCheckoutHappyPath(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	customerID := uuid.New()
	product := seedProduct(t, db, 10000, 10, 20)

	gw := &stubSessionCreator{session: &gateway.Session{Token: "snap-token", RedirectURL: "https://pay.example/redirect"}}
	svc := newServiceUnderTest(t, db, gw)

	order, err := svc.Checkout(context.Background(), baseInput(customerID, ItemInput{ProductID: product.ID, Qty: 2}))
	require.NoError(t, err)

	// 10000 discounted 10% freezes the unit price at 9000.
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(9000), order.Items[0].UnitPrice)
	assert.Equal(t, int64(18000), order.TotalAmount)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.False(t, order.StockUpdated)
	require.NotNil(t, order.SnapToken)
	assert.Equal(t, "snap-token", *order.SnapToken)

	// Stock is untouched at checkout; the ledger moves at settlement time.
	var loadedProduct models.Product
	require.NoError(t, db.First(&loadedProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 20, loadedProduct.Stock)

	assert.Equal(t, order.OrderNumber, gw.lastReq.OrderNumber)
	assert.Equal(t, int64(18000), gw.lastReq.GrossAmount)
	require.Len(t, gw.lastReq.Items, 1)
	assert.Equal(t, "sneaker", gw.lastReq.Items[0].Name)
}

func TestCheckoutGatewayFailureDeletesOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	customerID := uuid.New()
	product := seedProduct(t, db, 5000, 0, 10)

	gw := &stubSessionCreator{err: pkgerrors.New(pkgerrors.CodeGatewayTimeout, "timed out")}
	svc := newServiceUnderTest(t, db, gw)

	_, err := svc.Checkout(context.Background(), baseInput(customerID, ItemInput{ProductID: product.ID, Qty: 1}))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayTimeout))

	// No half-registered order may survive a failed gateway call.
	var orderCount, itemCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&itemCount).Error)
	assert.Zero(t, orderCount)
	assert.Zero(t, itemCount)
}

func TestCheckoutGatewayFailureReleasesVoucherUsage(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	customerID := uuid.New()
	product := seedProduct(t, db, 20000, 0, 10)

	now := time.Now().UTC()
	voucher := &models.Voucher{
		Code:         "ONCE",
		DiscountType: enums.DiscountTypeFixed,
		Value:        2000,
		UsageLimit:   1,
		StartsAt:     now.Add(-time.Hour),
		ExpiresAt:    now.Add(time.Hour),
	}
	require.NoError(t, db.Create(voucher).Error)

	gw := &stubSessionCreator{err: pkgerrors.New(pkgerrors.CodeGatewayTimeout, "timed out")}
	svc := newServiceUnderTest(t, db, gw)

	input := baseInput(customerID, ItemInput{ProductID: product.ID, Qty: 1})
	input.VoucherCode = "ONCE"

	_, err := svc.Checkout(context.Background(), input)
	require.Error(t, err)

	// The failed checkout consumed no voucher use; the next customer can still
	// redeem it.
	var loadedVoucher models.Voucher
	require.NoError(t, db.First(&loadedVoucher, "id = ?", voucher.ID).Error)
	assert.Zero(t, loadedVoucher.UsageCount)

	gw.err = nil
	gw.session = &gateway.Session{Token: "tok"}
	retry := baseInput(uuid.New(), ItemInput{ProductID: product.ID, Qty: 1})
	retry.VoucherCode = "ONCE"
	order, err := svc.Checkout(context.Background(), retry)
	require.NoError(t, err)
	assert.Equal(t, int64(18000), order.TotalAmount)
}

func TestNewOrderNumberFormat(t *testing.T) {
	t.Parallel()

	number, err := newOrderNumber()
	require.NoError(t, err)
	assert.Regexp(t, `^ORDER-\d+-[0-9a-f]{8}$`, number)
}

func TestCheckoutUnknownProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	gw := &stubSessionCreator{session: &gateway.Session{Token: "tok"}}
	svc := newServiceUnderTest(t, db, gw)

	_, err := svc.Checkout(context.Background(), baseInput(uuid.New(), ItemInput{ProductID: uuid.New(), Qty: 1}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Zero(t, gw.calls)
}

func TestCheckoutInactiveProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	product := seedProduct(t, db, 5000, 0, 10)
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error)

	gw := &stubSessionCreator{session: &gateway.Session{Token: "tok"}}
	svc := newServiceUnderTest(t, db, gw)

	_, err := svc.Checkout(context.Background(), baseInput(uuid.New(), ItemInput{ProductID: product.ID, Qty: 1}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCheckoutWithVoucher(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	customerID := uuid.New()
	product := seedProduct(t, db, 10000, 0, 10)

	now := time.Now().UTC()
	voucher := &models.Voucher{
		Code:         "HEMAT10",
		DiscountType: enums.DiscountTypePercentage,
		Value:        10,
		MaxDiscount:  1500,
		MinPurchase:  10000,
		UsageLimit:   5,
		StartsAt:     now.Add(-time.Hour),
		ExpiresAt:    now.Add(time.Hour),
	}
	require.NoError(t, db.Create(voucher).Error)

	gw := &stubSessionCreator{session: &gateway.Session{Token: "tok", RedirectURL: "https://pay"}}
	svc := newServiceUnderTest(t, db, gw)

	input := baseInput(customerID, ItemInput{ProductID: product.ID, Qty: 2})
	input.VoucherCode = "HEMAT10"

	order, err := svc.Checkout(context.Background(), input)
	require.NoError(t, err)

	// 10% of 20000 is 2000, capped at the voucher's 1500 maximum.
	assert.Equal(t, int64(18500), order.TotalAmount)

	var loadedVoucher models.Voucher
	require.NoError(t, db.First(&loadedVoucher, "id = ?", voucher.ID).Error)
	assert.Equal(t, 1, loadedVoucher.UsageCount)
}

func TestCheckoutVoucherBelowMinPurchase(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	product := seedProduct(t, db, 5000, 0, 10)

	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.Voucher{
		Code:         "BIGSPEND",
		DiscountType: enums.DiscountTypeFixed,
		Value:        2000,
		MinPurchase:  50000,
		StartsAt:     now.Add(-time.Hour),
		ExpiresAt:    now.Add(time.Hour),
	}).Error)

	gw := &stubSessionCreator{session: &gateway.Session{Token: "tok"}}
	svc := newServiceUnderTest(t, db, gw)

	input := baseInput(uuid.New(), ItemInput{ProductID: product.ID, Qty: 1})
	input.VoucherCode = "BIGSPEND"

	_, err := svc.Checkout(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, gw.calls)
}

func TestCheckoutRemovesPurchasedCartRows(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	customerID := uuid.New()
	product := seedProduct(t, db, 5000, 0, 10)
	other := seedProduct(t, db, 3000, 0, 10)

	require.NoError(t, db.Create(&models.CartItem{CustomerID: customerID, ProductID: product.ID, Qty: 1}).Error)
	require.NoError(t, db.Create(&models.CartItem{CustomerID: customerID, ProductID: other.ID, Qty: 1}).Error)

	gw := &stubSessionCreator{session: &gateway.Session{Token: "tok"}}
	svc := newServiceUnderTest(t, db, gw)

	_, err := svc.Checkout(context.Background(), baseInput(customerID, ItemInput{ProductID: product.ID, Qty: 1}))
	require.NoError(t, err)

	var remaining []models.CartItem
	require.NoError(t, db.Where("customer_id = ?", customerID).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, other.ID, remaining[0].ProductID)
}

func TestCheckoutValidatesInput(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	gw := &stubSessionCreator{}
	svc := newServiceUnderTest(t, db, gw)

	cases := []struct {
		name  string
		input Input
	}{
		{"missing customer", Input{CustomerName: "a", CustomerEmail: "a@b.c", CustomerPhone: "1", Items: []ItemInput{{ProductID: uuid.New(), Qty: 1}}}},
		{"no items", baseInput(uuid.New())},
		{"zero qty", baseInput(uuid.New(), ItemInput{ProductID: uuid.New(), Qty: 0})},
		{"missing contact", Input{CustomerID: uuid.New(), Items: []ItemInput{{ProductID: uuid.New(), Qty: 1}}}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Checkout(context.Background(), tc.input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}
