package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokosaku/backend/internal/gateway"
	"github.com/tokosaku/backend/pkg/db/models"
	"github.com/tokosaku/backend/pkg/enums"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
)

type stubGateway struct {
	status *gateway.TransactionStatus
	err    error
	calls  int
}

func (s *stubGateway) GetStatus(ctx context.Context, orderNumber string) (*gateway.TransactionStatus, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.status, nil
}

func TestServiceRefreshAppliesRemoteStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	settlement, err := NewSettlement(repo, gormTxRunner{db: db}, nil)
	require.NoError(t, err)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 2)

	gw := &stubGateway{status: &gateway.TransactionStatus{
		OrderNumber:       order.OrderNumber,
		TransactionStatus: gateway.StatusSettlement,
		TransactionID:     "trx-9",
		PaymentType:       "qris",
		TransactionTime:   "2026-08-30 10:15:00",
	}}

	svc, err := NewService(repo, gormTxRunner{db: db}, settlement, gw, nil, nil)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, refreshed.Status)
	assert.Equal(t, enums.PaymentStatusSettlement, refreshed.PaymentStatus)
	assert.NotNil(t, refreshed.TransactionTime)

	var loadedProduct models.Product
	require.NoError(t, db.First(&loadedProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 8, loadedProduct.Stock)
}

func TestServiceRefreshDegradesOnGatewayFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	settlement, err := NewSettlement(repo, gormTxRunner{db: db}, nil)
	require.NoError(t, err)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 1)

	gw := &stubGateway{err: pkgerrors.New(pkgerrors.CodeGatewayTimeout, "timed out")}
	svc, err := NewService(repo, gormTxRunner{db: db}, settlement, gw, nil, nil)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, refreshed.Status)
}

func TestServiceRefreshSkipsApplyWhenCurrent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	settlement, err := NewSettlement(repo, gormTxRunner{db: db}, nil)
	require.NoError(t, err)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 1)

	gw := &stubGateway{status: &gateway.TransactionStatus{
		OrderNumber:       order.OrderNumber,
		TransactionStatus: gateway.StatusPending,
	}}
	svc, err := NewService(repo, gormTxRunner{db: db}, settlement, gw, nil, nil)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, refreshed.Status)
	assert.False(t, refreshed.StockUpdated)
}

func TestServiceReconcileSurfacesGatewayFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	settlement, err := NewSettlement(repo, gormTxRunner{db: db}, nil)
	require.NoError(t, err)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 1)

	gw := &stubGateway{err: pkgerrors.New(pkgerrors.CodeGatewayTimeout, "timed out")}
	svc, err := NewService(repo, gormTxRunner{db: db}, settlement, gw, nil, nil)
	require.NoError(t, err)

	_, err = svc.Reconcile(context.Background(), order.OrderNumber)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayTimeout))
}

func TestServiceReconcileSettles(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	settlement, err := NewSettlement(repo, gormTxRunner{db: db}, nil)
	require.NoError(t, err)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 2)

	gw := &stubGateway{status: &gateway.TransactionStatus{
		OrderNumber:       order.OrderNumber,
		TransactionStatus: gateway.StatusSettlement,
	}}
	svc, err := NewService(repo, gormTxRunner{db: db}, settlement, gw, nil, nil)
	require.NoError(t, err)

	result, err := svc.Reconcile(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.True(t, result.StockMutated)
	assert.Equal(t, enums.OrderStatusProcessing, result.Order.Status)
}

func TestServiceCancelPendingOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	settlement, err := NewSettlement(repo, gormTxRunner{db: db}, nil)
	require.NoError(t, err)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 2)

	svc, err := NewService(repo, gormTxRunner{db: db}, settlement, &stubGateway{}, nil, nil)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), order.OrderNumber, order.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, enums.PaymentStatusCancel, cancelled.PaymentStatus)

	var loadedProduct models.Product
	require.NoError(t, db.First(&loadedProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 12, loadedProduct.Stock)
}

func TestServiceCancelRejectsOtherCustomer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	settlement, err := NewSettlement(repo, gormTxRunner{db: db}, nil)
	require.NoError(t, err)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 1)

	svc, err := NewService(repo, gormTxRunner{db: db}, settlement, &stubGateway{}, nil, nil)
	require.NoError(t, err)

	// Ownership mismatches read as not found so order numbers cannot be probed.
	_, err = svc.Cancel(context.Background(), order.OrderNumber, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceCancelRejectsShippedOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	settlement, err := NewSettlement(repo, gormTxRunner{db: db}, nil)
	require.NoError(t, err)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 1)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Updates(map[string]any{"status": enums.OrderStatusShipped, "payment_status": enums.PaymentStatusSettlement, "stock_updated": true}).Error)

	svc, err := NewService(repo, gormTxRunner{db: db}, settlement, &stubGateway{}, nil, nil)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), order.OrderNumber, order.CustomerID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestServiceGetChecksOwnership(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	settlement, err := NewSettlement(repo, gormTxRunner{db: db}, nil)
	require.NoError(t, err)

	product := seedTestProduct(t, db, 10)
	order := seedTestOrder(t, db, product, 1)

	svc, err := NewService(repo, gormTxRunner{db: db}, settlement, &stubGateway{}, nil, nil)
	require.NoError(t, err)

	loaded, err := svc.Get(context.Background(), order.OrderNumber, order.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, loaded.ID)

	_, err = svc.Get(context.Background(), order.OrderNumber, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
