package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokosaku/backend/internal/gateway"
	"github.com/tokosaku/backend/internal/orders"
	"github.com/tokosaku/backend/pkg/db/models"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
)

const testServerKey = "SB-server-key"

type stubSettler struct {
	result *orders.ApplyResult
	err    error
	calls  int
}

func (s *stubSettler) Apply(ctx context.Context, orderNumber string, outcome orders.PaymentOutcome) (*orders.ApplyResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func signedNotification(orderNumber, statusCode, grossAmount string) *gateway.TransactionStatus {
	return &gateway.TransactionStatus{
		OrderNumber:       orderNumber,
		TransactionStatus: gateway.StatusSettlement,
		StatusCode:        statusCode,
		GrossAmount:       grossAmount,
		SignatureKey:      gateway.ComputeSignature(orderNumber, statusCode, grossAmount, testServerKey),
	}
}

func TestProcessValidSignature(t *testing.T) {
	t.Parallel()

	settler := &stubSettler{result: &orders.ApplyResult{Order: &models.Order{OrderNumber: "ORDER-1"}, StockMutated: true}}
	svc, err := NewService(settler, testServerKey, nil, nil)
	require.NoError(t, err)

	result, err := svc.Process(context.Background(), signedNotification("ORDER-1", "200", "18000.00"))
	require.NoError(t, err)
	assert.True(t, result.StockMutated)
	assert.Equal(t, 1, settler.calls)
}

func TestProcessInvalidSignature(t *testing.T) {
	t.Parallel()

	settler := &stubSettler{result: &orders.ApplyResult{Order: &models.Order{}}}
	svc, err := NewService(settler, testServerKey, nil, nil)
	require.NoError(t, err)

	notification := signedNotification("ORDER-1", "200", "18000.00")
	notification.SignatureKey = "forged"

	_, err = svc.Process(context.Background(), notification)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSignature))
	// A mis-signed payload must not reach storage at all.
	assert.Zero(t, settler.calls)
}

func TestProcessTamperedAmount(t *testing.T) {
	t.Parallel()

	settler := &stubSettler{result: &orders.ApplyResult{Order: &models.Order{}}}
	svc, err := NewService(settler, testServerKey, nil, nil)
	require.NoError(t, err)

	notification := signedNotification("ORDER-1", "200", "18000.00")
	notification.GrossAmount = "1.00"

	_, err = svc.Process(context.Background(), notification)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSignature))
	assert.Zero(t, settler.calls)
}

func TestProcessUnknownOrder(t *testing.T) {
	t.Parallel()

	settler := &stubSettler{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	svc, err := NewService(settler, testServerKey, nil, nil)
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), signedNotification("ORDER-missing", "200", "1.00"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestProcessNilPayload(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&stubSettler{}, testServerKey, nil, nil)
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
