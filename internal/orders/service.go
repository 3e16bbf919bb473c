package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokosaku/backend/internal/gateway"
	"github.com/tokosaku/backend/internal/orders/ledger"
	"github.com/tokosaku/backend/pkg/db/models"
	"github.com/tokosaku/backend/pkg/enums"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
	"github.com/tokosaku/backend/pkg/logger"
	"github.com/tokosaku/backend/pkg/metrics"
)

// The gateway reports timestamps in its local format.
const gatewayTimeLayout = "2006-01-02 15:04:05"

type statusQuerier interface {
	GetStatus(ctx context.Context, orderNumber string) (*gateway.TransactionStatus, error)
}

// Service exposes the order operations beyond creation: on-demand status
// reconciliation, cancellation, and reads.
type Service interface {
	Get(ctx context.Context, orderNumber string, customerID uuid.UUID) (*models.Order, error)
	Refresh(ctx context.Context, orderNumber string) (*models.Order, error)
	Reconcile(ctx context.Context, orderNumber string) (*ApplyResult, error)
	Cancel(ctx context.Context, orderNumber string, customerID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	settlement *Settlement
	gateway    statusQuerier
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
}

// NewService builds the order service.
func NewService(repo Repository, tx txRunner, settlement *Settlement, gw statusQuerier, payMetrics *metrics.PaymentMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if settlement == nil {
		return nil, fmt.Errorf("settlement required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		settlement: settlement,
		gateway:    gw,
		metrics:    payMetrics,
		logg:       logg,
	}, nil
}

func (s *service) Get(ctx context.Context, orderNumber string, customerID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOwnedOrder(ctx, orderNumber, customerID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Refresh queries the gateway for the order's current transaction status and
// reconciles local state through the shared settlement path. A gateway
// failure degrades to the last known local state; this path is a best-effort
// refresh, not authoritative.
func (s *service) Refresh(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	remote, err := s.gateway.GetStatus(ctx, orderNumber)
	if err != nil {
		s.metrics.IncGatewayError("status_query")
		if s.logg != nil {
			ctx := s.logg.WithOrderNumber(ctx, orderNumber)
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "gateway status query failed, returning cached state")
		}
		return order, nil
	}

	mappedStatus, mappedPayment := MapStatus(remote.TransactionStatus, remote.FraudStatus)
	if order.Status == mappedStatus && order.PaymentStatus == mappedPayment {
		return order, nil
	}

	result, err := s.settlement.Apply(ctx, orderNumber, OutcomeFromTransactionStatus(remote))
	if err != nil {
		return nil, err
	}
	return result.Order, nil
}

// Reconcile forces a settlement pass from the gateway's current view of the
// order. Unlike Refresh it does not degrade on gateway failure and does not
// skip the commit when statuses look current; operators use it to recover
// orders whose notifications were lost.
func (s *service) Reconcile(ctx context.Context, orderNumber string) (*ApplyResult, error) {
	if _, err := s.repo.FindByOrderNumber(ctx, orderNumber); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	remote, err := s.gateway.GetStatus(ctx, orderNumber)
	if err != nil {
		s.metrics.IncGatewayError("status_query")
		return nil, err
	}

	result, err := s.settlement.Apply(ctx, orderNumber, OutcomeFromTransactionStatus(remote))
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"order_number":    orderNumber,
			"actor":           "operator",
			"stock_mutated":   result.StockMutated,
			"already_applied": result.AlreadyApplied,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "order reconciled against gateway")
	}
	return result, nil
}

// Cancel transitions a still-pending order to cancelled. Stock is restored
// only when the settlement side effects never ran.
func (s *service) Cancel(ctx context.Context, orderNumber string, customerID uuid.UUID) (*models.Order, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByOrderNumber(ctx, orderNumber)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.CustomerID != customerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		if order.Status != enums.OrderStatusPending && order.PaymentStatus != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled")
		}
		if err := EnsureTransition(order.Status, enums.OrderStatusCancelled); err != nil {
			return err
		}

		if !order.StockUpdated {
			for _, item := range order.Items {
				if err := ledger.Restore(ctx, tx, item.ProductID, item.Qty); err != nil {
					return err
				}
			}
		}

		updates := map[string]any{
			"status":         enums.OrderStatusCancelled,
			"payment_status": enums.PaymentStatusCancel,
		}
		if err := repo.UpdateFields(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		order.Status = enums.OrderStatusCancelled
		order.PaymentStatus = enums.PaymentStatusCancel
		cancelled = order

		if s.logg != nil {
			fields := map[string]any{
				"order_number":   order.OrderNumber,
				"actor":          customerID.String(),
				"stock_restored": !order.StockUpdated,
			}
			s.logg.Info(s.logg.WithFields(ctx, fields), "order cancelled")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *service) loadOwnedOrder(ctx context.Context, orderNumber string, customerID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// OutcomeFromTransactionStatus normalizes a gateway status payload into the
// settlement input, parsing the gateway's timestamp format when present.
func OutcomeFromTransactionStatus(ts *gateway.TransactionStatus) PaymentOutcome {
	outcome := PaymentOutcome{
		TransactionStatus: ts.TransactionStatus,
		FraudStatus:       ts.FraudStatus,
		TransactionID:     ts.TransactionID,
		TransactionType:   ts.PaymentType,
	}
	if ts.TransactionTime != "" {
		if parsed, err := time.Parse(gatewayTimeLayout, ts.TransactionTime); err == nil {
			outcome.TransactionTime = &parsed
		}
	}
	return outcome
}
