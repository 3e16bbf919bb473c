package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tokosaku/backend/internal/gateway"
	"github.com/tokosaku/backend/internal/orders/ledger"
	"github.com/tokosaku/backend/pkg/db/models"
	"github.com/tokosaku/backend/pkg/enums"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
	"github.com/tokosaku/backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentOutcome is the gateway's reported view of a transaction, normalized
// from either a webhook payload or a status query.
type PaymentOutcome struct {
	TransactionStatus string
	FraudStatus       string
	TransactionID     string
	TransactionType   string
	TransactionTime   *time.Time
}

// ApplyResult reports what a commit attempt did.
type ApplyResult struct {
	Order          *models.Order
	AlreadyApplied bool
	StockMutated   bool
}

// MapStatus translates gateway transaction/fraud vocabulary into the local
// order and payment statuses. Pure; unknown inputs fall back to pending.
func MapStatus(transactionStatus, fraudStatus string) (enums.OrderStatus, enums.PaymentStatus) {
	switch transactionStatus {
	case gateway.StatusCapture:
		if fraudStatus == gateway.FraudAccept {
			return enums.OrderStatusProcessing, enums.PaymentStatusSettlement
		}
		return enums.OrderStatusPending, enums.PaymentStatusPending
	case gateway.StatusSettlement:
		return enums.OrderStatusProcessing, enums.PaymentStatusSettlement
	case gateway.StatusPending:
		return enums.OrderStatusPending, enums.PaymentStatusPending
	case gateway.StatusDeny:
		return enums.OrderStatusCancelled, enums.PaymentStatusDeny
	case gateway.StatusCancel:
		return enums.OrderStatusCancelled, enums.PaymentStatusCancel
	case gateway.StatusExpire:
		return enums.OrderStatusCancelled, enums.PaymentStatusExpire
	default:
		return enums.OrderStatusPending, enums.PaymentStatusPending
	}
}

// Settlement is the single commit path for payment outcomes. The webhook
// processor, the on-demand reconciler, and the operator recovery endpoint all
// funnel through Apply; none of them carries its own copy of this logic.
type Settlement struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewSettlement builds the shared commit path.
func NewSettlement(repo Repository, tx txRunner, logg *logger.Logger) (*Settlement, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Settlement{repo: repo, tx: tx, logg: logg}, nil
}

// Apply commits a gateway outcome to the order in one transaction. When the
// outcome is a settlement, the stock_updated latch is claimed first; losing
// the claim means another caller already applied the inventory side effects,
// so only the denormalized gateway fields are refreshed. A failed stock
// decrement rolls the whole transaction back, latch included.
func (s *Settlement) Apply(ctx context.Context, orderNumber string, outcome PaymentOutcome) (*ApplyResult, error) {
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}

	status, paymentStatus := MapStatus(outcome.TransactionStatus, outcome.FraudStatus)

	result := &ApplyResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByOrderNumber(ctx, orderNumber)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		updates := s.statusFieldUpdates(ctx, order, status, paymentStatus, outcome)

		// Terminal orders only get the denormalized gateway fields refreshed.
		// A settlement landing after a cancel must not move inventory or mark
		// the order paid.
		if paymentStatus.IsSettled() && !order.Status.IsTerminal() {
			claimed, err := repo.ClaimStockUpdate(ctx, orderNumber)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim stock update")
			}
			if !claimed {
				result.AlreadyApplied = true
			} else {
				for _, item := range order.Items {
					if err := ledger.Decrement(ctx, tx, item.ProductID, item.Qty); err != nil {
						return err
					}
				}
				now := time.Now().UTC()
				updates["paid_at"] = now
				order.PaidAt = &now
				order.StockUpdated = true
				result.StockMutated = true
			}
		}

		if err := repo.UpdateFields(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status fields")
		}

		applyUpdatesToOrder(order, updates)
		result.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{
			"order_number":       orderNumber,
			"transaction_status": outcome.TransactionStatus,
			"fraud_status":       outcome.FraudStatus,
			"order_status":       result.Order.Status,
			"payment_status":     result.Order.PaymentStatus,
			"stock_mutated":      result.StockMutated,
			"already_applied":    result.AlreadyApplied,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "payment outcome applied")
	}
	return result, nil
}

// statusFieldUpdates assembles the denormalized gateway fields. The lifecycle
// status is only written when it moves forward; a stale notification can
// refresh payment metadata but never regress shipped or delivered orders.
func (s *Settlement) statusFieldUpdates(ctx context.Context, order *models.Order, status enums.OrderStatus, paymentStatus enums.PaymentStatus, outcome PaymentOutcome) map[string]any {
	updates := map[string]any{
		"payment_status": paymentStatus,
	}
	if CanTransition(order.Status, status) {
		updates["status"] = status
	} else if s.logg != nil {
		fields := map[string]any{
			"order_number": order.OrderNumber,
			"from":         order.Status,
			"to":           status,
		}
		s.logg.Warn(s.logg.WithFields(ctx, fields), "gateway status ignored for terminal order")
	}
	if outcome.TransactionID != "" {
		updates["transaction_id"] = outcome.TransactionID
	}
	if outcome.TransactionType != "" {
		updates["transaction_type"] = outcome.TransactionType
	}
	if outcome.TransactionTime != nil {
		updates["transaction_time"] = *outcome.TransactionTime
	}
	return updates
}

func applyUpdatesToOrder(order *models.Order, updates map[string]any) {
	if v, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = v
	}
	if v, ok := updates["payment_status"].(enums.PaymentStatus); ok {
		order.PaymentStatus = v
	}
	if v, ok := updates["transaction_id"].(string); ok {
		order.TransactionID = &v
	}
	if v, ok := updates["transaction_type"].(string); ok {
		order.TransactionType = &v
	}
	if v, ok := updates["transaction_time"].(time.Time); ok {
		order.TransactionTime = &v
	}
}
