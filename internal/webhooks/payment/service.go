package payment

import (
	"context"
	"fmt"

	"github.com/tokosaku/backend/internal/gateway"
	"github.com/tokosaku/backend/internal/orders"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
	"github.com/tokosaku/backend/pkg/logger"
	"github.com/tokosaku/backend/pkg/metrics"
)

type settler interface {
	Apply(ctx context.Context, orderNumber string, outcome orders.PaymentOutcome) (*orders.ApplyResult, error)
}

// Service consumes payment notifications pushed by the gateway.
type Service interface {
	Process(ctx context.Context, notification *gateway.TransactionStatus) (*orders.ApplyResult, error)
}

type service struct {
	settlement settler
	serverKey  string
	logg       *logger.Logger
	metrics    *metrics.PaymentMetrics
}

// NewService builds the notification processor.
func NewService(settlement settler, serverKey string, logg *logger.Logger, payMetrics *metrics.PaymentMetrics) (Service, error) {
	if settlement == nil {
		return nil, fmt.Errorf("settlement required")
	}
	if serverKey == "" {
		return nil, fmt.Errorf("gateway server key required")
	}
	return &service{
		settlement: settlement,
		serverKey:  serverKey,
		logg:       logg,
		metrics:    payMetrics,
	}, nil
}

// Process authenticates a notification and commits it through the shared
// settlement path. The signature is checked before anything is read from
// storage; an unsigned or mis-signed payload learns nothing about local state.
func (s *service) Process(ctx context.Context, notification *gateway.TransactionStatus) (*orders.ApplyResult, error) {
	if notification == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification payload required")
	}

	valid := gateway.VerifySignature(
		notification.OrderNumber,
		notification.StatusCode,
		notification.GrossAmount,
		s.serverKey,
		notification.SignatureKey,
	)
	if !valid {
		s.metrics.IncNotification(metrics.NotificationRejected)
		if s.logg != nil {
			fields := map[string]any{
				"order_number": notification.OrderNumber,
				"status_code":  notification.StatusCode,
			}
			s.logg.Warn(s.logg.WithFields(ctx, fields), "payment notification rejected, signature mismatch")
		}
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "notification signature mismatch")
	}

	result, err := s.settlement.Apply(ctx, notification.OrderNumber, orders.OutcomeFromTransactionStatus(notification))
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.metrics.IncNotification(metrics.NotificationRejected)
		} else {
			s.metrics.IncNotification(metrics.NotificationFailed)
		}
		return nil, err
	}

	if result.AlreadyApplied {
		s.metrics.IncNotification(metrics.NotificationDuplicate)
	} else {
		s.metrics.IncNotification(metrics.NotificationApplied)
	}
	return result, nil
}
