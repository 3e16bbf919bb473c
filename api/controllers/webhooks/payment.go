package webhooks

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tokosaku/backend/api/responses"
	"github.com/tokosaku/backend/internal/gateway"
	internalorders "github.com/tokosaku/backend/internal/orders"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
	"github.com/tokosaku/backend/pkg/logger"
)

type PaymentNotificationService interface {
	Process(ctx context.Context, notification *gateway.TransactionStatus) (*internalorders.ApplyResult, error)
}

// PaymentNotification receives gateway callbacks. The gateway retries on any
// non-2xx answer, so duplicates and already-settled orders still return 200;
// only payloads the gateway should correct (bad signature, unknown order,
// malformed body) are rejected.
func PaymentNotification(svc PaymentNotificationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification service unavailable"))
			return
		}

		// Gateway payloads carry many fields beyond the ones read here, so
		// unknown fields are tolerated.
		var payload gateway.TransactionStatus
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification body"))
			return
		}

		result, err := svc.Process(ctx, &payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"order_number":    result.Order.OrderNumber,
			"status":          result.Order.Status,
			"payment_status":  result.Order.PaymentStatus,
			"already_applied": result.AlreadyApplied,
		})
	}
}
