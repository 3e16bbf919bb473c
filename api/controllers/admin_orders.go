package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tokosaku/backend/api/responses"
	internalorders "github.com/tokosaku/backend/internal/orders"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
	"github.com/tokosaku/backend/pkg/logger"
)

// AdminReconcileOrder forces a settlement pass against the gateway for an
// order whose notification may have been lost.
func AdminReconcileOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		result, err := svc.Reconcile(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"order_number":    result.Order.OrderNumber,
			"status":          result.Order.Status,
			"payment_status":  result.Order.PaymentStatus,
			"stock_mutated":   result.StockMutated,
			"already_applied": result.AlreadyApplied,
		})
	}
}
