package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tokosaku/backend/api/middleware"
	"github.com/tokosaku/backend/api/responses"
	"github.com/tokosaku/backend/api/validators"
	"github.com/tokosaku/backend/internal/checkout"
	internalorders "github.com/tokosaku/backend/internal/orders"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
	"github.com/tokosaku/backend/pkg/logger"
)

type checkoutRequest struct {
	CustomerName  string                `json:"customer_name" validate:"required,max=120"`
	CustomerEmail string                `json:"customer_email" validate:"required,email"`
	CustomerPhone string                `json:"customer_phone" validate:"required,max=32"`
	Items         []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	VoucherCode   string                `json:"voucher_code" validate:"omitempty,max=64"`
}

type checkoutItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,gt=0"`
	Size      *string   `json:"size" validate:"omitempty,max=16"`
	Color     *string   `json:"color" validate:"omitempty,max=32"`
}

// Checkout creates an order for the authenticated customer and registers it
// with the payment gateway.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, err := customerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]checkout.ItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, checkout.ItemInput{
				ProductID: item.ProductID,
				Qty:       item.Qty,
				Size:      item.Size,
				Color:     item.Color,
			})
		}

		order, err := svc.Checkout(r.Context(), checkout.Input{
			CustomerID:    customerID,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			CustomerPhone: req.CustomerPhone,
			Items:         items,
			VoucherCode:   strings.TrimSpace(req.VoucherCode),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderView(order))
	}
}

// List returns the authenticated customer's orders, newest first.
func List(repo internalorders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders repository unavailable"))
			return
		}

		customerID, err := customerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := repo.FindByCustomer(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders"))
			return
		}

		views := make([]orderView, 0, len(list))
		for i := range list {
			views = append(views, toOrderView(&list[i]))
		}
		responses.WriteSuccess(w, views)
	}
}

// Detail returns one order after reconciling its status against the gateway.
// Pending orders can settle while the customer is away from the site; reading
// the detail page pulls the latest gateway truth before rendering.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		customerID, err := customerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		order, err := svc.Get(r.Context(), orderNumber, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refreshed, err := svc.Refresh(r.Context(), order.OrderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toOrderView(refreshed))
	}
}

// Cancel voids a still-pending order and releases its reservation.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		customerID, err := customerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		order, err := svc.Cancel(r.Context(), orderNumber, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toOrderView(order))
	}
}

func customerFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.CustomerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	customerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid customer id")
	}
	return customerID, nil
}
