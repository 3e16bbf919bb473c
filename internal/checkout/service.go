package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tokosaku/backend/internal/cart"
	"github.com/tokosaku/backend/internal/catalog"
	"github.com/tokosaku/backend/internal/gateway"
	"github.com/tokosaku/backend/internal/orders"
	"github.com/tokosaku/backend/internal/vouchers"
	"github.com/tokosaku/backend/pkg/config"
	"github.com/tokosaku/backend/pkg/db"
	"github.com/tokosaku/backend/pkg/db/models"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
	"github.com/tokosaku/backend/pkg/logger"
	"github.com/tokosaku/backend/pkg/metrics"
)

const defaultOrderNumberAttempts = 3

type sessionCreator interface {
	CreateTransaction(ctx context.Context, req gateway.CreateTransactionRequest) (*gateway.Session, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ItemInput is one requested purchase line.
type ItemInput struct {
	ProductID uuid.UUID
	Qty       int
	Size      *string
	Color     *string
}

// Input carries everything needed to create an order for a customer.
type Input struct {
	CustomerID    uuid.UUID
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Items         []ItemInput
	VoucherCode   string
}

// Service creates orders and registers them with the payment gateway.
type Service interface {
	Checkout(ctx context.Context, input Input) (*models.Order, error)
}

type service struct {
	orders   orders.Repository
	products catalog.Repository
	cart     cart.Repository
	tx       txRunner
	gateway  sessionCreator
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
	attempts int
}

// NewService builds the checkout service.
func NewService(
	orderRepo orders.Repository,
	productRepo catalog.Repository,
	cartRepo cart.Repository,
	tx txRunner,
	gw sessionCreator,
	cfg config.CheckoutConfig,
	payMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	attempts := cfg.OrderNumberAttempts
	if attempts <= 0 {
		attempts = defaultOrderNumberAttempts
	}
	return &service{
		orders:   orderRepo,
		products: productRepo,
		cart:     cartRepo,
		tx:       tx,
		gateway:  gw,
		metrics:  payMetrics,
		logg:     logg,
		attempts: attempts,
	}, nil
}

// Checkout prices the requested items against live catalog data, persists the
// order, and registers it with the gateway. Registration happens outside the
// database transaction; if it fails the order is deleted so the customer can
// retry from a clean slate. Stock is not touched here; the ledger runs at
// settlement time.
func (s *service) Checkout(ctx context.Context, input Input) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var order *models.Order
	var gatewayItems []gateway.TransactionItem
	var voucherID *uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		priced, items, subtotal, err := s.priceItems(ctx, tx, input.Items)
		if err != nil {
			return err
		}
		gatewayItems = items

		total := subtotal
		if input.VoucherCode != "" {
			discount, err := vouchers.Validate(ctx, tx, input.VoucherCode, subtotal, time.Now().UTC())
			if err != nil {
				return err
			}
			if err := vouchers.IncrementUsage(ctx, tx, discount.Voucher.ID); err != nil {
				return err
			}
			id := discount.Voucher.ID
			voucherID = &id
			total = subtotal - discount.Amount
		}

		created, err := s.createWithFreshNumber(ctx, tx, input, priced, total)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateTransaction(ctx, gateway.CreateTransactionRequest{
		OrderNumber: order.OrderNumber,
		GrossAmount: order.TotalAmount,
		Customer: gateway.CustomerDetails{
			FirstName: order.CustomerName,
			Email:     order.CustomerEmail,
			Phone:     order.CustomerPhone,
		},
		Items: gatewayItems,
	})
	if err != nil {
		s.metrics.IncGatewayError("create_transaction")
		s.compensate(ctx, order, voucherID)
		return nil, err
	}

	updates := map[string]any{
		"snap_token":   session.Token,
		"redirect_url": session.RedirectURL,
	}
	if err := s.orders.UpdateFields(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment session")
	}
	order.SnapToken = &session.Token
	order.RedirectURL = &session.RedirectURL

	s.cleanupCart(ctx, input)

	if s.logg != nil {
		fields := map[string]any{
			"order_number": order.OrderNumber,
			"customer_id":  order.CustomerID.String(),
			"total_amount": order.TotalAmount,
			"items":        len(order.Items),
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "order created")
	}
	return order, nil
}

// priceItems resolves each requested line against live catalog data and
// freezes the discounted unit price. Prices are computed with decimal
// arithmetic and rounded half up to the minor unit. The gateway line items are
// assembled here while the product names are at hand.
func (s *service) priceItems(ctx context.Context, tx *gorm.DB, items []ItemInput) ([]models.OrderItem, []gateway.TransactionItem, int64, error) {
	repo := s.products.WithTx(tx)

	priced := make([]models.OrderItem, 0, len(items))
	gatewayItems := make([]gateway.TransactionItem, 0, len(items))
	var subtotal int64
	for _, item := range items {
		product, err := repo.FindByID(ctx, item.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": item.ProductID.String()})
			}
			return nil, nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return nil, nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}

		unitPrice := discountedPrice(product.Price, product.DiscountPercent)
		priced = append(priced, models.OrderItem{
			ProductID: product.ID,
			Qty:       item.Qty,
			UnitPrice: unitPrice,
			Size:      item.Size,
			Color:     item.Color,
		})
		gatewayItems = append(gatewayItems, gateway.TransactionItem{
			ID:       product.ID.String(),
			Name:     product.Name,
			Price:    unitPrice,
			Quantity: item.Qty,
		})
		subtotal += unitPrice * int64(item.Qty)
	}
	return priced, gatewayItems, subtotal, nil
}

// createWithFreshNumber persists the order, regenerating the order number on a
// uniqueness collision up to the configured number of attempts.
func (s *service) createWithFreshNumber(ctx context.Context, tx *gorm.DB, input Input, items []models.OrderItem, total int64) (*models.Order, error) {
	repo := s.orders.WithTx(tx)

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		number, err := newOrderNumber()
		if err != nil {
			return nil, err
		}
		order := &models.Order{
			OrderNumber:   number,
			CustomerID:    input.CustomerID,
			TotalAmount:   total,
			CustomerName:  input.CustomerName,
			CustomerEmail: input.CustomerEmail,
			CustomerPhone: input.CustomerPhone,
			Items:         cloneItems(items),
		}
		created, err := repo.Create(ctx, order)
		if err == nil {
			return created, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		lastErr = err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "could not allocate a unique order number")
}

// compensate removes an order whose gateway registration failed and releases
// the voucher use the creation transaction claimed. Cleanup failures are
// logged but never mask the original gateway error.
func (s *service) compensate(ctx context.Context, order *models.Order, voucherID *uuid.UUID) {
	if err := s.orders.Delete(ctx, order.ID); err != nil && s.logg != nil {
		ctx := s.logg.WithOrderNumber(ctx, order.OrderNumber)
		s.logg.Error(ctx, "failed to delete order after gateway registration failure", err)
	}
	if voucherID == nil {
		return
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return vouchers.DecrementUsage(ctx, tx, *voucherID)
	})
	if err != nil && s.logg != nil {
		ctx := s.logg.WithOrderNumber(ctx, order.OrderNumber)
		s.logg.Error(ctx, "failed to release voucher usage after gateway registration failure", err)
	}
}

func (s *service) cleanupCart(ctx context.Context, input Input) {
	if s.cart == nil {
		return
	}
	lines := make([]cart.PurchasedLine, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, cart.PurchasedLine{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
		})
	}
	if err := s.cart.RemovePurchased(ctx, input.CustomerID, lines); err != nil && s.logg != nil {
		ctx := s.logg.WithCustomerID(ctx, input.CustomerID.String())
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart cleanup failed after checkout")
	}
}

func validateInput(input Input) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.CustomerName == "" || input.CustomerEmail == "" || input.CustomerPhone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer contact details required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}
	return nil
}

func discountedPrice(price int64, discountPercent int) int64 {
	if discountPercent <= 0 {
		return price
	}
	factor := decimal.NewFromInt(100 - int64(discountPercent)).Div(decimal.NewFromInt(100))
	return decimal.NewFromInt(price).Mul(factor).Round(0).IntPart()
}

func cloneItems(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, len(items))
	copy(out, items)
	return out
}

func newOrderNumber() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}
	return fmt.Sprintf("ORDER-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf)), nil
}
