package vouchers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tokosaku/backend/pkg/db/models"
	"github.com/tokosaku/backend/pkg/enums"
	pkgerrors "github.com/tokosaku/backend/pkg/errors"
)

// Discount is the amount a validated voucher takes off an order total.
type Discount struct {
	Voucher *models.Voucher
	Amount  int64
}

// Validate checks a voucher code against its validity window, usage limit,
// and minimum purchase, and computes the discount for the given subtotal.
// Read-only; usage is advanced separately inside the order transaction.
func Validate(ctx context.Context, db *gorm.DB, code string, subtotal int64, now time.Time) (*Discount, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	}

	var voucher models.Voucher
	err := db.WithContext(ctx).Where("code = ?", code).First(&voucher).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}

	if now.Before(voucher.StartsAt) || now.After(voucher.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher is not active")
	}
	if voucher.UsageLimit > 0 && voucher.UsageCount >= voucher.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher usage limit reached")
	}
	if subtotal < voucher.MinPurchase {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total below voucher minimum purchase")
	}

	return &Discount{Voucher: &voucher, Amount: discountAmount(&voucher, subtotal)}, nil
}

// IncrementUsage advances the voucher usage counter, refusing to exceed the
// limit under concurrent checkouts.
func IncrementUsage(ctx context.Context, tx *gorm.DB, voucherID any) error {
	res := tx.WithContext(ctx).Exec(`
		UPDATE vouchers
		SET usage_count = usage_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND (usage_limit = 0 OR usage_count < usage_limit)
	`, voucherID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment voucher usage")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "voucher usage limit reached")
	}
	return nil
}

// DecrementUsage releases a voucher use claimed by a checkout that was later
// rolled back. The counter never goes below zero.
func DecrementUsage(ctx context.Context, tx *gorm.DB, voucherID any) error {
	res := tx.WithContext(ctx).Exec(`
		UPDATE vouchers
		SET usage_count = usage_count - 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND usage_count > 0
	`, voucherID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement voucher usage")
	}
	return nil
}

func discountAmount(voucher *models.Voucher, subtotal int64) int64 {
	var amount int64
	switch voucher.DiscountType {
	case enums.DiscountTypePercentage:
		amount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(voucher.Value)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		if voucher.MaxDiscount > 0 && amount > voucher.MaxDiscount {
			amount = voucher.MaxDiscount
		}
	case enums.DiscountTypeFixed:
		amount = voucher.Value
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}
