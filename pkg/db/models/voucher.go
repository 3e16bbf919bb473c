package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokosaku/backend/pkg/enums"
)

// Voucher is a discount rule consulted read-only during checkout; only its
// usage counter is advanced by this core, inside the order-creation transaction.
type Voucher struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code         string             `gorm:"column:code;not null;uniqueIndex:idx_vouchers_code"`
	DiscountType enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	Value        int64              `gorm:"column:value;not null"`
	MaxDiscount  int64              `gorm:"column:max_discount;not null;default:0"`
	MinPurchase  int64              `gorm:"column:min_purchase;not null;default:0"`
	UsageCount   int                `gorm:"column:usage_count;not null;default:0"`
	UsageLimit   int                `gorm:"column:usage_limit;not null;default:0"`
	StartsAt     time.Time          `gorm:"column:starts_at;not null"`
	ExpiresAt    time.Time          `gorm:"column:expires_at;not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *Voucher) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
