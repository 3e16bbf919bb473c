package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokosaku/backend/pkg/enums"
)

// Order is the aggregate root for a customer purchase. OrderNumber is the
// correlation key shared with the payment gateway.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber   string              `gorm:"column:order_number;not null;uniqueIndex:idx_orders_order_number"`
	CustomerID    uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`

	// StockUpdated latches once inventory side effects have been applied.
	// Flipped only through the conditional update in the order repository.
	StockUpdated bool `gorm:"column:stock_updated;not null;default:false"`

	TotalAmount   int64  `gorm:"column:total_amount;not null"`
	CustomerName  string `gorm:"column:customer_name;not null"`
	CustomerEmail string `gorm:"column:customer_email;not null"`
	CustomerPhone string `gorm:"column:customer_phone;not null"`

	TransactionID   *string    `gorm:"column:transaction_id"`
	TransactionType *string    `gorm:"column:transaction_type"`
	TransactionTime *time.Time `gorm:"column:transaction_time"`
	PaidAt          *time.Time `gorm:"column:paid_at"`
	SnapToken       *string    `gorm:"column:snap_token"`
	RedirectURL     *string    `gorm:"column:redirect_url"`

	Items     []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
