package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/tokosaku/backend/pkg/db/models"
	"github.com/tokosaku/backend/pkg/enums"
)

type orderView struct {
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TotalAmount   int64               `json:"total_amount"`
	CustomerName  string              `json:"customer_name"`
	CustomerEmail string              `json:"customer_email"`
	CustomerPhone string              `json:"customer_phone"`
	SnapToken     *string             `json:"snap_token,omitempty"`
	RedirectURL   *string             `json:"redirect_url,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	Items         []orderItemView     `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
}

type orderItemView struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
	UnitPrice int64     `json:"unit_price"`
	Size      *string   `json:"size,omitempty"`
	Color     *string   `json:"color,omitempty"`
}

func toOrderView(order *models.Order) orderView {
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemView{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Size:      item.Size,
			Color:     item.Color,
		})
	}
	return orderView{
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
		SnapToken:     order.SnapToken,
		RedirectURL:   order.RedirectURL,
		PaidAt:        order.PaidAt,
		Items:         items,
		CreatedAt:     order.CreatedAt,
	}
}
