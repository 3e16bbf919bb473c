package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokosaku/backend/pkg/db/models"
)

// PurchasedLine identifies a cart row that was converted into an order item.
type PurchasedLine struct {
	ProductID uuid.UUID
	Size      *string
	Color     *string
}

// Repository removes cart rows after checkout. Cleanup is best effort; a
// failure here never fails the order.
type Repository interface {
	RemovePurchased(ctx context.Context, customerID uuid.UUID, lines []PurchasedLine) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) RemovePurchased(ctx context.Context, customerID uuid.UUID, lines []PurchasedLine) error {
	for _, line := range lines {
		q := r.db.WithContext(ctx).
			Where("customer_id = ?", customerID).
			Where("product_id = ?", line.ProductID)
		q = matchVariant(q, "size", line.Size)
		q = matchVariant(q, "color", line.Color)
		if err := q.Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
	}
	return nil
}

func matchVariant(q *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *value)
}
