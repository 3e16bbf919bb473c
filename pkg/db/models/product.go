package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product carries the catalog fields this core reads plus the two it owns:
// Stock and SoldCount. Everything else belongs to the catalog subsystem.
type Product struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name            string    `gorm:"column:name;not null"`
	Price           int64     `gorm:"column:price;not null"`
	DiscountPercent int       `gorm:"column:discount_percent;not null;default:0"`
	Stock           int       `gorm:"column:stock;not null;default:0"`
	SoldCount       int       `gorm:"column:sold_count;not null;default:0"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
