package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine persists one (dish, quantity) pairing for a guest session, plus the
// optional cached display snapshot used to render the cart offline.
type CartLine struct {
	ID        uint   `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID string `gorm:"column:session_id;index:idx_cart_lines_session_dish,unique;not null"`
	DishID    int64  `gorm:"column:dish_id;index:idx_cart_lines_session_dish,unique;not null"`
	Quantity  int    `gorm:"column:quantity;not null"`

	Name     *string          `gorm:"column:name"`
	Image    *string          `gorm:"column:image"`
	Price    *decimal.Decimal `gorm:"column:price;type:numeric"`
	CachedAt *time.Time       `gorm:"column:cached_at"`

	RestaurantID   *int64  `gorm:"column:restaurant_id"`
	RestaurantName *string `gorm:"column:restaurant_name"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table so the struct can be renamed freely.
func (CartLine) TableName() string {
	return "cart_lines"
}
