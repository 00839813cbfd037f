package inventory

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type StockStatus string

const (
	InStock    StockStatus = "In Stock"
	LowStock   StockStatus = "Low Stock"
	OutOfStock StockStatus = "Out of Stock"
)

// lowStockRatio is the share of max stock at or below which an item is low.
const lowStockRatio = 0.25

// Item is a consumable tracked at the front desk.
type Item struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	MaxStock  int       `json:"max_stock"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status is derived from the stock level on every read.
func (i *Item) Status() StockStatus {
	switch {
	case i.Stock <= 0:
		return OutOfStock
	case float64(i.Stock) <= float64(i.MaxStock)*lowStockRatio:
		return LowStock
	default:
		return InStock
	}
}

func (i Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return json.Marshal(struct {
		plain
		Status StockStatus `json:"status"`
	}{plain(i), i.Status()})
}
