package entity

import "time"

// LineItem is a single ordered SKU on a purchase order
type LineItem struct {
	ID               int64     `json:"id"`
	PurchaseOrderID  int64     `json:"purchase_order_id"`
	LineNo           int       `json:"line_no"`
	SKU              string    `json:"sku"`
	Description      string    `json:"description"`
	QuantityOrdered  int64     `json:"quantity_ordered"`
	QuantityReceived int64     `json:"quantity_received"`
	UnitPriceCents   int64     `json:"unit_price_cents"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FullyReceived reports whether the ordered quantity has arrived
func (l LineItem) FullyReceived() bool {
	return l.QuantityReceived >= l.QuantityOrdered
}

// OutstandingQuantity is the quantity still expected from the supplier
func (l LineItem) OutstandingQuantity() int64 {
	if l.QuantityReceived >= l.QuantityOrdered {
		return 0
	}
	return l.QuantityOrdered - l.QuantityReceived
}

// ExtendedCents is quantity ordered times unit price
func (l LineItem) ExtendedCents() int64 {
	return l.QuantityOrdered * l.UnitPriceCents
}
