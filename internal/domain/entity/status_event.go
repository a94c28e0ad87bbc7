package entity

import "time"

// StatusEvent is one row of the append-only status history of a purchase order.
// PreviousStatus is empty for the creation event.
type StatusEvent struct {
	ID              int64     `json:"id"`
	PurchaseOrderID int64     `json:"purchase_order_id"`
	PreviousStatus  string    `json:"previous_status"`
	NewStatus       string    `json:"new_status"`
	Actor           string    `json:"actor"`
	Note            string    `json:"note"`
	Rev             int       `json:"rev"`
	Timestamp       time.Time `json:"timestamp"`
}
