package entity

import "time"

// PurchaseOrder is a buyer's order to a supplier. Status is stored as the raw
// persisted string so that corrupted rows can still be loaded and reported.
type PurchaseOrder struct {
	ID         int64      `json:"id"`
	Number     string     `json:"number"`
	SupplierID string     `json:"supplier_id"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	Rev        int        `json:"rev"`
	CreatedBy  string     `json:"created_by"`
	Lines      []LineItem `json:"lines,omitempty"`
	Approvals  []Approval `json:"approvals,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// HasLineItems reports whether the order has at least one line
func (po *PurchaseOrder) HasLineItems() bool {
	return len(po.Lines) > 0
}

// AllQuantitiesReceived reports whether every line is fully received.
// An order with no lines has nothing outstanding.
func (po *PurchaseOrder) AllQuantitiesReceived() bool {
	for _, l := range po.Lines {
		if !l.FullyReceived() {
			return false
		}
	}
	return true
}

// AnyQuantityReceived reports whether at least one unit has been received
func (po *PurchaseOrder) AnyQuantityReceived() bool {
	for _, l := range po.Lines {
		if l.QuantityReceived > 0 {
			return true
		}
	}
	return false
}

// TotalCents sums the extended price of every line
func (po *PurchaseOrder) TotalCents() int64 {
	var total int64
	for _, l := range po.Lines {
		total += l.ExtendedCents()
	}
	return total
}

// FindLine returns the line with the given id
func (po *PurchaseOrder) FindLine(lineID int64) (*LineItem, bool) {
	for i := range po.Lines {
		if po.Lines[i].ID == lineID {
			return &po.Lines[i], true
		}
	}
	return nil, false
}

// ListFilter narrows purchase order listings
type ListFilter struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
