package entity

import "time"

// Approval decisions
const (
	ApprovalActionApprove = "approve"
	ApprovalActionReject  = "reject"
)

// Approval records an approver's decision on a purchase order
type Approval struct {
	ID              int64     `json:"id"`
	PurchaseOrderID int64     `json:"purchase_order_id"`
	Approver        string    `json:"approver"`
	Action          string    `json:"action"`
	Comment         string    `json:"comment"`
	Timestamp       time.Time `json:"timestamp"`
}
