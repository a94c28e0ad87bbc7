package event

// Type identifies the type of domain event
type Type string

const (
	TypePurchaseOrderCreated Type = "po.created"
	TypeStatusChanged        Type = "po.status_changed"
	TypeApprovalRecorded     Type = "po.approval_recorded"
	TypeLinesChanged         Type = "po.lines_changed"
	TypeReceiptRecorded      Type = "po.receipt_recorded"
	TypeStatusAnomaly        Type = "po.status_anomaly"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypePurchaseOrderCreated,
		TypeStatusChanged,
		TypeApprovalRecorded,
		TypeLinesChanged,
		TypeReceiptRecorded,
		TypeStatusAnomaly:
		return true
	default:
		return false
	}
}
