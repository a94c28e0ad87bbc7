package workflow

// Status represents a purchase order lifecycle status
type Status string

const (
	StatusDraft                Status = "draft"
	StatusPendingApproval      Status = "pending_approval"
	StatusApproved             Status = "approved"
	StatusReleased             Status = "released"
	StatusSentToSupplier       Status = "sent_to_supplier"
	StatusSupplierAcknowledged Status = "supplier_acknowledged"
	StatusChangeRequested      Status = "change_requested"
	StatusAmended              Status = "amended"
	StatusPartiallyShipped     Status = "partially_shipped"
	StatusInTransit            Status = "in_transit"
	StatusPartiallyReceived    Status = "partially_received"
	StatusReceivedClosed       Status = "received_closed"
	StatusCancelled            Status = "cancelled"
)

// lifecycleOrder lists every status in the order a PO normally moves through them
var lifecycleOrder = []Status{
	StatusDraft,
	StatusPendingApproval,
	StatusApproved,
	StatusReleased,
	StatusSentToSupplier,
	StatusSupplierAcknowledged,
	StatusChangeRequested,
	StatusAmended,
	StatusPartiallyShipped,
	StatusInTransit,
	StatusPartiallyReceived,
	StatusReceivedClosed,
	StatusCancelled,
}

var validStatuses = func() map[Status]bool {
	m := make(map[Status]bool, len(lifecycleOrder))
	for _, s := range lifecycleOrder {
		m[s] = true
	}
	return m
}()

// AllStatuses returns all statuses in lifecycle order
func AllStatuses() []Status {
	return append([]Status(nil), lifecycleOrder...)
}

// InitialStatus returns the status every purchase order is created in
func InitialStatus() Status {
	return StatusDraft
}

// ParseStatus converts a raw stored or client-supplied value into a Status.
// Unknown values are never coerced to a default.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", newUnknownStatusError(raw)
	}
	return s, nil
}

// IsValid returns true if the status is one of the 13 lifecycle statuses
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if the status has no outgoing transitions
func (s Status) IsTerminal() bool {
	return IsTerminal(s)
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
