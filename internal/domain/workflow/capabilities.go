package workflow

// Capability membership is authored independently of the transition table.
// Several sets are broader than the outgoing edges of their statuses.
var (
	editLinesStatuses = statusSet(StatusDraft, StatusChangeRequested)

	submitStatuses = statusSet(StatusDraft, StatusAmended)

	approveStatuses = statusSet(StatusPendingApproval)

	acknowledgeStatuses = statusSet(StatusApproved, StatusReleased, StatusSentToSupplier)

	requestChangeStatuses = statusSet(StatusSentToSupplier, StatusSupplierAcknowledged)

	createASNStatuses = statusSet(
		StatusSupplierAcknowledged,
		StatusApproved,
		StatusReleased,
		StatusPartiallyShipped,
	)

	receiveStatuses = statusSet(StatusPartiallyShipped, StatusInTransit, StatusPartiallyReceived)

	createInvoiceStatuses = statusSet(
		StatusSupplierAcknowledged,
		StatusPartiallyShipped,
		StatusInTransit,
		StatusPartiallyReceived,
		StatusReceivedClosed,
	)

	cancelStatuses = statusSet(
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
	)
)

func statusSet(statuses ...Status) map[Status]bool {
	m := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

// CanEditLines reports whether line items may be added, changed or removed
func CanEditLines(s Status) bool { return editLinesStatuses[s] }

// CanSubmitForApproval reports whether the order can be sent to an approver
func CanSubmitForApproval(s Status) bool { return submitStatuses[s] }

// CanApprove reports whether an approver may approve or reject the order
func CanApprove(s Status) bool { return approveStatuses[s] }

// CanAcknowledge reports whether the supplier may acknowledge the order
func CanAcknowledge(s Status) bool { return acknowledgeStatuses[s] }

// CanRequestChange reports whether the supplier may ask for an amendment
func CanRequestChange(s Status) bool { return requestChangeStatuses[s] }

// CanCreateASN reports whether the supplier may send an advance ship notice
func CanCreateASN(s Status) bool { return createASNStatuses[s] }

// CanReceive reports whether goods may be received against the order
func CanReceive(s Status) bool { return receiveStatuses[s] }

// CanCreateInvoice reports whether the supplier may invoice the order
func CanCreateInvoice(s Status) bool { return createInvoiceStatuses[s] }

// CanCancel reports whether the order may still be cancelled
func CanCancel(s Status) bool { return cancelStatuses[s] }

// CapabilitySet is every capability predicate evaluated for one status
type CapabilitySet struct {
	EditLines         bool `json:"can_edit_lines"`
	SubmitForApproval bool `json:"can_submit_for_approval"`
	Approve           bool `json:"can_approve"`
	Acknowledge       bool `json:"can_acknowledge"`
	RequestChange     bool `json:"can_request_change"`
	CreateASN         bool `json:"can_create_asn"`
	Receive           bool `json:"can_receive"`
	CreateInvoice     bool `json:"can_create_invoice"`
	Cancel            bool `json:"can_cancel"`
}

// Capabilities evaluates all predicates for a status
func Capabilities(s Status) CapabilitySet {
	return CapabilitySet{
		EditLines:         CanEditLines(s),
		SubmitForApproval: CanSubmitForApproval(s),
		Approve:           CanApprove(s),
		Acknowledge:       CanAcknowledge(s),
		RequestChange:     CanRequestChange(s),
		CreateASN:         CanCreateASN(s),
		Receive:           CanReceive(s),
		CreateInvoice:     CanCreateInvoice(s),
		Cancel:            CanCancel(s),
	}
}
