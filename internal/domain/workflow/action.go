package workflow

import "fmt"

// ActionID identifies a user operation offered for a status
type ActionID string

const (
	ActionSubmit         ActionID = "submit"
	ActionEdit           ActionID = "edit"
	ActionCancel         ActionID = "cancel"
	ActionApprove        ActionID = "approve"
	ActionReject         ActionID = "reject"
	ActionRelease        ActionID = "release"
	ActionSendToSupplier ActionID = "send_to_supplier"
	ActionAcknowledge    ActionID = "acknowledge"
	ActionRequestChange  ActionID = "request_change"
	ActionAmend          ActionID = "amend"
	ActionResubmit       ActionID = "resubmit"
	ActionCreateASN      ActionID = "create_asn"
	ActionMarkShipped    ActionID = "mark_partially_shipped"
	ActionReceive        ActionID = "receive"
	ActionClose          ActionID = "close"
)

// String returns the string representation of the action
func (a ActionID) String() string {
	return string(a)
}

// RecommendedAction is a derived suggestion for the next user operation.
// Target is empty for actions that do not change status.
type RecommendedAction struct {
	ID       ActionID     `json:"action"`
	Label    string       `json:"label"`
	Emphasis EmphasisTier `json:"emphasis"`
	Target   Status       `json:"target,omitempty"`
}

// Transitions reports whether executing the action changes status
func (a RecommendedAction) Transitions() bool {
	return a.Target != ""
}

var (
	cancelAction      = RecommendedAction{ID: ActionCancel, Label: "Cancel PO", Emphasis: EmphasisDestructive, Target: StatusCancelled}
	acknowledgeAction = RecommendedAction{ID: ActionAcknowledge, Label: "Record Acknowledgement", Emphasis: EmphasisSecondary, Target: StatusSupplierAcknowledged}
)

// Order matters: the first entries are rendered as primary buttons.
var recommendedActions = map[Status][]RecommendedAction{
	StatusDraft: {
		{ID: ActionSubmit, Label: "Submit for Approval", Emphasis: EmphasisDefault, Target: StatusPendingApproval},
		{ID: ActionEdit, Label: "Edit", Emphasis: EmphasisOutline},
		cancelAction,
	},
	StatusPendingApproval: {
		{ID: ActionApprove, Label: "Approve", Emphasis: EmphasisDefault, Target: StatusApproved},
		{ID: ActionReject, Label: "Reject", Emphasis: EmphasisDestructive, Target: StatusCancelled},
	},
	StatusApproved: {
		{ID: ActionRelease, Label: "Release", Emphasis: EmphasisDefault, Target: StatusReleased},
		{ID: ActionSendToSupplier, Label: "Send to Supplier", Emphasis: EmphasisSecondary, Target: StatusSentToSupplier},
		acknowledgeAction,
		cancelAction,
	},
	StatusReleased: {
		{ID: ActionSendToSupplier, Label: "Send to Supplier", Emphasis: EmphasisDefault, Target: StatusSentToSupplier},
		acknowledgeAction,
		cancelAction,
	},
	StatusSentToSupplier: {
		{ID: ActionAcknowledge, Label: "Record Acknowledgement", Emphasis: EmphasisDefault, Target: StatusSupplierAcknowledged},
		{ID: ActionRequestChange, Label: "Request Change", Emphasis: EmphasisOutline, Target: StatusChangeRequested},
		cancelAction,
	},
	StatusSupplierAcknowledged: {
		{ID: ActionCreateASN, Label: "Create ASN", Emphasis: EmphasisDefault, Target: StatusInTransit},
		{ID: ActionMarkShipped, Label: "Mark Partially Shipped", Emphasis: EmphasisSecondary, Target: StatusPartiallyShipped},
		{ID: ActionRequestChange, Label: "Request Change", Emphasis: EmphasisOutline, Target: StatusChangeRequested},
		cancelAction,
	},
	StatusChangeRequested: {
		{ID: ActionAmend, Label: "Amend PO", Emphasis: EmphasisDefault, Target: StatusAmended},
		{ID: ActionEdit, Label: "Edit Lines", Emphasis: EmphasisOutline},
		cancelAction,
	},
	StatusAmended: {
		{ID: ActionResubmit, Label: "Resubmit for Approval", Emphasis: EmphasisDefault, Target: StatusPendingApproval},
		cancelAction,
	},
	StatusPartiallyShipped: {
		{ID: ActionCreateASN, Label: "Create ASN", Emphasis: EmphasisDefault, Target: StatusInTransit},
		{ID: ActionReceive, Label: "Receive Goods", Emphasis: EmphasisSecondary, Target: StatusPartiallyReceived},
		cancelAction,
	},
	StatusInTransit: {
		{ID: ActionReceive, Label: "Receive Goods", Emphasis: EmphasisDefault, Target: StatusPartiallyReceived},
		{ID: ActionClose, Label: "Close PO", Emphasis: EmphasisSecondary, Target: StatusReceivedClosed},
		cancelAction,
	},
	StatusPartiallyReceived: {
		{ID: ActionClose, Label: "Close PO", Emphasis: EmphasisDefault, Target: StatusReceivedClosed},
		cancelAction,
	},
	StatusReceivedClosed: {},
	StatusCancelled:      {},
}

func init() {
	for _, s := range lifecycleOrder {
		actions, ok := recommendedActions[s]
		if !ok {
			panic(fmt.Sprintf("status %s has no recommended actions entry", s))
		}
		for _, a := range actions {
			if a.Transitions() && !IsValidTransition(s, a.Target) {
				panic(fmt.Sprintf("action %s on %s targets non-adjacent status %s", a.ID, s, a.Target))
			}
		}
	}
}

// RecommendedActions returns the ordered next actions for a status.
// The slice is a fresh copy on every call.
func RecommendedActions(s Status) ([]RecommendedAction, error) {
	actions, ok := recommendedActions[s]
	if !ok {
		return nil, newUnknownStatusError(string(s))
	}
	return append([]RecommendedAction{}, actions...), nil
}

// FindAction returns the recommended action with the given id for a status
func FindAction(s Status, id ActionID) (RecommendedAction, bool) {
	for _, a := range recommendedActions[s] {
		if a.ID == id {
			return a, true
		}
	}
	return RecommendedAction{}, false
}
