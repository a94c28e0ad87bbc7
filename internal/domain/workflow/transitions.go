package workflow

// Table is a frozen adjacency list of legal status transitions
type Table struct {
	edges map[Status][]Status
	index map[Status]map[Status]bool
}

// purchaseOrderTable is built once at startup and never mutated afterwards.
// amended -> pending_approval is the only edge that closes a cycle.
var purchaseOrderTable = buildPurchaseOrderTable()

func buildPurchaseOrderTable() *Table {
	b := newTableBuilder()

	b.Configure(StatusDraft).
		Permit(StatusPendingApproval, StatusCancelled)

	b.Configure(StatusPendingApproval).
		Permit(StatusApproved, StatusCancelled)

	b.Configure(StatusApproved).
		Permit(StatusReleased, StatusSentToSupplier, StatusSupplierAcknowledged, StatusCancelled)

	b.Configure(StatusReleased).
		Permit(StatusSentToSupplier, StatusSupplierAcknowledged, StatusCancelled)

	b.Configure(StatusSentToSupplier).
		Permit(StatusSupplierAcknowledged, StatusChangeRequested, StatusCancelled)

	b.Configure(StatusSupplierAcknowledged).
		Permit(StatusChangeRequested, StatusPartiallyShipped, StatusInTransit, StatusCancelled)

	b.Configure(StatusChangeRequested).
		Permit(StatusAmended, StatusCancelled)

	b.Configure(StatusAmended).
		Permit(StatusPendingApproval, StatusCancelled)

	b.Configure(StatusPartiallyShipped).
		Permit(StatusInTransit, StatusPartiallyReceived, StatusCancelled)

	b.Configure(StatusInTransit).
		Permit(StatusPartiallyReceived, StatusReceivedClosed, StatusCancelled)

	b.Configure(StatusPartiallyReceived).
		Permit(StatusReceivedClosed, StatusCancelled)

	// terminal
	b.Configure(StatusReceivedClosed)
	b.Configure(StatusCancelled)

	return b.Build()
}

// DefaultTable returns the process-wide purchase order transition table
func DefaultTable() *Table {
	return purchaseOrderTable
}

// Allowed returns a copy of the successor set for a status.
// Unknown statuses have no successors.
func (t *Table) Allowed(from Status) []Status {
	return append([]Status{}, t.edges[from]...)
}

// Contains reports whether from -> to is an edge of the table
func (t *Table) Contains(from, to Status) bool {
	return t.index[from][to]
}

// Terminal reports whether a known status has no outgoing edges
func (t *Table) Terminal(s Status) bool {
	targets, ok := t.edges[s]
	return ok && len(targets) == 0
}

// AllowedTransitions returns the fixed successor set for a status
func AllowedTransitions(from Status) []Status {
	return purchaseOrderTable.Allowed(from)
}

// IsValidTransition returns true iff to is a member of AllowedTransitions(from)
func IsValidTransition(from, to Status) bool {
	return purchaseOrderTable.Contains(from, to)
}

// IsTerminal returns true iff AllowedTransitions(s) is empty for a known status
func IsTerminal(s Status) bool {
	return purchaseOrderTable.Terminal(s)
}
