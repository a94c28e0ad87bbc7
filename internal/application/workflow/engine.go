package workflow

import (
	"context"

	"github.com/garyjia/procurement-hub/internal/domain/entity"
	domainwf "github.com/garyjia/procurement-hub/internal/domain/workflow"
)

// Values carried under event.KeyAnomaly on po.status_anomaly events
const (
	AnomalyUnknownStatus   = "unknown_status"
	AnomalyHistoryMismatch = "history_mismatch"
)

// Hook runs inside the transition transaction after the status row and
// history entry are written. Returning an error rolls the whole step back.
type Hook func(ctx context.Context, po *entity.PurchaseOrder) error

// Capability is an extra status predicate an operation must satisfy on top of
// the transition table, such as "only approvers act on pending_approval".
type Capability struct {
	Name  string
	Check func(domainwf.Status) bool
}

// TransitionRequest asks the engine to move a purchase order to a new status
type TransitionRequest struct {
	PurchaseOrderID int64
	To              domainwf.Status
	// ExpectedStatus, when set, must match the stored status at write time
	ExpectedStatus domainwf.Status
	Actor          string
	Note           string
	Require        *Capability
	BeforeCommit   Hook
}

// TransitionResult describes a committed transition
type TransitionResult struct {
	PurchaseOrder *entity.PurchaseOrder
	Event         *entity.StatusEvent
	From          domainwf.Status
	To            domainwf.Status
}

// TransitionEngine is the only writer of purchase order status
type TransitionEngine interface {
	// Transition validates and applies a status change atomically
	Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error)

	// CurrentStatus returns the parsed stored status of a purchase order
	CurrentStatus(ctx context.Context, purchaseOrderID int64) (domainwf.Status, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
