package workflow

import (
	"fmt"
	"strings"
)

// TransitionContext carries optional caller hints used by guards.
// A nil field means the hint was not supplied and its guard is skipped.
type TransitionContext struct {
	HasLineItems          *bool `json:"has_line_items,omitempty"`
	AllQuantitiesReceived *bool `json:"all_quantities_received,omitempty"`
}

// NewTransitionContext builds a context with both hints supplied
func NewTransitionContext(hasLineItems, allQuantitiesReceived bool) *TransitionContext {
	return &TransitionContext{
		HasLineItems:          &hasLineItems,
		AllQuantitiesReceived: &allQuantitiesReceived,
	}
}

// ValidationResult is the accept/reject decision for a proposed transition
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Kind   Kind   `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
	From   Status `json:"from"`
	To     Status `json:"to"`
}

// Err returns nil for an accepted transition, otherwise a *TransitionError
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &TransitionError{Kind: r.Kind, From: r.From, To: r.To, Reason: r.Reason}
}

// guard is a business precondition attached to a target status
type guard struct {
	applies func(ctx *TransitionContext) bool
	reason  string
}

var targetGuards = map[Status]guard{
	StatusPendingApproval: {
		applies: func(ctx *TransitionContext) bool {
			return ctx.HasLineItems != nil && !*ctx.HasLineItems
		},
		reason: "Cannot submit for approval without line items",
	},
	StatusReceivedClosed: {
		applies: func(ctx *TransitionContext) bool {
			return ctx.AllQuantitiesReceived != nil && !*ctx.AllQuantitiesReceived
		},
		reason: "Cannot close until all quantities are received",
	},
}

// ValidateTransition gates a proposed transition against the table and the guards.
// It is a pure function of its inputs and the frozen table.
func ValidateTransition(from, to Status, ctx *TransitionContext) ValidationResult {
	result := ValidationResult{From: from, To: to}

	if !from.IsValid() {
		return reject(result, KindUnknownStatus, fmt.Sprintf("Unknown status %q", string(from)))
	}
	if !to.IsValid() {
		return reject(result, KindUnknownStatus, fmt.Sprintf("Unknown status %q", string(to)))
	}

	if !IsValidTransition(from, to) {
		return reject(result, KindIllegalTransition, illegalReason(from, to))
	}

	if ctx != nil {
		if g, ok := targetGuards[to]; ok && g.applies(ctx) {
			return reject(result, KindGuardViolation, g.reason)
		}
	}

	result.Valid = true
	return result
}

func reject(r ValidationResult, kind Kind, reason string) ValidationResult {
	r.Valid = false
	r.Kind = kind
	r.Reason = reason
	return r
}

func illegalReason(from, to Status) string {
	allowed := AllowedTransitions(from)
	list := "none (terminal status)"
	if len(allowed) > 0 {
		names := make([]string, len(allowed))
		for i, s := range allowed {
			names[i] = s.String()
		}
		list = strings.Join(names, ", ")
	}
	return fmt.Sprintf("Cannot transition from %s to %s. Allowed transitions: %s", from, to, list)
}
