package workflow

import "fmt"

// EmphasisTier is the visual weight the command surface gives a badge or button
type EmphasisTier string

const (
	EmphasisOutline     EmphasisTier = "outline"
	EmphasisSecondary   EmphasisTier = "secondary"
	EmphasisDefault     EmphasisTier = "default"
	EmphasisDestructive EmphasisTier = "destructive"
)

// IsValid returns true for the four supported tiers
func (e EmphasisTier) IsValid() bool {
	switch e {
	case EmphasisOutline, EmphasisSecondary, EmphasisDefault, EmphasisDestructive:
		return true
	default:
		return false
	}
}

// Display is derived UI metadata for a status. It is never persisted.
type Display struct {
	Label    string       `json:"label"`
	Emphasis EmphasisTier `json:"emphasis"`
}

var statusDisplays = map[Status]Display{
	StatusDraft:                {Label: "Draft", Emphasis: EmphasisOutline},
	StatusPendingApproval:      {Label: "Pending Approval", Emphasis: EmphasisSecondary},
	StatusApproved:             {Label: "Approved", Emphasis: EmphasisDefault},
	StatusReleased:             {Label: "Released", Emphasis: EmphasisDefault},
	StatusSentToSupplier:       {Label: "Sent to Supplier", Emphasis: EmphasisSecondary},
	StatusSupplierAcknowledged: {Label: "Supplier Acknowledged", Emphasis: EmphasisDefault},
	StatusChangeRequested:      {Label: "Change Requested", Emphasis: EmphasisDestructive},
	StatusAmended:              {Label: "Amended", Emphasis: EmphasisSecondary},
	StatusPartiallyShipped:     {Label: "Partially Shipped", Emphasis: EmphasisSecondary},
	StatusInTransit:            {Label: "In Transit", Emphasis: EmphasisSecondary},
	StatusPartiallyReceived:    {Label: "Partially Received", Emphasis: EmphasisSecondary},
	StatusReceivedClosed:       {Label: "Received & Closed", Emphasis: EmphasisDefault},
	StatusCancelled:            {Label: "Cancelled", Emphasis: EmphasisDestructive},
}

func init() {
	for _, s := range lifecycleOrder {
		d, ok := statusDisplays[s]
		if !ok {
			panic(fmt.Sprintf("status %s has no display entry", s))
		}
		if !d.Emphasis.IsValid() {
			panic(fmt.Sprintf("status %s has invalid emphasis %q", s, d.Emphasis))
		}
	}
}

// StatusDisplay returns the label and emphasis tier for a status
func StatusDisplay(s Status) (Display, error) {
	d, ok := statusDisplays[s]
	if !ok {
		return Display{}, newUnknownStatusError(string(s))
	}
	return d, nil
}
