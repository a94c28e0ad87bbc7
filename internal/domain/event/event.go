package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by publishers and subscribers
const (
	KeyPreviousStatus = "previous_status"
	KeyNewStatus      = "new_status"
	KeyActor          = "actor"
	KeyNote           = "note"
	KeyRev            = "rev"
	KeySupplierID     = "supplier_id"
	KeyDecision       = "decision"
	KeyRawStatus      = "raw_status"
	KeyAnomaly        = "anomaly"

	// KeySequence is the id of the status history entry an event reports.
	// It grows with every committed transition of an order.
	KeySequence = "sequence"
)

// Event represents a domain event
type Event struct {
	ID              string                 `json:"id"`
	Type            Type                   `json:"type"`
	PurchaseOrderID int64                  `json:"purchase_order_id"`
	PONumber        string                 `json:"po_number"`
	Payload         map[string]interface{} `json:"payload"`
	Timestamp       time.Time              `json:"timestamp"`
	CorrelationID   string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, purchaseOrderID int64, poNumber string, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, purchaseOrderID, poNumber, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to a correlation chain
func NewEventWithCorrelation(eventType Type, purchaseOrderID int64, poNumber string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:              uuid.NewString(),
		Type:            eventType,
		PurchaseOrderID: purchaseOrderID,
		PONumber:        poNumber,
		Payload:         payload,
		Timestamp:       time.Now().UTC(),
		CorrelationID:   correlationID,
	}
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	clone := *e
	clone.Payload = newPayload
	return &clone
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case interface{ String() string }:
			return v.String()
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
