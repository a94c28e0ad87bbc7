package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type stringer string

func (s stringer) String() string { return string(s) }

func TestType_String(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      string
	}{
		{name: "created", eventType: TypePurchaseOrderCreated, want: "po.created"},
		{name: "status changed", eventType: TypeStatusChanged, want: "po.status_changed"},
		{name: "approval recorded", eventType: TypeApprovalRecorded, want: "po.approval_recorded"},
		{name: "lines changed", eventType: TypeLinesChanged, want: "po.lines_changed"},
		{name: "receipt recorded", eventType: TypeReceiptRecorded, want: "po.receipt_recorded"},
		{name: "status anomaly", eventType: TypeStatusAnomaly, want: "po.status_anomaly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("Type.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{name: "valid - status changed", eventType: TypeStatusChanged, want: true},
		{name: "valid - created", eventType: TypePurchaseOrderCreated, want: true},
		{name: "invalid - unknown type", eventType: Type("unknown.type"), want: false},
		{name: "invalid - empty string", eventType: Type(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		KeyPreviousStatus: "draft",
		KeyNewStatus:      "pending_approval",
	}

	event := NewEvent(TypeStatusChanged, 123, "PO-1A2B3C4D", payload)

	if event == nil {
		t.Fatal("NewEvent() returned nil")
	}
	if _, err := uuid.Parse(event.ID); err != nil {
		t.Errorf("Event ID %q is not a uuid: %v", event.ID, err)
	}
	if event.Type != TypeStatusChanged {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeStatusChanged)
	}
	if event.PurchaseOrderID != 123 {
		t.Errorf("Event PurchaseOrderID = %v, want %v", event.PurchaseOrderID, 123)
	}
	if event.PONumber != "PO-1A2B3C4D" {
		t.Errorf("Event PONumber = %v, want %v", event.PONumber, "PO-1A2B3C4D")
	}
	if event.GetPayloadString(KeyNewStatus) != "pending_approval" {
		t.Errorf("Event Payload[new_status] = %v, want %v", event.Payload[KeyNewStatus], "pending_approval")
	}
	if event.CorrelationID == "" || event.CorrelationID == event.ID {
		t.Error("Event CorrelationID should be a distinct id")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	event := NewEvent(TypePurchaseOrderCreated, 1, "PO-1", nil)
	if event.Payload == nil {
		t.Fatal("Event Payload should not be nil")
	}
	event.Payload["k"] = "v"
}

func TestNewEventWithCorrelation(t *testing.T) {
	correlationID := "test-correlation-123"

	event := NewEventWithCorrelation(TypeApprovalRecorded, 789, "PO-789", nil, correlationID)

	if event.CorrelationID != correlationID {
		t.Errorf("Event CorrelationID = %v, want %v", event.CorrelationID, correlationID)
	}
	if event.PurchaseOrderID != 789 {
		t.Errorf("Event PurchaseOrderID = %v, want %v", event.PurchaseOrderID, 789)
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypePurchaseOrderCreated, 1, "PO-1", map[string]interface{}{
		"key1": "value1",
	})

	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.Payload["key1"] != "value1" || modified.Payload["key2"] != "value2" {
		t.Errorf("Modified payload = %v", modified.Payload)
	}
	if modified.ID != original.ID || modified.CorrelationID != original.CorrelationID {
		t.Error("Modified event should keep identity fields")
	}
	if modified.PurchaseOrderID != original.PurchaseOrderID {
		t.Error("Modified event should have same PurchaseOrderID")
	}
}

func TestEvent_GetPayloadString(t *testing.T) {
	event := NewEvent(TypeStatusChanged, 1, "PO-1", map[string]interface{}{
		"status":  "approved",
		"typed":   stringer("in_transit"),
		"number":  123,
		"missing": nil,
	})

	tests := []struct {
		key  string
		want string
	}{
		{key: "status", want: "approved"},
		{key: "typed", want: "in_transit"},
		{key: "number", want: ""},
		{key: "missing", want: ""},
		{key: "nonexistent", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := event.GetPayloadString(tt.key); got != tt.want {
				t.Errorf("GetPayloadString(%v) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestEvent_GetPayloadInt(t *testing.T) {
	event := NewEvent(TypeStatusChanged, 1, "PO-1", map[string]interface{}{
		"int64":   int64(100),
		"int":     50,
		"float64": 75.5,
		"string":  "not a number",
	})

	tests := []struct {
		key  string
		want int64
	}{
		{key: "int64", want: 100},
		{key: "int", want: 50},
		{key: "float64", want: 75},
		{key: "string", want: 0},
		{key: "nonexistent", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := event.GetPayloadInt(tt.key); got != tt.want {
				t.Errorf("GetPayloadInt(%v) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestEvent_GetPayloadBool(t *testing.T) {
	event := NewEvent(TypeReceiptRecorded, 1, "PO-1", map[string]interface{}{
		"fully_received": true,
		"string":         "true",
	})

	if !event.GetPayloadBool("fully_received") {
		t.Error("GetPayloadBool(fully_received) = false, want true")
	}
	if event.GetPayloadBool("string") {
		t.Error("GetPayloadBool(string) = true, want false")
	}
	if event.GetPayloadBool("nonexistent") {
		t.Error("GetPayloadBool(nonexistent) = true, want false")
	}
}
