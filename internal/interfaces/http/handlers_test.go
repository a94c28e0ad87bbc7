package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-hub/internal/application/port/porttest"
	"github.com/garyjia/procurement-hub/internal/application/service"
	"github.com/garyjia/procurement-hub/internal/application/workflow"
	"github.com/garyjia/procurement-hub/internal/domain/entity"
	"github.com/garyjia/procurement-hub/internal/infrastructure/export"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type errorLog struct {
	mu      sync.Mutex
	entries []map[string]interface{}
}

func (l *errorLog) Info(string, ...interface{}) {}

func (l *errorLog) Error(msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := map[string]interface{}{"msg": msg}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			entry[key] = keysAndValues[i+1]
		}
	}
	l.entries = append(l.entries, entry)
}

func (l *errorLog) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e["msg"].(string))
	}
	return out
}

type apiFixture struct {
	store  *porttest.Store
	router *gin.Engine
	log    *errorLog
}

func newAPIFixture() *apiFixture {
	gin.SetMode(gin.TestMode)

	store := porttest.NewStore()
	engine := workflow.NewEngine(store.PurchaseOrders(), store.LineItems(), store.StatusEvents(), store)
	orders := service.NewPurchaseOrderService(
		store.PurchaseOrders(),
		store.LineItems(),
		store.ApprovalRecords(),
		store.StatusEvents(),
		store,
		engine,
		nil,
		nopLogger{},
	)
	exports := service.NewExportService(orders, export.NewXLSXExporter(zap.NewNop()), nil, nopLogger{})

	log := &errorLog{}
	server := NewServer(DefaultServerConfig(), orders, exports, log)
	return &apiFixture{store: store, router: server.Router(), log: log}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ActorHeader, "alice")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (f *apiFixture) createOrder(t *testing.T, lines int) int64 {
	t.Helper()
	in := map[string]interface{}{"supplier_id": "SUP-1"}
	var items []map[string]interface{}
	for i := 0; i < lines; i++ {
		items = append(items, map[string]interface{}{
			"sku":              fmt.Sprintf("SKU-%d", i+1),
			"quantity_ordered": 10,
			"unit_price_cents": 100,
		})
	}
	in["lines"] = items

	w, env := f.do(t, http.MethodPost, "/api/purchase-orders", in)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var po entity.PurchaseOrder
	require.NoError(t, json.Unmarshal(env.Data, &po))
	return po.ID
}

func (f *apiFixture) transition(t *testing.T, id int64, to string) (*httptest.ResponseRecorder, envelope) {
	return f.do(t, http.MethodPost, fmt.Sprintf("/api/purchase-orders/%d/transitions", id), map[string]string{"to": to})
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture()
	w, env := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestListStatuses(t *testing.T) {
	f := newAPIFixture()
	w, env := f.do(t, http.MethodGet, "/api/statuses", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var infos []StatusInfo
	require.NoError(t, json.Unmarshal(env.Data, &infos))
	require.Len(t, infos, 13)
	assert.Equal(t, "draft", string(infos[0].Status))
	assert.Equal(t, "Draft", infos[0].Display.Label)
	assert.True(t, infos[0].Capabilities.EditLines)

	terminal := 0
	for _, info := range infos {
		if info.Terminal {
			terminal++
			assert.Empty(t, info.AllowedTransitions)
		}
	}
	assert.Equal(t, 2, terminal)
}

func TestValidateTransitionEndpoint(t *testing.T) {
	f := newAPIFixture()

	tests := []struct {
		name   string
		body   map[string]interface{}
		valid  bool
		kind   string
		reason string
	}{
		{
			name:  "legal",
			body:  map[string]interface{}{"from": "draft", "to": "pending_approval"},
			valid: true,
		},
		{
			name:   "illegal",
			body:   map[string]interface{}{"from": "draft", "to": "approved"},
			kind:   "illegal_transition",
			reason: "Cannot transition from draft to approved. Allowed transitions: pending_approval, cancelled",
		},
		{
			name:   "guard",
			body:   map[string]interface{}{"from": "draft", "to": "pending_approval", "context": map[string]bool{"has_line_items": false}},
			kind:   "guard_violation",
			reason: "Cannot submit for approval without line items",
		},
		{
			name: "unknown",
			body: map[string]interface{}{"from": "SHIPPED", "to": "draft"},
			kind: "unknown_status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := f.do(t, http.MethodPost, "/api/transitions/validate", tt.body)
			require.Equal(t, http.StatusOK, w.Code)

			var result struct {
				Valid  bool   `json:"valid"`
				Kind   string `json:"kind"`
				Reason string `json:"reason"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &result))
			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.kind, result.Kind)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, result.Reason)
			}
		})
	}
}

func TestValidateTransitionEndpoint_BadBody(t *testing.T) {
	f := newAPIFixture()
	w, env := f.do(t, http.MethodPost, "/api/transitions/validate", map[string]string{"from": "draft"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidInput, env.Kind)
}

func TestCreateAndGetPurchaseOrder(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 2)

	w, env := f.do(t, http.MethodGet, fmt.Sprintf("/api/purchase-orders/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view struct {
		Number       string `json:"number"`
		Status       string `json:"status"`
		CreatedBy    string `json:"created_by"`
		StatusKnown  bool   `json:"status_known"`
		TotalCents   int64  `json:"total_cents"`
		Capabilities struct {
			EditLines bool `json:"can_edit_lines"`
		} `json:"capabilities"`
		Actions []struct {
			Action string `json:"action"`
		} `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "draft", view.Status)
	assert.Equal(t, "alice", view.CreatedBy)
	assert.True(t, view.StatusKnown)
	assert.Equal(t, int64(2000), view.TotalCents)
	assert.True(t, view.Capabilities.EditLines)
	require.NotEmpty(t, view.Actions)
	assert.Equal(t, "submit", view.Actions[0].Action)
}

func TestGetPurchaseOrder_Errors(t *testing.T) {
	f := newAPIFixture()

	w, env := f.do(t, http.MethodGet, "/api/purchase-orders/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, KindNotFound, env.Kind)

	w, env = f.do(t, http.MethodGet, "/api/purchase-orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidInput, env.Kind)
}

func TestCreatePurchaseOrder_Invalid(t *testing.T) {
	f := newAPIFixture()
	w, env := f.do(t, http.MethodPost, "/api/purchase-orders", map[string]interface{}{"supplier_id": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidInput, env.Kind)
	assert.False(t, env.Success)
}

func TestTransition_IllegalReturnsReasonVerbatim(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 1)

	w, env := f.transition(t, id, "approved")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "illegal_transition", env.Kind)
	assert.Equal(t, "Cannot transition from draft to approved. Allowed transitions: pending_approval, cancelled", env.Error)
	assert.Equal(t, "draft", f.store.Status(id))
}

func TestTransition_GuardViolation(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 0)

	w, env := f.transition(t, id, "pending_approval")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "guard_violation", env.Kind)
	assert.Equal(t, "Cannot submit for approval without line items", env.Error)
}

func TestTransition_UnknownStoredStatus(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 1)
	f.store.SetStatus(id, "SHIPPED")

	w, env := f.transition(t, id, "cancelled")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "unknown_status", env.Kind)
	assert.Equal(t, "SHIPPED", f.store.Status(id))
}

func TestTransition_ExpectedStatusConflict(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 1)

	w, env := f.do(t, http.MethodPost, fmt.Sprintf("/api/purchase-orders/%d/transitions", id), map[string]string{
		"to":              "pending_approval",
		"expected_status": "approved",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, KindConcurrentModification, env.Kind)
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 1)
	base := fmt.Sprintf("/api/purchase-orders/%d", id)

	w, _ := f.do(t, http.MethodPost, base+"/actions/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := f.do(t, http.MethodPost, base+"/approvals", map[string]string{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidInput, env.Kind)

	w, env = f.do(t, http.MethodPost, base+"/approvals", map[string]string{"decision": "approve", "comment": "within budget"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "pending_approval", resp.From)
	assert.Equal(t, "approved", resp.To)

	approvals := f.store.Approvals()
	require.Len(t, approvals, 1)
	assert.Equal(t, "alice", approvals[0].Approver)

	w, env = f.do(t, http.MethodPost, base+"/approvals", map[string]string{"decision": "approve"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "illegal_transition", env.Kind)

	// approved -> cancelled is an edge, but approval decisions need can_approve
	w, env = f.do(t, http.MethodPost, base+"/approvals", map[string]string{"decision": "reject"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindCapabilityDenied, env.Kind)
	assert.Equal(t, "approved", f.store.Status(id))
	assert.Len(t, f.store.Approvals(), 1)
}

func TestExecuteAction_NotAvailable(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 1)

	w, env := f.do(t, http.MethodPost, fmt.Sprintf("/api/purchase-orders/%d/actions/close", id), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindCapabilityDenied, env.Kind)
}

func TestLineEndpoints(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 0)
	base := fmt.Sprintf("/api/purchase-orders/%d/lines", id)

	w, env := f.do(t, http.MethodPost, base, map[string]interface{}{"sku": "A", "quantity_ordered": 3, "unit_price_cents": 50})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var line entity.LineItem
	require.NoError(t, json.Unmarshal(env.Data, &line))

	w, _ = f.do(t, http.MethodPut, fmt.Sprintf("%s/%d", base, line.ID), map[string]interface{}{"sku": "A", "quantity_ordered": 5, "unit_price_cents": 50})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = f.do(t, http.MethodPost, base, map[string]interface{}{"sku": "B", "quantity_ordered": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidInput, env.Kind)

	w, _ = f.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", base, line.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = f.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", base, line.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, KindNotFound, env.Kind)
}

func TestReceiptsAndHistory(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 1)
	for _, to := range []string{"pending_approval", "approved", "released", "sent_to_supplier", "supplier_acknowledged", "in_transit"} {
		w, _ := f.transition(t, id, to)
		require.Equal(t, http.StatusOK, w.Code, "to %s: %s", to, w.Body.String())
	}

	w, env := f.do(t, http.MethodGet, fmt.Sprintf("/api/purchase-orders/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var po entity.PurchaseOrder
	require.NoError(t, json.Unmarshal(env.Data, &po))
	require.Len(t, po.Lines, 1)
	lineID := po.Lines[0].ID

	receipts := fmt.Sprintf("/api/purchase-orders/%d/receipts", id)
	w, env = f.do(t, http.MethodPost, receipts, map[string]interface{}{
		"lines": []map[string]int64{{"line_id": lineID, "quantity": 11}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidInput, env.Kind)

	w, _ = f.do(t, http.MethodPost, receipts, map[string]interface{}{
		"lines": []map[string]int64{{"line_id": lineID, "quantity": 10}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "partially_received", f.store.Status(id))

	w, _ = f.transition(t, id, "received_closed")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = f.do(t, http.MethodGet, fmt.Sprintf("/api/purchase-orders/%d/history", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []entity.StatusEvent
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 9)
	assert.Equal(t, "received_closed", history[len(history)-1].NewStatus)
	assert.Equal(t, "alice", history[len(history)-1].Actor)
}

func TestListPurchaseOrders(t *testing.T) {
	f := newAPIFixture()
	f.createOrder(t, 1)
	cancelled := f.createOrder(t, 1)
	w, _ := f.transition(t, cancelled, "cancelled")
	require.Equal(t, http.StatusOK, w.Code)

	w, env := f.do(t, http.MethodGet, "/api/purchase-orders?status=cancelled", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []entity.PurchaseOrder
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, cancelled, orders[0].ID)

	w, _ = f.do(t, http.MethodGet, "/api/purchase-orders?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportPurchaseOrder(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 2)

	w, _ := f.do(t, http.MethodGet, fmt.Sprintf("/api/purchase-orders/%d/export", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "-rev1.xlsx")
	assert.NotZero(t, w.Body.Len())
}

func TestActorDefaultsToAnonymous(t *testing.T) {
	f := newAPIFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/purchase-orders", bytes.NewReader([]byte(`{"supplier_id":"SUP-2"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var po entity.PurchaseOrder
	require.NoError(t, json.Unmarshal(env.Data, &po))
	assert.Equal(t, "anonymous", po.CreatedBy)
}

func TestRequestIDHeader(t *testing.T) {
	f := newAPIFixture()

	w, _ := f.do(t, http.MethodGet, "/health", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestValidateTransitionEndpoint_LogsStatusAnomaly(t *testing.T) {
	f := newAPIFixture()

	w, _ := f.do(t, http.MethodPost, "/api/transitions/validate", map[string]interface{}{"from": "draft", "to": "approved"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.log.messages(), "an illegal edge is not an anomaly")

	w, _ = f.do(t, http.MethodPost, "/api/transitions/validate", map[string]interface{}{"from": "SHIPPED", "to": "draft"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, []string{"Status anomaly in validation request"}, f.log.messages())
	entry := f.log.entries[0]
	assert.Equal(t, "SHIPPED", entry["from"])
	assert.Equal(t, "draft", entry["to"])
	assert.NotEmpty(t, entry["reason"])
}

func TestTransition_ReceivingNeedsReceiptEndpoint(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 1)
	f.store.SetStatus(id, "in_transit")

	w, env := f.transition(t, id, "partially_received")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidInput, env.Kind)

	w, env = f.do(t, http.MethodPost, fmt.Sprintf("/api/purchase-orders/%d/actions/receive", id), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindInvalidInput, env.Kind)
	assert.Contains(t, env.Error, "/receipts")
	assert.Equal(t, "in_transit", f.store.Status(id))
}

func TestTransition_ApprovedOverHTTPRecordsApproval(t *testing.T) {
	f := newAPIFixture()
	id := f.createOrder(t, 1)

	w, _ := f.transition(t, id, "pending_approval")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = f.transition(t, id, "approved")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	approvals := f.store.Approvals()
	require.Len(t, approvals, 1)
	assert.Equal(t, "alice", approvals[0].Approver)
	assert.Equal(t, entity.ApprovalActionApprove, approvals[0].Action)
}
