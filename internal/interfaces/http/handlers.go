package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/application/service"
	"github.com/garyjia/procurement-hub/internal/application/workflow"
	"github.com/garyjia/procurement-hub/internal/domain/entity"
	domainwf "github.com/garyjia/procurement-hub/internal/domain/workflow"
)

// ActorHeader carries the caller identity recorded in history and approvals
const ActorHeader = "X-Actor-ID"

const anonymousActor = "anonymous"

// Error kinds for failures that are not status-machine rejections
const (
	KindNotFound               = "not_found"
	KindConcurrentModification = "concurrent_modification"
	KindCapabilityDenied       = "capability_denied"
	KindInvalidInput           = "invalid_input"
	KindInternal               = "internal"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	orders  service.PurchaseOrderService
	exports service.ExportService
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(orders service.PurchaseOrderService, exports service.ExportService, logger Logger) *Handlers {
	return &Handlers{
		orders:  orders,
		exports: exports,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// StatusInfo describes one lifecycle status for rendering
type StatusInfo struct {
	Status             domainwf.Status              `json:"status"`
	Display            domainwf.Display             `json:"display"`
	Terminal           bool                         `json:"terminal"`
	AllowedTransitions []domainwf.Status            `json:"allowed_transitions"`
	Actions            []domainwf.RecommendedAction `json:"actions"`
	Capabilities       domainwf.CapabilitySet       `json:"capabilities"`
}

// ValidateRequest is the body of POST /api/transitions/validate
type ValidateRequest struct {
	From    string                      `json:"from" binding:"required"`
	To      string                      `json:"to" binding:"required"`
	Context *domainwf.TransitionContext `json:"context"`
}

// TransitionRequest is the body of POST /api/purchase-orders/:id/transitions
type TransitionRequest struct {
	To             string `json:"to" binding:"required"`
	Note           string `json:"note"`
	ExpectedStatus string `json:"expected_status"`
}

// CommentRequest is the body of action endpoints
type CommentRequest struct {
	Comment string `json:"comment"`
}

// ApprovalRequest is the body of POST /api/purchase-orders/:id/approvals
type ApprovalRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

// ReceiptRequest is the body of POST /api/purchase-orders/:id/receipts
type ReceiptRequest struct {
	Lines []service.ReceiptLine `json:"lines" binding:"required"`
}

// ListPurchaseOrdersRequest represents query parameters for listing orders
type ListPurchaseOrdersRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// TransitionResponse describes a committed status change
type TransitionResponse struct {
	PurchaseOrder *entity.PurchaseOrder `json:"purchase_order"`
	From          domainwf.Status       `json:"from"`
	To            domainwf.Status       `json:"to"`
	Event         *entity.StatusEvent   `json:"event"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// ListStatuses handles GET /api/statuses
func (h *Handlers) ListStatuses(c *gin.Context) {
	statuses := domainwf.AllStatuses()
	infos := make([]StatusInfo, 0, len(statuses))
	for _, s := range statuses {
		display, _ := domainwf.StatusDisplay(s)
		actions, _ := domainwf.RecommendedActions(s)
		infos = append(infos, StatusInfo{
			Status:             s,
			Display:            display,
			Terminal:           s.IsTerminal(),
			AllowedTransitions: domainwf.AllowedTransitions(s),
			Actions:            actions,
			Capabilities:       domainwf.Capabilities(s),
		})
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: infos})
}

// ValidateTransition handles POST /api/transitions/validate.
// It is a pure query and never touches a purchase order.
func (h *Handlers) ValidateTransition(c *gin.Context) {
	var req ValidateRequest
	if !h.bind(c, &req) {
		return
	}

	result := domainwf.ValidateTransition(domainwf.Status(req.From), domainwf.Status(req.To), req.Context)
	if result.Kind == domainwf.KindUnknownStatus {
		h.logger.Error("Status anomaly in validation request",
			"from", req.From,
			"to", req.To,
			"reason", result.Reason,
		)
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListPurchaseOrders handles GET /api/purchase-orders
func (h *Handlers) ListPurchaseOrders(c *gin.Context) {
	var req ListPurchaseOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, http.StatusBadRequest, KindInvalidInput, "invalid query parameters")
		return
	}

	orders, err := h.orders.ListPurchaseOrders(c.Request.Context(), entity.ListFilter{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: orders})
}

// CreatePurchaseOrder handles POST /api/purchase-orders
func (h *Handlers) CreatePurchaseOrder(c *gin.Context) {
	var in service.CreatePurchaseOrderInput
	if !h.bind(c, &in) {
		return
	}
	in.CreatedBy = actor(c)

	po, err := h.orders.CreatePurchaseOrder(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: po})
}

// GetPurchaseOrder handles GET /api/purchase-orders/:id
func (h *Handlers) GetPurchaseOrder(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.orders.GetPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// GetHistory handles GET /api/purchase-orders/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	history, err := h.orders.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// AddLine handles POST /api/purchase-orders/:id/lines
func (h *Handlers) AddLine(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var in service.LineInput
	if !h.bind(c, &in) {
		return
	}

	line, err := h.orders.AddLine(c.Request.Context(), id, in, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: line})
}

// UpdateLine handles PUT /api/purchase-orders/:id/lines/:lineId
func (h *Handlers) UpdateLine(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.pathID(c, "lineId")
	if !ok {
		return
	}
	var in service.LineInput
	if !h.bind(c, &in) {
		return
	}

	line, err := h.orders.UpdateLine(c.Request.Context(), id, lineID, in, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: line})
}

// RemoveLine handles DELETE /api/purchase-orders/:id/lines/:lineId
func (h *Handlers) RemoveLine(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.pathID(c, "lineId")
	if !ok {
		return
	}

	if err := h.orders.RemoveLine(c.Request.Context(), id, lineID, actor(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// Transition handles POST /api/purchase-orders/:id/transitions
func (h *Handlers) Transition(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req TransitionRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.orders.Transition(c.Request.Context(), id,
		domainwf.Status(req.To), actor(c), req.Note, domainwf.Status(req.ExpectedStatus))
	h.writeTransition(c, result, err)
}

// ExecuteAction handles POST /api/purchase-orders/:id/actions/:action
func (h *Handlers) ExecuteAction(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}

	result, err := h.orders.ExecuteAction(c.Request.Context(), id,
		domainwf.ActionID(c.Param("action")), actor(c), req.Comment)
	h.writeTransition(c, result, err)
}

// RecordApproval handles POST /api/purchase-orders/:id/approvals
func (h *Handlers) RecordApproval(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ApprovalRequest
	if !h.bind(c, &req) {
		return
	}

	var (
		result *workflow.TransitionResult
		err    error
	)
	switch req.Decision {
	case entity.ApprovalActionApprove:
		result, err = h.orders.Approve(c.Request.Context(), id, actor(c), req.Comment)
	case entity.ApprovalActionReject:
		result, err = h.orders.Reject(c.Request.Context(), id, actor(c), req.Comment)
	default:
		h.fail(c, http.StatusBadRequest, KindInvalidInput, "decision must be approve or reject")
		return
	}
	h.writeTransition(c, result, err)
}

// RecordReceipt handles POST /api/purchase-orders/:id/receipts
func (h *Handlers) RecordReceipt(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ReceiptRequest
	if !h.bind(c, &req) {
		return
	}

	po, err := h.orders.RecordReceipt(c.Request.Context(), id, req.Lines, actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: po})
}

// ExportPurchaseOrder handles GET /api/purchase-orders/:id/export
func (h *Handlers) ExportPurchaseOrder(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	file, err := h.exports.ExportPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func (h *Handlers) writeTransition(c *gin.Context, result *workflow.TransitionResult, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: TransitionResponse{
			PurchaseOrder: result.PurchaseOrder,
			From:          result.From,
			To:            result.To,
			Event:         result.Event,
		},
	})
}

// writeError maps application errors onto status codes. Transition
// rejections carry their reason through verbatim.
func (h *Handlers) writeError(c *gin.Context, err error) {
	if te, ok := domainwf.AsTransitionError(err); ok {
		code := http.StatusBadRequest
		if te.Kind == domainwf.KindUnknownStatus {
			code = http.StatusUnprocessableEntity
		}
		h.fail(c, code, string(te.Kind), te.Reason)
		return
	}

	switch {
	case errors.Is(err, port.ErrNotFound):
		h.fail(c, http.StatusNotFound, KindNotFound, err.Error())
	case errors.Is(err, port.ErrConcurrentModification):
		h.fail(c, http.StatusConflict, KindConcurrentModification, err.Error())
	case errors.Is(err, port.ErrCapabilityDenied):
		h.fail(c, http.StatusBadRequest, KindCapabilityDenied, err.Error())
	case errors.Is(err, port.ErrInvalidInput):
		h.fail(c, http.StatusBadRequest, KindInvalidInput, err.Error())
	default:
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		h.fail(c, http.StatusInternalServerError, KindInternal, "internal error")
	}
}

func (h *Handlers) fail(c *gin.Context, code int, kind, message string) {
	c.JSON(code, Response{
		Success: false,
		Error:   message,
		Kind:    kind,
	})
}

func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, http.StatusBadRequest, KindInvalidInput, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handlers) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, http.StatusBadRequest, KindInvalidInput, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func actor(c *gin.Context) string {
	if a := strings.TrimSpace(c.GetHeader(ActorHeader)); a != "" {
		return a
	}
	return anonymousActor
}
