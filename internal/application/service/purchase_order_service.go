package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/procurement-hub/internal/application/dispatcher"
	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/application/workflow"
	"github.com/garyjia/procurement-hub/internal/domain/entity"
	"github.com/garyjia/procurement-hub/internal/domain/event"
	domainwf "github.com/garyjia/procurement-hub/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const (
	defaultCurrency = "USD"
	defaultPageSize = 50
	maxPageSize     = 200
)

// LineInput describes a line to add or replace
type LineInput struct {
	SKU             string `json:"sku"`
	Description     string `json:"description"`
	QuantityOrdered int64  `json:"quantity_ordered"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
}

// CreatePurchaseOrderInput is the payload for a new draft purchase order
type CreatePurchaseOrderInput struct {
	SupplierID string      `json:"supplier_id"`
	Currency   string      `json:"currency"`
	CreatedBy  string      `json:"-"`
	Lines      []LineInput `json:"lines"`
}

// ReceiptLine is a quantity received against one line
type ReceiptLine struct {
	LineID   int64 `json:"line_id"`
	Quantity int64 `json:"quantity"`
}

// PurchaseOrderView is a purchase order with everything derived from its status
type PurchaseOrderView struct {
	*entity.PurchaseOrder
	StatusKnown        bool                         `json:"status_known"`
	Display            *domainwf.Display            `json:"display,omitempty"`
	Terminal           bool                         `json:"terminal"`
	AllowedTransitions []domainwf.Status            `json:"allowed_transitions"`
	Actions            []domainwf.RecommendedAction `json:"actions"`
	Capabilities       *domainwf.CapabilitySet      `json:"capabilities,omitempty"`
	TotalCents         int64                        `json:"total_cents"`
}

// PurchaseOrderService manages purchase orders through their lifecycle
type PurchaseOrderService interface {
	CreatePurchaseOrder(ctx context.Context, in CreatePurchaseOrderInput) (*entity.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id int64) (*PurchaseOrderView, error)
	ListPurchaseOrders(ctx context.Context, filter entity.ListFilter) ([]*entity.PurchaseOrder, error)
	GetHistory(ctx context.Context, id int64) ([]*entity.StatusEvent, error)

	AddLine(ctx context.Context, id int64, in LineInput, actor string) (*entity.LineItem, error)
	UpdateLine(ctx context.Context, id, lineID int64, in LineInput, actor string) (*entity.LineItem, error)
	RemoveLine(ctx context.Context, id, lineID int64, actor string) error

	// Transition moves a purchase order to an explicit target status
	Transition(ctx context.Context, id int64, to domainwf.Status, actor, note string, expected domainwf.Status) (*workflow.TransitionResult, error)

	Submit(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error)
	Approve(ctx context.Context, id int64, actor, comment string) (*workflow.TransitionResult, error)
	Reject(ctx context.Context, id int64, actor, comment string) (*workflow.TransitionResult, error)
	Acknowledge(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error)
	RequestChange(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error)
	Amend(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error)
	Cancel(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error)
	Close(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error)

	// ExecuteAction runs a recommended action of the current status
	ExecuteAction(ctx context.Context, id int64, action domainwf.ActionID, actor, comment string) (*workflow.TransitionResult, error)

	RecordReceipt(ctx context.Context, id int64, lines []ReceiptLine, actor string) (*entity.PurchaseOrder, error)
}

type purchaseOrderServiceImpl struct {
	poRepo       port.PurchaseOrderRepository
	lineRepo     port.LineItemRepository
	approvalRepo port.ApprovalRepository
	eventRepo    port.StatusEventRepository
	txManager    port.TransactionManager
	engine       workflow.TransitionEngine
	dispatcher   dispatcher.Dispatcher
	logger       Logger
}

// NewPurchaseOrderService creates a new PurchaseOrderService
func NewPurchaseOrderService(
	poRepo port.PurchaseOrderRepository,
	lineRepo port.LineItemRepository,
	approvalRepo port.ApprovalRepository,
	eventRepo port.StatusEventRepository,
	txManager port.TransactionManager,
	engine workflow.TransitionEngine,
	d dispatcher.Dispatcher,
	logger Logger,
) PurchaseOrderService {
	return &purchaseOrderServiceImpl{
		poRepo:       poRepo,
		lineRepo:     lineRepo,
		approvalRepo: approvalRepo,
		eventRepo:    eventRepo,
		txManager:    txManager,
		engine:       engine,
		dispatcher:   d,
		logger:       logger,
	}
}

// CreatePurchaseOrder creates a draft purchase order with optional lines
func (s *purchaseOrderServiceImpl) CreatePurchaseOrder(ctx context.Context, in CreatePurchaseOrderInput) (*entity.PurchaseOrder, error) {
	if strings.TrimSpace(in.SupplierID) == "" {
		return nil, fmt.Errorf("%w: supplier_id is required", port.ErrInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", port.ErrInvalidInput)
	}
	for i, l := range in.Lines {
		if err := validateLine(l); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC()
	po := &entity.PurchaseOrder{
		Number:     newPONumber(),
		SupplierID: strings.TrimSpace(in.SupplierID),
		Currency:   currency,
		Status:     domainwf.InitialStatus().String(),
		Rev:        1,
		CreatedBy:  in.CreatedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.poRepo.Create(txCtx, po); err != nil {
			return fmt.Errorf("create purchase order: %w", err)
		}

		for i, l := range in.Lines {
			line := newLine(po.ID, i+1, l, now)
			if err := s.lineRepo.Create(txCtx, line); err != nil {
				return fmt.Errorf("create line: %w", err)
			}
			po.Lines = append(po.Lines, *line)
		}

		initial := &entity.StatusEvent{
			PurchaseOrderID: po.ID,
			PreviousStatus:  "",
			NewStatus:       po.Status,
			Actor:           in.CreatedBy,
			Note:            "Purchase order created",
			Rev:             po.Rev,
			Timestamp:       now,
		}
		if err := s.eventRepo.Create(txCtx, initial); err != nil {
			return fmt.Errorf("create status event: %w", err)
		}

		return nil
	})

	if err != nil {
		s.logger.Error("Failed to create purchase order", "error", err, "supplier_id", in.SupplierID)
		return nil, err
	}

	s.logger.Info("Purchase order created", "id", po.ID, "number", po.Number, "supplier_id", po.SupplierID)

	s.dispatch(ctx, event.TypePurchaseOrderCreated, po, map[string]interface{}{
		event.KeyNewStatus:  po.Status,
		event.KeyActor:      in.CreatedBy,
		event.KeySupplierID: po.SupplierID,
	})

	return po, nil
}

// GetPurchaseOrder returns the order with lines, approvals and derived status data
func (s *purchaseOrderServiceImpl) GetPurchaseOrder(ctx context.Context, id int64) (*PurchaseOrderView, error) {
	po, err := s.loadFull(ctx, id)
	if err != nil {
		return nil, err
	}

	approvals, err := s.approvalRepo.GetByPurchaseOrderID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get approvals", "error", err, "id", id)
		return nil, fmt.Errorf("get approvals: %w", err)
	}
	po.Approvals = approvals

	view := &PurchaseOrderView{
		PurchaseOrder:      po,
		AllowedTransitions: []domainwf.Status{},
		Actions:            []domainwf.RecommendedAction{},
		TotalCents:         po.TotalCents(),
	}

	status, err := domainwf.ParseStatus(po.Status)
	if err != nil {
		// corrupted rows stay readable so they can be inspected
		s.logger.Error("Purchase order has unknown status", "id", id, "raw_status", po.Status)
		return view, nil
	}

	display, _ := domainwf.StatusDisplay(status)
	actions, _ := domainwf.RecommendedActions(status)
	caps := domainwf.Capabilities(status)

	view.StatusKnown = true
	view.Display = &display
	view.Terminal = status.IsTerminal()
	view.AllowedTransitions = domainwf.AllowedTransitions(status)
	view.Actions = actions
	view.Capabilities = &caps

	return view, nil
}

// ListPurchaseOrders returns a page of purchase orders, newest first
func (s *purchaseOrderServiceImpl) ListPurchaseOrders(ctx context.Context, filter entity.ListFilter) ([]*entity.PurchaseOrder, error) {
	if filter.Status != "" {
		if _, err := domainwf.ParseStatus(filter.Status); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	orders, err := s.poRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list purchase orders", "error", err, "status", filter.Status)
		return nil, err
	}
	return orders, nil
}

// GetHistory returns the status history of a purchase order, oldest first
func (s *purchaseOrderServiceImpl) GetHistory(ctx context.Context, id int64) ([]*entity.StatusEvent, error) {
	if _, err := s.getOrder(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.eventRepo.GetByPurchaseOrderID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get history", "error", err, "id", id)
		return nil, fmt.Errorf("get history: %w", err)
	}
	return history, nil
}

// AddLine appends a line while the order is editable
func (s *purchaseOrderServiceImpl) AddLine(ctx context.Context, id int64, in LineInput, actor string) (*entity.LineItem, error) {
	if err := validateLine(in); err != nil {
		return nil, err
	}

	var line *entity.LineItem
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.requireEditable(txCtx, id); err != nil {
			return err
		}

		lineNo, err := s.lineRepo.NextLineNo(txCtx, id)
		if err != nil {
			return fmt.Errorf("next line number: %w", err)
		}

		line = newLine(id, lineNo, in, time.Now().UTC())
		if err := s.lineRepo.Create(txCtx, line); err != nil {
			return fmt.Errorf("create line: %w", err)
		}
		return s.poRepo.Touch(txCtx, id)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Line added", "id", id, "line_id", line.ID, "sku", line.SKU, "actor", actor)
	s.dispatchLines(ctx, id, "added", line.ID, actor)
	return line, nil
}

// UpdateLine replaces a line's details while the order is editable
func (s *purchaseOrderServiceImpl) UpdateLine(ctx context.Context, id, lineID int64, in LineInput, actor string) (*entity.LineItem, error) {
	if err := validateLine(in); err != nil {
		return nil, err
	}

	var line *entity.LineItem
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.requireEditable(txCtx, id); err != nil {
			return err
		}

		existing, err := s.getLine(txCtx, id, lineID)
		if err != nil {
			return err
		}

		existing.SKU = strings.TrimSpace(in.SKU)
		existing.Description = in.Description
		existing.QuantityOrdered = in.QuantityOrdered
		existing.UnitPriceCents = in.UnitPriceCents
		existing.UpdatedAt = time.Now().UTC()

		if err := s.lineRepo.Update(txCtx, existing); err != nil {
			return fmt.Errorf("update line: %w", err)
		}
		line = existing
		return s.poRepo.Touch(txCtx, id)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Line updated", "id", id, "line_id", lineID, "actor", actor)
	s.dispatchLines(ctx, id, "updated", lineID, actor)
	return line, nil
}

// RemoveLine deletes a line while the order is editable
func (s *purchaseOrderServiceImpl) RemoveLine(ctx context.Context, id, lineID int64, actor string) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.requireEditable(txCtx, id); err != nil {
			return err
		}
		if _, err := s.getLine(txCtx, id, lineID); err != nil {
			return err
		}
		if err := s.lineRepo.Delete(txCtx, lineID); err != nil {
			return fmt.Errorf("delete line: %w", err)
		}
		return s.poRepo.Touch(txCtx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Line removed", "id", id, "line_id", lineID, "actor", actor)
	s.dispatchLines(ctx, id, "removed", lineID, actor)
	return nil
}

// Transition moves a purchase order to an explicit target status. A move to
// approved is an approver decision and records an approval; a move to
// partially_received needs goods already on the order.
func (s *purchaseOrderServiceImpl) Transition(ctx context.Context, id int64, to domainwf.Status, actor, note string, expected domainwf.Status) (*workflow.TransitionResult, error) {
	req := workflow.TransitionRequest{
		PurchaseOrderID: id,
		To:              to,
		ExpectedStatus:  expected,
		Actor:           actor,
		Note:            note,
	}

	switch to {
	case domainwf.StatusApproved:
		return s.decide(ctx, id, entity.ApprovalActionApprove, to, actor, note, expected)
	case domainwf.StatusPartiallyReceived:
		req.BeforeCommit = func(_ context.Context, po *entity.PurchaseOrder) error {
			if !po.AnyQuantityReceived() {
				return fmt.Errorf("%w: no goods received yet, record a receipt instead", port.ErrInvalidInput)
			}
			return nil
		}
	}
	return s.engine.Transition(ctx, req)
}

// Submit sends a draft or amended order for approval
func (s *purchaseOrderServiceImpl) Submit(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error) {
	return s.gated(ctx, id, domainwf.StatusPendingApproval, actor, note, "submit", domainwf.CanSubmitForApproval)
}

// Approve records an approval and moves the order to approved
func (s *purchaseOrderServiceImpl) Approve(ctx context.Context, id int64, actor, comment string) (*workflow.TransitionResult, error) {
	return s.decide(ctx, id, entity.ApprovalActionApprove, domainwf.StatusApproved, actor, comment, "")
}

// Reject records a rejection and cancels the order
func (s *purchaseOrderServiceImpl) Reject(ctx context.Context, id int64, actor, comment string) (*workflow.TransitionResult, error) {
	return s.decide(ctx, id, entity.ApprovalActionReject, domainwf.StatusCancelled, actor, comment, "")
}

// Acknowledge records the supplier's acknowledgement
func (s *purchaseOrderServiceImpl) Acknowledge(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error) {
	return s.gated(ctx, id, domainwf.StatusSupplierAcknowledged, actor, note, "acknowledge", domainwf.CanAcknowledge)
}

// RequestChange records a supplier change request
func (s *purchaseOrderServiceImpl) RequestChange(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error) {
	return s.gated(ctx, id, domainwf.StatusChangeRequested, actor, note, "request a change on", domainwf.CanRequestChange)
}

// Amend opens a new revision after a change request
func (s *purchaseOrderServiceImpl) Amend(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error) {
	return s.Transition(ctx, id, domainwf.StatusAmended, actor, note, "")
}

// Cancel cancels the order from any non-terminal status
func (s *purchaseOrderServiceImpl) Cancel(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error) {
	return s.gated(ctx, id, domainwf.StatusCancelled, actor, note, "cancel", domainwf.CanCancel)
}

// Close closes a fully received order
func (s *purchaseOrderServiceImpl) Close(ctx context.Context, id int64, actor, note string) (*workflow.TransitionResult, error) {
	return s.Transition(ctx, id, domainwf.StatusReceivedClosed, actor, note, "")
}

// ExecuteAction resolves a recommended action against the stored status
func (s *purchaseOrderServiceImpl) ExecuteAction(ctx context.Context, id int64, action domainwf.ActionID, actor, comment string) (*workflow.TransitionResult, error) {
	current, err := s.engine.CurrentStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	rec, ok := domainwf.FindAction(current, action)
	if !ok {
		return nil, fmt.Errorf("%w: action %s is not available in status %s", port.ErrCapabilityDenied, action, current)
	}
	if !rec.Transitions() {
		return nil, fmt.Errorf("%w: action %s does not change status", port.ErrInvalidInput, action)
	}

	switch action {
	case domainwf.ActionApprove:
		return s.Approve(ctx, id, actor, comment)
	case domainwf.ActionReject:
		return s.Reject(ctx, id, actor, comment)
	case domainwf.ActionReceive:
		return nil, fmt.Errorf("%w: action %s needs received quantities, post them to /receipts", port.ErrInvalidInput, action)
	}

	return s.Transition(ctx, id, rec.Target, actor, comment, current)
}

// RecordReceipt adds received quantities; a first receipt moves the order to partially_received
func (s *purchaseOrderServiceImpl) RecordReceipt(ctx context.Context, id int64, lines []ReceiptLine, actor string) (*entity.PurchaseOrder, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one receipt line is required", port.ErrInvalidInput)
	}
	for _, rl := range lines {
		if rl.Quantity <= 0 {
			return nil, fmt.Errorf("%w: received quantity must be positive", port.ErrInvalidInput)
		}
	}

	current, err := s.engine.CurrentStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domainwf.CanReceive(current) {
		return nil, fmt.Errorf("%w: cannot receive goods on a purchase order in status %s", port.ErrCapabilityDenied, current)
	}

	if current != domainwf.StatusPartiallyReceived {
		if _, err := s.engine.Transition(ctx, workflow.TransitionRequest{
			PurchaseOrderID: id,
			To:              domainwf.StatusPartiallyReceived,
			ExpectedStatus:  current,
			Actor:           actor,
			Note:            "Goods received",
			Require:         &workflow.Capability{Name: "receive goods on", Check: domainwf.CanReceive},
			BeforeCommit: func(txCtx context.Context, po *entity.PurchaseOrder) error {
				return s.applyReceipt(txCtx, po, lines)
			},
		}); err != nil {
			return nil, err
		}
	} else {
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			po, err := s.loadFull(txCtx, id)
			if err != nil {
				return err
			}
			if po.Status != current.String() {
				return fmt.Errorf("%w: expected %s, found %s", port.ErrConcurrentModification, current, po.Status)
			}
			if err := s.applyReceipt(txCtx, po, lines); err != nil {
				return err
			}
			return s.poRepo.Touch(txCtx, id)
		})
		if err != nil {
			return nil, err
		}
	}

	po, err := s.loadFull(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Receipt recorded", "id", id, "lines", len(lines), "actor", actor, "fully_received", po.AllQuantitiesReceived())
	s.dispatch(ctx, event.TypeReceiptRecorded, po, map[string]interface{}{
		event.KeyActor:   actor,
		"fully_received": po.AllQuantitiesReceived(),
	})

	return po, nil
}

// applyReceipt validates quantities against the fresh lines on po and persists them
func (s *purchaseOrderServiceImpl) applyReceipt(ctx context.Context, po *entity.PurchaseOrder, lines []ReceiptLine) error {
	pending := make(map[int64]int64, len(lines))
	for _, rl := range lines {
		pending[rl.LineID] += rl.Quantity
	}

	for lineID, qty := range pending {
		line, ok := po.FindLine(lineID)
		if !ok {
			return fmt.Errorf("line %d on purchase order %d: %w", lineID, po.ID, port.ErrNotFound)
		}
		if qty > line.OutstandingQuantity() {
			return fmt.Errorf("%w: line %d has %d outstanding, cannot receive %d",
				port.ErrInvalidInput, line.LineNo, line.OutstandingQuantity(), qty)
		}
	}

	for lineID, qty := range pending {
		if err := s.lineRepo.AddReceivedQuantity(ctx, lineID, qty); err != nil {
			return fmt.Errorf("record received quantity: %w", err)
		}
		line, _ := po.FindLine(lineID)
		line.QuantityReceived += qty
	}
	return nil
}

// gated runs a transition that also requires a capability of the source status
func (s *purchaseOrderServiceImpl) gated(ctx context.Context, id int64, to domainwf.Status, actor, note, verb string, check func(domainwf.Status) bool) (*workflow.TransitionResult, error) {
	return s.engine.Transition(ctx, workflow.TransitionRequest{
		PurchaseOrderID: id,
		To:              to,
		Actor:           actor,
		Note:            note,
		Require:         &workflow.Capability{Name: verb, Check: check},
	})
}

// decide records an approver decision in the same transaction as the status change
func (s *purchaseOrderServiceImpl) decide(ctx context.Context, id int64, decision string, to domainwf.Status, actor, comment string, expected domainwf.Status) (*workflow.TransitionResult, error) {
	var approval *entity.Approval

	result, err := s.engine.Transition(ctx, workflow.TransitionRequest{
		PurchaseOrderID: id,
		To:              to,
		ExpectedStatus:  expected,
		Actor:           actor,
		Note:            comment,
		Require:         &workflow.Capability{Name: decision, Check: domainwf.CanApprove},
		BeforeCommit: func(txCtx context.Context, po *entity.PurchaseOrder) error {
			approval = &entity.Approval{
				PurchaseOrderID: po.ID,
				Approver:        actor,
				Action:          decision,
				Comment:         comment,
				Timestamp:       time.Now().UTC(),
			}
			if err := s.approvalRepo.Create(txCtx, approval); err != nil {
				return fmt.Errorf("create approval: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	result.PurchaseOrder.Approvals = append(result.PurchaseOrder.Approvals, *approval)

	s.logger.Info("Approval recorded", "id", id, "decision", decision, "approver", actor)
	s.dispatch(ctx, event.TypeApprovalRecorded, result.PurchaseOrder, map[string]interface{}{
		event.KeyDecision: decision,
		event.KeyActor:    actor,
		event.KeyNote:     comment,
	})

	return result, nil
}

// requireEditable loads the order and checks the line-editing capability
func (s *purchaseOrderServiceImpl) requireEditable(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	po, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := domainwf.ParseStatus(po.Status)
	if err != nil {
		s.logger.Error("Purchase order has unknown status", "id", id, "raw_status", po.Status)
		return nil, err
	}
	if !domainwf.CanEditLines(status) {
		return nil, fmt.Errorf("%w: cannot edit lines of a purchase order in status %s", port.ErrCapabilityDenied, status)
	}
	return po, nil
}

func (s *purchaseOrderServiceImpl) getOrder(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	po, err := s.poRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get purchase order", "error", err, "id", id)
		return nil, fmt.Errorf("get purchase order: %w", err)
	}
	if po == nil {
		return nil, fmt.Errorf("purchase order %d: %w", id, port.ErrNotFound)
	}
	return po, nil
}

func (s *purchaseOrderServiceImpl) loadFull(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	po, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.lineRepo.GetByPurchaseOrderID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get lines", "error", err, "id", id)
		return nil, fmt.Errorf("get lines: %w", err)
	}
	po.Lines = lines
	return po, nil
}

func (s *purchaseOrderServiceImpl) getLine(ctx context.Context, id, lineID int64) (*entity.LineItem, error) {
	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("get line: %w", err)
	}
	if line == nil || line.PurchaseOrderID != id {
		return nil, fmt.Errorf("line %d on purchase order %d: %w", lineID, id, port.ErrNotFound)
	}
	return line, nil
}

func (s *purchaseOrderServiceImpl) dispatch(ctx context.Context, t event.Type, po *entity.PurchaseOrder, payload map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(t, po.ID, po.Number, payload))
}

func (s *purchaseOrderServiceImpl) dispatchLines(ctx context.Context, id int64, change string, lineID int64, actor string) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeLinesChanged, id, "", map[string]interface{}{
		"change":       change,
		"line_id":      lineID,
		event.KeyActor: actor,
	}))
}

// Line caps keep quantity times unit price well inside int64
const (
	maxQuantityOrdered = 1_000_000
	maxUnitPriceCents  = 10_000_000_000
)

func validateLine(in LineInput) error {
	if strings.TrimSpace(in.SKU) == "" {
		return fmt.Errorf("%w: sku is required", port.ErrInvalidInput)
	}
	if in.QuantityOrdered <= 0 {
		return fmt.Errorf("%w: quantity_ordered must be positive", port.ErrInvalidInput)
	}
	if in.QuantityOrdered > maxQuantityOrdered {
		return fmt.Errorf("%w: quantity_ordered cannot exceed %d", port.ErrInvalidInput, maxQuantityOrdered)
	}
	if in.UnitPriceCents < 0 {
		return fmt.Errorf("%w: unit_price_cents cannot be negative", port.ErrInvalidInput)
	}
	if in.UnitPriceCents > maxUnitPriceCents {
		return fmt.Errorf("%w: unit_price_cents cannot exceed %d", port.ErrInvalidInput, maxUnitPriceCents)
	}
	return nil
}

func newLine(purchaseOrderID int64, lineNo int, in LineInput, now time.Time) *entity.LineItem {
	return &entity.LineItem{
		PurchaseOrderID: purchaseOrderID,
		LineNo:          lineNo,
		SKU:             strings.TrimSpace(in.SKU),
		Description:     in.Description,
		QuantityOrdered: in.QuantityOrdered,
		UnitPriceCents:  in.UnitPriceCents,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// newPONumber returns PO- followed by 8 upper-case hex digits
func newPONumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PO-" + strings.ToUpper(id[:8])
}
