package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/procurement-hub/internal/application/dispatcher"
	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/domain/entity"
	"github.com/garyjia/procurement-hub/internal/domain/event"
	domainwf "github.com/garyjia/procurement-hub/internal/domain/workflow"
)

type engineImpl struct {
	poRepo     port.PurchaseOrderRepository
	lineRepo   port.LineItemRepository
	eventRepo  port.StatusEventRepository
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// EngineOption configures the transition engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new transition engine
func NewEngine(
	poRepo port.PurchaseOrderRepository,
	lineRepo port.LineItemRepository,
	eventRepo port.StatusEventRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) TransitionEngine {
	e := &engineImpl{
		poRepo:    poRepo,
		lineRepo:  lineRepo,
		eventRepo: eventRepo,
		txManager: txManager,
		logger:    nopLogger{},
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Transition validates and applies a status change in one transaction
func (e *engineImpl) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if !req.To.IsValid() {
		return nil, domainwf.ValidateTransition(domainwf.InitialStatus(), req.To, nil).Err()
	}

	var result *TransitionResult

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		po, err := e.load(txCtx, req.PurchaseOrderID)
		if err != nil {
			return err
		}

		if req.ExpectedStatus != "" && po.Status != req.ExpectedStatus.String() {
			return fmt.Errorf("%w: expected %s, found %s", port.ErrConcurrentModification, req.ExpectedStatus, po.Status)
		}

		from, err := e.parseStored(ctx, po)
		if err != nil {
			return err
		}

		tctx := domainwf.NewTransitionContext(po.HasLineItems(), po.AllQuantitiesReceived())
		if err := domainwf.ValidateTransition(from, req.To, tctx).Err(); err != nil {
			return err
		}

		if req.Require != nil && !req.Require.Check(from) {
			return fmt.Errorf("%w: cannot %s a purchase order in status %s", port.ErrCapabilityDenied, req.Require.Name, from)
		}

		rev := po.Rev
		if req.To == domainwf.StatusAmended {
			rev++
		}

		ok, err := e.poRepo.CompareAndSetStatus(txCtx, po.ID, from.String(), req.To.String(), rev)
		if err != nil {
			return fmt.Errorf("failed to update purchase order status: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: status changed from %s before write", port.ErrConcurrentModification, from)
		}

		now := e.now()
		history := &entity.StatusEvent{
			PurchaseOrderID: po.ID,
			PreviousStatus:  from.String(),
			NewStatus:       req.To.String(),
			Actor:           req.Actor,
			Note:            req.Note,
			Rev:             rev,
			Timestamp:       now,
		}
		if err := e.eventRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create status event: %w", err)
		}

		po.Status = req.To.String()
		po.Rev = rev
		po.UpdatedAt = now

		if req.BeforeCommit != nil {
			if err := req.BeforeCommit(txCtx, po); err != nil {
				return err
			}
		}

		result = &TransitionResult{PurchaseOrder: po, Event: history, From: from, To: req.To}
		return nil
	})

	if err != nil {
		e.logFailure(req, err)
		return nil, err
	}

	e.logger.Info("Purchase order status changed",
		"purchase_order_id", req.PurchaseOrderID,
		"from", result.From,
		"to", result.To,
		"actor", req.Actor,
		"rev", result.PurchaseOrder.Rev,
	)

	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, statusChangedEvent(result, req))
	}

	return result, nil
}

// CurrentStatus returns the parsed stored status of a purchase order
func (e *engineImpl) CurrentStatus(ctx context.Context, purchaseOrderID int64) (domainwf.Status, error) {
	po, err := e.poRepo.GetByID(ctx, purchaseOrderID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch purchase order: %w", err)
	}
	if po == nil {
		return "", fmt.Errorf("purchase order %d: %w", purchaseOrderID, port.ErrNotFound)
	}
	return e.parseStored(ctx, po)
}

// load re-reads the order and its lines so guards see committed state
func (e *engineImpl) load(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	po, err := e.poRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch purchase order: %w", err)
	}
	if po == nil {
		return nil, fmt.Errorf("purchase order %d: %w", id, port.ErrNotFound)
	}

	lines, err := e.lineRepo.GetByPurchaseOrderID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch line items: %w", err)
	}
	po.Lines = lines

	return po, nil
}

// parseStored treats a persisted value outside the lifecycle as a data anomaly
func (e *engineImpl) parseStored(ctx context.Context, po *entity.PurchaseOrder) (domainwf.Status, error) {
	status, err := domainwf.ParseStatus(po.Status)
	if err == nil {
		return status, nil
	}

	e.logger.Error("Purchase order has unknown status",
		"purchase_order_id", po.ID,
		"number", po.Number,
		"raw_status", po.Status,
	)

	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeStatusAnomaly, po.ID, po.Number, map[string]interface{}{
			event.KeyRawStatus: po.Status,
			event.KeyAnomaly:   AnomalyUnknownStatus,
		}))
	}

	return "", err
}

func (e *engineImpl) logFailure(req TransitionRequest, err error) {
	if te, ok := domainwf.AsTransitionError(err); ok && te.Kind != domainwf.KindUnknownStatus {
		e.logger.Info("Transition rejected",
			"purchase_order_id", req.PurchaseOrderID,
			"to", req.To,
			"kind", te.Kind,
			"reason", te.Reason,
		)
		return
	}
	if errors.Is(err, port.ErrNotFound) || errors.Is(err, port.ErrConcurrentModification) || errors.Is(err, port.ErrCapabilityDenied) {
		e.logger.Info("Transition not applied",
			"purchase_order_id", req.PurchaseOrderID,
			"to", req.To,
			"error", err,
		)
		return
	}
	e.logger.Error("Transition failed",
		"purchase_order_id", req.PurchaseOrderID,
		"to", req.To,
		"error", err,
	)
}

func statusChangedEvent(result *TransitionResult, req TransitionRequest) *event.Event {
	return event.NewEvent(
		event.TypeStatusChanged,
		result.PurchaseOrder.ID,
		result.PurchaseOrder.Number,
		map[string]interface{}{
			event.KeyPreviousStatus: result.From.String(),
			event.KeyNewStatus:      result.To.String(),
			event.KeyActor:          req.Actor,
			event.KeyNote:           req.Note,
			event.KeyRev:            result.PurchaseOrder.Rev,
			event.KeySequence:       result.Event.ID,
			event.KeySupplierID:     result.PurchaseOrder.SupplierID,
		},
	)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
