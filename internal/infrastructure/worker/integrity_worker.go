package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/procurement-hub/internal/application/port"
	appwf "github.com/garyjia/procurement-hub/internal/application/workflow"
	"github.com/garyjia/procurement-hub/internal/domain/entity"
	"github.com/garyjia/procurement-hub/internal/domain/event"
	domainwf "github.com/garyjia/procurement-hub/internal/domain/workflow"
	"go.uber.org/zap"
)

// IntegrityWorkerConfig holds configuration for the status integrity scan
type IntegrityWorkerConfig struct {
	ScanInterval time.Duration
	BatchSize    int
}

// DefaultIntegrityWorkerConfig returns default configuration
func DefaultIntegrityWorkerConfig() IntegrityWorkerConfig {
	return IntegrityWorkerConfig{
		ScanInterval: 15 * time.Minute,
		BatchSize:    200,
	}
}

// EventDispatcher is the part of the dispatcher the worker publishes through
type EventDispatcher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// Anomaly is a purchase order whose stored state breaks a lifecycle rule
type Anomaly struct {
	PurchaseOrderID int64
	Number          string
	Kind            string
	RawStatus       string
	LastHistory     string
}

// ScanReport summarizes one pass over every purchase order
type ScanReport struct {
	Scanned   int
	Anomalies []Anomaly
	Duration  time.Duration
}

// IntegrityWorker periodically walks all purchase orders and reports rows
// whose status is outside the known set, or whose latest history entry does
// not end in the stored status. Each finding is reported once per process.
type IntegrityWorker struct {
	config     IntegrityWorkerConfig
	poRepo     port.PurchaseOrderRepository
	eventRepo  port.StatusEventRepository
	dispatcher EventDispatcher
	logger     *zap.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	reported  map[string]bool
	lastScan  *ScanReport
}

// NewIntegrityWorker creates a new integrity worker. dispatcher may be nil.
func NewIntegrityWorker(
	config IntegrityWorkerConfig,
	poRepo port.PurchaseOrderRepository,
	eventRepo port.StatusEventRepository,
	dispatcher EventDispatcher,
	logger *zap.Logger,
) *IntegrityWorker {
	if config.ScanInterval <= 0 {
		config.ScanInterval = DefaultIntegrityWorkerConfig().ScanInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultIntegrityWorkerConfig().BatchSize
	}
	return &IntegrityWorker{
		config:     config,
		poRepo:     poRepo,
		eventRepo:  eventRepo,
		dispatcher: dispatcher,
		logger:     logger,
		reported:   make(map[string]bool),
	}
}

// Start begins the scan loop. The first scan runs immediately.
func (w *IntegrityWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("integrity worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("IntegrityWorker started",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.scanLoop(w.ctx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight scan to finish
func (w *IntegrityWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("IntegrityWorker stopped")
	return nil
}

// Name returns the worker name for identification
func (w *IntegrityWorker) Name() string {
	return "IntegrityWorker"
}

// LastScan returns the most recent report, or nil before the first scan
func (w *IntegrityWorker) LastScan() *ScanReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastScan
}

func (w *IntegrityWorker) scanLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Scan(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("Integrity scan failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan pages through every purchase order once
func (w *IntegrityWorker) Scan(ctx context.Context) (*ScanReport, error) {
	start := time.Now()
	report := &ScanReport{}

	for offset := 0; ; offset += w.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		orders, err := w.poRepo.List(ctx, entity.ListFilter{Limit: w.config.BatchSize, Offset: offset})
		if err != nil {
			return report, fmt.Errorf("failed to list purchase orders: %w", err)
		}

		for _, po := range orders {
			report.Scanned++
			anomaly, err := w.check(ctx, po)
			if err != nil {
				w.logger.Warn("Failed to check purchase order",
					zap.Int64("purchase_order_id", po.ID),
					zap.Error(err))
				continue
			}
			if anomaly != nil {
				report.Anomalies = append(report.Anomalies, *anomaly)
				w.report(ctx, *anomaly)
			}
		}

		if len(orders) < w.config.BatchSize {
			break
		}
	}

	report.Duration = time.Since(start)
	w.mu.Lock()
	w.lastScan = report
	w.mu.Unlock()

	w.logger.Info("Integrity scan completed",
		zap.Int("scanned", report.Scanned),
		zap.Int("anomalies", len(report.Anomalies)),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (w *IntegrityWorker) check(ctx context.Context, po *entity.PurchaseOrder) (*Anomaly, error) {
	if _, err := domainwf.ParseStatus(po.Status); err != nil {
		return &Anomaly{
			PurchaseOrderID: po.ID,
			Number:          po.Number,
			Kind:            appwf.AnomalyUnknownStatus,
			RawStatus:       po.Status,
		}, nil
	}

	history, err := w.eventRepo.GetByPurchaseOrderID(ctx, po.ID)
	if err != nil {
		return nil, err
	}
	last := ""
	if len(history) > 0 {
		last = history[len(history)-1].NewStatus
	}
	if last == po.Status {
		return nil, nil
	}

	// A transition may have committed between the list and the history read
	current, err := w.poRepo.GetByID(ctx, po.ID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.Status != po.Status {
		return nil, nil
	}

	return &Anomaly{
		PurchaseOrderID: po.ID,
		Number:          po.Number,
		Kind:            appwf.AnomalyHistoryMismatch,
		RawStatus:       po.Status,
		LastHistory:     last,
	}, nil
}

func (w *IntegrityWorker) report(ctx context.Context, a Anomaly) {
	key := fmt.Sprintf("%d/%s/%s", a.PurchaseOrderID, a.Kind, a.RawStatus)

	w.mu.Lock()
	seen := w.reported[key]
	w.reported[key] = true
	w.mu.Unlock()
	if seen {
		return
	}

	w.logger.Error("Purchase order status anomaly",
		zap.Int64("purchase_order_id", a.PurchaseOrderID),
		zap.String("number", a.Number),
		zap.String("anomaly", a.Kind),
		zap.String("raw_status", a.RawStatus),
		zap.String("last_history_status", a.LastHistory))

	if w.dispatcher != nil {
		w.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeStatusAnomaly, a.PurchaseOrderID, a.Number, map[string]interface{}{
			event.KeyRawStatus: a.RawStatus,
			event.KeyAnomaly:   a.Kind,
		}))
	}
}
