package service

import (
	"context"
	"fmt"

	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/domain/event"
	domainwf "github.com/garyjia/procurement-hub/internal/domain/workflow"
)

// ExportFile is a rendered purchase order ready for download
type ExportFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// ExportService renders purchase orders and archives closed ones
type ExportService interface {
	ExportPurchaseOrder(ctx context.Context, id int64) (*ExportFile, error)

	// HandleStatusChanged archives an export when an order reaches a terminal status
	HandleStatusChanged(ctx context.Context, evt *event.Event) error
}

type exportServiceImpl struct {
	orders   PurchaseOrderService
	exporter port.Exporter
	storage  port.FileStorage
	logger   Logger
}

// NewExportService creates a new ExportService. storage may be nil to disable archiving.
func NewExportService(orders PurchaseOrderService, exporter port.Exporter, storage port.FileStorage, logger Logger) ExportService {
	return &exportServiceImpl{
		orders:   orders,
		exporter: exporter,
		storage:  storage,
		logger:   logger,
	}
}

// ExportPurchaseOrder renders the order, its lines and history
func (s *exportServiceImpl) ExportPurchaseOrder(ctx context.Context, id int64) (*ExportFile, error) {
	view, err := s.orders.GetPurchaseOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.orders.GetHistory(ctx, id)
	if err != nil {
		return nil, err
	}

	content, err := s.exporter.Export(ctx, &port.ExportDocument{
		PurchaseOrder: view.PurchaseOrder,
		History:       history,
	})
	if err != nil {
		s.logger.Error("Failed to export purchase order", "error", err, "id", id)
		return nil, fmt.Errorf("export purchase order: %w", err)
	}

	return &ExportFile{
		Name:        fmt.Sprintf("%s-rev%d.%s", view.Number, view.Rev, s.exporter.FileExtension()),
		ContentType: s.exporter.ContentType(),
		Content:     content,
	}, nil
}

// HandleStatusChanged writes a final export for received_closed and cancelled orders
func (s *exportServiceImpl) HandleStatusChanged(ctx context.Context, evt *event.Event) error {
	if s.storage == nil {
		return nil
	}

	status, err := domainwf.ParseStatus(evt.GetPayloadString(event.KeyNewStatus))
	if err != nil || !status.IsTerminal() {
		return nil
	}

	file, err := s.ExportPurchaseOrder(ctx, evt.PurchaseOrderID)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("%s/%s", status, file.Name)
	if err := s.storage.Save(ctx, path, file.Content); err != nil {
		s.logger.Error("Failed to archive purchase order", "error", err, "id", evt.PurchaseOrderID, "path", path)
		return fmt.Errorf("archive export: %w", err)
	}

	s.logger.Info("Purchase order archived", "id", evt.PurchaseOrderID, "status", status, "path", path)
	return nil
}
