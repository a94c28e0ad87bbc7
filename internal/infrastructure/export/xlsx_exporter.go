package export

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/domain/workflow"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet names in the generated workbook
const (
	SheetSummary = "Summary"
	SheetLines   = "Lines"
	SheetHistory = "History"
)

const timeLayout = "2006-01-02 15:04:05"

// XLSXExporter renders a purchase order into an Excel workbook
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new XLSXExporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// ContentType implements port.Exporter
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension implements port.Exporter
func (e *XLSXExporter) FileExtension() string { return "xlsx" }

// Export implements port.Exporter
func (e *XLSXExporter) Export(ctx context.Context, doc *port.ExportDocument) ([]byte, error) {
	if doc == nil || doc.PurchaseOrder == nil {
		return nil, fmt.Errorf("export: purchase order is required")
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetLines, SheetHistory} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := e.writeSummary(f, doc, bold); err != nil {
		return nil, err
	}
	if err := e.writeLines(f, doc, bold); err != nil {
		return nil, err
	}
	if err := e.writeHistory(f, doc, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("Purchase order exported",
		zap.String("number", doc.PurchaseOrder.Number),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (e *XLSXExporter) writeSummary(f *excelize.File, doc *port.ExportDocument, bold int) error {
	po := doc.PurchaseOrder

	label := po.Status
	if status, err := workflow.ParseStatus(po.Status); err == nil {
		if d, err := workflow.StatusDisplay(status); err == nil {
			label = d.Label
		}
	}

	rows := [][]interface{}{
		{"PO Number", po.Number},
		{"Supplier", po.SupplierID},
		{"Currency", po.Currency},
		{"Status", label},
		{"Revision", po.Rev},
		{"Created By", po.CreatedBy},
		{"Created At", formatTime(po.CreatedAt)},
		{"Updated At", formatTime(po.UpdatedAt)},
		{"Total", formatCents(po.TotalCents())},
	}
	for i, row := range rows {
		if err := setRow(f, SheetSummary, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	return f.SetColWidth(SheetSummary, "A", "B", 24)
}

func (e *XLSXExporter) writeLines(f *excelize.File, doc *port.ExportDocument, bold int) error {
	header := []interface{}{"Line", "SKU", "Description", "Ordered", "Received", "Outstanding", "Unit Price", "Extended"}
	if err := setRow(f, SheetLines, 1, header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetLines, "A1", "H1", bold); err != nil {
		return fmt.Errorf("failed to style lines header: %w", err)
	}

	for i, l := range doc.PurchaseOrder.Lines {
		row := []interface{}{
			l.LineNo,
			l.SKU,
			l.Description,
			l.QuantityOrdered,
			l.QuantityReceived,
			l.OutstandingQuantity(),
			formatCents(l.UnitPriceCents),
			formatCents(l.ExtendedCents()),
		}
		if err := setRow(f, SheetLines, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetLines, "C", "C", 36)
}

func (e *XLSXExporter) writeHistory(f *excelize.File, doc *port.ExportDocument, bold int) error {
	header := []interface{}{"Timestamp", "From", "To", "Actor", "Revision", "Note"}
	if err := setRow(f, SheetHistory, 1, header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetHistory, "A1", "F1", bold); err != nil {
		return fmt.Errorf("failed to style history header: %w", err)
	}

	for i, h := range doc.History {
		row := []interface{}{
			formatTime(h.Timestamp),
			h.PreviousStatus,
			h.NewStatus,
			h.Actor,
			h.Rev,
			h.Note,
		}
		if err := setRow(f, SheetHistory, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetHistory, "A", "A", 20)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// formatCents renders minor units as a fixed two-decimal amount
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Verify interface compliance
var _ port.Exporter = (*XLSXExporter)(nil)
