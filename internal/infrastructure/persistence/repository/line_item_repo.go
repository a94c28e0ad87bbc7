package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/domain/entity"
	"github.com/garyjia/procurement-hub/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const lineItemColumns = `id, purchase_order_id, line_no, sku, description,
	quantity_ordered, quantity_received, unit_price_cents, created_at, updated_at`

// LineItemRepository implements port.LineItemRepository
type LineItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLineItemRepository creates a new line item repository
func NewLineItemRepository(db *sql.DB, logger *zap.Logger) port.LineItemRepository {
	return &LineItemRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new purchase order line
func (r *LineItemRepository) Create(ctx context.Context, line *entity.LineItem) error {
	query := `
		INSERT INTO purchase_order_lines (
			purchase_order_id, line_no, sku, description,
			quantity_ordered, quantity_received, unit_price_cents,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		line.PurchaseOrderID,
		line.LineNo,
		line.SKU,
		line.Description,
		line.QuantityOrdered,
		line.QuantityReceived,
		line.UnitPriceCents,
		line.CreatedAt,
		line.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create line item",
			zap.Int64("purchase_order_id", line.PurchaseOrderID),
			zap.Error(err))
		return fmt.Errorf("failed to create line item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	line.ID = id
	return nil
}

// GetByID retrieves a line by ID
func (r *LineItemRepository) GetByID(ctx context.Context, id int64) (*entity.LineItem, error) {
	query := `SELECT ` + lineItemColumns + ` FROM purchase_order_lines WHERE id = ?`

	line, err := scanLineItem(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get line item", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get line item: %w", err)
	}
	return line, nil
}

// GetByPurchaseOrderID retrieves all lines of an order in line number order
func (r *LineItemRepository) GetByPurchaseOrderID(ctx context.Context, purchaseOrderID int64) ([]entity.LineItem, error) {
	query := `SELECT ` + lineItemColumns + `
		FROM purchase_order_lines
		WHERE purchase_order_id = ?
		ORDER BY line_no ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, purchaseOrderID)
	if err != nil {
		r.logger.Error("Failed to get line items",
			zap.Int64("purchase_order_id", purchaseOrderID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get line items: %w", err)
	}
	defer rows.Close()

	lines := []entity.LineItem{}
	for rows.Next() {
		line, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		lines = append(lines, *line)
	}

	return lines, rows.Err()
}

// Update rewrites the editable fields of a line
func (r *LineItemRepository) Update(ctx context.Context, line *entity.LineItem) error {
	query := `
		UPDATE purchase_order_lines
		SET sku = ?, description = ?, quantity_ordered = ?, unit_price_cents = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		line.SKU,
		line.Description,
		line.QuantityOrdered,
		line.UnitPriceCents,
		line.UpdatedAt,
		line.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update line item", zap.Int64("id", line.ID), zap.Error(err))
		return fmt.Errorf("failed to update line item: %w", err)
	}

	return requireOneRow(result, "line item", line.ID)
}

// Delete removes a line
func (r *LineItemRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM purchase_order_lines WHERE id = ?`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, id); err != nil {
		r.logger.Error("Failed to delete line item", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete line item: %w", err)
	}
	return nil
}

// AddReceivedQuantity increments quantity_received by quantity
func (r *LineItemRepository) AddReceivedQuantity(ctx context.Context, id int64, quantity int64) error {
	query := `
		UPDATE purchase_order_lines
		SET quantity_received = quantity_received + ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, quantity, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to record received quantity",
			zap.Int64("id", id),
			zap.Int64("quantity", quantity),
			zap.Error(err))
		return fmt.Errorf("failed to record received quantity: %w", err)
	}

	return requireOneRow(result, "line item", id)
}

// NextLineNo returns one past the highest line number used by the order
func (r *LineItemRepository) NextLineNo(ctx context.Context, purchaseOrderID int64) (int, error) {
	query := `SELECT COALESCE(MAX(line_no), 0) FROM purchase_order_lines WHERE purchase_order_id = ?`

	var highest int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, query, purchaseOrderID).Scan(&highest); err != nil {
		return 0, fmt.Errorf("failed to get next line number: %w", err)
	}
	return highest + 1, nil
}

func scanLineItem(row rowScanner) (*entity.LineItem, error) {
	var line entity.LineItem
	err := row.Scan(
		&line.ID,
		&line.PurchaseOrderID,
		&line.LineNo,
		&line.SKU,
		&line.Description,
		&line.QuantityOrdered,
		&line.QuantityReceived,
		&line.UnitPriceCents,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func requireOneRow(result sql.Result, what string, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, port.ErrNotFound)
	}
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *LineItemRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.LineItemRepository = (*LineItemRepository)(nil)
