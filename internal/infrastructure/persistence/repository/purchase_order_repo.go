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

const purchaseOrderColumns = `id, number, supplier_id, currency, status, rev, created_by, created_at, updated_at`

// PurchaseOrderRepository implements port.PurchaseOrderRepository
type PurchaseOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPurchaseOrderRepository creates a new purchase order repository
func NewPurchaseOrderRepository(db *sql.DB, logger *zap.Logger) port.PurchaseOrderRepository {
	return &PurchaseOrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the order header. Lines are written separately.
func (r *PurchaseOrderRepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (
			number, supplier_id, currency, status, rev, created_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		po.Number,
		po.SupplierID,
		po.Currency,
		po.Status,
		po.Rev,
		po.CreatedBy,
		po.CreatedAt,
		po.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create purchase order", zap.String("number", po.Number), zap.Error(err))
		return fmt.Errorf("failed to create purchase order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	po.ID = id
	return nil
}

// GetByID retrieves a purchase order header by ID
func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE id = ?`

	po, err := scanPurchaseOrder(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase order by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}
	return po, nil
}

// GetByNumber retrieves a purchase order header by its business number
func (r *PurchaseOrderRepository) GetByNumber(ctx context.Context, number string) (*entity.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE number = ?`

	po, err := scanPurchaseOrder(r.getExecutor(ctx).QueryRowContext(ctx, query, number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase order by number", zap.String("number", number), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}
	return po, nil
}

// List retrieves purchase orders newest first
func (r *PurchaseOrderRepository) List(ctx context.Context, filter entity.ListFilter) ([]*entity.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders`
	args := []interface{}{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list purchase orders", zap.Error(err))
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	defer rows.Close()

	orders := []*entity.PurchaseOrder{}
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			r.logger.Error("Failed to scan purchase order", zap.Error(err))
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}

	return orders, rows.Err()
}

// CompareAndSetStatus writes next and rev only while the stored status still
// equals expected
func (r *PurchaseOrderRepository) CompareAndSetStatus(ctx context.Context, id int64, expected, next string, rev int) (bool, error) {
	query := `
		UPDATE purchase_orders
		SET status = ?, rev = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, next, rev, time.Now().UTC(), id, expected)
	if err != nil {
		r.logger.Error("Failed to update purchase order status",
			zap.Int64("id", id),
			zap.String("expected", expected),
			zap.String("next", next),
			zap.Error(err))
		return false, fmt.Errorf("failed to update status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected == 1, nil
}

// Touch bumps updated_at
func (r *PurchaseOrderRepository) Touch(ctx context.Context, id int64) error {
	query := `UPDATE purchase_orders SET updated_at = ? WHERE id = ?`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		r.logger.Error("Failed to touch purchase order", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to touch purchase order: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPurchaseOrder(row rowScanner) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := row.Scan(
		&po.ID,
		&po.Number,
		&po.SupplierID,
		&po.Currency,
		&po.Status,
		&po.Rev,
		&po.CreatedBy,
		&po.CreatedAt,
		&po.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// getExecutor returns appropriate executor based on context
func (r *PurchaseOrderRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.PurchaseOrderRepository = (*PurchaseOrderRepository)(nil)
