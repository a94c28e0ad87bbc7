package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/domain/entity"
	"github.com/garyjia/procurement-hub/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Create records an approval decision
func (r *ApprovalRepository) Create(ctx context.Context, approval *entity.Approval) error {
	query := `
		INSERT INTO purchase_order_approvals (
			purchase_order_id, approver, action, comment, timestamp
		) VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		approval.PurchaseOrderID,
		approval.Approver,
		approval.Action,
		approval.Comment,
		approval.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create approval",
			zap.Int64("purchase_order_id", approval.PurchaseOrderID),
			zap.String("action", approval.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create approval: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	approval.ID = id
	return nil
}

// GetByPurchaseOrderID retrieves all decisions for an order, oldest first
func (r *ApprovalRepository) GetByPurchaseOrderID(ctx context.Context, purchaseOrderID int64) ([]entity.Approval, error) {
	query := `
		SELECT id, purchase_order_id, approver, action, comment, timestamp
		FROM purchase_order_approvals
		WHERE purchase_order_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, purchaseOrderID)
	if err != nil {
		r.logger.Error("Failed to get approvals",
			zap.Int64("purchase_order_id", purchaseOrderID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get approvals: %w", err)
	}
	defer rows.Close()

	approvals := []entity.Approval{}
	for rows.Next() {
		var a entity.Approval
		if err := rows.Scan(&a.ID, &a.PurchaseOrderID, &a.Approver, &a.Action, &a.Comment, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}

	return approvals, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *ApprovalRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
