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

// StatusEventRepository implements port.StatusEventRepository.
// The table is append-only; there is no update or delete.
type StatusEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatusEventRepository creates a new status history repository
func NewStatusEventRepository(db *sql.DB, logger *zap.Logger) port.StatusEventRepository {
	return &StatusEventRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a status change to the history
func (r *StatusEventRepository) Create(ctx context.Context, evt *entity.StatusEvent) error {
	query := `
		INSERT INTO purchase_order_status_events (
			purchase_order_id, previous_status, new_status, actor, note, rev, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		evt.PurchaseOrderID,
		evt.PreviousStatus,
		evt.NewStatus,
		evt.Actor,
		evt.Note,
		evt.Rev,
		evt.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create status event",
			zap.Int64("purchase_order_id", evt.PurchaseOrderID),
			zap.String("new_status", evt.NewStatus),
			zap.Error(err))
		return fmt.Errorf("failed to create status event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	evt.ID = id
	return nil
}

// GetByPurchaseOrderID retrieves the history of an order in write order
func (r *StatusEventRepository) GetByPurchaseOrderID(ctx context.Context, purchaseOrderID int64) ([]*entity.StatusEvent, error) {
	query := `
		SELECT id, purchase_order_id, previous_status, new_status, actor, note, rev, timestamp
		FROM purchase_order_status_events
		WHERE purchase_order_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, purchaseOrderID)
	if err != nil {
		r.logger.Error("Failed to get status history",
			zap.Int64("purchase_order_id", purchaseOrderID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	events := []*entity.StatusEvent{}
	for rows.Next() {
		var e entity.StatusEvent
		err := rows.Scan(
			&e.ID,
			&e.PurchaseOrderID,
			&e.PreviousStatus,
			&e.NewStatus,
			&e.Actor,
			&e.Note,
			&e.Rev,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status event: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *StatusEventRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.StatusEventRepository = (*StatusEventRepository)(nil)
