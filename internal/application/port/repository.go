package port

import (
	"context"

	"github.com/garyjia/procurement-hub/internal/domain/entity"
)

// PurchaseOrderRepository defines persistence operations for PurchaseOrder.
// Lookups return (nil, nil) when the row does not exist.
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *entity.PurchaseOrder) error
	GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error)
	GetByNumber(ctx context.Context, number string) (*entity.PurchaseOrder, error)
	List(ctx context.Context, filter entity.ListFilter) ([]*entity.PurchaseOrder, error)

	// CompareAndSetStatus writes next only while the stored status still equals
	// expected. It reports false when another writer got there first.
	CompareAndSetStatus(ctx context.Context, id int64, expected, next string, rev int) (bool, error)

	// Touch bumps updated_at after a line or approval change
	Touch(ctx context.Context, id int64) error
}

// LineItemRepository defines persistence operations for LineItem
type LineItemRepository interface {
	Create(ctx context.Context, line *entity.LineItem) error
	GetByID(ctx context.Context, id int64) (*entity.LineItem, error)
	GetByPurchaseOrderID(ctx context.Context, purchaseOrderID int64) ([]entity.LineItem, error)
	Update(ctx context.Context, line *entity.LineItem) error
	Delete(ctx context.Context, id int64) error
	AddReceivedQuantity(ctx context.Context, id int64, quantity int64) error
	NextLineNo(ctx context.Context, purchaseOrderID int64) (int, error)
}

// ApprovalRepository defines persistence operations for Approval
type ApprovalRepository interface {
	Create(ctx context.Context, approval *entity.Approval) error
	GetByPurchaseOrderID(ctx context.Context, purchaseOrderID int64) ([]entity.Approval, error)
}

// StatusEventRepository defines persistence operations for the append-only status history
type StatusEventRepository interface {
	Create(ctx context.Context, evt *entity.StatusEvent) error
	GetByPurchaseOrderID(ctx context.Context, purchaseOrderID int64) ([]*entity.StatusEvent, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
