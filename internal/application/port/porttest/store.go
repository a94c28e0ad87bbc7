// Package porttest provides in-memory implementations of the application
// ports for use in tests.
package porttest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/procurement-hub/internal/application/port"
	"github.com/garyjia/procurement-hub/internal/domain/entity"
)

// Store holds purchase orders, lines, approvals and history in memory.
// WithTransaction snapshots the store and restores it when fn fails.
type Store struct {
	mu sync.Mutex

	orders    map[int64]*entity.PurchaseOrder
	lines     map[int64]*entity.LineItem
	approvals []entity.Approval
	history   []*entity.StatusEvent
	nextID    int64

	// CASHook, when set, runs before each CompareAndSetStatus and may mutate
	// the stored status to simulate a concurrent writer.
	CASHook func(id int64)

	// FailStatusEvents makes StatusEvents().Create return an error
	FailStatusEvents error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		orders: make(map[int64]*entity.PurchaseOrder),
		lines:  make(map[int64]*entity.LineItem),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// SetStatus overwrites a stored status without validation
func (s *Store) SetStatus(id int64, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if po, ok := s.orders[id]; ok {
		po.Status = status
	}
}

// Seed inserts a purchase order and its lines directly
func (s *Store) Seed(po *entity.PurchaseOrder) *entity.PurchaseOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	if po.ID == 0 {
		po.ID = s.id()
	}
	if po.Rev == 0 {
		po.Rev = 1
	}
	for i := range po.Lines {
		if po.Lines[i].ID == 0 {
			po.Lines[i].ID = s.id()
		}
		po.Lines[i].PurchaseOrderID = po.ID
		if po.Lines[i].LineNo == 0 {
			po.Lines[i].LineNo = i + 1
		}
		l := po.Lines[i]
		s.lines[l.ID] = &l
	}
	stored := *po
	stored.Lines = nil
	s.orders[po.ID] = &stored
	return po
}

// History returns all stored status events in insertion order
func (s *Store) History() []*entity.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.StatusEvent(nil), s.history...)
}

// Approvals returns all stored approvals in insertion order
func (s *Store) Approvals() []entity.Approval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Approval(nil), s.approvals...)
}

// Status returns the stored status of an order
func (s *Store) Status(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if po, ok := s.orders[id]; ok {
		return po.Status
	}
	return ""
}

type snapshot struct {
	orders    map[int64]entity.PurchaseOrder
	lines     map[int64]entity.LineItem
	approvals int
	history   int
	nextID    int64
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		orders:    make(map[int64]entity.PurchaseOrder, len(s.orders)),
		lines:     make(map[int64]entity.LineItem, len(s.lines)),
		approvals: len(s.approvals),
		history:   len(s.history),
		nextID:    s.nextID,
	}
	for id, po := range s.orders {
		snap.orders[id] = *po
	}
	for id, l := range s.lines {
		snap.lines[id] = *l
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[int64]*entity.PurchaseOrder, len(snap.orders))
	for id, po := range snap.orders {
		po := po
		s.orders[id] = &po
	}
	s.lines = make(map[int64]*entity.LineItem, len(snap.lines))
	for id, l := range snap.lines {
		l := l
		s.lines[id] = &l
	}
	s.approvals = s.approvals[:snap.approvals]
	s.history = s.history[:snap.history]
	s.nextID = snap.nextID
}

type txKey struct{}

// WithTransaction implements port.TransactionManager
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// PurchaseOrders returns the purchase order repository view
func (s *Store) PurchaseOrders() port.PurchaseOrderRepository { return (*poRepo)(s) }

// LineItems returns the line item repository view
func (s *Store) LineItems() port.LineItemRepository { return (*lineRepo)(s) }

// ApprovalRecords returns the approval repository view
func (s *Store) ApprovalRecords() port.ApprovalRepository { return (*approvalRepo)(s) }

// StatusEvents returns the status history repository view
func (s *Store) StatusEvents() port.StatusEventRepository { return (*eventRepo)(s) }

type poRepo Store

func (r *poRepo) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	po.ID = s.id()
	stored := *po
	stored.Lines = nil
	s.orders[po.ID] = &stored
	return nil
}

func (r *poRepo) GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	po, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	out := *po
	return &out, nil
}

func (r *poRepo) GetByNumber(ctx context.Context, number string) (*entity.PurchaseOrder, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, po := range s.orders {
		if po.Number == number {
			out := *po
			return &out, nil
		}
	}
	return nil, nil
}

func (r *poRepo) List(ctx context.Context, filter entity.ListFilter) ([]*entity.PurchaseOrder, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entity.PurchaseOrder
	for _, po := range s.orders {
		if filter.Status != "" && po.Status != filter.Status {
			continue
		}
		cp := *po
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Offset >= len(out) {
		return []*entity.PurchaseOrder{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *poRepo) CompareAndSetStatus(ctx context.Context, id int64, expected, next string, rev int) (bool, error) {
	s := (*Store)(r)
	if s.CASHook != nil {
		s.CASHook(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	po, ok := s.orders[id]
	if !ok || po.Status != expected {
		return false, nil
	}
	po.Status = next
	po.Rev = rev
	po.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *poRepo) Touch(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if po, ok := s.orders[id]; ok {
		po.UpdatedAt = time.Now().UTC()
	}
	return nil
}

type lineRepo Store

func (r *lineRepo) Create(ctx context.Context, line *entity.LineItem) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	line.ID = s.id()
	cp := *line
	s.lines[line.ID] = &cp
	return nil
}

func (r *lineRepo) GetByID(ctx context.Context, id int64) (*entity.LineItem, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *lineRepo) GetByPurchaseOrderID(ctx context.Context, purchaseOrderID int64) ([]entity.LineItem, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []entity.LineItem{}
	for _, l := range s.lines {
		if l.PurchaseOrderID == purchaseOrderID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineNo < out[j].LineNo })
	return out, nil
}

func (r *lineRepo) Update(ctx context.Context, line *entity.LineItem) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[line.ID]; !ok {
		return errors.New("line not found")
	}
	cp := *line
	s.lines[line.ID] = &cp
	return nil
}

func (r *lineRepo) Delete(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, id)
	return nil
}

func (r *lineRepo) AddReceivedQuantity(ctx context.Context, id int64, quantity int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[id]
	if !ok {
		return errors.New("line not found")
	}
	l.QuantityReceived += quantity
	return nil
}

func (r *lineRepo) NextLineNo(ctx context.Context, purchaseOrderID int64) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	highest := 0
	for _, l := range s.lines {
		if l.PurchaseOrderID == purchaseOrderID && l.LineNo > highest {
			highest = l.LineNo
		}
	}
	return highest + 1, nil
}

type approvalRepo Store

func (r *approvalRepo) Create(ctx context.Context, approval *entity.Approval) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	approval.ID = s.id()
	s.approvals = append(s.approvals, *approval)
	return nil
}

func (r *approvalRepo) GetByPurchaseOrderID(ctx context.Context, purchaseOrderID int64) ([]entity.Approval, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []entity.Approval{}
	for _, a := range s.approvals {
		if a.PurchaseOrderID == purchaseOrderID {
			out = append(out, a)
		}
	}
	return out, nil
}

type eventRepo Store

func (r *eventRepo) Create(ctx context.Context, evt *entity.StatusEvent) error {
	s := (*Store)(r)
	if s.FailStatusEvents != nil {
		return s.FailStatusEvents
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	evt.ID = s.id()
	cp := *evt
	s.history = append(s.history, &cp)
	return nil
}

func (r *eventRepo) GetByPurchaseOrderID(ctx context.Context, purchaseOrderID int64) ([]*entity.StatusEvent, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*entity.StatusEvent{}
	for _, e := range s.history {
		if e.PurchaseOrderID == purchaseOrderID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

var (
	_ port.TransactionManager      = (*Store)(nil)
	_ port.PurchaseOrderRepository = (*poRepo)(nil)
	_ port.LineItemRepository      = (*lineRepo)(nil)
	_ port.ApprovalRepository      = (*approvalRepo)(nil)
	_ port.StatusEventRepository   = (*eventRepo)(nil)
)
