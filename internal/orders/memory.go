package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryLedger is an in-process ledger for demo mode and tests. Transactions are
// serialized on one mutex and work on a copy of the state that is only swapped
// in on commit, so a failed fn leaves nothing behind.
type MemoryLedger struct {
	mu    sync.Mutex
	state memState
	now   func() time.Time
}

type memState struct {
	products   map[int64]Product
	orders     map[int64]Order
	items      map[int64][]OrderItem
	codes      map[string]int64
	nextOrder  int64
	nextItemID int64
}

func NewMemoryLedger(products ...Product) *MemoryLedger {
	m := &MemoryLedger{
		state: memState{
			products: map[int64]Product{},
			orders:   map[int64]Order{},
			items:    map[int64][]OrderItem{},
			codes:    map[string]int64{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, p := range products {
		m.PutProduct(p)
	}
	return m
}

// DemoCatalog is the sample catalog used when no database is configured.
func DemoCatalog() []Product {
	return []Product{
		{ID: 1, Name: "Latte", Price: decimal.NewFromInt(25000), Active: true},
		{ID: 2, Name: "Cappuccino", Price: decimal.NewFromInt(28000), Active: true},
		{ID: 3, Name: "Bottled Water", Price: decimal.NewFromInt(5000), Managed: true, Stock: 50, Active: true},
		{ID: 4, Name: "Orange Juice", Price: decimal.NewFromInt(15000), Managed: true, Stock: 20, Active: true},
	}
}

// PutProduct inserts or replaces a catalog row, standing in for admin edits.
func (m *MemoryLedger) PutProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if old, ok := m.state.products[p.ID]; ok {
		p.CreatedAt = old.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.state.products[p.ID] = p
}

func (m *MemoryLedger) Product(id int64) (Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[id]
	return p, ok
}

func (m *MemoryLedger) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *MemoryLedger) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Classify("begin", err)
	}
	work := m.state.clone()
	if err := fn(ctx, &memTx{s: &work, now: m.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return Classify("commit", err)
	}
	m.state = work
	return nil
}

func (s memState) clone() memState {
	c := memState{
		products:   make(map[int64]Product, len(s.products)),
		orders:     make(map[int64]Order, len(s.orders)),
		items:      make(map[int64][]OrderItem, len(s.items)),
		codes:      make(map[string]int64, len(s.codes)),
		nextOrder:  s.nextOrder,
		nextItemID: s.nextItemID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]OrderItem(nil), v...)
	}
	for k, v := range s.codes {
		c.codes[k] = v
	}
	return c
}

type memTx struct {
	s   *memState
	now func() time.Time
}

func (t *memTx) LockProducts(_ context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	for _, id := range ids {
		if p, ok := t.s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, qty int) (int, bool, error) {
	p, ok := t.s.products[productID]
	if !ok {
		return 0, false, ProductNotFound(productID)
	}
	if p.Stock < qty {
		return p.Stock, false, nil
	}
	p.Stock -= qty
	p.UpdatedAt = t.now()
	t.s.products[productID] = p
	return p.Stock, true, nil
}

func (t *memTx) IncrementStock(_ context.Context, productID int64, qty int) error {
	p, ok := t.s.products[productID]
	if !ok {
		return ProductNotFound(productID)
	}
	p.Stock += qty
	p.UpdatedAt = t.now()
	t.s.products[productID] = p
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	if _, dup := t.s.codes[o.TransactionCode]; dup {
		return DuplicateCode(o.TransactionCode, nil)
	}
	t.s.nextOrder++
	o.ID = t.s.nextOrder
	o.CreatedAt = t.now()
	t.s.orders[o.ID] = *o
	t.s.codes[o.TransactionCode] = o.ID
	return nil
}

func (t *memTx) InsertItems(_ context.Context, orderID int64, items []OrderItem) error {
	if _, ok := t.s.orders[orderID]; !ok {
		return OrderNotFound(orderID)
	}
	for _, it := range items {
		t.s.nextItemID++
		it.ID = t.s.nextItemID
		it.OrderID = orderID
		t.s.items[orderID] = append(t.s.items[orderID], it)
	}
	return nil
}

func (t *memTx) LockOrder(_ context.Context, orderID int64) (Order, error) {
	o, ok := t.s.orders[orderID]
	if !ok {
		return Order{}, OrderNotFound(orderID)
	}
	return o, nil
}

func (t *memTx) RestockLines(_ context.Context, orderID int64) ([]RestockLine, error) {
	var out []RestockLine
	for _, it := range t.s.items[orderID] {
		p, ok := t.s.products[it.ProductID]
		if !ok {
			continue // inner join semantics
		}
		out = append(out, RestockLine{ProductID: it.ProductID, Qty: it.Qty, Managed: p.Managed})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (t *memTx) MarkCancelled(_ context.Context, orderID, voidedBy int64, at time.Time) error {
	o, ok := t.s.orders[orderID]
	if !ok {
		return OrderNotFound(orderID)
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return AlreadyCancelled(orderID)
	}
	o.Status = StatusCancelled
	o.VoidedBy = &voidedBy
	o.VoidedAt = &at
	t.s.orders[orderID] = o
	return nil
}

func (m *MemoryLedger) ListActiveProducts(_ context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for _, p := range m.state.products {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryLedger) GetOrder(_ context.Context, orderID int64) (Order, []OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[orderID]
	if !ok {
		return Order{}, nil, OrderNotFound(orderID)
	}
	return o, append([]OrderItem(nil), m.state.items[orderID]...), nil
}
