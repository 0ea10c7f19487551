package orders

import (
	"context"
	"time"
)

// StockLedger is the transaction-scoped view of the products table.
type StockLedger interface {
	// LockProducts reads and row-locks the given products in ascending id order.
	// Missing ids are simply absent from the result.
	LockProducts(ctx context.Context, ids []int64) (map[int64]Product, error)
	// DecrementStock subtracts qty only while stock >= qty. ok=false means nothing
	// was written; stock is then the quantity currently available.
	DecrementStock(ctx context.Context, productID int64, qty int) (stock int, ok bool, err error)
	IncrementStock(ctx context.Context, productID int64, qty int) error
}

// OrderLedger is the transaction-scoped view of orders and order_items.
type OrderLedger interface {
	// InsertOrder stores o and sets o.ID. A clash on transaction code returns KindDuplicateCode.
	InsertOrder(ctx context.Context, o *Order) error
	InsertItems(ctx context.Context, orderID int64, items []OrderItem) error
	LockOrder(ctx context.Context, orderID int64) (Order, error)
	RestockLines(ctx context.Context, orderID int64) ([]RestockLine, error)
	MarkCancelled(ctx context.Context, orderID, voidedBy int64, at time.Time) error
}

type Tx interface {
	StockLedger
	OrderLedger
}

// Ledger runs fn inside one serializable transaction. Any error from fn, or from
// commit, rolls back every write made through tx.
type Ledger interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Catalog and OrderReader are the read paths used outside transactions.
type Catalog interface {
	ListActiveProducts(ctx context.Context) ([]Product, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID int64) (Order, []OrderItem, error)
}
