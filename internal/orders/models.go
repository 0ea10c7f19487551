package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64
	Name      string
	Price     decimal.Decimal
	Managed   bool // is_inventory_managed
	Stock     int  // hanya bermakna kalau Managed
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentQRIS PaymentMethod = "qris"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentQRIS
}

type Order struct {
	ID              int64
	CashierID       int64
	TransactionCode string
	Subtotal        decimal.Decimal // sebelum pajak
	Tax             decimal.Decimal
	Total           decimal.Decimal // subtotal + tax
	PaymentMethod   PaymentMethod
	AmountReceived  decimal.Decimal
	Change          decimal.Decimal
	Status          Status // lihat status.go
	CreatedAt       time.Time
	VoidedBy        *int64
	VoidedAt        *time.Time
}

// StatusView is the cached shape served for order status lookups.
type StatusView struct {
	OrderID   int64     `json:"order_id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderItem is the frozen line of a sale; name and price never follow later catalog edits.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Qty       int
	Subtotal  decimal.Decimal
}

// RestockLine is a line item joined with the product's current managed flag.
type RestockLine struct {
	ProductID int64
	Qty       int
	Managed   bool
}

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

// Actor is the caller identity; the engine never reads it from ambient state.
type Actor struct {
	UserID int64
	Role   Role
}
