package checkout

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/ariefcatur/go-pos-checkout/internal/money"
	"github.com/ariefcatur/go-pos-checkout/internal/orders"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxLineQuantity is the largest quantity the ledger's integer columns hold.
const MaxLineQuantity = math.MaxInt32

type CartLine struct {
	ProductID int64
	Quantity  int
}

type ProcessRequest struct {
	Cashier        orders.Actor
	Cart           []CartLine
	PaymentMethod  orders.PaymentMethod
	AmountReceived decimal.Decimal
}

type Receipt struct {
	OrderID         int64
	TransactionCode string
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	Change          decimal.Decimal
	Items           []orders.OrderItem
}

func (r ProcessRequest) validate() error {
	if r.Cashier.UserID <= 0 {
		return orders.Validation("cashier is required")
	}
	if len(r.Cart) == 0 {
		return orders.Validation("cart is empty")
	}
	for i, l := range r.Cart {
		if l.ProductID <= 0 {
			return orders.Validation("cart line %d: invalid product id %d", i, l.ProductID)
		}
		if l.Quantity <= 0 {
			return orders.Validation("cart line %d: quantity must be positive, got %d", i, l.Quantity)
		}
		if l.Quantity > MaxLineQuantity {
			return orders.Validation("cart line %d: quantity %d exceeds %d", i, l.Quantity, MaxLineQuantity)
		}
	}
	if !r.PaymentMethod.Valid() {
		return orders.Validation("unknown payment method %q", r.PaymentMethod)
	}
	if err := money.CheckAmount(r.AmountReceived); err != nil {
		return orders.Validation("amount received: %v", err)
	}
	return nil
}

// distinctIDs returns the cart's product ids ascending, the lock order every
// transaction uses.
func distinctIDs(cart []CartLine) []int64 {
	seen := make(map[int64]struct{}, len(cart))
	ids := make([]int64, 0, len(cart))
	for _, l := range cart {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ProcessOrder prices the cart, reserves managed stock and stores the order
// with its line snapshot. Any failure rolls back every write of the call.
func (s *Service) ProcessOrder(ctx context.Context, req ProcessRequest) (Receipt, error) {
	start := time.Now()
	if err := req.validate(); err != nil {
		return Receipt{}, s.finish("process_order", start, err, zap.Int64("cashier_id", req.Cashier.UserID))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		rc    Receipt
		order orders.Order
	)
	err := s.Ledger.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		products, err := tx.LockProducts(ctx, distinctIDs(req.Cart))
		if err != nil {
			return err
		}

		items := make([]orders.OrderItem, 0, len(req.Cart))
		lines := make([]decimal.Decimal, 0, len(req.Cart))
		for _, l := range req.Cart {
			p, ok := products[l.ProductID]
			if !ok {
				return orders.ProductNotFound(l.ProductID)
			}
			if !p.Active {
				return orders.ProductInactive(p.ID, p.Name)
			}
			if p.Managed {
				// decrement langsung di tx yang sama, bukan di akhir
				left, ok, err := tx.DecrementStock(ctx, p.ID, l.Quantity)
				if err != nil {
					return err
				}
				if !ok {
					return orders.InsufficientStock(p.ID, p.Name, left)
				}
			}
			sub := money.LineSubtotal(p.Price, l.Quantity)
			items = append(items, orders.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Price:     p.Price,
				Qty:       l.Quantity,
				Subtotal:  sub,
			})
			lines = append(lines, sub)
		}

		totals := money.Compute(lines)
		change, ok := money.Change(req.AmountReceived, totals.Total)
		if !ok {
			return orders.InsufficientPayment(totals.Total, req.AmountReceived)
		}

		order = orders.Order{
			CashierID:       req.Cashier.UserID,
			TransactionCode: s.newCode(s.now()),
			Subtotal:        totals.Subtotal,
			Tax:             totals.Tax,
			Total:           totals.Total,
			PaymentMethod:   req.PaymentMethod,
			AmountReceived:  req.AmountReceived,
			Change:          change,
			Status:          orders.StatusPaid,
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, order.ID, items); err != nil {
			return err
		}

		rc = Receipt{
			OrderID:         order.ID,
			TransactionCode: order.TransactionCode,
			Subtotal:        totals.Subtotal,
			Tax:             totals.Tax,
			Total:           totals.Total,
			Change:          change,
			Items:           items,
		}
		return nil
	})
	if err != nil {
		return Receipt{}, s.finish("process_order", start, err, zap.Int64("cashier_id", req.Cashier.UserID))
	}
	_ = s.finish("process_order", start, nil)

	s.logger().Info("order paid",
		zap.Int64("order_id", rc.OrderID),
		zap.String("transaction_code", rc.TransactionCode),
		zap.Int64("cashier_id", req.Cashier.UserID),
		zap.String("payment_method", string(req.PaymentMethod)),
		zap.String("total", rc.Total.String()),
	)

	paid := orders.OrderPaidPayload{
		OrderID:         rc.OrderID,
		TransactionCode: rc.TransactionCode,
		CashierID:       req.Cashier.UserID,
		Total:           rc.Total.String(),
		PaidAt:          order.CreatedAt,
	}
	for _, it := range rc.Items {
		paid.Items = append(paid.Items, orders.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	s.publish(ctx, orders.EventOrderPaid, rc.OrderID, paid)

	return rc, nil
}
