package checkout

import (
	"context"
	"time"

	"github.com/ariefcatur/go-pos-checkout/internal/orders"
	"go.uber.org/zap"
)

// VoidResult reports which lines were put back on the shelf.
type VoidResult struct {
	OrderID   int64
	VoidedAt  time.Time
	Restocked []orders.ItemQty
}

// VoidOrder cancels a paid order and restocks its lines whose product is
// inventory-managed right now. The flag at sale time is not consulted.
func (s *Service) VoidOrder(ctx context.Context, orderID int64, actor orders.Actor) (VoidResult, error) {
	start := time.Now()
	fields := []zap.Field{zap.Int64("order_id", orderID), zap.Int64("actor_id", actor.UserID)}

	if orderID <= 0 {
		return VoidResult{}, s.finish("void_order", start, orders.Validation("invalid order id %d", orderID), fields...)
	}
	if actor.UserID <= 0 || actor.Role != orders.RoleAdmin {
		return VoidResult{}, s.finish("void_order", start, &orders.Error{
			Kind:    orders.KindForbidden,
			Message: "only admins can void orders",
		}, fields...)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var res VoidResult
	err := s.Ledger.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !orders.CanTransition(o.Status, orders.StatusCancelled) {
			return orders.AlreadyCancelled(orderID)
		}

		lines, err := tx.RestockLines(ctx, orderID)
		if err != nil {
			return err
		}
		var restocked []orders.ItemQty
		for _, l := range lines {
			if !l.Managed {
				continue
			}
			if err := tx.IncrementStock(ctx, l.ProductID, l.Qty); err != nil {
				return err
			}
			restocked = append(restocked, orders.ItemQty{ProductID: l.ProductID, Qty: l.Qty})
		}

		at := s.now()
		if err := tx.MarkCancelled(ctx, orderID, actor.UserID, at); err != nil {
			return err
		}
		res = VoidResult{OrderID: orderID, VoidedAt: at, Restocked: restocked}
		return nil
	})
	if err != nil {
		return VoidResult{}, s.finish("void_order", start, err, fields...)
	}
	_ = s.finish("void_order", start, nil)

	s.logger().Info("order voided", append(fields, zap.Int("restocked_lines", len(res.Restocked)))...)
	s.publish(ctx, orders.EventOrderVoided, orderID, orders.OrderVoidedPayload{
		OrderID:   orderID,
		VoidedBy:  actor.UserID,
		Restocked: res.Restocked,
		VoidedAt:  res.VoidedAt,
	})
	return res, nil
}
