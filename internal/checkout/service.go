// Package checkout is the transaction engine of the POS: it turns a cart into
// a paid order and reverses paid orders. Every call runs in one ledger
// transaction and either commits fully or leaves the ledgers untouched.
package checkout

import (
	"context"
	"time"

	"github.com/ariefcatur/go-pos-checkout/internal/metrics"
	"github.com/ariefcatur/go-pos-checkout/internal/orders"
	"go.uber.org/zap"
)

// DefaultTxTimeout bounds a single checkout transaction, lock waits included.
const DefaultTxTimeout = 5 * time.Second

// Publisher receives order events after commit. Failures are logged, never
// returned to the caller: the order is already durable.
type Publisher interface {
	Publish(ctx context.Context, env orders.Envelope) error
}

type Service struct {
	Ledger  orders.Ledger
	Events  Publisher         // optional
	Metrics *metrics.Checkout // optional
	Log     *zap.Logger

	TxTimeout   time.Duration
	ServiceName string

	Now     func() time.Time
	NewCode func(time.Time) string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newCode(t time.Time) string {
	if s.NewCode != nil {
		return s.NewCode(t)
	}
	return NewTransactionCode(t)
}

func (s *Service) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.TxTimeout
	if d <= 0 {
		d = DefaultTxTimeout
	}
	return context.WithTimeout(ctx, d)
}

// finish normalizes err into an *orders.Error, records metrics and logs rejections.
func (s *Service) finish(op string, start time.Time, err error, fields ...zap.Field) error {
	if err == nil {
		s.Metrics.Observe(op, "ok", start)
		return nil
	}
	err = orders.Classify(op, err)
	kind := orders.KindOf(err)
	s.Metrics.Observe(op, string(kind), start)

	fields = append(fields, zap.String("kind", string(kind)), zap.Error(err))
	if kind == orders.KindInternal {
		s.logger().Error(op+" failed", fields...)
	} else {
		s.logger().Warn(op+" rejected", fields...)
	}
	return err
}

func (s *Service) publish(ctx context.Context, eventType string, orderID int64, payload any) {
	if s.Events == nil {
		return
	}
	env, err := orders.NewEnvelope(eventType, s.ServiceName, orderID, payload)
	if err != nil {
		s.logger().Error("build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	// ctx request boleh sudah selesai; publish jangan ikut dibatalkan
	if err := s.Events.Publish(context.WithoutCancel(ctx), env); err != nil {
		s.logger().Warn("publish event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}
}
