// Package projector consumes order events and keeps the read caches warm:
// the per-order status entry and the active catalog.
package projector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-pos-checkout/internal/kafka"
	"github.com/ariefcatur/go-pos-checkout/internal/orders"
	"github.com/ariefcatur/go-pos-checkout/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Service struct {
	Cache       Cache
	Log         *zap.Logger
	ServiceName string
}

// HandleMessage dipasang sebagai handler consumer.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		// pesan rusak tidak akan sembuh dengan retry; log lalu commit
		s.Log.Error("drop malformed event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	return s.Handle(ctx, env)
}

func (s *Service) Handle(ctx context.Context, env orders.Envelope) error {
	view, ok, err := Project(env)
	if err != nil {
		s.Log.Error("drop undecodable payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if !ok {
		return nil // ignore
	}

	// dedup via Redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	fresh, err := s.Cache.Claim(ctx, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("claim %s: %w", dkey, err)
	}
	if !fresh {
		return nil
	}

	b, err := json.Marshal(view)
	if err != nil {
		return err
	}
	if err := s.writeStatus(ctx, view, b); err != nil {
		_ = s.Cache.Del(ctx, dkey) // biar retry berikutnya tidak dianggap duplikat
		return fmt.Errorf("cache status: %w", err)
	}
	// stok berubah (jual atau restock), katalog cache basi
	if err := s.Cache.Del(ctx, redisx.KeyCatalog); err != nil {
		s.Log.Warn("invalidate catalog", zap.Error(err))
	}

	s.Log.Info("order projected",
		zap.String("event_type", env.EventType),
		zap.Int64("order_id", view.OrderID),
		zap.String("status", string(view.Status)))
	return nil
}

// writeStatus never lets a late OrderPaid overwrite a cancelled entry: paid
// and voided travel on different topics and workers run in parallel.
func (s *Service) writeStatus(ctx context.Context, view orders.StatusView, b []byte) error {
	key := fmt.Sprintf(redisx.KeyOrderStatus, view.OrderID)
	if view.Status == orders.StatusCancelled {
		return s.Cache.Set(ctx, key, b, redisx.TTLStatusCache)
	}
	_, err := s.Cache.SetIfAbsent(ctx, key, b, redisx.TTLStatusCache)
	return err
}

// Project maps an event onto the status entry it implies. ok is false for
// event types the projector does not track.
func Project(env orders.Envelope) (orders.StatusView, bool, error) {
	switch env.EventType {
	case orders.EventOrderPaid:
		p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
		if err != nil {
			return orders.StatusView{}, false, err
		}
		return orders.StatusView{OrderID: p.OrderID, Status: orders.StatusPaid, UpdatedAt: p.PaidAt}, true, nil
	case orders.EventOrderVoided:
		p, err := kafkax.UnwrapPayload[orders.OrderVoidedPayload](env.Payload)
		if err != nil {
			return orders.StatusView{}, false, err
		}
		return orders.StatusView{OrderID: p.OrderID, Status: orders.StatusCancelled, UpdatedAt: p.VoidedAt}, true, nil
	}
	return orders.StatusView{}, false, nil
}
