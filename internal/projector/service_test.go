package projector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/go-pos-checkout/internal/kafka"
	"github.com/ariefcatur/go-pos-checkout/internal/orders"
	"github.com/ariefcatur/go-pos-checkout/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCache struct {
	mu   sync.Mutex
	m    map[string][]byte
	sets int
}

func newFakeCache() *fakeCache { return &fakeCache{m: map[string][]byte{}} }

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	c.sets++
	return nil
}

func (c *fakeCache) SetIfAbsent(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; ok {
		return false, nil
	}
	c.m[key] = value
	c.sets++
	return true, nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.m, k)
	}
	return nil
}

func (c *fakeCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.SetIfAbsent(ctx, key, []byte("1"), ttl)
}

func (c *fakeCache) status(t *testing.T, orderID int64) orders.StatusView {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[fmt.Sprintf(redisx.KeyOrderStatus, orderID)]
	require.True(t, ok)
	var v orders.StatusView
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

func newService() (*Service, *fakeCache) {
	c := newFakeCache()
	return &Service{Cache: c, Log: zap.NewNop(), ServiceName: "projector"}, c
}

func paid(t *testing.T, orderID int64) orders.Envelope {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventOrderPaid, "pos-api", orderID, orders.OrderPaidPayload{
		OrderID: orderID, TransactionCode: "TRX-20260101-AB12", Total: "4.40", PaidAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return env
}

func voided(t *testing.T, orderID int64) orders.Envelope {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventOrderVoided, "pos-api", orderID, orders.OrderVoidedPayload{
		OrderID: orderID, VoidedBy: 1, VoidedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return env
}

func TestHandleWritesStatusAndDropsCatalog(t *testing.T) {
	svc, c := newService()
	require.NoError(t, c.Set(context.Background(), redisx.KeyCatalog, []byte("[]"), 0))

	require.NoError(t, svc.Handle(context.Background(), paid(t, 7)))
	assert.Equal(t, orders.StatusPaid, c.status(t, 7).Status)
	_, stillCached := c.m[redisx.KeyCatalog]
	assert.False(t, stillCached)

	require.NoError(t, svc.Handle(context.Background(), voided(t, 7)))
	assert.Equal(t, orders.StatusCancelled, c.status(t, 7).Status)
}

func TestLatePaidDoesNotResurrectCancelled(t *testing.T) {
	svc, c := newService()

	require.NoError(t, svc.Handle(context.Background(), voided(t, 9)))
	require.NoError(t, svc.Handle(context.Background(), paid(t, 9)))
	assert.Equal(t, orders.StatusCancelled, c.status(t, 9).Status)
}

func TestHandleDedupsByEventID(t *testing.T) {
	svc, c := newService()
	env := voided(t, 3)

	require.NoError(t, svc.Handle(context.Background(), env))
	before := c.sets
	require.NoError(t, svc.Handle(context.Background(), env))
	assert.Equal(t, before, c.sets)
}

func TestHandleMessageSkipsGarbage(t *testing.T) {
	svc, c := newService()

	assert.NoError(t, svc.HandleMessage(context.Background(), kafkago.Message{Value: []byte("{")}))
	assert.Empty(t, c.m)

	m, err := kafkax.EncodeEnvelope(paid(t, 5))
	require.NoError(t, err)
	require.NoError(t, svc.HandleMessage(context.Background(), m))
	assert.Equal(t, orders.StatusPaid, c.status(t, 5).Status)
}

func TestProjectIgnoresUnknownTypes(t *testing.T) {
	_, ok, err := Project(orders.Envelope{EventType: "StockReserved"})
	assert.NoError(t, err)
	assert.False(t, ok)
}
