package kafka

import (
	"testing"
	"time"

	"github.com/ariefcatur/go-pos-checkout/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEnvelopeRoutesByType(t *testing.T) {
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	env, err := orders.NewEnvelope(orders.EventOrderVoided, "pos-api", 42, orders.OrderVoidedPayload{
		OrderID:   42,
		VoidedBy:  1,
		Restocked: []orders.ItemQty{{ProductID: 3, Qty: 2}},
		VoidedAt:  at,
	})
	require.NoError(t, err)

	m, err := EncodeEnvelope(env)
	require.NoError(t, err)
	assert.Equal(t, orders.TopicOrderVoided, m.Topic)
	assert.Equal(t, orders.PartitionKey(42), m.Key)
	require.Len(t, m.Headers, 2)
	assert.Equal(t, HeaderEventType, m.Headers[0].Key)
	assert.Equal(t, orders.EventOrderVoided, string(m.Headers[0].Value))

	back, err := DecodeEnvelope(m.Value)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, back.EventID)

	p, err := UnwrapPayload[orders.OrderVoidedPayload](back.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.VoidedBy)
	assert.Equal(t, []orders.ItemQty{{ProductID: 3, Qty: 2}}, p.Restocked)
	assert.True(t, at.Equal(p.VoidedAt))
}

func TestEncodeEnvelopeUnknownType(t *testing.T) {
	_, err := EncodeEnvelope(orders.Envelope{EventType: "Mystery"})
	assert.Error(t, err)
}

func TestDecodeEnvelopeGarbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	assert.Error(t, err)
}
