package kafka

import (
	"context"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestProducerSendAfterClose(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:9"}, 4, zap.NewNop())
	p.Start()
	p.Close()

	err := p.Send(context.Background(), kafka.Message{Topic: "orders.paid", Value: []byte("{}")})
	assert.ErrorIs(t, err, ErrProducerClosed)

	// close kedua tidak boleh panic
	assert.NotPanics(t, p.Close)
}

func TestProducerSendRacingClose(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:9"}, 0, zap.NewNop())
	p.w.MaxAttempts = 1
	p.Start()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				err := p.Send(context.Background(), kafka.Message{Topic: "orders.paid"})
				if err != nil && err != ErrProducerFull && err != ErrProducerClosed {
					t.Errorf("unexpected send error: %v", err)
					return
				}
			}
		}()
	}
	p.Close()
	wg.Wait()

	assert.ErrorIs(t, p.Send(context.Background(), kafka.Message{}), ErrProducerClosed)
}

func TestProducerFullInbox(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:9"}, 1, zap.NewNop())
	// tanpa Start, inbox tidak pernah dikuras

	assert.NoError(t, p.Send(context.Background(), kafka.Message{}))
	assert.ErrorIs(t, p.Send(context.Background(), kafka.Message{}), ErrProducerFull)
}
