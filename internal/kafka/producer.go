package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/ariefcatur/go-pos-checkout/internal/orders"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var (
	ErrProducerFull   = errors.New("kafka producer inbox full")
	ErrProducerClosed = errors.New("kafka producer closed")
)

// Producer buffers messages in an inbox drained by one goroutine. Topic is
// taken per message, so one producer serves every order topic.
type Producer struct {
	w      *kafka.Writer
	inbox  chan kafka.Message
	closed chan struct{}
	log    *zap.Logger

	mu      sync.RWMutex
	stopped bool
}

func NewProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	p := &Producer{
		inbox:  make(chan kafka.Message, buf),
		closed: make(chan struct{}),
		log:    log,
	}
	p.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  true, // fire-and-forget; error dilaporkan lewat Completion
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				p.log.Error("kafka write failed", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
	return p
}

func (p *Producer) Start() {
	go func() {
		defer close(p.closed)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.log.Error("kafka enqueue failed", zap.String("topic", m.Topic), zap.Error(err))
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn("kafka writer close", zap.Error(err))
		}
	}()
}

// Send enqueues m without blocking past ctx. After Close it returns
// ErrProducerClosed.
func (p *Producer) Send(ctx context.Context, m kafka.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrProducerFull
	}
}

// Close stops intake, flushes the inbox and waits for the writer. It must
// follow Start; later calls are no-ops.
func (p *Producer) Close() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.inbox)
	p.mu.Unlock()
	<-p.closed
}

// EventPublisher adapts Producer to the checkout event sink.
type EventPublisher struct {
	P *Producer
}

func (e EventPublisher) Publish(ctx context.Context, env orders.Envelope) error {
	m, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	return e.P.Send(ctx, m)
}
