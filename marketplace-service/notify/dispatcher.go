package notify

import (
	"context"
	"sync"
	"time"

	"agromart/marketplace-service/circuitbreaker"
	"agromart/pkg/events"
	"agromart/pkg/kafka"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, n events.Notification) error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// Publish keys messages by recipient so one user's notifications stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, n events.Notification) error {
	return kafka.PublishJSON(ctx, p.producer, p.topic, n.RecipientID, n, p.logger)
}

type queued struct {
	span trace.SpanContext
	req  Request
}

// Dispatcher queues requests and publishes them from a single worker behind
// a circuit breaker. Dispatch never blocks: a full queue drops the request.
type Dispatcher struct {
	queue   chan queued
	pub     Publisher
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(pub Publisher, queueSize int, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:   make(chan queued, queueSize),
		pub:     pub,
		breaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
		logger:  logger,
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	go d.run()
}

func (d *Dispatcher) Dispatch(ctx context.Context, reqs ...Request) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		for _, r := range reqs {
			d.logger.Warn("Dispatcher closed, dropping notification",
				zap.String("event_type", r.Type), zap.String("recipient_id", r.RecipientID))
		}
		return
	}

	sc := trace.SpanContextFromContext(ctx)
	for _, r := range reqs {
		select {
		case d.queue <- queued{span: sc, req: r}:
			notificationsQueued.WithLabelValues(r.Type).Inc()
		default:
			notificationsDropped.WithLabelValues(r.Type).Inc()
			d.logger.Warn("Notification queue full, dropping notification",
				zap.String("event_type", r.Type),
				zap.String("recipient_id", r.RecipientID),
				zap.String("order_number", r.OrderNumber))
		}
	}
}

// Close stops accepting requests and waits for the queue to drain or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for q := range d.queue {
		d.deliver(q)
	}
}

func (d *Dispatcher) deliver(q queued) {
	ctx, cancel := context.WithTimeout(trace.ContextWithSpanContext(context.Background(), q.span), 10*time.Second)
	defer cancel()

	event := q.req.Event(d.now())
	err := d.breaker.Execute(func() error {
		return d.pub.Publish(ctx, event)
	})
	if err != nil {
		notificationsFailed.WithLabelValues(q.req.Type).Inc()
		d.logger.Error("Failed to publish notification",
			zap.Error(err),
			zap.String("event_type", q.req.Type),
			zap.String("recipient_id", q.req.RecipientID),
			zap.String("order_number", q.req.OrderNumber))
		return
	}
	notificationsSent.WithLabelValues(q.req.Type).Inc()
}
