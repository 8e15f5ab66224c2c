package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"

	"clinicdesk/backend/internal/domain"
)

const (
	headerEventKind   = "event-kind"
	headerContentType = "content-type"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration

	// BatchTimeout bounds how long a message waits for a batch to fill.
	// Notify blocks on the write, so it stays in the low milliseconds.
	BatchTimeout time.Duration

	// BreakerFailures consecutive write failures open the breaker for
	// BreakerCooldown; while open, events are rejected without touching
	// the brokers.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

const (
	defaultWriteTimeout    = 10 * time.Second
	defaultBatchTimeout    = 5 * time.Millisecond
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
)

// Publisher writes appointment events to a Kafka topic. Messages are keyed
// by appointment id so every event for one appointment lands on the same
// partition, in order.
type Publisher struct {
	w       messageWriter
	topic   string
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *slog.Logger
}

func NewPublisher(cfg Config, log *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	return newPublisher(newWriter(cfg), cfg, log), nil
}

func newWriter(cfg Config) *kafkago.Writer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

func newPublisher(w messageWriter, cfg Config, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}
	log = log.With(slog.String("component", "notify.kafka"), slog.String("topic", cfg.Topic))

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka:" + cfg.Topic,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("kafka breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Publisher{
		w:       w,
		topic:   cfg.Topic,
		breaker: breaker,
		log:     log,
	}
}

type eventPayload struct {
	Kind        domain.EventKind   `json:"kind"`
	OccurredAt  time.Time          `json:"occurredAt"`
	Appointment domain.Appointment `json:"appointment"`
}

func (p *Publisher) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	msg, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.w.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("kafka: publishing %s for %s: %w", ev.Kind, ev.Appointment.ID, err)
	}
	p.log.DebugContext(ctx, "published appointment event",
		slog.String("kind", string(ev.Kind)),
		slog.String("appointment_id", ev.Appointment.ID),
	)
	return nil
}

func encodeEvent(ev domain.AppointmentEvent) (kafkago.Message, error) {
	value, err := json.Marshal(eventPayload{
		Kind:        ev.Kind,
		OccurredAt:  ev.OccurredAt,
		Appointment: ev.Appointment,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("kafka: encoding event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.Appointment.ID),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafkago.Header{
			{Key: headerEventKind, Value: []byte(ev.Kind)},
			{Key: headerContentType, Value: []byte("application/json")},
		},
	}, nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
