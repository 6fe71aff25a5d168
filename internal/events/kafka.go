package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// ErrSinkFull is returned when the outgoing buffer cannot take more messages.
var ErrSinkFull = errors.New("kafka sink buffer full")

const envelopeVersion = 1

type envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards bus events to a Kafka topic from a single writer goroutine.
type KafkaSink struct {
	w        messageWriter
	producer string
	inbox    chan kafka.Message
	done     chan struct{}
	once     sync.Once
	logger   *zerolog.Logger
}

func NewKafkaSink(brokers []string, topic, producer string, buf int, logger *zerolog.Logger) *KafkaSink {
	return newKafkaSink(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, producer, buf, logger)
}

func newKafkaSink(w messageWriter, producer string, buf int, logger *zerolog.Logger) *KafkaSink {
	if buf <= 0 {
		buf = 256
	}
	return &KafkaSink{
		w:        w,
		producer: producer,
		inbox:    make(chan kafka.Message, buf),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Start runs the writer loop until Close is called.
func (s *KafkaSink) Start() {
	go func() {
		defer close(s.done)
		for m := range s.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.w.WriteMessages(ctx, m); err != nil {
				s.logger.Error().Err(err).Str("key", string(m.Key)).Msg("Failed to write event to kafka")
			}
			cancel()
		}
		if err := s.w.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to close kafka writer")
		}
	}()
}

// Handle is an EventHandler. It never blocks the publisher.
func (s *KafkaSink) Handle(_ context.Context, e Event) error {
	value, err := json.Marshal(envelope{
		EventID:      e.ID,
		EventType:    e.Type,
		EventVersion: envelopeVersion,
		OccurredAt:   e.CreatedAt,
		Producer:     s.producer,
		Payload:      e.Payload,
	})
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(e.Type)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}
	select {
	case s.inbox <- msg:
		return nil
	default:
		return ErrSinkFull
	}
}

// Close flushes buffered messages and waits for the writer to finish.
func (s *KafkaSink) Close() {
	s.once.Do(func() { close(s.inbox) })
	<-s.done
}
