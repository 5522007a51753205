package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

const publishTimeout = 3 * time.Second

// RequestPublisher is the Request Channel producer side.
type RequestPublisher interface {
	PublishRequest(ctx context.Context, m RequestMessage) error
}

// CompletionPublisher is the Completion Channel producer side.
type CompletionPublisher interface {
	PublishCompletion(ctx context.Context, m CompletionMessage) error
}

// Writer is satisfied by *kafka.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes encoded messages to one topic.
type KafkaPublisher struct {
	w       Writer
	timeout time.Duration
}

func NewKafkaPublisher(w Writer) *KafkaPublisher {
	return &KafkaPublisher{w: w, timeout: publishTimeout}
}

// NewKafkaWriter hashes keys so a key always lands on the same partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

func (p *KafkaPublisher) PublishRequest(ctx context.Context, m RequestMessage) error {
	msg, err := EncodeRequest(m)
	if err != nil {
		return err
	}
	return p.write(ctx, msg)
}

func (p *KafkaPublisher) PublishCompletion(ctx context.Context, m CompletionMessage) error {
	msg, err := EncodeCompletion(m)
	if err != nil {
		return err
	}
	return p.write(ctx, msg)
}

func (p *KafkaPublisher) write(ctx context.Context, msg kafka.Message) error {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.w.WriteMessages(cctx, msg)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Subscriber hands out batches and commits them explicitly.
type Subscriber interface {
	FetchBatch(ctx context.Context, max int, wait time.Duration) ([]kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSubscriber reads a topic in a consumer group with manual commits.
type KafkaSubscriber struct {
	reader *kafka.Reader
}

func NewKafkaSubscriber(brokers []string, topic, groupID string) *KafkaSubscriber {
	return &KafkaSubscriber{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commits
	})}
}

// FetchBatch blocks for the first message, then collects more until max or wait elapses.
func (s *KafkaSubscriber) FetchBatch(ctx context.Context, max int, wait time.Duration) ([]kafka.Message, error) {
	first, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafka.Message{first}

	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	for len(batch) < max {
		m, err := s.reader.FetchMessage(wctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			return batch, err
		}
		batch = append(batch, m)
	}
	return batch, nil
}

func (s *KafkaSubscriber) Commit(ctx context.Context, msgs ...kafka.Message) error {
	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.reader.CommitMessages(cctx, msgs...)
}

func (s *KafkaSubscriber) Close() error { return s.reader.Close() }
