package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MemoryTopic is an in-process topic usable as both Writer and Subscriber.
type MemoryTopic struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed int
	notify    chan struct{}
}

func NewMemoryTopic() *MemoryTopic {
	return &MemoryTopic{notify: make(chan struct{}, 1)}
}

func (t *MemoryTopic) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	t.mu.Lock()
	t.pending = append(t.pending, msgs...)
	t.mu.Unlock()
	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

// FetchBatch returns up to max queued messages, waiting at most wait for the first one.
func (t *MemoryTopic) FetchBatch(ctx context.Context, max int, wait time.Duration) ([]kafka.Message, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		if batch := t.take(max); len(batch) > 0 {
			return batch, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-t.notify:
		}
	}
}

func (t *MemoryTopic) take(max int) []kafka.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.pending)
	if n > max {
		n = max
	}
	batch := append([]kafka.Message(nil), t.pending[:n]...)
	t.pending = t.pending[n:]
	return batch
}

// Drain removes and returns everything queued.
func (t *MemoryTopic) Drain() []kafka.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.pending
	t.pending = nil
	return out
}

func (t *MemoryTopic) Commit(_ context.Context, msgs ...kafka.Message) error {
	t.mu.Lock()
	t.committed += len(msgs)
	t.mu.Unlock()
	return nil
}

// Committed counts messages acknowledged so far.
func (t *MemoryTopic) Committed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

func (t *MemoryTopic) Close() error { return nil }
