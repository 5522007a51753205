// Package worker holds the asynchronous stages of the booking saga.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type outcome int

const (
	processed outcome = iota
	skipped
	failed
)

// BatchResult counts what happened to each message of a batch.
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
}

// batchRunner fans a batch out over an ants pool, isolating each message.
type batchRunner struct {
	pool *ants.Pool
	log  *zap.SugaredLogger
}

func newBatchRunner(size int, log *zap.SugaredLogger) (*batchRunner, error) {
	pool, err := ants.NewPool(size,
		ants.WithPanicHandler(func(p interface{}) {
			log.Errorw("worker panic recovered", "panic", p)
		}),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &batchRunner{pool: pool, log: log}, nil
}

func (r *batchRunner) run(ctx context.Context, msgs []kafka.Message, fn func(context.Context, kafka.Message) outcome) BatchResult {
	var (
		wg               sync.WaitGroup
		done, skip, fail atomic.Int64
	)
	record := func(o outcome) {
		switch o {
		case processed:
			done.Add(1)
		case skipped:
			skip.Add(1)
		default:
			fail.Add(1)
		}
	}

	for _, msg := range msgs {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					r.log.Errorw("message handler panicked",
						"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "panic", p)
					fail.Add(1)
				}
			}()
			record(fn(ctx, msg))
		}
		if err := r.pool.Submit(task); err != nil {
			r.log.Errorw("submit to worker pool", "offset", msg.Offset, "error", err)
			wg.Done()
			fail.Add(1)
		}
	}
	wg.Wait()

	return BatchResult{Processed: int(done.Load()), Skipped: int(skip.Load()), Failed: int(fail.Load())}
}

func (r *batchRunner) release() {
	if err := r.pool.ReleaseTimeout(30 * time.Second); err != nil {
		r.log.Warnw("worker pool shutdown timeout", "error", err)
	}
}
