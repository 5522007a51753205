package worker

import (
	"context"
	"time"

	"github.com/richardliu001/appointment-service/internal/messaging"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const fetchBackoff = 500 * time.Millisecond

// BatchHandler is implemented by CountryWorker and CompletionConsumer.
type BatchHandler interface {
	HandleBatch(ctx context.Context, msgs []kafka.Message) BatchResult
}

// Run consumes until ctx is cancelled. Every fetched message is committed after one
// attempt, including those that failed. A fetched batch is always handled to the end,
// even when ctx is cancelled mid-batch, so nothing is committed unprocessed.
func Run(ctx context.Context, sub messaging.Subscriber, h BatchHandler, batchSize int, wait time.Duration, log *zap.SugaredLogger) {
	for ctx.Err() == nil {
		msgs, err := sub.FetchBatch(ctx, batchSize, wait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorw("fetch batch", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchBackoff):
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		res := h.HandleBatch(context.WithoutCancel(ctx), msgs)
		log.Infow("batch handled", "size", len(msgs), "processed", res.Processed, "skipped", res.Skipped, "failed", res.Failed)

		if err := sub.Commit(context.WithoutCancel(ctx), msgs...); err != nil {
			log.Errorw("commit batch", "error", err)
		}
	}
}
