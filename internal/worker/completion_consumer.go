package worker

import (
	"context"

	"github.com/richardliu001/appointment-service/internal/apperr"
	"github.com/richardliu001/appointment-service/internal/messaging"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Completer applies the terminal transition of an appointment.
type Completer interface {
	CompleteByMessage(ctx context.Context, appointmentID string) error
}

// CompletionConsumer fans completion events back into the fast-path store.
type CompletionConsumer struct {
	svc    Completer
	runner *batchRunner
	log    *zap.SugaredLogger
}

func NewCompletionConsumer(svc Completer, poolSize int, log *zap.SugaredLogger) (*CompletionConsumer, error) {
	runner, err := newBatchRunner(poolSize, log)
	if err != nil {
		return nil, err
	}
	return &CompletionConsumer{svc: svc, runner: runner, log: log}, nil
}

func (c *CompletionConsumer) HandleBatch(ctx context.Context, msgs []kafka.Message) BatchResult {
	return c.runner.run(ctx, msgs, c.handle)
}

func (c *CompletionConsumer) handle(ctx context.Context, msg kafka.Message) outcome {
	m, err := messaging.DecodeCompletion(msg)
	if err != nil {
		c.log.Errorw("drop malformed completion", "offset", msg.Offset, "error", err)
		return failed
	}
	if m.AppointmentID == "" {
		c.log.Errorw("drop completion without appointment id", "offset", msg.Offset)
		return failed
	}

	if err := c.svc.CompleteByMessage(ctx, m.AppointmentID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			c.log.Warnw("completion for unknown appointment", "appointment_id", m.AppointmentID)
		} else {
			c.log.Errorw("abandon completion", "appointment_id", m.AppointmentID, "error", err)
		}
		return failed
	}
	return processed
}

func (c *CompletionConsumer) Close() { c.runner.release() }
