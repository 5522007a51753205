package service

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/appointment-service/internal/apperr"
	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/richardliu001/appointment-service/internal/repo"
	"go.uber.org/zap"
)

// CompletionService applies the closing transition of the saga. It needs only the
// fast-path store, so consumers can run it without a publisher or schedule lookup.
type CompletionService struct {
	repo repo.AppointmentRepository
	log  *zap.SugaredLogger
	now  func() time.Time
}

func NewCompletionService(r repo.AppointmentRepository, logger *zap.SugaredLogger) *CompletionService {
	return &CompletionService{repo: r, log: logger, now: time.Now}
}

// CompleteByMessage applies pending -> completed. Repeated calls are no-ops.
func (s *CompletionService) CompleteByMessage(ctx context.Context, appointmentID string) error {
	err := s.repo.UpdateStatus(ctx, appointmentID, model.StatusCompleted, s.now(), "")
	switch {
	case err == nil:
		s.log.Infow("appointment completed", "appointment_id", appointmentID)
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return apperr.NotFound("appointment %s not found", appointmentID)
	case errors.Is(err, repo.ErrConditionFailed):
		cur, gerr := s.repo.GetByID(ctx, appointmentID)
		if gerr != nil {
			return apperr.Storage(gerr, "load appointment")
		}
		if cur.Status == model.StatusFailed {
			s.log.Warnw("completion for failed appointment ignored", "appointment_id", appointmentID)
		}
		return nil
	default:
		return apperr.Storage(err, "complete appointment")
	}
}
