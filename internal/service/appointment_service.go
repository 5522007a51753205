package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/appointment-service/internal/apperr"
	"github.com/richardliu001/appointment-service/internal/messaging"
	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/richardliu001/appointment-service/internal/repo"
	"github.com/richardliu001/appointment-service/internal/schedule"
	"go.uber.org/zap"
)

// AppointmentService is the synchronous half of the booking saga.
type AppointmentService struct {
	repo      repo.AppointmentRepository
	schedules schedule.Lookup
	publisher messaging.RequestPublisher
	log       *zap.SugaredLogger

	now   func() time.Time
	newID func() string
}

// NewAppointmentService returns AppointmentService.
func NewAppointmentService(r repo.AppointmentRepository, s schedule.Lookup, p messaging.RequestPublisher, logger *zap.SugaredLogger) *AppointmentService {
	return &AppointmentService{
		repo:      r,
		schedules: s,
		publisher: p,
		log:       logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create books a pending appointment and hands it to the country worker.
// The call is not cancellable once started; ctx only carries values.
func (s *AppointmentService) Create(ctx context.Context, insuredID string, scheduleID int64, country string) (*model.Appointment, error) {
	ctx = context.WithoutCancel(ctx)

	a := model.NewAppointment(s.newID(), insuredID, scheduleID, model.CountryCode(country), s.now())
	if err := a.Validate(); err != nil {
		return nil, err
	}

	// advisory only, nothing holds the slot until the country worker resolves it again
	if _, err := s.schedules.GetByID(ctx, scheduleID); err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			return nil, apperr.NotFound("schedule %d not found", scheduleID)
		}
		return nil, apperr.Storage(err, "schedule lookup failed")
	}

	if err := s.repo.Put(ctx, a); err != nil {
		return nil, apperr.Storage(err, "save appointment")
	}

	if err := s.publisher.PublishRequest(ctx, messaging.NewRequestMessage(a)); err != nil {
		s.log.Errorw("appointment stored but request not published",
			"appointment_id", a.ID, "country", a.CountryCode, "error", err)
		return nil, apperr.Messaging(err, "publish appointment request")
	}

	s.log.Infow("appointment created",
		"appointment_id", a.ID, "insured_id", a.InsuredID, "schedule_id", a.ScheduleID, "country", a.CountryCode)
	return a, nil
}

// CompleteByMessage applies pending -> completed. Repeated calls are no-ops.
func (s *AppointmentService) CompleteByMessage(ctx context.Context, appointmentID string) error {
	c := CompletionService{repo: s.repo, log: s.log, now: s.now}
	return c.CompleteByMessage(ctx, appointmentID)
}

// ListByInsuredID returns the appointments of one insured party, newest first.
func (s *AppointmentService) ListByInsuredID(ctx context.Context, insuredID string) ([]model.Appointment, error) {
	if !model.ValidInsuredID(insuredID) {
		return nil, apperr.Validation(apperr.FieldError{
			Field:   "insuredId",
			Message: "insuredId must be a valid 5-digit number (can have leading zeros)",
		})
	}
	items, err := s.repo.QueryByInsuredID(ctx, model.NormalizeInsuredID(insuredID))
	if err != nil {
		return nil, apperr.Storage(err, "query appointments")
	}
	return items, nil
}
