package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richardliu001/appointment-service/internal/messaging"
	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/richardliu001/appointment-service/internal/repo"
	"github.com/richardliu001/appointment-service/internal/schedule"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrScheduleUnresolved marks a request whose schedule no longer exists.
var ErrScheduleUnresolved = errors.New("schedule unresolved")

// CountryWorker confirms appointments of one country into its system-of-record.
type CountryWorker struct {
	country   model.CountryCode
	schedules schedule.Lookup
	store     repo.CountryRepository
	publisher messaging.CompletionPublisher
	runner    *batchRunner
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewCountryWorker(
	country model.CountryCode,
	schedules schedule.Lookup,
	store repo.CountryRepository,
	publisher messaging.CompletionPublisher,
	poolSize int,
	log *zap.SugaredLogger,
) (*CountryWorker, error) {
	if _, ok := model.ParseCountry(string(country)); !ok {
		return nil, fmt.Errorf("unsupported country %q", country)
	}
	runner, err := newBatchRunner(poolSize, log)
	if err != nil {
		return nil, err
	}
	return &CountryWorker{
		country:   country,
		schedules: schedules,
		store:     store,
		publisher: publisher,
		runner:    runner,
		log:       log.With("country", country),
		now:       time.Now,
	}, nil
}

func (w *CountryWorker) Country() model.CountryCode { return w.country }

// Process resolves the schedule, upserts the country record, then emits the completion.
func (w *CountryWorker) Process(ctx context.Context, m messaging.RequestMessage) error {
	s, err := w.schedules.GetByID(ctx, m.ScheduleID)
	if errors.Is(err, schedule.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrScheduleUnresolved, m.ScheduleID)
	}
	if err != nil {
		return fmt.Errorf("lookup schedule %d: %w", m.ScheduleID, err)
	}

	now := w.now().UTC()
	rec := &model.CountryRecord{
		ID:              m.AppointmentID,
		InsuredID:       m.InsuredID,
		ScheduleID:      m.ScheduleID,
		CenterID:        s.CenterID,
		SpecialtyID:     s.SpecialtyID,
		PractitionerID:  s.PractitionerID,
		AppointmentDate: s.Date,
		CountryCode:     w.country,
		Status:          model.CountryStatusConfirmed,
		CreatedAt:       m.Timestamp.UTC(),
		UpdatedAt:       now,
	}
	if err := w.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert country record: %w", err)
	}

	if err := w.publisher.PublishCompletion(ctx, m.Completion(now)); err != nil {
		return fmt.Errorf("publish completion: %w", err)
	}
	return nil
}

// HandleBatch processes every message independently. Messages of other countries are skipped.
func (w *CountryWorker) HandleBatch(ctx context.Context, msgs []kafka.Message) BatchResult {
	return w.runner.run(ctx, msgs, w.handle)
}

func (w *CountryWorker) handle(ctx context.Context, msg kafka.Message) outcome {
	if messaging.CountryOf(msg) != w.country {
		return skipped
	}
	m, err := messaging.DecodeRequest(msg)
	if err != nil {
		w.log.Errorw("drop malformed request", "offset", msg.Offset, "error", err)
		return failed
	}
	if m.CountryCode != w.country {
		w.log.Warnw("request body routed to wrong country", "appointment_id", m.AppointmentID, "body_country", m.CountryCode)
		return skipped
	}

	if err := w.Process(ctx, m); err != nil {
		w.log.Errorw("abandon appointment request",
			"appointment_id", m.AppointmentID, "schedule_id", m.ScheduleID, "error", err)
		return failed
	}
	w.log.Infow("appointment confirmed", "appointment_id", m.AppointmentID)
	return processed
}

// History lists the confirmed records of one insured party in this country, newest first.
func (w *CountryWorker) History(ctx context.Context, insuredID string) ([]model.CountryRecord, error) {
	return w.store.QueryByInsuredID(ctx, model.NormalizeInsuredID(insuredID))
}

func (w *CountryWorker) Close() { w.runner.release() }
