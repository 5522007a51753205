package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richardliu001/appointment-service/internal/apperr"
	"github.com/richardliu001/appointment-service/internal/logger"
	"github.com/richardliu001/appointment-service/internal/messaging"
	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/richardliu001/appointment-service/internal/repo"
	"github.com/richardliu001/appointment-service/internal/schedule"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	log, err := logger.NewLogger("fatal")
	require.NoError(t, err)
	return log
}

type panickyLookup struct {
	schedule.Lookup
	panicOn int64
}

func (l panickyLookup) GetByID(ctx context.Context, id int64) (*model.Schedule, error) {
	if id == l.panicOn {
		panic("lookup exploded")
	}
	return l.Lookup.GetByID(ctx, id)
}

func requestMsg(t *testing.T, id string, scheduleID int64, country model.CountryCode) kafka.Message {
	t.Helper()
	a := model.NewAppointment(id, "123", scheduleID, country, time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC))
	msg, err := messaging.EncodeRequest(messaging.NewRequestMessage(a))
	require.NoError(t, err)
	return msg
}

func newPEWorker(t *testing.T, lookup schedule.Lookup) (*CountryWorker, *repo.MemoryCountryRepository, *messaging.MemoryTopic) {
	t.Helper()
	store := repo.NewMemoryCountryRepository()
	completions := messaging.NewMemoryTopic()
	w, err := NewCountryWorker(model.CountryPE, lookup, store, messaging.NewKafkaPublisher(completions), 4, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w, store, completions
}

func TestCountryWorker_ConfirmsAndEmits(t *testing.T) {
	w, store, completions := newPEWorker(t, schedule.NewMemoryLookup(schedule.DefaultSchedules()...))

	res := w.HandleBatch(context.Background(), []kafka.Message{requestMsg(t, "a-1", 100, model.CountryPE)})
	assert.Equal(t, BatchResult{Processed: 1}, res)

	recs, err := w.History(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.CountryStatusConfirmed, recs[0].Status)
	assert.Equal(t, int64(4), recs[0].CenterID)
	assert.Equal(t, int64(3), recs[0].SpecialtyID)
	assert.Equal(t, int64(4), recs[0].PractitionerID)
	assert.Equal(t, 1, store.Len())

	out := completions.Drain()
	require.Len(t, out, 1)
	c, err := messaging.DecodeCompletion(out[0])
	require.NoError(t, err)
	assert.Equal(t, "a-1", c.AppointmentID)
	assert.Equal(t, model.StatusCompleted, c.Status)
	assert.Equal(t, model.CountryPE, c.CountryCode)
}

func TestCountryWorker_SkipsOtherCountries(t *testing.T) {
	w, store, completions := newPEWorker(t, schedule.NewMemoryLookup(schedule.DefaultSchedules()...))

	clMsg := requestMsg(t, "a-cl", 100, model.CountryCL)
	res := w.HandleBatch(context.Background(), []kafka.Message{clMsg})
	assert.Equal(t, BatchResult{Skipped: 1}, res)

	// header says PE, body says CL
	mixed := requestMsg(t, "a-mixed", 100, model.CountryCL)
	mixed.Headers[0].Value = []byte("PE")
	res = w.HandleBatch(context.Background(), []kafka.Message{mixed})
	assert.Equal(t, BatchResult{Skipped: 1}, res)

	assert.Equal(t, 0, store.Len())
	assert.Empty(t, completions.Drain())
}

func TestCountryWorker_UnresolvedScheduleIsDropped(t *testing.T) {
	w, store, completions := newPEWorker(t, schedule.NewMemoryLookup(schedule.DefaultSchedules()...))

	res := w.HandleBatch(context.Background(), []kafka.Message{requestMsg(t, "a-1", 999, model.CountryPE)})
	assert.Equal(t, BatchResult{Failed: 1}, res)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, completions.Drain())

	err := w.Process(context.Background(), messaging.RequestMessage{AppointmentID: "a-2", ScheduleID: 999, CountryCode: model.CountryPE})
	assert.ErrorIs(t, err, ErrScheduleUnresolved)
}

func TestCountryWorker_RedeliveryKeepsOneRecord(t *testing.T) {
	w, store, completions := newPEWorker(t, schedule.NewMemoryLookup(schedule.DefaultSchedules()...))
	base := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	msg := requestMsg(t, "a-1", 100, model.CountryPE)

	w.now = func() time.Time { return base }
	w.HandleBatch(context.Background(), []kafka.Message{msg})
	w.now = func() time.Time { return base.Add(time.Hour) }
	w.HandleBatch(context.Background(), []kafka.Message{msg})

	assert.Equal(t, 1, store.Len())
	recs, err := store.QueryByInsuredID(context.Background(), "00123")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), recs[0].UpdatedAt)
	assert.Len(t, completions.Drain(), 2)
}

func TestCountryWorker_PerMessageIsolation(t *testing.T) {
	lookup := panickyLookup{Lookup: schedule.NewMemoryLookup(schedule.DefaultSchedules()...), panicOn: 666}
	w, store, completions := newPEWorker(t, lookup)

	res := w.HandleBatch(context.Background(), []kafka.Message{
		requestMsg(t, "ok-1", 100, model.CountryPE),
		requestMsg(t, "boom", 666, model.CountryPE),
		requestMsg(t, "gone", 999, model.CountryPE),
		{Value: []byte("garbage"), Headers: []kafka.Header{{Key: messaging.HeaderCountry, Value: []byte("PE")}}},
		requestMsg(t, "ok-2", 101, model.CountryPE),
	})

	assert.Equal(t, BatchResult{Processed: 2, Failed: 3}, res)
	assert.Equal(t, 2, store.Len())
	assert.Len(t, completions.Drain(), 2)
}

func TestNewCountryWorker_RejectsUnknownCountry(t *testing.T) {
	_, err := NewCountryWorker("AR", schedule.NewMemoryLookup(), repo.NewMemoryCountryRepository(), nil, 1, testLogger(t))
	assert.Error(t, err)
}

type recordingCompleter struct {
	calls []string
	err   error
}

func (r *recordingCompleter) CompleteByMessage(_ context.Context, id string) error {
	r.calls = append(r.calls, id)
	return r.err
}

func completionMsg(t *testing.T, id string) kafka.Message {
	t.Helper()
	req := messaging.RequestMessage{AppointmentID: id, InsuredID: "00123", ScheduleID: 100, CountryCode: model.CountryPE}
	msg, err := messaging.EncodeCompletion(req.Completion(time.Now()))
	require.NoError(t, err)
	return msg
}

func TestCompletionConsumer_DropsUnusableMessages(t *testing.T) {
	completer := &recordingCompleter{}
	c, err := NewCompletionConsumer(completer, 1, testLogger(t))
	require.NoError(t, err)
	defer c.Close()

	res := c.HandleBatch(context.Background(), []kafka.Message{
		completionMsg(t, ""),
		{Value: []byte("{}")},
		completionMsg(t, "a-1"),
	})
	assert.Equal(t, BatchResult{Processed: 1, Failed: 2}, res)
	assert.Equal(t, []string{"a-1"}, completer.calls)
}

func TestCompletionConsumer_NotFoundIsFailedNotFatal(t *testing.T) {
	completer := &recordingCompleter{err: apperr.NotFound("appointment x not found")}
	c, err := NewCompletionConsumer(completer, 1, testLogger(t))
	require.NoError(t, err)
	defer c.Close()

	res := c.HandleBatch(context.Background(), []kafka.Message{completionMsg(t, "x")})
	assert.Equal(t, BatchResult{Failed: 1}, res)

	completer.err = errors.New("db down")
	res = c.HandleBatch(context.Background(), []kafka.Message{completionMsg(t, "y")})
	assert.Equal(t, BatchResult{Failed: 1}, res)
}

type countingHandler struct {
	batches chan []kafka.Message
}

func (h countingHandler) HandleBatch(_ context.Context, msgs []kafka.Message) BatchResult {
	h.batches <- msgs
	return BatchResult{Processed: len(msgs)}
}

func TestRun_CommitsEveryFetchedMessage(t *testing.T) {
	topic := messaging.NewMemoryTopic()
	for i := 0; i < 3; i++ {
		require.NoError(t, topic.WriteMessages(context.Background(), kafka.Message{Offset: int64(i)}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := countingHandler{batches: make(chan []kafka.Message, 10)}
	log := testLogger(t)
	done := make(chan struct{})
	go func() {
		Run(ctx, topic, h, 2, 10*time.Millisecond, log)
		close(done)
	}()

	got := 0
	for got < 3 {
		select {
		case b := <-h.batches:
			got += len(b)
		case <-time.After(2 * time.Second):
			t.Fatal("batches not delivered")
		}
	}
	cancel()
	<-done

	assert.Equal(t, 3, topic.Committed())
}

// cancelAfterFetch simulates a shutdown signal landing right after a batch is fetched.
type cancelAfterFetch struct {
	*messaging.MemoryTopic
	cancel context.CancelFunc
}

func (s cancelAfterFetch) FetchBatch(ctx context.Context, max int, wait time.Duration) ([]kafka.Message, error) {
	batch, err := s.MemoryTopic.FetchBatch(ctx, max, wait)
	s.cancel()
	return batch, err
}

type ctxCountryStore struct {
	*repo.MemoryCountryRepository
}

func (s ctxCountryStore) Upsert(ctx context.Context, rec *model.CountryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryCountryRepository.Upsert(ctx, rec)
}

type ctxCompleter struct {
	recordingCompleter
}

func (c *ctxCompleter) CompleteByMessage(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.recordingCompleter.CompleteByMessage(ctx, id)
}

func TestRun_FinishesBatchFetchedBeforeShutdown(t *testing.T) {
	topic := messaging.NewMemoryTopic()
	require.NoError(t, topic.WriteMessages(context.Background(), requestMsg(t, "a-1", 100, model.CountryPE)))

	store := ctxCountryStore{repo.NewMemoryCountryRepository()}
	completions := messaging.NewMemoryTopic()
	w, err := NewCountryWorker(model.CountryPE, schedule.NewMemoryLookup(schedule.DefaultSchedules()...),
		store, messaging.NewKafkaPublisher(completions), 2, testLogger(t))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Run(ctx, cancelAfterFetch{MemoryTopic: topic, cancel: cancel}, w, 10, 10*time.Millisecond, testLogger(t))

	assert.Equal(t, 1, topic.Committed())
	assert.Equal(t, 1, store.Len())
	assert.Len(t, completions.Drain(), 1)
}

func TestRun_CompletionBatchSurvivesShutdown(t *testing.T) {
	topic := messaging.NewMemoryTopic()
	require.NoError(t, topic.WriteMessages(context.Background(), completionMsg(t, "a-1"), completionMsg(t, "a-2")))

	completer := &ctxCompleter{}
	c, err := NewCompletionConsumer(completer, 1, testLogger(t))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Run(ctx, cancelAfterFetch{MemoryTopic: topic, cancel: cancel}, c, 10, 10*time.Millisecond, testLogger(t))

	assert.Equal(t, 2, topic.Committed())
	assert.ElementsMatch(t, []string{"a-1", "a-2"}, completer.calls)
}
