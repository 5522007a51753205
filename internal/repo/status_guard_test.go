package repo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Appointment{}, &model.CountryRecord{}, &model.User{}))
	return db
}

func TestStatusGuard_ConcurrentCompletion(t *testing.T) {
	db := newTestDB(t)
	r := NewGormAppointmentRepository(db)
	ctx := context.Background()

	// seed appointment
	a := model.NewAppointment("a-1", "12345", 100, model.CountryPE, time.Now())
	require.NoError(t, r.Put(ctx, a))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		guarded int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.UpdateStatus(ctx, "a-1", model.StatusCompleted, time.Now(), "")
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				success++
			case ErrConditionFailed:
				guarded++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success, "only one completion should pass the status guard")
	assert.Equal(t, 4, guarded)

	got, err := r.GetByID(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestGormAppointment_UpdateStatusMissing(t *testing.T) {
	r := NewGormAppointmentRepository(newTestDB(t))
	err := r.UpdateStatus(context.Background(), "nope", model.StatusCompleted, time.Now(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormAppointment_FailedKeepsReason(t *testing.T) {
	r := NewGormAppointmentRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, r.Put(ctx, model.NewAppointment("a-1", "12345", 100, model.CountryCL, time.Now())))

	require.NoError(t, r.UpdateStatus(ctx, "a-1", model.StatusFailed, time.Now(), "schedule withdrawn"))
	got, err := r.GetByID(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "schedule withdrawn", *got.ErrorMessage)
	assert.Nil(t, got.CompletedAt)

	assert.ErrorIs(t, r.UpdateStatus(ctx, "a-1", model.StatusCompleted, time.Now(), ""), ErrConditionFailed)
}

func TestGormAppointment_QueryNewestFirst(t *testing.T) {
	r := NewGormAppointmentRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, r.Put(ctx, model.NewAppointment("old", "00042", 100, model.CountryPE, base)))
	require.NoError(t, r.Put(ctx, model.NewAppointment("new", "00042", 101, model.CountryCL, base.Add(time.Hour))))
	require.NoError(t, r.Put(ctx, model.NewAppointment("other", "00043", 100, model.CountryPE, base)))

	got, err := r.QueryByInsuredID(ctx, "00042")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)

	none, err := r.QueryByInsuredID(ctx, "99999")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGormAppointment_GetMissing(t *testing.T) {
	r := NewGormAppointmentRepository(newTestDB(t))
	_, err := r.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormCountry_UpsertIsIdempotent(t *testing.T) {
	r := NewGormCountryRepository(newTestDB(t))
	ctx := context.Background()
	created := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)

	rec := &model.CountryRecord{
		ID: "a-1", InsuredID: "12345", ScheduleID: 100,
		CenterID: 4, SpecialtyID: 3, PractitionerID: 4,
		AppointmentDate: time.Date(2024, 9, 30, 12, 30, 0, 0, time.UTC),
		CountryCode:     model.CountryPE,
		Status:          model.CountryStatusConfirmed,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	require.NoError(t, r.Upsert(ctx, rec))

	again := *rec
	again.CenterID = 99
	again.CreatedAt = created.Add(time.Hour)
	again.UpdatedAt = created.Add(2 * time.Hour)
	require.NoError(t, r.Upsert(ctx, &again))

	got, err := r.QueryByInsuredID(ctx, "12345")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(4), got[0].CenterID, "redelivery must not rewrite booking columns")
	assert.True(t, got[0].CreatedAt.Equal(created))
	assert.True(t, got[0].UpdatedAt.Equal(created.Add(2*time.Hour)))
	assert.Equal(t, model.CountryStatusConfirmed, got[0].Status)
}

func TestGormUser_CreateAndFind(t *testing.T) {
	r := NewGormUserRepository(newTestDB(t))
	ctx := context.Background()

	u := &model.User{ID: "u-1", InsuredID: "12345", Email: "ana@example.com", Name: "Ana", CountryCode: model.CountryPE, PasswordHash: "x"}
	require.NoError(t, r.Create(ctx, u))

	byEmail, err := r.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", byEmail.ID)

	byInsured, err := r.FindByInsuredID(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", byInsured.Email)

	_, err = r.FindByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	dup := *u
	dup.ID = "u-2"
	assert.Error(t, r.Create(ctx, &dup))
}
