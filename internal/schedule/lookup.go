package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/richardliu001/appointment-service/internal/model"
)

var (
	// ErrNotFound is returned when the schedule id is unknown.
	ErrNotFound = errors.New("schedule not found")
	// ErrNotBookable rejects a schedule with a non-positive id or a date already past.
	ErrNotBookable = errors.New("schedule not bookable")
)

// Lookup resolves a schedule id to its slot details.
type Lookup interface {
	GetByID(ctx context.Context, id int64) (*model.Schedule, error)
}

// MemoryLookup serves schedules from a fixed in-process table.
type MemoryLookup struct {
	mu        sync.RWMutex
	schedules map[int64]model.Schedule
	now       func() time.Time
}

// NewMemoryLookup serves a fixed table as given; only later Adds are checked.
func NewMemoryLookup(schedules ...model.Schedule) *MemoryLookup {
	m := &MemoryLookup{schedules: make(map[int64]model.Schedule, len(schedules)), now: time.Now}
	for _, s := range schedules {
		m.schedules[s.ScheduleID] = s
	}
	return m
}

// DefaultSchedules is the seed table used when no external source is configured.
func DefaultSchedules() []model.Schedule {
	return []model.Schedule{
		{ScheduleID: 100, CenterID: 4, SpecialtyID: 3, PractitionerID: 4, Date: time.Date(2024, 9, 30, 12, 30, 0, 0, time.UTC)},
		{ScheduleID: 101, CenterID: 1, SpecialtyID: 2, PractitionerID: 3, Date: time.Date(2024, 10, 1, 14, 0, 0, 0, time.UTC)},
	}
}

// Add publishes a new bookable schedule.
func (m *MemoryLookup) Add(s model.Schedule) error {
	if !s.Valid(m.now()) {
		return fmt.Errorf("%w: %d", ErrNotBookable, s.ScheduleID)
	}
	m.mu.Lock()
	m.schedules[s.ScheduleID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryLookup) GetByID(_ context.Context, id int64) (*model.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}
