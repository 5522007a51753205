package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/richardliu001/appointment-service/internal/model"
)

// MemoryAppointmentRepository is a process-local fast path for tests and single-node runs.
type MemoryAppointmentRepository struct {
	mu    sync.RWMutex
	items map[string]model.Appointment
}

func NewMemoryAppointmentRepository() *MemoryAppointmentRepository {
	return &MemoryAppointmentRepository{items: map[string]model.Appointment{}}
}

func (r *MemoryAppointmentRepository) Put(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[a.ID]; ok {
		return ErrDuplicate
	}
	r.items[a.ID] = *a
	return nil
}

func (r *MemoryAppointmentRepository) GetByID(_ context.Context, id string) (*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *MemoryAppointmentRepository) QueryByInsuredID(_ context.Context, insuredID string) ([]model.Appointment, error) {
	r.mu.RLock()
	out := []model.Appointment{}
	for _, a := range r.items {
		if a.InsuredID == insuredID {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryAppointmentRepository) UpdateStatus(_ context.Context, id string, to model.Status, at time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if a.Status != model.StatusPending {
		return ErrConditionFailed
	}
	if err := a.Transition(to, at, reason); err != nil {
		return err
	}
	r.items[id] = a
	return nil
}

// MemoryCountryRepository is a process-local country store.
type MemoryCountryRepository struct {
	mu    sync.RWMutex
	items map[string]model.CountryRecord
}

func NewMemoryCountryRepository() *MemoryCountryRepository {
	return &MemoryCountryRepository{items: map[string]model.CountryRecord{}}
}

func (r *MemoryCountryRepository) Upsert(_ context.Context, rec *model.CountryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.items[rec.ID]; ok {
		cur.Status = rec.Status
		cur.UpdatedAt = rec.UpdatedAt
		r.items[rec.ID] = cur
		return nil
	}
	r.items[rec.ID] = *rec
	return nil
}

func (r *MemoryCountryRepository) QueryByInsuredID(_ context.Context, insuredID string) ([]model.CountryRecord, error) {
	r.mu.RLock()
	out := []model.CountryRecord{}
	for _, rec := range r.items {
		if rec.InsuredID == insuredID {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Len is the number of stored records.
func (r *MemoryCountryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// MemoryUserRepository is a process-local credential store.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: map[string]model.User{}}
}

func (r *MemoryUserRepository) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.users {
		if cur.Email == u.Email || cur.InsuredID == u.InsuredID {
			return ErrDuplicate
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) FindByInsuredID(_ context.Context, insuredID string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.InsuredID == insuredID })
}

func (r *MemoryUserRepository) find(match func(model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}
