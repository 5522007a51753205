package repo

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/appointment-service/internal/model"
	"gorm.io/gorm"
)

// GormAppointmentRepository stores the fast path in a SQL database.
type GormAppointmentRepository struct {
	db *gorm.DB
}

// NewGormAppointmentRepository expects db opened with TranslateError enabled.
func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

// Put inserts a new appointment.
func (r *GormAppointmentRepository) Put(ctx context.Context, a *model.Appointment) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// GetByID loads one appointment.
func (r *GormAppointmentRepository) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	var a model.Appointment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// QueryByInsuredID lists appointments of one insured party, newest first.
func (r *GormAppointmentRepository) QueryByInsuredID(ctx context.Context, insuredID string) ([]model.Appointment, error) {
	out := []model.Appointment{}
	err := r.db.WithContext(ctx).
		Where("insured_id = ?", insuredID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateStatus with a status guard, the same way a version guard protects an optimistic lock.
func (r *GormAppointmentRepository) UpdateStatus(ctx context.Context, id string, to model.Status, at time.Time, reason string) error {
	at = at.UTC()
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case model.StatusCompleted:
		updates["completed_at"] = at
	case model.StatusFailed:
		updates["error_message"] = reason
	default:
		return model.ErrInvalidTransition
	}

	res := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Appointment{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConditionFailed
	}
	return nil
}
