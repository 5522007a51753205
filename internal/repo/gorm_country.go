package repo

import (
	"context"

	"github.com/richardliu001/appointment-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCountryRepository is a country's system-of-record in its own database.
type GormCountryRepository struct {
	db *gorm.DB
}

func NewGormCountryRepository(db *gorm.DB) *GormCountryRepository {
	return &GormCountryRepository{db: db}
}

// Upsert keeps one row per appointment id; a redelivery only refreshes status and updated_at.
func (r *GormCountryRepository) Upsert(ctx context.Context, rec *model.CountryRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).
		Create(rec).Error
}

// QueryByInsuredID lists confirmed records newest first.
func (r *GormCountryRepository) QueryByInsuredID(ctx context.Context, insuredID string) ([]model.CountryRecord, error) {
	out := []model.CountryRecord{}
	err := r.db.WithContext(ctx).
		Where("insured_id = ?", insuredID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
