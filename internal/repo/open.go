package repo

import (
	"context"
	"fmt"

	"github.com/richardliu001/appointment-service/internal/config"
	"github.com/richardliu001/appointment-service/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OpenPostgres opens a gorm handle with driver errors translated to gorm sentinels.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{PrepareStmt: true, TranslateError: true})
}

// OpenCountry opens and migrates the system-of-record of one country.
func OpenCountry(cfg *config.Config, country model.CountryCode) (*GormCountryRepository, error) {
	cc, ok := cfg.Country(string(country))
	if !ok {
		return nil, fmt.Errorf("no store configured for country %s", country)
	}
	db, err := OpenPostgres(cc.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", country, err)
	}
	if err := db.AutoMigrate(&model.CountryRecord{}); err != nil {
		return nil, fmt.Errorf("migrate %s store: %w", country, err)
	}
	return NewGormCountryRepository(db), nil
}

// OpenAppointments builds the fast-path store selected by cfg.FastPath.Driver.
// db may be nil unless the driver is postgres.
func OpenAppointments(ctx context.Context, cfg *config.Config, db *gorm.DB) (AppointmentRepository, error) {
	switch cfg.FastPath.Driver {
	case config.DriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres fast path needs a database handle")
		}
		if err := db.AutoMigrate(&model.Appointment{}); err != nil {
			return nil, fmt.Errorf("migrate appointments: %w", err)
		}
		return NewGormAppointmentRepository(db), nil
	case config.DriverDynamo:
		d := cfg.FastPath.Dynamo
		client, err := NewDynamoClient(ctx, d.Region, d.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		return NewDynamoAppointmentRepository(client, d.Table, d.Index), nil
	case config.DriverMemory:
		return NewMemoryAppointmentRepository(), nil
	default:
		return nil, fmt.Errorf("unknown fast path driver %q", cfg.FastPath.Driver)
	}
}
