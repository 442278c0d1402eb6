package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationLowercaseProfileEmails = "2026-05-18_lowercase_profile_emails"
	migrationTrimEventLocations     = "2026-07-02_trim_event_locations"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationLowercaseProfileEmails, apply: lowercaseProfileEmails},
		{name: migrationTrimEventLocations, apply: trimEventLocations},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func lowercaseProfileEmails(db *gorm.DB) error {
	return db.Exec("UPDATE profiles SET email = lower(email) WHERE email <> lower(email);").Error
}

func trimEventLocations(db *gorm.DB) error {
	return db.Exec("UPDATE local_events SET location = trim(location) WHERE location <> trim(location);").Error
}
