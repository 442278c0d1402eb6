package database

import (
	"fmt"

	"github.com/brandbond/backend/internal/activity"
	"github.com/brandbond/backend/internal/chat"
	"github.com/brandbond/backend/internal/community"
	"github.com/brandbond/backend/internal/events"
	"github.com/brandbond/backend/internal/profiles"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&profiles.Profile{},
		&profiles.UserPhoto{},
		&profiles.UserInterest{},
		&profiles.UserPreference{},
		&events.LocalEvent{},
		&events.EventAttendee{},
		&activity.UserActivity{},
		&activity.UserInsight{},
		&chat.Conversation{},
		&chat.Message{},
		&community.Community{},
		&community.CommunityMember{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
