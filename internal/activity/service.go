package activity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/brandbond/backend/internal/ids"
	"github.com/brandbond/backend/internal/realtime"
	"gorm.io/gorm"
)

var (
	// ErrMissingUserID indicates an empty user identifier was supplied.
	ErrMissingUserID = errors.New("activity: user identifier required")

	errMissingDatabase   = errors.New("activity: database connection required")
	errMissingIDProvider = errors.New("activity: id provider required")
)

// ServiceConfig describes the dependencies for the activity service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Dispatcher *realtime.Dispatcher
}

// Service reads and records dashboard activities and insights.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	dispatcher *realtime.Dispatcher
}

// NewService constructs the activity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		dispatcher: cfg.Dispatcher,
	}, nil
}

// Activities returns the user's activity feed, newest first.
func (s *Service) Activities(ctx context.Context, userID string, limit int) ([]UserActivity, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at_s DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	activities := []UserActivity{}
	if err := query.Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

// Record appends one activity entry and notifies the user's stream.
func (s *Service) Record(ctx context.Context, userID, kind, summary string) (string, error) {
	if userID == "" {
		return "", ErrMissingUserID
	}
	if strings.TrimSpace(kind) == "" {
		return "", errors.New("activity: kind required")
	}
	activityID, err := s.idProvider.NewID()
	if err != nil {
		return "", err
	}
	row := UserActivity{
		ActivityID:        activityID,
		UserID:            userID,
		Kind:              strings.TrimSpace(kind),
		Summary:           strings.TrimSpace(summary),
		OccurredAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	if s.dispatcher != nil {
		s.dispatcher.Publish(realtime.Change{
			Table:  realtime.TableUserActivities,
			UserID: userID,
			RowIDs: []string{activityID},
		})
	}
	return activityID, nil
}

// Insights returns the user's generated insights ordered by score.
func (s *Service) Insights(ctx context.Context, userID string) ([]UserInsight, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	insights := []UserInsight{}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("score DESC, generated_at_s DESC").
		Find(&insights).Error; err != nil {
		return nil, err
	}
	return insights, nil
}

// PutInsight upserts a generated insight for the user.
func (s *Service) PutInsight(ctx context.Context, insight UserInsight) (string, error) {
	if insight.UserID == "" {
		return "", ErrMissingUserID
	}
	if insight.InsightID == "" {
		insightID, err := s.idProvider.NewID()
		if err != nil {
			return "", err
		}
		insight.InsightID = insightID
	}
	if insight.GeneratedAtSeconds == 0 {
		insight.GeneratedAtSeconds = s.clock().UTC().Unix()
	}
	if err := s.db.WithContext(ctx).Save(&insight).Error; err != nil {
		return "", err
	}
	if s.dispatcher != nil {
		s.dispatcher.Publish(realtime.Change{
			Table:  realtime.TableUserInsights,
			UserID: insight.UserID,
			RowIDs: []string{insight.InsightID},
		})
	}
	return insight.InsightID, nil
}

// PurgeUser removes the user's activities and insights.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&UserActivity{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&UserInsight{}).Error
	})
}
