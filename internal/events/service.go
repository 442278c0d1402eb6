package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brandbond/backend/internal/ids"
	"github.com/brandbond/backend/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingLocator    = errors.New("profile locator is required")
	errMissingUserID     = errors.New("user identifier is required")
	errMissingEventID    = errors.New("event identifier is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a stable operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the stable error code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "events.service.new"
	opLocalEvents = "events.local_events"
	opCreateEvent = "events.create_event"
	opAttend      = "events.attend"
	opLeave       = "events.leave"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ProfileLocator resolves a user's location string; empty means unset.
type ProfileLocator interface {
	Location(ctx context.Context, userID string) (string, error)
}

// ServiceConfig describes the dependencies required by the events service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Locator    ProfileLocator
	Dispatcher *realtime.Dispatcher
	Logger     *zap.Logger
}

// Service resolves local events for a user and manages attendance rows.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	locator    ProfileLocator
	dispatcher *realtime.Dispatcher
	logger     *zap.Logger
}

// NewService constructs the events service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Locator == nil {
		return nil, newServiceError(opServiceNew, "missing_locator", errMissingLocator)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		locator:    cfg.Locator,
		dispatcher: cfg.Dispatcher,
		logger:     logger,
	}, nil
}

// LocalEvents assembles the event views for the user's profile location.
// A user with no location set gets an empty slice, not an error.
func (s *Service) LocalEvents(ctx context.Context, userID string, limit int) ([]EventView, error) {
	if userID == "" {
		s.logError(opLocalEvents, "missing_user_id", errMissingUserID)
		return nil, newServiceError(opLocalEvents, "missing_user_id", errMissingUserID)
	}

	location, err := s.locator.Location(ctx, userID)
	if err != nil {
		s.logError(opLocalEvents, "location_lookup_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opLocalEvents, "location_lookup_failed", err)
	}
	if strings.TrimSpace(location) == "" {
		return []EventView{}, nil
	}

	query := s.db.WithContext(ctx).
		Where("location = ?", location).
		Order("starts_at_s ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []LocalEvent
	if err := query.Find(&rows).Error; err != nil {
		s.logError(opLocalEvents, "event_query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opLocalEvents, "event_query_failed", err)
	}
	if len(rows) == 0 {
		return []EventView{}, nil
	}

	eventIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		eventIDs = append(eventIDs, row.EventID)
	}

	var attendees []EventAttendee
	if err := s.db.WithContext(ctx).
		Where("event_id IN ?", eventIDs).
		Find(&attendees).Error; err != nil {
		s.logError(opLocalEvents, "attendee_query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opLocalEvents, "attendee_query_failed", err)
	}

	goingCounts := make(map[string]int, len(rows))
	attending := make(map[string]bool, len(rows))
	for _, attendee := range attendees {
		if attendee.Status == AttendeeStatusGoing {
			goingCounts[attendee.EventID]++
			if attendee.UserID == userID {
				attending[attendee.EventID] = true
			}
		}
	}

	views := make([]EventView, 0, len(rows))
	for _, row := range rows {
		views = append(views, EventView{
			EventID:          row.EventID,
			Title:            row.Title,
			Category:         row.Category,
			Location:         row.Location,
			VenueName:        row.VenueName,
			Description:      row.Description,
			StartsAtSeconds:  row.StartsAtSeconds,
			MaxAttendees:     row.MaxAttendees,
			CurrentAttendees: goingCounts[row.EventID],
			IsAttending:      attending[row.EventID],
		})
	}
	return views, nil
}

// CreateRequest carries the fields for a new local event.
type CreateRequest struct {
	Title           string
	Category        string
	Location        string
	VenueName       string
	Description     string
	StartsAtSeconds int64
	MaxAttendees    int
	CreatedBy       string
}

// CreateEvent persists a new local event and returns its identifier.
func (s *Service) CreateEvent(ctx context.Context, req CreateRequest) (string, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Location) == "" {
		return "", newServiceError(opCreateEvent, "missing_fields", errors.New("title and location required"))
	}
	eventID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateEvent, "id_generation_failed", err)
		return "", newServiceError(opCreateEvent, "id_generation_failed", err)
	}
	row := LocalEvent{
		EventID:          eventID,
		Title:            strings.TrimSpace(req.Title),
		Category:         strings.TrimSpace(req.Category),
		Location:         strings.TrimSpace(req.Location),
		VenueName:        strings.TrimSpace(req.VenueName),
		Description:      req.Description,
		StartsAtSeconds:  req.StartsAtSeconds,
		MaxAttendees:     req.MaxAttendees,
		CreatedBy:        req.CreatedBy,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logError(opCreateEvent, "event_insert_failed", err)
		return "", newServiceError(opCreateEvent, "event_insert_failed", err)
	}
	if req.CreatedBy != "" {
		s.notify(realtime.TableLocalEvents, req.CreatedBy, eventID)
	}
	return eventID, nil
}

// Attend upserts the user's attendance row for the event.
func (s *Service) Attend(ctx context.Context, userID, eventID string, status AttendeeStatus) error {
	if userID == "" {
		return newServiceError(opAttend, "missing_user_id", errMissingUserID)
	}
	if eventID == "" {
		return newServiceError(opAttend, "missing_event_id", errMissingEventID)
	}
	if status == "" {
		status = AttendeeStatusGoing
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event LocalEvent
		if err := tx.Where("event_id = ?", eventID).Take(&event).Error; err != nil {
			return err
		}
		if event.MaxAttendees > 0 && status == AttendeeStatusGoing {
			var going int64
			if err := tx.Model(&EventAttendee{}).
				Where("event_id = ? AND status = ?", eventID, AttendeeStatusGoing).
				Count(&going).Error; err != nil {
				return err
			}
			if going >= int64(event.MaxAttendees) {
				return fmt.Errorf("event %s is full", eventID)
			}
		}
		row := EventAttendee{
			EventID:          eventID,
			UserID:           userID,
			Status:           status,
			CreatedAtSeconds: s.clock().UTC().Unix(),
		}
		return tx.Save(&row).Error
	})
	if err != nil {
		s.logError(opAttend, "attend_failed", err,
			zap.String("user_id", userID),
			zap.String("event_id", eventID))
		return newServiceError(opAttend, "attend_failed", err)
	}

	s.notify(realtime.TableEventAttendees, userID, eventID)
	return nil
}

// Leave removes the user's attendance row. Missing rows are a no-op.
func (s *Service) Leave(ctx context.Context, userID, eventID string) error {
	if userID == "" {
		return newServiceError(opLeave, "missing_user_id", errMissingUserID)
	}
	if eventID == "" {
		return newServiceError(opLeave, "missing_event_id", errMissingEventID)
	}
	if err := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&EventAttendee{}).Error; err != nil {
		s.logError(opLeave, "leave_failed", err,
			zap.String("user_id", userID),
			zap.String("event_id", eventID))
		return newServiceError(opLeave, "leave_failed", err)
	}
	s.notify(realtime.TableEventAttendees, userID, eventID)
	return nil
}

// PurgeUser removes the user's attendance rows during account deletion.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&EventAttendee{}).Error
}

func (s *Service) notify(table, userID string, rowIDs ...string) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(realtime.Change{
		Table:     table,
		UserID:    userID,
		RowIDs:    rowIDs,
		Timestamp: s.clock().UTC(),
	})
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("events service error", attrs...)
}
