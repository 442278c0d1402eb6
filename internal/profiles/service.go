package profiles

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/brandbond/backend/internal/auth"
	"github.com/brandbond/backend/internal/ids"
	"github.com/brandbond/backend/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrEmailTaken indicates a registration attempt with an already registered email.
	ErrEmailTaken = errors.New("profiles: email already registered")
	// ErrInvalidCredentials indicates a sign-in attempt with an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("profiles: invalid credentials")
	// ErrProfileNotFound indicates the requested profile row does not exist.
	ErrProfileNotFound = errors.New("profiles: profile not found")
)

// ServiceConfig describes the dependencies required by the profile service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Dispatcher *realtime.Dispatcher
	Logger     *zap.Logger
}

// Service manages member profiles, photos, interests, and preferences.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	dispatcher *realtime.Dispatcher
	logger     *zap.Logger
}

// NewService constructs the profile service.
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
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		dispatcher: cfg.Dispatcher,
		logger:     logger,
	}, nil
}

// RegistrationRequest carries the fields collected by the registration flow.
type RegistrationRequest struct {
	Email       string
	Password    string
	DisplayName string
	Location    string
	BirthYear   int
}

// Register creates a profile with a hashed password and returns its user id.
func (s *Service) Register(ctx context.Context, req RegistrationRequest) (string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, req.Email)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", err
	}

	userID, err := s.idProvider.NewID()
	if err != nil {
		return "", err
	}

	now := s.clock().UTC().Unix()
	profile := Profile{
		UserID:           userID,
		Email:            email,
		PasswordHash:     hash,
		DisplayName:      strings.TrimSpace(req.DisplayName),
		Location:         strings.TrimSpace(req.Location),
		BirthYear:        req.BirthYear,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Profile
		lookupErr := tx.Where("email = ?", email).Take(&existing).Error
		if lookupErr == nil {
			return ErrEmailTaken
		}
		if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return lookupErr
		}
		return tx.Create(&profile).Error
	})
	if err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			s.logger.Error("profile registration failed", zap.Error(err))
		}
		return "", err
	}

	s.logger.Info("profile registered", zap.String("user_id", userID))
	return userID, nil
}

// Authenticate verifies credentials and returns the matching user id.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	var profile Profile
	err := s.db.WithContext(ctx).Where("email = ?", normalized).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := auth.VerifyPassword(profile.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	return profile.UserID, nil
}

// ProfileView loads the full profile projection for the user. The view is
// rebuilt from scratch on every call.
func (s *Service) ProfileView(ctx context.Context, userID string) (ProfileView, error) {
	if userID == "" {
		return ProfileView{}, fmt.Errorf("%w: empty", ErrInvalidUserID)
	}

	var profile Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProfileView{}, ErrProfileNotFound
	}
	if err != nil {
		return ProfileView{}, err
	}

	var photos []UserPhoto
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position ASC").
		Find(&photos).Error; err != nil {
		return ProfileView{}, err
	}

	var interests []UserInterest
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&interests).Error; err != nil {
		return ProfileView{}, err
	}

	var preferences []UserPreference
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&preferences).Error; err != nil {
		return ProfileView{}, err
	}

	view := ProfileView{
		UserID:      profile.UserID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Location:    profile.Location,
		Bio:         profile.Bio,
		AvatarURL:   profile.AvatarURL,
		BirthYear:   profile.BirthYear,
		Photos:      make([]string, 0, len(photos)),
		Interests:   make([]string, 0, len(interests)),
		Preferences: make(map[string]string, len(preferences)),
	}
	for _, photo := range photos {
		view.Photos = append(view.Photos, photo.URL)
	}
	for _, interest := range interests {
		view.Interests = append(view.Interests, interest.Interest)
	}
	sort.Strings(view.Interests)
	for _, pref := range preferences {
		view.Preferences[pref.Key] = pref.Value
	}
	return view, nil
}

// Matches lists profiles sharing the viewer's location, scored by interest
// overlap. A viewer with no location gets an empty list, not an error.
func (s *Service) Matches(ctx context.Context, userID string, limit int) ([]MatchView, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidUserID)
	}

	location, err := s.Location(ctx, userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(location) == "" {
		return []MatchView{}, nil
	}

	var mine []UserInterest
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&mine).Error; err != nil {
		return nil, err
	}
	myTags := make(map[string]bool, len(mine))
	for _, interest := range mine {
		myTags[interest.Interest] = true
	}

	query := s.db.WithContext(ctx).
		Where("location = ? AND user_id <> ?", location, userID).
		Order("user_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var candidates []Profile
	if err := query.Find(&candidates).Error; err != nil {
		return nil, err
	}

	views := make([]MatchView, 0, len(candidates))
	for _, candidate := range candidates {
		var theirs []UserInterest
		if err := s.db.WithContext(ctx).
			Where("user_id = ?", candidate.UserID).
			Find(&theirs).Error; err != nil {
			return nil, err
		}
		shared := make([]string, 0)
		for _, interest := range theirs {
			if myTags[interest.Interest] {
				shared = append(shared, interest.Interest)
			}
		}
		sort.Strings(shared)

		// Base score for sharing a location, the rest from interest overlap.
		percent := 40
		if len(myTags) > 0 {
			percent += 60 * len(shared) / len(myTags)
		}
		if percent > 100 {
			percent = 100
		}

		views = append(views, MatchView{
			UserID:       candidate.UserID,
			DisplayName:  candidate.DisplayName,
			Location:     candidate.Location,
			AvatarURL:    candidate.AvatarURL,
			BirthYear:    candidate.BirthYear,
			SharedTags:   shared,
			MatchPercent: percent,
		})
	}
	return views, nil
}

// ProfileUpdate carries the mutable profile fields; nil pointers are untouched.
type ProfileUpdate struct {
	DisplayName *string
	Location    *string
	Bio         *string
	AvatarURL   *string
}

// UpdateProfile applies the provided fields and notifies subscribers.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) error {
	if userID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	updates := map[string]interface{}{}
	if update.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*update.DisplayName)
	}
	if update.Location != nil {
		updates["location"] = strings.TrimSpace(*update.Location)
	}
	if update.Bio != nil {
		updates["bio"] = *update.Bio
	}
	if update.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*update.AvatarURL)
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at_s"] = s.clock().UTC().Unix()

	result := s.db.WithContext(ctx).Model(&Profile{}).Where("user_id = ?", userID).Updates(updates)
	if result.Error != nil {
		s.logger.Error("profile update failed", zap.String("user_id", userID), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}

	s.notify(realtime.TableProfiles, userID, userID)
	return nil
}

// SetInterests replaces the user's interest tags.
func (s *Service) SetInterests(ctx context.Context, userID string, interests []string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&UserInterest{}).Error; err != nil {
			return err
		}
		for _, interest := range interests {
			trimmed := strings.TrimSpace(interest)
			if trimmed == "" {
				continue
			}
			row := UserInterest{UserID: userID, Interest: trimmed}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(realtime.TableUserInterests, userID, userID)
	return nil
}

// SetPreference upserts one preference key/value pair.
func (s *Service) SetPreference(ctx context.Context, userID, key, value string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("profiles: preference key required")
	}
	row := UserPreference{UserID: userID, Key: key, Value: value}
	err := s.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return err
	}
	s.notify(realtime.TableUserPreferences, userID, key)
	return nil
}

// AddPhoto appends a gallery photo and returns its identifier.
func (s *Service) AddPhoto(ctx context.Context, userID, url string, position int) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	photoID, err := s.idProvider.NewID()
	if err != nil {
		return "", err
	}
	photo := UserPhoto{
		PhotoID:          photoID,
		UserID:           userID,
		URL:              strings.TrimSpace(url),
		Position:         position,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&photo).Error; err != nil {
		return "", err
	}
	s.notify(realtime.TableUserPhotos, userID, photoID)
	return photoID, nil
}

// Location returns the user's profile location, empty when unset.
func (s *Service) Location(ctx context.Context, userID string) (string, error) {
	var profile Profile
	err := s.db.WithContext(ctx).
		Select("location").
		Where("user_id = ?", userID).
		Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrProfileNotFound
	}
	if err != nil {
		return "", err
	}
	return profile.Location, nil
}

// PurgeUser removes every profile-owned row for the user. Used by account
// deletion; missing rows are not an error.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&UserPhoto{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&UserInterest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&UserPreference{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&Profile{}).Error
	})
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
