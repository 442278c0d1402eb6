package profiles

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("profiles: invalid user id")
	// ErrInvalidEmail indicates that an email address is empty or malformed.
	ErrInvalidEmail = errors.New("profiles: invalid email")
)

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Profile models the persisted member profile row.
type Profile struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Email            string `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash     string `gorm:"column:password_hash;size:190;not null"`
	DisplayName      string `gorm:"column:display_name;size:190;not null;default:''"`
	Location         string `gorm:"column:location;size:190;not null;default:'';index"`
	Bio              string `gorm:"column:bio;type:text;not null;default:''"`
	AvatarURL        string `gorm:"column:avatar_url;size:512;not null;default:''"`
	BirthYear        int    `gorm:"column:birth_year;not null;default:0"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Profile) TableName() string {
	return "profiles"
}

// UserPhoto stores one gallery photo reference for a profile.
type UserPhoto struct {
	PhotoID          string `gorm:"column:photo_id;primaryKey;size:190;not null"`
	UserID           string `gorm:"column:user_id;size:190;not null;index"`
	URL              string `gorm:"column:url;size:512;not null"`
	Position         int    `gorm:"column:position;not null;default:0"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (UserPhoto) TableName() string {
	return "user_photos"
}

// UserInterest stores one declared interest tag per row.
type UserInterest struct {
	UserID   string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Interest string `gorm:"column:interest;primaryKey;size:190;not null"`
}

// TableName provides the explicit table binding for GORM.
func (UserInterest) TableName() string {
	return "user_interests"
}

// UserPreference stores one preference key/value pair per row.
type UserPreference struct {
	UserID string `gorm:"column:user_id;primaryKey;size:190;not null"`
	Key    string `gorm:"column:pref_key;primaryKey;size:190;not null"`
	Value  string `gorm:"column:pref_value;size:512;not null;default:''"`
}

// TableName provides the explicit table binding for GORM.
func (UserPreference) TableName() string {
	return "user_preferences"
}

// MatchView is one entry on the matches list: a nearby profile scored by
// interest overlap with the viewer.
type MatchView struct {
	UserID       string   `json:"userId"`
	DisplayName  string   `json:"displayName"`
	Location     string   `json:"location"`
	AvatarURL    string   `json:"avatarUrl"`
	BirthYear    int      `json:"birthYear"`
	SharedTags   []string `json:"sharedTags"`
	MatchPercent int      `json:"matchPercent"`
}

// ProfileView is the UI-ready projection of a profile with its photos,
// interests, and preferences, rebuilt wholesale on every snapshot load.
type ProfileView struct {
	UserID      string            `json:"userId"`
	Email       string            `json:"email"`
	DisplayName string            `json:"displayName"`
	Location    string            `json:"location"`
	Bio         string            `json:"bio"`
	AvatarURL   string            `json:"avatarUrl"`
	BirthYear   int               `json:"birthYear"`
	Photos      []string          `json:"photos"`
	Interests   []string          `json:"interests"`
	Preferences map[string]string `json:"preferences"`
}
