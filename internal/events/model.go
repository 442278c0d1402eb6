package events

// AttendeeStatus enumerates attendance states for a local event.
type AttendeeStatus string

const (
	// AttendeeStatusGoing counts toward an event's attendance.
	AttendeeStatusGoing AttendeeStatus = "going"
	// AttendeeStatusInterested marks the event without committing.
	AttendeeStatusInterested AttendeeStatus = "interested"
)

// LocalEvent models a happening anchored to a location string.
type LocalEvent struct {
	EventID          string `gorm:"column:event_id;primaryKey;size:190;not null"`
	Title            string `gorm:"column:title;size:320;not null"`
	Category         string `gorm:"column:category;size:190;not null;default:''"`
	Location         string `gorm:"column:location;size:190;not null;index"`
	VenueName        string `gorm:"column:venue_name;size:320;not null;default:''"`
	Description      string `gorm:"column:description;type:text;not null;default:''"`
	StartsAtSeconds  int64  `gorm:"column:starts_at_s;not null;index"`
	MaxAttendees     int    `gorm:"column:max_attendees;not null;default:0"`
	CreatedBy        string `gorm:"column:created_by;size:190;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (LocalEvent) TableName() string {
	return "local_events"
}

// EventAttendee records one user's attendance state for one event.
type EventAttendee struct {
	EventID          string         `gorm:"column:event_id;primaryKey;size:190;not null"`
	UserID           string         `gorm:"column:user_id;primaryKey;size:190;not null;index"`
	Status           AttendeeStatus `gorm:"column:status;size:32;not null"`
	CreatedAtSeconds int64          `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (EventAttendee) TableName() string {
	return "event_attendees"
}

// EventView joins a local event with the viewer's attendance and the count
// of committed attendees. Always assembled as a whole, never patched.
type EventView struct {
	EventID          string `json:"eventId"`
	Title            string `json:"title"`
	Category         string `json:"category"`
	Location         string `json:"location"`
	VenueName        string `json:"venueName"`
	Description      string `json:"description"`
	StartsAtSeconds  int64  `json:"startsAtS"`
	MaxAttendees     int    `json:"maxAttendees"`
	CurrentAttendees int    `json:"currentAttendees"`
	IsAttending      bool   `json:"isAttending"`
}
