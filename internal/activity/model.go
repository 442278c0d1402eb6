package activity

// UserActivity records one feed entry for a user's dashboard.
type UserActivity struct {
	ActivityID        string `gorm:"column:activity_id;primaryKey;size:190;not null" json:"activityId"`
	UserID            string `gorm:"column:user_id;size:190;not null;index:idx_activities_user_time,priority:1" json:"userId"`
	Kind              string `gorm:"column:kind;size:190;not null" json:"kind"`
	Summary           string `gorm:"column:summary;size:512;not null;default:''" json:"summary"`
	OccurredAtSeconds int64  `gorm:"column:occurred_at_s;not null;index:idx_activities_user_time,priority:2" json:"occurredAtS"`
}

// TableName provides the explicit table binding for GORM.
func (UserActivity) TableName() string {
	return "user_activities"
}

// UserInsight is a generated observation shown on the insights panel.
type UserInsight struct {
	InsightID          string `gorm:"column:insight_id;primaryKey;size:190;not null" json:"insightId"`
	UserID             string `gorm:"column:user_id;size:190;not null;index" json:"userId"`
	Category           string `gorm:"column:category;size:190;not null" json:"category"`
	Headline           string `gorm:"column:headline;size:512;not null" json:"headline"`
	Detail             string `gorm:"column:detail;type:text;not null;default:''" json:"detail"`
	Score              int    `gorm:"column:score;not null;default:0" json:"score"`
	GeneratedAtSeconds int64  `gorm:"column:generated_at_s;not null" json:"generatedAtS"`
}

// TableName provides the explicit table binding for GORM.
func (UserInsight) TableName() string {
	return "user_insights"
}
