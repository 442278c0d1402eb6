package community

// Community is a shared-interest group or fanclub.
type Community struct {
	CommunityID      string `gorm:"column:community_id;primaryKey;size:190;not null"`
	Name             string `gorm:"column:name;size:320;not null"`
	Category         string `gorm:"column:category;size:190;not null;default:''"`
	Description      string `gorm:"column:description;type:text;not null;default:''"`
	IsFanclub        bool   `gorm:"column:is_fanclub;not null;default:false"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Community) TableName() string {
	return "communities"
}

// CommunityMember records one user's membership in one community.
type CommunityMember struct {
	CommunityID     string `gorm:"column:community_id;primaryKey;size:190;not null"`
	UserID          string `gorm:"column:user_id;primaryKey;size:190;not null;index"`
	Role            string `gorm:"column:role;size:32;not null;default:'member'"`
	JoinedAtSeconds int64  `gorm:"column:joined_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CommunityMember) TableName() string {
	return "community_members"
}

// CommunityView joins a community with membership state and member count.
type CommunityView struct {
	CommunityID string `json:"communityId"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	IsFanclub   bool   `json:"isFanclub"`
	MemberCount int    `json:"memberCount"`
	IsMember    bool   `json:"isMember"`
}
