package community

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
	ErrMissingUserID = errors.New("community: user identifier required")
	// ErrCommunityNotFound indicates the community row does not exist.
	ErrCommunityNotFound = errors.New("community: not found")

	errMissingDatabase   = errors.New("community: database connection required")
	errMissingIDProvider = errors.New("community: id provider required")
)

// ServiceConfig describes the dependencies for the community service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Dispatcher *realtime.Dispatcher
}

// Service lists communities and manages memberships.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	dispatcher *realtime.Dispatcher
}

// NewService constructs the community service.
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

// Communities assembles community views for the viewing user: every
// community with its member count and whether the viewer belongs.
func (s *Service) Communities(ctx context.Context, userID string) ([]CommunityView, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	var rows []Community
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []CommunityView{}, nil
	}

	var memberships []CommunityMember
	if err := s.db.WithContext(ctx).Find(&memberships).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	mine := make(map[string]bool)
	for _, membership := range memberships {
		counts[membership.CommunityID]++
		if membership.UserID == userID {
			mine[membership.CommunityID] = true
		}
	}

	views := make([]CommunityView, 0, len(rows))
	for _, row := range rows {
		views = append(views, CommunityView{
			CommunityID: row.CommunityID,
			Name:        row.Name,
			Category:    row.Category,
			Description: row.Description,
			IsFanclub:   row.IsFanclub,
			MemberCount: counts[row.CommunityID],
			IsMember:    mine[row.CommunityID],
		})
	}
	return views, nil
}

// Create persists a new community and returns its identifier.
func (s *Service) Create(ctx context.Context, name, category, description string, fanclub bool) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("community: name required")
	}
	communityID, err := s.idProvider.NewID()
	if err != nil {
		return "", err
	}
	row := Community{
		CommunityID:      communityID,
		Name:             strings.TrimSpace(name),
		Category:         strings.TrimSpace(category),
		Description:      description,
		IsFanclub:        fanclub,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	return communityID, nil
}

// Join adds the user to the community. Joining twice is a no-op.
func (s *Service) Join(ctx context.Context, userID, communityID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	var community Community
	err := s.db.WithContext(ctx).Where("community_id = ?", communityID).Take(&community).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCommunityNotFound
	}
	if err != nil {
		return err
	}

	membership := CommunityMember{
		CommunityID:     communityID,
		UserID:          userID,
		Role:            "member",
		JoinedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Save(&membership).Error; err != nil {
		return err
	}
	s.notify(userID, communityID)
	return nil
}

// Leave removes the user's membership. Missing rows are a no-op.
func (s *Service) Leave(ctx context.Context, userID, communityID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if err := s.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&CommunityMember{}).Error; err != nil {
		return err
	}
	s.notify(userID, communityID)
	return nil
}

// PurgeUser removes the user's memberships during account deletion.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&CommunityMember{}).Error
}

func (s *Service) notify(userID, communityID string) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(realtime.Change{
		Table:  realtime.TableCommunityMembers,
		UserID: userID,
		RowIDs: []string{communityID},
	})
}
