package community

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brandbond/backend/internal/ids"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:community_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Community{}, &CommunityMember{}); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1760000000, 0).UTC() },
		IDProvider: ids.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("unexpected service constructor error: %v", err)
	}
	return service
}

func mustCreate(t *testing.T, service *Service, name string, fanclub bool) string {
	t.Helper()
	communityID, err := service.Create(context.Background(), name, "music", "", fanclub)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return communityID
}

func TestCommunitiesReportMembership(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	jazz := mustCreate(t, service, "Jazz Lovers", false)
	fanclub := mustCreate(t, service, "Riley Fanclub", true)

	if err := service.Join(ctx, "alice", jazz); err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}
	if err := service.Join(ctx, "bob", jazz); err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}

	views, err := service.Communities(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected communities error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected two communities, got %d", len(views))
	}
	byID := map[string]CommunityView{}
	for _, view := range views {
		byID[view.CommunityID] = view
	}
	if got := byID[jazz]; got.MemberCount != 2 || !got.IsMember {
		t.Fatalf("unexpected jazz view %+v", got)
	}
	if got := byID[fanclub]; got.MemberCount != 0 || got.IsMember || !got.IsFanclub {
		t.Fatalf("unexpected fanclub view %+v", got)
	}
}

func TestJoinTwiceKeepsSingleMembership(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	jazz := mustCreate(t, service, "Jazz Lovers", false)

	if err := service.Join(ctx, "alice", jazz); err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}
	if err := service.Join(ctx, "alice", jazz); err != nil {
		t.Fatalf("unexpected repeat join error: %v", err)
	}

	views, err := service.Communities(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected communities error: %v", err)
	}
	if views[0].MemberCount != 1 {
		t.Fatalf("expected a single membership, got %d", views[0].MemberCount)
	}
}

func TestJoinUnknownCommunity(t *testing.T) {
	service := newTestService(t)
	if err := service.Join(context.Background(), "alice", "missing"); !errors.Is(err, ErrCommunityNotFound) {
		t.Fatalf("expected community not found, got %v", err)
	}
}

func TestLeaveRemovesMembership(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	jazz := mustCreate(t, service, "Jazz Lovers", false)

	if err := service.Join(ctx, "alice", jazz); err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}
	if err := service.Leave(ctx, "alice", jazz); err != nil {
		t.Fatalf("unexpected leave error: %v", err)
	}

	views, err := service.Communities(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected communities error: %v", err)
	}
	if views[0].MemberCount != 0 || views[0].IsMember {
		t.Fatalf("expected membership removed, got %+v", views[0])
	}

	if err := service.Leave(ctx, "alice", jazz); err != nil {
		t.Fatalf("unexpected repeat leave error: %v", err)
	}
}
