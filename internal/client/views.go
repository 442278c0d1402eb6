package client

import (
	"context"

	"github.com/brandbond/backend/internal/realtime"
	"go.uber.org/zap"
)

// Entity watcher constructors. Each pairs an API snapshot loader with the
// tables whose changes should trigger a reload.

// WatchLocalEvents keeps the local-events view current for the signed-in
// user. A user with no profile location holds an empty, settled view.
func WatchLocalEvents(api *API, notifier Notifier, userID string, limit int, onChange func(State[[]EventView]), logger *zap.Logger) *Watcher[[]EventView] {
	return NewWatcher(WatcherConfig[[]EventView]{
		UserID: userID,
		Load: func(ctx context.Context) ([]EventView, error) {
			return api.LocalEvents(ctx, limit)
		},
		Notifier: notifier,
		Tables:   []string{realtime.TableLocalEvents, realtime.TableEventAttendees},
		OnChange: onChange,
		Logger:   logger,
	})
}

// WatchActivities keeps the activity feed current.
func WatchActivities(api *API, notifier Notifier, userID string, limit int, onChange func(State[[]Activity]), logger *zap.Logger) *Watcher[[]Activity] {
	return NewWatcher(WatcherConfig[[]Activity]{
		UserID: userID,
		Load: func(ctx context.Context) ([]Activity, error) {
			return api.Activities(ctx, limit)
		},
		Notifier: notifier,
		Tables:   []string{realtime.TableUserActivities},
		OnChange: onChange,
		Logger:   logger,
	})
}

// WatchInsights keeps the insights panel current.
func WatchInsights(api *API, notifier Notifier, userID string, onChange func(State[[]Insight]), logger *zap.Logger) *Watcher[[]Insight] {
	return NewWatcher(WatcherConfig[[]Insight]{
		UserID: userID,
		Load: func(ctx context.Context) ([]Insight, error) {
			return api.Insights(ctx)
		},
		Notifier: notifier,
		Tables:   []string{realtime.TableUserInsights},
		OnChange: onChange,
		Logger:   logger,
	})
}

// WatchConversations keeps the chat list current, reloading on both
// conversation and message changes.
func WatchConversations(api *API, notifier Notifier, userID string, onChange func(State[[]ConversationView]), logger *zap.Logger) *Watcher[[]ConversationView] {
	return NewWatcher(WatcherConfig[[]ConversationView]{
		UserID: userID,
		Load: func(ctx context.Context) ([]ConversationView, error) {
			return api.Conversations(ctx)
		},
		Notifier: notifier,
		Tables:   []string{realtime.TableConversations, realtime.TableMessages},
		OnChange: onChange,
		Logger:   logger,
	})
}

// WatchCommunities keeps the communities list current.
func WatchCommunities(api *API, notifier Notifier, userID string, onChange func(State[[]CommunityView]), logger *zap.Logger) *Watcher[[]CommunityView] {
	return NewWatcher(WatcherConfig[[]CommunityView]{
		UserID: userID,
		Load: func(ctx context.Context) ([]CommunityView, error) {
			return api.Communities(ctx)
		},
		Notifier: notifier,
		Tables:   []string{realtime.TableCommunities, realtime.TableCommunityMembers},
		OnChange: onChange,
		Logger:   logger,
	})
}

// WatchProfile keeps the profile view current across profile, photo,
// interest, and preference changes.
func WatchProfile(api *API, notifier Notifier, userID string, onChange func(State[ProfileView]), logger *zap.Logger) *Watcher[ProfileView] {
	return NewWatcher(WatcherConfig[ProfileView]{
		UserID: userID,
		Load: func(ctx context.Context) (ProfileView, error) {
			return api.Profile(ctx)
		},
		Notifier: notifier,
		Tables: []string{
			realtime.TableProfiles,
			realtime.TableUserPhotos,
			realtime.TableUserInterests,
			realtime.TableUserPreferences,
		},
		OnChange: onChange,
		Logger:   logger,
	})
}
