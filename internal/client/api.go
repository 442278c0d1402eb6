package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// View models mirrored from the API's JSON wire shapes.

type DashboardStats struct {
	Matches        int `json:"matches"`
	Communities    int `json:"communities"`
	Activities     int `json:"activities"`
	UpcomingEvents int `json:"upcomingEvents"`
}

type Match struct {
	UserID       string   `json:"userId"`
	DisplayName  string   `json:"displayName"`
	Location     string   `json:"location"`
	AvatarURL    string   `json:"avatarUrl"`
	BirthYear    int      `json:"birthYear"`
	SharedTags   []string `json:"sharedTags"`
	MatchPercent int      `json:"matchPercent"`
}

type CommunityView struct {
	CommunityID string `json:"communityId"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	IsFanclub   bool   `json:"isFanclub"`
	MemberCount int    `json:"memberCount"`
	IsMember    bool   `json:"isMember"`
}

type Activity struct {
	ActivityID        string `json:"activityId"`
	UserID            string `json:"userId"`
	Kind              string `json:"kind"`
	Summary           string `json:"summary"`
	OccurredAtSeconds int64  `json:"occurredAtS"`
}

type Insight struct {
	InsightID          string `json:"insightId"`
	UserID             string `json:"userId"`
	Category           string `json:"category"`
	Headline           string `json:"headline"`
	Detail             string `json:"detail"`
	Score              int    `json:"score"`
	GeneratedAtSeconds int64  `json:"generatedAtS"`
}

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

type ConversationView struct {
	ConversationID string `json:"conversationId"`
	PeerID         string `json:"peerId"`
	LastMessage    string `json:"lastMessage"`
	LastMessageAtS int64  `json:"lastMessageAtS"`
	UnreadCount    int    `json:"unreadCount"`
}

type Message struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Body           string `json:"body"`
	SentAtSeconds  int64  `json:"sentAtS"`
	ReadAtSeconds  int64  `json:"readAtS"`
}

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

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
}

// API is the dashboard service wrapper over the Gateway.
type API struct {
	gateway  *Gateway
	sessions *SessionStore
}

// NewAPI constructs the API wrapper. The session store is shared with the
// gateway's SessionProvider so sign-in results become visible to requests.
func NewAPI(gateway *Gateway, sessions *SessionStore) *API {
	return &API{gateway: gateway, sessions: sessions}
}

// Gateway exposes the underlying gateway for advanced callers.
func (a *API) Gateway() *Gateway {
	return a.gateway
}

// RegistrationForm carries the onboarding fields.
type RegistrationForm struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Location    string `json:"location"`
	BirthYear   int    `json:"birth_year"`
}

// Register creates an account and stores the issued session.
func (a *API) Register(ctx context.Context, form RegistrationForm) (*Session, error) {
	return a.obtainSession(ctx, "/auth/register", form)
}

// SignIn authenticates and stores the issued session.
func (a *API) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return a.obtainSession(ctx, "/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (a *API) obtainSession(ctx context.Context, path string, body interface{}) (*Session, error) {
	var token tokenResponse
	if err := a.gateway.Do(ctx, http.MethodPost, path, body, &token); err != nil {
		return nil, err
	}
	session := &Session{
		AccessToken: token.AccessToken,
		UserID:      token.UserID,
		ExpiresAt:   time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	a.sessions.Put(session)
	return session, nil
}

// SignOut clears the session and persisted state and navigates home.
func (a *API) SignOut(ctx context.Context) {
	a.sessions.Clear()
	a.gateway.ForceSignOut(ctx)
}

func (a *API) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	err := a.gateway.Do(ctx, http.MethodGet, "/api/dashboard/stats", nil, &stats)
	return stats, err
}

func (a *API) Matches(ctx context.Context, limit int) ([]Match, error) {
	matches := []Match{}
	err := a.gateway.Do(ctx, http.MethodGet, withLimit("/api/dashboard/matches", limit), nil, &matches)
	return matches, err
}

func (a *API) Profile(ctx context.Context) (ProfileView, error) {
	var view ProfileView
	err := a.gateway.Do(ctx, http.MethodGet, "/api/profile", nil, &view)
	return view, err
}

func (a *API) Communities(ctx context.Context) ([]CommunityView, error) {
	views := []CommunityView{}
	err := a.gateway.Do(ctx, http.MethodGet, "/api/communities", nil, &views)
	return views, err
}

func (a *API) JoinCommunity(ctx context.Context, communityID string) error {
	path := fmt.Sprintf("/api/communities/%s/join", url.PathEscape(communityID))
	return a.gateway.Do(ctx, http.MethodPost, path, nil, nil)
}

func (a *API) LeaveCommunity(ctx context.Context, communityID string) error {
	path := fmt.Sprintf("/api/communities/%s/leave", url.PathEscape(communityID))
	return a.gateway.Do(ctx, http.MethodPost, path, nil, nil)
}

func (a *API) Activities(ctx context.Context, limit int) ([]Activity, error) {
	activities := []Activity{}
	err := a.gateway.Do(ctx, http.MethodGet, withLimit("/api/activities", limit), nil, &activities)
	return activities, err
}

func (a *API) Insights(ctx context.Context) ([]Insight, error) {
	insights := []Insight{}
	err := a.gateway.Do(ctx, http.MethodGet, "/api/insights", nil, &insights)
	return insights, err
}

func (a *API) LocalEvents(ctx context.Context, limit int) ([]EventView, error) {
	views := []EventView{}
	err := a.gateway.Do(ctx, http.MethodGet, withLimit("/api/events", limit), nil, &views)
	return views, err
}

func (a *API) AttendEvent(ctx context.Context, eventID, status string) error {
	path := fmt.Sprintf("/api/events/%s/attend", url.PathEscape(eventID))
	return a.gateway.Do(ctx, http.MethodPost, path, map[string]string{"status": status}, nil)
}

func (a *API) LeaveEvent(ctx context.Context, eventID string) error {
	path := fmt.Sprintf("/api/events/%s/leave", url.PathEscape(eventID))
	return a.gateway.Do(ctx, http.MethodPost, path, nil, nil)
}

func (a *API) Conversations(ctx context.Context) ([]ConversationView, error) {
	views := []ConversationView{}
	err := a.gateway.Do(ctx, http.MethodGet, "/api/conversations", nil, &views)
	return views, err
}

func (a *API) OpenConversation(ctx context.Context, peerID string) (string, error) {
	var response struct {
		ConversationID string `json:"conversationId"`
	}
	err := a.gateway.Do(ctx, http.MethodPost, "/api/conversations",
		map[string]string{"peer_id": peerID}, &response)
	return response.ConversationID, err
}

func (a *API) Messages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	messages := []Message{}
	path := fmt.Sprintf("/api/conversations/%s/messages", url.PathEscape(conversationID))
	err := a.gateway.Do(ctx, http.MethodGet, withLimit(path, limit), nil, &messages)
	return messages, err
}

func (a *API) SendMessage(ctx context.Context, conversationID, body string) (string, error) {
	var response struct {
		MessageID string `json:"messageId"`
	}
	path := fmt.Sprintf("/api/conversations/%s/messages", url.PathEscape(conversationID))
	err := a.gateway.Do(ctx, http.MethodPost, path, map[string]string{"body": body}, &response)
	return response.MessageID, err
}

func (a *API) MarkRead(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/conversations/%s/read", url.PathEscape(conversationID))
	return a.gateway.Do(ctx, http.MethodPost, path, nil, nil)
}

// DeleteAccount removes the account remotely, then runs the local
// sign-out flow regardless of secondary failures.
func (a *API) DeleteAccount(ctx context.Context) error {
	err := a.gateway.Do(ctx, http.MethodDelete, "/api/account", nil, nil)
	a.SignOut(ctx)
	return err
}

func withLimit(path string, limit int) string {
	if limit <= 0 {
		return path
	}
	return fmt.Sprintf("%s?limit=%d", path, limit)
}
