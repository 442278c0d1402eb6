package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brandbond/backend/internal/activity"
	"github.com/brandbond/backend/internal/chat"
	"github.com/brandbond/backend/internal/community"
	"github.com/brandbond/backend/internal/events"
	"github.com/brandbond/backend/internal/profiles"
	"github.com/brandbond/backend/internal/realtime"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "brandbond_user_id"

var (
	errMissingTokenManager     = errors.New("token manager dependency required")
	errMissingProfilesService  = errors.New("profiles service dependency required")
	errMissingEventsService    = errors.New("events service dependency required")
	errMissingActivityService  = errors.New("activity service dependency required")
	errMissingCommunityService = errors.New("community service dependency required")
	errMissingChatService      = errors.New("chat service dependency required")
	errMissingDispatcher       = errors.New("realtime dispatcher dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates bearer tokens for API access.
type TokenManager interface {
	IssueToken(ctx context.Context, userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP layer to the domain services.
type Dependencies struct {
	TokenManager     TokenManager
	ProfilesService  *profiles.Service
	EventsService    *events.Service
	ActivityService  *activity.Service
	CommunityService *community.Service
	ChatService      *chat.Service
	Dispatcher       *realtime.Dispatcher
	AllowedOrigins   []string
	Logger           *zap.Logger
}

// NewHTTPHandler builds the full BrandBond API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.ProfilesService == nil {
		return nil, errMissingProfilesService
	}
	if deps.EventsService == nil {
		return nil, errMissingEventsService
	}
	if deps.ActivityService == nil {
		return nil, errMissingActivityService
	}
	if deps.CommunityService == nil {
		return nil, errMissingCommunityService
	}
	if deps.ChatService == nil {
		return nil, errMissingChatService
	}
	if deps.Dispatcher == nil {
		return nil, errMissingDispatcher
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:      deps.TokenManager,
		profiles:    deps.ProfilesService,
		events:      deps.EventsService,
		activities:  deps.ActivityService,
		communities: deps.CommunityService,
		chats:       deps.ChatService,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/signin", handler.handleSignIn)

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)
	api.GET("/dashboard/stats", handler.handleDashboardStats)
	api.GET("/dashboard/matches", handler.handleMatches)
	api.GET("/profile", handler.handleProfile)
	api.PUT("/profile", handler.handleUpdateProfile)
	api.PUT("/profile/interests", handler.handleSetInterests)
	api.PUT("/profile/preferences", handler.handleSetPreference)
	api.POST("/profile/photos", handler.handleAddPhoto)
	api.GET("/communities", handler.handleCommunities)
	api.POST("/communities/:id/join", handler.handleJoinCommunity)
	api.POST("/communities/:id/leave", handler.handleLeaveCommunity)
	api.GET("/activities", handler.handleActivities)
	api.GET("/insights", handler.handleInsights)
	api.GET("/events", handler.handleEvents)
	api.POST("/events", handler.handleCreateEvent)
	api.POST("/events/:id/attend", handler.handleAttendEvent)
	api.POST("/events/:id/leave", handler.handleLeaveEvent)
	api.GET("/conversations", handler.handleConversations)
	api.POST("/conversations", handler.handleOpenConversation)
	api.GET("/conversations/:id/messages", handler.handleMessages)
	api.POST("/conversations/:id/messages", handler.handleSendMessage)
	api.POST("/conversations/:id/read", handler.handleMarkRead)
	api.DELETE("/account", handler.handleDeleteAccount)
	api.GET("/stream", handler.handleStream)

	return router, nil
}

type httpHandler struct {
	tokens      TokenManager
	profiles    *profiles.Service
	events      *events.Service
	activities  *activity.Service
	communities *community.Service
	chats       *chat.Service
	dispatcher  *realtime.Dispatcher
	logger      *zap.Logger
}

func respondData(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, gin.H{"data": payload})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

type credentialsPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Location    string `json:"location"`
	BirthYear   int    `json:"birth_year"`
}

type tokenPayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}

	userID, err := h.profiles.Register(c.Request.Context(), profiles.RegistrationRequest{
		Email:       request.Email,
		Password:    request.Password,
		DisplayName: request.DisplayName,
		Location:    request.Location,
		BirthYear:   request.BirthYear,
	})
	if errors.Is(err, profiles.ErrEmailTaken) {
		respondError(c, http.StatusConflict, "email_taken")
		return
	}
	if errors.Is(err, profiles.ErrInvalidEmail) {
		respondError(c, http.StatusBadRequest, "invalid_email")
		return
	}
	if err != nil {
		h.logger.Error("registration failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "registration_failed")
		return
	}

	h.issueToken(c, userID)
}

func (h *httpHandler) handleSignIn(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}

	userID, err := h.profiles.Authenticate(c.Request.Context(), request.Email, request.Password)
	if errors.Is(err, profiles.ErrInvalidCredentials) {
		respondError(c, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		h.logger.Error("sign-in failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "signin_failed")
		return
	}

	h.issueToken(c, userID)
}

func (h *httpHandler) issueToken(c *gin.Context, userID string) {
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "token_issue_failed")
		return
	}
	respondData(c, http.StatusOK, tokenPayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		UserID:      userID,
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

// bearerToken extracts the token from the Authorization header, falling back
// to the access_token query parameter for websocket upgrades.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.Query("access_token"))
}

type dashboardStatsPayload struct {
	Matches        int `json:"matches"`
	Communities    int `json:"communities"`
	Activities     int `json:"activities"`
	UpcomingEvents int `json:"upcomingEvents"`
}

func (h *httpHandler) handleDashboardStats(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	ctx := c.Request.Context()

	matches, err := h.profiles.Matches(ctx, userID, 0)
	if err != nil {
		h.logger.Error("stats matches failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "stats_failed")
		return
	}
	communityViews, err := h.communities.Communities(ctx, userID)
	if err != nil {
		h.logger.Error("stats communities failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "stats_failed")
		return
	}
	joined := 0
	for _, view := range communityViews {
		if view.IsMember {
			joined++
		}
	}
	activities, err := h.activities.Activities(ctx, userID, 0)
	if err != nil {
		h.logger.Error("stats activities failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "stats_failed")
		return
	}
	eventViews, err := h.events.LocalEvents(ctx, userID, 0)
	if err != nil {
		h.logger.Error("stats events failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "stats_failed")
		return
	}

	respondData(c, http.StatusOK, dashboardStatsPayload{
		Matches:        len(matches),
		Communities:    joined,
		Activities:     len(activities),
		UpcomingEvents: len(eventViews),
	})
}

func (h *httpHandler) handleMatches(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	limit := queryLimit(c)
	matches, err := h.profiles.Matches(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("matches failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "matches_failed")
		return
	}
	respondData(c, http.StatusOK, matches)
}

func (h *httpHandler) handleProfile(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	view, err := h.profiles.ProfileView(c.Request.Context(), userID)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		respondError(c, http.StatusNotFound, "profile_not_found")
		return
	}
	if err != nil {
		h.logger.Error("profile load failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "profile_failed")
		return
	}
	respondData(c, http.StatusOK, view)
}

type profileUpdatePayload struct {
	DisplayName *string `json:"display_name"`
	Location    *string `json:"location"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request profileUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}
	err := h.profiles.UpdateProfile(c.Request.Context(), userID, profiles.ProfileUpdate{
		DisplayName: request.DisplayName,
		Location:    request.Location,
		Bio:         request.Bio,
		AvatarURL:   request.AvatarURL,
	})
	if errors.Is(err, profiles.ErrProfileNotFound) {
		respondError(c, http.StatusNotFound, "profile_not_found")
		return
	}
	if err != nil {
		h.logger.Error("profile update failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "update_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"updated": true})
}

type interestsPayload struct {
	Interests []string `json:"interests"`
}

func (h *httpHandler) handleSetInterests(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request interestsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := h.profiles.SetInterests(c.Request.Context(), userID, request.Interests); err != nil {
		h.logger.Error("set interests failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "update_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"updated": true})
}

type preferencePayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *httpHandler) handleSetPreference(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request preferencePayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Key) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := h.profiles.SetPreference(c.Request.Context(), userID, request.Key, request.Value); err != nil {
		h.logger.Error("set preference failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "update_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"updated": true})
}

type photoPayload struct {
	URL      string `json:"url"`
	Position int    `json:"position"`
}

func (h *httpHandler) handleAddPhoto(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request photoPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.URL) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}
	photoID, err := h.profiles.AddPhoto(c.Request.Context(), userID, request.URL, request.Position)
	if err != nil {
		h.logger.Error("add photo failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "photo_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"photoId": photoID})
}

func (h *httpHandler) handleCommunities(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	views, err := h.communities.Communities(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("communities failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "communities_failed")
		return
	}
	respondData(c, http.StatusOK, views)
}

func (h *httpHandler) handleJoinCommunity(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	err := h.communities.Join(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, community.ErrCommunityNotFound) {
		respondError(c, http.StatusNotFound, "community_not_found")
		return
	}
	if err != nil {
		h.logger.Error("join community failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "join_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"joined": true})
}

func (h *httpHandler) handleLeaveCommunity(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if err := h.communities.Leave(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.logger.Error("leave community failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "leave_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"left": true})
}

func (h *httpHandler) handleActivities(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	activities, err := h.activities.Activities(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		h.logger.Error("activities failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "activities_failed")
		return
	}
	respondData(c, http.StatusOK, activities)
}

func (h *httpHandler) handleInsights(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	insights, err := h.activities.Insights(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("insights failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "insights_failed")
		return
	}
	respondData(c, http.StatusOK, insights)
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	views, err := h.events.LocalEvents(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		h.logger.Error("events failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "events_failed")
		return
	}
	respondData(c, http.StatusOK, views)
}

type createEventPayload struct {
	Title        string `json:"title"`
	Category     string `json:"category"`
	Location     string `json:"location"`
	VenueName    string `json:"venue_name"`
	Description  string `json:"description"`
	StartsAtS    int64  `json:"starts_at_s"`
	MaxAttendees int    `json:"max_attendees"`
}

func (h *httpHandler) handleCreateEvent(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request createEventPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}
	eventID, err := h.events.CreateEvent(c.Request.Context(), events.CreateRequest{
		Title:           request.Title,
		Category:        request.Category,
		Location:        request.Location,
		VenueName:       request.VenueName,
		Description:     request.Description,
		StartsAtSeconds: request.StartsAtS,
		MaxAttendees:    request.MaxAttendees,
		CreatedBy:       userID,
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, "create_event_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"eventId": eventID})
}

type attendPayload struct {
	Status string `json:"status"`
}

func (h *httpHandler) handleAttendEvent(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request attendPayload
	_ = c.ShouldBindJSON(&request)
	err := h.events.Attend(c.Request.Context(), userID, c.Param("id"), events.AttendeeStatus(request.Status))
	if err != nil {
		h.logger.Warn("attend event failed", zap.Error(err))
		respondError(c, http.StatusBadRequest, "attend_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"attending": true})
}

func (h *httpHandler) handleLeaveEvent(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if err := h.events.Leave(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.logger.Error("leave event failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "leave_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"attending": false})
}

func (h *httpHandler) handleConversations(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	views, err := h.chats.Conversations(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("conversations failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "conversations_failed")
		return
	}
	respondData(c, http.StatusOK, views)
}

type openConversationPayload struct {
	PeerID string `json:"peer_id"`
}

func (h *httpHandler) handleOpenConversation(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request openConversationPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.PeerID) == "" {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}
	conversationID, err := h.chats.OpenConversation(c.Request.Context(), userID, request.PeerID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "open_conversation_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"conversationId": conversationID})
}

func (h *httpHandler) handleMessages(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	messages, err := h.chats.Messages(c.Request.Context(), userID, c.Param("id"), queryLimit(c))
	if errors.Is(err, chat.ErrConversationNotFound) {
		respondError(c, http.StatusNotFound, "conversation_not_found")
		return
	}
	if errors.Is(err, chat.ErrNotParticipant) {
		respondError(c, http.StatusForbidden, "not_participant")
		return
	}
	if err != nil {
		h.logger.Error("messages failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "messages_failed")
		return
	}
	respondData(c, http.StatusOK, messages)
}

type sendMessagePayload struct {
	Body string `json:"body"`
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	var request sendMessagePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request")
		return
	}
	messageID, err := h.chats.SendMessage(c.Request.Context(), userID, c.Param("id"), request.Body)
	if errors.Is(err, chat.ErrEmptyMessage) {
		respondError(c, http.StatusBadRequest, "empty_message")
		return
	}
	if errors.Is(err, chat.ErrConversationNotFound) {
		respondError(c, http.StatusNotFound, "conversation_not_found")
		return
	}
	if errors.Is(err, chat.ErrNotParticipant) {
		respondError(c, http.StatusForbidden, "not_participant")
		return
	}
	if err != nil {
		h.logger.Error("send message failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "send_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"messageId": messageID})
}

func (h *httpHandler) handleMarkRead(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	err := h.chats.MarkRead(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, chat.ErrConversationNotFound) {
		respondError(c, http.StatusNotFound, "conversation_not_found")
		return
	}
	if err != nil {
		h.logger.Error("mark read failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "read_failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"read": true})
}

// handleDeleteAccount removes every row the user owns. Secondary purge
// failures are logged and skipped so the account row itself always goes.
func (h *httpHandler) handleDeleteAccount(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	ctx := c.Request.Context()

	if err := h.events.PurgeUser(ctx, userID); err != nil {
		h.logger.Warn("event purge failed", zap.String("user_id", userID), zap.Error(err))
	}
	if err := h.activities.PurgeUser(ctx, userID); err != nil {
		h.logger.Warn("activity purge failed", zap.String("user_id", userID), zap.Error(err))
	}
	if err := h.communities.PurgeUser(ctx, userID); err != nil {
		h.logger.Warn("community purge failed", zap.String("user_id", userID), zap.Error(err))
	}
	if err := h.chats.PurgeUser(ctx, userID); err != nil {
		h.logger.Warn("chat purge failed", zap.String("user_id", userID), zap.Error(err))
	}
	if err := h.profiles.PurgeUser(ctx, userID); err != nil {
		h.logger.Error("profile purge failed", zap.String("user_id", userID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "delete_failed")
		return
	}

	respondData(c, http.StatusOK, gin.H{"deleted": true})
}

func queryLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
