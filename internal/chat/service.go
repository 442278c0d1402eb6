package chat

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
	ErrMissingUserID = errors.New("chat: user identifier required")
	// ErrConversationNotFound indicates the conversation does not exist.
	ErrConversationNotFound = errors.New("chat: conversation not found")
	// ErrNotParticipant indicates the user does not belong to the conversation.
	ErrNotParticipant = errors.New("chat: user is not a participant")
	// ErrEmptyMessage indicates a message with no body.
	ErrEmptyMessage = errors.New("chat: message body required")

	errMissingDatabase   = errors.New("chat: database connection required")
	errMissingIDProvider = errors.New("chat: id provider required")
)

// ServiceConfig describes the dependencies for the chat service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Dispatcher *realtime.Dispatcher
}

// Service manages conversations and messages between two members.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider ids.Provider
	dispatcher *realtime.Dispatcher
}

// NewService constructs the chat service.
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

// OpenConversation returns the existing conversation between the two users
// or creates one. Participant order does not matter.
func (s *Service) OpenConversation(ctx context.Context, userID, peerID string) (string, error) {
	if userID == "" || peerID == "" {
		return "", ErrMissingUserID
	}
	if userID == peerID {
		return "", errors.New("chat: cannot open conversation with self")
	}

	var existing Conversation
	err := s.db.WithContext(ctx).
		Where("(participant_a = ? AND participant_b = ?) OR (participant_a = ? AND participant_b = ?)",
			userID, peerID, peerID, userID).
		Take(&existing).Error
	if err == nil {
		return existing.ConversationID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	conversationID, err := s.idProvider.NewID()
	if err != nil {
		return "", err
	}
	row := Conversation{
		ConversationID:   conversationID,
		ParticipantA:     userID,
		ParticipantB:     peerID,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	if s.dispatcher != nil {
		s.dispatcher.PublishAll(realtime.TableConversations, []string{userID, peerID}, []string{conversationID})
	}
	return conversationID, nil
}

// Conversations assembles the user's conversation list, most recent first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]ConversationView, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	var rows []Conversation
	if err := s.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("last_message_at_s DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(rows))
	for _, row := range rows {
		peerID := row.ParticipantA
		if peerID == userID {
			peerID = row.ParticipantB
		}

		var latest Message
		lastBody := ""
		err := s.db.WithContext(ctx).
			Where("conversation_id = ?", row.ConversationID).
			Order("sent_at_s DESC").
			Take(&latest).Error
		if err == nil {
			lastBody = latest.Body
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		var unread int64
		if err := s.db.WithContext(ctx).Model(&Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND read_at_s = 0", row.ConversationID, userID).
			Count(&unread).Error; err != nil {
			return nil, err
		}

		views = append(views, ConversationView{
			ConversationID: row.ConversationID,
			PeerID:         peerID,
			LastMessage:    lastBody,
			LastMessageAtS: row.LastMessageAtSeconds,
			UnreadCount:    int(unread),
		})
	}
	return views, nil
}

// Messages returns a conversation's messages in send order, verifying the
// caller participates.
func (s *Service) Messages(ctx context.Context, userID, conversationID string, limit int) ([]Message, error) {
	conversation, err := s.participantConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversation.ConversationID).
		Order("sent_at_s ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	messages := []Message{}
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage appends a message and notifies both participants.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyMessage
	}
	conversation, err := s.participantConversation(ctx, userID, conversationID)
	if err != nil {
		return "", err
	}

	messageID, err := s.idProvider.NewID()
	if err != nil {
		return "", err
	}
	now := s.clock().UTC().Unix()
	message := Message{
		MessageID:      messageID,
		ConversationID: conversation.ConversationID,
		SenderID:       userID,
		Body:           body,
		SentAtSeconds:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).
			Where("conversation_id = ?", conversation.ConversationID).
			Update("last_message_at_s", now).Error
	})
	if err != nil {
		return "", err
	}

	if s.dispatcher != nil {
		participants := []string{conversation.ParticipantA, conversation.ParticipantB}
		s.dispatcher.PublishAll(realtime.TableMessages, participants, []string{messageID})
	}
	return messageID, nil
}

// MarkRead stamps every unread peer message in the conversation.
func (s *Service) MarkRead(ctx context.Context, userID, conversationID string) error {
	conversation, err := s.participantConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at_s = 0", conversation.ConversationID, userID).
		Update("read_at_s", s.clock().UTC().Unix()).Error
}

// PurgeUser removes the user's conversations and their messages.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []Conversation
		if err := tx.Where("participant_a = ? OR participant_b = ?", userID, userID).
			Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			if err := tx.Where("conversation_id = ?", row.ConversationID).
				Delete(&Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("conversation_id = ?", row.ConversationID).
				Delete(&Conversation{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) participantConversation(ctx context.Context, userID, conversationID string) (Conversation, error) {
	if userID == "" {
		return Conversation{}, ErrMissingUserID
	}
	var conversation Conversation
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Take(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	if conversation.ParticipantA != userID && conversation.ParticipantB != userID {
		return Conversation{}, ErrNotParticipant
	}
	return conversation, nil
}
