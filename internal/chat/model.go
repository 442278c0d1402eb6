package chat

// Conversation links exactly two participants.
type Conversation struct {
	ConversationID       string `gorm:"column:conversation_id;primaryKey;size:190;not null"`
	ParticipantA         string `gorm:"column:participant_a;size:190;not null;index"`
	ParticipantB         string `gorm:"column:participant_b;size:190;not null;index"`
	CreatedAtSeconds     int64  `gorm:"column:created_at_s;not null"`
	LastMessageAtSeconds int64  `gorm:"column:last_message_at_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Conversation) TableName() string {
	return "conversations"
}

// Message is one chat message inside a conversation.
type Message struct {
	MessageID      string `gorm:"column:message_id;primaryKey;size:190;not null" json:"messageId"`
	ConversationID string `gorm:"column:conversation_id;size:190;not null;index:idx_messages_conv_time,priority:1" json:"conversationId"`
	SenderID       string `gorm:"column:sender_id;size:190;not null" json:"senderId"`
	Body           string `gorm:"column:body;type:text;not null" json:"body"`
	SentAtSeconds  int64  `gorm:"column:sent_at_s;not null;index:idx_messages_conv_time,priority:2" json:"sentAtS"`
	ReadAtSeconds  int64  `gorm:"column:read_at_s;not null;default:0" json:"readAtS"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}

// ConversationView joins a conversation with its latest message and the
// viewer's unread count.
type ConversationView struct {
	ConversationID string `json:"conversationId"`
	PeerID         string `json:"peerId"`
	LastMessage    string `json:"lastMessage"`
	LastMessageAtS int64  `json:"lastMessageAtS"`
	UnreadCount    int    `json:"unreadCount"`
}
