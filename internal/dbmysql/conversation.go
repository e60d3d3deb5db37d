package dbmysql

import (
	"time"
)

type Conversation struct {
	ID        string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversationParticipant links users to a conversation. One-to-one
// conversations have exactly two rows.
type ConversationParticipant struct {
	ConversationID string `gorm:"primaryKey;size:36"`
	UserID         string `gorm:"primaryKey;size:36;index"`
	JoinedAt       time.Time
}
