package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ecoshare/internal/common"
	"ecoshare/internal/dbmysql"
)

// ConversationSummary is one row of a user's conversation list: the other
// participant plus the latest message preview.
type ConversationSummary struct {
	ConversationID    string     `gorm:"column:conversation_id"`
	ParticipantID     string     `gorm:"column:participant_id"`
	ParticipantHandle string     `gorm:"column:participant_handle"`
	ParticipantName   string     `gorm:"column:participant_name"`
	ParticipantAvatar string     `gorm:"column:participant_avatar"`
	LastMessage       string     `gorm:"column:last_message"`
	LastSentAt        *time.Time `gorm:"column:last_sent_at"`
	UnreadCount       int64      `gorm:"column:unread_count"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

// LastActivity is the instant the conversation list is ordered by.
func (s ConversationSummary) LastActivity() time.Time {
	if s.LastSentAt != nil {
		return *s.LastSentAt
	}
	return s.UpdatedAt
}

type ChatRepository interface {
	Save(ctx context.Context, msg *dbmysql.Message) error
	FetchHistory(ctx context.Context, conversationID string) ([]*dbmysql.Message, error)
	ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error)
	Participants(ctx context.Context, conversationID string) ([]string, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
	FindOrCreateConversation(ctx context.Context, userID, otherUserID string) (string, bool, error)
}

type chatRepo struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepo{db: db}
}

const listConversationsQuery = `SELECT c.id AS conversation_id,
	u.user_id AS participant_id,
	u.handle AS participant_handle,
	u.display_name AS participant_name,
	u.avatar_url AS participant_avatar,
	(SELECT m.content FROM messages m WHERE m.conversation_id = c.id ORDER BY m.sent_at DESC, m.id DESC LIMIT 1) AS last_message,
	(SELECT MAX(m.sent_at) FROM messages m WHERE m.conversation_id = c.id) AS last_sent_at,
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id AND m.sender_id <> ? AND m.status <> ?) AS unread_count,
	c.updated_at
FROM conversations c
JOIN conversation_participants me ON me.conversation_id = c.id AND me.user_id = ?
JOIN conversation_participants other ON other.conversation_id = c.id AND other.user_id <> ?
JOIN users u ON u.user_id = other.user_id`

const findDirectConversationQuery = `SELECT a.conversation_id FROM conversation_participants a
JOIN conversation_participants b ON a.conversation_id = b.conversation_id
WHERE a.user_id = ? AND b.user_id = ? LIMIT 1`

func (r *chatRepo) Save(ctx context.Context, msg *dbmysql.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

func (r *chatRepo) FetchHistory(ctx context.Context, conversationID string) ([]*dbmysql.Message, error) {
	var messages []*dbmysql.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sent_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return messages, nil
}

// ListConversations returns the user's conversations, most recent activity first.
func (r *chatRepo) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	var rows []ConversationSummary
	err := r.db.WithContext(ctx).
		Raw(listConversationsQuery, userID, string(common.MessageStatusRead), userID, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].LastActivity().After(rows[j].LastActivity())
	})
	return rows, nil
}

func (r *chatRepo) Participants(ctx context.Context, conversationID string) ([]string, error) {
	var userIDs []string
	err := r.db.WithContext(ctx).
		Model(&dbmysql.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	return userIDs, nil
}

func (r *chatRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&dbmysql.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return count > 0, nil
}

// MarkRead flags every message sent to readerID in the conversation as read.
func (r *chatRepo) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&dbmysql.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND status <> ?",
			conversationID, readerID, string(common.MessageStatusRead)).
		Update("status", string(common.MessageStatusRead))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// FindOrCreateConversation returns the one-to-one conversation between the two
// users, creating it when it does not exist yet. The bool reports creation.
func (r *chatRepo) FindOrCreateConversation(ctx context.Context, userID, otherUserID string) (string, bool, error) {
	if userID == otherUserID {
		return "", false, errors.New("cannot start a conversation with yourself")
	}

	var existing string
	err := r.db.WithContext(ctx).Raw(findDirectConversationQuery, userID, otherUserID).Scan(&existing).Error
	if err != nil {
		return "", false, fmt.Errorf("failed to look up conversation: %w", err)
	}
	if existing != "" {
		return existing, false, nil
	}

	now := time.Now().UTC()
	conversation := &dbmysql.Conversation{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	participants := []dbmysql.ConversationParticipant{
		{ConversationID: conversation.ID, UserID: userID, JoinedAt: now},
		{ConversationID: conversation.ID, UserID: otherUserID, JoinedAt: now},
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conversation.ID, true, nil
}
