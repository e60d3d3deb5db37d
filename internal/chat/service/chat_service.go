package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ecoshare/internal/chat/repository"
	"ecoshare/internal/common"
	"ecoshare/internal/dbmysql"
	"ecoshare/internal/metrics"
	"ecoshare/internal/realtime"
)

var (
	ErrNotParticipant = errors.New("user is not a participant of this conversation")
	ErrInvalidInput   = errors.New("invalid input")
)

// Publisher pushes inserted rows to realtime subscribers.
type Publisher interface {
	Publish(topic string, row realtime.Row)
}

// ChatService defines the interface exposed to the handler layer
type ChatService interface {
	SendMessage(ctx context.Context, msg *dbmysql.Message) (*dbmysql.Message, error)
	GetMessageHistory(ctx context.Context, conversationID, readerID string) ([]*dbmysql.Message, error)
	ListConversations(ctx context.Context, userID string) ([]repository.ConversationSummary, error)
	StartConversation(ctx context.Context, userID, otherUserID string) (string, error)
}

type chatService struct {
	repo      repository.ChatRepository
	publisher Publisher
	metrics   *metrics.ChatMetrics
	log       *zap.Logger
	now       func() time.Time
}

// Constructor used in DI/wire
func NewChatService(r repository.ChatRepository, p Publisher, m *metrics.ChatMetrics, log *zap.Logger) ChatService {
	return &chatService{
		repo:      r,
		publisher: p,
		metrics:   m,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// SendMessage validates, persists and fans out a new message
func (s *chatService) SendMessage(ctx context.Context, msg *dbmysql.Message) (*dbmysql.Message, error) {
	if msg.ConversationID == "" {
		s.metrics.SendFailures.Inc()
		return nil, invalid("conversation ID cannot be empty")
	}
	if msg.SenderID == "" {
		s.metrics.SendFailures.Inc()
		return nil, invalid("sender ID cannot be empty")
	}
	if err := common.ValidateMessageContent(msg.Content); err != nil {
		s.metrics.SendFailures.Inc()
		return nil, invalid(err.Error())
	}

	ok, err := s.repo.IsParticipant(ctx, msg.ConversationID, msg.SenderID)
	if err != nil {
		s.metrics.SendFailures.Inc()
		return nil, err
	}
	if !ok {
		s.metrics.SendFailures.Inc()
		return nil, ErrNotParticipant
	}

	msg.ID = uuid.NewString()
	msg.Content = strings.TrimSpace(msg.Content)
	msg.Status = string(common.MessageStatusSent)
	msg.SentAt = s.now()

	if err := s.repo.Save(ctx, msg); err != nil {
		s.metrics.SendFailures.Inc()
		return nil, err
	}
	s.metrics.MessagesSent.Inc()

	s.broadcast(ctx, msg)

	return msg, nil
}

// broadcast publishes the stored row to every participant topic. Failing to
// look up participants only costs realtime delivery; the message is saved.
func (s *chatService) broadcast(ctx context.Context, msg *dbmysql.Message) {
	participants, err := s.repo.Participants(ctx, msg.ConversationID)
	if err != nil {
		s.log.Warn("broadcast_participants_failed",
			zap.String("conversation_id", msg.ConversationID), zap.Error(err))
		return
	}

	row := realtime.Row{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		CreatedAt:      msg.SentAt,
	}
	for _, userID := range participants {
		s.publisher.Publish(realtime.Topic(userID), row)
	}
}

// GetMessageHistory returns the conversation's messages oldest first and marks
// the reader's incoming messages read.
func (s *chatService) GetMessageHistory(ctx context.Context, conversationID, readerID string) ([]*dbmysql.Message, error) {
	if conversationID == "" {
		return nil, invalid("conversation ID is required")
	}
	if readerID == "" {
		return nil, invalid("reader ID is required")
	}

	ok, err := s.repo.IsParticipant(ctx, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}

	messages, err := s.repo.FetchHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	s.metrics.HistoryFetches.Inc()

	if _, err := s.repo.MarkRead(ctx, conversationID, readerID); err != nil {
		s.log.Warn("mark_read_failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	return messages, nil
}

func (s *chatService) ListConversations(ctx context.Context, userID string) ([]repository.ConversationSummary, error) {
	if userID == "" {
		return nil, invalid("user ID is required")
	}
	s.metrics.ConversationLists.Inc()
	return s.repo.ListConversations(ctx, userID)
}

func (s *chatService) StartConversation(ctx context.Context, userID, otherUserID string) (string, error) {
	if userID == "" || otherUserID == "" {
		return "", invalid("both participants are required")
	}
	if userID == otherUserID {
		return "", invalid("cannot start a conversation with yourself")
	}

	id, created, err := s.repo.FindOrCreateConversation(ctx, userID, otherUserID)
	if err != nil {
		return "", err
	}
	if created {
		s.log.Info("conversation_created", zap.String("conversation_id", id))
	}
	return id, nil
}
