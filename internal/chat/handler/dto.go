package handler

import (
	"time"

	"ecoshare/internal/chat/repository"
	"ecoshare/internal/dbmysql"
)

// ParticipantDTO is the other side of a one-to-one conversation.
type ParticipantDTO struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type ConversationDTO struct {
	ID            string         `json:"id"`
	Participant   ParticipantDTO `json:"participant"`
	LastMessage   string         `json:"last_message"`
	LastTimestamp time.Time      `json:"last_timestamp"`
	UnreadCount   int64          `json:"unread_count"`
}

type MessageDTO struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
	Status         string    `json:"status"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type SendMessageResponse struct {
	Success bool       `json:"success"`
	Message MessageDTO `json:"message"`
}

type StartConversationRequest struct {
	ParticipantID string `json:"participant_id"`
}

func toConversationDTO(s repository.ConversationSummary) ConversationDTO {
	name := s.ParticipantName
	if name == "" {
		name = s.ParticipantHandle
	}
	return ConversationDTO{
		ID: s.ConversationID,
		Participant: ParticipantDTO{
			ID:          s.ParticipantID,
			Handle:      s.ParticipantHandle,
			DisplayName: name,
			AvatarURL:   s.ParticipantAvatar,
		},
		LastMessage:   s.LastMessage,
		LastTimestamp: s.LastActivity(),
		UnreadCount:   s.UnreadCount,
	}
}

func toMessageDTO(m *dbmysql.Message) MessageDTO {
	return MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		SentAt:         m.SentAt,
		Status:         m.Status,
	}
}
