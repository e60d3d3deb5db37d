package coordinator

import (
	"context"
	"time"

	"ecoshare/internal/common"
	"ecoshare/internal/realtime"
)

// Participant is the other side of a conversation as shown in the list.
type Participant struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

// Message is one entry of a conversation. Timestamp is the display string
// fixed when the message was created or received; SentAt is the instant it
// was derived from.
type Message struct {
	ID        string
	SenderID  string
	Content   string
	Timestamp string
	SentAt    time.Time
	Status    common.MessageStatus
}

// Conversation mirrors a server conversation. LastMessage and LastTimestamp
// cache the tail of Messages and drive list ordering.
type Conversation struct {
	ID            string
	Participant   Participant
	Messages      []Message
	LastMessage   string
	LastTimestamp time.Time
	UnreadCount   int
}

func (c Conversation) clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

func (c *Conversation) indexOf(messageID string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// State is a point-in-time copy of everything a view needs to render.
type State struct {
	Conversations        []Conversation
	ActiveID             string
	LoadingConversations bool
	LoadingMessages      bool
	Sending              bool
	ListError            string
	MessagesError        string
	SendError            string
}

// Active returns the selected conversation, if it is in the set.
func (s State) Active() (Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == s.ActiveID {
			return c, true
		}
	}
	return Conversation{}, false
}

// Gateway is the remote conversation store.
type Gateway interface {
	ListConversations(ctx context.Context, user common.AuthenticatedUser) ([]Conversation, error)
	FetchMessages(ctx context.Context, conversationID string, user common.AuthenticatedUser) ([]Message, error)
	SendMessage(ctx context.Context, conversationID, content string, user common.AuthenticatedUser) error
}

// Feed delivers inserted message rows for a topic until the returned
// Unsubscribe is called.
type Feed interface {
	Subscribe(topic string, handler func(realtime.Row)) (realtime.Unsubscribe, error)
}
