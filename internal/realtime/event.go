// Package realtime fans newly inserted message rows out to topic subscribers,
// in process and over websockets.
package realtime

import (
	"strings"
	"time"
)

const (
	EventInsert   = "INSERT"
	MessagesTable = "messages"

	topicPrefix = "messages:"
)

// Row is an inserted message row as pushed to subscribers.
type Row struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Event is the websocket frame carrying a Row.
type Event struct {
	Type   string `json:"type"`
	Table  string `json:"table"`
	Record Row    `json:"record"`
}

func NewInsertEvent(row Row) Event {
	return Event{Type: EventInsert, Table: MessagesTable, Record: row}
}

// Unsubscribe releases a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// Topic is the channel name carrying inserts for conversations the user is in.
// It depends only on the user id so re-subscriptions land on the same name.
func Topic(userID string) string {
	return topicPrefix + userID
}

// TopicOwner returns the user id a topic belongs to.
func TopicOwner(topic string) (string, bool) {
	if !strings.HasPrefix(topic, topicPrefix) {
		return "", false
	}
	owner := strings.TrimPrefix(topic, topicPrefix)
	return owner, owner != ""
}
