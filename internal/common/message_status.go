package common

import "strings"

// MessageStatus is the delivery state of a chat message.
type MessageStatus string

const (
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// String returns the string representation
func (ms MessageStatus) String() string {
	return string(ms)
}

// IsValid checks if the message status is one of the known states
func (ms MessageStatus) IsValid() bool {
	switch ms {
	case MessageStatusSending, MessageStatusSent, MessageStatusDelivered, MessageStatusRead:
		return true
	}
	return false
}

// IsPending reports whether the message is a local optimistic copy.
func (ms MessageStatus) IsPending() bool {
	return ms == MessageStatusSending
}

// ParseMessageStatus maps stored values onto a MessageStatus. Unknown values
// become "sent": anything the server returns has at least been persisted.
func ParseMessageStatus(value string) MessageStatus {
	status := MessageStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.IsValid() || status == MessageStatusSending {
		return MessageStatusSent
	}
	return status
}
