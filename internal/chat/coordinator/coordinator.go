// Package coordinator keeps a client-side mirror of a user's conversations,
// merging list and history fetches, realtime inserts and optimistic sends
// into one ordered, duplicate-free view.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ecoshare/internal/common"
	"ecoshare/internal/realtime"
)

var (
	ErrNotAuthenticated     = errors.New("no authenticated user")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrEmptyMessage         = errors.New("message content cannot be empty")
	ErrSendInFlight         = errors.New("a message is already being sent")
	ErrConversationNotFound = errors.New("conversation not found")
)

const tempIDPrefix = "temp-"

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now for display timestamps and optimistic sends.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator replaces the synthetic id source for optimistic messages.
func WithIDGenerator(gen func(time.Time) string) Option {
	return func(c *Coordinator) { c.newID = gen }
}

// WithResyncLimiter bounds how often unknown-conversation events may trigger
// a full list reload. Events over the limit are dropped.
func WithResyncLimiter(l *rate.Limiter) Option {
	return func(c *Coordinator) { c.resync = l }
}

// WithLogger sets the logger for gateway and feed failures. The default
// discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithOnChange registers a callback invoked with a fresh snapshot after every
// state change. It runs outside the coordinator lock and may be called from
// the feed's goroutine.
func WithOnChange(fn func(State)) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

func tempID(now time.Time) string {
	return fmt.Sprintf("%s%s-%d", tempIDPrefix, uuid.NewString(), now.UnixMilli())
}

// Coordinator owns the conversation set for one user session.
type Coordinator struct {
	gateway  Gateway
	feed     Feed
	now      func() time.Time
	newID    func(time.Time) string
	resync   *rate.Limiter
	log      *zap.Logger
	onChange func(State)

	// lifecycle serialises Start, Close and SetUser.
	lifecycle   sync.Mutex
	unsubscribe realtime.Unsubscribe

	mu            sync.Mutex
	user          common.AuthenticatedUser
	epoch         uint64
	conversations []Conversation
	activeID      string
	loadingList   bool
	loadingMsgs   bool
	sending       bool
	listErr       string
	msgErr        string
	sendErr       string
}

// New builds a coordinator for user. A zero user is allowed; operations that
// need an identity are then no-ops until SetUser is called.
func New(gateway Gateway, feed Feed, user common.AuthenticatedUser, opts ...Option) *Coordinator {
	c := &Coordinator{
		gateway: gateway,
		feed:    feed,
		user:    user,
		now:     time.Now,
		newID:   tempID,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) notify() {
	if c.onChange != nil {
		c.onChange(c.State())
	}
}

// sortLocked orders the set newest first. Ties keep their relative order.
func (c *Coordinator) sortLocked() {
	sort.SliceStable(c.conversations, func(i, j int) bool {
		return c.conversations[i].LastTimestamp.After(c.conversations[j].LastTimestamp)
	})
}

func (c *Coordinator) findLocked(id string) int {
	for i := range c.conversations {
		if c.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// Start subscribes to the user's realtime topic. Calling it again while
// subscribed is a no-op.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.subscribeLocked(ctx)
}

func (c *Coordinator) subscribeLocked(ctx context.Context) error {
	if c.unsubscribe != nil {
		return nil
	}

	c.mu.Lock()
	user, epoch := c.user, c.epoch
	c.mu.Unlock()
	if user.ID == "" {
		return ErrNotAuthenticated
	}

	topic := realtime.Topic(user.ID)
	unsubscribe, err := c.feed.Subscribe(topic, func(row realtime.Row) {
		c.handleInsert(ctx, epoch, row)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.unsubscribe = unsubscribe
	c.log.Debug("realtime_subscribed", zap.String("topic", topic))
	return nil
}

// Close releases the realtime subscription. It is safe to call more than once.
func (c *Coordinator) Close() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.releaseLocked()
}

func (c *Coordinator) releaseLocked() {
	if c.unsubscribe == nil {
		return
	}
	c.unsubscribe()
	c.unsubscribe = nil
	c.log.Debug("realtime_unsubscribed")
}

// SetUser switches identity. The old subscription is released before the new
// one is taken and all local state is cleared. Setting the current user again
// keeps the existing subscription.
func (c *Coordinator) SetUser(ctx context.Context, user common.AuthenticatedUser) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.user.ID == user.ID {
		c.user = user
		c.mu.Unlock()
		if user.ID == "" {
			return nil
		}
		return c.subscribeLocked(ctx)
	}
	c.mu.Unlock()

	c.releaseLocked()

	c.mu.Lock()
	c.user = user
	c.epoch++
	c.conversations = nil
	c.activeID = ""
	c.loadingList, c.loadingMsgs, c.sending = false, false, false
	c.listErr, c.msgErr, c.sendErr = "", "", ""
	c.mu.Unlock()
	c.notify()

	if user.ID == "" {
		return nil
	}
	return c.subscribeLocked(ctx)
}

// LoadConversations replaces the conversation set with the gateway's list.
// Without a user it does nothing. On failure the previous set is kept and
// ListError is set.
func (c *Coordinator) LoadConversations(ctx context.Context) {
	c.mu.Lock()
	user, epoch := c.user, c.epoch
	if user.ID == "" {
		c.mu.Unlock()
		return
	}
	c.loadingList = true
	c.listErr = ""
	c.mu.Unlock()
	c.notify()

	fetched, err := c.gateway.ListConversations(ctx, user)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.loadingList = false
	if err != nil {
		c.listErr = fmt.Sprintf("Failed to load conversations: %v", err)
		c.mu.Unlock()
		c.log.Warn("load_conversations_failed", zap.Error(err))
		c.notify()
		return
	}

	next := make([]Conversation, 0, len(fetched))
	for _, conv := range fetched {
		conv = conv.clone()
		conv.Messages = dedupe(conv.Messages)
		fillTimestamps(conv.Messages)
		next = append(next, conv)
	}
	c.conversations = next
	if c.activeID == "" && len(next) > 0 {
		c.activeID = next[0].ID
	}
	c.sortLocked()
	c.mu.Unlock()
	c.notify()
}

// LoadMessages replaces the history of one conversation. showLoading
// controls the LoadingMessages flag so background refreshes do not flicker.
func (c *Coordinator) LoadMessages(ctx context.Context, conversationID string, showLoading bool) {
	c.mu.Lock()
	user, epoch := c.user, c.epoch
	if user.ID == "" || conversationID == "" {
		c.mu.Unlock()
		return
	}
	if showLoading {
		c.loadingMsgs = true
	}
	c.msgErr = ""
	c.mu.Unlock()
	c.notify()

	fetched, err := c.gateway.FetchMessages(ctx, conversationID, user)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	if showLoading {
		c.loadingMsgs = false
	}
	if err != nil {
		c.msgErr = fmt.Sprintf("Failed to load messages: %v", err)
		c.mu.Unlock()
		c.log.Warn("load_messages_failed", zap.String("conversation_id", conversationID), zap.Error(err))
		c.notify()
		return
	}

	idx := c.findLocked(conversationID)
	if idx < 0 {
		c.mu.Unlock()
		c.notify()
		return
	}
	conv := &c.conversations[idx]

	messages := make([]Message, len(fetched))
	copy(messages, fetched)
	messages = dedupe(messages)
	fillTimestamps(messages)
	// an optimistic placeholder stays until its own send resolves
	for _, m := range conv.Messages {
		if m.Status == common.MessageStatusSending && strings.HasPrefix(m.ID, tempIDPrefix) {
			messages = append(messages, m)
		}
	}
	conv.Messages = messages
	if n := len(messages); n > 0 {
		conv.LastMessage = messages[n-1].Content
		conv.LastTimestamp = messages[n-1].SentAt
	}
	c.sortLocked()
	c.mu.Unlock()
	c.notify()
}

// Select makes conversationID active and loads its history.
func (c *Coordinator) Select(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	if c.findLocked(conversationID) < 0 {
		c.mu.Unlock()
		return ErrConversationNotFound
	}
	c.activeID = conversationID
	c.mu.Unlock()

	c.LoadMessages(ctx, conversationID, true)
	return nil
}

// SendMessage posts content to the active conversation. An optimistic
// placeholder is shown while the gateway call runs; it is always removed
// afterwards, the preview falls back to the remaining tail and, on success,
// the history is reloaded to pull in the stored
// message. Only one send may be in flight. Rejected calls return an error and
// change nothing; gateway failures are reported through State().SendError.
func (c *Coordinator) SendMessage(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)

	c.mu.Lock()
	user, epoch := c.user, c.epoch
	switch {
	case user.ID == "":
		c.mu.Unlock()
		return ErrNotAuthenticated
	case c.activeID == "" || c.findLocked(c.activeID) < 0:
		c.mu.Unlock()
		return ErrNoActiveConversation
	case content == "":
		c.mu.Unlock()
		return ErrEmptyMessage
	case c.sending:
		c.mu.Unlock()
		return ErrSendInFlight
	}

	conversationID := c.activeID
	now := c.now()
	placeholder := Message{
		ID:        c.newID(now),
		SenderID:  user.ID,
		Content:   content,
		Timestamp: common.FormatDisplayTime(now),
		SentAt:    now,
		Status:    common.MessageStatusSending,
	}

	conv := &c.conversations[c.findLocked(conversationID)]
	prevLast, prevTimestamp := conv.LastMessage, conv.LastTimestamp
	conv.Messages = append(conv.Messages, placeholder)
	conv.LastMessage = placeholder.Content
	conv.LastTimestamp = placeholder.SentAt
	c.sending = true
	c.sendErr = ""
	c.sortLocked()
	c.mu.Unlock()
	c.notify()

	sendErr := c.gateway.SendMessage(ctx, conversationID, content, user)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return nil
	}
	if idx := c.findLocked(conversationID); idx >= 0 {
		conv := &c.conversations[idx]
		if i := conv.indexOf(placeholder.ID); i >= 0 {
			conv.Messages = append(conv.Messages[:i], conv.Messages[i+1:]...)
		}
		if n := len(conv.Messages); n > 0 {
			conv.LastMessage = conv.Messages[n-1].Content
			conv.LastTimestamp = conv.Messages[n-1].SentAt
		} else {
			conv.LastMessage, conv.LastTimestamp = prevLast, prevTimestamp
		}
	}
	c.sending = false
	if sendErr != nil {
		c.sendErr = fmt.Sprintf("Failed to send message: %v", sendErr)
	}
	c.sortLocked()
	c.mu.Unlock()
	c.notify()

	if sendErr != nil {
		c.log.Warn("send_message_failed", zap.String("conversation_id", conversationID), zap.Error(sendErr))
		return nil
	}

	c.LoadMessages(ctx, conversationID, false)
	return nil
}

// HandleInsert merges one realtime row for the current user.
func (c *Coordinator) HandleInsert(ctx context.Context, row realtime.Row) {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()
	c.handleInsert(ctx, epoch, row)
}

func (c *Coordinator) handleInsert(ctx context.Context, epoch uint64, row realtime.Row) {
	c.mu.Lock()
	if epoch != c.epoch || c.user.ID == "" {
		c.mu.Unlock()
		return
	}

	idx := c.findLocked(row.ConversationID)
	if idx < 0 {
		c.mu.Unlock()
		c.resyncConversations(ctx, row)
		return
	}

	conv := &c.conversations[idx]
	if conv.indexOf(row.ID) >= 0 {
		c.mu.Unlock()
		return
	}

	status := common.MessageStatusRead
	if row.SenderID == c.user.ID {
		status = common.MessageStatusSent
	}
	conv.Messages = append(conv.Messages, Message{
		ID:        row.ID,
		SenderID:  row.SenderID,
		Content:   row.Content,
		Timestamp: common.FormatDisplayTime(row.CreatedAt),
		SentAt:    row.CreatedAt,
		Status:    status,
	})
	conv.LastMessage = row.Content
	conv.LastTimestamp = row.CreatedAt
	c.sortLocked()
	c.mu.Unlock()
	c.notify()
}

func (c *Coordinator) resyncConversations(ctx context.Context, row realtime.Row) {
	if c.resync != nil && !c.resync.Allow() {
		c.log.Debug("resync_throttled", zap.String("conversation_id", row.ConversationID))
		return
	}
	c.log.Info("unknown_conversation_resync", zap.String("conversation_id", row.ConversationID))
	c.LoadConversations(ctx)
}

// Filter returns the conversations whose participant name or last message
// contains query, ignoring case. It never changes state.
func (c *Coordinator) Filter(query string) []Conversation {
	q := strings.ToLower(strings.TrimSpace(query))

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Conversation, 0, len(c.conversations))
	for _, conv := range c.conversations {
		if q == "" ||
			strings.Contains(strings.ToLower(conv.Participant.DisplayName), q) ||
			strings.Contains(strings.ToLower(conv.LastMessage), q) {
			out = append(out, conv.clone())
		}
	}
	return out
}

// State returns a deep copy of the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	convs := make([]Conversation, len(c.conversations))
	for i, conv := range c.conversations {
		convs[i] = conv.clone()
	}
	return State{
		Conversations:        convs,
		ActiveID:             c.activeID,
		LoadingConversations: c.loadingList,
		LoadingMessages:      c.loadingMsgs,
		Sending:              c.sending,
		ListError:            c.listErr,
		MessagesError:        c.msgErr,
		SendError:            c.sendErr,
	}
}

// ClearErrors dismisses all error banners.
func (c *Coordinator) ClearErrors() {
	c.mu.Lock()
	c.listErr, c.msgErr, c.sendErr = "", "", ""
	c.mu.Unlock()
	c.notify()
}

// dedupe keeps the first occurrence of every message id.
func dedupe(messages []Message) []Message {
	seen := make(map[string]struct{}, len(messages))
	out := messages[:0]
	for _, m := range messages {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func fillTimestamps(messages []Message) {
	for i := range messages {
		if messages[i].Timestamp == "" && !messages[i].SentAt.IsZero() {
			messages[i].Timestamp = common.FormatDisplayTime(messages[i].SentAt)
		}
	}
}
