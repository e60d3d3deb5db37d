package coordinator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ecoshare/internal/chat/coordinator"
	"ecoshare/internal/chat/coordinator/mocks"
	"ecoshare/internal/common"
	"ecoshare/internal/config"
	"ecoshare/internal/metrics"
	"ecoshare/internal/realtime"
)

var (
	me    = common.AuthenticatedUser{ID: "u-1", Handle: "alice", DisplayName: "Alice"}
	t0    = time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	later = t0.Add(time.Hour)
)

// fakeFeed records subscriptions and lets tests push rows synchronously.
type fakeFeed struct {
	mu           sync.Mutex
	topics       []string
	handlers     map[int]func(realtime.Row)
	next         int
	unsubscribed int
	err          error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: make(map[int]func(realtime.Row))}
}

func (f *fakeFeed) Subscribe(topic string, handler func(realtime.Row)) (realtime.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id := f.next
	f.next++
	f.topics = append(f.topics, topic)
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
		f.unsubscribed++
	}, nil
}

func (f *fakeFeed) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeFeed) emit(row realtime.Row) {
	f.mu.Lock()
	handlers := make([]func(realtime.Row), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(row)
	}
}

func fixedClock(at time.Time) coordinator.Option {
	return coordinator.WithClock(func() time.Time { return at })
}

func fixedIDs(id string) coordinator.Option {
	return coordinator.WithIDGenerator(func(time.Time) string { return id })
}

func newCoordinator(t *testing.T, opts ...coordinator.Option) (*coordinator.Coordinator, *mocks.MockGateway, *fakeFeed) {
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockGateway(ctrl)
	feed := newFakeFeed()
	return coordinator.New(gateway, feed, me, opts...), gateway, feed
}

func conversation(id string, last time.Time, messages ...coordinator.Message) coordinator.Conversation {
	c := coordinator.Conversation{
		ID:            id,
		Participant:   coordinator.Participant{ID: "other-" + id, DisplayName: "Neighbour " + id},
		Messages:      messages,
		LastTimestamp: last,
	}
	if n := len(messages); n > 0 {
		c.LastMessage = messages[n-1].Content
	}
	return c
}

func message(id, sender, content string, at time.Time) coordinator.Message {
	return coordinator.Message{ID: id, SenderID: sender, Content: content, SentAt: at, Status: common.MessageStatusSent}
}

func row(id, conversationID, sender, content string, at time.Time) realtime.Row {
	return realtime.Row{ID: id, ConversationID: conversationID, SenderID: sender, Content: content, CreatedAt: at}
}

func ids(conversations []coordinator.Conversation) []string {
	out := make([]string, 0, len(conversations))
	for _, c := range conversations {
		out = append(out, c.ID)
	}
	return out
}

func messageIDs(c coordinator.Conversation) []string {
	out := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, m.ID)
	}
	return out
}

func find(t *testing.T, s coordinator.State, id string) coordinator.Conversation {
	t.Helper()
	for _, c := range s.Conversations {
		if c.ID == id {
			return c
		}
	}
	require.Failf(t, "conversation missing", "id %s", id)
	return coordinator.Conversation{}
}

func assertSorted(t *testing.T, s coordinator.State) {
	t.Helper()
	for i := 1; i < len(s.Conversations); i++ {
		assert.False(t, s.Conversations[i].LastTimestamp.After(s.Conversations[i-1].LastTimestamp),
			"conversation %s is newer than %s", s.Conversations[i].ID, s.Conversations[i-1].ID)
	}
}

func assertTailConsistent(t *testing.T, s coordinator.State) {
	t.Helper()
	for _, c := range s.Conversations {
		if n := len(c.Messages); n > 0 {
			assert.Equal(t, c.Messages[n-1].Content, c.LastMessage, "tail of %s", c.ID)
			assert.True(t, c.Messages[n-1].SentAt.Equal(c.LastTimestamp), "tail instant of %s", c.ID)
		}
	}
}

func TestLoadConversations(t *testing.T) {
	ctx := context.Background()

	t.Run("no user is a no-op", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		gateway := mocks.NewMockGateway(ctrl)
		c := coordinator.New(gateway, newFakeFeed(), common.AuthenticatedUser{})

		c.LoadConversations(ctx)

		s := c.State()
		assert.False(t, s.LoadingConversations)
		assert.Empty(t, s.Conversations)
	})

	t.Run("selects first as returned then sorts", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).DoAndReturn(
			func(context.Context, common.AuthenticatedUser) ([]coordinator.Conversation, error) {
				assert.True(t, c.State().LoadingConversations)
				return []coordinator.Conversation{
					conversation("c-old", t0),
					conversation("c-new", later),
				}, nil
			})

		c.LoadConversations(ctx)

		s := c.State()
		assert.False(t, s.LoadingConversations)
		assert.Equal(t, "c-old", s.ActiveID)
		assert.Equal(t, []string{"c-new", "c-old"}, ids(s.Conversations))
	})

	t.Run("keeps existing selection", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
			conversation("c-1", t0), conversation("c-2", later),
		}, nil).Times(2)
		gateway.EXPECT().FetchMessages(gomock.Any(), "c-2", me).Return(nil, nil)

		c.LoadConversations(ctx)
		require.NoError(t, c.Select(ctx, "c-2"))
		c.LoadConversations(ctx)

		assert.Equal(t, "c-2", c.State().ActiveID)
	})

	t.Run("error keeps stale data", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gomock.InOrder(
			gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{conversation("c-1", t0)}, nil),
			gateway.EXPECT().ListConversations(gomock.Any(), me).Return(nil, errors.New("502 bad gateway")),
		)

		c.LoadConversations(ctx)
		c.LoadConversations(ctx)

		s := c.State()
		assert.Equal(t, []string{"c-1"}, ids(s.Conversations))
		assert.Contains(t, s.ListError, "502 bad gateway")
		assert.False(t, s.LoadingConversations)

		c.ClearErrors()
		assert.Empty(t, c.State().ListError)
	})
}

func TestLoadMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces only the target conversation", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
			conversation("c-1", t0, message("a-1", "u-2", "old", t0)),
			conversation("c-2", later, message("b-1", "u-3", "untouched", later)),
		}, nil)
		gateway.EXPECT().FetchMessages(gomock.Any(), "c-1", me).Return([]coordinator.Message{
			message("a-1", "u-2", "old", t0),
			message("a-2", "u-1", "fresh", later.Add(time.Minute)),
			message("a-2", "u-1", "fresh", later.Add(time.Minute)),
		}, nil)

		c.LoadConversations(ctx)
		c.LoadMessages(ctx, "c-1", false)

		s := c.State()
		assert.Equal(t, []string{"a-1", "a-2"}, messageIDs(find(t, s, "c-1")))
		assert.Equal(t, []string{"b-1"}, messageIDs(find(t, s, "c-2")))
		assert.Equal(t, []string{"c-1", "c-2"}, ids(s.Conversations))
		assert.Equal(t, common.FormatDisplayTime(t0), find(t, s, "c-1").Messages[0].Timestamp)
		assertSorted(t, s)
		assertTailConsistent(t, s)
	})

	t.Run("loading flag only when asked", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{conversation("c-1", t0)}, nil)
		c.LoadConversations(ctx)

		var seen []bool
		gateway.EXPECT().FetchMessages(gomock.Any(), "c-1", me).DoAndReturn(
			func(context.Context, string, common.AuthenticatedUser) ([]coordinator.Message, error) {
				seen = append(seen, c.State().LoadingMessages)
				return nil, nil
			}).Times(2)

		c.LoadMessages(ctx, "c-1", true)
		c.LoadMessages(ctx, "c-1", false)

		assert.Equal(t, []bool{true, false}, seen)
		assert.False(t, c.State().LoadingMessages)
	})

	t.Run("error keeps loaded messages", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
			conversation("c-1", t0, message("a-1", "u-2", "hi", t0)),
		}, nil)
		gateway.EXPECT().FetchMessages(gomock.Any(), "c-1", me).Return(nil, errors.New("timeout"))

		c.LoadConversations(ctx)
		c.LoadMessages(ctx, "c-1", true)

		s := c.State()
		assert.Equal(t, []string{"a-1"}, messageIDs(find(t, s, "c-1")))
		assert.Contains(t, s.MessagesError, "timeout")
		assert.False(t, s.LoadingMessages)
	})
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	c, gateway, _ := newCoordinator(t)
	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
		conversation("c-1", later), conversation("c-2", t0),
	}, nil)
	gateway.EXPECT().FetchMessages(gomock.Any(), "c-2", me).Return([]coordinator.Message{message("m-1", "u-9", "yo", t0)}, nil)

	c.LoadConversations(ctx)
	assert.ErrorIs(t, c.Select(ctx, "missing"), coordinator.ErrConversationNotFound)
	require.NoError(t, c.Select(ctx, "c-2"))

	s := c.State()
	assert.Equal(t, "c-2", s.ActiveID)
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, []string{"m-1"}, messageIDs(active))
}

func TestHandleInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("classifies own and other messages", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{conversation("c-1", t0)}, nil)
		c.LoadConversations(ctx)

		c.HandleInsert(ctx, row("m-1", "c-1", "u-1", "mine", t0.Add(time.Minute)))
		c.HandleInsert(ctx, row("m-2", "c-1", "u-2", "theirs", t0.Add(2*time.Minute)))

		conv := find(t, c.State(), "c-1")
		require.Len(t, conv.Messages, 2)
		assert.Equal(t, common.MessageStatusSent, conv.Messages[0].Status)
		assert.Equal(t, common.MessageStatusRead, conv.Messages[1].Status)
		assert.Equal(t, common.FormatDisplayTime(t0.Add(2*time.Minute)), conv.Messages[1].Timestamp)
		assert.Equal(t, "theirs", conv.LastMessage)
		assert.True(t, t0.Add(2*time.Minute).Equal(conv.LastTimestamp))
	})

	t.Run("no duplicate messages across fetches and events", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
			conversation("c-1", t0), conversation("c-2", later),
		}, nil)
		gomock.InOrder(
			gateway.EXPECT().FetchMessages(gomock.Any(), "c-1", me).Return([]coordinator.Message{
				message("m-1", "u-2", "one", t0), message("m-2", "u-1", "two", t0.Add(time.Minute)),
			}, nil),
			gateway.EXPECT().FetchMessages(gomock.Any(), "c-1", me).Return([]coordinator.Message{
				message("m-1", "u-2", "one", t0), message("m-2", "u-1", "two", t0.Add(time.Minute)),
				message("m-3", "u-2", "three", later.Add(time.Minute)),
			}, nil),
		)

		c.LoadConversations(ctx)
		steps := []func(){
			func() { c.LoadMessages(ctx, "c-1", false) },
			func() { c.HandleInsert(ctx, row("m-2", "c-1", "u-1", "two", t0.Add(time.Minute))) },
			func() { c.HandleInsert(ctx, row("m-3", "c-1", "u-2", "three", later.Add(time.Minute))) },
			func() { c.HandleInsert(ctx, row("m-3", "c-1", "u-2", "three", later.Add(time.Minute))) },
			func() { c.LoadMessages(ctx, "c-1", false) },
			func() { c.HandleInsert(ctx, row("m-1", "c-1", "u-2", "one", t0)) },
		}
		for _, step := range steps {
			step()
			s := c.State()
			assertSorted(t, s)
			assertTailConsistent(t, s)
			seen := map[string]bool{}
			for _, id := range messageIDs(find(t, s, "c-1")) {
				assert.False(t, seen[id], "duplicate %s", id)
				seen[id] = true
			}
		}

		s := c.State()
		assert.Equal(t, []string{"m-1", "m-2", "m-3"}, messageIDs(find(t, s, "c-1")))
		assert.Equal(t, []string{"c-1", "c-2"}, ids(s.Conversations))
	})

	t.Run("unknown conversation triggers resync without mutation", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		initial := []coordinator.Conversation{
			conversation("c-1", later, message("m-1", "u-2", "hi", later)),
			conversation("c-2", t0),
		}
		gomock.InOrder(
			gateway.EXPECT().ListConversations(gomock.Any(), me).Return(initial, nil),
			gateway.EXPECT().ListConversations(gomock.Any(), me).DoAndReturn(
				func(context.Context, common.AuthenticatedUser) ([]coordinator.Conversation, error) {
					during := c.State()
					assert.Equal(t, []string{"c-1", "c-2"}, ids(during.Conversations))
					assert.Equal(t, []string{"m-1"}, messageIDs(find(t, during, "c-1")))
					assert.Empty(t, find(t, during, "c-2").Messages)
					return append(initial, conversation("c-3", later.Add(time.Minute))), nil
				}),
		)

		c.LoadConversations(ctx)
		c.HandleInsert(ctx, row("x-1", "c-3", "u-5", "new here", later.Add(time.Minute)))

		s := c.State()
		assert.Equal(t, []string{"c-3", "c-1", "c-2"}, ids(s.Conversations))
		assert.Empty(t, find(t, s, "c-3").Messages)
	})

	t.Run("resync after empty list accepts the replayed event", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gomock.InOrder(
			gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{}, nil),
			gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
				{ID: "c1", Messages: []coordinator.Message{}},
			}, nil),
		)

		c.LoadConversations(ctx)
		event := row("m1", "c1", "u-2", "anyone there?", later)

		c.HandleInsert(ctx, event)
		s := c.State()
		require.Equal(t, []string{"c1"}, ids(s.Conversations))
		assert.Empty(t, find(t, s, "c1").Messages)

		c.HandleInsert(ctx, event)
		assert.Equal(t, []string{"m1"}, messageIDs(find(t, c.State(), "c1")))
	})

	t.Run("resync limiter drops bursts", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t, coordinator.WithResyncLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return(nil, nil).Times(2)

		c.LoadConversations(ctx)
		for i := 0; i < 5; i++ {
			c.HandleInsert(ctx, row("x", "c-new", "u-2", "burst", later))
		}
	})

	t.Run("ignored without user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := coordinator.New(mocks.NewMockGateway(ctrl), newFakeFeed(), common.AuthenticatedUser{})
		c.HandleInsert(ctx, row("m-1", "c-1", "u-2", "hi", t0))
		assert.Empty(t, c.State().Conversations)
	})
}

func TestSendMessage_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("no user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := coordinator.New(mocks.NewMockGateway(ctrl), newFakeFeed(), common.AuthenticatedUser{})
		assert.ErrorIs(t, c.SendMessage(ctx, "hi"), coordinator.ErrNotAuthenticated)
	})

	t.Run("no active conversation", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return(nil, nil)
		c.LoadConversations(ctx)
		assert.ErrorIs(t, c.SendMessage(ctx, "hi"), coordinator.ErrNoActiveConversation)
	})

	t.Run("blank content", func(t *testing.T) {
		c, gateway, _ := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{conversation("c-1", t0)}, nil)
		c.LoadConversations(ctx)

		before := c.State()
		assert.ErrorIs(t, c.SendMessage(ctx, "  \t "), coordinator.ErrEmptyMessage)
		assert.Equal(t, before, c.State())
	})
}

func TestSendMessage_OptimisticThenAuthoritative(t *testing.T) {
	ctx := context.Background()
	c, gateway, _ := newCoordinator(t, fixedClock(later), fixedIDs("temp-fixed"))

	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
		{ID: "c1", Participant: coordinator.Participant{DisplayName: "Bo"}, LastTimestamp: t0},
	}, nil)
	c.LoadConversations(ctx)

	gomock.InOrder(
		gateway.EXPECT().SendMessage(gomock.Any(), "c1", "hello", me).DoAndReturn(
			func(context.Context, string, string, common.AuthenticatedUser) error {
				s := c.State()
				assert.True(t, s.Sending)
				conv := find(t, s, "c1")
				require.Len(t, conv.Messages, 1)
				assert.Equal(t, "temp-fixed", conv.Messages[0].ID)
				assert.Equal(t, "hello", conv.Messages[0].Content)
				assert.Equal(t, common.MessageStatusSending, conv.Messages[0].Status)
				assert.Equal(t, common.FormatDisplayTime(later), conv.Messages[0].Timestamp)
				assert.Equal(t, "hello", conv.LastMessage)
				return nil
			}),
		gateway.EXPECT().FetchMessages(gomock.Any(), "c1", me).DoAndReturn(
			func(context.Context, string, common.AuthenticatedUser) ([]coordinator.Message, error) {
				s := c.State()
				assert.Empty(t, find(t, s, "c1").Messages, "placeholder removed before refetch")
				assert.False(t, s.LoadingMessages, "background refetch hides the loading flag")
				return []coordinator.Message{
					{ID: "srv-1", SenderID: "u-1", Content: "hello", SentAt: later, Status: common.MessageStatusSent},
				}, nil
			}),
	)

	require.NoError(t, c.SendMessage(ctx, "  hello "))

	s := c.State()
	assert.False(t, s.Sending)
	assert.Empty(t, s.SendError)
	conv := find(t, s, "c1")
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "srv-1", conv.Messages[0].ID)
	assert.Equal(t, common.MessageStatusSent, conv.Messages[0].Status)
	assert.Equal(t, "hello", conv.Messages[0].Content)
}

func TestSendMessage_RollbackOnFailure(t *testing.T) {
	ctx := context.Background()
	c, gateway, _ := newCoordinator(t, fixedClock(later.Add(time.Hour)))

	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
		conversation("c-1", t0, message("m-1", "u-2", "is it free?", t0)),
		conversation("c-2", later),
	}, nil)
	c.LoadConversations(ctx)
	require.Equal(t, "c-1", c.State().ActiveID)
	before := c.State()

	gateway.EXPECT().SendMessage(gomock.Any(), "c-1", "yes", me).DoAndReturn(
		func(context.Context, string, string, common.AuthenticatedUser) error {
			assert.Equal(t, []string{"c-1", "c-2"}, ids(c.State().Conversations))
			return errors.New("network down")
		})

	require.NoError(t, c.SendMessage(ctx, "yes"))

	after := c.State()
	assert.Equal(t, before.Conversations, after.Conversations)
	assert.Contains(t, after.SendError, "network down")
	assert.False(t, after.Sending)
	assertSorted(t, after)
}

func TestSendMessage_RollbackRestoresListPreview(t *testing.T) {
	ctx := context.Background()
	c, gateway, _ := newCoordinator(t, fixedClock(later.Add(time.Hour)))

	preview := coordinator.Conversation{ID: "c-1", LastMessage: "from the list", LastTimestamp: t0}
	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{preview, conversation("c-2", later)}, nil)
	c.LoadConversations(ctx)
	before := c.State()

	gateway.EXPECT().SendMessage(gomock.Any(), "c-1", "hi", me).Return(errors.New("boom"))
	require.NoError(t, c.SendMessage(ctx, "hi"))

	after := c.State()
	assert.Equal(t, before.Conversations, after.Conversations)
	assert.Equal(t, "from the list", find(t, after, "c-1").LastMessage)
}

func TestSendMessage_PreviewFollowsTailAfterSuccess(t *testing.T) {
	ctx := context.Background()
	c, gateway, _ := newCoordinator(t, fixedClock(later), fixedIDs("temp-fixed"))

	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
		conversation("c-1", t0, message("m-1", "u-2", "old", t0)),
		conversation("c-2", t0.Add(30*time.Minute)),
	}, nil)
	c.LoadConversations(ctx)
	require.Equal(t, "c-1", c.State().ActiveID)

	gomock.InOrder(
		gateway.EXPECT().SendMessage(gomock.Any(), "c-1", "hello", me).DoAndReturn(
			func(context.Context, string, string, common.AuthenticatedUser) error {
				s := c.State()
				assert.Equal(t, []string{"c-1", "c-2"}, ids(s.Conversations))
				assertTailConsistent(t, s)
				return nil
			}),
		gateway.EXPECT().FetchMessages(gomock.Any(), "c-1", me).DoAndReturn(
			func(context.Context, string, common.AuthenticatedUser) ([]coordinator.Message, error) {
				s := c.State()
				assertTailConsistent(t, s)
				assertSorted(t, s)
				conv := find(t, s, "c-1")
				assert.Equal(t, []string{"m-1"}, messageIDs(conv))
				assert.Equal(t, "old", conv.LastMessage)
				return nil, errors.New("history unavailable")
			}),
	)

	require.NoError(t, c.SendMessage(ctx, "hello"))

	s := c.State()
	assertTailConsistent(t, s)
	assertSorted(t, s)
	conv := find(t, s, "c-1")
	assert.Equal(t, []string{"m-1"}, messageIDs(conv))
	assert.Equal(t, "old", conv.LastMessage)
	assert.True(t, t0.Equal(conv.LastTimestamp))
	assert.Equal(t, []string{"c-2", "c-1"}, ids(s.Conversations))
}

func TestLoadMessages_KeepsPendingPlaceholder(t *testing.T) {
	ctx := context.Background()
	c, gateway, _ := newCoordinator(t, fixedClock(later), fixedIDs("temp-fixed"))

	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
		conversation("c-1", t0, message("m-1", "u-2", "old", t0)),
	}, nil)
	c.LoadConversations(ctx)

	entered := make(chan struct{})
	release := make(chan struct{})
	gomock.InOrder(
		gateway.EXPECT().SendMessage(gomock.Any(), "c-1", "hello", me).DoAndReturn(
			func(context.Context, string, string, common.AuthenticatedUser) error {
				close(entered)
				<-release
				return nil
			}),
		gateway.EXPECT().FetchMessages(gomock.Any(), "c-1", me).Return([]coordinator.Message{
			message("m-1", "u-2", "old", t0),
		}, nil),
		gateway.EXPECT().FetchMessages(gomock.Any(), "c-1", me).Return([]coordinator.Message{
			message("m-1", "u-2", "old", t0),
			message("srv-2", "u-1", "hello", later),
		}, nil),
	)

	done := make(chan error, 1)
	go func() { done <- c.SendMessage(ctx, "hello") }()
	<-entered

	require.NoError(t, c.Select(ctx, "c-1"))

	s := c.State()
	assert.True(t, s.Sending)
	conv := find(t, s, "c-1")
	assert.Equal(t, []string{"m-1", "temp-fixed"}, messageIDs(conv))
	assert.Equal(t, common.MessageStatusSending, conv.Messages[1].Status)
	assertTailConsistent(t, s)

	close(release)
	require.NoError(t, <-done)

	conv = find(t, c.State(), "c-1")
	assert.Equal(t, []string{"m-1", "srv-2"}, messageIDs(conv))
	assert.Equal(t, "hello", conv.LastMessage)
}

func TestSendMessage_SingleFlight(t *testing.T) {
	ctx := context.Background()
	c, gateway, _ := newCoordinator(t)

	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
		conversation("c-1", later), conversation("c-2", t0),
	}, nil)
	c.LoadConversations(ctx)

	entered := make(chan struct{})
	release := make(chan struct{})
	gateway.EXPECT().SendMessage(gomock.Any(), "c-1", "first", me).DoAndReturn(
		func(context.Context, string, string, common.AuthenticatedUser) error {
			close(entered)
			<-release
			return nil
		})
	gateway.EXPECT().FetchMessages(gomock.Any(), "c-1", me).Return(nil, nil)
	gateway.EXPECT().FetchMessages(gomock.Any(), "c-2", me).Return(nil, nil)

	done := make(chan error, 1)
	go func() { done <- c.SendMessage(ctx, "first") }()
	<-entered

	assert.ErrorIs(t, c.SendMessage(ctx, "second"), coordinator.ErrSendInFlight)
	require.NoError(t, c.Select(ctx, "c-2"))
	assert.ErrorIs(t, c.SendMessage(ctx, "to another"), coordinator.ErrSendInFlight)

	total := 0
	for _, conv := range c.State().Conversations {
		total += len(conv.Messages)
	}
	assert.Equal(t, 1, total)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.State().Sending)
}

func TestSendMessage_MovesConversationToTop(t *testing.T) {
	ctx := context.Background()
	now := t0.Add(2 * time.Second)
	c, gateway, _ := newCoordinator(t, fixedClock(now))

	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
		conversation("c2", t0.Add(time.Second)), conversation("c1", t0),
	}, nil)
	gateway.EXPECT().FetchMessages(gomock.Any(), "c1", me).Return(nil, nil)
	c.LoadConversations(ctx)
	require.NoError(t, c.Select(ctx, "c1"))
	assert.Equal(t, []string{"c2", "c1"}, ids(c.State().Conversations))

	gateway.EXPECT().SendMessage(gomock.Any(), "c1", "ping", me).DoAndReturn(
		func(context.Context, string, string, common.AuthenticatedUser) error {
			assert.Equal(t, []string{"c1", "c2"}, ids(c.State().Conversations))
			return nil
		})
	gateway.EXPECT().FetchMessages(gomock.Any(), "c1", me).Return([]coordinator.Message{
		message("srv-9", "u-1", "ping", now),
	}, nil)

	require.NoError(t, c.SendMessage(ctx, "ping"))
	assert.Equal(t, []string{"c1", "c2"}, ids(c.State().Conversations))
}

func TestSyntheticIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	seen := map[string]bool{}

	c, gateway, _ := newCoordinator(t, fixedClock(later))
	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{conversation("c-1", t0)}, nil)
	c.LoadConversations(ctx)

	gateway.EXPECT().SendMessage(gomock.Any(), "c-1", gomock.Any(), me).DoAndReturn(
		func(context.Context, string, string, common.AuthenticatedUser) error {
			conv := find(t, c.State(), "c-1")
			id := conv.Messages[len(conv.Messages)-1].ID
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[id])
			assert.Regexp(t, `^temp-[0-9a-f-]{36}-\d+$`, id)
			seen[id] = true
			return errors.New("reject to keep history empty")
		}).Times(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.SendMessage(ctx, "again"))
	}
	assert.Len(t, seen, 3)
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	c, gateway, _ := newCoordinator(t)

	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{
		{ID: "c-1", Participant: coordinator.Participant{DisplayName: "Compost Carla"}, LastMessage: "worms ready", LastTimestamp: later},
		{ID: "c-2", Participant: coordinator.Participant{DisplayName: "Dan"}, LastMessage: "Leaf MOLD for you", LastTimestamp: t0},
		{ID: "c-3", Participant: coordinator.Participant{DisplayName: "Eve"}, LastMessage: "thanks", LastTimestamp: t0.Add(-time.Hour)},
	}, nil)
	c.LoadConversations(ctx)
	before := c.State()

	assert.Equal(t, []string{"c-1"}, ids(c.Filter("carla")))
	assert.Equal(t, []string{"c-2"}, ids(c.Filter("mold")))
	assert.Equal(t, []string{"c-1", "c-2", "c-3"}, ids(c.Filter("")))
	assert.Empty(t, c.Filter("zucchini"))
	assert.Equal(t, before, c.State())
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("one subscription per coordinator", func(t *testing.T) {
		c, _, feed := newCoordinator(t)

		require.NoError(t, c.Start(ctx))
		require.NoError(t, c.Start(ctx))
		assert.Equal(t, []string{"messages:u-1"}, feed.topics)
		assert.Equal(t, 1, feed.active())

		c.Close()
		c.Close()
		assert.Equal(t, 0, feed.active())
		assert.Equal(t, 1, feed.unsubscribed)
	})

	t.Run("start requires a user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := coordinator.New(mocks.NewMockGateway(ctrl), newFakeFeed(), common.AuthenticatedUser{})
		assert.ErrorIs(t, c.Start(ctx), coordinator.ErrNotAuthenticated)
	})

	t.Run("subscribe failure is returned", func(t *testing.T) {
		c, _, feed := newCoordinator(t)
		feed.err = errors.New("dial refused")
		assert.ErrorContains(t, c.Start(ctx), "dial refused")
	})

	t.Run("feed rows reach the coordinator", func(t *testing.T) {
		c, gateway, feed := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{conversation("c-1", t0)}, nil)
		c.LoadConversations(ctx)
		require.NoError(t, c.Start(ctx))

		feed.emit(row("m-1", "c-1", "u-2", "hello", later))
		assert.Equal(t, []string{"m-1"}, messageIDs(find(t, c.State(), "c-1")))

		c.Close()
		feed.emit(row("m-2", "c-1", "u-2", "after close", later))
		assert.Equal(t, []string{"m-1"}, messageIDs(find(t, c.State(), "c-1")))
	})

	t.Run("switching user releases before resubscribing", func(t *testing.T) {
		c, gateway, feed := newCoordinator(t)
		gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{conversation("c-1", t0)}, nil)
		c.LoadConversations(ctx)
		require.NoError(t, c.Start(ctx))

		require.NoError(t, c.SetUser(ctx, me))
		assert.Len(t, feed.topics, 1, "same identity keeps its subscription")

		bob := common.AuthenticatedUser{ID: "u-2", Handle: "bob", DisplayName: "Bob"}
		require.NoError(t, c.SetUser(ctx, bob))

		assert.Equal(t, []string{"messages:u-1", "messages:u-2"}, feed.topics)
		assert.Equal(t, 1, feed.unsubscribed)
		assert.Equal(t, 1, feed.active())
		s := c.State()
		assert.Empty(t, s.Conversations)
		assert.Empty(t, s.ActiveID)

		require.NoError(t, c.SetUser(ctx, common.AuthenticatedUser{}))
		assert.Equal(t, 0, feed.active())
	})
}

func TestOnChangeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var snapshots []coordinator.State

	c, gateway, _ := newCoordinator(t, coordinator.WithOnChange(func(s coordinator.State) {
		mu.Lock()
		defer mu.Unlock()
		snapshots = append(snapshots, s)
	}))
	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{conversation("c-1", t0)}, nil)
	c.LoadConversations(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, 2)
	assert.True(t, snapshots[0].LoadingConversations)
	assert.Equal(t, []string{"c-1"}, ids(snapshots[1].Conversations))
}

func TestWithRealtimeHub(t *testing.T) {
	ctx := context.Background()
	hub := realtime.NewHub(config.RealtimeConfig{Workers: 2, ChannelBufferSize: 16}, zap.NewNop(), metrics.NewChatMetrics())
	defer hub.Shutdown()

	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockGateway(ctrl)
	gateway.EXPECT().ListConversations(gomock.Any(), me).Return([]coordinator.Conversation{conversation("c-1", t0)}, nil)

	c := coordinator.New(gateway, hub, me, coordinator.WithLogger(zap.NewNop()))
	c.LoadConversations(ctx)
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	hub.Publish(realtime.Topic("u-1"), row("m-1", "c-1", "u-2", "via hub", later))
	hub.Publish(realtime.Topic("u-1"), row("m-1", "c-1", "u-2", "via hub", later))
	hub.Publish(realtime.Topic("u-9"), row("m-2", "c-1", "u-2", "someone else's", later))

	assert.Eventually(t, func() bool {
		return len(find(t, c.State(), "c-1").Messages) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool {
		return len(find(t, c.State(), "c-1").Messages) > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 1, hub.SubscriberCount(realtime.Topic("u-1")))
}
