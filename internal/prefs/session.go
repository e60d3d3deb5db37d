package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ecoshare/internal/common"
	"ecoshare/internal/kvstore"
)

const sessionKey = "session"

// Session is the persisted login: the bearer token plus the identity it was
// issued for.
type Session struct {
	Token string                   `json:"token"`
	User  common.AuthenticatedUser `json:"user"`
}

// ErrNoSession means nobody is logged in on this machine.
var ErrNoSession = errors.New("not logged in")

type SessionStore struct {
	store kvstore.Store
}

func NewSessionStore(store kvstore.Store) *SessionStore {
	return &SessionStore{store: store}
}

func (s *SessionStore) Load(ctx context.Context) (Session, error) {
	raw, err := s.store.Get(ctx, sessionKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if sess.Token == "" || sess.User.ID == "" {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, sessionKey, string(data))
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, sessionKey)
}
