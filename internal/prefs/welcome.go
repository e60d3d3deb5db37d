package prefs

import (
	"context"
	"errors"

	"ecoshare/internal/kvstore"
)

// WelcomeMessages tracks which conversations already showed their welcome banner.
type WelcomeMessages struct {
	store kvstore.Store
}

func NewWelcomeMessages(store kvstore.Store) *WelcomeMessages {
	return &WelcomeMessages{store: store}
}

func welcomeKey(userID, conversationID string) string {
	return "welcome_shown:" + userID + ":" + conversationID
}

func (w *WelcomeMessages) Shown(ctx context.Context, userID, conversationID string) (bool, error) {
	_, err := w.store.Get(ctx, welcomeKey(userID, conversationID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (w *WelcomeMessages) MarkShown(ctx context.Context, userID, conversationID string) error {
	return w.store.Set(ctx, welcomeKey(userID, conversationID), "1")
}
