package common

import (
	"context"
	"errors"
	"time"
)

// AuthenticatedUser is the session identity. It is built once when a session
// is established and passed down explicitly.
type AuthenticatedUser struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// NewAuthenticatedUser validates the required fields.
func NewAuthenticatedUser(id, handle, displayName, avatarURL string) (AuthenticatedUser, error) {
	if id == "" {
		return AuthenticatedUser{}, errors.New("user ID cannot be empty")
	}
	if handle == "" {
		return AuthenticatedUser{}, errors.New("user handle cannot be empty")
	}
	if displayName == "" {
		displayName = handle
	}
	return AuthenticatedUser{
		ID:          id,
		Handle:      handle,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
	}, nil
}

type userContextKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, user AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user placed by the auth middleware.
func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	user, ok := ctx.Value(userContextKey{}).(AuthenticatedUser)
	return user, ok
}

// DisplayTimeLayout is the hour:minute form shown next to each message.
const DisplayTimeLayout = "15:04"

// FormatDisplayTime renders an instant for display in local time.
func FormatDisplayTime(t time.Time) string {
	return t.In(time.Local).Format(DisplayTimeLayout)
}
