package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoshare/internal/common"
	"ecoshare/internal/kvstore"
)

func TestRecentSearches_Add(t *testing.T) {
	ctx := context.Background()
	recent := NewRecentSearches(kvstore.NewMemory(), 3)

	empty, err := recent.List(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	steps := []struct {
		term     string
		expected []string
	}{
		{"bike", []string{"bike"}},
		{"  lamp ", []string{"lamp", "bike"}},
		{"", []string{"lamp", "bike"}},
		{"BIKE", []string{"BIKE", "lamp"}},
		{"plants", []string{"plants", "BIKE", "lamp"}},
		{"desk", []string{"desk", "plants", "BIKE"}},
	}
	for _, step := range steps {
		got, err := recent.Add(ctx, "u-1", step.term)
		require.NoError(t, err)
		assert.Equal(t, step.expected, got, "after adding %q", step.term)
	}

	stored, err := recent.List(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"desk", "plants", "BIKE"}, stored)

	other, err := recent.List(ctx, "u-2")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, recent.Clear(ctx, "u-1"))
	stored, err = recent.List(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRecentSearches_CorruptValue(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	require.NoError(t, store.Set(ctx, "recent_searches:u-1", "not-json"))

	_, err := NewRecentSearches(store, 0).List(ctx, "u-1")
	assert.ErrorContains(t, err, "decode recent searches")
}

func TestWelcomeMessages(t *testing.T) {
	ctx := context.Background()
	welcome := NewWelcomeMessages(kvstore.NewMemory())

	shown, err := welcome.Shown(ctx, "u-1", "conv-1")
	require.NoError(t, err)
	assert.False(t, shown)

	require.NoError(t, welcome.MarkShown(ctx, "u-1", "conv-1"))

	shown, err = welcome.Shown(ctx, "u-1", "conv-1")
	require.NoError(t, err)
	assert.True(t, shown)

	shown, err = welcome.Shown(ctx, "u-1", "conv-2")
	require.NoError(t, err)
	assert.False(t, shown)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionStore(kvstore.NewMemory())

	_, err := sessions.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	want := Session{
		Token: "jwt",
		User:  common.AuthenticatedUser{ID: "u-1", Handle: "alice", DisplayName: "Alice"},
	}
	require.NoError(t, sessions.Save(ctx, want))

	got, err := sessions.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, sessions.Clear(ctx))
	_, err = sessions.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}
