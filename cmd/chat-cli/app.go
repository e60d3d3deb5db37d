package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ecoshare/internal/chat/coordinator"
	"ecoshare/internal/client"
	"ecoshare/internal/common"
	"ecoshare/internal/config"
	"ecoshare/internal/kvstore"
	"ecoshare/internal/prefs"
)

// app holds what every command needs: config, local state and the gateway.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *kvstore.Pebble
	sessions *prefs.SessionStore
	searches *prefs.RecentSearches
	welcome  *prefs.WelcomeMessages
	gateway  *client.Gateway
	out      io.Writer
}

func newApp(cfg *config.Config, out io.Writer) (*app, error) {
	log, err := common.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, err := kvstore.OpenPebble(cfg.Client.StatePath, log)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	timeout := time.Duration(cfg.Client.RequestTimeout) * time.Second
	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		sessions: prefs.NewSessionStore(store),
		searches: prefs.NewRecentSearches(store, cfg.Client.RecentSearches),
		welcome:  prefs.NewWelcomeMessages(store),
		gateway:  client.NewGateway(cfg.Client.BaseURL, timeout, log),
		out:      out,
	}, nil
}

// withApp wraps a command body with app setup and teardown.
func withApp(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(config.LoadConfig(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, cmd, args)
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("close_local_state_failed", zap.Error(err))
	}
	_ = a.log.Sync()
}

// session restores the saved login and arms the gateway with its token.
func (a *app) session(ctx context.Context) (common.AuthenticatedUser, error) {
	sess, err := a.sessions.Load(ctx)
	if errors.Is(err, prefs.ErrNoSession) {
		return common.AuthenticatedUser{}, errors.New("not logged in, run `chat-cli login` first")
	}
	if err != nil {
		return common.AuthenticatedUser{}, err
	}
	a.gateway.SetToken(sess.Token)
	return sess.User, nil
}

func (a *app) saveSession(ctx context.Context, token string, user common.AuthenticatedUser) error {
	return a.sessions.Save(ctx, prefs.Session{Token: token, User: user})
}

func (a *app) newCoordinator(user common.AuthenticatedUser, opts ...coordinator.Option) (*coordinator.Coordinator, error) {
	feed, err := client.NewFeed(a.cfg.Client.BaseURL, a.gateway, a.log)
	if err != nil {
		return nil, err
	}

	opts = append([]coordinator.Option{coordinator.WithLogger(a.log)}, opts...)
	if perSec := a.cfg.Realtime.ResyncPerSec; perSec > 0 {
		opts = append(opts, coordinator.WithResyncLimiter(rate.NewLimiter(rate.Limit(perSec), 1)))
	}
	return coordinator.New(a.gateway, feed, user, opts...), nil
}

// resolveConversation matches an id exactly or a participant name ignoring case.
func resolveConversation(convs []coordinator.Conversation, ref string) (coordinator.Conversation, error) {
	for _, c := range convs {
		if c.ID == ref {
			return c, nil
		}
	}
	var matches []coordinator.Conversation
	for _, c := range convs {
		if strings.EqualFold(c.Participant.DisplayName, ref) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return coordinator.Conversation{}, fmt.Errorf("no conversation matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return coordinator.Conversation{}, fmt.Errorf("%q matches %d conversations, use the id", ref, len(matches))
	}
}
