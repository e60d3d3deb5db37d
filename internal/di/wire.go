//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	chathandler "ecoshare/internal/chat/handler"
	"ecoshare/internal/chat/repository"
	"ecoshare/internal/chat/service"
	"ecoshare/internal/common"
	"ecoshare/internal/config"
	"ecoshare/internal/metrics"
	"ecoshare/internal/prefs"
	"ecoshare/internal/realtime"
	"ecoshare/internal/user"
)

// InitializeChatServer builds chat-svc from its configuration.
func InitializeChatServer(cfg *config.Config) (*ChatServer, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideDatabase,
		ProvideRealtimeConfig,
		ProvideHub,
		ProvideTokenManager,
		ProvidePrefsStore,
		ProvideRecentSearches,
		metrics.NewChatMetrics,

		wire.Bind(new(service.Publisher), new(*realtime.Hub)),
		wire.Bind(new(user.TokenIssuer), new(*common.TokenManager)),
		wire.Bind(new(user.Authenticator), new(*common.TokenManager)),
		wire.Bind(new(realtime.Authenticator), new(*common.TokenManager)),

		user.NewUserRepository,
		user.NewUserService,
		user.NewHandler,
		repository.NewChatRepository,
		service.NewChatService,
		chathandler.NewChatHandler,
		prefs.NewWelcomeMessages,
		prefs.NewHandler,
		realtime.NewWSHandler,
		NewRouter,

		wire.Struct(new(ChatServer), "*"),
	)
	return nil, nil, nil
}
