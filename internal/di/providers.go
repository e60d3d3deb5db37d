package di

import (
	"context"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ecoshare/internal/common"
	"ecoshare/internal/config"
	"ecoshare/internal/dbmongo"
	"ecoshare/internal/dbmysql"
	"ecoshare/internal/kvstore"
	"ecoshare/internal/metrics"
	"ecoshare/internal/prefs"
	"ecoshare/internal/realtime"
)

// ChatServer is everything cmd/chat-svc needs to serve.
type ChatServer struct {
	Config  *config.Config
	Log     *zap.Logger
	DB      *gorm.DB
	Metrics *metrics.ChatMetrics
	Hub     *realtime.Hub
	Router  *mux.Router
}

func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	log, err := common.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return log, func() { _ = log.Sync() }, nil
}

// ProvideDatabase connects to MySQL and migrates the messaging tables.
func ProvideDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	db, err := dbmysql.NewMySQL(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := dbmysql.Migrate(db); err != nil {
		return nil, nil, err
	}
	log.Info("database_migrated")

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

func ProvideRealtimeConfig(cfg *config.Config) config.RealtimeConfig {
	return cfg.Realtime
}

func ProvideHub(cfg config.RealtimeConfig, log *zap.Logger, m *metrics.ChatMetrics) (*realtime.Hub, func()) {
	hub := realtime.NewHub(cfg, log, m)
	return hub, hub.Shutdown
}

func ProvideTokenManager(cfg *config.Config) *common.TokenManager {
	ttl := time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
	return common.NewTokenManager(cfg.Auth.JWTSecret, ttl, cfg.Auth.Issuer)
}

// ProvidePrefsStore backs server-side preferences with MongoDB when enabled
// and with process memory otherwise.
func ProvidePrefsStore(cfg *config.Config, log *zap.Logger) (kvstore.Store, func(), error) {
	if !cfg.MongoDB.Enabled {
		log.Info("prefs_store", zap.String("backend", "memory"))
		return kvstore.NewMemory(), func() {}, nil
	}

	mc, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info("prefs_store",
		zap.String("backend", "mongodb"),
		zap.String("collection", cfg.MongoDB.KVCollection))

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mc.Close(ctx); err != nil {
			log.Warn("mongodb_close_failed", zap.Error(err))
		}
	}
	return dbmongo.NewKVStoreFromClient(mc, cfg.MongoDB.KVCollection), cleanup, nil
}

func ProvideRecentSearches(store kvstore.Store, cfg *config.Config) *prefs.RecentSearches {
	return prefs.NewRecentSearches(store, cfg.Client.RecentSearches)
}
