package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`

	// Database Configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// MongoDB Configuration
	MongoDB MongoDBConfig `json:"mongodb" yaml:"mongodb"`

	// Auth Configuration
	Auth AuthConfig `json:"auth" yaml:"auth"`

	// Realtime feed Configuration
	Realtime RealtimeConfig `json:"realtime" yaml:"realtime"`

	// Client (chat-cli) Configuration
	Client ClientConfig `json:"client" yaml:"client"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host           string `json:"host" yaml:"host"`
	ChatHTTPPort   string `json:"chat_http_port" yaml:"chat_http_port"`
	ChatHealthPort string `json:"chat_health_port" yaml:"chat_health_port"`
	ReadTimeout    int    `json:"read_timeout" yaml:"read_timeout"`   // Seconds
	WriteTimeout   int    `json:"write_timeout" yaml:"write_timeout"` // Seconds
	Environment    string `json:"environment" yaml:"environment"`     // development, staging, production
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         string `json:"port" yaml:"port"`
	Username     string `json:"username" yaml:"username"`
	Password     string `json:"password" yaml:"password"`
	DatabaseName string `json:"database_name" yaml:"database_name"`
	MaxOpenConns int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns" yaml:"max_idle_conns"`
}

// MongoDBConfig contains MongoDB connection configuration
type MongoDBConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         string `json:"port" yaml:"port"`
	Username     string `json:"username" yaml:"username"`
	Password     string `json:"password" yaml:"password"`
	Database     string `json:"database" yaml:"database"`
	KVCollection string `json:"kv_collection" yaml:"kv_collection"`
	Enabled      bool   `json:"enabled" yaml:"enabled"`
}

// AuthConfig contains token signing configuration
type AuthConfig struct {
	JWTSecret     string `json:"-" yaml:"jwt_secret"`
	TokenTTLHours int    `json:"token_ttl_hours" yaml:"token_ttl_hours"`
	Issuer        string `json:"issuer" yaml:"issuer"`
}

// RealtimeConfig contains websocket fan-out configuration
type RealtimeConfig struct {
	Workers           int     `json:"workers" yaml:"workers"`                         // Fan-out worker goroutines
	ChannelBufferSize int     `json:"channel_buffer_size" yaml:"channel_buffer_size"` // Event channel buffer
	SendBufferSize    int     `json:"send_buffer_size" yaml:"send_buffer_size"`       // Per-subscriber buffer
	PingInterval      int     `json:"ping_interval" yaml:"ping_interval"`             // Seconds
	PongTimeout       int     `json:"pong_timeout" yaml:"pong_timeout"`               // Seconds
	ResyncPerSec      float64 `json:"resync_per_sec" yaml:"resync_per_sec"`           // 0 = unlimited
}

// ClientConfig contains chat-cli configuration
type ClientConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	StatePath      string `json:"state_path" yaml:"state_path"`
	RecentSearches int    `json:"recent_searches" yaml:"recent_searches"`
	RequestTimeout int    `json:"request_timeout" yaml:"request_timeout"` // Seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `json:"format" yaml:"format"`           // json, console
	OutputPath string `json:"output_path" yaml:"output_path"` // stdout, stderr, or file path
}

// LoadConfig reads .env (if present), the process environment and an optional
// YAML overlay named by CONFIG_FILE.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			ChatHTTPPort:   getEnv("CHAT_HTTP_PORT", "7003"),
			ChatHealthPort: getEnv("CHAT_HEALTH_PORT", "7013"),
			ReadTimeout:    getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			Environment:    getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("MYSQL_HOST", "localhost"),
			Port:         getEnv("MYSQL_PORT", "3306"),
			Username:     getEnv("MYSQL_USERNAME", "ecoshare"),
			Password:     getEnv("MYSQL_PASSWORD", "ecoshare123"),
			DatabaseName: getEnv("MYSQL_DATABASE", "ecoshare"),
			MaxOpenConns: getEnvAsInt("MYSQL_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("MYSQL_MAX_IDLE_CONNS", 5),
		},
		MongoDB: MongoDBConfig{
			Host:         getEnv("MONGO_HOST", "localhost"),
			Port:         getEnv("MONGO_PORT", "27017"),
			Username:     getEnv("MONGO_USERNAME", ""),
			Password:     getEnv("MONGO_PASSWORD", ""),
			Database:     getEnv("MONGO_DATABASE", "ecoshare"),
			KVCollection: getEnv("MONGO_KV_COLLECTION", "preferences"),
			Enabled:      getEnvAsBool("MONGO_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "ecoshare-dev-secret"),
			TokenTTLHours: getEnvAsInt("JWT_TTL_HOURS", 24),
			Issuer:        getEnv("JWT_ISSUER", "ecoshare"),
		},
		Realtime: RealtimeConfig{
			Workers:           getEnvAsInt("REALTIME_WORKERS", 4),
			ChannelBufferSize: getEnvAsInt("REALTIME_CHANNEL_BUFFER", 1000),
			SendBufferSize:    getEnvAsInt("REALTIME_SEND_BUFFER", 64),
			PingInterval:      getEnvAsInt("REALTIME_PING_INTERVAL", 10),
			PongTimeout:       getEnvAsInt("REALTIME_PONG_TIMEOUT", 15),
			ResyncPerSec:      getEnvAsFloat("REALTIME_RESYNC_PER_SEC", 1),
		},
		Client: ClientConfig{
			BaseURL:        getEnv("CHAT_BASE_URL", "http://localhost:7003"),
			StatePath:      getEnv("CHAT_STATE_PATH", defaultStatePath()),
			RecentSearches: getEnvAsInt("CHAT_RECENT_SEARCHES", 5),
			RequestTimeout: getEnvAsInt("CHAT_REQUEST_TIMEOUT", 10),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "console"),
			OutputPath: getEnv("LOG_OUTPUT", "stderr"),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			log.Printf("Ignoring config file %s: %v", path, err)
		}
	}

	return cfg
}

// ApplyFile overlays values present in a YAML file on top of cfg.
func (cfg *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func (cfg *Config) GetMongoURI() string {
	if cfg.MongoDB.Username != "" && cfg.MongoDB.Password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
			cfg.MongoDB.Username,
			cfg.MongoDB.Password,
			cfg.MongoDB.Host,
			cfg.MongoDB.Port,
			cfg.MongoDB.Database,
		)
	}
	return fmt.Sprintf("mongodb://%s:%s/%s", cfg.MongoDB.Host, cfg.MongoDB.Port, cfg.MongoDB.Database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ecoshare"
	}
	return home + string(os.PathSeparator) + ".ecoshare"
}
