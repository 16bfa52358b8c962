package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the aura farm bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Bot    BotConfig    `mapstructure:"bot" validate:"required"`
	Game   GameConfig   `mapstructure:"game" validate:"required"`
	Farm   FarmConfig   `mapstructure:"farm"`
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db" validate:"required"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
	Sentry SentryConfig `mapstructure:"sentry"`
}

// BotConfig configures the operator-facing control bot.
type BotConfig struct {
	Token      string        `mapstructure:"token" validate:"required"`
	OwnerID    int64         `mapstructure:"owner_id" validate:"required"`
	Mode       string        `mapstructure:"mode"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

// GameConfig identifies the game bot and the MTProto application credentials
// used for per-user sessions.
type GameConfig struct {
	BotID       int64  `mapstructure:"bot_id" validate:"required"`
	BotUsername string `mapstructure:"bot_username" validate:"required"`
	APIID       int    `mapstructure:"api_id" validate:"required"`
	APIHash     string `mapstructure:"api_hash" validate:"required"`
}

// FarmConfig carries farming pacing knobs and default trade limits.
// Jitter bounds and the explore cooldown may be hot-reloaded.
type FarmConfig struct {
	PearlLimit      int           `mapstructure:"pearl_limit"`
	TicketLimit     int           `mapstructure:"ticket_limit"`
	JitterMin       time.Duration `mapstructure:"jitter_min"`
	JitterMax       time.Duration `mapstructure:"jitter_max"`
	ExploreCooldown time.Duration `mapstructure:"explore_cooldown"`
	AckTimeout      time.Duration `mapstructure:"ack_timeout"`
}

// ServerConfig configures the keep-alive HTTP server.
type ServerConfig struct {
	Port             string        `mapstructure:"port"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	PublicURL        string        `mapstructure:"public_url"`
	SelfPingInterval time.Duration `mapstructure:"self_ping_interval"`
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig controls log level and optional file rotation.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig enables error reporting to Sentry.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// DSN returns the PostgreSQL connection string based on config values.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Timeout == 0 {
		cfg.Bot.Timeout = 10 * time.Second
	}
	if cfg.Bot.RateLimit == 0 {
		cfg.Bot.RateLimit = 20
	}
	if cfg.Bot.RateWindow == 0 {
		cfg.Bot.RateWindow = 10 * time.Second
	}
	if cfg.Farm.PearlLimit == 0 {
		cfg.Farm.PearlLimit = 250
	}
	if cfg.Farm.TicketLimit == 0 {
		cfg.Farm.TicketLimit = 500
	}
	if cfg.Farm.JitterMin == 0 {
		cfg.Farm.JitterMin = 200 * time.Millisecond
	}
	if cfg.Farm.JitterMax == 0 {
		cfg.Farm.JitterMax = 350 * time.Millisecond
	}
	if cfg.Farm.ExploreCooldown == 0 {
		cfg.Farm.ExploreCooldown = time.Second
	}
	if cfg.Farm.AckTimeout == 0 {
		cfg.Farm.AckTimeout = 5 * time.Second
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.SelfPingInterval == 0 {
		cfg.Server.SelfPingInterval = 3 * time.Minute
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == "" {
		cfg.DB.Port = "5432"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
