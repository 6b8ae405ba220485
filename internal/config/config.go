package config

import "time"

// Broker kinds.
const (
	BrokerMemory = "memory"
	BrokerRedis  = "redis"
)

// RoomSeed is a room created on startup when missing.
type RoomSeed struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Description string `mapstructure:"description" yaml:"description"`
}

// ClientConfig holds terminal client settings.
type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url" yaml:"server_url"`
	LogFile        string        `mapstructure:"log_file" yaml:"log_file"`
	HistoryLimit   int           `mapstructure:"history_limit" yaml:"history_limit"`
	TypingTTL      time.Duration `mapstructure:"typing_ttl" yaml:"typing_ttl"`
	TypingThrottle time.Duration `mapstructure:"typing_throttle" yaml:"typing_throttle"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	LookupTimeout  time.Duration `mapstructure:"lookup_timeout" yaml:"lookup_timeout"`
	SendTimeout    time.Duration `mapstructure:"send_timeout" yaml:"send_timeout"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	MaxMessageBytes   int `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxHistoryLimit   int `mapstructure:"max_history_limit" yaml:"max_history_limit"`
	MessagesPerMinute int `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	TypingPerMinute   int `mapstructure:"typing_per_minute" yaml:"typing_per_minute"`

	Broker       string `mapstructure:"broker" yaml:"broker"`
	RedisAddr    string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel" yaml:"redis_channel"`

	Rooms  []RoomSeed   `mapstructure:"rooms" yaml:"rooms"`
	Client ClientConfig `mapstructure:"client" yaml:"client"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "wirechat.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "wirechat",
		JWTAudience:       "wirechat-clients",
		TokenTTL:          24 * time.Hour,
		MaxMessageBytes:   4096,
		MaxHistoryLimit:   100,
		MessagesPerMinute: 60,
		TypingPerMinute:   120,
		Broker:            BrokerMemory,
		RedisAddr:         "localhost:6379",
		RedisChannel:      "wirechat:events",
		Rooms: []RoomSeed{
			{Name: "general", Description: "Everything and nothing"},
			{Name: "random", Description: "Off-topic"},
		},
		Client: ClientConfig{
			ServerURL:      "http://localhost:8080",
			LogFile:        "wirechat-client.log",
			HistoryLimit:   100,
			TypingTTL:      3 * time.Second,
			TypingThrottle: time.Second,
			FetchTimeout:   10 * time.Second,
			LookupTimeout:  2 * time.Second,
			SendTimeout:    10 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.Broker != "" {
		c.Broker = other.Broker
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
	if other.Client.ServerURL != "" {
		c.Client.ServerURL = other.Client.ServerURL
	}
	if other.Client.LogFile != "" {
		c.Client.LogFile = other.Client.LogFile
	}
}
