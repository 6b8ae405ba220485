package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "WIRECHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	defaults := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, defaults)

	v.SetEnvPrefix("WIRECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, defaults); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return defaults, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	// Decode into a zero value: mapstructure merges slices element-wise, so
	// decoding over the defaults would leak default room seeds.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch c.Broker {
	case BrokerMemory, BrokerRedis:
	default:
		return fmt.Errorf("unknown broker %q", c.Broker)
	}
	if c.Broker == BrokerRedis && c.RedisAddr == "" {
		return errors.New("redis broker requires redis_addr")
	}
	if c.MaxMessageBytes <= 0 {
		return errors.New("max_message_bytes must be positive")
	}
	if c.MaxHistoryLimit <= 0 {
		return errors.New("max_history_limit must be positive")
	}
	return nil
}

// setDefaults registers every key so env vars bind even when the file omits
// them.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("jwt_secret", cfg.JWTSecret)
	v.SetDefault("jwt_issuer", cfg.JWTIssuer)
	v.SetDefault("jwt_audience", cfg.JWTAudience)
	v.SetDefault("token_ttl", cfg.TokenTTL)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("max_history_limit", cfg.MaxHistoryLimit)
	v.SetDefault("messages_per_minute", cfg.MessagesPerMinute)
	v.SetDefault("typing_per_minute", cfg.TypingPerMinute)
	v.SetDefault("broker", cfg.Broker)
	v.SetDefault("redis_addr", cfg.RedisAddr)
	v.SetDefault("redis_channel", cfg.RedisChannel)
	v.SetDefault("rooms", cfg.Rooms)

	v.SetDefault("client.server_url", cfg.Client.ServerURL)
	v.SetDefault("client.log_file", cfg.Client.LogFile)
	v.SetDefault("client.history_limit", cfg.Client.HistoryLimit)
	v.SetDefault("client.typing_ttl", cfg.Client.TypingTTL)
	v.SetDefault("client.typing_throttle", cfg.Client.TypingThrottle)
	v.SetDefault("client.fetch_timeout", cfg.Client.FetchTimeout)
	v.SetDefault("client.lookup_timeout", cfg.Client.LookupTimeout)
	v.SetDefault("client.send_timeout", cfg.Client.SendTimeout)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
