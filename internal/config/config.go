package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultRedisAddr       = "127.0.0.1:6379"
	DefaultWahaSession     = "default"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultJWTExpiresIn    = "24h"
	DefaultDebounceWindow  = "10s"
	DefaultBufferTTL       = "5m"
	DefaultClaimTTL        = "30s"
	DefaultSweepInterval   = "1m"
	DefaultHistoryTTL      = "168h" // 7 days
	DefaultHistoryMax      = 100
	DefaultContextLimit    = 20
	DefaultRequestTimeout  = "30s"
	DefaultBufferKeySuffix = ":buffer"
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Admin   AdminConfig   `toml:"admin"`
	Auth    AuthConfig    `toml:"auth"`
	Redis   RedisConfig   `toml:"redis"`
	Buffer  BufferConfig  `toml:"buffer"`
	History HistoryConfig `toml:"history"`
	Waha    WahaConfig    `toml:"waha"`
	OpenAI  OpenAIConfig  `toml:"openai"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AdminConfig struct {
	Username string `toml:"username" validate:"required"`
	Password string `toml:"password" validate:"required"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret" validate:"required"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type RedisConfig struct {
	Addr     string `toml:"addr" validate:"required"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type BufferConfig struct {
	DebounceWindow string `toml:"debounce_window"`
	TTL            string `toml:"ttl"`
	ClaimTTL       string `toml:"claim_ttl"`
	SweepInterval  string `toml:"sweep_interval"`
	KeySuffix      string `toml:"key_suffix"`
}

type HistoryConfig struct {
	MaxMessages  int    `toml:"max_messages" validate:"gt=0"`
	TTL          string `toml:"ttl"`
	Mode         string `toml:"mode" validate:"oneof=store gateway"`
	ContextLimit int    `toml:"context_limit" validate:"gte=0"`
}

type WahaConfig struct {
	BaseURL string `toml:"base_url" validate:"required,url"`
	Session string `toml:"session" validate:"required"`
	Timeout string `toml:"timeout"`
}

type OpenAIConfig struct {
	APIKey      string  `toml:"api_key" validate:"required"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `toml:"max_tokens" validate:"gte=0"`
	Timeout     string  `toml:"timeout"`
}

// History modes. In store mode the responder context comes from the Redis
// history log; in gateway mode it is fetched from WAHA's recent messages.
const (
	HistoryModeStore   = "store"
	HistoryModeGateway = "gateway"
)

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Buffer: BufferConfig{
			DebounceWindow: DefaultDebounceWindow,
			TTL:            DefaultBufferTTL,
			ClaimTTL:       DefaultClaimTTL,
			SweepInterval:  DefaultSweepInterval,
			KeySuffix:      DefaultBufferKeySuffix,
		},
		History: HistoryConfig{
			MaxMessages:  DefaultHistoryMax,
			TTL:          DefaultHistoryTTL,
			Mode:         HistoryModeStore,
			ContextLimit: DefaultContextLimit,
		},
		Waha: WahaConfig{
			Session: DefaultWahaSession,
			Timeout: DefaultRequestTimeout,
		},
		OpenAI: OpenAIConfig{
			Model:       DefaultOpenAIModel,
			Temperature: 0.7,
			Timeout:     DefaultRequestTimeout,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	} else if path != DefaultConfigPath {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast on missing credentials/endpoints and nonsensical
// durations so the process refuses to start misconfigured.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, raw := range map[string]string{
		"auth.jwt_expires_in":    c.Auth.JWTExpiresIn,
		"buffer.debounce_window": c.Buffer.DebounceWindow,
		"buffer.ttl":             c.Buffer.TTL,
		"buffer.claim_ttl":       c.Buffer.ClaimTTL,
		"buffer.sweep_interval":  c.Buffer.SweepInterval,
		"history.ttl":            c.History.TTL,
		"waha.timeout":           c.Waha.Timeout,
		"openai.timeout":         c.OpenAI.Timeout,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid config: %s must be positive, got %s", name, raw)
		}
	}
	return nil
}

// Duration parses a config duration already checked by Validate.
func Duration(raw string) time.Duration {
	d, _ := time.ParseDuration(raw)
	return d
}
