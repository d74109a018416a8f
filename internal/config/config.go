// Package config loads runtime configuration with viper: defaults first, then
// an optional .env file, then LECTERN_-prefixed environment variables, then an
// optional YAML config file. The result is materialized into a typed Config
// that is validated before any component starts.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	LogMode   string
	Database  DatabaseConfig
	HTTP      HTTPConfig
	WebSocket WebSocketConfig
	Scheduler SchedulerConfig
	Collab    CollabConfig
}

type DatabaseConfig struct {
	Path    string
	Timeout time.Duration
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type WebSocketConfig struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

type SchedulerConfig struct {
	PollInterval time.Duration
}

// CollabConfig configures the external collaborator adapters. Empty values
// select the fake implementations, which keeps local development working
// without any cloud credentials.
type CollabConfig struct {
	SpeechProvider string // "gcp" or "fake"
	AnswerBaseURL  string // OpenAI-compatible endpoint; empty selects fake
	AnswerModel    string
	AnswerAPIKey   string
}

// Load reads configuration with precedence: file > env > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("log_mode", "dev")
	v.SetDefault("database.path", "./lectern.db")
	v.SetDefault("database.timeout", 30*time.Second)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("websocket.ping_interval", 30*time.Second)
	v.SetDefault("websocket.read_timeout", 60*time.Second)
	v.SetDefault("websocket.write_timeout", 10*time.Second)
	v.SetDefault("websocket.buffer_size", 100)
	v.SetDefault("scheduler.poll_interval", 15*time.Second)
	v.SetDefault("collab.speech_provider", "fake")
	v.SetDefault("collab.answer_base_url", "")
	v.SetDefault("collab.answer_model", "gpt-4o-mini")
	v.SetDefault("collab.answer_api_key", "")

	// Load .env if present; missing file is not an error.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v.SetEnvPrefix("LECTERN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("LECTERN_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		LogMode: v.GetString("log_mode"),
		Database: DatabaseConfig{
			Path:    v.GetString("database.path"),
			Timeout: v.GetDuration("database.timeout"),
		},
		HTTP: HTTPConfig{
			Host:         v.GetString("http.host"),
			Port:         v.GetInt("http.port"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
		},
		WebSocket: WebSocketConfig{
			PingInterval: v.GetDuration("websocket.ping_interval"),
			ReadTimeout:  v.GetDuration("websocket.read_timeout"),
			WriteTimeout: v.GetDuration("websocket.write_timeout"),
			BufferSize:   v.GetInt("websocket.buffer_size"),
		},
		Scheduler: SchedulerConfig{
			PollInterval: v.GetDuration("scheduler.poll_interval"),
		},
		Collab: CollabConfig{
			SpeechProvider: v.GetString("collab.speech_provider"),
			AnswerBaseURL:  v.GetString("collab.answer_base_url"),
			AnswerModel:    v.GetString("collab.answer_model"),
			AnswerAPIKey:   v.GetString("collab.answer_api_key"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket intervals must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler poll interval must be positive")
	}
	switch c.Collab.SpeechProvider {
	case "gcp", "fake":
	default:
		return fmt.Errorf("unknown speech provider %q", c.Collab.SpeechProvider)
	}
	return nil
}
