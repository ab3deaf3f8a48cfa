// Package config handles loading and validating the voicerelay configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSystemPrompt is the instruction sent ahead of every user message.
const DefaultSystemPrompt = "You are a friendly, concise voice assistant.\n" +
	"Answer naturally and briefly like a real human."

// Config is the root configuration for the voicerelay daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Chat       ChatConfig       `mapstructure:"chat"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each inbound transport.
type TransportsConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

// HTTPConfig configures the HTTP/SSE/WebSocket transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// OpenAIConfig holds the credential and connection settings shared by the
// OpenAI chat and speech backends.
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`        // empty = api.openai.com
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // 0 = no timeout
}

// ChatConfig selects and configures the chat completion backend.
type ChatConfig struct {
	Backend      string       `mapstructure:"backend"` // "openai" or "ollama"
	Model        string       `mapstructure:"model"`
	SystemPrompt string       `mapstructure:"system_prompt"`
	Ollama       OllamaConfig `mapstructure:"ollama"`
}

// OllamaConfig holds settings for a self-hosted Ollama server.
type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"` // e.g. http://localhost:11434/api/chat
	Model    string `mapstructure:"model"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Backend string          `mapstructure:"backend"` // "openai" or "piper"
	OpenAI  OpenAITTSConfig `mapstructure:"openai"`
	Piper   PiperConfig     `mapstructure:"piper"`
}

// OpenAITTSConfig holds the speech model and voice for the OpenAI backend.
type OpenAITTSConfig struct {
	Model string `mapstructure:"model"`
	Voice string `mapstructure:"voice"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
type PiperConfig struct {
	Endpoint string `mapstructure:"endpoint"` // host:port of the Wyoming server
	Voice    string `mapstructure:"voice"`
}

// RelayConfig tunes sentence segmentation and synthesis scheduling.
type RelayConfig struct {
	MinSentenceLength int    `mapstructure:"min_sentence_length"`
	Terminators       string `mapstructure:"terminators"`
	Pipeline          bool   `mapstructure:"pipeline"`
	QueueSize         int    `mapstructure:"queue_size"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from an optional .env file, a config file,
// environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./voicerelay.yaml, ./configs/voicerelay.yaml, /etc/voicerelay/voicerelay.yaml.
func Load(configFile string) (*Config, error) {
	// A missing .env is the normal case in containers.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("voicerelay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/voicerelay")
	}

	// Environment variables: VOICERELAY_CHAT_BACKEND, VOICERELAY_TTS_OPENAI_VOICE, etc.
	v.SetEnvPrefix("VOICERELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.OpenAI.APIKey = resolveEnvRef(cfg.OpenAI.APIKey)
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.request_timeout", 0)
	v.SetDefault("chat.backend", "openai")
	v.SetDefault("chat.model", "gpt-4o-mini")
	v.SetDefault("chat.system_prompt", DefaultSystemPrompt)
	v.SetDefault("chat.ollama.endpoint", "http://localhost:11434/api/chat")
	v.SetDefault("chat.ollama.model", "llama3")
	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.backend", "openai")
	v.SetDefault("tts.openai.model", "tts-1")
	v.SetDefault("tts.openai.voice", "alloy")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.piper.voice", "en_US-lessac-medium")
	v.SetDefault("relay.min_sentence_length", 3)
	v.SetDefault("relay.terminators", ".!?\n")
	v.SetDefault("relay.pipeline", false)
	v.SetDefault("relay.queue_size", 8)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate reports the first configuration problem that would prevent the
// daemon from serving requests.
func (c *Config) Validate() error {
	switch c.Chat.Backend {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown chat backend %q", c.Chat.Backend)
	}
	if c.TTS.Enabled {
		switch c.TTS.Backend {
		case "openai", "piper":
		default:
			return fmt.Errorf("unknown tts backend %q", c.TTS.Backend)
		}
	}
	if c.UsesOpenAI() && c.OpenAI.APIKey == "" {
		return errors.New("openai api key is required (set OPENAI_API_KEY)")
	}
	if !c.Transports.HTTP.Enabled && !c.Transports.GRPC.Enabled {
		return errors.New("no transports enabled")
	}
	if c.Relay.MinSentenceLength < 0 {
		return fmt.Errorf("relay.min_sentence_length must be >= 0, got %d", c.Relay.MinSentenceLength)
	}
	if c.Relay.Terminators == "" {
		return errors.New("relay.terminators must not be empty")
	}
	return nil
}

// UsesOpenAI reports whether any configured backend talks to the OpenAI API.
func (c *Config) UsesOpenAI() bool {
	return c.Chat.Backend == "openai" || (c.TTS.Enabled && c.TTS.Backend == "openai")
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// An unset variable resolves to the empty string.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	slog.SetDefault(slog.New(NewLogHandler(os.Stdout, cfg)))
}
