// Package config loads llm-relay configuration from YAML, environment
// variables and secret files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/llm-relay/pkg/protocol"
)

// Provider kinds.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Broadcast modes.
const (
	BroadcastAll    = "all"
	BroadcastOrigin = "origin"
)

// Default configuration values.
const (
	DefaultPort            = 3000
	DefaultPublicDir       = "public"
	DefaultMaxMessageBytes = 16 << 20 // base64 images are large
	DefaultOllamaURL       = "http://localhost:11434"
	DefaultOpenAIURL       = "https://api.openai.com/v1"
	DefaultRequestTimeout  = 2 * time.Minute
	DefaultProbeTimeout    = 5 * time.Second
	DefaultHostedMaxTokens = 256
	DefaultImageMaxTokens  = 1000

	DefaultGenerateModel = "llama3.2:1b"
	DefaultChatModel     = "llama3.2:1b"
	DefaultVisionModel   = "gemma3:4b"

	DefaultHostedGenerateModel = "gpt-3.5-turbo-instruct"
	DefaultHostedChatModel     = "gpt-4o-mini"
	DefaultHostedVisionModel   = "gpt-4o-mini"
)

// ErrMissingCredential is returned when the hosted provider is selected but no
// API key could be found in the config, a secret file, or the environment.
var ErrMissingCredential = errors.New("config: hosted provider requires an API key (provider.api_key, provider.api_key_file or OPENAI_API_KEY)")

// Config is the full relay configuration.
type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Provider ProviderConfig    `yaml:"provider"`
	Models   ModelsConfig      `yaml:"models"`
	Defaults protocol.Defaults `yaml:"defaults"`
	Log      LogConfig         `yaml:"log"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Port            int    `yaml:"port"`
	PublicDir       string `yaml:"public_dir"`
	MaxMessageBytes int64  `yaml:"max_message_bytes"`

	// Broadcast is "all" (every session sees every response) or "origin"
	// (responses go back to the requesting session only).
	Broadcast string `yaml:"broadcast"`
}

// ProviderConfig selects and configures the model backend.
type ProviderConfig struct {
	Kind       string `yaml:"kind"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`

	// HostedMaxTokens replaces a non-positive max_tokens for the hosted
	// provider, which has no "unlimited" sentinel.
	HostedMaxTokens int `yaml:"hosted_max_tokens"`

	// ImageMaxTokens caps image chat responses.
	ImageMaxTokens int `yaml:"image_max_tokens"`
}

// ModelsConfig holds the model identifiers for each request kind. Empty
// fields are filled from the provider's defaults on Load.
type ModelsConfig struct {
	Generate string `yaml:"generate"`
	Chat     string `yaml:"chat"`
	Vision   string `yaml:"vision"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			PublicDir:       DefaultPublicDir,
			MaxMessageBytes: DefaultMaxMessageBytes,
			Broadcast:       BroadcastAll,
		},
		Provider: ProviderConfig{
			Kind:            ProviderOllama,
			RequestTimeout:  DefaultRequestTimeout,
			ProbeTimeout:    DefaultProbeTimeout,
			HostedMaxTokens: DefaultHostedMaxTokens,
			ImageMaxTokens:  DefaultImageMaxTokens,
		},
		Defaults: protocol.StandardDefaults(),
		Log:      LogConfig{Level: "info"},
	}
}

// Validate checks the configuration. A missing hosted credential is reported
// as ErrMissingCredential so callers can exit with a distinct status.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.MaxMessageBytes <= 0 {
		return fmt.Errorf("server.max_message_bytes must be positive, got %d", c.Server.MaxMessageBytes)
	}

	switch c.Server.Broadcast {
	case BroadcastAll, BroadcastOrigin:
	default:
		return fmt.Errorf("server.broadcast must be %q or %q, got %q", BroadcastAll, BroadcastOrigin, c.Server.Broadcast)
	}

	switch c.Provider.Kind {
	case ProviderOllama:
	case ProviderOpenAI:
		if strings.TrimSpace(c.Provider.APIKey) == "" {
			return ErrMissingCredential
		}
	default:
		return fmt.Errorf("provider.kind must be %q or %q, got %q", ProviderOllama, ProviderOpenAI, c.Provider.Kind)
	}

	if strings.TrimSpace(c.Provider.BaseURL) == "" {
		return errors.New("provider.base_url must not be empty")
	}
	if c.Provider.RequestTimeout <= 0 {
		return fmt.Errorf("provider.request_timeout must be positive, got %s", c.Provider.RequestTimeout)
	}
	if c.Provider.HostedMaxTokens <= 0 {
		return fmt.Errorf("provider.hosted_max_tokens must be positive, got %d", c.Provider.HostedMaxTokens)
	}

	models := map[string]string{
		"models.generate": c.Models.Generate,
		"models.chat":     c.Models.Chat,
		"models.vision":   c.Models.Vision,
	}
	for field, id := range models {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%s must not be empty", field)
		}
	}

	return nil
}
