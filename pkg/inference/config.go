package inference

import (
	"log/slog"
	"net/http"

	"github.com/teslashibe/llm-relay/internal/httpc"
)

// Config holds provider configuration.
type Config struct {
	// Connection
	BaseURL string // API base URL
	APIKey  string // API key (required for hosted providers)

	// Models per request kind
	Models Models

	// HostedMaxTokens replaces max_tokens <= 0 on providers without an
	// unlimited sentinel.
	HostedMaxTokens int

	// ImageMaxTokens caps image chat responses.
	ImageMaxTokens int

	// HTTPClient carries the provider calls. Each call is bounded by its
	// request context, so the client itself has no overall timeout.
	HTTPClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
// Examples: "http://localhost:11434", "https://api.openai.com/v1"
// An empty url keeps the provider default.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		if url != "" {
			c.BaseURL = url
		}
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModels sets the generate, chat and vision models.
// Empty fields keep their current values.
func WithModels(m Models) Option {
	return func(c *Config) {
		if m.Generate != "" {
			c.Models.Generate = m.Generate
		}
		if m.Chat != "" {
			c.Models.Chat = m.Chat
		}
		if m.Vision != "" {
			c.Models.Vision = m.Vision
		}
	}
}

// WithHostedMaxTokens sets the max_tokens fallback for hosted providers.
func WithHostedMaxTokens(n int) Option {
	return func(c *Config) { c.HostedMaxTokens = n }
}

// WithImageMaxTokens sets the response cap for image chat.
func WithImageMaxTokens(n int) Option {
	return func(c *Config) { c.ImageMaxTokens = n }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// LocalModels returns the default Ollama model tags.
func LocalModels() Models {
	return Models{
		Generate: "llama3.2:1b",
		Chat:     "llama3.2:1b",
		Vision:   "gemma3:4b",
	}
}

// HostedModels returns the default OpenAI model identifiers. Generation uses
// the instruct model served by the legacy /completions endpoint.
func HostedModels() Models {
	return Models{
		Generate: "gpt-3.5-turbo-instruct",
		Chat:     "gpt-4o-mini",
		Vision:   "gpt-4o-mini",
	}
}

// DefaultConfig returns defaults matching a stock local Ollama install.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "http://localhost:11434",
		Models:          LocalModels(),
		HostedMaxTokens: 256,
		ImageMaxTokens:  1000,
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Models.Generate == "" || c.Models.Chat == "" || c.Models.Vision == "" {
		return ErrNoModel
	}
	return nil
}

func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return httpc.NewClient(0)
}
