package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "RELAY_CONFIG"

// Load builds the configuration in layers:
//  1. Built-in defaults
//  2. YAML file (explicit path, RELAY_CONFIG, ./relay.yaml)
//  3. Environment overrides
//  4. API key: inline, then api_key_file, then OPENAI_API_KEY
//  5. Provider-dependent base URL and model defaults
//  6. Validation
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if file := discoverConfigFile(path); file != "" {
		if err := loadYAMLFile(file, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", file, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveSecretFile(&cfg); err != nil {
		return nil, err
	}
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = defaultBaseURL(cfg.Provider.Kind)
	}
	applyModelDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func discoverConfigFile(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	if _, err := os.Stat("relay.yaml"); err == nil {
		return "relay.yaml"
	}
	return ""
}

// loadYAMLFile decodes path over cfg. Fields missing from the file keep
// their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RELAY_PUBLIC_DIR"); v != "" {
		cfg.Server.PublicDir = v
	}
	if v := os.Getenv("RELAY_BROADCAST"); v != "" {
		cfg.Server.Broadcast = strings.ToLower(v)
	}
	if v := os.Getenv("RELAY_PROVIDER"); v != "" {
		cfg.Provider.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("RELAY_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	} else if v := os.Getenv("OLLAMA_HOST"); v != "" && cfg.Provider.Kind == ProviderOllama && cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = normalizeOllamaHost(v)
	}
	if v := os.Getenv("RELAY_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Provider.RequestTimeout = d
		}
	}
	if v := os.Getenv("RELAY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// resolveSecretFile reads provider.api_key_file when no key is set inline.
// A missing file leaves the key empty so OPENAI_API_KEY can still supply it.
func resolveSecretFile(cfg *Config) error {
	if cfg.Provider.APIKeyFile == "" || cfg.Provider.APIKey != "" {
		return nil
	}
	val, err := readSecretFile(cfg.Provider.APIKeyFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("provider.api_key_file: %w", err)
	}
	cfg.Provider.APIKey = val
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func defaultBaseURL(kind string) string {
	if kind == ProviderOpenAI {
		return DefaultOpenAIURL
	}
	return DefaultOllamaURL
}

// applyModelDefaults fills empty model identifiers with the ones the selected
// provider actually serves.
func applyModelDefaults(cfg *Config) {
	def := ModelsConfig{
		Generate: DefaultGenerateModel,
		Chat:     DefaultChatModel,
		Vision:   DefaultVisionModel,
	}
	if cfg.Provider.Kind == ProviderOpenAI {
		def = ModelsConfig{
			Generate: DefaultHostedGenerateModel,
			Chat:     DefaultHostedChatModel,
			Vision:   DefaultHostedVisionModel,
		}
	}

	if cfg.Models.Generate == "" {
		cfg.Models.Generate = def.Generate
	}
	if cfg.Models.Chat == "" {
		cfg.Models.Chat = def.Chat
	}
	if cfg.Models.Vision == "" {
		cfg.Models.Vision = def.Vision
	}
}

// normalizeOllamaHost accepts OLLAMA_HOST values such as "0.0.0.0:11434" or
// "http://gpu-box:11434" and returns a base URL.
func normalizeOllamaHost(host string) string {
	host = strings.TrimSuffix(strings.TrimSpace(host), "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}
