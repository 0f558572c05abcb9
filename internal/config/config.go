package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads.
type Config struct {
	Server      ServerConfig
	OpenAI      OpenAIConfig
	Auth        AuthConfig
	Store       StoreConfig
	Environment string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	openAI, err := loadOpenAIConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:      server,
		OpenAI:      openAI,
		Auth:        auth,
		Store:       store,
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// OpenAIConfig describes the assistant collaborator and the turn poll budget.
type OpenAIConfig struct {
	APIKey       string
	AssistantID  string
	PollInterval time.Duration
	PollAttempts int
}

// Enabled reports whether the required assistant credentials are present.
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != "" && c.AssistantID != ""
}

func loadOpenAIConfig() (OpenAIConfig, error) {
	intervalMS := 2000
	if override, err := parseOptionalIntEnv("CHAT_POLL_INTERVAL_MS"); err != nil {
		return OpenAIConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return OpenAIConfig{}, fmt.Errorf("CHAT_POLL_INTERVAL_MS must be positive")
		}
		intervalMS = *override
	}

	attempts := 35
	if override, err := parseOptionalIntEnv("CHAT_POLL_ATTEMPTS"); err != nil {
		return OpenAIConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return OpenAIConfig{}, fmt.Errorf("CHAT_POLL_ATTEMPTS must be positive")
		}
		attempts = *override
	}

	return OpenAIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		AssistantID:  strings.TrimSpace(os.Getenv("OPENAI_ASSISTANT_ID")),
		PollInterval: time.Duration(intervalMS) * time.Millisecond,
		PollAttempts: attempts,
	}, nil
}

// AuthConfig describes the external auth collaborator.
type AuthConfig struct {
	BaseURL    string
	ServiceKey string
}

// Enabled reports whether identity verification can run.
func (c AuthConfig) Enabled() bool {
	return c.BaseURL != ""
}

func loadAuthConfig() (AuthConfig, error) {
	return AuthConfig{
		BaseURL:    strings.TrimSpace(os.Getenv("AUTH_BASE_URL")),
		ServiceKey: strings.TrimSpace(os.Getenv("AUTH_SERVICE_KEY")),
	}, nil
}

// StoreConfig describes the conversation database.
type StoreConfig struct {
	Path      string
	ListLimit int
}

func loadStoreConfig() (StoreConfig, error) {
	limit := 100
	if override, err := parseOptionalIntEnv("LIST_CONVERSATIONS_LIMIT"); err != nil {
		return StoreConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return StoreConfig{}, fmt.Errorf("LIST_CONVERSATIONS_LIMIT must be positive")
		}
		limit = *override
	}

	return StoreConfig{
		Path:      getEnvOrDefault("DATABASE_PATH", "echotherapy.db"),
		ListLimit: limit,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
