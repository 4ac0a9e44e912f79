package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/king-app/king/backend/internal/service/ai"
)

// Config aggregates every setting of the service.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	AI       AIConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Stream   StreamConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	aiCfg, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	database, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	stream, err := loadStreamConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Log:      LogConfig{Level: strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))},
		AI:       aiCfg,
		Database: database,
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Auth: AuthConfig{
			Secret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
			Issuer: strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		},
		Stream: stream,
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
		// ":8080" and "127.0.0.1:8080" are accepted as is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig selects the slog level.
type LogConfig struct {
	Level string
}

// AIConfig describes the language model provider.
type AIConfig struct {
	Provider      string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	Temperature   float64
	StreamUsage   bool
	Ark           ai.ArkConfig
}

// ProviderConfig converts the settings for ai.NewProvider.
func (c AIConfig) ProviderConfig() ai.ProviderConfig {
	return ai.ProviderConfig{
		Name:          c.Provider,
		OpenAIAPIKey:  c.OpenAIAPIKey,
		OpenAIBaseURL: c.OpenAIBaseURL,
		Ark:           c.Ark,
	}
}

// Params returns the generation parameters sent with every prompt.
func (c AIConfig) Params() ai.ModelParams {
	params := ai.DefaultParams()
	params.Model = c.Model
	params.Temperature = c.Temperature
	params.IncludeUsage = c.StreamUsage
	if c.Provider == ai.ProviderArk && c.Ark.Model != "" {
		params.Model = c.Ark.Model
	}
	return params
}

func loadAIConfig() (AIConfig, error) {
	temperature := ai.DefaultTemperature
	if override, err := parseOptionalFloatEnv("AI_TEMPERATURE"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 || *override > 2 {
			return AIConfig{}, fmt.Errorf("invalid AI_TEMPERATURE value %v: must be within [0, 2]", *override)
		}
		temperature = *override
	}

	usage, err := parseBoolEnv("AI_STREAM_USAGE", true)
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ai.ProviderOpenAI))
	switch provider {
	case ai.ProviderOpenAI, ai.ProviderArk, ai.ProviderMock:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	return AIConfig{
		Provider:      provider,
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Model:         getEnvOrDefault("AI_MODEL", ai.DefaultModel),
		Temperature:   temperature,
		StreamUsage:   usage,
		Ark: ai.ArkConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		},
	}, nil
}

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects the History Store backend.
type DatabaseConfig struct {
	Driver     string
	URL        string
	SQLitePath string
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	cfg := DatabaseConfig{
		Driver:     strings.ToLower(getEnvOrDefault("DB_DRIVER", DriverMemory)),
		URL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "history.db"),
	}
	switch cfg.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if cfg.URL == "" {
			return DatabaseConfig{}, fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", DriverPostgres)
		}
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DB_DRIVER value %q", cfg.Driver)
	}
	return cfg, nil
}

// RedisConfig points at the optional Redis instance.
type RedisConfig struct {
	Addr     string
	Password string
}

// Enabled reports whether Redis was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// AuthConfig holds the JWT settings.
type AuthConfig struct {
	Secret string
	Issuer string
}

// StreamConfig is the reply streaming policy.
type StreamConfig struct {
	SerializePerUser    bool
	LockTTL             time.Duration
	SavePartialOnCancel bool
	Buffer              int
	PersistConcurrency  int
	PersistTimeout      time.Duration
	// RateLimit is the number of stream requests per user per minute. Zero
	// disables throttling.
	RateLimit int
}

func loadStreamConfig() (StreamConfig, error) {
	serialize, err := parseBoolEnv("STREAM_SERIALIZE_PER_USER", true)
	if err != nil {
		return StreamConfig{}, err
	}
	savePartial, err := parseBoolEnv("STREAM_SAVE_PARTIAL_ON_CANCEL", false)
	if err != nil {
		return StreamConfig{}, err
	}
	lockTTL, err := parseDurationEnv("STREAM_LOCK_TTL", 2*time.Minute)
	if err != nil {
		return StreamConfig{}, err
	}
	persistTimeout, err := parseDurationEnv("PERSIST_TIMEOUT", 10*time.Second)
	if err != nil {
		return StreamConfig{}, err
	}
	buffer, err := parseIntEnv("STREAM_BUFFER", 16)
	if err != nil {
		return StreamConfig{}, err
	}
	concurrency, err := parseIntEnv("PERSIST_CONCURRENCY", 4)
	if err != nil {
		return StreamConfig{}, err
	}
	rateLimit, err := parseIntEnv("CHAT_RATE_LIMIT", 0)
	if err != nil {
		return StreamConfig{}, err
	}
	if buffer < 1 || concurrency < 1 || rateLimit < 0 {
		return StreamConfig{}, fmt.Errorf("STREAM_BUFFER and PERSIST_CONCURRENCY must be positive, CHAT_RATE_LIMIT non-negative")
	}

	return StreamConfig{
		SerializePerUser:    serialize,
		LockTTL:             lockTTL,
		SavePartialOnCancel: savePartial,
		Buffer:              buffer,
		PersistConcurrency:  concurrency,
		PersistTimeout:      persistTimeout,
		RateLimit:           rateLimit,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
