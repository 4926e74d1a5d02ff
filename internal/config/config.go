package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Cache    CacheConfig    `json:"cache"`
	Chat     ChatConfig     `json:"chat"`
	Auth     AuthConfig     `json:"auth"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslmode"`
}

// CacheConfig configures the on-device fallback store used when the
// remote database is unreachable.
type CacheConfig struct {
	Path string `json:"path"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// ChatConfig configures the upstream model endpoint and generation defaults.
type ChatConfig struct {
	// Provider selects the transport: "responses" (raw HTTP against a
	// Responses-style endpoint) or "openai-compatible" (chat completions).
	Provider string `json:"provider"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`

	Language    string  `json:"language"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`

	RequestTimeout time.Duration `json:"request_timeout"`
	MaxAnswerChars int           `json:"max_answer_chars"`

	// Simulated streaming: fetch the full answer and re-chunk it client-side.
	SimulateStream   bool          `json:"simulate_stream"`
	StreamChunkSize  int           `json:"stream_chunk_size"`
	StreamChunkDelay time.Duration `json:"stream_chunk_delay"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".irfan"))
	}

	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "irfan")
	viper.SetDefault("database.database", "irfan")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("cache.path", filepath.Join("app_data", "irfan-cache.db"))
	viper.SetDefault("chat.provider", "responses")
	viper.SetDefault("chat.base_url", "https://router.huggingface.co/v1")
	viper.SetDefault("chat.model", "openai/gpt-oss-120b:novita")
	viper.SetDefault("chat.language", "tr")
	viper.SetDefault("chat.temperature", 0.2)
	viper.SetDefault("chat.top_p", 0.95)
	viper.SetDefault("chat.max_tokens", 4096)
	viper.SetDefault("chat.request_timeout", 60*time.Second)
	viper.SetDefault("chat.max_answer_chars", 800)
	viper.SetDefault("chat.simulate_stream", false)
	viper.SetDefault("chat.stream_chunk_size", 10)
	viper.SetDefault("chat.stream_chunk_delay", 30*time.Millisecond)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := defaultConfig()
			loadEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8000,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "irfan",
			Database: "irfan",
			SSLMode:  "disable",
		},
		Cache: CacheConfig{
			Path: filepath.Join("app_data", "irfan-cache.db"),
		},
		Chat: ChatConfig{
			Provider:         "responses",
			BaseURL:          "https://router.huggingface.co/v1",
			Model:            "openai/gpt-oss-120b:novita",
			Language:         "tr",
			Temperature:      0.2,
			TopP:             0.95,
			MaxTokens:        4096,
			RequestTimeout:   60 * time.Second,
			MaxAnswerChars:   800,
			StreamChunkSize:  10,
			StreamChunkDelay: 30 * time.Millisecond,
		},
	}
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("IRFAN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("IRFAN_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if token := os.Getenv("HF_TOKEN"); token != "" {
		cfg.Chat.APIKey = token
	}
	if base := os.Getenv("HF_API_BASE"); base != "" {
		cfg.Chat.BaseURL = base
	}
	if model := os.Getenv("MODEL"); model != "" {
		cfg.Chat.Model = model
	}
	if secret := os.Getenv("IRFAN_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
}
