package config

import (
	"errors"
	"os"
	"strings"
)

// BotConfig holds settings for the Telegram bot process.
type BotConfig struct {
	TelegramToken string
	TelegramAPI   string

	// Mode is "polling" or "webhook".
	Mode        string
	WebhookAddr string
	WebhookPath string
	WebhookURL  string

	APIBaseURL string
	RedisURL   string

	MsgcatDir string
}

// APIConfig holds settings for the backend API process.
type APIConfig struct {
	Addr        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
}

const defaultTelegramAPI = "https://api.telegram.org"

// LoadBot reads bot configuration from the environment.
func LoadBot() (*BotConfig, error) {
	cfg := &BotConfig{
		TelegramAPI: defaultTelegramAPI,
		Mode:        "polling",
		WebhookAddr: ":8081",
		WebhookPath: "/",
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_API_TOKEN"))
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_API_URL")); v != "" {
		cfg.TelegramAPI = strings.TrimRight(v, "/")
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("BOT_MODE"))); v != "" {
		cfg.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("WEBHOOK_ADDR")); v != "" {
		cfg.WebhookAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WEBHOOK_PATH")); v != "" {
		cfg.WebhookPath = v
	}
	cfg.WebhookURL = strings.TrimSpace(os.Getenv("WEBHOOK_DOMAIN"))

	cfg.APIBaseURL = strings.TrimSpace(os.Getenv("API_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.MsgcatDir = strings.TrimSpace(os.Getenv("MSGCAT_DIR"))

	if cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_API_TOKEN is required")
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.Mode != "polling" && cfg.Mode != "webhook" {
		return nil, errors.New("BOT_MODE must be polling or webhook")
	}
	if cfg.Mode == "webhook" && cfg.WebhookURL == "" {
		return nil, errors.New("WEBHOOK_DOMAIN is required in webhook mode")
	}
	return cfg, nil
}

// LoadAPI reads backend configuration from the environment.
func LoadAPI() (*APIConfig, error) {
	cfg := &APIConfig{Addr: ":8080"}

	if v := strings.TrimSpace(os.Getenv("API_ADDR")); v != "" {
		cfg.Addr = v
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}
