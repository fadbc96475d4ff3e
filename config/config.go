package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	UseAI        bool
	GeminiAPIKey string
	GeminiModel  string
	ChatBaseURL  string
	ChatAPIKey   string
	ChatModel    string

	GoogleFactCheckAPIKey string
	VisionAPIKey          string
	SerperAPIKey          string
	TesseractPath         string

	DbUrl      string
	RedisUrl   string
	AdminToken string

	UploadDir     string
	PublicBaseURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	AdminEmail   string

	FetchTimeout        time.Duration
	CollaboratorTimeout time.Duration
	FactCheckCacheTTL   time.Duration
}

var defaults = map[string]any{
	"PORT":                 "8080",
	"ENVIRONMENT":          "development",
	"LOG_LEVEL":            "info",
	"USE_AI":               false,
	"GEMINI_MODEL":         "gemini-1.5-flash-latest",
	"CHAT_BASE_URL":        "https://openrouter.ai/api/v1",
	"CHAT_MODEL":           "nvidia/nemotron-3-nano-30b-a3b:free",
	"UPLOAD_DIR":           "uploads",
	"PUBLIC_BASE_URL":      "http://localhost:8080",
	"FETCH_TIMEOUT":        "10s",
	"COLLABORATOR_TIMEOUT": "20s",
	"FACTCHECK_CACHE_TTL":  "6h",
	"SMTP_PORT":            587,
	"ADMIN_EMAIL":          "admin@truthlens.com",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:                  v.GetString("PORT"),
		Environment:           v.GetString("ENVIRONMENT"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		UseAI:                 v.GetBool("USE_AI"),
		GeminiAPIKey:          v.GetString("GEMINI_API_KEY"),
		GeminiModel:           v.GetString("GEMINI_MODEL"),
		ChatBaseURL:           v.GetString("CHAT_BASE_URL"),
		ChatAPIKey:            v.GetString("CHAT_API_KEY"),
		ChatModel:             v.GetString("CHAT_MODEL"),
		GoogleFactCheckAPIKey: v.GetString("GOOGLE_FACTCHECK_API_KEY"),
		VisionAPIKey:          v.GetString("VISION_API_KEY"),
		SerperAPIKey:          v.GetString("SERPER_API_KEY"),
		TesseractPath:         v.GetString("TESSERACT_PATH"),
		DbUrl:                 v.GetString("DB_URL"),
		RedisUrl:              v.GetString("REDIS_URL"),
		AdminToken:            v.GetString("ADMIN_TOKEN"),
		UploadDir:             v.GetString("UPLOAD_DIR"),
		PublicBaseURL:         v.GetString("PUBLIC_BASE_URL"),
		SMTPHost:              v.GetString("SMTP_HOST"),
		SMTPPort:              v.GetInt("SMTP_PORT"),
		SMTPUsername:          v.GetString("SMTP_USERNAME"),
		SMTPPassword:          v.GetString("SMTP_PASSWORD"),
		SMTPFrom:              v.GetString("SMTP_FROM"),
		AdminEmail:            v.GetString("ADMIN_EMAIL"),
		FetchTimeout:          v.GetDuration("FETCH_TIMEOUT"),
		CollaboratorTimeout:   v.GetDuration("COLLABORATOR_TIMEOUT"),
		FactCheckCacheTTL:     v.GetDuration("FACTCHECK_CACHE_TTL"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTP_PORT must be a valid port, got %d", c.SMTPPort)
	}
	if c.CollaboratorTimeout <= 0 {
		return fmt.Errorf("COLLABORATOR_TIMEOUT must be positive")
	}
	return nil
}

// AIConfigured reports whether any inference provider has credentials.
func (c *Config) AIConfigured() bool {
	return c.GeminiAPIKey != "" || c.ChatAPIKey != ""
}
