package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"support-desk"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"5000"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// AI provider
	AIProvider        string        `env:"AI_PROVIDER" envDefault:"ollama"`
	OllamaBaseURL     string        `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaModel       string        `env:"OLLAMA_MODEL" envDefault:"llama3:latest"`
	OpenRouterBaseURL string        `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenRouterAPIKey  string        `env:"OPENROUTER_API_KEY"`
	OpenRouterModel   string        `env:"OPENROUTER_MODEL" envDefault:"openrouter/auto"`
	OpenRouterSiteURL string        `env:"OPENROUTER_SITE_URL"`
	OpenRouterAppName string        `env:"OPENROUTER_APP_NAME"`
	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	GeminiModel       string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	BotTimeout        time.Duration `env:"BOT_TIMEOUT" envDefault:"10s"`
	BotContextTurns   int           `env:"BOT_CONTEXT_TURNS" envDefault:"10"`
	BotHistoryLimit   int           `env:"BOT_HISTORY_LIMIT" envDefault:"20"`

	// Routing
	DedupWindow                time.Duration `env:"DEDUP_WINDOW" envDefault:"2s"`
	DedupCapacity              int           `env:"DEDUP_CAPACITY" envDefault:"10"`
	TypingDelayPerChar         time.Duration `env:"TYPING_DELAY_PER_CHAR" envDefault:"20ms"`
	TypingDelayMax             time.Duration `env:"TYPING_DELAY_MAX" envDefault:"1500ms"`
	CancelBotOnHandoff         bool          `env:"CANCEL_BOT_ON_HANDOFF" envDefault:"false"`
	WelcomeEnabled             bool          `env:"WELCOME_ENABLED" envDefault:"true"`
	WelcomeDelay               time.Duration `env:"WELCOME_DELAY" envDefault:"1s"`
	EscalationKeywordsFile     string        `env:"ESCALATION_KEYWORDS_FILE"`
	NegativeSentimentThreshold float64       `env:"NEGATIVE_SENTIMENT_THRESHOLD" envDefault:"-0.4"`

	// Sentiment
	SentimentURL     string        `env:"SENTIMENT_URL"`
	SentimentTimeout time.Duration `env:"SENTIMENT_TIMEOUT" envDefault:"2s"`

	// Transcript archive
	RedisURL      string        `env:"REDIS_URL"`
	TranscriptTTL time.Duration `env:"TRANSCRIPT_TTL" envDefault:"24h"`

	// rabbitMQ
	RabbitURL         string `env:"RABBIT_URL"`
	RabbitQueue       string `env:"RABBIT_QUEUE" envDefault:"support_escalations"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"2"`

	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/support_desk?charset=utf8mb4&parseTime=true&loc=Local
	// or sqlite:support.db
	DBDSN string `env:"DB_DSN"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.AIProvider = strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	switch cfg.AIProvider {
	case "", "none", "ollama", "openrouter", "gemini":
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER=%q", cfg.AIProvider)
	}
	if cfg.AIProvider == "openrouter" && strings.TrimSpace(cfg.OpenRouterAPIKey) == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required when AI_PROVIDER=openrouter")
	}
	if cfg.AIProvider == "gemini" && strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER=gemini")
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 2
	}
	if cfg.WorkerConcurrency > 50 {
		cfg.WorkerConcurrency = 50
	}
	if cfg.DedupCapacity <= 0 {
		cfg.DedupCapacity = 10
	}
	return cfg, nil
}

// Addr returns the HTTP server address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
