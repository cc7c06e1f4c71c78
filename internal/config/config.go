package config

import (
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dispute_triage/backend/internal/ai"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	AutoMigrate    bool          `mapstructure:"AUTO_MIGRATE"`

	OpenAIAPIKey     string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel      string `mapstructure:"OPENAI_MODEL"`
	OpenAIBaseURL    string `mapstructure:"OPENAI_BASE_URL"`
	GoogleAPIKey     string `mapstructure:"GOOGLE_API_KEY"`
	GeminiModel      string `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL    string `mapstructure:"GEMINI_BASE_URL"`
	AnthropicAPIKey  string `mapstructure:"ANTHROPIC_API_KEY"`
	AnthropicModel   string `mapstructure:"ANTHROPIC_MODEL"`
	AnthropicBaseURL string `mapstructure:"ANTHROPIC_BASE_URL"`

	LLMProviderOrder    string        `mapstructure:"LLM_PROVIDER_ORDER"`
	LLMKeyPlaceholders  string        `mapstructure:"LLM_KEY_PLACEHOLDERS"`
	LLMKeyMinLength     int           `mapstructure:"LLM_KEY_MIN_LENGTH"`
	LLMTimeout          time.Duration `mapstructure:"LLM_TIMEOUT"`
	LLMRateLimit        float64       `mapstructure:"LLM_RATE_LIMIT"`
	LLMRateBurst        int           `mapstructure:"LLM_RATE_BURST"`
	LLMBreakerEnabled   bool          `mapstructure:"LLM_BREAKER_ENABLED"`
	LLMBreakerFailures  uint32        `mapstructure:"LLM_BREAKER_FAILURES"`
	LLMBreakerOpenAfter time.Duration `mapstructure:"LLM_BREAKER_OPEN_TIMEOUT"`

	SlackBotToken   string        `mapstructure:"SLACK_BOT_TOKEN"`
	SlackOpsChannel string        `mapstructure:"SLACK_OPS_CHANNEL"`
	SlackAPIURL     string        `mapstructure:"SLACK_API_URL"`
	SlackTimeout    time.Duration `mapstructure:"SLACK_TIMEOUT"`
}

// keys lists every setting so AutomaticEnv picks them up during Unmarshal.
var keys = []string{
	"ENV", "PORT", "DATABASE_URL", "ADMIN_KEY", "CORS_ALLOWED_ORIGINS", "REQUEST_TIMEOUT", "LOG_LEVEL", "AUTO_MIGRATE",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"GOOGLE_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_BASE_URL",
	"LLM_PROVIDER_ORDER", "LLM_KEY_PLACEHOLDERS", "LLM_KEY_MIN_LENGTH", "LLM_TIMEOUT",
	"LLM_RATE_LIMIT", "LLM_RATE_BURST", "LLM_BREAKER_ENABLED", "LLM_BREAKER_FAILURES", "LLM_BREAKER_OPEN_TIMEOUT",
	"SLACK_BOT_TOKEN", "SLACK_OPS_CHANNEL", "SLACK_API_URL", "SLACK_TIMEOUT",
}

func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile reads an optional env file; process environment wins over it.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("LLM_PROVIDER_ORDER", strings.Join(ai.DefaultProviderOrder, ","))
	v.SetDefault("LLM_KEY_PLACEHOLDERS", strings.Join(ai.DefaultPlaceholders, ","))
	v.SetDefault("LLM_KEY_MIN_LENGTH", ai.DefaultMinKeyLength)
	v.SetDefault("LLM_TIMEOUT", ai.DefaultLLMTimeout.String())
	v.SetDefault("LLM_RATE_LIMIT", 0)
	v.SetDefault("LLM_RATE_BURST", 1)
	v.SetDefault("LLM_BREAKER_ENABLED", false)
	v.SetDefault("LLM_BREAKER_FAILURES", 5)
	v.SetDefault("LLM_BREAKER_OPEN_TIMEOUT", "30s")
	v.SetDefault("SLACK_OPS_CHANNEL", "#dispute-ops")
	v.SetDefault("SLACK_TIMEOUT", "5s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Selection(client *http.Client) ai.SelectionConfig {
	return ai.SelectionConfig{
		Order:        ai.ParseProviderOrder(c.LLMProviderOrder),
		Placeholders: splitList(c.LLMKeyPlaceholders),
		MinKeyLength: c.LLMKeyMinLength,
		OpenAI:       ai.ProviderConfig{APIKey: c.OpenAIAPIKey, Model: c.OpenAIModel, BaseURL: c.OpenAIBaseURL},
		Google:       ai.ProviderConfig{APIKey: c.GoogleAPIKey, Model: c.GeminiModel, BaseURL: c.GeminiBaseURL},
		Anthropic:    ai.ProviderConfig{APIKey: c.AnthropicAPIKey, Model: c.AnthropicModel, BaseURL: c.AnthropicBaseURL},
		HTTPClient:   client,
	}
}

func (c Config) Guard() ai.GuardConfig {
	return ai.GuardConfig{
		Timeout:            c.LLMTimeout,
		RatePerSecond:      c.LLMRateLimit,
		Burst:              c.LLMRateBurst,
		BreakerEnabled:     c.LLMBreakerEnabled,
		BreakerFailures:    c.LLMBreakerFailures,
		BreakerOpenTimeout: c.LLMBreakerOpenAfter,
	}
}

func (c Config) CORSOrigins() []string {
	origins := splitList(c.CORSAllowed)
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
