package ai

import (
	"net/http"
	"strings"
)

type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// SelectionConfig decides which provider backs the agent. Order lists provider
// names to probe; the first one holding a valid credential wins.
type SelectionConfig struct {
	Order        []string
	Placeholders []string
	MinKeyLength int
	OpenAI       ProviderConfig
	Google       ProviderConfig
	Anthropic    ProviderConfig
	HTTPClient   *http.Client
}

var (
	DefaultProviderOrder = []string{ProviderOpenAI, ProviderGoogle}
	DefaultPlaceholders  = []string{"your_api", "your_key"}
)

const DefaultMinKeyLength = 20

// ValidCredential accepts a key that is present, is not a template placeholder
// and is longer than minLen characters.
func ValidCredential(key string, placeholders []string, minLen int) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	for _, p := range placeholders {
		if p != "" && strings.Contains(key, p) {
			return false
		}
	}
	return len(key) > minLen
}

// SelectProvider returns the first provider in cfg.Order whose credential is
// valid. ok is false when none is, and the caller must stay on the heuristic path.
func SelectProvider(cfg SelectionConfig) (Provider, bool) {
	order := cfg.Order
	if len(order) == 0 {
		order = DefaultProviderOrder
	}
	placeholders := cfg.Placeholders
	if placeholders == nil {
		placeholders = DefaultPlaceholders
	}
	minLen := cfg.MinKeyLength
	if minLen <= 0 {
		minLen = DefaultMinKeyLength
	}

	for _, name := range order {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ProviderOpenAI:
			if ValidCredential(cfg.OpenAI.APIKey, placeholders, minLen) {
				return OpenAIProvider{
					BaseURL: cfg.OpenAI.BaseURL,
					Model:   cfg.OpenAI.Model,
					APIKey:  strings.TrimSpace(cfg.OpenAI.APIKey),
					Client:  cfg.HTTPClient,
				}, true
			}
		case ProviderGoogle, "gemini":
			if ValidCredential(cfg.Google.APIKey, placeholders, minLen) {
				return GeminiProvider{
					BaseURL: cfg.Google.BaseURL,
					Model:   cfg.Google.Model,
					APIKey:  strings.TrimSpace(cfg.Google.APIKey),
					Client:  cfg.HTTPClient,
				}, true
			}
		case ProviderAnthropic:
			if ValidCredential(cfg.Anthropic.APIKey, placeholders, minLen) {
				return AnthropicProvider{
					BaseURL: cfg.Anthropic.BaseURL,
					Model:   cfg.Anthropic.Model,
					APIKey:  strings.TrimSpace(cfg.Anthropic.APIKey),
					Client:  cfg.HTTPClient,
				}, true
			}
		}
	}
	return nil, false
}

// ParseProviderOrder splits a comma separated provider list.
func ParseProviderOrder(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
