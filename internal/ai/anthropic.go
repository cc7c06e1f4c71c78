package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	ProviderAnthropic     = "anthropic"
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
)

type AnthropicProvider struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
}

func (p AnthropicProvider) Name() string { return ProviderAnthropic }

func (p AnthropicProvider) Invoke(ctx context.Context, in DisputeInput) (string, error) {
	model := strings.TrimSpace(p.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(p.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClient(p.Client)),
	}
	if strings.TrimSpace(p.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(p.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   1024,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(in))),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests {
				return "", providerErr(ProviderAnthropic, apiErr.StatusCode, ErrRateLimited)
			}
			return "", providerErr(ProviderAnthropic, apiErr.StatusCode, err)
		}
		return "", providerErr(ProviderAnthropic, 0, transportErr(err))
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", providerErr(ProviderAnthropic, 0, ErrEmptyResponse)
	}
	return b.String(), nil
}
