package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderOpenAI     = "openai"
	defaultOpenAIModel = "gpt-4-turbo-preview"
	defaultOpenAIURL   = "https://api.openai.com/v1"
)

type OpenAIProvider struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p OpenAIProvider) Name() string { return ProviderOpenAI }

func (p OpenAIProvider) Invoke(ctx context.Context, in DisputeInput) (string, error) {
	baseURL := strings.TrimSpace(p.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		model = defaultOpenAIModel
	}

	payload := chatRequest{
		Model:       model,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(in)},
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", providerErr(ProviderOpenAI, 0, err)
	}

	url := strings.TrimRight(baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", providerErr(ProviderOpenAI, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := httpClient(p.Client).Do(req)
	if err != nil {
		return "", providerErr(ProviderOpenAI, 0, transportErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", providerErr(ProviderOpenAI, resp.StatusCode, ErrRateLimited)
		}
		return "", providerErr(ProviderOpenAI, resp.StatusCode, fmt.Errorf("http error: %s: %v", resp.Status, errBody))
	}

	var res chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", providerErr(ProviderOpenAI, resp.StatusCode, err)
	}
	if len(res.Choices) == 0 {
		return "", providerErr(ProviderOpenAI, resp.StatusCode, ErrEmptyResponse)
	}
	content := contentText(res.Choices[0].Message.Content)
	if strings.TrimSpace(content) == "" {
		return "", providerErr(ProviderOpenAI, resp.StatusCode, ErrEmptyResponse)
	}
	return content, nil
}

// contentText returns message content as text. Structured content (a list of
// parts) is handed over in its JSON form for the parser to unwrap.
func contentText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 45 * time.Second}
}

func transportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("request timed out: %w", err)
	}
	return fmt.Errorf("request failed: %w", err)
}
