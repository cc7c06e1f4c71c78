package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	ProviderGoogle     = "google"
	defaultGeminiModel = "gemini-flash-latest"
	defaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
)

type GeminiProvider struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []json.RawMessage `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p GeminiProvider) Name() string { return ProviderGoogle }

func (p GeminiProvider) Invoke(ctx context.Context, in DisputeInput) (string, error) {
	baseURL := strings.TrimSpace(p.BaseURL)
	if baseURL == "" {
		baseURL = defaultGeminiURL
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	payload := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: BuildPrompt(in)}}},
		},
	}
	payload.GenerationConfig.Temperature = 0
	b, err := json.Marshal(payload)
	if err != nil {
		return "", providerErr(ProviderGoogle, 0, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", strings.TrimRight(baseURL, "/"), url.PathEscape(model), url.QueryEscape(p.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", providerErr(ProviderGoogle, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(p.Client).Do(req)
	if err != nil {
		return "", providerErr(ProviderGoogle, 0, transportErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", providerErr(ProviderGoogle, resp.StatusCode, ErrRateLimited)
		}
		return "", providerErr(ProviderGoogle, resp.StatusCode, fmt.Errorf("http error: %s", resp.Status))
	}

	var r geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", providerErr(ProviderGoogle, resp.StatusCode, err)
	}
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", providerErr(ProviderGoogle, resp.StatusCode, ErrEmptyResponse)
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 1 {
		var part geminiPart
		if err := json.Unmarshal(parts[0], &part); err == nil && part.Text != "" {
			return part.Text, nil
		}
	}
	// Several parts: keep the structure, the parser concatenates text payloads.
	raw, err := json.Marshal(parts)
	if err != nil {
		return "", providerErr(ProviderGoogle, resp.StatusCode, err)
	}
	return string(raw), nil
}
