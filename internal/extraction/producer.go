// Package extraction turns completed-call transcripts into validated
// structured outcomes via an LLM, treating the model's output as untrusted
// input.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"collections-platform/internal/config"
)

var ErrEmptyResponse = errors.New("extraction: empty model response")

// Producer asks a model to extract structured fields from a transcript.
// The returned bytes are a raw JSON object; callers must validate it.
type Producer interface {
	Extract(ctx context.Context, req ExtractRequest) ([]byte, error)
}

type ExtractRequest struct {
	Transcript string
	Summary    string
}

// OpenAIProducer calls an OpenAI-compatible chat-completions endpoint.
type OpenAIProducer struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewOpenAIProducer(cfg config.LLMConfig) *OpenAIProducer {
	return &OpenAIProducer{
		http:    &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

func (p *OpenAIProducer) Extract(ctx context.Context, req ExtractRequest) ([]byte, error) {
	payload := map[string]any{
		"model":       p.model,
		"temperature": 0,
		"response_format": map[string]string{
			"type": "json_object",
		},
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": buildUserPrompt(req)},
		},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("extraction: encode request: %w", err)
	}

	endpoint := p.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("extraction: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("extraction: model endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wrapper struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("extraction: decode response: %w", err)
	}
	if len(wrapper.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	content := strings.TrimSpace(wrapper.Choices[0].Message.Content)
	obj := extractJSONObject(content)
	if obj == "" {
		return nil, fmt.Errorf("extraction: no json object in model output")
	}
	return []byte(obj), nil
}

// extractJSONObject returns the first balanced top-level JSON object in
// input. Models occasionally wrap the object in prose or code fences even
// when asked for strict JSON.
func extractJSONObject(input string) string {
	start := strings.Index(input, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(input); i++ {
		ch := input[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}
	return ""
}
