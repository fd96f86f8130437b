// Package llm provides a translation provider backed by an OpenAI-compatible
// Chat Completion API endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APITranslator translates text through a chat completion endpoint.
type APITranslator struct {
	Endpoint    string
	APIKey      string
	ModelName   string
	Temperature float64
	MaxTokens   int
	// Prompt overrides the default system prompt. It may reference the
	// source and target languages with {source} and {target}.
	Prompt string
	client *http.Client
}

// NewAPITranslator creates an APITranslator with the given configuration.
func NewAPITranslator(endpoint, apiKey, modelName string, temperature float64, maxTokens int, timeout time.Duration) *APITranslator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &APITranslator{
		Endpoint:    endpoint,
		APIKey:      apiKey,
		ModelName:   modelName,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

const defaultPrompt = "You are a professional document translator. " +
	"Translate the user's text from {source} to {target}. " +
	"Reply with the translation only, without notes or quotation marks. " +
	"Keep line breaks, numbers, codes and proper nouns as they are."

// BuildMessages returns the system and user messages for one translation.
func BuildMessages(prompt, text, source, target string) []chatMessage {
	if prompt == "" {
		prompt = defaultPrompt
	}
	if source == "" || source == "auto" {
		source = "the detected source language"
	}
	system := strings.NewReplacer("{source}", source, "{target}", target).Replace(prompt)
	return []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: text},
	}
}

// Translate sends text to the model and returns its translation. It retries
// once on failure.
func (s *APITranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	messages := BuildMessages(s.Prompt, text, source, target)

	out, err := s.callAPI(ctx, messages)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return "", err
	}

	out, err = s.callAPI(ctx, messages)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (s *APITranslator) callAPI(ctx context.Context, messages []chatMessage) (string, error) {
	reqBody := chatRequest{
		Model:       s.ModelName,
		Messages:    messages,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(s.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("LLM API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != nil {
			return "", fmt.Errorf("LLM API error (HTTP %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("LLM API error (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("LLM API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("LLM API returned no choices")
	}
	content := strings.TrimSpace(result.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("LLM API returned empty content")
	}
	return content, nil
}
