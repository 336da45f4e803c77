// Copyright 2025 Martial & Co
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/martialandco/berinia/internal/httpclient"
	"github.com/martialandco/berinia/pkg/config"
)

// OpenAIService implements Service against an OpenAI-compatible API.
type OpenAIService struct {
	cfg    config.LLMConfig
	client *httpclient.Client
}

// chatRequest is the chat completions payload.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// chatResponse is the chat completions result.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type embeddingsRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// promptTokenBudget warns when a prompt approaches the context window.
const promptTokenBudget = 100_000

// NewOpenAIService creates the service from config.
func NewOpenAIService(cfg config.LLMConfig) *OpenAIService {
	return &OpenAIService{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}),
		),
	}
}

// modelFor maps a complexity tier to a configured model; unknown tiers use
// the high model, matching the earlier generations of the system.
func (s *OpenAIService) modelFor(complexity Complexity) string {
	switch complexity {
	case ComplexityLow:
		return s.cfg.ModelLow
	case ComplexityMedium:
		return s.cfg.ModelMedium
	default:
		return s.cfg.ModelHigh
	}
}

// Call implements Service.
func (s *OpenAIService) Call(ctx context.Context, prompt string, complexity Complexity) (string, error) {
	return s.CallWithHistory(ctx, prompt, nil, complexity)
}

// CallWithHistory implements Service.
func (s *OpenAIService) CallWithHistory(ctx context.Context, prompt string, history []Message, complexity Complexity) (string, error) {
	model := s.modelFor(complexity)

	if tokens := CountTokens(prompt, model); tokens > promptTokenBudget {
		slog.Warn("prompt exceeds token budget", "model", model, "tokens", tokens)
	}

	messages := append(append([]Message{}, history...), Message{Role: "user", Content: prompt})
	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}

	var resp chatResponse
	if err := s.post(ctx, "/chat/completions", reqBody, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("llm call failed: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm call returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed implements Service.
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := embeddingsRequest{
		Model: s.cfg.EmbeddingModel,
		Input: text,
	}

	var resp embeddingsResponse
	if err := s.post(ctx, "/embeddings", reqBody, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("embedding failed: %s", resp.Error.Message)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding returned no data")
	}
	return resp.Data[0].Embedding, nil
}

func (s *OpenAIService) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Host+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm request failed: HTTP %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return json.Unmarshal(data, out)
}

// CountTokens counts prompt tokens for model, falling back to a 4-chars-per-
// token estimate when the encoding is unknown.
func CountTokens(text, model string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil || enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
