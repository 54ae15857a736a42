// Copyright 2026 The Orchestrator Kernel Authors
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
	"net/http"

	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/httpclient"
)

// OllamaProvider talks to a local Ollama daemon's /api/chat endpoint —
// the zero-config default for every role when no cloud credentials are
// configured.
type OllamaProvider struct {
	cfg  config.LLMProviderConfig
	http *httpclient.Client
}

func NewOllamaProvider(cfg config.LLMProviderConfig) *OllamaProvider {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	return &OllamaProvider{cfg: cfg, http: httpclient.New(httpclient.WithMaxRetries(1))}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message openAIMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

func (p *OllamaProvider) ModelName() string { return p.cfg.Model }

func (p *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.Chat(ctx, []Message{{Role: "user", Content: prompt}})
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]openAIMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openAIMessage{Role: m.Role, Content: m.Content}
	}
	reqBody, err := json.Marshal(ollamaChatRequest{Model: p.cfg.Model, Messages: msgs, Stream: false})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil && resp == nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var parsed ollamaChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama error: %s", parsed.Error)
	}
	return parsed.Message.Content, nil
}
