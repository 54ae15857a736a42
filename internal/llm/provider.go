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

// Package llm resolves the closed {reasoning, coding, vision} role variant
// of spec Design Notes §9 to a concrete model via a ModelRegistry, and
// talks to that model over raw HTTP — the same style the teacher uses for
// its Anthropic provider (no vendor SDK dependency).
package llm

import "context"

// Message is one turn in a chat-style request.
type Message struct {
	Role    string
	Content string
}

// Provider is one concrete LLM backend (anthropic, openai, gemini, ollama).
type Provider interface {
	// Generate completes a single prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Chat completes a multi-turn conversation.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ModelName reports the concrete model this provider is configured for.
	ModelName() string
}
