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

package config

import (
	"time"

	"github.com/kernelmesh/orchestrator/internal/observability"
)

// KernelConfig is the root configuration for wiring a Kernel. It is
// deliberately thin: the kernel does not own a config file format or CLI
// flags (see spec Non-goals); this struct is populated by whatever launch
// harness the deployer chooses (flags, env, yaml) and handed to the
// constructors in internal/kernel.
type KernelConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`

	// GRPCHealthAddr serves the standard grpc_health_v1 service, letting
	// orchestrators (k8s, consul) health-check the kernel over gRPC
	// instead of scraping GET /health. Empty disables it.
	GRPCHealthAddr string `yaml:"grpc_health_addr,omitempty"`

	Storage StorageConfig `yaml:"storage,omitempty"`

	Embedder EmbedderProviderConfig `yaml:"embedder,omitempty"`

	// VectorStore is optional. When Type is empty the Document Store uses
	// its built-in in-process cosine scan over the relational Chunk table
	// instead of an external vector database.
	VectorStore VectorStoreConfig `yaml:"vector_store,omitempty"`

	// ReasoningLLM, CodingLLM and VisionLLM back the three role tags the
	// Planner and Executor resolve steps against.
	ReasoningLLM LLMProviderConfig `yaml:"reasoning_llm,omitempty"`
	CodingLLM    LLMProviderConfig `yaml:"coding_llm,omitempty"`
	VisionLLM    LLMProviderConfig `yaml:"vision_llm,omitempty"`

	// Tools maps catalog tool names (files, memory, rag, vision, search,
	// system, control, audio, documents, llm) to their HTTP endpoint.
	Tools map[string]ToolEndpointConfig `yaml:"tools,omitempty"`

	SessionRoot    string        `yaml:"session_root,omitempty"`
	LogLevel       string        `yaml:"log_level,omitempty"`
	LogFormat      string        `yaml:"log_format,omitempty"`
	AutoCycleEvery time.Duration `yaml:"auto_cycle_every,omitempty"`

	// Observability configures tracing and metrics for the whole kernel
	// process (internal/observability.Manager).
	Observability observability.Config `yaml:"observability,omitempty"`
}

// FromEnvironment builds a KernelConfig from process environment variables,
// applying the same zero-config defaults philosophy as the rest of the
// provider configs: every field works out of the box against services
// running on localhost.
func FromEnvironment() *KernelConfig {
	cfg := &KernelConfig{
		ListenAddr:     envOrDefault("KERNEL_LISTEN_ADDR", ":8090"),
		GRPCHealthAddr: envOrDefault("KERNEL_GRPC_HEALTH_ADDR", ":9091"),
		Storage: StorageConfig{
			Dialect: envOrDefault("KERNEL_STORAGE_DIALECT", "sqlite"),
			DSN:     envOrDefault("KERNEL_STORAGE_DSN", "kernel.db"),
		},
		Embedder: EmbedderProviderConfig{
			Type:  envOrDefault("KERNEL_EMBEDDER_TYPE", "ollama"),
			Model: envOrDefault("KERNEL_EMBEDDER_MODEL", "nomic-embed-text"),
			Host:  envOrDefault("KERNEL_EMBEDDER_HOST", "http://localhost:11434"),
		},
		ReasoningLLM: LLMProviderConfig{
			Type:  envOrDefault("KERNEL_REASONING_LLM_TYPE", "anthropic"),
			Model: envOrDefault("KERNEL_REASONING_LLM_MODEL", "claude-opus-4"),
		},
		CodingLLM: LLMProviderConfig{
			Type:  envOrDefault("KERNEL_CODING_LLM_TYPE", "anthropic"),
			Model: envOrDefault("KERNEL_CODING_LLM_MODEL", "claude-sonnet-4"),
		},
		VisionLLM: LLMProviderConfig{
			Type:  envOrDefault("KERNEL_VISION_LLM_TYPE", "openai"),
			Model: envOrDefault("KERNEL_VISION_LLM_MODEL", "gpt-4o"),
		},
		Tools:          defaultToolEndpoints(),
		SessionRoot:    envOrDefault("KERNEL_SESSION_ROOT", "./sessions"),
		LogLevel:       envOrDefault("KERNEL_LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("KERNEL_LOG_FORMAT", "simple"),
		AutoCycleEvery: time.Duration(envIntOrDefault("KERNEL_AUTOCYCLE_SECONDS", 300)) * time.Second,
		Observability: observability.Config{
			Tracing: observability.TracingConfig{
				Enabled:  envBoolOrDefault("KERNEL_TRACING_ENABLED", false),
				Exporter: envOrDefault("KERNEL_TRACING_EXPORTER", "stdout"),
				Endpoint: envOrDefault("KERNEL_TRACING_ENDPOINT", observability.DefaultOTLPEndpoint),
			},
			Metrics: observability.MetricsConfig{
				Enabled: envBoolOrDefault("KERNEL_METRICS_ENABLED", true),
			},
		},
	}

	cfg.Storage.SetDefaults()
	cfg.Embedder.SetDefaults()
	cfg.ReasoningLLM.SetDefaults()
	cfg.CodingLLM.SetDefaults()
	cfg.VisionLLM.SetDefaults()
	cfg.Observability.Tracing.SetDefaults()
	cfg.Observability.Metrics.SetDefaults()

	return cfg
}

func defaultToolEndpoints() map[string]ToolEndpointConfig {
	tools := []string{"files", "memory", "rag", "vision", "search", "system", "control", "audio", "documents", "llm"}
	out := make(map[string]ToolEndpointConfig, len(tools))
	for _, t := range tools {
		out[t] = ToolEndpointConfig{
			BaseURL: envOrDefault("KERNEL_TOOL_"+upper(t)+"_URL", "http://localhost:9000/"+t),
			Timeout: 30,
		}
	}
	return out
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
