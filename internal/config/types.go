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

// Package config declares the configuration shapes consumed by the kernel's
// pluggable providers (vector stores, embedders, LLMs, relational storage).
// FromEnvironment, LoadDotEnv and LoadFromYAML fill them from the process
// environment, a .env file or a YAML file; callers (tests, wiring code) may
// also populate these structs directly.
package config

import "fmt"

// BoolPtr returns a pointer to b, useful for optional boolean fields.
func BoolPtr(b bool) *bool { return &b }

// VectorStoreConfig configures a pluggable vector database backend used as
// an alternative to the kernel's built-in in-process cosine scan.
type VectorStoreConfig struct {
	Type        string `yaml:"type"` // "qdrant", "pinecone", "weaviate", "milvus", "chroma"
	Host        string `yaml:"host,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	APIKey      string `yaml:"api_key,omitempty"`
	EnableTLS   *bool  `yaml:"enable_tls,omitempty"`
	Collection  string `yaml:"collection,omitempty"`
	IndexName   string `yaml:"index_name,omitempty"`
	Environment string `yaml:"environment,omitempty"`

	InsecureSkipVerify *bool  `yaml:"insecure_skip_verify,omitempty"`
	CACertificate      string `yaml:"ca_certificate,omitempty"`
}

// SetDefaults applies zero-config defaults per backend type.
func (c *VectorStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "qdrant"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		switch c.Type {
		case "qdrant":
			c.Port = 6334
		case "weaviate":
			c.Port = 8080
		case "milvus":
			c.Port = 19530
		case "chroma":
			c.Port = 8000
		}
	}
	if c.EnableTLS == nil {
		c.EnableTLS = BoolPtr(false)
	}
	if c.Collection == "" {
		c.Collection = "kernel_chunks"
	}
}

// Validate reports whether the config is usable for its declared Type.
func (c *VectorStoreConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	switch c.Type {
	case "qdrant", "weaviate", "milvus", "chroma":
		if c.Host == "" {
			return fmt.Errorf("host is required for %s", c.Type)
		}
	case "pinecone":
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for pinecone")
		}
	default:
		return fmt.Errorf("unsupported vector store type: %s", c.Type)
	}
	return nil
}

// EmbedderProviderConfig configures a pluggable embedding model.
type EmbedderProviderConfig struct {
	Type       string `yaml:"type"` // "ollama", "openai", "cohere"
	Model      string `yaml:"model"`
	Host       string `yaml:"host"`
	APIKey     string `yaml:"api_key,omitempty"`
	Dimension  int    `yaml:"dimension"`
	Timeout    int    `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
	BatchSize  int    `yaml:"batch_size,omitempty"`
}

func (c *EmbedderProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Model == "" {
		c.Model = "nomic-embed-text"
	}
	if c.Host == "" {
		c.Host = "http://localhost:11434"
	}
	if c.Dimension == 0 {
		c.Dimension = 384
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *EmbedderProviderConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	return nil
}

// LLMProviderConfig configures an LLM used to resolve a reasoning-role tag
// (reasoning, coding, vision) to a concrete model.
type LLMProviderConfig struct {
	Type        string  `yaml:"type"` // "anthropic", "openai", "gemini", "ollama"
	Model       string  `yaml:"model"`
	Host        string  `yaml:"host,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	Timeout     int     `yaml:"timeout,omitempty"`
}

func (c *LLMProviderConfig) SetDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
}

func (c *LLMProviderConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

// StorageConfig configures the relational backend shared by the Document
// Store and the Timeline (see internal/storage). Supports sqlite (default,
// embedded), postgres, and mysql via database/sql dialect drivers.
type StorageConfig struct {
	Dialect string `yaml:"dialect"` // "sqlite", "postgres", "mysql"
	DSN     string `yaml:"dsn"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Dialect == "" {
		c.Dialect = "sqlite"
	}
	if c.DSN == "" && c.Dialect == "sqlite" {
		c.DSN = "kernel.db"
	}
}

func (c *StorageConfig) Validate() error {
	switch c.Dialect {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported storage dialect: %s", c.Dialect)
	}
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	return nil
}

// ToolEndpointConfig is the base URL + timeout for one tool microservice.
type ToolEndpointConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout_seconds,omitempty"`
}
