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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAMLOverlaysBase(t *testing.T) {
	base := FromEnvironment()

	path := filepath.Join(t.TempDir(), "kernel.yaml")
	contents := []byte("listen_addr: \":9999\"\nreasoning_llm:\n  type: openai\n  model: gpt-4o\n")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	cfg, err := LoadFromYAML(path, base)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "openai", cfg.ReasoningLLM.Type)
	assert.Equal(t, "gpt-4o", cfg.ReasoningLLM.Model)

	// Fields the file doesn't mention keep the base's values.
	assert.Equal(t, base.Storage, cfg.Storage)
	assert.Equal(t, base.GRPCHealthAddr, cfg.GRPCHealthAddr)
}

func TestLoadFromYAMLMissingFile(t *testing.T) {
	_, err := LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"), FromEnvironment())
	assert.Error(t, err)
}
