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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromYAML reads a YAML file at path and overlays it onto a copy of
// base. Fields left unset in the file keep base's value, so callers
// typically pass the result of FromEnvironment as base and let a config
// file override only the keys it names.
func LoadFromYAML(path string, base *KernelConfig) (*KernelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := *base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Storage.SetDefaults()
	cfg.Embedder.SetDefaults()
	cfg.ReasoningLLM.SetDefaults()
	cfg.CodingLLM.SetDefaults()
	cfg.VisionLLM.SetDefaults()
	cfg.Observability.Tracing.SetDefaults()
	cfg.Observability.Metrics.SetDefaults()

	return &cfg, nil
}
