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

package toolclient

import (
	"context"

	"github.com/kernelmesh/orchestrator/internal/config"
)

// Caller is the interface the Executor and Context Builder program against.
// It lets tests substitute a fake implementation with no network I/O.
type Caller interface {
	Call(ctx context.Context, action string, args map[string]any) Result
	Health(ctx context.Context) HealthStatus
}

// Registry is the static tool_name -> client mapping. It is immutable after
// startup (spec §5: "Tool-Client Registry: immutable after startup").
type Registry struct {
	clients map[string]Caller
}

// NewRegistry builds a Registry with one HTTP Client per configured tool
// endpoint.
func NewRegistry(tools map[string]config.ToolEndpointConfig) *Registry {
	clients := make(map[string]Caller, len(tools))
	for name, cfg := range tools {
		clients[name] = New(name, cfg)
	}
	return &Registry{clients: clients}
}

// NewRegistryFromClients builds a Registry from already-constructed
// Callers, primarily for tests wiring in fakes.
func NewRegistryFromClients(clients map[string]Caller) *Registry {
	return &Registry{clients: clients}
}

// Resolve returns the Caller for tool, or nil if tool is not registered.
func (r *Registry) Resolve(tool string) Caller {
	return r.clients[tool]
}

// HealthAll calls Health on every registered client and returns a
// per-tool map of the results, used by the kernel's /health aggregation
// (spec §6: "any mismatch is reported at /health aggregation but does not
// prevent boot").
func (r *Registry) HealthAll(ctx context.Context) map[string]HealthStatus {
	out := make(map[string]HealthStatus, len(r.clients))
	for name, c := range r.clients {
		out[name] = c.Health(ctx)
	}
	return out
}
