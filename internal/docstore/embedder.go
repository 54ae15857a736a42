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

package docstore

import "github.com/kernelmesh/orchestrator/internal/embedders"

// providerEmbedder adapts an embedders.EmbedderProvider (ollama/openai/
// cohere) to the narrower Embedder interface the Document Store needs.
type providerEmbedder struct {
	provider embedders.EmbedderProvider
}

// WrapProvider adapts a configured EmbedderProvider for use by the
// Document Store and Session Memory.
func WrapProvider(p embedders.EmbedderProvider) Embedder {
	return &providerEmbedder{provider: p}
}

func (e *providerEmbedder) Embed(text string) ([]float32, error) {
	return e.provider.Embed(text)
}

func (e *providerEmbedder) Dimension() int {
	return e.provider.GetDimension()
}
