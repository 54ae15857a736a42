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

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortContentIsSingleChunk(t *testing.T) {
	chunks := Chunk("hello world", DefaultChunkerConfig)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].OrderIndex)
}

func TestChunkLongContentReconstructsAndOverlaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("the quick brown fox jumps over the lazy dog. ")
	}
	content := b.String()

	chunks := Chunk(content, ChunkerConfig{TargetSize: 200, Overlap: 40})
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.OrderIndex)
		assert.NotEmpty(t, c.Text)
	}
	// Every chunk after the first should start with the previous chunk's
	// trailing overlap.
	for i := 1; i < len(chunks); i++ {
		prevTail := tailOverlap(chunks[i-1].Text, 40)
		assert.True(t, strings.HasPrefix(chunks[i].Text, prevTail))
	}
}

func TestChunkEmptyContent(t *testing.T) {
	assert.Nil(t, Chunk("", DefaultChunkerConfig))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, float32(0), cosineSimilarity([]float32{1}, []float32{1, 2}))
}

func TestCanonicalizeDataset(t *testing.T) {
	assert.Equal(t, DatasetAgentCore, CanonicalizeDataset("rules"))
	assert.Equal(t, DatasetAgentCore, CanonicalizeDataset("core"))
	assert.Equal(t, DatasetProjects, CanonicalizeDataset("project"))
	assert.Equal(t, DatasetScratchpad, CanonicalizeDataset("unknown-tag"))
}

func TestRouteByMetadataType(t *testing.T) {
	assert.Equal(t, DatasetAgentCore, RouteByMetadataType("core_rule"))
	assert.Equal(t, DatasetScratchpad, RouteByMetadataType("nonsense"))
}

func TestDocumentIDIsDeterministic(t *testing.T) {
	id1 := documentID(DatasetProjects, "readme.md", "hello")
	id2 := documentID(DatasetProjects, "readme.md", "hello")
	id3 := documentID(DatasetProjects, "readme.md", "goodbye")
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 3.0, 0}
	encoded := encodeEmbedding(vec)
	decoded := decodeEmbedding(encoded)
	assert.Equal(t, vec, decoded)
}
