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

// Package docstore implements the Document Store: the kernel's
// Retrieval-Augmented Memory subsystem. It owns document ingestion
// (chunking + embedding), similarity search with metadata filters, the
// fixed dataset taxonomy, and the scratchpad retention sweep.
package docstore

import "time"

// Document is a top-level ingested unit, uniquely identified by a
// deterministic hash of (dataset, filename, leading content).
type Document struct {
	ID        string
	Dataset   Dataset
	Filename  string
	Content   string
	Metadata  map[string]any
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentVersion is an append-only archive of a Document's prior content,
// snapshotted whenever a re-ingest overwrites an existing document.
type DocumentVersion struct {
	DocumentID string
	Version    int
	Content    string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// Chunk is one slice of a Document's content paired with its embedding;
// the atomic unit of similarity search.
type Chunk struct {
	DocumentID string
	OrderIndex int
	Text       string
	Embedding  []float32
}

// QueryResult is one hit returned by Query, joining a Chunk with its
// owning Document's filename and metadata.
type QueryResult struct {
	ChunkID    string
	DocumentID string
	OrderIndex int
	Text       string
	Filename   string
	Metadata   map[string]any
	Similarity float32
}

// QueryFilters narrows a Query by the owning document's metadata.
type QueryFilters struct {
	Type        string
	MinPriority string
}

// Embedder is the pluggable embedding function the Document Store and
// Session Memory share: content in, fixed-dimension vector out. It wraps
// whichever internal/embedders.EmbedderProvider was configured.
type Embedder interface {
	Embed(text string) ([]float32, error)
	Dimension() int
}
