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
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kernelmesh/orchestrator/internal/databases"
)

// WithVectorStore attaches an external vector database (spec §4.2's
// "pluggable embedder" companion: a pluggable similarity index). When set,
// AddDocument mirrors every chunk's embedding into vectorDB under
// collection and Query searches vectorDB instead of the in-process
// cosine scan over the relational chunks table. vectorDB may be nil to
// fall back to the built-in scan, which remains the default.
func (s *Store) WithVectorStore(vectorDB databases.DatabaseProvider, collection string) *Store {
	s.vectorDB = vectorDB
	s.vectorCollection = collection
	return s
}

func chunkVectorID(documentID string, orderIndex int) string {
	return documentID + ":" + strconv.Itoa(orderIndex)
}

func splitChunkVectorID(id string) (documentID string, orderIndex int) {
	idx := strings.LastIndex(id, ":")
	if idx < 0 {
		return id, 0
	}
	n, _ := strconv.Atoi(id[idx+1:])
	return id[:idx], n
}

// upsertVectors mirrors chunks into the configured external vector store.
// A failure here does not roll back the relational write: the relational
// table remains the source of truth (spec §4.2), the vector index is a
// queryable cache over it.
func (s *Store) upsertVectors(ctx context.Context, dataset Dataset, filename string, chunks []Chunk) error {
	if s.vectorDB == nil {
		return nil
	}
	for _, c := range chunks {
		meta := map[string]any{
			"document_id": c.DocumentID,
			"dataset":     string(dataset),
			"filename":    filename,
			"order_index": c.OrderIndex,
			"content":     c.Text,
		}
		if err := s.vectorDB.Upsert(ctx, s.vectorCollection, chunkVectorID(c.DocumentID, c.OrderIndex), c.Embedding, meta); err != nil {
			return fmt.Errorf("vector upsert chunk %d: %w", c.OrderIndex, err)
		}
	}
	return nil
}

// deleteVectorsForDocumentTx removes every chunk vector belonging to id
// from the external vector store, ahead of the relational cascade delete.
func (s *Store) deleteVectorsForDocumentTx(ctx context.Context, id string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT order_index FROM chunks WHERE document_id = `+s.db.Placeholder(1), id)
	if err != nil {
		return fmt.Errorf("list chunk order for vector delete: %w", err)
	}
	var orders []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			rows.Close()
			return err
		}
		orders = append(orders, idx)
	}
	rows.Close()

	for _, idx := range orders {
		if err := s.vectorDB.Delete(ctx, s.vectorCollection, chunkVectorID(id, idx)); err != nil {
			return fmt.Errorf("vector delete chunk %d: %w", idx, err)
		}
	}
	return nil
}

// queryVectors searches the external vector store and maps its results
// onto QueryResult, applying the same metadata filters as the in-process
// scan so callers see identical semantics regardless of backend.
func (s *Store) queryVectors(ctx context.Context, dataset Dataset, queryVec []float32, topK int, filters *QueryFilters) ([]QueryResult, error) {
	hits, err := s.vectorDB.Search(ctx, s.vectorCollection, queryVec, topK*2+topK) // over-fetch to survive post-filtering
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var out []QueryResult
	for _, h := range hits {
		meta := make(map[string]any, len(h.Metadata))
		for k, v := range h.Metadata {
			meta[k] = v
		}
		if ds, ok := meta["dataset"].(string); ok && ds != string(dataset) {
			continue
		}
		docID, orderIndex := splitChunkVectorID(h.ID)
		// Add the owning document's metadata (type, priority, ...) so the
		// filters see the same fields as in the in-process scan.
		var docMetaJSON string
		if err := s.db.QueryRowContext(ctx, `SELECT metadata FROM documents WHERE id = `+s.db.Placeholder(1), docID).Scan(&docMetaJSON); err == nil {
			var docMeta map[string]any
			_ = json.Unmarshal([]byte(docMetaJSON), &docMeta)
			for k, v := range docMeta {
				if _, exists := meta[k]; !exists {
					meta[k] = v
				}
			}
		}
		if filters != nil && !passesFilters(meta, filters) {
			continue
		}
		filename, _ := meta["filename"].(string)
		out = append(out, QueryResult{
			ChunkID:    h.ID,
			DocumentID: docID,
			OrderIndex: orderIndex,
			Text:       h.Content,
			Filename:   filename,
			Metadata:   meta,
			Similarity: h.Score,
		})
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}
