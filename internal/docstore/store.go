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
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kernelmesh/orchestrator/internal/databases"
	"github.com/kernelmesh/orchestrator/internal/observability"
	"github.com/kernelmesh/orchestrator/internal/storage"
)

// ErrEmbeddingUnavailable is returned by AddDocument when the configured
// embedder refuses to produce a vector (spec §4.2 failure model).
var ErrEmbeddingUnavailable = fmt.Errorf("embedding_unavailable")

// Store is the Document Store: chunking, embedding, similarity search,
// dataset taxonomy, and retention, all backed by the shared relational
// storage.DB. Writes serialize behind a single process-wide writer lock;
// reads proceed concurrently with each other but not with a writer
// (spec §4.2, §5).
type Store struct {
	db       *storage.DB
	embedder Embedder
	cfg      ChunkerConfig
	tracer   *observability.Tracer
	metrics  observability.Recorder

	// vectorDB is an optional external similarity index (spec §4.2); nil
	// keeps the default in-process cosine scan over the chunks table.
	vectorDB         databases.DatabaseProvider
	vectorCollection string

	// mu is the single-writer/many-readers lock: AddDocument/Delete*/
	// Cleanup take Lock(); Query/List/Get take RLock().
	mu sync.RWMutex
}

// New builds a Store. embedder may be nil only in tests that never call
// AddDocument/Query.
func New(db *storage.DB, embedder Embedder) *Store {
	return &Store{db: db, embedder: embedder, cfg: DefaultChunkerConfig, metrics: observability.NoopMetrics{}}
}

// WithObservability attaches tracer/metrics to an existing Store, either
// of which may be nil.
func (s *Store) WithObservability(tracer *observability.Tracer, metrics observability.Recorder) *Store {
	s.tracer = tracer
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// AddDocument ingests content under dataset/filename with metadata,
// following the pipeline of spec §4.2: canonicalize, hash, version-archive
// on overwrite, chunk, embed, and write atomically.
func (s *Store) AddDocument(ctx context.Context, datasetTag, filename, content string, metadata map[string]any) (string, error) {
	start := time.Now()
	dataset := resolveDataset(datasetTag, metadata)
	metadata = sanitizeMetadata(metadata)

	id := documentID(dataset, filename, content)

	chunks := Chunk(content, s.cfg)
	for i := range chunks {
		chunks[i].DocumentID = id
		vec, err := s.embedder.Embed(chunks[i].Text)
		if err != nil {
			s.metrics.RecordRAGDocError(string(dataset))
			return "", fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
		}
		chunks[i].Embedding = vec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := s.loadDocumentTx(ctx, tx, id)
	if err != nil && err != sql.ErrNoRows {
		return "", err
	}

	now := time.Now()
	version := 1
	if existing != nil {
		nextVersion, err := s.nextVersionNumberTx(ctx, tx, id)
		if err != nil {
			return "", err
		}
		metaJSON, _ := json.Marshal(existing.Metadata)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_versions (document_id, version, content, metadata, created_at) VALUES (`+
				s.db.Placeholder(1)+","+s.db.Placeholder(2)+","+s.db.Placeholder(3)+","+s.db.Placeholder(4)+","+s.db.Placeholder(5)+")",
			id, nextVersion, existing.Content, string(metaJSON), existing.UpdatedAt); err != nil {
			return "", fmt.Errorf("archive version: %w", err)
		}
		version = existing.Version + 1

		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = `+s.db.Placeholder(1), id); err != nil {
			return "", fmt.Errorf("clear old chunks: %w", err)
		}
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	if existing == nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (id, dataset, filename, content, metadata, version, created_at, updated_at) VALUES (`+
				placeholders(s.db, 8)+")",
			id, string(dataset), filename, content, string(metaJSON), version, now, now)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET dataset=`+s.db.Placeholder(1)+`, filename=`+s.db.Placeholder(2)+`, content=`+s.db.Placeholder(3)+
				`, metadata=`+s.db.Placeholder(4)+`, version=`+s.db.Placeholder(5)+`, updated_at=`+s.db.Placeholder(6)+` WHERE id=`+s.db.Placeholder(7),
			string(dataset), filename, content, string(metaJSON), version, now, id)
	}
	if err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (document_id, order_index, text, embedding) VALUES (`+placeholders(s.db, 4)+")",
			id, c.OrderIndex, c.Text, encodeEmbedding(c.Embedding)); err != nil {
			return "", fmt.Errorf("write chunk %d: %w", c.OrderIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if err := s.upsertVectors(ctx, dataset, filename, chunks); err != nil {
		s.metrics.RecordRAGDocError(string(dataset))
		return "", err
	}
	s.metrics.RecordRAGDocIndexed(string(dataset), time.Since(start))
	return id, nil
}

// resolveDataset canonicalizes an explicit dataset tag, or when empty,
// routes by metadata.type (spec §4.2).
func resolveDataset(tag string, metadata map[string]any) Dataset {
	if tag != "" {
		return CanonicalizeDataset(tag)
	}
	if metadata != nil {
		if t, ok := metadata["type"].(string); ok {
			return RouteByMetadataType(t)
		}
	}
	return DatasetScratchpad
}

// sanitizeMetadata drops unrecognized priority/type values rather than
// failing the ingest (spec §4.2 step 1).
func sanitizeMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if k == "priority" {
			if p, ok := v.(string); !ok || !validPriority(p) {
				continue
			}
		}
		out[k] = v
	}
	return out
}

func placeholders(db *storage.DB, n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ","
		}
		out += db.Placeholder(i)
	}
	return out
}

type documentRow struct {
	Document
}

func (s *Store) loadDocumentTx(ctx context.Context, tx *sql.Tx, id string) (*documentRow, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, dataset, filename, content, metadata, version, created_at, updated_at FROM documents WHERE id = `+s.db.Placeholder(1), id)
	return scanDocumentRow(row)
}

func scanDocumentRow(row *sql.Row) (*documentRow, error) {
	var d documentRow
	var metaJSON string
	var dataset string
	if err := row.Scan(&d.ID, &dataset, &d.Filename, &d.Content, &metaJSON, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Dataset = Dataset(dataset)
	_ = json.Unmarshal([]byte(metaJSON), &d.Metadata)
	return &d, nil
}

func (s *Store) nextVersionNumberTx(ctx context.Context, tx *sql.Tx, id string) (int, error) {
	var max sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(version) FROM document_versions WHERE document_id = `+s.db.Placeholder(1), id).Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64) + 1, nil
}

// Query performs a cosine-similarity search over dataset, returning the
// top_k results ordered by similarity desc, ties broken by smaller
// (document_id, order_index) (spec §4.2).
func (s *Store) Query(ctx context.Context, datasetTag, text string, topK int, filters *QueryFilters) ([]QueryResult, error) {
	dataset := CanonicalizeDataset(datasetTag)
	if topK <= 0 {
		topK = 5
	}

	start := time.Now()
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.StartMemorySearch(ctx, string(dataset), topK)
		defer span.End()
	}

	queryVec, err := s.embedder.Embed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	if s.vectorDB != nil {
		results, err := s.queryVectors(ctx, dataset, queryVec, topK, filters)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordRAGSearch(string(dataset), time.Since(start), len(results))
		return results, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.document_id, c.order_index, c.text, c.embedding, d.filename, d.metadata
		 FROM chunks c JOIN documents d ON d.id = c.document_id
		 WHERE d.dataset = `+s.db.Placeholder(1), string(dataset))
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var docID, text2, filename, metaJSON string
		var orderIndex int
		var embBytes []byte
		if err := rows.Scan(&docID, &orderIndex, &text2, &embBytes, &filename, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		var meta map[string]any
		_ = json.Unmarshal([]byte(metaJSON), &meta)

		if filters != nil && !passesFilters(meta, filters) {
			continue
		}

		sim := cosineSimilarity(queryVec, decodeEmbedding(embBytes))
		results = append(results, QueryResult{
			ChunkID:    fmt.Sprintf("%s:%d", docID, orderIndex),
			DocumentID: docID,
			OrderIndex: orderIndex,
			Text:       text2,
			Filename:   filename,
			Metadata:   meta,
			Similarity: sim,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].OrderIndex < results[j].OrderIndex
	})

	if len(results) > topK {
		results = results[:topK]
	}
	s.metrics.RecordRAGSearch(string(dataset), time.Since(start), len(results))
	return results, nil
}

func passesFilters(meta map[string]any, filters *QueryFilters) bool {
	if filters.Type != "" {
		if t, ok := meta["type"].(string); !ok || t != filters.Type {
			return false
		}
	}
	if filters.MinPriority != "" {
		p, _ := meta["priority"].(string)
		if !validPriority(p) || priorityRank[p] < priorityRank[filters.MinPriority] {
			return false
		}
	}
	return true
}

// DeleteDocument removes a document and cascades to its chunks; existing
// DocumentVersion rows are retained (spec testable property #4).
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vectorDB != nil {
		if err := s.deleteVectorsForDocumentTx(ctx, id); err != nil {
			return err
		}
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = `+s.db.Placeholder(1), id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = `+s.db.Placeholder(1), id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// DeleteDataset removes every document (and cascaded chunks) in dataset,
// along with their version history.
func (s *Store) DeleteDataset(ctx context.Context, datasetTag string) error {
	dataset := CanonicalizeDataset(datasetTag)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id IN (SELECT id FROM documents WHERE dataset = `+s.db.Placeholder(1)+")", string(dataset)); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM document_versions WHERE document_id IN (SELECT id FROM documents WHERE dataset = `+s.db.Placeholder(1)+")", string(dataset)); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE dataset = `+s.db.Placeholder(1), string(dataset)); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// ListDocuments returns every document in dataset (content included).
func (s *Store) ListDocuments(ctx context.Context, datasetTag string) ([]Document, error) {
	dataset := CanonicalizeDataset(datasetTag)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset, filename, content, metadata, version, created_at, updated_at FROM documents WHERE dataset = `+s.db.Placeholder(1), string(dataset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var metaJSON, ds string
		if err := rows.Scan(&d.ID, &ds, &d.Filename, &d.Content, &metaJSON, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Dataset = Dataset(ds)
		_ = json.Unmarshal([]byte(metaJSON), &d.Metadata)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListDatasets returns the fixed taxonomy (spec §4.2).
func (s *Store) ListDatasets() []Dataset {
	return []Dataset{DatasetAgentCore, DatasetContextFlow, DatasetAgentMemory, DatasetProjects, DatasetScratchpad}
}

// DatasetInfo summarizes one dataset's current occupancy.
type DatasetInfo struct {
	Dataset       Dataset
	DocumentCount int
	ChunkCount    int
}

// GetDatasetInfo reports document/chunk counts for dataset.
func (s *Store) GetDatasetInfo(ctx context.Context, datasetTag string) (DatasetInfo, error) {
	dataset := CanonicalizeDataset(datasetTag)
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := DatasetInfo{Dataset: dataset}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE dataset = `+s.db.Placeholder(1), string(dataset)).Scan(&info.DocumentCount); err != nil {
		return info, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id IN (SELECT id FROM documents WHERE dataset = `+s.db.Placeholder(1)+")", string(dataset)).Scan(&info.ChunkCount); err != nil {
		return info, err
	}
	return info, nil
}

// CleanupResult is the outcome of a retention sweep.
type CleanupResult struct {
	Deleted       int
	RetentionDays int
}

// CleanupMemory deletes scratchpad documents older than retentionDays
// (default 7), cascading to their chunks. Idempotent (spec §4.2).
func (s *Store) CleanupMemory(ctx context.Context, retentionDays int) (CleanupResult, error) {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE dataset = `+s.db.Placeholder(1)+` AND created_at < `+s.db.Placeholder(2),
		string(DatasetScratchpad), cutoff)
	if err != nil {
		return CleanupResult{}, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return CleanupResult{}, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = `+s.db.Placeholder(1), id); err != nil {
			return CleanupResult{}, err
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = `+s.db.Placeholder(1), id); err != nil {
			return CleanupResult{}, err
		}
	}
	return CleanupResult{Deleted: len(ids), RetentionDays: retentionDays}, nil
}

// SweepRetention applies every dataset's retention policy (scratchpad 7d,
// context_flow 90d, projects 180d; agent_core and agent_memory never
// expire). Used by the Cognitive Engine's autonomous cycle rather than
// the user-facing cleanup_memory action, which always targets scratchpad.
func (s *Store) SweepRetention(ctx context.Context) (map[Dataset]CleanupResult, error) {
	out := make(map[Dataset]CleanupResult)
	for _, ds := range s.ListDatasets() {
		retention, expires := retentionOf(ds)
		if !expires {
			continue
		}
		days := int(retention / (24 * time.Hour))
		res, err := s.cleanupDataset(ctx, ds, days)
		if err != nil {
			return out, err
		}
		out[ds] = res
	}
	return out, nil
}

func (s *Store) cleanupDataset(ctx context.Context, dataset Dataset, retentionDays int) (CleanupResult, error) {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE dataset = `+s.db.Placeholder(1)+` AND created_at < `+s.db.Placeholder(2),
		string(dataset), cutoff)
	if err != nil {
		return CleanupResult{}, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return CleanupResult{}, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = `+s.db.Placeholder(1), id); err != nil {
			return CleanupResult{}, err
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = `+s.db.Placeholder(1), id); err != nil {
			return CleanupResult{}, err
		}
	}
	return CleanupResult{Deleted: len(ids), RetentionDays: retentionDays}, nil
}
