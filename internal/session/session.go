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

// Package session implements Session Memory: an append-only conversational
// log per session, persisted as one JSON file per session under a
// hierarchical active/archive/projects/tests layout (spec §4.3).
package session

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kernelmesh/orchestrator/internal/docstore"
)

// Role is the sender of a SessionMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry in a Session's ordered log.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// fileRecord is the on-disk shape of a session file.
type fileRecord struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Sanitize validates a session id is alnum/dash/underscore only, per
// spec §3.
func Sanitize(id string) (string, error) {
	if id == "" {
		return "default", nil
	}
	if !sessionIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid session id %q: must be alnum, dash, underscore only", id)
	}
	return id, nil
}

// Store manages Session files under root, laid out hierarchically:
// active/ (recent), archive/YYYY-MM/ (moved by age), projects/<project>/
// (when metadata.project is present on first write), tests/ (session id
// prefix "test_"). All moves/writes happen under a per-session lock.
type Store struct {
	root     string
	embedder docstore.Embedder // optional; nil disables embedding search

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds a Store rooted at root, creating the active/ subdirectory.
func New(root string, embedder docstore.Embedder) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "active"), 0o755); err != nil {
		return nil, fmt.Errorf("create session root: %w", err)
	}
	return &Store{root: root, embedder: embedder, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// activePath is where a session id currently lives if it has never been
// archived or bucketed into projects/tests.
func (s *Store) activePath(id string) string {
	if strings.HasPrefix(id, "test_") {
		return filepath.Join(s.root, "tests", id+".json")
	}
	return filepath.Join(s.root, "active", id+".json")
}

// locate finds the existing file for id across all buckets, or returns
// activePath(id) if none exists yet.
func (s *Store) locate(id string) (string, bool) {
	candidates := []string{filepath.Join(s.root, "active", id+".json"), filepath.Join(s.root, "tests", id+".json")}
	projectsDir := filepath.Join(s.root, "projects")
	if entries, err := os.ReadDir(projectsDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				candidates = append(candidates, filepath.Join(projectsDir, e.Name(), id+".json"))
			}
		}
	}
	archiveDir := filepath.Join(s.root, "archive")
	if months, err := os.ReadDir(archiveDir); err == nil {
		for _, m := range months {
			if m.IsDir() {
				candidates = append(candidates, filepath.Join(archiveDir, m.Name(), id+".json"))
			}
		}
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, true
		}
	}
	return s.activePath(id), false
}

func (s *Store) readRecord(path string) (*fileRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return &rec, nil
}

func (s *Store) writeRecord(path string, rec *fileRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// AddMessage appends msg to id's log, creating the session on first
// write. If metadata.project is present it is routed into
// projects/<project>/ instead of active/.
func (s *Store) AddMessage(id string, msg Message, firstWriteMetadata map[string]any) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	path, existed := s.locate(id)
	now := time.Now()
	if !existed {
		if project, ok := firstWriteMetadata["project"].(string); ok && project != "" {
			path = filepath.Join(s.root, "projects", project, id+".json")
		}
	}

	rec, err := s.readRecord(path)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &fileRecord{SessionID: id, CreatedAt: now}
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	if s.embedder != nil && msg.Embedding == nil {
		if vec, err := s.embedder.Embed(msg.Content); err == nil {
			msg.Embedding = vec
		}
	}
	rec.Messages = append(rec.Messages, msg)
	rec.UpdatedAt = now
	return s.writeRecord(path, rec)
}

// GetMessages returns the tail of id's log, up to limit messages (0 means
// all).
func (s *Store) GetMessages(id string, limit int) ([]Message, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	path, _ := s.locate(id)
	rec, err := s.readRecord(path)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if limit <= 0 || limit >= len(rec.Messages) {
		return rec.Messages, nil
	}
	return rec.Messages[len(rec.Messages)-limit:], nil
}

// GetContext renders the last maxMessages messages as deterministic
// "[role] content\n" text, newest-at-bottom (spec §4.3).
func (s *Store) GetContext(id string, maxMessages int) (string, error) {
	msgs, err := s.GetMessages(id, maxMessages)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return b.String(), nil
}

// SearchHit is one match from Search.
type SearchHit struct {
	SessionID  string
	Message    Message
	Similarity float32 // 0 when matched by substring only
}

// Search does a case-insensitive substring match over session(s); when
// the Store has an embedder configured it additionally computes cosine
// similarity against per-message embeddings and merges results, sorted by
// similarity then recency; every hit is returned (spec §4.3).
func (s *Store) Search(query string, sessionID string) ([]SearchHit, error) {
	ids, err := s.candidateSessionIDs(sessionID)
	if err != nil {
		return nil, err
	}

	var queryVec []float32
	if s.embedder != nil {
		queryVec, _ = s.embedder.Embed(query)
	}
	lowerQuery := strings.ToLower(query)

	var hits []SearchHit
	for _, id := range ids {
		msgs, err := s.GetMessages(id, 0)
		if err != nil {
			continue
		}
		for _, m := range msgs {
			substrMatch := strings.Contains(strings.ToLower(m.Content), lowerQuery)
			var sim float32
			if queryVec != nil && m.Embedding != nil {
				sim = cosine(queryVec, m.Embedding)
			}
			if substrMatch || sim > 0 {
				hits = append(hits, SearchHit{SessionID: id, Message: m, Similarity: sim})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Message.Timestamp.After(hits[j].Message.Timestamp)
	})
	return hits, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}

func (s *Store) candidateSessionIDs(sessionID string) ([]string, error) {
	if sessionID != "" {
		return []string{sessionID}, nil
	}
	var ids []string
	for _, dir := range []string{"active", "tests"} {
		ids = append(ids, s.listDir(filepath.Join(s.root, dir))...)
	}
	projectsDir := filepath.Join(s.root, "projects")
	if entries, err := os.ReadDir(projectsDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				ids = append(ids, s.listDir(filepath.Join(projectsDir, e.Name()))...)
			}
		}
	}
	return ids, nil
}

func (s *Store) listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			out = append(out, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	return out
}

// ClearSession deletes a session's file wherever it currently lives.
func (s *Store) ClearSession(id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	path, existed := s.locate(id)
	if !existed {
		return nil
	}
	return os.Remove(path)
}

// ListSessions returns every known session id across active, projects,
// and tests buckets (archived sessions are excluded from the live list).
func (s *Store) ListSessions() []string {
	ids, _ := s.candidateSessionIDs("")
	return ids
}

// ArchiveSweep moves active sessions whose UpdatedAt is older than
// olderThan into archive/YYYY-MM/ (spec §4.3: "older than 7 days").
func (s *Store) ArchiveSweep(olderThan time.Duration) (int, error) {
	activeDir := filepath.Join(s.root, "active")
	entries, err := os.ReadDir(activeDir)
	if err != nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	moved := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		lock := s.lockFor(id)
		lock.Lock()
		path := filepath.Join(activeDir, e.Name())
		rec, err := s.readRecord(path)
		if err != nil || rec == nil {
			lock.Unlock()
			continue
		}
		if rec.UpdatedAt.Before(cutoff) {
			bucket := rec.UpdatedAt.Format("2006-01")
			dest := filepath.Join(s.root, "archive", bucket, e.Name())
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err == nil {
				if err := os.Rename(path, dest); err == nil {
					moved++
				}
			}
		}
		lock.Unlock()
	}
	return moved, nil
}

