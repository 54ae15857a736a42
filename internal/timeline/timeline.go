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

// Package timeline implements the persistent, modality-tagged append-only
// event log shared across the whole kernel (spec §4.4). Writers take a
// short mutex around the append; reads take no lock and query the table
// directly, per the concurrency model of spec §5.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/kernelmesh/orchestrator/internal/storage"
)

// Modality tags a TimelineEvent for filtered views.
type Modality string

const (
	ModalityText      Modality = "text"
	ModalityAudio     Modality = "audio"
	ModalityVision    Modality = "vision"
	ModalityDocuments Modality = "documents"
	ModalitySystem    Modality = "system"
)

// Event is one append-only record.
type Event struct {
	ID        int64
	Timestamp time.Time
	SessionID string
	EventType string
	Data      map[string]any
	Metadata  map[string]any
	Modality  Modality
}

var (
	audioRe  = regexp.MustCompile(`(?i)audio`)
	visionRe = regexp.MustCompile(`(?i)vision|image`)
	docRe    = regexp.MustCompile(`(?i)document`)
	sysRe    = regexp.MustCompile(`(?i)system`)
)

// deriveModality scans eventType for tokens identifying its modality,
// defaulting to text (spec §4.4).
func deriveModality(eventType string) Modality {
	switch {
	case audioRe.MatchString(eventType):
		return ModalityAudio
	case visionRe.MatchString(eventType):
		return ModalityVision
	case docRe.MatchString(eventType):
		return ModalityDocuments
	case sysRe.MatchString(eventType):
		return ModalitySystem
	default:
		return ModalityText
	}
}

// MaxEventsPerSession is the hard cap triggering oldest-trim (spec §4.4).
const MaxEventsPerSession = 1_000_000

// Timeline is the append-only, process-wide event log.
type Timeline struct {
	db *storage.DB

	mu sync.Mutex
}

// New builds a Timeline over the shared relational store.
func New(db *storage.DB) *Timeline {
	return &Timeline{db: db}
}

// Append writes a new event. If modality is empty it is derived from
// eventType. Callers are not notified when a hard cap trim occurs.
func (t *Timeline) Append(ctx context.Context, sessionID, eventType string, data, metadata map[string]any, modality Modality) (Event, error) {
	if modality == "" {
		modality = deriveModality(eventType)
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal data: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return Event{}, fmt.Errorf("marshal metadata: %w", err)
	}
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.db.ExecContext(ctx,
		`INSERT INTO timeline_events (ts, session_id, event_type, modality, data, metadata) VALUES (`+
			placeholders(t.db, 6)+")",
		now, sessionID, eventType, string(modality), string(dataJSON), string(metaJSON))
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		id = 0
	}

	t.trimIfNeeded(ctx, sessionID)

	return Event{
		ID: id, Timestamp: now, SessionID: sessionID, EventType: eventType,
		Data: data, Metadata: metadata, Modality: modality,
	}, nil
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

// trimIfNeeded deletes the oldest rows for sessionID once the count
// exceeds MaxEventsPerSession. Caller already holds t.mu.
func (t *Timeline) trimIfNeeded(ctx context.Context, sessionID string) {
	var count int
	if err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM timeline_events WHERE session_id = `+t.db.Placeholder(1), sessionID).Scan(&count); err != nil {
		return
	}
	if count <= MaxEventsPerSession {
		return
	}
	excess := count - MaxEventsPerSession
	_, _ = t.db.ExecContext(ctx,
		`DELETE FROM timeline_events WHERE id IN (
			SELECT id FROM timeline_events WHERE session_id = `+t.db.Placeholder(1)+`
			ORDER BY ts ASC LIMIT `+fmt.Sprintf("%d", excess)+`
		)`, sessionID)
}

// Filter narrows a Query.
type Filter struct {
	SessionID string
	EventType string
	Modality  Modality
	Since     *time.Time
	Limit     int
}

// Query returns events matching filter, always newest-first. Reads are
// lock-free: no mutex is held while scanning rows.
func (t *Timeline) Query(ctx context.Context, f Filter) ([]Event, error) {
	where := ""
	args := []any{}
	add := func(cond string, val any) {
		if where == "" {
			where = "WHERE " + cond
		} else {
			where += " AND " + cond
		}
		args = append(args, val)
	}
	if f.SessionID != "" {
		add(fmt.Sprintf("session_id = %s", t.db.Placeholder(len(args)+1)), f.SessionID)
	}
	if f.EventType != "" {
		add(fmt.Sprintf("event_type = %s", t.db.Placeholder(len(args)+1)), f.EventType)
	}
	if f.Modality != "" {
		add(fmt.Sprintf("modality = %s", t.db.Placeholder(len(args)+1)), string(f.Modality))
	}
	if f.Since != nil {
		add(fmt.Sprintf("ts >= %s", t.db.Placeholder(len(args)+1)), *f.Since)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT id, ts, session_id, event_type, modality, data, metadata FROM timeline_events %s ORDER BY ts DESC, id DESC LIMIT %d`, where, limit)
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var modality, dataJSON, metaJSON string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.SessionID, &e.EventType, &modality, &dataJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Modality = Modality(modality)
		_ = json.Unmarshal([]byte(dataJSON), &e.Data)
		_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
		out = append(out, e)
	}
	return out, rows.Err()
}
