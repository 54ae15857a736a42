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

// Package cognitive implements the kernel's background self-maintenance
// behaviors: summarizing a session's Timeline into RAG, folding vision and
// audio tool output back into durable memory, proposing next actions, and
// running all of the above as one best-effort autonomous cycle (spec
// §4.8). Every entry point is independent: a failure in one never aborts
// the others.
package cognitive

import (
	"context"
	"fmt"
	"strings"

	"github.com/kernelmesh/orchestrator/internal/catalog"
	"github.com/kernelmesh/orchestrator/internal/contextbuilder"
	"github.com/kernelmesh/orchestrator/internal/docstore"
	"github.com/kernelmesh/orchestrator/internal/llm"
	"github.com/kernelmesh/orchestrator/internal/session"
	"github.com/kernelmesh/orchestrator/internal/timeline"
)

// summaryThreshold is the minimum count of new events since the last
// summary before autosummarize acts without force=true (spec §4.8).
const summaryThreshold = 50

// EventSummaryGenerated is the Timeline marker event recording the last
// autosummarize run for a session, so later runs know where to resume.
const EventSummaryGenerated = "summary_generated"

// EventVisionSynced and EventAudioSynced are the Timeline marker events
// recording the last sync_vision_to_rag / sync_audio_to_memory run for a
// session, mirroring EventSummaryGenerated's resume-point pattern. The
// Timeline is append-only, so a per-event "already synced" flag can never
// be written back onto the synced event itself; a trailing marker event
// carrying the high-water event id is how this engine remembers where it
// left off instead.
const (
	EventVisionSynced = "vision_synced"
	EventAudioSynced  = "audio_synced"
)

// Engine is the Cognitive Engine: autosummarize, vision/audio sync,
// proactive suggestions, and the autonomous cycle that sequences them.
type Engine struct {
	Sessions *session.Store
	RAG      *docstore.Store
	Timeline *timeline.Timeline
	Models   *llm.ModelRegistry
}

// New builds an Engine over the kernel's shared stores.
func New(sessions *session.Store, rag *docstore.Store, tl *timeline.Timeline, models *llm.ModelRegistry) *Engine {
	return &Engine{Sessions: sessions, RAG: rag, Timeline: tl, Models: models}
}

// SummaryResult reports whether autosummarize actually ran.
type SummaryResult struct {
	Ran         bool
	DocumentID  string
	EventsCovered int
}

// Autosummarize condenses a session's recent Timeline events into a
// single RAG document under context_flow once summaryThreshold new
// events have accumulated since the last summary, or unconditionally
// when force is true (spec §4.8).
func (e *Engine) Autosummarize(ctx context.Context, sessionID string, force bool) (SummaryResult, error) {
	events, err := e.Timeline.Query(ctx, timeline.Filter{SessionID: sessionID, Limit: 5000})
	if err != nil {
		return SummaryResult{}, fmt.Errorf("query timeline: %w", err)
	}

	var sinceMarker int64
	var countSinceMarker int
	for _, ev := range events {
		if ev.EventType == EventSummaryGenerated {
			if id, ok := ev.Data["up_to_event_id"].(float64); ok && int64(id) > sinceMarker {
				sinceMarker = int64(id)
			}
			continue
		}
	}
	for _, ev := range events {
		if ev.ID > sinceMarker && ev.EventType != EventSummaryGenerated {
			countSinceMarker++
		}
	}

	if !force && countSinceMarker < summaryThreshold {
		return SummaryResult{Ran: false}, nil
	}
	if len(events) == 0 {
		return SummaryResult{Ran: false}, nil
	}

	reasoner, err := e.Models.Resolve(catalog.RoleReasoning)
	if err != nil {
		return SummaryResult{}, fmt.Errorf("resolve reasoning model: %w", err)
	}

	prompt := buildSummaryPrompt(sessionID, events)
	summary, err := reasoner.Generate(ctx, prompt)
	if err != nil {
		return SummaryResult{}, fmt.Errorf("generate summary: %w", err)
	}

	var maxID int64
	for _, ev := range events {
		if ev.ID > maxID {
			maxID = ev.ID
		}
	}

	docID, err := e.RAG.AddDocument(ctx, string(docstore.DatasetContextFlow),
		fmt.Sprintf("summary_%s_%d.md", sessionID, maxID), summary,
		map[string]any{"type": "context_data", "session_id": sessionID, "priority": "medium"})
	if err != nil {
		return SummaryResult{}, fmt.Errorf("write summary: %w", err)
	}

	if _, err := e.Timeline.Append(ctx, sessionID, EventSummaryGenerated,
		map[string]any{"up_to_event_id": maxID, "document_id": docID}, nil, timeline.ModalityText); err != nil {
		return SummaryResult{}, fmt.Errorf("record summary marker: %w", err)
	}

	return SummaryResult{Ran: true, DocumentID: docID, EventsCovered: countSinceMarker}, nil
}

func buildSummaryPrompt(sessionID string, events []timeline.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following session activity for %q into a concise running memory note. "+
		"Capture decisions, open threads, and anything a future turn would need to recall. "+
		"Write plain prose, no preamble.\n\n", sessionID)
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		fmt.Fprintf(&b, "[%s] %s: %v\n", ev.Timestamp.Format("15:04:05"), ev.EventType, ev.Data)
	}
	return b.String()
}

// SyncResult reports how many Timeline events a sync_*_to_* pass folded
// into durable storage.
type SyncResult struct {
	Synced int
}

// SyncVisionToRAG writes every vision Timeline event for sessionID not yet
// covered by the EventVisionSynced marker into the agent_memory RAG
// dataset, describing each event with a reasoning-model-generated caption
// rather than the raw event payload, so later RAG queries can surface
// what was seen without re-running vision analysis (spec §4.8).
func (e *Engine) SyncVisionToRAG(ctx context.Context, sessionID string) (SyncResult, error) {
	sinceMarker, err := e.syncMarker(ctx, sessionID, EventVisionSynced)
	if err != nil {
		return SyncResult{}, err
	}

	events, err := e.Timeline.Query(ctx, timeline.Filter{SessionID: sessionID, Modality: timeline.ModalityVision, Limit: 1000})
	if err != nil {
		return SyncResult{}, fmt.Errorf("query vision events: %w", err)
	}

	reasoner, err := e.Models.Resolve(catalog.RoleReasoning)
	if err != nil {
		return SyncResult{}, fmt.Errorf("resolve reasoning model: %w", err)
	}

	var maxID int64
	synced := 0
	for _, ev := range events {
		if ev.ID <= sinceMarker {
			continue
		}
		if ev.ID > maxID {
			maxID = ev.ID
		}

		prompt := fmt.Sprintf("Describe this vision event in one or two plain-prose sentences "+
			"for durable memory recall, no preamble:\n\n%s: %v", ev.EventType, ev.Data)
		description, err := reasoner.Generate(ctx, prompt)
		if err != nil {
			continue
		}

		_, err = e.RAG.AddDocument(ctx, string(docstore.DatasetAgentMemory),
			fmt.Sprintf("vision_%s_%d.md", sessionID, ev.ID), description,
			map[string]any{"type": "learning_data", "session_id": sessionID, "source": "vision", "event_id": ev.ID})
		if err != nil {
			continue
		}
		synced++
	}

	if err := e.recordSyncMarker(ctx, sessionID, EventVisionSynced, sinceMarker, maxID); err != nil {
		return SyncResult{Synced: synced}, err
	}
	return SyncResult{Synced: synced}, nil
}

// SyncAudioToMemory appends every audio Timeline event for sessionID not
// yet covered by the EventAudioSynced marker to Session Memory as a
// user-role message, so conversational context recall picks up what was
// heard (spec §4.8).
func (e *Engine) SyncAudioToMemory(ctx context.Context, sessionID string) (SyncResult, error) {
	sinceMarker, err := e.syncMarker(ctx, sessionID, EventAudioSynced)
	if err != nil {
		return SyncResult{}, err
	}

	events, err := e.Timeline.Query(ctx, timeline.Filter{SessionID: sessionID, Modality: timeline.ModalityAudio, Limit: 1000})
	if err != nil {
		return SyncResult{}, fmt.Errorf("query audio events: %w", err)
	}

	var maxID int64
	synced := 0
	for _, ev := range events {
		if ev.ID <= sinceMarker {
			continue
		}
		if ev.ID > maxID {
			maxID = ev.ID
		}

		msg := session.Message{
			Role:     session.RoleUser,
			Content:  fmt.Sprintf("audio event %s: %v", ev.EventType, ev.Data),
			Metadata: map[string]any{"source": "audio", "event_id": ev.ID},
		}
		if err := e.Sessions.AddMessage(sessionID, msg, nil); err != nil {
			continue
		}
		synced++
	}

	if err := e.recordSyncMarker(ctx, sessionID, EventAudioSynced, sinceMarker, maxID); err != nil {
		return SyncResult{Synced: synced}, err
	}
	return SyncResult{Synced: synced}, nil
}

// syncMarker returns the high-water event id recorded by the most recent
// markerType marker event for sessionID, or 0 if none exists yet.
func (e *Engine) syncMarker(ctx context.Context, sessionID, markerType string) (int64, error) {
	marker, err := e.Timeline.Query(ctx, timeline.Filter{SessionID: sessionID, EventType: markerType, Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("query %s marker: %w", markerType, err)
	}
	if len(marker) == 0 {
		return 0, nil
	}
	id, _ := marker[0].Data["up_to_event_id"].(float64)
	return int64(id), nil
}

// recordSyncMarker appends a new markerType marker event covering up to
// maxID, unless nothing newer than the previous marker was processed.
// Recorded with ModalityText explicitly, since the marker's own event
// type string would otherwise be misclassified by deriveModality as the
// modality it is tracking.
func (e *Engine) recordSyncMarker(ctx context.Context, sessionID, markerType string, sinceMarker, maxID int64) error {
	if maxID <= sinceMarker {
		return nil
	}
	if _, err := e.Timeline.Append(ctx, sessionID, markerType,
		map[string]any{"up_to_event_id": maxID}, nil, timeline.ModalityText); err != nil {
		return fmt.Errorf("record %s marker: %w", markerType, err)
	}
	return nil
}

// Suggestion is one rule-based proactive suggestion (spec §4.8).
type Suggestion struct {
	Kind    string
	Message string
}

// ProactiveSuggestions inspects a SuperContext and the session's recent
// activity for patterns worth surfacing unprompted: a failed RAG or
// memory source, or a session with summaryThreshold or more events since
// its last summary. Purely rule-based, no model call (spec §4.8).
func (e *Engine) ProactiveSuggestions(ctx context.Context, sc *contextbuilder.SuperContext, sessionID string) []Suggestion {
	var out []Suggestion

	if sc != nil {
		for _, sec := range sc.RAG {
			if sec.Status == contextbuilder.StatusError {
				out = append(out, Suggestion{
					Kind:    "rag_unavailable",
					Message: "a RAG dataset failed to respond; retrieved context may be incomplete",
				})
				break
			}
		}
		if sc.Memory.Status == contextbuilder.StatusError {
			out = append(out, Suggestion{
				Kind:    "memory_unavailable",
				Message: "session memory could not be loaded for this turn",
			})
		}
	}

	events, err := e.Timeline.Query(ctx, timeline.Filter{SessionID: sessionID, Limit: 5000})
	if err == nil {
		var sinceMarker int64
		for _, ev := range events {
			if ev.EventType == EventSummaryGenerated {
				if id, ok := ev.Data["up_to_event_id"].(float64); ok && int64(id) > sinceMarker {
					sinceMarker = int64(id)
				}
			}
		}
		unsummarized := 0
		for _, ev := range events {
			if ev.ID > sinceMarker && ev.EventType != EventSummaryGenerated {
				unsummarized++
			}
		}
		if unsummarized >= summaryThreshold {
			out = append(out, Suggestion{
				Kind:    "summarize_due",
				Message: fmt.Sprintf("%d events have accumulated since the last summary; consider autosummarize", unsummarized),
			})
		}
	}

	return out
}

// CycleReport is run_autonomous_cycle's aggregated, best-effort result:
// every step runs even if an earlier one failed (spec §4.8).
type CycleReport struct {
	Summary     SummaryResult
	SummaryErr  error
	Vision      SyncResult
	VisionErr   error
	Audio       SyncResult
	AudioErr    error
	Retention   map[docstore.Dataset]docstore.CleanupResult
	RetentionErr error
}

// RunAutonomousCycle invokes autosummarize, the two sync passes, and a
// retention sweep for sessionID in sequence, isolating each step's
// failure from the others (spec §4.8).
func (e *Engine) RunAutonomousCycle(ctx context.Context, sessionID string) CycleReport {
	var report CycleReport

	report.Summary, report.SummaryErr = e.Autosummarize(ctx, sessionID, false)
	report.Vision, report.VisionErr = e.SyncVisionToRAG(ctx, sessionID)
	report.Audio, report.AudioErr = e.SyncAudioToMemory(ctx, sessionID)
	report.Retention, report.RetentionErr = e.RAG.SweepRetention(ctx)

	return report
}
