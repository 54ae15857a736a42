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

// Package contextbuilder fans out, in parallel, to Memory + RAG (+
// optional Vision/Audio/System) and assembles a single bounded
// SuperContext (spec §4.5). Each source runs under its own soft/hard
// timeout pair and a source's failure never aborts the whole build.
package contextbuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kernelmesh/orchestrator/internal/docstore"
	"github.com/kernelmesh/orchestrator/internal/intent"
	"github.com/kernelmesh/orchestrator/internal/observability"
	"github.com/kernelmesh/orchestrator/internal/session"
	"github.com/kernelmesh/orchestrator/internal/toolclient"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	softTimeout  = 2 * time.Second
	hardTimeout  = 5 * time.Second
	perSourceCap = 4 * 1024 // 4 KiB
)

// SectionStatus reports whether a SuperContext section was built
// successfully.
type SectionStatus string

const (
	StatusOK    SectionStatus = "ok"
	StatusError SectionStatus = "error"
)

// Section is one named slice of the SuperContext.
type Section struct {
	Status SectionStatus `json:"status"`
	Text   string        `json:"text,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// SuperContext is the bounded, aggregated per-request context object.
type SuperContext struct {
	Memory Section            `json:"memory"`
	RAG    map[string]Section `json:"rag"`
	Vision *Section           `json:"vision,omitempty"`
	Audio  *Section           `json:"audio,omitempty"`
	System *Section           `json:"system,omitempty"`

	SourcesAvailable  []string `json:"sources_available"`
	TotalContextBytes int      `json:"total_context_size"`
}

// ragProfile is the per-dataset top-k used for a query, either the fixed
// default or an intent-adaptive one (spec §4.5).
type ragProfile map[docstore.Dataset]int

var defaultProfile = ragProfile{
	docstore.DatasetAgentCore:   2,
	docstore.DatasetProjects:    2,
	docstore.DatasetScratchpad:  1,
	docstore.DatasetAgentMemory: 1,
}

func profileFor(i intent.Intent) ragProfile {
	switch i {
	case intent.RulesQuery:
		return ragProfile{docstore.DatasetAgentCore: 4, docstore.DatasetAgentMemory: 1}
	case intent.ProjectQuery:
		return ragProfile{docstore.DatasetProjects: 4, docstore.DatasetAgentCore: 1}
	case intent.MemoryQuery:
		return ragProfile{docstore.DatasetAgentMemory: 3, docstore.DatasetContextFlow: 2}
	default:
		return defaultProfile
	}
}

// Builder assembles SuperContexts from the Memory and RAG stores, plus
// optional Vision/Audio/System tool endpoints.
type Builder struct {
	Sessions *session.Store
	RAG      *docstore.Store
	Tools    *toolclient.Registry
	Tracer   *observability.Tracer
}

// New builds a Builder over the given backing stores and tool registry.
func New(sessions *session.Store, rag *docstore.Store, tools *toolclient.Registry) *Builder {
	return &Builder{Sessions: sessions, RAG: rag, Tools: tools}
}

// WithTracer attaches tracer to an existing Builder. tracer may be nil.
func (b *Builder) WithTracer(tracer *observability.Tracer) *Builder {
	b.Tracer = tracer
	return b
}

// Build assembles a SuperContext for userMessage/sessionID, classifying
// intent to pick the RAG profile and fanning out every source under its
// own soft/hard timeout (spec §4.5).
func (b *Builder) Build(ctx context.Context, userMessage, sessionID string) *SuperContext {
	ctx, cancel := context.WithTimeout(ctx, hardTimeout)
	defer cancel()

	cls := intent.Classify(userMessage)
	profile := profileFor(cls)

	sc := &SuperContext{RAG: make(map[string]Section)}
	var mu sync.Mutex
	var available []string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sec := b.buildMemorySection(gctx, userMessage, sessionID)
		mu.Lock()
		sc.Memory = sec
		if sec.Status == StatusOK {
			available = append(available, "memory")
		}
		mu.Unlock()
		return nil
	})

	for dataset, topK := range profile {
		dataset, topK := dataset, topK
		g.Go(func() error {
			sec := b.buildRAGSection(gctx, string(dataset), userMessage, topK)
			mu.Lock()
			sc.RAG[string(dataset)] = sec
			if sec.Status == StatusOK {
				available = append(available, "rag:"+string(dataset))
			}
			mu.Unlock()
			return nil
		})
	}

	if b.Tools != nil {
		if cls == intent.VisionAnalysis {
			g.Go(func() error {
				sec := b.buildToolSection(gctx, "vision", "analyze_screenshot", nil)
				mu.Lock()
				sc.Vision = &sec
				if sec.Status == StatusOK {
					available = append(available, "vision")
				}
				mu.Unlock()
				return nil
			})
		}
		if cls == intent.AudioProcessing {
			g.Go(func() error {
				sec := b.buildToolSection(gctx, "audio", "analyze", nil)
				mu.Lock()
				sc.Audio = &sec
				if sec.Status == StatusOK {
					available = append(available, "audio")
				}
				mu.Unlock()
				return nil
			})
		}
		if cls == intent.SystemQuery {
			g.Go(func() error {
				sec := b.buildToolSection(gctx, "system", "snapshot", nil)
				mu.Lock()
				sc.System = &sec
				if sec.Status == StatusOK {
					available = append(available, "system")
				}
				mu.Unlock()
				return nil
			})
		}
	}

	_ = g.Wait() // every goroutine above always returns nil; errors are recorded in sections

	sc.SourcesAvailable = available
	sc.TotalContextBytes = sc.approxSize()
	return sc
}

func (b *Builder) buildMemorySection(ctx context.Context, userMessage, sessionID string) Section {
	ctx, cancel := context.WithTimeout(ctx, softTimeout)
	defer cancel()

	if b.Tracer != nil {
		var span trace.Span
		ctx, span = b.Tracer.StartMemorySearch(ctx, "session_memory", 5)
		defer span.End()
	}

	done := make(chan Section, 1)
	go func() {
		recent, err := b.Sessions.GetContext(sessionID, 5)
		if err != nil {
			done <- Section{Status: StatusError, Error: err.Error()}
			return
		}
		hits, _ := b.Sessions.Search(userMessage, sessionID)
		text := recent
		if len(hits) > 0 {
			b2, _ := json.Marshal(hits)
			text += "\nsearch: " + string(b2)
		}
		done <- Section{Status: StatusOK, Text: truncate(text)}
	}()

	select {
	case sec := <-done:
		return sec
	case <-ctx.Done():
		return Section{Status: StatusError, Error: "timed out"}
	}
}

func (b *Builder) buildRAGSection(ctx context.Context, dataset, query string, topK int) Section {
	ctx, cancel := context.WithTimeout(ctx, softTimeout)
	defer cancel()

	done := make(chan Section, 1)
	go func() {
		results, err := b.RAG.Query(ctx, dataset, query, topK, nil)
		if err != nil {
			done <- Section{Status: StatusError, Error: err.Error()}
			return
		}
		var b2 []byte
		b2, _ = json.Marshal(results)
		done <- Section{Status: StatusOK, Text: truncate(string(b2))}
	}()

	select {
	case sec := <-done:
		return sec
	case <-ctx.Done():
		return Section{Status: StatusError, Error: "timed out"}
	}
}

func (b *Builder) buildToolSection(ctx context.Context, tool, action string, args map[string]any) Section {
	ctx, cancel := context.WithTimeout(ctx, softTimeout)
	defer cancel()

	client := b.Tools.Resolve(tool)
	if client == nil {
		return Section{Status: StatusError, Error: fmt.Sprintf("no client for tool %q", tool)}
	}

	done := make(chan Section, 1)
	go func() {
		res := client.Call(ctx, action, args)
		if !res.OK {
			done <- Section{Status: StatusError, Error: string(res.ErrKind) + ": " + res.ErrMsg}
			return
		}
		b2, _ := json.Marshal(res.Data)
		done <- Section{Status: StatusOK, Text: truncate(string(b2))}
	}()

	select {
	case sec := <-done:
		return sec
	case <-ctx.Done():
		return Section{Status: StatusError, Error: "timed out"}
	}
}

func truncate(s string) string {
	if len(s) <= perSourceCap {
		return s
	}
	return s[:perSourceCap] + "…"
}

func (sc *SuperContext) approxSize() int {
	b, _ := json.Marshal(sc)
	return len(b)
}

// Summarize builds the Planner's one-liner-per-section summary view
// (spec §4.6 step 1).
func (sc *SuperContext) Summarize() string {
	out := fmt.Sprintf("Memory: %s; ", shortStatus(sc.Memory))
	out += fmt.Sprintf("RAG: %d datasets; ", len(sc.RAG))
	if sc.Vision != nil {
		out += fmt.Sprintf("Vision: %s; ", shortStatus(*sc.Vision))
	}
	if sc.Audio != nil {
		out += fmt.Sprintf("Audio: %s; ", shortStatus(*sc.Audio))
	}
	if sc.System != nil {
		out += fmt.Sprintf("System: %s; ", shortStatus(*sc.System))
	}
	return out
}

func shortStatus(s Section) string {
	if s.Status == StatusOK {
		return "present"
	}
	return "unavailable"
}
