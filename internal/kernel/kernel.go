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

// Package kernel wires every domain package (intent, contextbuilder,
// planner, executor, cognitive, docstore, session, timeline, toolclient,
// llm) into the single Kernel that backs the orchestration HTTP surface
// (spec §6): POST /orchestrate, GET /health, GET /metrics.
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kernelmesh/orchestrator/internal/catalog"
	"github.com/kernelmesh/orchestrator/internal/cognitive"
	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/contextbuilder"
	"github.com/kernelmesh/orchestrator/internal/databases"
	"github.com/kernelmesh/orchestrator/internal/docstore"
	"github.com/kernelmesh/orchestrator/internal/embedders"
	"github.com/kernelmesh/orchestrator/internal/executor"
	"github.com/kernelmesh/orchestrator/internal/intent"
	"github.com/kernelmesh/orchestrator/internal/llm"
	"github.com/kernelmesh/orchestrator/internal/observability"
	"github.com/kernelmesh/orchestrator/internal/planner"
	"github.com/kernelmesh/orchestrator/internal/session"
	"github.com/kernelmesh/orchestrator/internal/storage"
	"github.com/kernelmesh/orchestrator/internal/timeline"
	"github.com/kernelmesh/orchestrator/internal/toolclient"
)

// Kernel owns every domain store and service and exposes them through an
// HTTP router. It is built once at process startup and is safe for
// concurrent request handling (spec §5: every owned store is either
// immutable after construction or internally synchronized).
type Kernel struct {
	Catalog        catalog.Catalog
	Tools          *toolclient.Registry
	DB             *storage.DB
	RAG            *docstore.Store
	Sessions       *session.Store
	Timeline       *timeline.Timeline
	ContextBuilder *contextbuilder.Builder
	Models         *llm.ModelRegistry
	Planner        *planner.Planner
	Executor       *executor.Executor
	Cognitive      *cognitive.Engine
	Observability  *observability.Manager

	grpcHealthAddr string
	grpcHealth     *grpcHealthServer

	log *slog.Logger
}

// New builds a fully wired Kernel from cfg. The caller owns the returned
// Kernel's lifetime and must call Close when done.
func New(ctx context.Context, cfg *config.KernelConfig) (*Kernel, error) {
	obsMgr, err := observability.NewManager(ctx, &cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("observability manager: %w", err)
	}

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		obsMgr.Shutdown(ctx)
		return nil, fmt.Errorf("open storage: %w", err)
	}

	embedderRegistry := embedders.NewEmbedderRegistry()
	provider, err := embedderRegistry.CreateEmbedderFromConfig("default", &cfg.Embedder)
	if err != nil {
		obsMgr.Shutdown(ctx)
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	embedder := docstore.WrapProvider(provider)

	rag := docstore.New(db, embedder).WithObservability(obsMgr.Tracer(), obsMgr.Metrics())
	if cfg.VectorStore.Type != "" {
		vectorDB, err := databases.NewDatabaseRegistry().CreateDatabaseFromConfig("rag", &cfg.VectorStore)
		if err != nil {
			obsMgr.Shutdown(ctx)
			return nil, fmt.Errorf("build vector store: %w", err)
		}
		rag = rag.WithVectorStore(vectorDB, cfg.VectorStore.Collection)
	}

	sessions, err := session.New(cfg.SessionRoot, embedder)
	if err != nil {
		obsMgr.Shutdown(ctx)
		return nil, fmt.Errorf("open session store: %w", err)
	}

	tl := timeline.New(db)
	tools := toolclient.NewRegistry(cfg.Tools)
	ctxBuilder := contextbuilder.New(sessions, rag, tools).WithTracer(obsMgr.Tracer())

	models, err := llm.NewModelRegistry(cfg.ReasoningLLM, cfg.CodingLLM, cfg.VisionLLM, obsMgr.Tracer(), obsMgr.Metrics())
	if err != nil {
		obsMgr.Shutdown(ctx)
		return nil, fmt.Errorf("build model registry: %w", err)
	}

	pl := planner.New(catalog.Default, models)
	ex := executor.New(catalog.Default, tools, tl, obsMgr.Tracer(), obsMgr.Metrics())
	cog := cognitive.New(sessions, rag, tl, models)

	return &Kernel{
		Catalog:        catalog.Default,
		Tools:          tools,
		DB:             db,
		RAG:            rag,
		Sessions:       sessions,
		Timeline:       tl,
		ContextBuilder: ctxBuilder,
		Models:         models,
		Planner:        pl,
		Executor:       ex,
		Cognitive:      cog,
		Observability:  obsMgr,
		grpcHealthAddr: cfg.GRPCHealthAddr,
		log:            slog.Default().With("component", "kernel"),
	}, nil
}

// Close releases every owned resource: the relational DB handle and the
// observability manager's exporters.
func (k *Kernel) Close(ctx context.Context) error {
	var firstErr error
	if err := k.Observability.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := k.DB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Router builds the chi router serving /orchestrate, /health and
// /metrics, with the observability HTTP middleware wrapping every route.
func (k *Kernel) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(observability.HTTPMiddleware(k.Observability.Tracer(), k.Observability.Metrics()))

	r.Post("/orchestrate", k.handleOrchestrate)
	r.Get("/health", k.handleHealth)
	if k.Observability.MetricsEnabled() {
		r.Get(k.Observability.MetricsEndpoint(), k.Observability.MetricsHandler().ServeHTTP)
	}
	return r
}

// Start runs the HTTP server on cfg.ListenAddr until ctx is cancelled. When
// grpcHealthAddr is set it also serves grpc_health_v1 on that address for
// orchestrators that probe liveness over gRPC instead of HTTP.
func (k *Kernel) Start(ctx context.Context, listenAddr string) error {
	if k.grpcHealthAddr != "" {
		gh, err := newGRPCHealthServer(k.grpcHealthAddr, k.log)
		if err != nil {
			return fmt.Errorf("start grpc health server: %w", err)
		}
		k.grpcHealth = gh
		defer k.grpcHealth.stop()
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           k.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		k.log.Info("listening", "addr", listenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// orchestrateRequest is the POST /orchestrate request body (spec §6).
type orchestrateRequest struct {
	Prompt        string `json:"prompt"`
	SessionID     string `json:"session_id"`
	ExecutionMode string `json:"execution_mode"`
}

// orchestrateResponse is the POST /orchestrate response body (spec §6).
type orchestrateResponse struct {
	Intention            intent.Intent    `json:"intention"`
	Confidence           float64          `json:"confidence"`
	Plan                 planner.Plan     `json:"plan"`
	Response             string           `json:"response"`
	ExecutionResults     []stepResultView `json:"execution_results,omitempty"`
	RequiresConfirmation bool             `json:"requires_confirmation"`
	ExecutionModeUsed    executor.Mode    `json:"execution_mode_used"`
	MemoryUpdated        bool             `json:"memory_updated"`
}

// stepResultView is the wire shape of one executor.Result.
type stepResultView struct {
	Tool       string `json:"tool"`
	Action     string `json:"action"`
	Status     string `json:"status"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
}

func toStepResultViews(results []executor.Result) []stepResultView {
	out := make([]stepResultView, 0, len(results))
	for _, r := range results {
		v := stepResultView{
			Tool:       r.Step.Tool,
			Action:     r.Step.Action,
			Status:     string(r.Status),
			Data:       r.Data,
			RetryCount: r.RetryCount,
		}
		if r.ErrorMsg != "" {
			v.Error = string(r.ErrorKind) + ": " + r.ErrorMsg
		}
		out = append(out, v)
	}
	return out
}
