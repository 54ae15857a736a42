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

package kernel

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/kernelmesh/orchestrator/internal/executor"
	"github.com/kernelmesh/orchestrator/internal/intent"
	"github.com/kernelmesh/orchestrator/internal/session"
)

// confidenceRules mirror intent.Classify's own rule patterns for every
// intent except SystemQuery, which has no entry here: a message
// that matches more distinctive keywords for its winning intent is scored
// higher. This lives here, not in package intent, because intent stays a
// pure classifier (spec §4.9) and confidence is purely a reporting
// concern of the /orchestrate response.
var confidenceRules = map[intent.Intent]*regexp.Regexp{
	intent.VisionAnalysis:  regexp.MustCompile(`(?i)\b(screenshot|image|photo|picture|visual|look at|analyze.*(image|screen))\b`),
	intent.AudioProcessing: regexp.MustCompile(`(?i)\b(audio|transcribe|recording|voice|speech|listen)\b`),
	intent.RulesQuery:      regexp.MustCompile(`(?i)\b(rule|policy|guideline|how (should|do) (i|you)|what (are|is) the (rule|policy))\b`),
	intent.ProjectQuery:    regexp.MustCompile(`(?i)\b(project|codebase|repo|repository|source code|file|module)\b`),
	intent.MemoryQuery:     regexp.MustCompile(`(?i)\b(remember|recall|earlier|previous(ly)?|last time|you (said|told))\b`),
}

// confidenceFor scores i against message: 0.5 baseline for a General
// classification (no rule fired), 0.6 when the intent has no pattern here
// (SystemQuery) or its pattern does not match the message, 0.75 for a
// single keyword match, up to
// 0.95 when the winning rule's pattern matches the message more than
// once (repeated intent signal).
func confidenceFor(i intent.Intent, message string) float64 {
	if i == intent.General {
		return 0.5
	}
	pattern, ok := confidenceRules[i]
	if !ok {
		return 0.6
	}
	matches := pattern.FindAllStringIndex(message, -1)
	switch {
	case len(matches) >= 2:
		return 0.95
	case len(matches) == 1:
		return 0.75
	default:
		return 0.6
	}
}

func resolveMode(raw string) executor.Mode {
	switch executor.Mode(raw) {
	case executor.ModePlanOnly, executor.ModeStepByStep, executor.ModeAuto:
		return executor.Mode(raw)
	default:
		return executor.ModeAuto
	}
}

func (k *Kernel) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var req orchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	sessionID, err := session.Sanitize(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode := resolveMode(req.ExecutionMode)

	requestID := uuid.New().String()
	w.Header().Set("X-Request-Id", requestID)

	ctx := r.Context()
	cls := intent.Classify(req.Prompt)
	k.log.Info("orchestrate request", "request_id", requestID, "session_id", sessionID, "intent", cls, "mode", mode)

	_ = k.Sessions.AddMessage(sessionID, session.Message{
		Role:      session.RoleUser,
		Content:   req.Prompt,
		Timestamp: k.now(),
	}, nil)

	sc := k.ContextBuilder.Build(ctx, req.Prompt, sessionID)

	plan, err := k.Planner.Plan(ctx, req.Prompt, sc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "planning failed: "+err.Error())
		return
	}

	handle := executor.NewHandle()
	outcome, err := k.Executor.ExecutePlan(ctx, plan, sessionID, mode, handle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "execution failed: "+err.Error())
		return
	}

	responseText := summarizeOutcome(outcome)
	memoryUpdated := false
	if responseText != "" {
		if err := k.Sessions.AddMessage(sessionID, session.Message{
			Role:      session.RoleAssistant,
			Content:   responseText,
			Timestamp: k.now(),
		}, nil); err == nil {
			memoryUpdated = true
		}
	}

	resp := orchestrateResponse{
		Intention:            cls,
		Confidence:           confidenceFor(cls, req.Prompt),
		Plan:                 plan,
		Response:             responseText,
		ExecutionResults:     toStepResultViews(outcome.Results),
		RequiresConfirmation: outcome.RequiresConfirmation,
		ExecutionModeUsed:    mode,
		MemoryUpdated:        memoryUpdated,
	}

	writeJSON(w, http.StatusOK, resp)
}

// summarizeOutcome renders a short human-facing response string from the
// executed steps' data, falling back to a neutral message when the plan
// was only proposed, not run.
func summarizeOutcome(outcome executor.ExecutePlanOutcome) string {
	if len(outcome.Results) == 0 {
		if outcome.RequiresConfirmation {
			return "plan ready, awaiting confirmation"
		}
		return ""
	}
	last := outcome.Results[len(outcome.Results)-1]
	switch last.Status {
	case executor.StatusSuccess:
		if s, ok := last.Data.(string); ok {
			return s
		}
		b, _ := json.Marshal(last.Data)
		return string(b)
	case executor.StatusError:
		return "step " + last.Step.Tool + "." + last.Step.Action + " failed: " + last.ErrorMsg
	default:
		return string(last.Status)
	}
}

func (k *Kernel) handleHealth(w http.ResponseWriter, r *http.Request) {
	toolHealth := k.Tools.HealthAll(r.Context())
	allOK := true
	for _, h := range toolHealth {
		if !h.OK {
			allOK = false
			break
		}
	}
	status := "ok"
	code := http.StatusOK
	if !allOK {
		status = "degraded"
		k.grpcHealth.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	} else {
		k.grpcHealth.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"tools":  toolHealth,
	})
}

func (k *Kernel) now() time.Time {
	return time.Now()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
