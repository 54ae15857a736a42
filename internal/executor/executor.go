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

// Package executor runs a Plan against the Tool-Client Registry: sequential
// or parallel step dispatch, retry with backoff, $previous substitution,
// cancellation, and Timeline write-through (spec §4.7).
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kernelmesh/orchestrator/internal/catalog"
	"github.com/kernelmesh/orchestrator/internal/observability"
	"github.com/kernelmesh/orchestrator/internal/planner"
	"github.com/kernelmesh/orchestrator/internal/timeline"
	"github.com/kernelmesh/orchestrator/internal/toolclient"
)

// Mode selects how a Plan is executed (spec §4.7).
type Mode string

const (
	ModeAuto        Mode = "auto"
	ModePlanOnly    Mode = "plan_only"
	ModeStepByStep  Mode = "step_by_step"
)

// Status is the outcome of one executed step.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// Result is one step's ExecutionResult (spec §3).
type Result struct {
	Step       planner.Step
	Status     Status
	Data       any
	ErrorKind  toolclient.ErrorKind
	ErrorMsg   string
	Duration   time.Duration
	RetryCount int
}

// PreviousArg is the sentinel value a step's args may carry, substituted
// with the most recent successful predecessor's data (spec §4.7 step 3).
const PreviousArg = "$previous"

const stepDeadline = 30 * time.Second

var retryDelays = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

// Handle is a plan execution's cancellation handle (spec §4.7).
type Handle struct {
	cancel chan struct{}
	once   sync.Once
}

// NewHandle builds a fresh, uncancelled Handle.
func NewHandle() *Handle {
	return &Handle{cancel: make(chan struct{})}
}

// Cancel signals the Executor to stop scheduling further steps.
func (h *Handle) Cancel() {
	h.once.Do(func() { close(h.cancel) })
}

func (h *Handle) cancelled() bool {
	select {
	case <-h.cancel:
		return true
	default:
		return false
	}
}

// Executor dispatches Plans against a tool registry, writing every step
// to the Timeline.
type Executor struct {
	Catalog  catalog.Catalog
	Tools    *toolclient.Registry
	Timeline *timeline.Timeline
	Tracer   *observability.Tracer
	Metrics  observability.Recorder
}

// New builds an Executor. tracer and metrics may be nil; Tracer and
// Metrics default to their no-op implementations so callers that don't
// need observability wiring can omit it.
func New(cat catalog.Catalog, tools *toolclient.Registry, tl *timeline.Timeline, tracer *observability.Tracer, metrics observability.Recorder) *Executor {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Executor{Catalog: cat, Tools: tools, Timeline: tl, Tracer: tracer, Metrics: metrics}
}

// hasSensitiveStep reports whether any step in steps is gated (spec
// §4.7).
func (e *Executor) hasSensitiveStep(steps []planner.Step) bool {
	for _, s := range steps {
		if e.Catalog.IsSensitive(s.Tool, s.Action) {
			return true
		}
	}
	return false
}

// ExecutePlanOutcome is execute_plan's full return value, including the
// confirmation gate the HTTP layer surfaces as requires_confirmation.
type ExecutePlanOutcome struct {
	Results               []Result
	RequiresConfirmation  bool
	RemainingSteps        []planner.Step
}

// ExecutePlan runs plan under mode (spec §4.7).
func (e *Executor) ExecutePlan(ctx context.Context, plan planner.Plan, sessionID string, mode Mode, handle *Handle) (ExecutePlanOutcome, error) {
	if handle == nil {
		handle = NewHandle()
	}

	switch mode {
	case ModePlanOnly:
		return ExecutePlanOutcome{Results: nil, RequiresConfirmation: true, RemainingSteps: plan.Steps}, nil

	case ModeStepByStep:
		if len(plan.Steps) == 0 {
			return ExecutePlanOutcome{}, nil
		}
		step := plan.Steps[0]
		res := e.runStep(ctx, sessionID, step, nil, handle)
		return ExecutePlanOutcome{Results: []Result{res}, RemainingSteps: plan.Steps[1:]}, nil

	case ModeAuto:
		fallthrough
	default:
		if len(plan.Steps) > 1 || e.hasSensitiveStep(plan.Steps) {
			return ExecutePlanOutcome{Results: nil, RequiresConfirmation: true, RemainingSteps: plan.Steps}, nil
		}
		return e.runSequential(ctx, sessionID, plan.Steps, handle), nil
	}
}

// RunConfirmed executes plan.Steps unconditionally, used once the caller
// has confirmed a requires_confirmation plan (spec §4.7 "auto" gate).
func (e *Executor) RunConfirmed(ctx context.Context, plan planner.Plan, sessionID string, handle *Handle) ExecutePlanOutcome {
	if handle == nil {
		handle = NewHandle()
	}
	return e.runSequential(ctx, sessionID, plan.Steps, handle)
}

func (e *Executor) runSequential(ctx context.Context, sessionID string, steps []planner.Step, handle *Handle) ExecutePlanOutcome {
	if e.Tracer != nil {
		var span trace.Span
		ctx, span = e.Tracer.Start(ctx, observability.SpanPlanStep)
		defer span.End()
	}

	results := make([]Result, 0, len(steps))
	var lastSuccess *Result

	i := 0
	for i < len(steps) {
		if handle.cancelled() {
			results = append(results, Result{Step: steps[i], Status: StatusCancelled})
			i++
			for ; i < len(steps); i++ {
				results = append(results, Result{Step: steps[i], Status: StatusSkipped})
			}
			break
		}

		group := collectParallelGroup(steps, i)
		if len(group) == 1 {
			res := e.runStep(ctx, sessionID, steps[i], lastSuccess, handle)
			results = append(results, res)
			if res.Status == StatusSuccess {
				r := res
				lastSuccess = &r
			}
			i++
			continue
		}

		groupResults := e.runParallelGroup(ctx, sessionID, steps[i:i+len(group)], lastSuccess, handle)
		results = append(results, groupResults...)
		for _, r := range groupResults {
			if r.Status == StatusSuccess {
				r := r
				lastSuccess = &r
			}
		}
		i += len(group)
	}

	return ExecutePlanOutcome{Results: results}
}

// collectParallelGroup returns the run of steps starting at i that share
// a non-nil, equal value under the reserved planner.Step.Args key
// "__parallel_group". A group of size 1 simply means "no peers".
func collectParallelGroup(steps []planner.Step, i int) []planner.Step {
	group := steps[i].Args["__parallel_group"]
	if group == nil {
		return steps[i : i+1]
	}
	end := i + 1
	for end < len(steps) && steps[end].Args["__parallel_group"] == group {
		end++
	}
	return steps[i:end]
}

func (e *Executor) runParallelGroup(ctx context.Context, sessionID string, steps []planner.Step, lastSuccess *Result, handle *Handle) []Result {
	results := make([]Result, len(steps))
	var wg sync.WaitGroup
	for idx, step := range steps {
		wg.Add(1)
		go func(idx int, step planner.Step) {
			defer wg.Done()
			// $previous is undefined across parallel peers (spec §4.7).
			results[idx] = e.runStep(ctx, sessionID, step, lastSuccess, handle)
		}(idx, step)
	}
	wg.Wait()
	return results
}

// runStep dispatches one step with retry/backoff and Timeline
// write-through (spec §4.7 Dispatch).
func (e *Executor) runStep(ctx context.Context, sessionID string, step planner.Step, lastSuccess *Result, handle *Handle) Result {
	if handle.cancelled() {
		return Result{Step: step, Status: StatusCancelled}
	}

	if e.Timeline != nil {
		_, _ = e.Timeline.Append(ctx, sessionID, "step_start", map[string]any{
			"tool": step.Tool, "action": step.Action, "args": step.Args,
		}, nil, "")
	}

	start := time.Now()

	client := e.Tools.Resolve(step.Tool)
	if client == nil || !e.Catalog.HasTool(step.Tool) {
		return e.finish(ctx, sessionID, step, Result{
			Step: step, Status: StatusError, ErrorKind: toolclient.ErrUnknownAction,
			ErrorMsg: fmt.Sprintf("unknown tool %q", step.Tool), Duration: time.Since(start),
		})
	}
	if _, ok := e.Catalog.Action(step.Tool, step.Action); !ok {
		return e.finish(ctx, sessionID, step, Result{
			Step: step, Status: StatusError, ErrorKind: toolclient.ErrUnknownAction,
			ErrorMsg: fmt.Sprintf("unknown action %q on tool %q", step.Action, step.Tool), Duration: time.Since(start),
		})
	}

	args, err := substitutePrevious(step.Args, lastSuccess)
	if err != nil {
		return e.finish(ctx, sessionID, step, Result{
			Step: step, Status: StatusError, ErrorKind: toolclient.ErrMissingPrevious,
			ErrorMsg: err.Error(), Duration: time.Since(start),
		})
	}
	args = withPreferredLLM(args, e.resolveDispatchRole(step))

	spanCtx := ctx
	var span trace.Span
	if e.Tracer != nil {
		spanCtx, span = e.Tracer.StartToolExecution(ctx, step.Tool, step.Action, sessionID)
		defer span.End()
	}

	var result toolclient.Result
	attempts := 0
	for {
		if handle.cancelled() {
			return Result{Step: step, Status: StatusCancelled, Duration: time.Since(start), RetryCount: attempts}
		}
		attempts++
		callCtx, cancel := context.WithTimeout(spanCtx, stepDeadline)
		result = client.Call(callCtx, step.Action, args)
		cancel()

		if result.OK || !result.ErrKind.Retriable() || attempts >= len(retryDelays) {
			break
		}
		select {
		case <-time.After(retryDelays[attempts-1]):
		case <-ctx.Done():
			return Result{Step: step, Status: StatusCancelled, Duration: time.Since(start), RetryCount: attempts}
		}
	}

	status := StatusSuccess
	if !result.OK {
		status = StatusError
	}
	duration := time.Since(start)
	e.Metrics.RecordToolCall(step.Tool, duration)
	if !result.OK {
		e.Metrics.RecordToolError(step.Tool, string(result.ErrKind))
	}
	if e.Tracer != nil && span != nil {
		e.Tracer.AddToolPayload(span, fmt.Sprintf("%v", args), fmt.Sprintf("%v", result.Data))
		if !result.OK {
			e.Tracer.RecordError(span, fmt.Errorf("%s: %s", result.ErrKind, result.ErrMsg))
		}
	}
	return e.finish(ctx, sessionID, step, Result{
		Step: step, Status: status, Data: result.Data, ErrorKind: result.ErrKind,
		ErrorMsg: result.ErrMsg, Duration: duration, RetryCount: attempts - 1,
	})
}

func (e *Executor) finish(ctx context.Context, sessionID string, step planner.Step, res Result) Result {
	if e.Timeline != nil {
		data := map[string]any{
			"status":      string(res.Status),
			"duration_ms": res.Duration.Milliseconds(),
			"attempts":    res.RetryCount + 1,
		}
		if res.Status == StatusError {
			_, _ = e.Timeline.Append(ctx, sessionID, "step_error", map[string]any{
				"tool": step.Tool, "action": step.Action, "error_kind": string(res.ErrorKind), "message_excerpt": excerpt(res.ErrorMsg),
			}, nil, "")
		}
		_, _ = e.Timeline.Append(ctx, sessionID, "step_end", data, nil, "")
	}
	return res
}

func excerpt(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// substitutePrevious rewrites "$previous" argument values with the data
// of the most recent successful predecessor (spec §4.7 step 3; Design
// Notes §9: explicit argument-rewriting pass rather than a live
// reference).
func substitutePrevious(args map[string]any, lastSuccess *Result) (map[string]any, error) {
	needsPrev := false
	for _, v := range args {
		if s, ok := v.(string); ok && s == PreviousArg {
			needsPrev = true
			break
		}
	}
	if !needsPrev {
		return args, nil
	}
	if lastSuccess == nil {
		return nil, fmt.Errorf("$previous referenced but no prior success")
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && s == PreviousArg {
			out[k] = lastSuccess.Data
		} else {
			out[k] = v
		}
	}
	return out, nil
}

// resolveDispatchRole is the Executor's own consultation of the catalog's
// preferred_llm_default ground truth (spec §3 ToolCatalog invariant): an
// explicit step-level PreferredLLM wins, otherwise the catalog's default
// for (tool, action) is used. Unlike the Planner's ResolvePreferredLLM
// call, this runs again at dispatch time because a step handed to
// RunConfirmed may never have passed through Planner.Plan (e.g. a
// hand-built or replayed plan).
func (e *Executor) resolveDispatchRole(step planner.Step) catalog.LLMRole {
	if step.PreferredLLM != "" {
		return step.PreferredLLM
	}
	if spec, ok := e.Catalog.Action(step.Tool, step.Action); ok {
		return spec.PreferredLLM
	}
	return ""
}

// withPreferredLLM forwards role to the dispatched tool call as a
// "preferred_llm" argument, without mutating the step's own Args map,
// unless the step already set that key explicitly.
func withPreferredLLM(args map[string]any, role catalog.LLMRole) map[string]any {
	if role == "" {
		return args
	}
	if _, exists := args["preferred_llm"]; exists {
		return args
	}
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out["preferred_llm"] = string(role)
	return out
}

// DryRunReport is dry_run's output (spec §4.7).
type DryRunReport struct {
	Total      int
	Valid      int
	Invalid    []string
	CanExecute bool
}

// DryRun validates every step against the catalog without executing
// anything.
func (e *Executor) DryRun(plan planner.Plan) DryRunReport {
	report := DryRunReport{Total: len(plan.Steps)}
	for _, s := range plan.Steps {
		if err := e.Catalog.ValidateStep(s.Tool, s.Action, stripInternalArgs(s.Args)); err != nil {
			report.Invalid = append(report.Invalid, err.Error())
			continue
		}
		report.Valid++
	}
	report.CanExecute = len(report.Invalid) == 0
	return report
}

func stripInternalArgs(args map[string]any) map[string]any {
	if _, ok := args["__parallel_group"]; !ok {
		return args
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if k == "__parallel_group" {
			continue
		}
		out[k] = v
	}
	return out
}
