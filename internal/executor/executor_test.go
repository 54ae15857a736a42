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

package executor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/orchestrator/internal/catalog"
	"github.com/kernelmesh/orchestrator/internal/planner"
	"github.com/kernelmesh/orchestrator/internal/toolclient"
)

// scriptedCaller returns the Nth entry of responses on the Nth call
// (clamped to the last entry), letting tests script a retry-then-succeed
// sequence deterministically.
type scriptedCaller struct {
	responses []toolclient.Result
	calls     int32
	lastArgs  map[string]any
}

func (c *scriptedCaller) Call(ctx context.Context, action string, args map[string]any) toolclient.Result {
	n := atomic.AddInt32(&c.calls, 1) - 1
	c.lastArgs = args
	idx := int(n)
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	return c.responses[idx]
}

func (c *scriptedCaller) Health(ctx context.Context) toolclient.HealthStatus {
	return toolclient.HealthStatus{OK: true}
}

func newTestExecutor(callers map[string]toolclient.Caller) *Executor {
	reg := toolclient.NewRegistryFromClients(callers)
	return New(catalog.Default, reg, nil, nil, nil)
}

func readFileStep(path string) planner.Step {
	return planner.Step{Tool: "files", Action: "read_file", Args: map[string]any{"path": path}}
}

func TestExecutePlanModePlanOnlyNeverRuns(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{
		"files": &scriptedCaller{responses: []toolclient.Result{toolclient.Ok("read_file", "data")}},
	})
	plan := planner.Plan{Steps: []planner.Step{readFileStep("a.txt")}}

	outcome, err := ex.ExecutePlan(context.Background(), plan, "s1", ModePlanOnly, nil)
	require.NoError(t, err)
	assert.True(t, outcome.RequiresConfirmation)
	assert.Empty(t, outcome.Results)
	assert.Equal(t, plan.Steps, outcome.RemainingSteps)
}

func TestExecutePlanModeStepByStepRunsOnlyFirst(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{
		"files": &scriptedCaller{responses: []toolclient.Result{toolclient.Ok("read_file", "data")}},
	})
	plan := planner.Plan{Steps: []planner.Step{readFileStep("a.txt"), readFileStep("b.txt")}}

	outcome, err := ex.ExecutePlan(context.Background(), plan, "s1", ModeStepByStep, nil)
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, StatusSuccess, outcome.Results[0].Status)
	require.Len(t, outcome.RemainingSteps, 1)
	assert.Equal(t, "b.txt", outcome.RemainingSteps[0].Args["path"])
}

func TestExecutePlanModeAutoSingleNonSensitiveStepRunsDirectly(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{
		"files": &scriptedCaller{responses: []toolclient.Result{toolclient.Ok("read_file", "data")}},
	})
	plan := planner.Plan{Steps: []planner.Step{readFileStep("a.txt")}}

	outcome, err := ex.ExecutePlan(context.Background(), plan, "s1", ModeAuto, nil)
	require.NoError(t, err)
	assert.False(t, outcome.RequiresConfirmation)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, StatusSuccess, outcome.Results[0].Status)
}

func TestExecutePlanModeAutoSensitiveStepRequiresConfirmation(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{
		"files": &scriptedCaller{responses: []toolclient.Result{toolclient.Ok("write_file", "done")}},
	})
	plan := planner.Plan{Steps: []planner.Step{{Tool: "files", Action: "write_file", Args: map[string]any{"path": "a.txt", "content": "x"}}}}

	outcome, err := ex.ExecutePlan(context.Background(), plan, "s1", ModeAuto, nil)
	require.NoError(t, err)
	assert.True(t, outcome.RequiresConfirmation)
	assert.Empty(t, outcome.Results)
}

func TestExecutePlanModeAutoMultiStepRequiresConfirmation(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{
		"files": &scriptedCaller{responses: []toolclient.Result{toolclient.Ok("read_file", "data")}},
	})
	plan := planner.Plan{Steps: []planner.Step{readFileStep("a.txt"), readFileStep("b.txt")}}

	outcome, err := ex.ExecutePlan(context.Background(), plan, "s1", ModeAuto, nil)
	require.NoError(t, err)
	assert.True(t, outcome.RequiresConfirmation)
}

func TestRunConfirmedSubstitutesPrevious(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{
		"files": &scriptedCaller{responses: []toolclient.Result{
			toolclient.Ok("read_file", "file contents"),
			toolclient.Ok("write_file", "written"),
		}},
	})
	plan := planner.Plan{Steps: []planner.Step{
		readFileStep("a.txt"),
		{Tool: "files", Action: "write_file", Args: map[string]any{"path": "b.txt", "content": PreviousArg}},
	}}

	outcome := ex.RunConfirmed(context.Background(), plan, "s1", nil)
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, StatusSuccess, outcome.Results[0].Status)
	assert.Equal(t, StatusSuccess, outcome.Results[1].Status)
}

func TestRunConfirmedMissingPreviousFails(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{
		"files": &scriptedCaller{responses: []toolclient.Result{toolclient.Ok("write_file", "written")}},
	})
	plan := planner.Plan{Steps: []planner.Step{
		{Tool: "files", Action: "write_file", Args: map[string]any{"path": "b.txt", "content": PreviousArg}},
	}}

	outcome := ex.RunConfirmed(context.Background(), plan, "s1", nil)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, StatusError, outcome.Results[0].Status)
	assert.Equal(t, toolclient.ErrMissingPrevious, outcome.Results[0].ErrorKind)
}

func TestRunConfirmedParallelGroupRunsConcurrently(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{
		"files": &scriptedCaller{responses: []toolclient.Result{toolclient.Ok("read_file", "data")}},
	})
	plan := planner.Plan{Steps: []planner.Step{
		{Tool: "files", Action: "read_file", Args: map[string]any{"path": "a.txt", "__parallel_group": "g1"}},
		{Tool: "files", Action: "read_file", Args: map[string]any{"path": "b.txt", "__parallel_group": "g1"}},
	}}

	outcome := ex.RunConfirmed(context.Background(), plan, "s1", nil)
	require.Len(t, outcome.Results, 2)
	for _, r := range outcome.Results {
		assert.Equal(t, StatusSuccess, r.Status)
	}
}

func TestRunConfirmedUnknownToolErrors(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{})
	plan := planner.Plan{Steps: []planner.Step{{Tool: "nonexistent", Action: "do"}}}

	outcome := ex.RunConfirmed(context.Background(), plan, "s1", nil)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, StatusError, outcome.Results[0].Status)
	assert.Equal(t, toolclient.ErrUnknownAction, outcome.Results[0].ErrorKind)
}

func TestRunConfirmedCancellationSkipsRemaining(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{
		"files": &scriptedCaller{responses: []toolclient.Result{toolclient.Ok("read_file", "data")}},
	})
	handle := NewHandle()
	handle.Cancel()

	plan := planner.Plan{Steps: []planner.Step{readFileStep("a.txt"), readFileStep("b.txt")}}
	outcome := ex.RunConfirmed(context.Background(), plan, "s1", handle)
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, StatusCancelled, outcome.Results[0].Status)
	assert.Equal(t, StatusSkipped, outcome.Results[1].Status)
}

func TestRunConfirmedRetriableFailureStopsAtThreeCalls(t *testing.T) {
	caller := &scriptedCaller{responses: []toolclient.Result{
		toolclient.Fail("read_file", toolclient.ErrRemote, "boom"),
	}}
	ex := newTestExecutor(map[string]toolclient.Caller{"files": caller})
	plan := planner.Plan{Steps: []planner.Step{readFileStep("a.txt")}}

	outcome := ex.RunConfirmed(context.Background(), plan, "s1", nil)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, StatusError, outcome.Results[0].Status)
	assert.Equal(t, toolclient.ErrRemote, outcome.Results[0].ErrorKind)
	assert.EqualValues(t, 3, caller.calls)
}

func TestRunConfirmedForwardsCatalogPreferredLLMToDispatch(t *testing.T) {
	caller := &scriptedCaller{responses: []toolclient.Result{toolclient.Ok("read_file", "data")}}
	ex := newTestExecutor(map[string]toolclient.Caller{"files": caller})
	plan := planner.Plan{Steps: []planner.Step{readFileStep("a.txt")}}

	outcome := ex.RunConfirmed(context.Background(), plan, "s1", nil)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, StatusSuccess, outcome.Results[0].Status)
	assert.Equal(t, string(catalog.RoleCoding), caller.lastArgs["preferred_llm"])
	assert.Equal(t, "a.txt", caller.lastArgs["path"])
}

func TestRunConfirmedRespectsExplicitStepPreferredLLM(t *testing.T) {
	caller := &scriptedCaller{responses: []toolclient.Result{toolclient.Ok("read_file", "data")}}
	ex := newTestExecutor(map[string]toolclient.Caller{"files": caller})
	step := readFileStep("a.txt")
	step.PreferredLLM = catalog.RoleVision
	plan := planner.Plan{Steps: []planner.Step{step}}

	outcome := ex.RunConfirmed(context.Background(), plan, "s1", nil)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, string(catalog.RoleVision), caller.lastArgs["preferred_llm"])
}

func TestDryRunReportsInvalidSteps(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{})
	plan := planner.Plan{Steps: []planner.Step{
		readFileStep("a.txt"),
		{Tool: "files", Action: "read_file", Args: map[string]any{}},
	}}

	report := ex.DryRun(plan)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Valid)
	assert.Len(t, report.Invalid, 1)
	assert.False(t, report.CanExecute)
}

func TestDryRunStripsParallelGroupMarker(t *testing.T) {
	ex := newTestExecutor(map[string]toolclient.Caller{})
	plan := planner.Plan{Steps: []planner.Step{
		{Tool: "files", Action: "read_file", Args: map[string]any{"path": "a.txt", "__parallel_group": "g1"}},
	}}

	report := ex.DryRun(plan)
	assert.Equal(t, 1, report.Valid)
	assert.True(t, report.CanExecute)
}
