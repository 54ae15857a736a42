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

// Package catalog declares the compile-time static tool catalog: the ground
// truth consulted by the Planner's prompt assembly, the Executor's dispatch,
// and the step validator. Unlike the teacher's dynamic, string-keyed tool
// dispatch, the catalog here is a fixed Go map built once at init — no
// runtime registration of tools.
package catalog

import "fmt"

// LLMRole is the closed set of model roles a PlanStep can request.
// Downstream components carry this variant rather than a raw model string;
// a ModelRegistry (internal/llm) resolves it to a concrete model at call
// time.
type LLMRole string

const (
	RoleReasoning LLMRole = "reasoning"
	RoleCoding    LLMRole = "coding"
	RoleVision    LLMRole = "vision"
)

// ActionSpec declares one action's argument contract.
type ActionSpec struct {
	RequiredArgs     []string
	OptionalArgs     []string
	PreferredLLM     LLMRole
	Sensitive        bool
}

// ToolSpec is the set of actions one tool exposes.
type ToolSpec struct {
	Actions map[string]ActionSpec
}

// Catalog is the immutable tool -> action -> spec mapping.
type Catalog map[string]ToolSpec

func action(required, optional []string, role LLMRole, sensitive bool) ActionSpec {
	return ActionSpec{RequiredArgs: required, OptionalArgs: optional, PreferredLLM: role, Sensitive: sensitive}
}

// Default is the fixed tool catalog of the kernel (spec §4.1, verbatim).
var Default = Catalog{
	"files": {Actions: map[string]ActionSpec{
		"read_file":   action([]string{"path"}, nil, RoleCoding, false),
		"write_file":  action([]string{"path", "content"}, nil, RoleCoding, true),
		"list_dir":    action([]string{"path"}, nil, RoleReasoning, false),
		"delete_file": action([]string{"path"}, nil, RoleCoding, true),
		"file_exists": action([]string{"path"}, nil, RoleReasoning, false),
		"file_info":   action([]string{"path"}, nil, RoleReasoning, false),
	}},
	"memory": {Actions: map[string]ActionSpec{
		"add_message":   action([]string{"session_id", "role", "content"}, []string{"metadata"}, RoleReasoning, false),
		"get_messages":  action([]string{"session_id"}, []string{"limit"}, RoleReasoning, false),
		"get_context":   action([]string{"session_id"}, []string{"max_messages"}, RoleReasoning, false),
		"search":        action([]string{"query"}, []string{"session_id"}, RoleReasoning, false),
		"clear_session": action([]string{"session_id"}, nil, RoleReasoning, true),
		"list_sessions": action(nil, nil, RoleReasoning, false),
	}},
	"rag": {Actions: map[string]ActionSpec{
		"add_document":    action([]string{"dataset", "filename", "content"}, []string{"metadata"}, RoleReasoning, true),
		"query":           action([]string{"dataset", "text"}, []string{"top_k", "filters"}, RoleReasoning, false),
		"list_documents":  action([]string{"dataset"}, nil, RoleReasoning, false),
		"list_datasets":   action(nil, nil, RoleReasoning, false),
		"delete_document": action([]string{"document_id"}, nil, RoleReasoning, true),
		"delete_dataset":  action([]string{"dataset"}, nil, RoleReasoning, true),
		"get_dataset_info": action([]string{"dataset"}, nil, RoleReasoning, false),
		"cleanup_memory":  action(nil, []string{"retention_days"}, RoleReasoning, false),
	}},
	"vision": {Actions: map[string]ActionSpec{
		"analyze_image":       action([]string{"path"}, []string{"prompt"}, RoleVision, false),
		"extract_text":        action([]string{"path"}, nil, RoleVision, false),
		"analyze_screenshot":  action(nil, []string{"prompt"}, RoleVision, false),
	}},
	"search": {Actions: map[string]ActionSpec{
		"search_web":   action([]string{"query"}, []string{"limit"}, RoleReasoning, false),
		"search_news":  action([]string{"query"}, []string{"limit"}, RoleReasoning, false),
		"search_all":   action([]string{"query"}, []string{"limit"}, RoleReasoning, false),
	}},
	"system": {Actions: map[string]ActionSpec{
		"snapshot":       action(nil, nil, RoleReasoning, false),
		"list_processes": action(nil, nil, RoleReasoning, false),
		"kill_process":   action([]string{"pid"}, nil, RoleCoding, true),
		"open_file":      action([]string{"path"}, nil, RoleReasoning, false),
		"open_folder":    action([]string{"path"}, nil, RoleReasoning, false),
		"run_program":    action([]string{"command"}, []string{"args"}, RoleCoding, true),
	}},
	"control": {Actions: map[string]ActionSpec{
		"move_mouse":  action([]string{"x", "y"}, nil, RoleReasoning, true),
		"click_mouse": action(nil, []string{"button"}, RoleReasoning, true),
		"scroll":      action([]string{"amount"}, nil, RoleReasoning, true),
		"type":        action([]string{"text"}, nil, RoleReasoning, true),
		"keypress":    action([]string{"key"}, nil, RoleReasoning, true),
	}},
	"audio": {Actions: map[string]ActionSpec{
		"transcribe":     action([]string{"path"}, nil, RoleReasoning, false),
		"text_to_speech": action([]string{"text"}, []string{"voice"}, RoleReasoning, true),
		"analyze":        action([]string{"path"}, nil, RoleReasoning, false),
	}},
	"documents": {Actions: map[string]ActionSpec{
		"generate_document": action([]string{"template", "data"}, nil, RoleCoding, true),
		"fill_template":      action([]string{"template", "data"}, nil, RoleCoding, true),
	}},
	"llm": {Actions: map[string]ActionSpec{
		"generate":    action([]string{"prompt"}, []string{"model"}, RoleReasoning, false),
		"chat":        action([]string{"messages"}, []string{"model"}, RoleReasoning, false),
		"list_models": action(nil, nil, RoleReasoning, false),
	}},
}

// HasTool reports whether tool is a known catalog entry.
func (c Catalog) HasTool(tool string) bool {
	_, ok := c[tool]
	return ok
}

// Action looks up the ActionSpec for (tool, action). The ok bool is false
// when either the tool or the action is not in the catalog.
func (c Catalog) Action(tool, action string) (ActionSpec, bool) {
	t, ok := c[tool]
	if !ok {
		return ActionSpec{}, false
	}
	spec, ok := t.Actions[action]
	return spec, ok
}

// IsSensitive reports whether (tool, action) is a sensitive action per the
// initial set in spec §4.7: writes or external side effects gated behind
// confirmation in auto execution mode.
func (c Catalog) IsSensitive(tool, action string) bool {
	spec, ok := c.Action(tool, action)
	if !ok {
		return false
	}
	return spec.Sensitive
}

// ValidateStep reports whether args satisfies the declared required/ optional
// argument contract for (tool, action). It does not mutate args.
func (c Catalog) ValidateStep(tool, action string, args map[string]any) error {
	spec, ok := c.Action(tool, action)
	if !ok {
		return ErrUnknownAction{Tool: tool, Action: action}
	}
	allowed := make(map[string]bool, len(spec.RequiredArgs)+len(spec.OptionalArgs))
	for _, a := range spec.RequiredArgs {
		allowed[a] = true
	}
	for _, a := range spec.OptionalArgs {
		allowed[a] = true
	}
	for _, req := range spec.RequiredArgs {
		if _, present := args[req]; !present {
			return ErrMissingArg{Tool: tool, Action: action, Arg: req}
		}
	}
	for key := range args {
		if !allowed[key] {
			return ErrUnknownArg{Tool: tool, Action: action, Arg: key}
		}
	}
	return nil
}

// validLLMRoles is the closed set a PlanStep's preferred_llm may take.
var validLLMRoles = map[LLMRole]bool{RoleReasoning: true, RoleCoding: true, RoleVision: true}

// ResolvePreferredLLM is the step validator's consultation of
// preferred_llm_default (spec §3 ToolCatalog invariant): an explicit,
// valid preferred role always wins; an absent one defaults to the
// catalog's ActionSpec.PreferredLLM for (tool, action); if the catalog
// has no default either, it falls back to RoleReasoning.
func (c Catalog) ResolvePreferredLLM(tool, action string, preferred LLMRole) (LLMRole, error) {
	if preferred != "" {
		if !validLLMRoles[preferred] {
			return "", ErrInvalidPreferredLLM{Tool: tool, Action: action, Role: preferred}
		}
		return preferred, nil
	}
	if spec, ok := c.Action(tool, action); ok && spec.PreferredLLM != "" {
		return spec.PreferredLLM, nil
	}
	return RoleReasoning, nil
}

// ErrInvalidPreferredLLM is returned when a plan step declares a
// preferred_llm outside the closed role set.
type ErrInvalidPreferredLLM struct {
	Tool, Action string
	Role         LLMRole
}

func (e ErrInvalidPreferredLLM) Error() string {
	return fmt.Sprintf("invalid preferred_llm %q for %s.%s", e.Role, e.Tool, e.Action)
}

// ErrUnknownAction is returned when (tool, action) is not in the catalog.
type ErrUnknownAction struct {
	Tool, Action string
}

func (e ErrUnknownAction) Error() string {
	return "unknown action: " + e.Tool + "." + e.Action
}

// ErrMissingArg is returned when a required argument is absent.
type ErrMissingArg struct {
	Tool, Action, Arg string
}

func (e ErrMissingArg) Error() string {
	return "missing required arg " + e.Arg + " for " + e.Tool + "." + e.Action
}

// ErrUnknownArg is returned when args carries a key outside the declared
// required/optional set.
type ErrUnknownArg struct {
	Tool, Action, Arg string
}

func (e ErrUnknownArg) Error() string {
	return "unknown arg " + e.Arg + " for " + e.Tool + "." + e.Action
}
