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

// Package planner produces a Plan from a user message and a SuperContext
// by prompting the reasoning-role LLM for a JSON plan and validating it
// against the tool catalog (spec §4.6).
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kernelmesh/orchestrator/internal/catalog"
	"github.com/kernelmesh/orchestrator/internal/contextbuilder"
	"github.com/kernelmesh/orchestrator/internal/llm"
)

// Step is one planned tool invocation. Args values may be literals or the
// sentinel "$previous".
type Step struct {
	Tool         string         `json:"tool"`
	Action       string         `json:"action"`
	Args         map[string]any `json:"args"`
	PreferredLLM catalog.LLMRole `json:"preferred_llm"`
}

// Plan is an ordered sequence of Steps plus the planner's reasoning.
type Plan struct {
	Steps     []Step `json:"steps"`
	Reasoning string `json:"reasoning"`
}

// FallbackPlan is returned whenever the LLM output is unparseable or
// fails catalog validation (spec §4.6 step 5): a single llm.generate step
// answering the user message directly.
func FallbackPlan(userMessage string) Plan {
	return Plan{
		Steps: []Step{{
			Tool: "llm", Action: "generate",
			Args:         map[string]any{"prompt": userMessage},
			PreferredLLM: catalog.RoleReasoning,
		}},
		Reasoning: "fallback: planner output was unparseable or invalid",
	}
}

// Planner assembles prompts and parses plans.
type Planner struct {
	Catalog catalog.Catalog
	Models  *llm.ModelRegistry
}

// New builds a Planner backed by the given catalog and model registry.
func New(cat catalog.Catalog, models *llm.ModelRegistry) *Planner {
	return &Planner{Catalog: cat, Models: models}
}

// Plan produces a Plan for userMessage given sc (spec §4.6 steps 1-5).
func (p *Planner) Plan(ctx context.Context, userMessage string, sc *contextbuilder.SuperContext) (Plan, error) {
	prompt := p.buildPrompt(userMessage, sc)

	reasoner, err := p.Models.Resolve(catalog.RoleReasoning)
	if err != nil {
		return FallbackPlan(userMessage), nil
	}

	raw, err := reasoner.Generate(ctx, prompt)
	if err != nil {
		return FallbackPlan(userMessage), nil
	}

	plan, err := parsePlan(raw)
	if err != nil {
		return FallbackPlan(userMessage), nil
	}

	for i := range plan.Steps {
		role, err := p.Catalog.ResolvePreferredLLM(plan.Steps[i].Tool, plan.Steps[i].Action, plan.Steps[i].PreferredLLM)
		if err != nil {
			return FallbackPlan(userMessage), nil
		}
		plan.Steps[i].PreferredLLM = role
		if err := p.Catalog.ValidateStep(plan.Steps[i].Tool, plan.Steps[i].Action, plan.Steps[i].Args); err != nil {
			return FallbackPlan(userMessage), nil
		}
	}

	return plan, nil
}

// buildPrompt assembles the user message, SuperContext summary, the
// verbatim tool catalog, and the three role descriptions (spec §4.6
// step 2).
func (p *Planner) buildPrompt(userMessage string, sc *contextbuilder.SuperContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User request: %s\n\n", userMessage)
	fmt.Fprintf(&b, "Context summary: %s\n\n", sc.Summarize())
	b.WriteString("Tool catalog:\n")
	for tool, spec := range p.Catalog {
		for action, actionSpec := range spec.Actions {
			fmt.Fprintf(&b, "  %s.%s required=%v optional=%v preferred_llm_default=%s\n",
				tool, action, actionSpec.RequiredArgs, actionSpec.OptionalArgs, actionSpec.PreferredLLM)
		}
	}
	b.WriteString("\nLLM roles: reasoning (general reasoning), coding (code/file operations), vision (image analysis).\n\n")
	b.WriteString(`Respond with a single JSON object: {"steps":[{"tool":"...","action":"...","args":{...},"preferred_llm":"..."}],"reasoning":"..."}`)
	return b.String()
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// parsePlan extracts and decodes the first JSON object found in raw,
// tolerating a reasoning model that wraps its JSON in prose.
func parsePlan(raw string) (Plan, error) {
	raw = strings.TrimSpace(raw)
	candidate := raw
	if !strings.HasPrefix(raw, "{") {
		if m := jsonObjectRe.FindString(raw); m != "" {
			candidate = m
		}
	}
	var plan Plan
	if err := json.Unmarshal([]byte(candidate), &plan); err != nil {
		return Plan{}, fmt.Errorf("parse plan: %w", err)
	}
	return plan, nil
}

