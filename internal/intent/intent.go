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

// Package intent implements a lightweight keyword/regex classifier over
// the user message (spec §4.9). It has no ML dependency by design: the
// Context Builder uses its output to pick its adaptive RAG profile, and the Executor's sensitive-step gating is independent of it
// (gating is catalog-driven, not intent-driven).
package intent

import "regexp"

// Intent is the closed classification variant.
type Intent string

const (
	RulesQuery      Intent = "rules_query"
	ProjectQuery    Intent = "project_query"
	MemoryQuery     Intent = "memory_query"
	VisionAnalysis  Intent = "vision_analysis"
	AudioProcessing Intent = "audio_processing"
	SystemQuery     Intent = "system_query"
	General         Intent = "general"
)

type rule struct {
	intent  Intent
	pattern *regexp.Regexp
}

var rules = []rule{
	{VisionAnalysis, regexp.MustCompile(`(?i)\b(screenshot|image|photo|picture|visual|look at|analyze.*(image|screen))\b`)},
	{AudioProcessing, regexp.MustCompile(`(?i)\b(audio|transcribe|recording|voice|speech|listen)\b`)},
	{SystemQuery, regexp.MustCompile(`(?i)\b(running process(es)?|system (status|info|snapshot)|cpu usage|memory usage|disk space|what('s| is) running)\b`)},
	{RulesQuery, regexp.MustCompile(`(?i)\b(rule|policy|guideline|how (should|do) (i|you)|what (are|is) the (rule|policy))\b`)},
	{ProjectQuery, regexp.MustCompile(`(?i)\b(project|codebase|repo|repository|source code|file|module)\b`)},
	{MemoryQuery, regexp.MustCompile(`(?i)\b(remember|recall|earlier|previous(ly)?|last time|you (said|told))\b`)},
}

// Classify assigns message to one of the closed Intent values; unmatched
// messages classify as General.
func Classify(message string) Intent {
	for _, r := range rules {
		if r.pattern.MatchString(message) {
			return r.intent
		}
	}
	return General
}
