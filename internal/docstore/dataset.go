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

package docstore

import "time"

// Dataset is one tag of the fixed taxonomy (spec §4.2).
type Dataset string

const (
	DatasetAgentCore   Dataset = "agent_core"
	DatasetContextFlow Dataset = "context_flow"
	DatasetAgentMemory Dataset = "agent_memory"
	DatasetProjects    Dataset = "projects"
	DatasetScratchpad  Dataset = "scratchpad"
)

// retentionOf reports the retention window for a canonical dataset, or
// false for datasets that never expire. The Open Question in spec §9 is
// resolved here: projects retains for 180 days (the authoritative policy)
// rather than "permanent".
func retentionOf(d Dataset) (time.Duration, bool) {
	switch d {
	case DatasetContextFlow:
		return 90 * 24 * time.Hour, true
	case DatasetProjects:
		return 180 * 24 * time.Hour, true
	case DatasetScratchpad:
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// datasetAliases canonicalizes loosely-named dataset tags. "rules" is
// explicitly an alias of agent_core per the Open Question resolution in
// spec §9.
var datasetAliases = map[string]Dataset{
	"agent_core":   DatasetAgentCore,
	"core":         DatasetAgentCore,
	"rules":        DatasetAgentCore,
	"context_flow": DatasetContextFlow,
	"flow":         DatasetContextFlow,
	"agent_memory": DatasetAgentMemory,
	"feedback":     DatasetAgentMemory,
	"learning":     DatasetAgentMemory,
	"projects":     DatasetProjects,
	"project":      DatasetProjects,
	"scratchpad":   DatasetScratchpad,
	"temp":         DatasetScratchpad,
	"scratch":      DatasetScratchpad,
}

// metadataTypeRouting maps metadata.type values to a dataset, used when
// add_document omits an explicit dataset (spec §4.2).
var metadataTypeRouting = map[string]Dataset{
	"core_rule":     DatasetAgentCore,
	"context_data":  DatasetContextFlow,
	"learning_data": DatasetAgentMemory,
	"project_doc":   DatasetProjects,
	"general":       DatasetScratchpad,
}

// CanonicalizeDataset resolves a free-form dataset tag to the fixed
// taxonomy; unknown tags canonicalize to scratchpad.
func CanonicalizeDataset(tag string) Dataset {
	if d, ok := datasetAliases[tag]; ok {
		return d
	}
	return DatasetScratchpad
}

// RouteByMetadataType resolves a document's dataset from its
// metadata.type field when the caller supplied no explicit dataset;
// unknown types route to scratchpad.
func RouteByMetadataType(metadataType string) Dataset {
	if d, ok := metadataTypeRouting[metadataType]; ok {
		return d
	}
	return DatasetScratchpad
}

// priorityRank orders the min_priority filter values low < medium < high.
var priorityRank = map[string]int{"low": 0, "medium": 1, "high": 2}

// validPriority reports whether p is a recognized priority value.
func validPriority(p string) bool {
	_, ok := priorityRank[p]
	return ok
}
