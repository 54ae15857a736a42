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

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasToolAndAction(t *testing.T) {
	assert.True(t, Default.HasTool("files"))
	assert.False(t, Default.HasTool("nonexistent"))

	spec, ok := Default.Action("files", "read_file")
	assert.True(t, ok)
	assert.Equal(t, []string{"path"}, spec.RequiredArgs)

	_, ok = Default.Action("files", "nonexistent")
	assert.False(t, ok)
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, Default.IsSensitive("files", "write_file"))
	assert.False(t, Default.IsSensitive("files", "read_file"))
	assert.False(t, Default.IsSensitive("nonexistent", "anything"))
}

func TestValidateStepRequiredArgs(t *testing.T) {
	err := Default.ValidateStep("files", "read_file", map[string]any{})
	assert.ErrorAs(t, err, &ErrMissingArg{})

	err = Default.ValidateStep("files", "read_file", map[string]any{"path": "a.txt"})
	assert.NoError(t, err)
}

func TestValidateStepUnknownArg(t *testing.T) {
	err := Default.ValidateStep("files", "read_file", map[string]any{"path": "a.txt", "bogus": 1})
	assert.ErrorAs(t, err, &ErrUnknownArg{})
}

func TestValidateStepUnknownAction(t *testing.T) {
	err := Default.ValidateStep("files", "teleport", nil)
	assert.ErrorAs(t, err, &ErrUnknownAction{})
}

func TestValidateStepOptionalArgsAllowed(t *testing.T) {
	err := Default.ValidateStep("rag", "query", map[string]any{"dataset": "projects", "text": "x", "top_k": 3})
	assert.NoError(t, err)
}
