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

package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		message string
		want    Intent
	}{
		{"can you look at this screenshot", VisionAnalysis},
		{"please transcribe this recording", AudioProcessing},
		{"what is the policy on vacation", RulesQuery},
		{"show me the source code for this module", ProjectQuery},
		{"do you remember what I said earlier", MemoryQuery},
		{"what running processes do you see", SystemQuery},
		{"what's the weather like today", General},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.message), "message: %s", c.message)
	}
}

func TestClassifyPrefersEarliestMatchingRule(t *testing.T) {
	// "analyze screenshot" matches vision before any other rule could.
	assert.Equal(t, VisionAnalysis, Classify("analyze this screenshot for me"))
}
