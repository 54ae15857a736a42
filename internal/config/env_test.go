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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvVarsNoDollarIsUnchanged(t *testing.T) {
	assert.Equal(t, "plain string", ExpandEnvVars("plain string"))
}

func TestExpandEnvVarsWithDefault(t *testing.T) {
	t.Setenv("KERNEL_TEST_UNSET", "")
	assert.Equal(t, "fallback", ExpandEnvVars("${KERNEL_TEST_UNSET:-fallback}"))

	t.Setenv("KERNEL_TEST_SET", "override")
	assert.Equal(t, "override", ExpandEnvVars("${KERNEL_TEST_SET:-fallback}"))
}

func TestExpandEnvVarsBracedAndSimple(t *testing.T) {
	t.Setenv("KERNEL_TEST_HOST", "example.com")
	assert.Equal(t, "https://example.com/api", ExpandEnvVars("https://${KERNEL_TEST_HOST}/api"))
	assert.Equal(t, "https://example.com/api", ExpandEnvVars("https://$KERNEL_TEST_HOST/api"))
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("KERNEL_TEST_STR", "")
	assert.Equal(t, "fallback", envOrDefault("KERNEL_TEST_STR", "fallback"))
	t.Setenv("KERNEL_TEST_STR", "value")
	assert.Equal(t, "value", envOrDefault("KERNEL_TEST_STR", "fallback"))
}

func TestEnvIntOrDefault(t *testing.T) {
	t.Setenv("KERNEL_TEST_INT", "")
	assert.Equal(t, 42, envIntOrDefault("KERNEL_TEST_INT", 42))
	t.Setenv("KERNEL_TEST_INT", "7")
	assert.Equal(t, 7, envIntOrDefault("KERNEL_TEST_INT", 42))
	t.Setenv("KERNEL_TEST_INT", "not-a-number")
	assert.Equal(t, 42, envIntOrDefault("KERNEL_TEST_INT", 42))
}

func TestEnvBoolOrDefault(t *testing.T) {
	t.Setenv("KERNEL_TEST_BOOL", "")
	assert.True(t, envBoolOrDefault("KERNEL_TEST_BOOL", true))
	t.Setenv("KERNEL_TEST_BOOL", "false")
	assert.False(t, envBoolOrDefault("KERNEL_TEST_BOOL", true))
	t.Setenv("KERNEL_TEST_BOOL", "garbage")
	assert.True(t, envBoolOrDefault("KERNEL_TEST_BOOL", true))
}

func TestLoadDotEnvMissingFileIsNotError(t *testing.T) {
	assert.NoError(t, LoadDotEnv("/nonexistent/path/.env"))
}
