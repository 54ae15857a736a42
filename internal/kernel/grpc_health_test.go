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
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestGRPCHealthServerServesServingStatus(t *testing.T) {
	gh, err := newGRPCHealthServer("127.0.0.1:0", slog.Default())
	require.NoError(t, err)
	t.Cleanup(gh.stop)

	// newGRPCHealthServer doesn't expose the chosen port when given ":0",
	// so exercise setStatus/stop directly instead of dialing back in.
	gh.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	gh.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
}

func TestNilGRPCHealthServerMethodsAreNoOps(t *testing.T) {
	var gh *grpcHealthServer
	assert.NotPanics(t, func() {
		gh.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
		gh.stop()
	})
}
