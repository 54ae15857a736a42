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

package toolclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kernelmesh/orchestrator/internal/config"
)

func TestErrorKindRetriable(t *testing.T) {
	assert.True(t, ErrTransport.Retriable())
	assert.True(t, ErrTimeout.Retriable())
	assert.True(t, ErrRemote.Retriable())
	assert.False(t, ErrBadRequest.Retriable())
	assert.False(t, ErrUnknownAction.Retriable())
	assert.False(t, ErrFatal.Retriable())
}

func TestClientCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"data":{"lines":42}}`))
	}))
	defer srv.Close()

	c := New("files", config.ToolEndpointConfig{BaseURL: srv.URL, Timeout: 5})
	res := c.Call(context.Background(), "read_file", map[string]any{"path": "a.txt"})
	assert.True(t, res.OK)
	assert.Equal(t, "read_file", res.Action)
}

func TestClientCallRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"ok":false,"error":"boom"}`))
	}))
	defer srv.Close()

	c := New("files", config.ToolEndpointConfig{BaseURL: srv.URL, Timeout: 5})
	res := c.Call(context.Background(), "read_file", map[string]any{"path": "a.txt"})
	assert.False(t, res.OK)
	assert.Equal(t, ErrRemote, res.ErrKind)
	assert.Equal(t, "boom", res.ErrMsg)
}

func TestClientCallBadRequestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error":"missing arg"}`))
	}))
	defer srv.Close()

	c := New("files", config.ToolEndpointConfig{BaseURL: srv.URL, Timeout: 5})
	res := c.Call(context.Background(), "read_file", nil)
	assert.False(t, res.OK)
	assert.Equal(t, ErrBadRequest, res.ErrKind)
}

func TestClientHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("files", config.ToolEndpointConfig{BaseURL: srv.URL, Timeout: 5})
	h := c.Health(context.Background())
	assert.True(t, h.OK)
}

func TestRegistryResolveAndHealthAll(t *testing.T) {
	fake := &fakeCaller{health: HealthStatus{OK: true}}
	reg := NewRegistryFromClients(map[string]Caller{"files": fake})

	assert.Equal(t, fake, reg.Resolve("files"))
	assert.Nil(t, reg.Resolve("nonexistent"))

	all := reg.HealthAll(context.Background())
	assert.Equal(t, HealthStatus{OK: true}, all["files"])
}

type fakeCaller struct {
	health HealthStatus
}

func (f *fakeCaller) Call(ctx context.Context, action string, args map[string]any) Result {
	return Ok(action, nil)
}

func (f *fakeCaller) Health(ctx context.Context) HealthStatus {
	return f.health
}
