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

// Package toolclient implements the Tool-Client contract shared by every
// tool microservice the kernel dispatches to: a uniform request/response
// shape, per-client timeouts, and a health check. No client ever returns a
// Go error for a remote failure — remote and transport failures are folded
// into the ErrorKind field of Result, matching the Executor's typed-result
// control flow (spec Design Notes §9).
package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/httpclient"
)

// ErrorKind is the normalized error taxonomy of spec §7.
type ErrorKind string

const (
	ErrTransport            ErrorKind = "transport"
	ErrTimeout              ErrorKind = "timeout"
	ErrRemote               ErrorKind = "remote_error"
	ErrBadRequest           ErrorKind = "bad_request"
	ErrUnknownAction        ErrorKind = "unknown_action"
	ErrPermissionDenied     ErrorKind = "permission_denied"
	ErrMissingPrevious      ErrorKind = "missing_previous"
	ErrEmbeddingUnavailable ErrorKind = "embedding_unavailable"
	ErrParse                ErrorKind = "parse_error"
	ErrFatal                ErrorKind = "fatal"
)

// Retriable reports whether the Executor should retry a step that failed
// with this error kind (spec §7 propagation policy).
func (k ErrorKind) Retriable() bool {
	switch k {
	case ErrTransport, ErrTimeout, ErrRemote:
		return true
	default:
		return false
	}
}

// Result is the uniform response shape every Tool-Client call returns.
type Result struct {
	OK      bool           `json:"ok"`
	Data    any            `json:"data,omitempty"`
	ErrKind ErrorKind      `json:"error_kind,omitempty"`
	ErrMsg  string         `json:"error_message,omitempty"`
	Action  string         `json:"action"`
}

// Ok builds a successful Result.
func Ok(action string, data any) Result {
	return Result{OK: true, Data: data, Action: action}
}

// Fail builds a failed Result.
func Fail(action string, kind ErrorKind, msg string) Result {
	return Result{OK: false, ErrKind: kind, ErrMsg: msg, Action: action}
}

// timeout classes per spec §4.1.
const (
	shortTimeout    = 30 * time.Second
	llmTimeout      = 120 * time.Second
	visionTimeout   = 60 * time.Second
)

func timeoutFor(tool string) time.Duration {
	switch tool {
	case "llm":
		return llmTimeout
	case "vision":
		return visionTimeout
	default:
		return shortTimeout
	}
}

// HealthStatus is the result of a Tool-Client's health() call.
type HealthStatus struct {
	OK      bool   `json:"ok"`
	Details string `json:"details,omitempty"`
}

// Client is the uniform shape every tool's HTTP wrapper implements: one
// generic Call dispatching by action name, plus Health.
type Client struct {
	Tool    string
	baseURL string
	timeout time.Duration
	http    *httpclient.Client
}

// New builds a Client for tool, reading its base URL/timeout from cfg.
func New(tool string, cfg config.ToolEndpointConfig) *Client {
	timeout := timeoutFor(tool)
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &Client{
		Tool:    tool,
		baseURL: cfg.BaseURL,
		timeout: timeout,
		// Retry is the Executor's job (spec §4.7 step-level backoff); the
		// transport client here makes exactly one attempt per call.
		http: httpclient.New(httpclient.WithMaxRetries(0)),
	}
}

// Call invokes action on this tool's service with args as the JSON body.
// It never returns a Go error: transport, timeout, and remote failures are
// all folded into the returned Result.
func (c *Client) Call(ctx context.Context, action string, args map[string]any) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(args)
	if err != nil {
		return Fail(action, ErrBadRequest, err.Error())
	}

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, c.Tool, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Fail(action, ErrBadRequest, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil && resp == nil {
		// No response at all: a connection-level failure rather than a
		// non-2xx status (httpclient.Do returns both resp and err for the
		// latter so the caller can still inspect the status code).
		if ctx.Err() != nil {
			return Fail(action, ErrTimeout, err.Error())
		}
		return Fail(action, ErrTransport, err.Error())
	}
	defer resp.Body.Close()

	var payload struct {
		OK     *bool          `json:"ok"`
		Status string         `json:"status"`
		Data   any            `json:"data"`
		Error  string         `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode >= 500 {
			return Fail(action, ErrRemote, fmt.Sprintf("status %d, undecodable body", resp.StatusCode))
		}
		return Fail(action, ErrBadRequest, fmt.Sprintf("undecodable response: %v", err))
	}

	if resp.StatusCode >= 500 {
		return Fail(action, ErrRemote, firstNonEmpty(payload.Error, fmt.Sprintf("status %d", resp.StatusCode)))
	}
	if resp.StatusCode >= 400 {
		return Fail(action, ErrBadRequest, firstNonEmpty(payload.Error, fmt.Sprintf("status %d", resp.StatusCode)))
	}

	ok := true
	if payload.OK != nil {
		ok = *payload.OK
	} else if payload.Status != "" {
		ok = payload.Status == "ok" || payload.Status == "success"
	}
	if !ok {
		return Fail(action, ErrRemote, firstNonEmpty(payload.Error, "tool reported failure"))
	}
	return Ok(action, payload.Data)
}

// Health calls the tool service's GET /health.
func (c *Client) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthStatus{OK: false, Details: err.Error()}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return HealthStatus{OK: false, Details: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return HealthStatus{OK: false, Details: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return HealthStatus{OK: true}
}

func firstNonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
