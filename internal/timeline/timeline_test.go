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

package timeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(config.StorageConfig{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDeriveModality(t *testing.T) {
	assert.Equal(t, ModalityAudio, deriveModality("audio_transcribed"))
	assert.Equal(t, ModalityVision, deriveModality("vision_analyzed"))
	assert.Equal(t, ModalityVision, deriveModality("image_captured"))
	assert.Equal(t, ModalityDocuments, deriveModality("document_indexed"))
	assert.Equal(t, ModalitySystem, deriveModality("system_restart"))
	assert.Equal(t, ModalityText, deriveModality("chat_message"))
}

func TestAppendAndQuery(t *testing.T) {
	tl := New(openTestDB(t))
	ctx := context.Background()

	ev, err := tl.Append(ctx, "s1", "chat_message", map[string]any{"text": "hi"}, nil, "")
	require.NoError(t, err)
	assert.NotZero(t, ev.ID)
	assert.Equal(t, ModalityText, ev.Modality)

	events, err := tl.Query(ctx, Filter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "chat_message", events[0].EventType)
	assert.Equal(t, "hi", events[0].Data["text"])
}

func TestQueryFiltersByModalityAndEventType(t *testing.T) {
	tl := New(openTestDB(t))
	ctx := context.Background()

	_, err := tl.Append(ctx, "s1", "vision_analyzed", nil, nil, "")
	require.NoError(t, err)
	_, err = tl.Append(ctx, "s1", "chat_message", nil, nil, "")
	require.NoError(t, err)

	events, err := tl.Query(ctx, Filter{SessionID: "s1", Modality: ModalityVision})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "vision_analyzed", events[0].EventType)

	events, err = tl.Query(ctx, Filter{SessionID: "s1", EventType: "chat_message"})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestQueryOrdersNewestFirst(t *testing.T) {
	tl := New(openTestDB(t))
	ctx := context.Background()

	_, err := tl.Append(ctx, "s1", "first", nil, nil, "")
	require.NoError(t, err)
	_, err = tl.Append(ctx, "s1", "second", nil, nil, "")
	require.NoError(t, err)

	events, err := tl.Query(ctx, Filter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "second", events[0].EventType)
	assert.Equal(t, "first", events[1].EventType)
}

func TestQueryRespectsLimit(t *testing.T) {
	tl := New(openTestDB(t))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := tl.Append(ctx, "s1", "event", nil, nil, "")
		require.NoError(t, err)
	}

	events, err := tl.Query(ctx, Filter{SessionID: "s1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
