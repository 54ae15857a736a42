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

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns a fixed-length vector derived from text length, just
// enough to exercise the similarity path without a real model.
type stubEmbedder struct{}

func (stubEmbedder) Embed(text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (stubEmbedder) Dimension() int { return 2 }

func TestSanitize(t *testing.T) {
	id, err := Sanitize("")
	require.NoError(t, err)
	assert.Equal(t, "default", id)

	id, err = Sanitize("my-session_1")
	require.NoError(t, err)
	assert.Equal(t, "my-session_1", id)

	_, err = Sanitize("bad id with spaces")
	assert.Error(t, err)
}

func TestAddAndGetMessages(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, store.AddMessage("s1", Message{Role: RoleUser, Content: "hello"}, nil))
	require.NoError(t, store.AddMessage("s1", Message{Role: RoleAssistant, Content: "hi there"}, nil))

	msgs, err := store.GetMessages("s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "hi there", msgs[1].Content)

	tail, err := store.GetMessages("s1", 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "hi there", tail[0].Content)
}

func TestGetContextRendersRoleAndContent(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, store.AddMessage("s1", Message{Role: RoleUser, Content: "hello"}, nil))

	ctx, err := store.GetContext("s1", 10)
	require.NoError(t, err)
	assert.Equal(t, "[user] hello\n", ctx)
}

func TestAddMessageRoutesToProjectOnFirstWrite(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, nil)
	require.NoError(t, err)

	require.NoError(t, store.AddMessage("proj1", Message{Role: RoleUser, Content: "x"}, map[string]any{"project": "acme"}))

	msgs, err := store.GetMessages("proj1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestClearSessionAndListSessions(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, store.AddMessage("s1", Message{Role: RoleUser, Content: "x"}, nil))
	require.NoError(t, store.AddMessage("s2", Message{Role: RoleUser, Content: "y"}, nil))

	ids := store.ListSessions()
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)

	require.NoError(t, store.ClearSession("s1"))
	ids = store.ListSessions()
	assert.ElementsMatch(t, []string{"s2"}, ids)
}

func TestSearchSubstringMatch(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, store.AddMessage("s1", Message{Role: RoleUser, Content: "the quick brown fox"}, nil))
	require.NoError(t, store.AddMessage("s1", Message{Role: RoleUser, Content: "unrelated text"}, nil))

	hits, err := store.Search("quick", "s1")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "the quick brown fox", hits[0].Message.Content)
}

func TestSearchWithEmbedderRanksBySimilarity(t *testing.T) {
	store, err := New(t.TempDir(), stubEmbedder{})
	require.NoError(t, err)
	require.NoError(t, store.AddMessage("s1", Message{Role: RoleUser, Content: "aa"}, nil))

	hits, err := store.Search("aa", "s1")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Greater(t, hits[0].Similarity, float32(0))
}

func TestArchiveSweepMovesOldSessions(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, store.AddMessage("old1", Message{Role: RoleUser, Content: "x"}, nil))

	moved, err := store.ArchiveSweep(-time.Hour) // everything is "older" than negative duration
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	ids := store.ListSessions()
	assert.NotContains(t, ids, "old1")
}
