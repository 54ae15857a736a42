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

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/orchestrator/internal/config"
)

func openMemDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(config.StorageConfig{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenMigratesSchema(t *testing.T) {
	db := openMemDB(t)

	for _, table := range []string{"documents", "document_versions", "chunks", "timeline_events"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, "expected table %s to exist", table)
		assert.Equal(t, table, name)
	}
}

func TestOpenRejectsUnsupportedDialect(t *testing.T) {
	_, err := Open(config.StorageConfig{Dialect: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestPlaceholder(t *testing.T) {
	sqliteDB := &DB{Dialect: SQLite}
	assert.Equal(t, "?", sqliteDB.Placeholder(1))
	assert.Equal(t, "?", sqliteDB.Placeholder(2))

	pgDB := &DB{Dialect: Postgres}
	assert.Equal(t, "$1", pgDB.Placeholder(1))
	assert.Equal(t, "$2", pgDB.Placeholder(2))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openMemDB(t)
	assert.NoError(t, db.migrate(context.Background()))
}
