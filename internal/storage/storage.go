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

// Package storage opens the relational backend shared by the Document Store
// and the Timeline. It supports sqlite (embedded, default), postgres, and
// mysql through database/sql dialect drivers, following the same
// dialect-selectable pattern the kernel's teacher uses for session storage.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kernelmesh/orchestrator/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies which SQL dialect a *sql.DB speaks, since schema DDL
// and placeholder syntax differ across backends.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// DB wraps a *sql.DB with the dialect needed to pick dialect-specific SQL.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open validates cfg, opens the driver-specific connection, and runs the
// schema migration needed by the Document Store and Timeline.
func Open(cfg config.StorageConfig) (*DB, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("storage config: %w", err)
	}

	driverName := cfg.Dialect
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	sqlDB, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Dialect, err)
	}
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Dialect, err)
	}

	db := &DB{DB: sqlDB, Dialect: Dialect(cfg.Dialect)}
	if err := db.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Placeholder returns the positional parameter marker for index i (1-based)
// in the DB's dialect: "?" for sqlite/mysql, "$i" for postgres.
func (d *DB) Placeholder(i int) string {
	if d.Dialect == Postgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func (d *DB) autoIncrementPK() string {
	switch d.Dialect {
	case Postgres:
		return "SERIAL PRIMARY KEY"
	case MySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

func (d *DB) blobType() string {
	if d.Dialect == Postgres {
		return "BYTEA"
	}
	return "BLOB"
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id VARCHAR(64) PRIMARY KEY,
			dataset VARCHAR(64) NOT NULL,
			filename VARCHAR(512) NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			version INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_dataset ON documents(dataset)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at)`,
		`CREATE TABLE IF NOT EXISTS document_versions (
			document_id VARCHAR(64) NOT NULL,
			version INTEGER NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (document_id, version)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			document_id VARCHAR(64) NOT NULL,
			order_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			embedding %s,
			PRIMARY KEY (document_id, order_index)
		)`, d.blobType()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS timeline_events (
			id %s,
			ts TIMESTAMP NOT NULL,
			session_id VARCHAR(255) NOT NULL,
			event_type VARCHAR(128) NOT NULL,
			modality VARCHAR(32) NOT NULL,
			data TEXT,
			metadata TEXT
		)`, d.autoIncrementPK()),
		`CREATE INDEX IF NOT EXISTS idx_timeline_session ON timeline_events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_timeline_ts ON timeline_events(ts)`,
	}
	for _, stmt := range stmts {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}
