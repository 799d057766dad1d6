// Copyright 2025 Kadir Pekel
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

// Package sqlstate is the database/sql-backed implementation of
// state.Port, following the teacher's multi-dialect
// session_service_sql.go pattern: one code path, a driver selected by
// configured dialect, versioned invertible migrations applied with
// goose before first use.
package sqlstate

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	// Drivers registered by blank import, selected at runtime by dialect.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/orchkit/pkg/state"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Dialect selects the SQL driver and query flavor.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

func (d Dialect) driverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectMySQL:
		return "mysql"
	default:
		return "sqlite3"
	}
}

// Store is the SQL-backed state.Port. All write methods run inside a
// transaction opened on db. For sqlite, writeMu also serializes
// writers; postgres and mysql rely on the database's transaction
// isolation alone.
type Store struct {
	dialect Dialect
	db      *sqlx.DB

	// writeMu serializes writers on dialects (sqlite) whose driver does
	// not tolerate concurrent writers well; readers are unaffected.
	writeMu sync.Mutex
}

var _ state.Port = (*Store)(nil)

// Open connects to dsn using dialect, applies pending goose migrations,
// and returns a ready Store.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstate: connect: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(string(dialect)); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstate: set dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstate: migrate: %w", err)
	}

	return &Store{dialect: dialect, db: db}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on any error and on
// panic, committing otherwise. It is the sole writer path: Store
// serializes sqlite writers with writeMu and relies on the database's
// native transaction isolation for postgres/mysql.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if s.dialect == DialectSQLite {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstate: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstate: commit: %w", err)
	}
	return nil
}
