// Package storage owns the SQLite connection pool and the tasks schema.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/Torqued-codes/App/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		completed BOOLEAN NOT NULL
	)`

// Open opens the database file, caps the pool at cfg.MaxConns and makes sure
// the tasks table exists.
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	if err := Bootstrap(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap creates the tasks table if it is missing. Safe to call repeatedly.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite create tasks table: %w", err)
	}
	return nil
}

// dsn builds a go-sqlite3 file URI. The path is percent-escaped so '?', '#' and
// '%' in a file name reach SQLite as part of the name. Write transactions start
// with BEGIN IMMEDIATE so a read-then-write sequence holds the write lock from
// its first statement.
func dsn(cfg config.DBConfig) string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(cfg.BusyTimeout.Duration().Milliseconds()))
	q.Set("_txlock", "immediate")
	q.Set("_foreign_keys", "on")
	return "file:" + (&url.URL{Path: cfg.Path}).EscapedPath() + "?" + q.Encode()
}
