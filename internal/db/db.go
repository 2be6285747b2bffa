package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/abysmo/ghd/internal/paths"
	_ "modernc.org/sqlite"
)

type lifecycle int

const (
	unconnected lifecycle = iota
	connected
	closed
)

// Store is a handle bound to a database file. It owns the single connection
// pool for that file and moves one way through unconnected, connected, closed.
type Store struct {
	path string

	mu    sync.Mutex
	state lifecycle
}

// DB is a connected store. Values only come from Store.Connect.
type DB struct {
	pool   *sql.DB
	path   string
	store  *Store
	closed atomic.Bool
}

// DefaultDBPath returns the default database path.
// Uses XDG_DATA_HOME/ghd/ghd.db or ~/.local/share/ghd/ghd.db
func DefaultDBPath() string {
	return paths.DatabasePath()
}

// New binds a store to path without touching the filesystem.
func New(path string) *Store {
	if path == "" {
		path = DefaultDBPath()
	}
	return &Store{path: path}
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

func dsn(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
}

// EnsureSchema creates the database file and its schema if the file does not
// exist yet. An existing file is left untouched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return wrap("stat database", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return wrap("create directory", err)
	}

	conn, err := sql.Open("sqlite", dsn(s.path))
	if err != nil {
		return wrap("open database", err)
	}

	err = applySchema(ctx, conn)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		removeFiles(s.path)
		return wrap("create schema", err)
	}
	return nil
}

func applySchema(ctx context.Context, conn *sql.DB) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, Schema); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

func removeFiles(path string) {
	os.Remove(path)
	os.Remove(path + "-wal")
	os.Remove(path + "-shm")
}

// Connect opens the connection pool. It fails with ErrAlreadyConnected when
// called on a connected store and ErrClosed once the store was closed.
func (s *Store) Connect(ctx context.Context) (*DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case connected:
		return nil, ErrAlreadyConnected
	case closed:
		return nil, ErrClosed
	}

	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil, wrap("connect", ErrNotInitialized)
	} else if err != nil {
		return nil, wrap("connect", err)
	}

	pool, err := sql.Open("sqlite", dsn(s.path))
	if err != nil {
		return nil, wrap("open database", err)
	}

	// SQLite works best with single connection
	pool.SetMaxOpenConns(1)
	pool.SetMaxIdleConns(1)
	pool.SetConnMaxLifetime(0)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, wrap("ping database", err)
	}

	s.state = connected
	return &DB{pool: pool, path: s.path, store: s}, nil
}

func (s *Store) markClosed() {
	s.mu.Lock()
	s.state = closed
	s.mu.Unlock()
}

// Pool returns the live connection pool. Using a closed DB is a caller bug.
func (d *DB) Pool() *sql.DB {
	if d.closed.Load() {
		panic("db: Pool called on closed database")
	}
	return d.pool
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// Close closes the pool. The owning store cannot be connected again.
func (d *DB) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.store.markClosed()
	return d.pool.Close()
}

// Tx is an open transaction carrying the write accessors that must commit together.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside one transaction. The transaction commits only if fn
// returns nil.
func (d *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := d.Pool().BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	return wrap("commit transaction", tx.Commit())
}

// Backup copies the database to the specified path
func (d *DB) Backup(ctx context.Context, destPath string) error {
	if _, err := d.Pool().ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return wrap("checkpoint", err)
	}

	src, err := os.Open(d.path)
	if err != nil {
		return wrap("open source", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return wrap("create destination directory", err)
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return wrap("create destination", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return wrap("copy", err)
	}
	return wrap("sync destination", dst.Sync())
}

// GetStats returns database statistics
func (d *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Path: d.path}

	if info, err := os.Stat(d.path); err == nil {
		stats.Size = info.Size()
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM users", &stats.Users},
		{"SELECT COUNT(*) FROM tokens", &stats.Tokens},
		{"SELECT COUNT(*) FROM issues", &stats.Issues},
		{"SELECT COUNT(*) FROM pull_requests", &stats.PullRequests},
		{"SELECT COUNT(*) FROM settings", &stats.Settings},
		{"SELECT COALESCE(MAX(version), 0) FROM schema_version", &stats.SchemaVersion},
	}
	for _, c := range counts {
		if err := d.Pool().QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, wrap("stats", err)
		}
	}

	var sessions int
	if err := d.Pool().QueryRowContext(ctx, "SELECT COUNT(*) FROM session").Scan(&sessions); err != nil {
		return nil, wrap("stats", err)
	}
	stats.HasSession = sessions > 0

	return stats, nil
}
