package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// NotVersioned is the version of a store whose schema was never recorded.
const NotVersioned int64 = -1

const versionKey = "schema_version"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is one open SQLite database.
// It is not safe for concurrent use; the realm layer confines it.
type Store struct {
	db       *sql.DB
	tx       *sql.Tx
	path     string
	readOnly bool
	log      *slog.Logger

	savepoints int
}

type options struct {
	readOnly bool
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*options)

// ReadOnly opens the database without write access. Missing metadata tables
// are tolerated and report an unversioned, empty store.
func ReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// WithLogger sets the logger used for DDL and transaction events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout
//   - a single connection, since SQLite serializes writers
//
// This function is idempotent - safe to call multiple times on one file.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := path
	if o.readOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, o.readOnly); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if !o.readOnly {
		if _, err := db.Exec(schemaSQL); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create metadata tables: %w", err)
		}
	}

	return &Store{db: db, path: path, readOnly: o.readOnly, log: o.logger}, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, readOnly bool) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
	}
	if !readOnly {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close rolls back any open transaction and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// IsReadOnly reports whether the store was opened with ReadOnly.
func (s *Store) IsReadOnly() bool {
	return s.readOnly
}

// q returns the open transaction, or the database when none is open.
// With a single connection, querying the database while a transaction holds
// the connection would block forever.
func (s *Store) q() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Begin opens the write transaction.
func (s *Store) Begin(ctx context.Context) error {
	if s.readOnly {
		return ErrReadOnly.New("cannot begin a write transaction")
	}
	if s.tx != nil {
		return Error.New("write transaction already open")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Error.Wrap(fmt.Errorf("begin: %w", err))
	}
	s.tx = tx
	s.savepoints = 0
	s.log.Debug("write transaction started", "path", s.path)
	return nil
}

// Commit commits the write transaction.
func (s *Store) Commit() error {
	if s.tx == nil {
		return ErrNoTransaction.New("commit")
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return Error.Wrap(fmt.Errorf("commit: %w", err))
	}
	s.log.Debug("write transaction committed", "path", s.path)
	return nil
}

// Rollback cancels the write transaction.
func (s *Store) Rollback() error {
	if s.tx == nil {
		return ErrNoTransaction.New("rollback")
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return Error.Wrap(fmt.Errorf("rollback: %w", err))
	}
	s.log.Debug("write transaction cancelled", "path", s.path)
	return nil
}

// InTransaction reports whether a write transaction is open.
func (s *Store) InTransaction() bool {
	return s.tx != nil
}

// Savepoint marks a point inside the write transaction that RollbackTo can
// return to. Savepoints nest.
func (s *Store) Savepoint(ctx context.Context) (string, error) {
	if s.tx == nil {
		return "", ErrNoTransaction.New("savepoint")
	}
	s.savepoints++
	name := fmt.Sprintf("sp_%d", s.savepoints)
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		s.savepoints--
		return "", Error.Wrap(fmt.Errorf("savepoint: %w", err))
	}
	return name, nil
}

// Release keeps everything written since the savepoint.
func (s *Store) Release(ctx context.Context, name string) error {
	if s.tx == nil {
		return ErrNoTransaction.New("release")
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return Error.Wrap(fmt.Errorf("release %s: %w", name, err))
	}
	s.savepoints--
	return nil
}

// RollbackTo discards everything written since the savepoint and releases it.
func (s *Store) RollbackTo(ctx context.Context, name string) error {
	if s.tx == nil {
		return ErrNoTransaction.New("rollback to savepoint")
	}
	if _, err := s.tx.ExecContext(ctx, "ROLLBACK TO "+name); err != nil {
		return Error.Wrap(fmt.Errorf("rollback to %s: %w", name, err))
	}
	return s.Release(ctx, name)
}

// Version returns the recorded schema version, or NotVersioned.
func (s *Store) Version(ctx context.Context) (int64, error) {
	ok, err := s.hasTable(ctx, "_rowbind_meta")
	if err != nil {
		return 0, err
	}
	if !ok {
		return NotVersioned, nil
	}

	var version int64
	err = s.q().QueryRowContext(ctx,
		"SELECT value FROM _rowbind_meta WHERE key = ?", versionKey,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return NotVersioned, nil
	}
	if err != nil {
		return 0, Error.Wrap(fmt.Errorf("get schema version: %w", err))
	}
	return version, nil
}

// SetVersion records the schema version. Requires a write transaction.
func (s *Store) SetVersion(ctx context.Context, version int64) error {
	if err := s.requireTx("set version"); err != nil {
		return err
	}
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO _rowbind_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, versionKey, version)
	if err != nil {
		return Error.Wrap(fmt.Errorf("set schema version: %w", err))
	}
	return nil
}

func (s *Store) requireTx(op string) error {
	if s.readOnly {
		return ErrReadOnly.New("%s", op)
	}
	if s.tx == nil {
		return ErrNoTransaction.New("%s", op)
	}
	return nil
}

// HasTable reports whether the class has a backing table.
func (s *Store) HasTable(ctx context.Context, class string) (bool, error) {
	return s.hasTable(ctx, TableName(class))
}

func (s *Store) hasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.q().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		return false, Error.Wrap(fmt.Errorf("lookup table %s: %w", name, err))
	}
	return n > 0, nil
}

// TableName returns the physical table name for a class.
func TableName(class string) string {
	return "class_" + class
}

// QuoteIdent quotes an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
