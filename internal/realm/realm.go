package realm

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

// Config describes how to open a realm.
type Config struct {
	// Path is the database file.
	Path string

	// ReadOnly opens the file without write access. Read-only realms never
	// migrate: a version mismatch fails and missing tables read as empty.
	ReadOnly bool

	// Schema is the declared schema. Required.
	Schema *schema.Schema

	// SchemaVersion is the version recorded after synchronization.
	SchemaVersion int64

	// Migration runs when the stored version differs from SchemaVersion.
	Migration MigrationFunc

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Realm is an open store bound to a schema.
//
// A Realm is confined to one goroutine at a time. Write-path operations fail
// with ErrNotInWriteTransaction when no write transaction is open or when
// another goroutine is inside one; they never block.
type Realm struct {
	id     uuid.UUID
	store  *store.Store
	schema *schema.Schema
	log    *slog.Logger

	busy atomic.Bool

	// migrating is set while a migration callback runs on the goroutine
	// that holds busy.
	migrating bool

	// pending holds objects first persisted in the open write transaction.
	// They are invalidated if it is cancelled.
	pending []*Object
}

// Open opens the store at cfg.Path and synchronizes cfg.Schema with it.
func Open(ctx context.Context, cfg Config) (*Realm, error) {
	if cfg.Schema == nil {
		return nil, Error.New("config has no schema")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	opts := []store.Option{store.WithLogger(log)}
	if cfg.ReadOnly {
		opts = append(opts, store.ReadOnly())
	}
	s, err := store.Open(cfg.Path, opts...)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	r := &Realm{
		id:     uuid.Must(uuid.NewV7()),
		store:  s,
		schema: schema.MustNew(),
		log:    log.With("realm", cfg.Path),
	}
	if err := r.UpdateSchema(ctx, cfg.Schema, cfg.SchemaVersion, cfg.Migration); err != nil {
		return nil, errs.Combine(err, s.Close())
	}
	r.log.Debug("realm opened", "id", r.id, "version", cfg.SchemaVersion, "read_only", cfg.ReadOnly)
	return r, nil
}

// ID identifies this open instance.
func (r *Realm) ID() uuid.UUID {
	return r.id
}

// Path returns the database file.
func (r *Realm) Path() string {
	return r.store.Path()
}

// IsReadOnly reports whether the realm was opened read-only.
func (r *Realm) IsReadOnly() bool {
	return r.store.IsReadOnly()
}

// Schema returns the bound schema. Callers must not modify it.
func (r *Realm) Schema() *schema.Schema {
	return r.schema
}

// SchemaVersion returns the stored schema version.
func (r *Realm) SchemaVersion(ctx context.Context) (int64, error) {
	if err := r.checkOpen(); err != nil {
		return 0, err
	}
	return r.store.Version(ctx)
}

// Store exposes the underlying store for inspection tools.
func (r *Realm) Store() *store.Store {
	return r.store
}

// Close cancels any open write transaction and closes the store.
func (r *Realm) Close() error {
	if r.store == nil {
		return nil
	}
	if r.store.InTransaction() {
		r.invalidatePending()
	}
	err := r.store.Close()
	r.store = nil
	return err
}

func (r *Realm) checkOpen() error {
	if r.store == nil {
		return Error.New("realm is closed")
	}
	return nil
}

// BeginWrite opens a write transaction.
func (r *Realm) BeginWrite(ctx context.Context) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if !r.busy.CompareAndSwap(false, true) {
		return ErrNotInWriteTransaction.New("realm is in use by another goroutine")
	}
	defer r.busy.Store(false)

	if err := r.store.Begin(ctx); err != nil {
		return Error.Wrap(err)
	}
	r.pending = nil
	return nil
}

// CommitWrite commits the write transaction.
func (r *Realm) CommitWrite() error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if !r.busy.CompareAndSwap(false, true) {
		return ErrNotInWriteTransaction.New("realm is in use by another goroutine")
	}
	defer r.busy.Store(false)

	if !r.store.InTransaction() {
		return ErrNotInWriteTransaction.New("commit")
	}
	if err := r.store.Commit(); err != nil {
		r.invalidatePending()
		return Error.Wrap(err)
	}
	r.pending = nil
	return nil
}

// CancelWrite rolls back the write transaction. Objects first persisted in
// it are invalidated.
func (r *Realm) CancelWrite() error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if !r.busy.CompareAndSwap(false, true) {
		return ErrNotInWriteTransaction.New("realm is in use by another goroutine")
	}
	defer r.busy.Store(false)

	if !r.store.InTransaction() {
		return ErrNotInWriteTransaction.New("cancel")
	}
	r.invalidatePending()
	return Error.Wrap(r.store.Rollback())
}

// InWriteTransaction reports whether a write transaction is open.
func (r *Realm) InWriteTransaction() bool {
	return r.store != nil && r.store.InTransaction()
}

// Write runs fn in a write transaction, committing if it returns nil and
// cancelling otherwise.
func (r *Realm) Write(ctx context.Context, fn func() error) error {
	if err := r.BeginWrite(ctx); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if r.InWriteTransaction() {
			return errs.Combine(err, r.CancelWrite())
		}
		return err
	}
	return r.CommitWrite()
}

func (r *Realm) invalidatePending() {
	for _, o := range r.pending {
		o.invalidate()
	}
	r.pending = nil
}

// enter claims the realm for a write-path operation.
func (r *Realm) enter(op string) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if !r.store.InTransaction() {
		return ErrNotInWriteTransaction.New("%s requires an open write transaction", op)
	}
	if !r.busy.CompareAndSwap(false, true) {
		return ErrNotInWriteTransaction.New("%s: realm is in use by another goroutine", op)
	}
	return nil
}

func (r *Realm) exit() {
	r.busy.Store(false)
}

// write runs fn as one atomic write-path operation: on error the store and
// every object touched by fn are left as they were.
func (r *Realm) write(ctx context.Context, op string, fn func(w *writer) error) error {
	if r.migrating {
		return r.runWrite(ctx, fn)
	}
	if err := r.enter(op); err != nil {
		return err
	}
	defer r.exit()
	return r.runWrite(ctx, fn)
}

// runWrite is write without the confinement check, for callers that already
// hold the realm.
func (r *Realm) runWrite(ctx context.Context, fn func(w *writer) error) error {
	sp, err := r.store.Savepoint(ctx)
	if err != nil {
		return Error.Wrap(err)
	}

	w := newWriter(ctx, r)
	if err := fn(w); err != nil {
		if rbErr := r.store.RollbackTo(ctx, sp); rbErr != nil {
			return errs.Combine(err, Error.Wrap(rbErr))
		}
		return err
	}
	if err := r.store.Release(ctx, sp); err != nil {
		return Error.Wrap(err)
	}
	w.finish()
	return nil
}
