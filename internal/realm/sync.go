package realm

import (
	"context"
	"fmt"

	"github.com/zeebo/errs"

	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

// MigrationFunc transforms data while the store moves from one schema
// version to another. Returning an error cancels the whole migration.
type MigrationFunc func(m *Migration) error

// UpdateSchema brings the store's tables in line with target and records
// version, atomically. When the tables, version and indexes are already
// current no write transaction is opened. On success the realm is bound to a
// copy of target whose column indexes reflect the physical layout.
func (r *Realm) UpdateSchema(ctx context.Context, target *schema.Schema, version int64, migration MigrationFunc) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := target.Validate(); err != nil {
		return ErrSchemaValidation.Wrap(err)
	}
	if r.store.InTransaction() {
		return Error.New("cannot update the schema inside a write transaction")
	}
	if !r.busy.CompareAndSwap(false, true) {
		return ErrNotInWriteTransaction.New("update schema: realm is in use by another goroutine")
	}
	defer r.busy.Store(false)

	spec := layoutFor(target)
	current, err := r.isCurrent(ctx, spec, version)
	if err != nil {
		return err
	}
	if current || r.store.IsReadOnly() {
		if !current {
			stored, err := r.store.Version(ctx)
			if err != nil {
				return Error.Wrap(err)
			}
			if stored != version {
				return ErrSchemaValidation.New("read-only store has schema version %d, want %d", stored, version)
			}
		}
		bound, err := r.bindLayout(ctx, target, spec)
		if err != nil {
			return err
		}
		r.schema = bound
		bindAccessors(bound)
		r.log.Debug("schema current", "version", version, "classes", bound.Len())
		return nil
	}

	return r.migrate(ctx, target, spec, version, migration)
}

// isCurrent reports whether every table exists, the version matches and
// every index is in place.
func (r *Realm) isCurrent(ctx context.Context, spec *store.Spec, version int64) (bool, error) {
	for _, t := range spec.Tables {
		ok, err := r.store.HasTable(ctx, t.Name)
		if err != nil {
			return false, Error.Wrap(err)
		}
		if !ok {
			return false, nil
		}
	}
	stored, err := r.store.Version(ctx)
	if err != nil {
		return false, Error.Wrap(err)
	}
	if stored != version {
		return false, nil
	}
	current, err := r.store.IndexesCurrent(ctx, spec)
	if err != nil {
		return false, Error.Wrap(err)
	}
	return current, nil
}

// bindLayout validates the physical layout strictly and returns a copy of
// target bound to it.
func (r *Realm) bindLayout(ctx context.Context, target *schema.Schema, spec *store.Spec) (*schema.Schema, error) {
	physical, err := r.store.Validate(ctx, spec)
	if err != nil {
		if store.ErrLayoutMismatch.Has(err) {
			return nil, ErrSchemaValidation.Wrap(err)
		}
		return nil, Error.Wrap(err)
	}
	return bindSchema(target, physical), nil
}

// bindSchema copies column indexes from the physical layout into a clone of
// target and orders properties by column. Classes without a table stay
// unbound.
func bindSchema(target *schema.Schema, physical *store.Spec) *schema.Schema {
	bound := target.Clone()
	for _, obj := range bound.ObjectSchemas() {
		obj.Unbind()
		t := physical.Table(obj.ClassName)
		if t == nil {
			continue
		}
		for _, p := range obj.Properties {
			if col := t.Column(p.Name); col != nil {
				p.Column = col.Index
			}
		}
		obj.SortByColumn()
	}
	return bound
}

func (r *Realm) migrate(ctx context.Context, target *schema.Schema, spec *store.Spec, version int64, migration MigrationFunc) error {
	if err := r.store.Begin(ctx); err != nil {
		return Error.Wrap(err)
	}
	r.pending = nil
	previous := r.schema

	fail := func(err error) error {
		r.invalidatePending()
		r.schema = previous
		return errs.Combine(err, Error.Wrap(r.store.Rollback()))
	}

	var callbackErr error
	var callback store.MigrationFunc
	if migration != nil {
		callback = func(ctx context.Context, old *store.Spec, oldVersion int64) error {
			physical, err := r.store.Describe(ctx)
			if err != nil {
				return err
			}
			// Objects handed to the migration read and write the new columns.
			r.schema = bindSchema(target, physical)
			bindAccessors(r.schema)

			m := &Migration{ctx: ctx, realm: r, old: old, oldVersion: oldVersion}
			r.migrating = true
			defer func() { r.migrating = false }()
			if err := migration(m); err != nil {
				callbackErr = err
				return err
			}
			return nil
		}
	}

	changed, err := r.store.Reconcile(ctx, spec, version, callback)
	switch {
	case callbackErr != nil:
		return fail(ErrMigrationCallback.Wrap(callbackErr))
	case store.ErrMigrationRequired.Has(err), store.ErrInvalidVersion.Has(err), store.ErrLayoutMismatch.Has(err):
		return fail(ErrSchemaValidation.Wrap(err))
	case err != nil:
		return fail(Error.Wrap(err))
	}

	bound, err := r.bindLayout(ctx, target, spec)
	if err != nil {
		return fail(err)
	}

	if !changed {
		// Nothing physical changed: drop the transaction instead of
		// committing an empty one.
		if err := r.store.Rollback(); err != nil {
			r.schema = previous
			return Error.Wrap(err)
		}
	} else if err := r.store.Commit(); err != nil {
		return fail(Error.Wrap(err))
	}
	r.pending = nil
	r.schema = bound
	bindAccessors(bound)
	r.log.Info("schema updated", "version", version, "classes", bound.Len())
	return nil
}

// Migration is handed to a MigrationFunc. Objects it returns are bound to
// the new schema; old values are read through the old layout.
type Migration struct {
	ctx        context.Context
	realm      *Realm
	old        *store.Spec
	oldVersion int64
}

// OldVersion returns the schema version being migrated from.
func (m *Migration) OldVersion() int64 {
	return m.oldVersion
}

// OldSchema returns the storage layout before the migration.
func (m *Migration) OldSchema() *store.Spec {
	return m.old
}

// NewSchema returns the schema being migrated to.
func (m *Migration) NewSchema() *schema.Schema {
	return m.realm.schema
}

// Realm returns the realm being migrated.
func (m *Migration) Realm() *Realm {
	return m.realm
}

// Enumerate calls fn for every row of class. old holds the row's values
// under the old layout, keyed by column name; obj is the same row seen
// through the new schema, or nil if class no longer exists.
func (m *Migration) Enumerate(class string, fn func(old map[string]any, obj *Object) error) error {
	oldTable := m.old.Table(class)
	if oldTable == nil {
		return nil
	}
	s := m.realm.store
	keys, err := s.Keys(m.ctx, class, store.Query{})
	if err != nil {
		return Error.Wrap(err)
	}
	cls := m.realm.schema.ObjectSchema(class)
	for _, key := range keys {
		old, err := s.ReadRow(m.ctx, class, key, oldTable.Columns)
		if err != nil {
			return Error.Wrap(err)
		}
		var obj *Object
		if cls != nil {
			obj = m.realm.objectFor(cls, key)
		}
		if err := fn(old, obj); err != nil {
			return fmt.Errorf("enumerate %s: %w", class, err)
		}
	}
	return nil
}

// Create adds a new object of class built from value.
func (m *Migration) Create(class string, value any) (*Object, error) {
	return m.realm.create(m.ctx, class, value, false, m.realm.runWrite)
}

// Delete removes obj.
func (m *Migration) Delete(obj *Object) error {
	return m.realm.delete(m.ctx, obj, m.realm.runWrite)
}

// DeleteAll removes every row of class.
func (m *Migration) DeleteAll(class string) error {
	if m.realm.schema.ObjectSchema(class) == nil {
		return ErrUnknownClass.New("%q", class)
	}
	return m.realm.runWrite(m.ctx, func(w *writer) error {
		return w.clear(class)
	})
}
