package store

import (
	"context"
	"fmt"
)

// MigrationFunc is invoked by Reconcile while both the old and the new
// columns are present. Old describes the layout before reconciliation; a
// column whose type changed is still readable under its Physical name.
type MigrationFunc func(ctx context.Context, old *Spec, oldVersion int64) error

const asidePrefix = "_old_"

// tablePlan lists the structural changes for one table.
type tablePlan struct {
	name    string
	create  bool
	add     []Column
	changed []changedColumn
	drop    []string
}

type changedColumn struct {
	from Column
	to   Column
}

func (p *tablePlan) altersExisting() bool {
	return !p.create && (len(p.changed) > 0 || len(p.drop) > 0 || len(p.add) > 0)
}

func (p *tablePlan) empty() bool {
	return !p.create && len(p.add) == 0 && len(p.changed) == 0 && len(p.drop) == 0
}

// Reconcile brings the tables named in spec into line with it and records
// version. Tables not named in spec are left alone.
//
// The sequence is:
//  1. refuse a lower version, and refuse changes to existing tables without
//     a version bump
//  2. create missing tables and add missing columns
//  3. move columns whose type changed aside and add their replacements
//  4. run migrate (only when a prior version exists and it changed)
//  5. drop removed and moved-aside columns
//  6. bring search indexes up to date and record the version
//
// Reconcile must run inside a write transaction; the caller cancels it on
// error. It reports whether anything changed.
func (s *Store) Reconcile(ctx context.Context, spec *Spec, version int64, migrate MigrationFunc) (bool, error) {
	if err := s.requireTx("reconcile"); err != nil {
		return false, err
	}

	oldVersion, err := s.Version(ctx)
	if err != nil {
		return false, err
	}
	if oldVersion != NotVersioned && version < oldVersion {
		return false, ErrInvalidVersion.New("requested version %d is lower than stored version %d",
			version, oldVersion)
	}

	old, err := s.Describe(ctx)
	if err != nil {
		return false, err
	}
	plans := planTables(old, spec)

	if oldVersion != NotVersioned && version == oldVersion {
		for _, p := range plans {
			if p.altersExisting() {
				return false, ErrMigrationRequired.New("class %q changed without a schema version bump", p.name)
			}
		}
	}

	changed := version != oldVersion
	for _, p := range plans {
		if p.empty() {
			continue
		}
		changed = true
		if err := s.applyPlan(ctx, p); err != nil {
			return false, err
		}
	}

	if migrate != nil && oldVersion != NotVersioned && version != oldVersion {
		if err := migrate(ctx, asideView(old, plans), oldVersion); err != nil {
			return false, err
		}
	}

	for _, p := range plans {
		for _, name := range p.drop {
			if err := s.dropColumn(ctx, p.name, name); err != nil {
				return false, err
			}
		}
		for _, c := range p.changed {
			if err := s.dropColumn(ctx, p.name, asidePrefix+c.from.Name); err != nil {
				return false, err
			}
		}
	}

	indexed, err := s.syncIndexes(ctx, spec)
	if err != nil {
		return false, err
	}
	changed = changed || indexed

	if changed {
		if err := s.SetVersion(ctx, version); err != nil {
			return false, err
		}
	}
	return changed, nil
}

func planTables(old, spec *Spec) []*tablePlan {
	var plans []*tablePlan
	for i := range spec.Tables {
		want := &spec.Tables[i]
		p := &tablePlan{name: want.Name}
		plans = append(plans, p)

		have := old.Table(want.Name)
		if have == nil {
			p.create = true
			p.add = append(p.add, want.Columns...)
			continue
		}
		for _, wc := range want.Columns {
			hc := have.Column(wc.Name)
			switch {
			case hc == nil:
				p.add = append(p.add, wc)
			case !wc.sameType(hc):
				p.changed = append(p.changed, changedColumn{from: *hc, to: wc})
			}
		}
		for _, hc := range have.Columns {
			if want.Column(hc.Name) == nil {
				p.drop = append(p.drop, hc.Name)
			}
		}
	}
	return plans
}

// asideView returns old with changed columns pointed at their moved-aside
// physical names.
func asideView(old *Spec, plans []*tablePlan) *Spec {
	view := &Spec{Tables: make([]Table, len(old.Tables))}
	for i, t := range old.Tables {
		view.Tables[i] = Table{Name: t.Name, Columns: append([]Column(nil), t.Columns...)}
	}
	for _, p := range plans {
		t := view.Table(p.name)
		if t == nil {
			continue
		}
		for _, c := range p.changed {
			if col := t.Column(c.from.Name); col != nil {
				col.Physical = asidePrefix + c.from.Name
			}
		}
	}
	return view
}

func (s *Store) applyPlan(ctx context.Context, p *tablePlan) error {
	table := QuoteIdent(TableName(p.name))

	if p.create {
		stmt := "CREATE TABLE " + table + " (_key INTEGER PRIMARY KEY AUTOINCREMENT, _ndx INTEGER NOT NULL"
		for i := range p.add {
			stmt += ", " + p.add[i].definition()
		}
		stmt += ")"
		if err := s.exec(ctx, stmt); err != nil {
			return err
		}
		if err := s.exec(ctx, "CREATE INDEX "+QuoteIdent("ndx_"+p.name)+" ON "+table+" (_ndx)"); err != nil {
			return err
		}
		for i := range p.add {
			if err := s.putColumnMeta(ctx, p.name, &p.add[i]); err != nil {
				return err
			}
		}
		return nil
	}

	// Indexes on columns about to move or disappear go first; SQLite refuses
	// to drop an indexed column.
	for _, name := range p.drop {
		if err := s.dropIndex(ctx, p.name, name); err != nil {
			return err
		}
	}
	for _, c := range p.changed {
		if err := s.dropIndex(ctx, p.name, c.from.Name); err != nil {
			return err
		}
	}

	for i := range p.add {
		if err := s.addColumn(ctx, p.name, &p.add[i]); err != nil {
			return err
		}
	}

	for _, c := range p.changed {
		aside := asidePrefix + c.from.Name
		if err := s.exec(ctx, "ALTER TABLE "+table+" RENAME COLUMN "+
			QuoteIdent(c.from.Name)+" TO "+QuoteIdent(aside)); err != nil {
			return err
		}
		if err := s.exec(ctx, "UPDATE _rowbind_columns SET column_name = ? WHERE table_name = ? AND column_name = ?",
			aside, p.name, c.from.Name); err != nil {
			return err
		}
		if err := s.addColumn(ctx, p.name, &c.to); err != nil {
			return err
		}

		// Only nullability changed: the values carry over as they are.
		if c.from.Kind == c.to.Kind && c.from.Target == c.to.Target {
			src := QuoteIdent(aside)
			if !c.to.Nullable {
				src = "COALESCE(" + src + ", " + c.to.Kind.zeroSQL() + ")"
			}
			if err := s.exec(ctx, "UPDATE "+table+" SET "+QuoteIdent(c.to.Name)+" = "+src); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) addColumn(ctx context.Context, class string, c *Column) error {
	if err := s.exec(ctx, "ALTER TABLE "+QuoteIdent(TableName(class))+" ADD COLUMN "+c.definition()); err != nil {
		return err
	}
	return s.putColumnMeta(ctx, class, c)
}

func (s *Store) dropColumn(ctx context.Context, class, name string) error {
	if err := s.exec(ctx, "ALTER TABLE "+QuoteIdent(TableName(class))+" DROP COLUMN "+QuoteIdent(name)); err != nil {
		return err
	}
	return s.exec(ctx, "DELETE FROM _rowbind_columns WHERE table_name = ? AND column_name = ?", class, name)
}

func (s *Store) putColumnMeta(ctx context.Context, class string, c *Column) error {
	return s.exec(ctx, `
		INSERT INTO _rowbind_columns (table_name, column_name, kind, target) VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, column_name) DO UPDATE SET kind = excluded.kind, target = excluded.target
	`, class, c.Name, string(c.Kind), c.Target)
}

func (s *Store) dropIndex(ctx context.Context, class, column string) error {
	return s.exec(ctx, "DROP INDEX IF EXISTS "+QuoteIdent(indexName(class, column)))
}

// syncIndexes creates missing and drops stale search indexes on the tables
// named in spec.
func (s *Store) syncIndexes(ctx context.Context, spec *Spec) (bool, error) {
	changed := false
	for i := range spec.Tables {
		want := &spec.Tables[i]
		have, err := s.indexNames(ctx, TableName(want.Name))
		if err != nil {
			return false, err
		}
		for _, c := range want.Columns {
			name := indexName(want.Name, c.Name)
			switch {
			case c.Indexed && !have[name]:
				if err := s.exec(ctx, "CREATE INDEX "+QuoteIdent(name)+" ON "+
					QuoteIdent(TableName(want.Name))+" ("+QuoteIdent(c.Name)+")"); err != nil {
					return false, err
				}
				changed = true
			case !c.Indexed && have[name]:
				if err := s.exec(ctx, "DROP INDEX "+QuoteIdent(name)); err != nil {
					return false, err
				}
				changed = true
			}
		}
	}
	return changed, nil
}

func (s *Store) exec(ctx context.Context, stmt string, args ...any) error {
	s.log.Debug("exec", "sql", stmt)
	if _, err := s.tx.ExecContext(ctx, stmt, args...); err != nil {
		return Error.Wrap(fmt.Errorf("exec %q: %w", stmt, err))
	}
	return nil
}
