package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeebo/errs"
)

// Kind is the storage type of a user column.
type Kind string

const (
	KindInt      Kind = "int"
	KindBool     Kind = "bool"
	KindFloat    Kind = "float"
	KindString   Kind = "string"
	KindBinary   Kind = "binary"
	KindDate     Kind = "date"
	KindAny      Kind = "any"
	KindLink     Kind = "link"
	KindLinkList Kind = "linklist"
)

// sqlType returns the declared SQL type. Declared types are kept to the plain
// affinity names: go-sqlite3 converts columns declared as DATE or BOOLEAN on
// read, which would bypass our own encoding.
func (k Kind) sqlType() string {
	switch k {
	case KindInt, KindBool, KindDate, KindLink:
		return "INTEGER"
	case KindFloat:
		return "REAL"
	case KindBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

// zeroSQL is the DEFAULT literal for non-null columns.
func (k Kind) zeroSQL() string {
	switch k {
	case KindInt, KindBool, KindDate:
		return "0"
	case KindFloat:
		return "0.0"
	case KindBinary:
		return "x''"
	case KindLinkList:
		return "'[]'"
	default:
		return "''"
	}
}

// IsLink reports whether the column references rows of another table.
func (k Kind) IsLink() bool {
	return k == KindLink || k == KindLinkList
}

// Column describes one user column.
type Column struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Target   string `json:"target,omitempty"`
	Nullable bool   `json:"nullable,omitempty"`
	Indexed  bool   `json:"indexed,omitempty"`

	// Index is the position among user columns. Set by Describe.
	Index int `json:"index"`

	// Physical is the SQL column name when it differs from Name. Only set on
	// the old layout handed to a migration callback, for columns that were
	// moved aside because their type changed.
	Physical string `json:"-"`
}

func (c *Column) physical() string {
	if c.Physical != "" {
		return c.Physical
	}
	return c.Name
}

// definition is the column clause used by CREATE TABLE and ADD COLUMN.
func (c *Column) definition() string {
	def := QuoteIdent(c.Name) + " " + c.Kind.sqlType()
	if !c.Nullable {
		def += " NOT NULL DEFAULT " + c.Kind.zeroSQL()
	}
	return def
}

func (c *Column) sameType(o *Column) bool {
	return c.Kind == o.Kind && c.Target == o.Target && c.Nullable == o.Nullable
}

func (c *Column) String() string {
	s := string(c.Kind)
	if c.Target != "" {
		s += "<" + c.Target + ">"
	}
	if c.Nullable {
		s += "?"
	}
	return s
}

// Table describes the user columns of one class table.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Spec is an engine-level description of a set of tables.
type Spec struct {
	Tables []Table `json:"tables"`
}

// Table returns the named table, or nil.
func (s *Spec) Table(name string) *Table {
	if s == nil {
		return nil
	}
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// indexName is the deterministic name of the search index on a column.
func indexName(class, column string) string {
	return "idx_" + class + "__" + column
}

// Describe reads the physical layout of every class table.
func (s *Store) Describe(ctx context.Context) (*Spec, error) {
	rows, err := s.q().QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name LIKE 'class\_%' ESCAPE '\'
		ORDER BY name
	`)
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("list tables: %w", err))
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, Error.Wrap(fmt.Errorf("scan table name: %w", err))
		}
		names = append(names, strings.TrimPrefix(name, "class_"))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, Error.Wrap(fmt.Errorf("iterate tables: %w", err))
	}
	rows.Close()

	spec := &Spec{Tables: []Table{}}
	for _, name := range names {
		t, err := s.DescribeTable(ctx, name)
		if err != nil {
			return nil, err
		}
		spec.Tables = append(spec.Tables, *t)
	}
	return spec, nil
}

// DescribeTable reads the physical layout of one class table.
func (s *Store) DescribeTable(ctx context.Context, class string) (*Table, error) {
	table := TableName(class)
	ok, err := s.hasTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLayoutMismatch.New("class %q has no table", class)
	}

	meta, err := s.columnMeta(ctx, class)
	if err != nil {
		return nil, err
	}
	indexes, err := s.indexNames(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := s.q().QueryContext(ctx,
		`SELECT name, "notnull" FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("describe %s: %w", table, err))
	}
	defer rows.Close()

	t := &Table{Name: class, Columns: []Column{}}
	for rows.Next() {
		var name string
		var notNull int
		if err := rows.Scan(&name, &notNull); err != nil {
			return nil, Error.Wrap(fmt.Errorf("scan column: %w", err))
		}
		if name == "_key" || name == "_ndx" {
			continue
		}
		m, ok := meta[name]
		if !ok {
			return nil, ErrLayoutMismatch.New("%s.%s has no column metadata", class, name)
		}
		t.Columns = append(t.Columns, Column{
			Name:     name,
			Kind:     m.kind,
			Target:   m.target,
			Nullable: notNull == 0,
			Indexed:  indexes[indexName(class, name)],
			Index:    len(t.Columns),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(fmt.Errorf("iterate columns: %w", err))
	}
	return t, nil
}

type columnMeta struct {
	kind   Kind
	target string
}

func (s *Store) columnMeta(ctx context.Context, class string) (map[string]columnMeta, error) {
	meta := map[string]columnMeta{}
	ok, err := s.hasTable(ctx, "_rowbind_columns")
	if err != nil || !ok {
		return meta, err
	}

	rows, err := s.q().QueryContext(ctx,
		"SELECT column_name, kind, target FROM _rowbind_columns WHERE table_name = ?", class)
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("read column metadata: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var name, kind, target string
		if err := rows.Scan(&name, &kind, &target); err != nil {
			return nil, Error.Wrap(fmt.Errorf("scan column metadata: %w", err))
		}
		meta[name] = columnMeta{kind: Kind(kind), target: target}
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(fmt.Errorf("iterate column metadata: %w", err))
	}
	return meta, nil
}

func (s *Store) indexNames(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.q().QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?", table)
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("list indexes: %w", err))
	}
	defer rows.Close()

	names := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, Error.Wrap(fmt.Errorf("scan index: %w", err))
		}
		names[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(fmt.Errorf("iterate indexes: %w", err))
	}
	return names, nil
}

// Validate compares the physical layout with spec strictly: every table must
// exist (read-only stores may skip missing tables), with exactly the listed
// columns, kinds, targets and nullability. Column order is not compared.
// Returns the physical layout of the validated tables on success.
func (s *Store) Validate(ctx context.Context, spec *Spec) (*Spec, error) {
	physical := &Spec{}
	var problems []error

	for i := range spec.Tables {
		want := &spec.Tables[i]
		ok, err := s.HasTable(ctx, want.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			if !s.readOnly {
				problems = append(problems, ErrLayoutMismatch.New("class %q has no table", want.Name))
			}
			continue
		}

		have, err := s.DescribeTable(ctx, want.Name)
		if err != nil {
			return nil, err
		}
		problems = append(problems, compareTable(want, have)...)
		physical.Tables = append(physical.Tables, *have)
	}

	if err := errs.Combine(problems...); err != nil {
		return nil, err
	}
	return physical, nil
}

func compareTable(want, have *Table) []error {
	var problems []error
	for i := range want.Columns {
		wc := &want.Columns[i]
		hc := have.Column(wc.Name)
		switch {
		case hc == nil:
			problems = append(problems, ErrLayoutMismatch.New("%s.%s has been added", want.Name, wc.Name))
		case !wc.sameType(hc):
			problems = append(problems, ErrLayoutMismatch.New("%s.%s changed from %s to %s",
				want.Name, wc.Name, hc, wc))
		}
	}
	for i := range have.Columns {
		if want.Column(have.Columns[i].Name) == nil {
			problems = append(problems, ErrLayoutMismatch.New("%s.%s has been removed",
				want.Name, have.Columns[i].Name))
		}
	}
	return problems
}

// IndexesCurrent reports whether every existing table has exactly the search
// indexes spec asks for.
func (s *Store) IndexesCurrent(ctx context.Context, spec *Spec) (bool, error) {
	for i := range spec.Tables {
		want := &spec.Tables[i]
		ok, err := s.HasTable(ctx, want.Name)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		indexes, err := s.indexNames(ctx, TableName(want.Name))
		if err != nil {
			return false, err
		}
		for _, c := range want.Columns {
			if indexes[indexName(want.Name, c.Name)] != c.Indexed {
				return false, nil
			}
		}
	}
	return true, nil
}
