// Package querysql compiles queryir predicates and sort descriptors into
// parameterized SQLite fragments over the tables managed by package store.
package querysql

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/rowbind/internal/queryir"
	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

// SQLCompiler compiles predicates over one class to parameterized SQL.
//
// CRITICAL: All values are parameterized, never interpolated.
// CRITICAL: Every ORDER BY ends in the row index, so results are deterministic.
type SQLCompiler struct {
	Object *schema.ObjectSchema
}

// NewSQLCompiler creates a compiler for the given class.
func NewSQLCompiler(obj *schema.ObjectSchema) *SQLCompiler {
	return &SQLCompiler{Object: obj}
}

// Compile validates the predicate and sort descriptors and converts them into
// a store.Query. A nil predicate selects every row.
func (c *SQLCompiler) Compile(p queryir.Predicate, sorts []queryir.SortDescriptor) (store.Query, error) {
	if err := queryir.Validate(c.Object, p); err != nil {
		return store.Query{}, err
	}

	var q store.Query
	if p != nil {
		where, params, err := c.compilePredicate(p)
		if err != nil {
			return store.Query{}, fmt.Errorf("compile filter: %w", err)
		}
		q.Where = where
		q.Params = params
	}

	orderBy, err := c.compileOrder(sorts)
	if err != nil {
		return store.Query{}, err
	}
	q.OrderBy = orderBy
	return q, nil
}

// compileOrder converts sort descriptors to an ORDER BY list.
// Uses COLLATE BINARY for deterministic text ordering.
func (c *SQLCompiler) compileOrder(sorts []queryir.SortDescriptor) (string, error) {
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		prop := c.Object.Property(s.Property)
		if prop == nil {
			return "", queryir.Error.New("cannot sort on unknown property %q of %q", s.Property, c.Object.ClassName)
		}
		switch prop.Type {
		case schema.TypeObject, schema.TypeArray, schema.TypeAny, schema.TypeData:
			return "", queryir.Error.New("cannot sort on %s property %q", prop.Type, s.Property)
		}

		dir := "ASC"
		if !s.Ascending {
			dir = "DESC"
		}
		col := store.QuoteIdent(s.Property)
		if prop.Type == schema.TypeString {
			col += " COLLATE BINARY"
		}
		parts = append(parts, col+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil // Always true
	case queryir.Compare:
		return c.compileCompare(pred)
	case *queryir.Compare:
		return c.compileCompare(*pred)
	case queryir.StringMatch:
		return c.compileMatch(pred)
	case *queryir.StringMatch:
		return c.compileMatch(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case *queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "0 = 1")
	case *queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "0 = 1")
	case queryir.Not:
		return c.compileNot(pred)
	case *queryir.Not:
		return c.compileNot(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileCompare compiles a Compare predicate. Inequality is null-safe so
// that optional properties holding nil compare unequal to any value.
func (c *SQLCompiler) compileCompare(cmp queryir.Compare) (string, []any, error) {
	col := store.QuoteIdent(cmp.Field)
	if cmp.Value == nil {
		if cmp.Op == queryir.OpNotEqual {
			return col + " IS NOT NULL", nil, nil
		}
		return col + " IS NULL", nil, nil
	}

	param, err := c.param(cmp.Field, cmp.Value)
	if err != nil {
		return "", nil, err
	}

	var op string
	switch cmp.Op {
	case queryir.OpEqual:
		op = "="
	case queryir.OpNotEqual:
		op = "IS NOT"
	default:
		op = string(cmp.Op)
	}
	return fmt.Sprintf("%s %s ?", col, op), []any{param}, nil
}

// compileMatch compiles a StringMatch. Exact matches use GLOB, which is case
// sensitive; case-insensitive ones use LIKE.
func (c *SQLCompiler) compileMatch(m queryir.StringMatch) (string, []any, error) {
	col := store.QuoteIdent(m.Field)
	if m.CaseInsensitive {
		return col + ` LIKE ? ESCAPE '\'`, []any{pattern(m.Kind, escapeLike(m.Value), "%")}, nil
	}
	return col + " GLOB ?", []any{pattern(m.Kind, escapeGlob(m.Value), "*")}, nil
}

func pattern(kind queryir.MatchKind, v, wildcard string) string {
	switch kind {
	case queryir.BeginsWith:
		return v + wildcard
	case queryir.EndsWith:
		return wildcard + v
	}
	return wildcard + v + wildcard
}

var (
	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	globEscaper = strings.NewReplacer(`[`, `[[]`, `*`, `[*]`, `?`, `[?]`)
)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func escapeGlob(s string) string { return globEscaper.Replace(s) }

func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "0 = 1", nil, nil
	}
	params := make([]any, len(in.Values))
	for i, v := range in.Values {
		p, err := c.param(in.Field, v)
		if err != nil {
			return "", nil, err
		}
		params[i] = p
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return store.QuoteIdent(in.Field) + " IN (" + placeholders + ")", params, nil
}

func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range preds {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, "("+sql+")")
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, sep), allParams, nil
}

func (c *SQLCompiler) compileNot(n queryir.Not) (string, []any, error) {
	sql, params, err := c.compilePredicate(n.Predicate)
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", params, nil
}

// param converts a literal into the column encoding of its property.
func (c *SQLCompiler) param(field string, v any) (any, error) {
	prop := c.Object.Property(field)
	if prop == nil {
		return nil, fmt.Errorf("unknown property %q", field)
	}
	lit, err := queryir.Literal(prop.Type, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	switch val := lit.(type) {
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case time.Time:
		return val.UnixNano(), nil
	}
	return lit, nil
}
