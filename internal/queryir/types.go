package queryir

import "fmt"

// Predicate represents a filter condition over the properties of one class.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a comparison operator.
type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// Ordered reports whether the operator needs an ordering on its operands.
func (o Op) Ordered() bool {
	switch o {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Compare represents a field-op-literal predicate.
//
// Semantics:
//
//	<field> <op> <value>
//
// A nil Value is only valid with OpEqual and OpNotEqual and tests for null.
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (Compare) predicateNode() {}

// Equals is shorthand for Compare{Field: field, Op: OpEqual, Value: v}.
func Equals(field string, v any) Compare {
	return Compare{Field: field, Op: OpEqual, Value: v}
}

// IsNull is shorthand for Equals(field, nil).
func IsNull(field string) Compare {
	return Equals(field, nil)
}

// MatchKind selects the string match performed by StringMatch.
type MatchKind string

const (
	BeginsWith MatchKind = "BEGINSWITH"
	EndsWith   MatchKind = "ENDSWITH"
	Contains   MatchKind = "CONTAINS"
)

// StringMatch represents a substring test on a string property.
//
// Matching is exact by default. CaseInsensitive folds ASCII letters only.
type StringMatch struct {
	Field           string
	Kind            MatchKind
	Value           string
	CaseInsensitive bool
}

func (StringMatch) predicateNode() {}

// In represents membership in a literal set. An empty set matches nothing.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// And represents a conjunction. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction. An empty Or matches nothing.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// AllOf joins predicates with And, dropping nils. A single predicate is
// returned unchanged.
func AllOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

// SortDescriptor orders results by one property.
type SortDescriptor struct {
	Property  string
	Ascending bool
}

// Reversed returns the descriptor with the opposite direction.
func (s SortDescriptor) Reversed() SortDescriptor {
	return SortDescriptor{Property: s.Property, Ascending: !s.Ascending}
}

func (s SortDescriptor) String() string {
	if s.Ascending {
		return s.Property + " ASC"
	}
	return s.Property + " DESC"
}

// String renders the predicate in a readable infix form.
func String(p Predicate) string {
	switch pred := p.(type) {
	case nil:
		return "TRUEPREDICATE"
	case Compare:
		return fmt.Sprintf("%s %s %s", pred.Field, pred.Op, literal(pred.Value))
	case *Compare:
		return String(*pred)
	case StringMatch:
		op := string(pred.Kind)
		if pred.CaseInsensitive {
			op += "[c]"
		}
		return fmt.Sprintf("%s %s %q", pred.Field, op, pred.Value)
	case *StringMatch:
		return String(*pred)
	case In:
		s := pred.Field + " IN {"
		for i, v := range pred.Values {
			if i > 0 {
				s += ", "
			}
			s += literal(v)
		}
		return s + "}"
	case *In:
		return String(*pred)
	case And:
		return join(pred.Predicates, " AND ", "TRUEPREDICATE")
	case *And:
		return String(*pred)
	case Or:
		return join(pred.Predicates, " OR ", "FALSEPREDICATE")
	case *Or:
		return String(*pred)
	case Not:
		return "NOT (" + String(pred.Predicate) + ")"
	case *Not:
		return String(*pred)
	}
	return fmt.Sprintf("<%T>", p)
}

func join(preds []Predicate, sep, empty string) string {
	if len(preds) == 0 {
		return empty
	}
	s := ""
	for i, p := range preds {
		if i > 0 {
			s += sep
		}
		s += "(" + String(p) + ")"
	}
	return s
}

func literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", val)
	}
	return fmt.Sprintf("%v", v)
}
