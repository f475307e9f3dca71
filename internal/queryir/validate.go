package queryir

import (
	"fmt"
	"time"

	"github.com/zeebo/errs"

	"github.com/roach88/rowbind/internal/schema"
)

// Error is the class of invalid predicates.
var Error = errs.Class("invalid predicate")

// Validate checks a predicate against the class it filters: every field must
// exist, every operator must apply to the field's type, and every literal
// must be convertible to it. All problems are reported together.
//
// Validate is a pure function with no side effects.
func Validate(obj *schema.ObjectSchema, p Predicate) error {
	v := &validator{obj: obj}
	v.validatePredicate(p)
	return errs.Combine(v.problems...)
}

// validator accumulates problems during traversal.
type validator struct {
	obj      *schema.ObjectSchema
	problems []error
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, Error.New(format, args...))
}

func (v *validator) property(field string) *schema.Property {
	prop := v.obj.Property(field)
	if prop == nil {
		v.addProblem("class %q has no property %q", v.obj.ClassName, field)
	}
	return prop
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		// nil predicates are valid (no filter)
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case StringMatch:
		v.validateMatch(pred)
	case *StringMatch:
		v.validateMatch(*pred)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case And:
		v.validateAll(pred.Predicates)
	case *And:
		v.validateAll(pred.Predicates)
	case Or:
		v.validateAll(pred.Predicates)
	case *Or:
		v.validateAll(pred.Predicates)
	case Not:
		v.validateNot(pred)
	case *Not:
		v.validateNot(*pred)
	default:
		v.addProblem("unsupported predicate type %T", p)
	}
}

func (v *validator) validateAll(preds []Predicate) {
	for _, p := range preds {
		if p == nil {
			v.addProblem("nil predicate inside a compound predicate")
			continue
		}
		v.validatePredicate(p)
	}
}

func (v *validator) validateNot(n Not) {
	if n.Predicate == nil {
		v.addProblem("NOT requires a predicate")
		return
	}
	v.validatePredicate(n.Predicate)
}

func (v *validator) validateCompare(c Compare) {
	prop := v.property(c.Field)
	if prop == nil {
		return
	}
	switch c.Op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
	default:
		v.addProblem("unknown operator %q", c.Op)
		return
	}

	if c.Value == nil {
		if c.Op.Ordered() {
			v.addProblem("%s: operator %s cannot compare with nil", c.Field, c.Op)
		}
		if !prop.Nullable() {
			v.addProblem("%s: property is not optional and is never nil", c.Field)
		}
		return
	}

	switch prop.Type {
	case schema.TypeObject:
		v.addProblem("%s: object properties can only be compared with nil", c.Field)
		return
	case schema.TypeArray:
		v.addProblem("%s: array properties are not queryable", c.Field)
		return
	case schema.TypeAny:
		v.addProblem("%s: mixed properties can only be compared with nil", c.Field)
		return
	case schema.TypeBool, schema.TypeData:
		if c.Op.Ordered() {
			v.addProblem("%s: operator %s not supported for %s properties", c.Field, c.Op, prop.Type)
			return
		}
	}
	if _, err := Literal(prop.Type, c.Value); err != nil {
		v.addProblem("%s: %v", c.Field, err)
	}
}

func (v *validator) validateMatch(m StringMatch) {
	prop := v.property(m.Field)
	if prop == nil {
		return
	}
	switch m.Kind {
	case BeginsWith, EndsWith, Contains:
	default:
		v.addProblem("unknown string match %q", m.Kind)
		return
	}
	if prop.Type != schema.TypeString {
		v.addProblem("%s: %s requires a string property, got %s", m.Field, m.Kind, prop.Type)
	}
}

func (v *validator) validateIn(in In) {
	prop := v.property(in.Field)
	if prop == nil {
		return
	}
	if prop.Type.IsRelationship() || prop.Type == schema.TypeAny {
		v.addProblem("%s: IN not supported for %s properties", in.Field, prop.Type)
		return
	}
	for _, val := range in.Values {
		if val == nil {
			v.addProblem("%s: IN cannot contain nil", in.Field)
			continue
		}
		if _, err := Literal(prop.Type, val); err != nil {
			v.addProblem("%s: %v", in.Field, err)
		}
	}
}

// Literal converts a literal into the normalized form of a property type:
// int64, float64, bool, string, []byte or time.Time. Integers widen to
// float64 for float properties.
func Literal(t schema.PropertyType, v any) (any, error) {
	switch t {
	case schema.TypeInt:
		if n, ok := asInt(v); ok {
			return n, nil
		}
	case schema.TypeFloat:
		switch f := v.(type) {
		case float64:
			return f, nil
		case float32:
			return float64(f), nil
		}
		if n, ok := asInt(v); ok {
			return float64(n), nil
		}
	case schema.TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.TypeData:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
	case schema.TypeDate:
		if d, ok := v.(time.Time); ok {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%v (%T) is not a valid %s literal", v, v, t)
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}
