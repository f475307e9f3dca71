package realm

import (
	"fmt"

	"github.com/roach88/rowbind/internal/schema"
)

// validator checks candidate values against properties before they are
// written. schema resolves relationship targets for nested literals and may
// be nil when nested validation is not requested.
type validator struct {
	schema *schema.Schema
}

// validateProperty checks val against p. With nested set, relationship
// values may be literals of the target class and are checked recursively.
// allowMissing lets keyed literals omit properties other than the primary
// key, as partial updates do.
func (v validator) validateProperty(val any, p *schema.Property, nested, allowMissing bool) error {
	switch p.Type {
	case schema.TypeObject:
		return v.validateLink(val, p, nested, allowMissing)
	case schema.TypeArray:
		if val == nil {
			return nil
		}
		elems, ok := elementsOf(val)
		if !ok {
			return ErrTypeMismatch.New("%T is not a sequence for array property %q", val, p.Name)
		}
		for i, e := range elems {
			if isNil(e) {
				return ErrTypeMismatch.New("%s[%d]: arrays cannot contain nil", p.Name, i)
			}
			if err := v.validateLink(e, p, nested, allowMissing); err != nil {
				return fmt.Errorf("%s[%d]: %w", p.Name, i, err)
			}
		}
		return nil
	}

	if val == nil {
		if !p.Nullable() {
			return ErrTypeMismatch.New("nil is not a valid value for required property %q", p.Name)
		}
		return nil
	}
	if _, ok := normalizeScalar(p.Type, val); !ok {
		return ErrTypeMismatch.New("invalid value %v (%T) for property %q of type %s", val, val, p.Name, p.Type)
	}
	return nil
}

// validateLink checks one relationship target.
func (v validator) validateLink(val any, p *schema.Property, nested, allowMissing bool) error {
	if isNil(val) {
		return nil
	}
	if o, ok := val.(*Object); ok {
		if o.IsInvalidated() {
			return ErrInvalidatedObject.New("invalidated %s object used as value of %q", o.ClassName(), p.Name)
		}
		if o.ClassName() == p.ObjectClass {
			return nil
		}
		if !nested {
			return ErrTypeMismatch.New("%s object is not valid for property %q of class %s",
				o.ClassName(), p.Name, p.ObjectClass)
		}
	} else if !nested {
		return ErrTypeMismatch.New("%T is not a %s object for property %q", val, p.ObjectClass, p.Name)
	}

	target := v.target(p)
	if target == nil {
		return ErrUnknownClass.New("%q, target of property %q", p.ObjectClass, p.Name)
	}
	if err := v.validateLiteral(target, val, allowMissing); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	return nil
}

func (v validator) target(p *schema.Property) *schema.ObjectSchema {
	if v.schema == nil {
		return nil
	}
	return v.schema.ObjectSchema(p.ObjectClass)
}

// validateLiteral checks a loosely structured value against a class. A
// sequence maps positionally onto the properties and must have exactly one
// element per property; anything else is read as a keyed bag.
func (v validator) validateLiteral(obj *schema.ObjectSchema, val any, allowMissing bool) error {
	if o, ok := val.(*Object); ok {
		if o.IsInvalidated() {
			return ErrInvalidatedObject.New("invalidated %s object used as a literal", o.ClassName())
		}
	}

	kv, positional, err := literalValues(obj, val)
	if err != nil {
		return err
	}
	for _, p := range obj.Properties {
		pv, has := kv[p.Name]
		if !has && !positional && p.Default != nil {
			pv, has = p.Default, true
		}
		if !has {
			if allowMissing && !p.PrimaryKey {
				continue
			}
			if p.Nullable() || p.Type == schema.TypeArray {
				continue
			}
			return ErrMissingRequiredValue.New("missing value for property %q of class %q", p.Name, obj.ClassName)
		}
		if err := v.validateProperty(pv, p, true, allowMissing); err != nil {
			return err
		}
	}
	return nil
}

// literalValues returns a name→value view of a literal for obj. positional
// reports whether it came from a sequence.
func literalValues(obj *schema.ObjectSchema, val any) (map[string]any, bool, error) {
	if o, ok := val.(*Object); ok {
		kv, err := o.Values()
		return kv, false, err
	}
	if seq, ok := sequence(val); ok {
		if len(seq) != len(obj.Properties) {
			return nil, true, ErrTypeMismatch.New("positional value for class %q has %d elements, want %d",
				obj.ClassName, len(seq), len(obj.Properties))
		}
		kv := make(map[string]any, len(seq))
		for i, p := range obj.Properties {
			kv[p.Name] = seq[i]
		}
		return kv, true, nil
	}
	kv, ok := keyedValues(val)
	if !ok {
		return nil, false, ErrTypeMismatch.New("%T is not a valid value for class %q", val, obj.ClassName)
	}
	return kv, false, nil
}

// elementsOf returns the elements of an array value: a *List or any slice.
func elementsOf(val any) ([]any, bool) {
	if l, ok := val.(*List); ok {
		objs, err := l.Objects()
		if err != nil {
			return nil, false
		}
		out := make([]any, len(objs))
		for i, o := range objs {
			out[i] = o
		}
		return out, true
	}
	return sequence(val)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	o, ok := v.(*Object)
	return ok && o == nil
}
