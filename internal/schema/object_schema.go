package schema

import (
	"fmt"
	"slices"
)

// ObjectSchema describes one persisted class.
type ObjectSchema struct {
	ClassName  string      `json:"class_name"`
	Properties []*Property `json:"properties"`
}

// NewObjectSchema builds and validates an ObjectSchema.
// Object properties are forced optional.
func NewObjectSchema(className string, props ...*Property) (*ObjectSchema, error) {
	o := &ObjectSchema{ClassName: className, Properties: props}
	for _, p := range props {
		if p != nil && p.Type == TypeObject {
			p.Optional = true
		}
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// MustObjectSchema is like NewObjectSchema but panics on error.
// Use only in tests or for statically known schemas.
func MustObjectSchema(className string, props ...*Property) *ObjectSchema {
	o, err := NewObjectSchema(className, props...)
	if err != nil {
		panic(err)
	}
	return o
}

// Validate checks the schema in isolation. Relationship targets are checked by
// Schema.Validate.
func (o *ObjectSchema) Validate() error {
	if o.ClassName == "" {
		return fmt.Errorf("class name is required")
	}
	seen := make(map[string]bool, len(o.Properties))
	pk := ""
	for i, p := range o.Properties {
		if p == nil {
			return fmt.Errorf("class %q: property %d is nil", o.ClassName, i)
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("class %q: %w", o.ClassName, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("class %q: duplicate property %q", o.ClassName, p.Name)
		}
		seen[p.Name] = true
		if p.PrimaryKey {
			if pk != "" {
				return fmt.Errorf("class %q: multiple primary keys (%q and %q)", o.ClassName, pk, p.Name)
			}
			pk = p.Name
		}
	}
	return nil
}

// Property returns the named property, or nil.
func (o *ObjectSchema) Property(name string) *Property {
	for _, p := range o.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// PrimaryKey returns the primary-key property, or nil if the class has none.
func (o *ObjectSchema) PrimaryKey() *Property {
	for _, p := range o.Properties {
		if p.PrimaryKey {
			return p
		}
	}
	return nil
}

// Clone returns a deep copy.
func (o *ObjectSchema) Clone() *ObjectSchema {
	c := &ObjectSchema{ClassName: o.ClassName, Properties: make([]*Property, len(o.Properties))}
	for i, p := range o.Properties {
		c.Properties[i] = p.Clone()
	}
	return c
}

// Equal reports whether both schemas describe the same class shape.
// Column bindings, defaults and property order are ignored.
func (o *ObjectSchema) Equal(other *ObjectSchema) bool {
	if o.ClassName != other.ClassName || len(o.Properties) != len(other.Properties) {
		return false
	}
	for _, p := range o.Properties {
		q := other.Property(p.Name)
		if q == nil || !p.sameShape(q) {
			return false
		}
	}
	return true
}

// IsBound reports whether every property has a column.
func (o *ObjectSchema) IsBound() bool {
	for _, p := range o.Properties {
		if p.Column == NoColumn {
			return false
		}
	}
	return true
}

// Unbind resets every column index.
func (o *ObjectSchema) Unbind() {
	for _, p := range o.Properties {
		p.Column = NoColumn
	}
}

// SortByColumn reorders properties to match physical column order.
// Unbound properties keep their relative order after the bound ones.
func (o *ObjectSchema) SortByColumn() {
	slices.SortStableFunc(o.Properties, func(a, b *Property) int {
		switch {
		case a.Column == NoColumn && b.Column == NoColumn:
			return 0
		case a.Column == NoColumn:
			return 1
		case b.Column == NoColumn:
			return -1
		}
		return a.Column - b.Column
	})
}
