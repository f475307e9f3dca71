package schema

import "fmt"

// NoColumn marks a property that is not bound to a physical column.
const NoColumn = -1

// Property describes one field of an object type.
type Property struct {
	Name string       `json:"name"`
	Type PropertyType `json:"type"`

	// ObjectClass is the target class of Object and Array properties.
	ObjectClass string `json:"object_class,omitempty"`

	Optional   bool `json:"optional,omitempty"`
	PrimaryKey bool `json:"primary_key,omitempty"`
	Indexed    bool `json:"indexed,omitempty"`

	// Default is used when a new row is created without an explicit value.
	Default any `json:"default,omitempty"`

	// Column is the physical column index. NoColumn until the owning schema is
	// synchronized with a store.
	Column int `json:"-"`
}

// NewProperty returns an unbound property of the given type.
func NewProperty(name string, t PropertyType) *Property {
	return &Property{Name: name, Type: t, Column: NoColumn}
}

// Link returns an unbound relationship property to class.
func Link(name string, t PropertyType, class string) *Property {
	p := NewProperty(name, t)
	p.ObjectClass = class
	return p
}

// Clone returns a copy of p.
func (p *Property) Clone() *Property {
	c := *p
	return &c
}

// IsIndexed reports whether the property needs a search index.
// Primary keys are always indexed.
func (p *Property) IsIndexed() bool {
	return p.Indexed || p.PrimaryKey
}

// Nullable reports whether the property accepts a null value.
func (p *Property) Nullable() bool {
	return p.Optional || p.Type == TypeObject || p.Type == TypeAny
}

// validate checks the property on its own.
func (p *Property) validate() error {
	if p.Name == "" {
		return fmt.Errorf("property name is required")
	}
	if p.Type < TypeInt || p.Type > TypeArray {
		return fmt.Errorf("property %q: invalid type %d", p.Name, int(p.Type))
	}
	if p.Type.IsRelationship() {
		if p.ObjectClass == "" {
			return fmt.Errorf("property %q: %s property requires a target class", p.Name, p.Type)
		}
		if p.Indexed {
			return fmt.Errorf("property %q: %s properties cannot be indexed", p.Name, p.Type)
		}
		if p.Default != nil {
			return fmt.Errorf("property %q: %s properties cannot have a default", p.Name, p.Type)
		}
	} else if p.ObjectClass != "" {
		return fmt.Errorf("property %q: target class only allowed on object and array properties", p.Name)
	}
	if p.Type == TypeArray && p.Optional {
		return fmt.Errorf("property %q: array properties cannot be optional", p.Name)
	}
	if p.PrimaryKey && p.Type != TypeInt && p.Type != TypeString {
		return fmt.Errorf("property %q: primary key must be int or string, got %s", p.Name, p.Type)
	}
	return nil
}

// sameShape compares everything but the column binding and the default value.
func (p *Property) sameShape(o *Property) bool {
	return p.Name == o.Name &&
		p.Type == o.Type &&
		p.ObjectClass == o.ObjectClass &&
		p.Nullable() == o.Nullable() &&
		p.PrimaryKey == o.PrimaryKey &&
		p.IsIndexed() == o.IsIndexed()
}
