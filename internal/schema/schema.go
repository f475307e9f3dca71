package schema

import "fmt"

// Schema is an ordered set of object schemas.
type Schema struct {
	objects []*ObjectSchema
	byName  map[string]*ObjectSchema
}

// New builds and validates a Schema.
func New(objects ...*ObjectSchema) (*Schema, error) {
	s := &Schema{byName: make(map[string]*ObjectSchema, len(objects))}
	for _, obj := range objects {
		if obj == nil {
			return nil, fmt.Errorf("nil object schema")
		}
		if _, dup := s.byName[obj.ClassName]; dup {
			return nil, fmt.Errorf("duplicate class %q", obj.ClassName)
		}
		s.objects = append(s.objects, obj)
		s.byName[obj.ClassName] = obj
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(objects ...*ObjectSchema) *Schema {
	s, err := New(objects...)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks every object schema and every relationship target.
func (s *Schema) Validate() error {
	for _, obj := range s.objects {
		if err := obj.Validate(); err != nil {
			return err
		}
		for _, p := range obj.Properties {
			if !p.Type.IsRelationship() {
				continue
			}
			if _, ok := s.byName[p.ObjectClass]; !ok {
				return fmt.Errorf("class %q: property %q links to unknown class %q",
					obj.ClassName, p.Name, p.ObjectClass)
			}
		}
	}
	return nil
}

// ObjectSchema returns the named class, or nil.
func (s *Schema) ObjectSchema(className string) *ObjectSchema {
	if s == nil {
		return nil
	}
	return s.byName[className]
}

// ObjectSchemas returns the classes in declaration order.
func (s *Schema) ObjectSchemas() []*ObjectSchema {
	if s == nil {
		return nil
	}
	out := make([]*ObjectSchema, len(s.objects))
	copy(out, s.objects)
	return out
}

// Len returns the number of classes.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.objects)
}

// Clone returns a deep copy.
func (s *Schema) Clone() *Schema {
	c := &Schema{byName: make(map[string]*ObjectSchema, len(s.objects))}
	for _, obj := range s.objects {
		oc := obj.Clone()
		c.objects = append(c.objects, oc)
		c.byName[oc.ClassName] = oc
	}
	return c
}

// Equal reports whether both schemas have the same classes with the same shapes,
// in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i, obj := range s.objects {
		if !obj.Equal(other.objects[i]) {
			return false
		}
	}
	return true
}
