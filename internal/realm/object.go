package realm

import (
	"fmt"
	"slices"

	"github.com/roach88/rowbind/internal/schema"
)

// State is the lifecycle stage of an Object. Transitions only go forward:
// Standalone → Persisted → Invalidated.
type State int

const (
	// StateStandalone objects hold their values in memory.
	StateStandalone State = iota
	// StatePersisted objects read and write a row of a realm.
	StatePersisted
	// StateInvalidated objects refuse every field access.
	StateInvalidated
)

func (s State) String() string {
	switch s {
	case StateStandalone:
		return "standalone"
	case StatePersisted:
		return "persisted"
	case StateInvalidated:
		return "invalidated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Object is an instance of a schema class, either standalone or bound to a
// row of a realm.
type Object struct {
	schema *schema.ObjectSchema
	acc    *classAccessors
	state  State

	// Set once persisted.
	realm *Realm
	key   int64

	// Standalone storage. Array properties hold a *List.
	values map[string]any

	observers []*observerEntry
}

type observerEntry struct {
	obs Observer
}

// NewObject returns a standalone object of the given class with the
// schema's default values applied.
func NewObject(obj *schema.ObjectSchema) *Object {
	o := &Object{
		schema: obj,
		acc:    accessorsFor(obj),
		state:  StateStandalone,
		values: make(map[string]any, len(obj.Properties)),
	}
	for _, p := range obj.Properties {
		switch {
		case p.Type == schema.TypeArray:
			o.values[p.Name] = newStandaloneList(p.ObjectClass, o, p.Name)
		case p.Default != nil:
			if v, ok := normalizeScalar(p.Type, p.Default); ok {
				o.values[p.Name] = v
			}
		}
	}
	return o
}

// NewObjectWithValues returns a standalone object initialized from a keyed
// literal (a map or a struct). Each value is checked against its property.
func NewObjectWithValues(obj *schema.ObjectSchema, values any) (*Object, error) {
	kv, ok := keyedValues(values)
	if !ok {
		return nil, ErrTypeMismatch.New("%T is not a keyed value for class %q", values, obj.ClassName)
	}
	o := NewObject(obj)
	for name, v := range kv {
		if err := o.Set(name, v); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// ClassName returns the object's class.
func (o *Object) ClassName() string {
	return o.schema.ClassName
}

// ObjectSchema returns the schema the object was created with.
func (o *Object) ObjectSchema() *schema.ObjectSchema {
	return o.schema
}

// State returns the lifecycle stage.
func (o *Object) State() State {
	return o.state
}

// IsInvalidated reports whether the object can no longer be used.
func (o *Object) IsInvalidated() bool {
	return o.state == StateInvalidated
}

// Realm returns the owning realm, or nil for standalone objects.
func (o *Object) Realm() *Realm {
	if o.state != StatePersisted {
		return nil
	}
	return o.realm
}

// Key returns the row key of a persisted object.
func (o *Object) Key() (int64, bool) {
	return o.key, o.state == StatePersisted
}

// IsSameObject reports whether both objects are bound to the same row.
// A standalone object is only the same as itself.
func (o *Object) IsSameObject(other *Object) bool {
	if o == other {
		return true
	}
	if o == nil || other == nil || o.state != StatePersisted || other.state != StatePersisted {
		return false
	}
	return o.realm == other.realm && o.key == other.key && o.ClassName() == other.ClassName()
}

func (o *Object) accessor() Accessor {
	if o.state == StatePersisted {
		return o.acc.persisted
	}
	return o.acc.standalone
}

func (o *Object) check() error {
	if o.state == StateInvalidated {
		return ErrInvalidatedObject.New("%s object has been deleted or invalidated", o.ClassName())
	}
	return nil
}

func (o *Object) property(name string) (*schema.Property, error) {
	p := o.acc.fieldDescriptor(name)
	if p == nil {
		return nil, Error.New("class %q has no property %q", o.ClassName(), name)
	}
	return p, nil
}

// Get reads a property. Object properties yield *Object or nil, array
// properties yield *List, everything else its normalized scalar.
func (o *Object) Get(name string) (any, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	if _, err := o.property(name); err != nil {
		return nil, err
	}
	return o.accessor().ReadField(o, name)
}

// Set writes a property. On a persisted object this requires an open write
// transaction; standalone objects passed for relationship properties are
// added to the realm.
func (o *Object) Set(name string, v any) error {
	if err := o.check(); err != nil {
		return err
	}
	if _, err := o.property(name); err != nil {
		return err
	}
	return o.accessor().WriteField(o, name, v)
}

// List returns the collection behind an array property.
func (o *Object) List(name string) (*List, error) {
	p, err := o.property(name)
	if err != nil {
		return nil, err
	}
	if p.Type != schema.TypeArray {
		return nil, ErrTypeMismatch.New("%s.%s is %s, not an array", o.ClassName(), name, p.Type)
	}
	v, err := o.Get(name)
	if err != nil {
		return nil, err
	}
	return v.(*List), nil
}

// Values returns a snapshot of every property keyed by name. Array values are
// returned as []*Object.
func (o *Object) Values() (map[string]any, error) {
	out := make(map[string]any, len(o.schema.Properties))
	for _, p := range o.schema.Properties {
		v, err := o.Get(p.Name)
		if err != nil {
			return nil, err
		}
		if l, ok := v.(*List); ok {
			if v, err = l.Objects(); err != nil {
				return nil, err
			}
		}
		out[p.Name] = v
	}
	return out, nil
}

// AddObserver registers an observer for changes to a standalone object. The
// returned function removes it. Observed objects cannot be added to a realm.
func (o *Object) AddObserver(obs Observer) (remove func()) {
	e := &observerEntry{obs: obs}
	o.observers = append(o.observers, e)
	return func() {
		o.observers = slices.DeleteFunc(o.observers, func(x *observerEntry) bool { return x == e })
	}
}

// HasObservers reports whether any observer is registered.
func (o *Object) HasObservers() bool {
	return len(o.observers) > 0
}

func (o *Object) willChange(c Change) {
	for _, e := range o.observers {
		e.obs.WillChange(c)
	}
}

func (o *Object) didChange(c Change) {
	for _, e := range o.observers {
		e.obs.DidChange(c)
	}
}

// persist moves a standalone object onto a row. In-memory values are dropped
// so the caller cannot mistake them for live data.
// List handles obtained before attaching become views of the row.
func (o *Object) persist(r *Realm, cls *schema.ObjectSchema, key int64) {
	lists := o.values
	o.values = nil
	o.schema = cls
	o.acc = accessorsFor(cls)
	o.realm = r
	o.key = key
	o.state = StatePersisted
	for name, v := range lists {
		if l, ok := v.(*List); ok {
			l.detach(o, cls.Property(name))
		}
	}
}

func (o *Object) invalidate() {
	o.state = StateInvalidated
	o.values = nil
}

func (o *Object) String() string {
	switch o.state {
	case StatePersisted:
		return fmt.Sprintf("%s(key=%d)", o.ClassName(), o.key)
	case StateInvalidated:
		return fmt.Sprintf("%s(invalidated)", o.ClassName())
	}
	return fmt.Sprintf("%s(standalone)", o.ClassName())
}
