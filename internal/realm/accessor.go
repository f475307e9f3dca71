package realm

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

// Accessor reads and writes the fields of objects of one class shape.
// Every class has a standalone and a persisted implementation; an object
// switches between them when its state changes.
type Accessor interface {
	ReadField(o *Object, name string) (any, error)
	WriteField(o *Object, name string, v any) error
	FieldDescriptor(name string) *schema.Property
}

// classAccessors is the binding shared by every class with the same shape.
type classAccessors struct {
	fields  map[string]*schema.Property
	columns map[string]store.Column

	standalone *standaloneAccessor
	persisted  *persistedAccessor
}

func (c *classAccessors) fieldDescriptor(name string) *schema.Property {
	return c.fields[name]
}

// accessorCache maps schema shapes to bindings. It starts empty and is
// filled when schemas are synchronized or objects are created.
var accessorCache = struct {
	sync.Mutex
	byShape map[string]*classAccessors
}{byShape: map[string]*classAccessors{}}

// shapeKey identifies a binding: the schema fingerprint plus the property
// defaults, which the fingerprint leaves out.
func shapeKey(obj *schema.ObjectSchema) string {
	var b strings.Builder
	b.WriteString(obj.Fingerprint())
	for _, p := range obj.Properties {
		if p.Default == nil {
			continue
		}
		d := p.Default
		if t, ok := d.(time.Time); ok {
			d = t.UTC().Format(time.RFC3339Nano)
		}
		fmt.Fprintf(&b, "\x00%s=%T:%v", p.Name, p.Default, d)
	}
	return b.String()
}

// accessorsFor returns the cached binding for the schema's shape, creating it
// on first use.
func accessorsFor(obj *schema.ObjectSchema) *classAccessors {
	fp := shapeKey(obj)

	accessorCache.Lock()
	defer accessorCache.Unlock()

	if acc, ok := accessorCache.byShape[fp]; ok {
		return acc
	}
	acc := &classAccessors{
		fields:  make(map[string]*schema.Property, len(obj.Properties)),
		columns: make(map[string]store.Column, len(obj.Properties)),
	}
	for _, p := range obj.Properties {
		acc.fields[p.Name] = p.Clone()
		acc.columns[p.Name] = columnFor(p)
	}
	acc.standalone = &standaloneAccessor{acc}
	acc.persisted = &persistedAccessor{acc}
	accessorCache.byShape[fp] = acc
	return acc
}

// bindAccessors prepares the binding of every class in s.
func bindAccessors(s *schema.Schema) {
	for _, obj := range s.ObjectSchemas() {
		accessorsFor(obj)
	}
}

// ClearAccessorCache drops every cached binding. Existing objects keep the
// binding they were created with.
func ClearAccessorCache() {
	accessorCache.Lock()
	defer accessorCache.Unlock()
	accessorCache.byShape = map[string]*classAccessors{}
}

// accessorCacheLen is used by tests.
func accessorCacheLen() int {
	accessorCache.Lock()
	defer accessorCache.Unlock()
	return len(accessorCache.byShape)
}

type standaloneAccessor struct {
	*classAccessors
}

func (a *standaloneAccessor) FieldDescriptor(name string) *schema.Property {
	return a.fieldDescriptor(name)
}

func (a *standaloneAccessor) ReadField(o *Object, name string) (any, error) {
	return o.values[name], nil
}

func (a *standaloneAccessor) WriteField(o *Object, name string, v any) error {
	p := a.fields[name]
	if o, ok := v.(*Object); ok && o == nil {
		v = nil
	}
	if err := (validator{}).validateProperty(v, p, false, false); err != nil {
		return err
	}

	var stored any
	switch p.Type {
	case schema.TypeArray:
		elems, _ := elementsOf(v)
		items := make([]*Object, len(elems))
		for i, e := range elems {
			items[i] = e.(*Object)
		}
		l := o.values[name].(*List)
		c := Change{Kind: ChangeSetting, Key: name}
		o.willChange(c)
		l.items = items
		o.didChange(c)
		return nil
	case schema.TypeObject:
		stored = v
	default:
		stored, _ = normalizeScalar(p.Type, v)
	}

	c := Change{Kind: ChangeSetting, Key: name}
	o.willChange(c)
	o.values[name] = stored
	o.didChange(c)
	return nil
}

type persistedAccessor struct {
	*classAccessors
}

func (a *persistedAccessor) FieldDescriptor(name string) *schema.Property {
	return a.fieldDescriptor(name)
}

func (a *persistedAccessor) ReadField(o *Object, name string) (any, error) {
	col := a.columns[name]
	return o.realm.readField(o, a.fields[name], &col)
}

func (a *persistedAccessor) WriteField(o *Object, name string, v any) error {
	return o.realm.writeField(o, a.fields[name], v)
}
