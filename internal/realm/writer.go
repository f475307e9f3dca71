package realm

import (
	"context"

	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

// writer carries the state of one write-path operation. Object state changes
// are collected and applied by finish, only after the store work succeeded.
type writer struct {
	ctx context.Context
	r   *Realm

	// bound maps standalone objects to the rows they were given, in order.
	bound map[*Object]int64
	order []*Object

	// links are relationship writes deferred until every row is resolved.
	links []linkWrite

	// copying guards against cycles when standalone objects are copied as
	// literals.
	copying map[*Object]bool

	created []*Object
	deleted []*Object
}

type linkWrite struct {
	class string
	key   int64
	col   store.Column
	value any
}

func newWriter(ctx context.Context, r *Realm) *writer {
	return &writer{
		ctx:     ctx,
		r:       r,
		bound:   map[*Object]int64{},
		copying: map[*Object]bool{},
	}
}

// finish applies the object state changes of a successful operation.
func (w *writer) finish() {
	for _, o := range w.order {
		o.persist(w.r, w.r.schema.ObjectSchema(o.ClassName()), w.bound[o])
		w.r.pending = append(w.r.pending, o)
	}
	w.r.pending = append(w.r.pending, w.created...)
	for _, o := range w.deleted {
		o.invalidate()
	}
}

// attach gives obj and every standalone object reachable from it a row.
// Rows and scalar fields are written first; relationship fields are written
// once every row in the graph is known, so cycles need no special handling.
func (w *writer) attach(obj *Object, update bool) (int64, error) {
	if obj == nil {
		return 0, Error.New("cannot add a nil object")
	}
	key, err := w.resolve(obj, update)
	if err != nil {
		return 0, err
	}
	return key, w.flushLinks()
}

func (w *writer) resolve(obj *Object, update bool) (int64, error) {
	switch obj.state {
	case StateInvalidated:
		return 0, ErrInvalidatedObject.New("cannot add invalidated %s object", obj.ClassName())
	case StatePersisted:
		if obj.realm == w.r {
			return obj.key, nil
		}
		return 0, ErrAlreadyPersisted.New("%s object belongs to another realm", obj.ClassName())
	}
	if key, ok := w.bound[obj]; ok {
		return key, nil
	}
	if obj.HasObservers() {
		return 0, ErrObservedObjectAttach.New("%s object has registered observers", obj.ClassName())
	}

	cls := w.r.schema.ObjectSchema(obj.ClassName())
	if cls == nil {
		return 0, ErrUnknownClass.New("%q", obj.ClassName())
	}
	if !cls.Equal(obj.schema) {
		return 0, ErrTypeMismatch.New("%s object was created with a schema that differs from the realm's", obj.ClassName())
	}

	pk := cls.PrimaryKey()
	var pkValue any
	hasPK := false
	if pk != nil {
		pkValue, hasPK = obj.values[pk.Name]
	}
	key, created, err := w.resolveRow(cls, pkValue, hasPK, update)
	if err != nil {
		return 0, err
	}
	w.bound[obj] = key
	w.order = append(w.order, obj)

	v := validator{w.r.schema}
	for _, p := range cls.Properties {
		if p.Type.IsRelationship() || (p.PrimaryKey && !created) {
			continue
		}
		val, has := obj.values[p.Name]
		if !has && !p.Nullable() {
			return 0, ErrMissingRequiredValue.New("missing value for property %q of class %q", p.Name, cls.ClassName)
		}
		if err := v.validateProperty(val, p, false, false); err != nil {
			return 0, err
		}
		if err := w.setScalar(cls, key, p, val); err != nil {
			return 0, err
		}
	}

	for _, p := range cls.Properties {
		switch p.Type {
		case schema.TypeObject:
			var target any
			if child, ok := obj.values[p.Name].(*Object); ok && child != nil {
				ck, err := w.resolveChild(child, p, update)
				if err != nil {
					return 0, err
				}
				target = ck
			}
			w.queueLink(cls, key, p, target)
		case schema.TypeArray:
			var items []*Object
			if l, ok := obj.values[p.Name].(*List); ok {
				items = l.items
			}
			keys := make([]int64, len(items))
			for i, child := range items {
				ck, err := w.resolveChild(child, p, update)
				if err != nil {
					return 0, err
				}
				keys[i] = ck
			}
			w.queueLink(cls, key, p, keys)
		}
	}
	return key, nil
}

func (w *writer) resolveChild(child *Object, p *schema.Property, update bool) (int64, error) {
	if child.ClassName() != p.ObjectClass {
		return 0, ErrTypeMismatch.New("%s object is not valid for property %q of class %s",
			child.ClassName(), p.Name, p.ObjectClass)
	}
	return w.resolve(child, update)
}

// resolveRow finds the row to write: the row with the same primary key when
// updating, a new row otherwise.
func (w *writer) resolveRow(cls *schema.ObjectSchema, pkValue any, hasPK, update bool) (int64, bool, error) {
	if pk := cls.PrimaryKey(); update && pk != nil {
		if !hasPK {
			return 0, false, ErrMissingRequiredValue.New("missing primary key %q of class %q", pk.Name, cls.ClassName)
		}
		norm, err := normalizePrimaryKey(cls, pk, pkValue)
		if err != nil {
			return 0, false, err
		}
		key, found, err := w.r.findKey(w.ctx, cls, pk, norm)
		if err != nil {
			return 0, false, err
		}
		if found {
			return key, false, nil
		}
	}

	key, err := w.r.store.AppendRow(w.ctx, cls.ClassName)
	if err != nil {
		return 0, false, Error.Wrap(err)
	}
	return key, true, nil
}

func (w *writer) queueLink(cls *schema.ObjectSchema, key int64, p *schema.Property, value any) {
	w.links = append(w.links, linkWrite{class: cls.ClassName, key: key, col: columnFor(p), value: value})
}

func (w *writer) flushLinks() error {
	for _, l := range w.links {
		if err := w.r.store.Set(w.ctx, l.class, l.key, &l.col, l.value); err != nil {
			return Error.Wrap(err)
		}
	}
	w.links = nil
	return nil
}

func (w *writer) setScalar(cls *schema.ObjectSchema, key int64, p *schema.Property, v any) error {
	norm, ok := normalizeScalar(p.Type, v)
	if !ok {
		return ErrTypeMismatch.New("invalid value %v (%T) for property %q of type %s", v, v, p.Name, p.Type)
	}
	col := columnFor(p)
	if err := w.r.store.Set(w.ctx, cls.ClassName, key, &col, norm); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// setField writes one already validated value into an existing row.
// Standalone objects given for relationship properties are attached.
func (w *writer) setField(cls *schema.ObjectSchema, key int64, p *schema.Property, v any) error {
	switch p.Type {
	case schema.TypeObject:
		var target any
		if !isNil(v) {
			ck, err := w.resolveChild(v.(*Object), p, false)
			if err != nil {
				return err
			}
			target = ck
		}
		w.queueLink(cls, key, p, target)
		return w.flushLinks()
	case schema.TypeArray:
		keys := []int64{}
		if v != nil {
			elems, _ := elementsOf(v)
			for _, e := range elems {
				ck, err := w.resolveChild(e.(*Object), p, false)
				if err != nil {
					return err
				}
				keys = append(keys, ck)
			}
		}
		w.queueLink(cls, key, p, keys)
		return w.flushLinks()
	}
	return w.setScalar(cls, key, p, v)
}

// createRow writes a literal as a row of cls and returns its key. Relationship
// values that are not objects of this realm are created recursively.
func (w *writer) createRow(cls *schema.ObjectSchema, value any, update bool) (int64, error) {
	if o, ok := value.(*Object); ok && o.state == StateStandalone {
		if w.copying[o] {
			return 0, ErrTypeMismatch.New("standalone %s object graph contains a cycle; use Add", o.ClassName())
		}
		w.copying[o] = true
		defer delete(w.copying, o)
	}

	kv, _, err := literalValues(cls, value)
	if err != nil {
		return 0, err
	}
	pk := cls.PrimaryKey()
	var pkValue any
	hasPK := false
	if pk != nil {
		pkValue, hasPK = kv[pk.Name]
	}
	key, created, err := w.resolveRow(cls, pkValue, hasPK, update)
	if err != nil {
		return 0, err
	}

	for _, p := range cls.Properties {
		v, has := kv[p.Name]
		if !has && created && p.Default != nil {
			v, has = p.Default, true
		}
		if !has && p.Type.IsRelationship() {
			v, has = nil, true
		}
		if !has {
			if created && !p.Nullable() {
				return 0, ErrMissingRequiredValue.New("missing value for property %q of class %q", p.Name, cls.ClassName)
			}
			continue
		}
		if p.PrimaryKey && !created {
			continue
		}
		if err := w.createValue(cls, key, p, v, update); err != nil {
			return 0, err
		}
	}
	return key, nil
}

func (w *writer) createValue(cls *schema.ObjectSchema, key int64, p *schema.Property, v any, update bool) error {
	switch p.Type {
	case schema.TypeObject:
		var target any
		if !isNil(v) {
			ck, err := w.createTarget(p, v, update)
			if err != nil {
				return err
			}
			target = ck
		}
		w.queueLink(cls, key, p, target)
		return w.flushLinks()
	case schema.TypeArray:
		keys := []int64{}
		if v != nil {
			elems, ok := elementsOf(v)
			if !ok {
				return ErrTypeMismatch.New("%T is not a sequence for array property %q", v, p.Name)
			}
			for _, e := range elems {
				ck, err := w.createTarget(p, e, update)
				if err != nil {
					return err
				}
				keys = append(keys, ck)
			}
		}
		w.queueLink(cls, key, p, keys)
		return w.flushLinks()
	}
	return w.setScalar(cls, key, p, v)
}

// createTarget resolves one relationship value of a literal: objects of this
// realm are linked as they are, anything else is created.
func (w *writer) createTarget(p *schema.Property, v any, update bool) (int64, error) {
	if o, ok := v.(*Object); ok {
		if o.IsInvalidated() {
			return 0, ErrInvalidatedObject.New("invalidated %s object used as value of %q", o.ClassName(), p.Name)
		}
		if o.state == StatePersisted && o.realm == w.r && o.ClassName() == p.ObjectClass {
			return o.key, nil
		}
	}
	target := w.r.schema.ObjectSchema(p.ObjectClass)
	if target == nil {
		return 0, ErrUnknownClass.New("%q, target of property %q", p.ObjectClass, p.Name)
	}
	return w.createRow(target, v, update)
}

func (w *writer) clear(class string) error {
	ok, err := w.r.store.HasTable(w.ctx, class)
	if err != nil {
		return Error.Wrap(err)
	}
	if !ok {
		return nil
	}
	if err := w.r.store.Clear(w.ctx, class); err != nil {
		return Error.Wrap(err)
	}
	return nil
}
