package realm

import (
	"context"

	"github.com/roach88/rowbind/internal/queryir"
	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

// runFunc runs fn as one atomic write-path operation.
type runFunc func(ctx context.Context, fn func(w *writer) error) error

func (r *Realm) runner(op string) runFunc {
	return func(ctx context.Context, fn func(w *writer) error) error {
		return r.write(ctx, op, fn)
	}
}

// Add persists a standalone object, and every standalone object reachable
// from it, as new rows. Adding an object already in this realm does nothing.
func (r *Realm) Add(ctx context.Context, obj *Object) error {
	return r.write(ctx, "add", func(w *writer) error {
		_, err := w.attach(obj, false)
		return err
	})
}

// AddOrUpdate is like Add, but objects whose class has a primary key update
// the row with the same key when one exists.
func (r *Realm) AddOrUpdate(ctx context.Context, obj *Object) error {
	return r.write(ctx, "add or update", func(w *writer) error {
		_, err := w.attach(obj, true)
		return err
	})
}

// Create persists a new object of class built from value: a map or struct
// keyed by property name, a sequence with one value per property, or another
// object. Nested literals for relationship properties become objects too.
func (r *Realm) Create(ctx context.Context, class string, value any) (*Object, error) {
	return r.create(ctx, class, value, false, r.runner("create"))
}

// CreateOrUpdate is like Create, but when class has a primary key and a row
// with value's key exists, that row is updated instead. Properties missing
// from value keep their stored values.
func (r *Realm) CreateOrUpdate(ctx context.Context, class string, value any) (*Object, error) {
	return r.create(ctx, class, value, true, r.runner("create or update"))
}

func (r *Realm) create(ctx context.Context, class string, value any, update bool, run runFunc) (*Object, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	cls := r.schema.ObjectSchema(class)
	if cls == nil {
		return nil, ErrUnknownClass.New("%q", class)
	}
	if o, ok := value.(*Object); ok && update && o.state == StatePersisted && o.realm == r && o.ClassName() == class {
		return o, nil
	}

	var obj *Object
	err := run(ctx, func(w *writer) error {
		if err := (validator{r.schema}).validateLiteral(cls, value, update); err != nil {
			return err
		}
		key, err := w.createRow(cls, value, update)
		if err != nil {
			return err
		}
		obj = r.objectFor(cls, key)
		w.created = append(w.created, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Delete removes obj's row and invalidates obj.
func (r *Realm) Delete(ctx context.Context, obj *Object) error {
	return r.delete(ctx, obj, r.runner("delete"))
}

func (r *Realm) delete(ctx context.Context, obj *Object, run runFunc) error {
	return run(ctx, func(w *writer) error {
		switch {
		case obj == nil:
			return Error.New("cannot delete a nil object")
		case obj.state == StateInvalidated:
			return ErrInvalidatedObject.New("%s object has already been deleted or invalidated", obj.ClassName())
		case obj.state == StateStandalone:
			return ErrWrongRealm.New("standalone %s object is not in this realm", obj.ClassName())
		case obj.realm != r:
			return ErrWrongRealm.New("%s object belongs to another realm", obj.ClassName())
		}

		err := r.store.RemoveRowBySwap(ctx, obj.ClassName(), obj.key)
		if store.ErrRowNotFound.Has(err) {
			obj.invalidate()
			return ErrInvalidatedObject.New("%s object has already been deleted", obj.ClassName())
		}
		if err != nil {
			return Error.Wrap(err)
		}
		w.deleted = append(w.deleted, obj)
		return nil
	})
}

// DeleteAll removes every row of every class in the schema.
func (r *Realm) DeleteAll(ctx context.Context) error {
	return r.write(ctx, "delete all", func(w *writer) error {
		for _, obj := range r.schema.ObjectSchemas() {
			if err := w.clear(obj.ClassName); err != nil {
				return err
			}
		}
		return nil
	})
}

// Find returns the object of class whose primary key equals key, or nil when
// there is none. Classes without a primary key fail with
// ErrMissingPrimaryKey.
func (r *Realm) Find(ctx context.Context, class string, key any) (*Object, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	cls := r.schema.ObjectSchema(class)
	if cls == nil {
		return nil, ErrUnknownClass.New("%q", class)
	}
	pk := cls.PrimaryKey()
	if pk == nil {
		return nil, ErrMissingPrimaryKey.New("class %q has no primary key", class)
	}
	norm, err := normalizePrimaryKey(cls, pk, key)
	if err != nil {
		return nil, err
	}

	ok, err := r.store.HasTable(ctx, class)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !ok {
		return nil, nil
	}
	k, found, err := r.findKey(ctx, cls, pk, norm)
	if err != nil || !found {
		return nil, err
	}
	return r.objectFor(cls, k), nil
}

// Objects returns a lazy view over every object of class.
func (r *Realm) Objects(class string) (*Results, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	cls := r.schema.ObjectSchema(class)
	if cls == nil {
		return nil, ErrUnknownClass.New("%q", class)
	}
	return &Results{realm: r, class: cls}, nil
}

// Where returns a lazy view over the objects of class matching pred.
func (r *Realm) Where(class string, pred queryir.Predicate) (*Results, error) {
	res, err := r.Objects(class)
	if err != nil {
		return nil, err
	}
	return res.Where(pred)
}

func (r *Realm) objectFor(cls *schema.ObjectSchema, key int64) *Object {
	return &Object{
		schema: cls,
		acc:    accessorsFor(cls),
		state:  StatePersisted,
		realm:  r,
		key:    key,
	}
}

func (r *Realm) findKey(ctx context.Context, cls *schema.ObjectSchema, pk *schema.Property, v any) (int64, bool, error) {
	col := columnFor(pk)
	var (
		key   int64
		found bool
		err   error
	)
	switch val := v.(type) {
	case int64:
		key, found, err = r.store.FindFirstInt(ctx, cls.ClassName, &col, val)
	case string:
		key, found, err = r.store.FindFirstString(ctx, cls.ClassName, &col, val)
	default:
		key, found, err = r.store.FindFirstNull(ctx, cls.ClassName, &col)
	}
	if err != nil {
		return 0, false, Error.Wrap(err)
	}
	return key, found, nil
}

// normalizePrimaryKey checks a key value against the declared key type.
func normalizePrimaryKey(cls *schema.ObjectSchema, pk *schema.Property, v any) (any, error) {
	if v == nil {
		if pk.Optional {
			return nil, nil
		}
		return nil, ErrInvalidPrimaryKeyValue.New("nil is not a valid primary key for class %q", cls.ClassName)
	}
	norm, ok := normalizeScalar(pk.Type, v)
	if !ok {
		return nil, ErrInvalidPrimaryKeyValue.New("%v (%T) is not a valid %s primary key for class %q",
			v, v, pk.Type, cls.ClassName)
	}
	return norm, nil
}

func (r *Realm) readField(o *Object, p *schema.Property, col *store.Column) (any, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	ctx := context.Background()

	if p.Type == schema.TypeArray {
		ok, err := r.store.RowExists(ctx, o.ClassName(), o.key)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		if !ok {
			o.invalidate()
			return nil, ErrInvalidatedObject.New("%s object has been deleted", o.ClassName())
		}
		return newPersistedList(o, p), nil
	}

	v, err := r.store.Get(ctx, o.ClassName(), o.key, col)
	if store.ErrRowNotFound.Has(err) {
		o.invalidate()
		return nil, ErrInvalidatedObject.New("%s object has been deleted", o.ClassName())
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if p.Type == schema.TypeObject {
		if v == nil {
			return nil, nil
		}
		target := r.schema.ObjectSchema(p.ObjectClass)
		if target == nil {
			return nil, ErrUnknownClass.New("%q, target of %s.%s", p.ObjectClass, o.ClassName(), p.Name)
		}
		return r.objectFor(target, v.(int64)), nil
	}
	return v, nil
}

func (r *Realm) writeField(o *Object, p *schema.Property, v any) error {
	ctx := context.Background()
	err := r.write(ctx, "set "+o.ClassName()+"."+p.Name, func(w *writer) error {
		if p.PrimaryKey {
			return Error.New("primary key %q of class %q cannot be changed", p.Name, o.ClassName())
		}
		if err := (validator{r.schema}).validateProperty(v, p, false, false); err != nil {
			return err
		}
		return w.setField(o.schema, o.key, p, v)
	})
	if store.ErrRowNotFound.Has(err) {
		o.invalidate()
		return ErrInvalidatedObject.New("%s object has been deleted", o.ClassName())
	}
	return err
}
