package realm

import (
	"context"
	"iter"
	"slices"

	"github.com/roach88/rowbind/internal/queryir"
	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

// List is an ordered collection of objects of one class. A standalone list
// buffers its elements in memory and reports mutations to its parent's
// observers; a persisted list is a view of a link-list column and writes
// through to the store.
type List struct {
	class string

	// Standalone backing.
	items  []*Object
	parent *Object
	prop   string

	// Persisted backing.
	owner *Object
	p     *schema.Property
	col   store.Column
}

// NewList returns an empty standalone list of class with no parent.
func NewList(class string) *List {
	return &List{class: class}
}

func newStandaloneList(class string, parent *Object, prop string) *List {
	return &List{class: class, parent: parent, prop: prop}
}

func newPersistedList(o *Object, p *schema.Property) *List {
	l := &List{class: p.ObjectClass}
	l.bind(o, p)
	return l
}

// detach turns a standalone list into a view of its now persisted owner.
func (l *List) detach(o *Object, p *schema.Property) {
	l.items = nil
	l.parent = nil
	l.bind(o, p)
}

func (l *List) bind(o *Object, p *schema.Property) {
	l.owner = o
	l.p = p
	l.col = columnFor(p)
}

// ClassName returns the element class.
func (l *List) ClassName() string {
	return l.class
}

// IsPersisted reports whether the list is backed by a row.
func (l *List) IsPersisted() bool {
	return l.owner != nil
}

func (l *List) realm() *Realm {
	return l.owner.realm
}

// keys reads the persisted element keys.
func (l *List) keys(ctx context.Context) ([]int64, error) {
	if err := l.owner.check(); err != nil {
		return nil, err
	}
	r := l.realm()
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	v, err := r.store.Get(ctx, l.owner.ClassName(), l.owner.key, &l.col)
	if store.ErrRowNotFound.Has(err) {
		l.owner.invalidate()
		return nil, ErrInvalidatedObject.New("%s object has been deleted", l.owner.ClassName())
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return v.([]int64), nil
}

func (l *List) element(key int64) (*Object, error) {
	r := l.realm()
	cls := r.schema.ObjectSchema(l.class)
	if cls == nil {
		return nil, ErrUnknownClass.New("%q", l.class)
	}
	return r.objectFor(cls, key), nil
}

// Count returns the number of elements.
func (l *List) Count() (int, error) {
	if !l.IsPersisted() {
		return len(l.items), nil
	}
	keys, err := l.keys(context.Background())
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Get returns the element at index i.
func (l *List) Get(i int) (*Object, error) {
	if !l.IsPersisted() {
		if err := checkIndex(i, len(l.items)); err != nil {
			return nil, err
		}
		return l.items[i], nil
	}
	keys, err := l.keys(context.Background())
	if err != nil {
		return nil, err
	}
	if err := checkIndex(i, len(keys)); err != nil {
		return nil, err
	}
	return l.element(keys[i])
}

// Objects returns the elements in order.
func (l *List) Objects() ([]*Object, error) {
	if !l.IsPersisted() {
		return slices.Clone(l.items), nil
	}
	keys, err := l.keys(context.Background())
	if err != nil {
		return nil, err
	}
	out := make([]*Object, len(keys))
	for i, k := range keys {
		if out[i], err = l.element(k); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// All iterates over the elements. A failure to read the list is yielded
// once with a nil object.
func (l *List) All() iter.Seq2[*Object, error] {
	return func(yield func(*Object, error) bool) {
		objs, err := l.Objects()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, o := range objs {
			if !yield(o, nil) {
				return
			}
		}
	}
}

// IndexOf returns the index of the first element that is obj, or -1.
func (l *List) IndexOf(obj *Object) (int, error) {
	objs, err := l.Objects()
	if err != nil {
		return -1, err
	}
	return slices.IndexFunc(objs, obj.IsSameObject), nil
}

// ValueForKey returns the named property of every element, in order.
func (l *List) ValueForKey(name string) ([]any, error) {
	objs, err := l.Objects()
	if err != nil {
		return nil, err
	}
	return valuesForKey(objs, name)
}

// Append adds objs at the end.
func (l *List) Append(objs ...*Object) error {
	return l.insert(0, true, objs)
}

// Insert adds obj at index i. i may equal the count.
func (l *List) Insert(i int, obj *Object) error {
	return l.insert(i, false, []*Object{obj})
}

// InsertAll adds objs at index i, keeping their order.
func (l *List) InsertAll(i int, objs ...*Object) error {
	return l.insert(i, false, objs)
}

// insert adds objs at i, or at the end when atEnd is set.
func (l *List) insert(i int, atEnd bool, objs []*Object) error {
	for _, o := range objs {
		if err := l.checkElement(o); err != nil {
			return err
		}
	}
	if !atEnd && i < 0 {
		return ErrIndexOutOfBounds.New("index %d", i)
	}

	if !l.IsPersisted() {
		n := len(l.items)
		if atEnd {
			i = n
		}
		if i > n {
			return ErrIndexOutOfBounds.New("index %d, count %d", i, n)
		}
		if len(objs) == 0 {
			return nil
		}
		l.edit(ChangeInsertion, indexRange(i, len(objs)), func() {
			l.items = slices.Insert(l.items, i, objs...)
		})
		return nil
	}

	return l.mutate("insert into list", func(w *writer, keys []int64) ([]int64, error) {
		at := i
		if atEnd {
			at = len(keys)
		}
		if at > len(keys) {
			return nil, ErrIndexOutOfBounds.New("index %d, count %d", at, len(keys))
		}
		added, err := l.attachAll(w, objs)
		if err != nil {
			return nil, err
		}
		return slices.Insert(keys, at, added...), nil
	})
}

// RemoveAt removes the element at index i.
func (l *List) RemoveAt(i int) error {
	if !l.IsPersisted() {
		if err := checkIndex(i, len(l.items)); err != nil {
			return err
		}
		l.edit(ChangeRemoval, []int{i}, func() {
			l.items = slices.Delete(l.items, i, i+1)
		})
		return nil
	}
	return l.mutate("remove from list", func(w *writer, keys []int64) ([]int64, error) {
		if err := checkIndex(i, len(keys)); err != nil {
			return nil, err
		}
		return slices.Delete(keys, i, i+1), nil
	})
}

// RemoveLast removes the last element.
func (l *List) RemoveLast() error {
	n, err := l.Count()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrIndexOutOfBounds.New("remove last from empty list")
	}
	return l.RemoveAt(n - 1)
}

// RemoveAll empties the list. Removed objects stay in the realm.
func (l *List) RemoveAll() error {
	if !l.IsPersisted() {
		if len(l.items) == 0 {
			return nil
		}
		l.edit(ChangeRemoval, indexRange(0, len(l.items)), func() {
			l.items = nil
		})
		return nil
	}
	return l.mutate("clear list", func(w *writer, keys []int64) ([]int64, error) {
		return []int64{}, nil
	})
}

// Replace puts obj at index i in place of the current element.
func (l *List) Replace(i int, obj *Object) error {
	if err := l.checkElement(obj); err != nil {
		return err
	}
	if !l.IsPersisted() {
		if err := checkIndex(i, len(l.items)); err != nil {
			return err
		}
		l.edit(ChangeReplacement, []int{i}, func() {
			l.items[i] = obj
		})
		return nil
	}
	return l.mutate("replace in list", func(w *writer, keys []int64) ([]int64, error) {
		if err := checkIndex(i, len(keys)); err != nil {
			return nil, err
		}
		added, err := l.attachAll(w, []*Object{obj})
		if err != nil {
			return nil, err
		}
		keys[i] = added[0]
		return keys, nil
	})
}

// Move removes the element at from and reinserts it at to. to is applied
// after the removal has shifted later elements down.
func (l *List) Move(from, to int) error {
	move := func(n int, do func()) error {
		if err := checkIndex(from, n); err != nil {
			return err
		}
		if err := checkIndex(to, n); err != nil {
			return err
		}
		do()
		return nil
	}

	if !l.IsPersisted() {
		return move(len(l.items), func() {
			lo, hi := min(from, to), max(from, to)
			l.edit(ChangeReplacement, indexRange(lo, hi-lo+1), func() {
				l.items = moveElem(l.items, from, to)
			})
		})
	}
	return l.mutate("move in list", func(w *writer, keys []int64) ([]int64, error) {
		err := move(len(keys), func() {
			keys = moveElem(keys, from, to)
		})
		return keys, err
	})
}

// Exchange swaps the elements at i and j.
func (l *List) Exchange(i, j int) error {
	swap := func(n int, do func()) error {
		if err := checkIndex(i, n); err != nil {
			return err
		}
		if err := checkIndex(j, n); err != nil {
			return err
		}
		do()
		return nil
	}

	if !l.IsPersisted() {
		return swap(len(l.items), func() {
			idx := []int{min(i, j), max(i, j)}
			if i == j {
				idx = idx[:1]
			}
			l.edit(ChangeReplacement, idx, func() {
				l.items[i], l.items[j] = l.items[j], l.items[i]
			})
		})
	}
	return l.mutate("exchange in list", func(w *writer, keys []int64) ([]int64, error) {
		err := swap(len(keys), func() {
			keys[i], keys[j] = keys[j], keys[i]
		})
		return keys, err
	})
}

// Where returns the elements matching pred, in list order.
func (l *List) Where(pred queryir.Predicate) (*Results, error) {
	res, err := l.results()
	if err != nil {
		return nil, err
	}
	return res.Where(pred)
}

// Sorted returns the elements ordered by descs.
func (l *List) Sorted(descs ...SortDescriptor) (*Results, error) {
	res, err := l.results()
	if err != nil {
		return nil, err
	}
	return res.Sorted(descs...)
}

// SortedBy orders the elements by one property.
func (l *List) SortedBy(property string, ascending bool) (*Results, error) {
	return l.Sorted(SortDescriptor{Property: property, Ascending: ascending})
}

func (l *List) results() (*Results, error) {
	if !l.IsPersisted() {
		return nil, ErrUnsupportedOnStandalone.New("list of %s has no backing table", l.class)
	}
	if err := l.owner.check(); err != nil {
		return nil, err
	}
	r := l.realm()
	cls := r.schema.ObjectSchema(l.class)
	if cls == nil {
		return nil, ErrUnknownClass.New("%q", l.class)
	}
	return &Results{realm: r, class: cls, list: l}, nil
}

func (l *List) checkElement(obj *Object) error {
	if obj == nil {
		return ErrElementTypeMismatch.New("nil cannot be stored in a list of %s", l.class)
	}
	if obj.ClassName() != l.class {
		return ErrElementTypeMismatch.New("%s object cannot be stored in a list of %s", obj.ClassName(), l.class)
	}
	return obj.check()
}

// edit applies a standalone mutation between the parent's notifications.
func (l *List) edit(kind ChangeKind, indexes []int, do func()) {
	if l.parent == nil {
		do()
		return
	}
	c := Change{Kind: kind, Key: l.prop, Indexes: indexes}
	l.parent.willChange(c)
	do()
	l.parent.didChange(c)
}

// mutate rewrites the persisted key list as one write-path operation.
func (l *List) mutate(op string, fn func(w *writer, keys []int64) ([]int64, error)) error {
	if err := l.owner.check(); err != nil {
		return err
	}
	r := l.realm()
	ctx := context.Background()
	return r.write(ctx, op, func(w *writer) error {
		keys, err := l.keys(ctx)
		if err != nil {
			return err
		}
		keys, err = fn(w, keys)
		if err != nil {
			return err
		}
		if err := r.store.Set(ctx, l.owner.ClassName(), l.owner.key, &l.col, keys); err != nil {
			return Error.Wrap(err)
		}
		return nil
	})
}

// attachAll resolves objs to rows of the list's realm, adding standalone
// objects.
func (l *List) attachAll(w *writer, objs []*Object) ([]int64, error) {
	keys := make([]int64, len(objs))
	for i, o := range objs {
		if o.state == StatePersisted && o.realm != w.r {
			return nil, ErrWrongRealm.New("%s object belongs to another realm", o.ClassName())
		}
		k, err := w.resolve(o, false)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, w.flushLinks()
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return ErrIndexOutOfBounds.New("index %d, count %d", i, n)
	}
	return nil
}

func moveElem[T any](s []T, from, to int) []T {
	v := s[from]
	s = slices.Delete(s, from, from+1)
	return slices.Insert(s, to, v)
}

func valuesForKey(objs []*Object, name string) ([]any, error) {
	out := make([]any, len(objs))
	for i, o := range objs {
		v, err := o.Get(name)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
