package realm

import (
	"context"
	"iter"
	"slices"

	"github.com/roach88/rowbind/internal/queryir"
	"github.com/roach88/rowbind/internal/querysql"
	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

// Results is a lazy, filtered and ordered view over the objects of one
// class. Nothing is read until an accessor is called, and every call sees
// the current contents of the store.
type Results struct {
	realm *Realm
	class *schema.ObjectSchema
	pred  queryir.Predicate
	sorts []SortDescriptor

	// list restricts the view to the members of a persisted list.
	list *List
}

// ClassName returns the class of the objects in the view.
func (res *Results) ClassName() string {
	return res.class.ClassName
}

// Predicate returns the filter, or nil for none.
func (res *Results) Predicate() queryir.Predicate {
	return res.pred
}

// SortDescriptors returns the ordering.
func (res *Results) SortDescriptors() []SortDescriptor {
	return slices.Clone(res.sorts)
}

// Where narrows the view to objects that also match pred.
func (res *Results) Where(pred queryir.Predicate) (*Results, error) {
	next := *res
	next.pred = queryir.AllOf(res.pred, pred)
	if _, err := next.compile(); err != nil {
		return nil, err
	}
	return &next, nil
}

// Sorted returns the view ordered by descs, replacing any earlier order.
// Ties keep row order.
func (res *Results) Sorted(descs ...SortDescriptor) (*Results, error) {
	next := *res
	next.sorts = slices.Clone(descs)
	if _, err := next.compile(); err != nil {
		return nil, err
	}
	return &next, nil
}

// SortedBy orders the view by one property.
func (res *Results) SortedBy(property string, ascending bool) (*Results, error) {
	return res.Sorted(SortDescriptor{Property: property, Ascending: ascending})
}

func (res *Results) compile() (store.Query, error) {
	return querysql.NewSQLCompiler(res.class).Compile(res.pred, res.sorts)
}

// keys evaluates the view.
func (res *Results) keys(ctx context.Context) ([]int64, error) {
	r := res.realm
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	ok, err := r.store.HasTable(ctx, res.class.ClassName)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !ok {
		return []int64{}, nil
	}
	q, err := res.compile()
	if err != nil {
		return nil, err
	}
	if res.list == nil {
		keys, err := r.store.Keys(ctx, res.class.ClassName, q)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		return keys, nil
	}

	members, err := res.list.keys(ctx)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []int64{}, nil
	}
	q, err = q.RestrictTo(members)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	matched, err := r.store.Keys(ctx, res.class.ClassName, q)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	// A list may hold the same object more than once; every occurrence is a
	// member of the view.
	times := make(map[int64]int, len(members))
	for _, k := range members {
		times[k]++
	}
	out := make([]int64, 0, len(members))
	if len(res.sorts) > 0 {
		for _, k := range matched {
			for range times[k] {
				out = append(out, k)
			}
		}
		return out, nil
	}

	// Unsorted list views keep list order.
	hit := make(map[int64]bool, len(matched))
	for _, k := range matched {
		hit[k] = true
	}
	for _, k := range members {
		if hit[k] {
			out = append(out, k)
		}
	}
	return out, nil
}

// Count returns the number of objects in the view.
func (res *Results) Count() (int, error) {
	if res.list != nil {
		keys, err := res.keys(context.Background())
		return len(keys), err
	}

	ctx := context.Background()
	r := res.realm
	if err := r.checkOpen(); err != nil {
		return 0, err
	}
	ok, err := r.store.HasTable(ctx, res.class.ClassName)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if !ok {
		return 0, nil
	}
	q, err := res.compile()
	if err != nil {
		return 0, err
	}
	n, err := r.store.CountWhere(ctx, res.class.ClassName, q)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	return int(n), nil
}

// Get returns the object at index i.
func (res *Results) Get(i int) (*Object, error) {
	keys, err := res.keys(context.Background())
	if err != nil {
		return nil, err
	}
	if err := checkIndex(i, len(keys)); err != nil {
		return nil, err
	}
	return res.realm.objectFor(res.class, keys[i]), nil
}

// First returns the first object, or nil when the view is empty.
func (res *Results) First() (*Object, error) {
	keys, err := res.keys(context.Background())
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	return res.realm.objectFor(res.class, keys[0]), nil
}

// Last returns the last object, or nil when the view is empty.
func (res *Results) Last() (*Object, error) {
	keys, err := res.keys(context.Background())
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	return res.realm.objectFor(res.class, keys[len(keys)-1]), nil
}

// Objects returns every object in the view, in order.
func (res *Results) Objects() ([]*Object, error) {
	keys, err := res.keys(context.Background())
	if err != nil {
		return nil, err
	}
	out := make([]*Object, len(keys))
	for i, k := range keys {
		out[i] = res.realm.objectFor(res.class, k)
	}
	return out, nil
}

// All iterates over the view. A failed evaluation is yielded once with a
// nil object.
func (res *Results) All() iter.Seq2[*Object, error] {
	return func(yield func(*Object, error) bool) {
		objs, err := res.Objects()
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

// ValueForKey returns the named property of every object, in order.
func (res *Results) ValueForKey(name string) ([]any, error) {
	if res.class.Property(name) == nil {
		return nil, Error.New("class %q has no property %q", res.class.ClassName, name)
	}
	objs, err := res.Objects()
	if err != nil {
		return nil, err
	}
	return valuesForKey(objs, name)
}
