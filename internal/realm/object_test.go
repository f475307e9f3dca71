package realm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowbind/internal/schema"
)

func TestNewObject_Defaults(t *testing.T) {
	dog := NewObject(testSchema().ObjectSchema("Dog"))

	assert.Equal(t, StateStandalone, dog.State())
	assert.Nil(t, dog.Realm())
	_, ok := dog.Key()
	assert.False(t, ok)
	assert.Equal(t, int64(1), mustGet(t, dog, "age"))
	assert.Nil(t, mustGet(t, dog, "name"))
	assert.Equal(t, "Dog(standalone)", dog.String())
}

func mustGet(t *testing.T, o *Object, name string) any {
	t.Helper()
	v, err := o.Get(name)
	require.NoError(t, err)
	if n, ok := v.(int); ok {
		return int64(n)
	}
	return v
}

func TestNewObjectWithValues(t *testing.T) {
	type person struct {
		Name string `json:"name"`
		Age  int8   `json:"age"`
	}
	s := testSchema()

	o, err := NewObjectWithValues(s.ObjectSchema("Person"), person{Name: "Alice", Age: 30})
	require.NoError(t, err)
	assert.Equal(t, "Alice", mustGet(t, o, "name"))
	assert.Equal(t, int64(30), mustGet(t, o, "age"))

	_, err = NewObjectWithValues(s.ObjectSchema("Person"), map[string]any{"age": "old"})
	require.Error(t, err)
	assert.True(t, ErrTypeMismatch.Has(err))

	_, err = NewObjectWithValues(s.ObjectSchema("Person"), []any{"Alice"})
	require.Error(t, err)
	assert.True(t, ErrTypeMismatch.Has(err))

	_, err = NewObjectWithValues(s.ObjectSchema("Person"), map[string]any{"missing": 1})
	require.Error(t, err)
}

func TestObject_StandaloneSet(t *testing.T) {
	s := testSchema()
	alice := NewObject(s.ObjectSchema("Person"))
	rex := NewObject(s.ObjectSchema("Dog"))

	require.NoError(t, alice.Set("age", uint16(7)))
	assert.Equal(t, int64(7), mustGet(t, alice, "age"))

	err := alice.Set("age", 1.5)
	require.Error(t, err)
	assert.True(t, ErrTypeMismatch.Has(err))

	err = alice.Set("spouse", rex)
	require.Error(t, err)
	assert.True(t, ErrTypeMismatch.Has(err))

	err = alice.Set("spouse", map[string]any{"name": "Bob"})
	require.Error(t, err, "standalone objects take objects, not literals")

	require.NoError(t, alice.Set("spouse", (*Object)(nil)))
	assert.Nil(t, mustGet(t, alice, "spouse"))

	err = alice.Set("dogs", []any{rex, nil})
	require.Error(t, err)
	assert.True(t, ErrTypeMismatch.Has(err))

	require.NoError(t, alice.Set("dogs", []any{rex}))
	dogs, err := alice.List("dogs")
	require.NoError(t, err)
	n, err := dogs.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = alice.List("age")
	require.Error(t, err)
	assert.True(t, ErrTypeMismatch.Has(err))
}

func TestObject_AnyAndDate(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	event := schema.MustObjectSchema("Event",
		schema.NewProperty("at", schema.TypeDate),
		schema.NewProperty("payload", schema.TypeAny),
		schema.NewProperty("blob", schema.TypeData),
	)
	o := NewObject(event)

	require.NoError(t, o.Set("at", when))
	require.NoError(t, o.Set("payload", "text"))
	require.NoError(t, o.Set("payload", 12))
	require.NoError(t, o.Set("payload", nil))
	require.NoError(t, o.Set("blob", []byte("x")))

	assert.Equal(t, when, mustGet(t, o, "at"))
	assert.Nil(t, mustGet(t, o, "payload"))

	err := o.Set("payload", struct{}{})
	require.Error(t, err)
	assert.True(t, ErrTypeMismatch.Has(err))
}

func TestObject_Observers(t *testing.T) {
	o := NewObject(testSchema().ObjectSchema("Dog"))
	rec := &recorder{}
	remove := o.AddObserver(rec)
	assert.True(t, o.HasObservers())

	require.NoError(t, o.Set("name", "Rex"))
	remove()
	require.NoError(t, o.Set("name", "Fido"))

	assert.False(t, o.HasObservers())
	assert.Equal(t, []Change{{Kind: ChangeSetting, Key: "name"}}, rec.did)
}

func TestObject_UnknownProperty(t *testing.T) {
	o := NewObject(testSchema().ObjectSchema("Dog"))
	_, err := o.Get("color")
	require.Error(t, err)
	assert.True(t, Error.Has(err))
	assert.Error(t, o.Set("color", "red"))
}

func TestObject_IsSameObject(t *testing.T) {
	s := testSchema()
	a := NewObject(s.ObjectSchema("Dog"))
	b := NewObject(s.ObjectSchema("Dog"))

	assert.True(t, a.IsSameObject(a))
	assert.False(t, a.IsSameObject(b))
	assert.False(t, a.IsSameObject(nil))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "standalone", StateStandalone.String())
	assert.Equal(t, "persisted", StatePersisted.String())
	assert.Equal(t, "invalidated", StateInvalidated.String())
	assert.Equal(t, "replacement", ChangeReplacement.String())
}
