package realm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowbind/internal/queryir"
)

func seedPeople(t *testing.T, r *Realm) {
	t.Helper()
	inWrite(t, r, func(ctx context.Context) {
		createPerson(t, ctx, r, "Carol", 35)
		createPerson(t, ctx, r, "Alice", 30)
		createPerson(t, ctx, r, "Bob", 30)
		createPerson(t, ctx, r, "Dave", 12)
	})
}

func names(t *testing.T, res *Results) []any {
	t.Helper()
	v, err := res.ValueForKey("name")
	require.NoError(t, err)
	return v
}

func TestSortDescriptor_Reversed(t *testing.T) {
	assert.Equal(t, Descending("age"), Ascending("age").Reversed())
	assert.Equal(t, SortDescriptor{Property: "age", Ascending: false}, SortDescriptor{Property: "age", Ascending: true}.Reversed())
	assert.Equal(t, Ascending("age"), Ascending("age").Reversed().Reversed())
}

func TestResults_RowOrder(t *testing.T) {
	r := openTestRealm(t, Config{})
	seedPeople(t, r)

	res, err := r.Objects("Person")
	require.NoError(t, err)
	assert.Equal(t, "Person", res.ClassName())
	assert.Equal(t, []any{"Carol", "Alice", "Bob", "Dave"}, names(t, res))

	first, err := res.First()
	require.NoError(t, err)
	assert.Equal(t, "Carol", get(t, first, "name"))
	last, err := res.Last()
	require.NoError(t, err)
	assert.Equal(t, "Dave", get(t, last, "name"))

	_, err = res.Get(4)
	require.Error(t, err)
	assert.True(t, ErrIndexOutOfBounds.Has(err))
}

func TestResults_WhereAndSorted(t *testing.T) {
	r := openTestRealm(t, Config{})
	seedPeople(t, r)

	adults, err := r.Where("Person", queryir.Compare{Field: "age", Op: queryir.OpGreaterEqual, Value: 18})
	require.NoError(t, err)
	n, err := adults.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sorted, err := adults.Sorted(Ascending("age"), Descending("name"))
	require.NoError(t, err)
	assert.Equal(t, []any{"Bob", "Alice", "Carol"}, names(t, sorted))

	reversed, err := sorted.Sorted(Descending("age"))
	require.NoError(t, err)
	assert.Equal(t, []any{"Carol", "Alice", "Bob"}, names(t, reversed), "ties keep row order")

	narrowed, err := reversed.Where(queryir.Equals("age", 30))
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice", "Bob"}, names(t, narrowed))
	assert.Equal(t, []SortDescriptor{Descending("age")}, narrowed.SortDescriptors())

	byName, err := r.Objects("Person")
	require.NoError(t, err)
	byName, err = byName.SortedBy("name", true)
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice", "Bob", "Carol", "Dave"}, names(t, byName))
}

func TestResults_Invalid(t *testing.T) {
	r := openTestRealm(t, Config{})
	res, err := r.Objects("Person")
	require.NoError(t, err)

	_, err = res.Where(queryir.Equals("missing", 1))
	require.Error(t, err)
	assert.True(t, queryir.Error.Has(err))

	_, err = res.Where(queryir.Equals("age", "old"))
	require.Error(t, err)

	_, err = res.Sorted(Ascending("dogs"))
	require.Error(t, err)
	assert.True(t, queryir.Error.Has(err))

	_, err = res.ValueForKey("missing")
	require.Error(t, err)

	_, err = r.Where("Cat", nil)
	require.Error(t, err)
	assert.True(t, ErrUnknownClass.Has(err))
}

func TestResults_Live(t *testing.T) {
	r := openTestRealm(t, Config{})
	res, err := r.Where("Person", queryir.Equals("age", 30))
	require.NoError(t, err)

	n, err := res.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	seedPeople(t, r)
	n, err = res.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var seen []any
	for o, err := range res.All() {
		require.NoError(t, err)
		seen = append(seen, get(t, o, "name"))
	}
	assert.Equal(t, []any{"Alice", "Bob"}, seen)
}

func TestResults_LinkQueries(t *testing.T) {
	r := openTestRealm(t, Config{})
	inWrite(t, r, func(ctx context.Context) {
		alice := createPerson(t, ctx, r, "Alice", 30)
		_, err := r.Create(ctx, "Person", map[string]any{"name": "Bob", "age": 31, "spouse": alice})
		require.NoError(t, err)
	})

	single, err := r.Where("Person", queryir.IsNull("spouse"))
	require.NoError(t, err)
	assert.Equal(t, []any{"Alice"}, names(t, single))

	married, err := r.Where("Person", queryir.Not{Predicate: queryir.IsNull("spouse")})
	require.NoError(t, err)
	assert.Equal(t, []any{"Bob"}, names(t, married))
}
