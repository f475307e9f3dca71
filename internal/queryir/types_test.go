package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicate_Sealed(t *testing.T) {
	preds := []Predicate{
		Equals("name", "Alice"),
		StringMatch{Field: "name", Kind: BeginsWith, Value: "A"},
		In{Field: "age", Values: []any{1, 2}},
		And{},
		Or{},
		Not{Predicate: IsNull("spouse")},
	}
	for _, p := range preds {
		assert.NotNil(t, p)
	}
}

func TestAllOf(t *testing.T) {
	assert.Nil(t, AllOf())
	assert.Nil(t, AllOf(nil, nil))

	single := Equals("a", 1)
	assert.Equal(t, single, AllOf(nil, single))

	got := AllOf(single, nil, IsNull("b"))
	assert.Equal(t, And{Predicates: []Predicate{single, IsNull("b")}}, got)
}

func TestSortDescriptor_Reversed(t *testing.T) {
	asc := SortDescriptor{Property: "age", Ascending: true}
	assert.Equal(t, SortDescriptor{Property: "age", Ascending: false}, asc.Reversed())
	assert.Equal(t, asc, asc.Reversed().Reversed())
	assert.Equal(t, "age ASC", asc.String())
	assert.Equal(t, "age DESC", asc.Reversed().String())
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		pred Predicate
		want string
	}{
		{"nil", nil, "TRUEPREDICATE"},
		{"compare", Compare{Field: "age", Op: OpGreater, Value: 30}, "age > 30"},
		{"null", IsNull("spouse"), "spouse == nil"},
		{"match", StringMatch{Field: "name", Kind: Contains, Value: "li", CaseInsensitive: true}, `name CONTAINS[c] "li"`},
		{"in", In{Field: "name", Values: []any{"a", "b"}}, `name IN {"a", "b"}`},
		{"and", And{Predicates: []Predicate{Equals("a", 1), Equals("b", 2)}}, "(a == 1) AND (b == 2)"},
		{"empty or", Or{}, "FALSEPREDICATE"},
		{"not", Not{Predicate: Equals("a", true)}, "NOT (a == true)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(tt.pred))
		})
	}
}
