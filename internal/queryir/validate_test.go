package queryir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowbind/internal/schema"
)

func personSchema() *schema.ObjectSchema {
	name := schema.NewProperty("name", schema.TypeString)
	name.PrimaryKey = true
	nick := schema.NewProperty("nick", schema.TypeString)
	nick.Optional = true
	return schema.MustObjectSchema("Person",
		name,
		nick,
		schema.NewProperty("age", schema.TypeInt),
		schema.NewProperty("height", schema.TypeFloat),
		schema.NewProperty("active", schema.TypeBool),
		schema.NewProperty("born", schema.TypeDate),
		schema.NewProperty("avatar", schema.TypeData),
		schema.NewProperty("extra", schema.TypeAny),
		schema.Link("spouse", schema.TypeObject, "Person"),
		schema.Link("friends", schema.TypeArray, "Person"),
	)
}

func TestValidate_Valid(t *testing.T) {
	preds := []Predicate{
		nil,
		Equals("name", "Alice"),
		Compare{Field: "age", Op: OpGreaterEqual, Value: 18},
		Compare{Field: "height", Op: OpLess, Value: 2},
		Compare{Field: "born", Op: OpLess, Value: time.Now()},
		Equals("active", true),
		Equals("avatar", []byte{1}),
		IsNull("nick"),
		IsNull("spouse"),
		IsNull("extra"),
		StringMatch{Field: "name", Kind: EndsWith, Value: "e"},
		In{Field: "age", Values: []any{1, int64(2)}},
		And{Predicates: []Predicate{Equals("age", 1), Or{Predicates: []Predicate{Not{Predicate: Equals("name", "x")}}}}},
	}
	o := personSchema()
	for _, p := range preds {
		assert.NoError(t, Validate(o, p), String(p))
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name string
		pred Predicate
		want string
	}{
		{"unknown field", Equals("weight", 1), `has no property "weight"`},
		{"wrong literal", Equals("age", "old"), "not a valid int literal"},
		{"ordered bool", Compare{Field: "active", Op: OpLess, Value: true}, "operator < not supported"},
		{"ordered nil", Compare{Field: "nick", Op: OpGreater, Value: nil}, "cannot compare with nil"},
		{"required nil", IsNull("age"), "never nil"},
		{"object literal", Equals("spouse", 1), "only be compared with nil"},
		{"array", Equals("friends", 1), "not queryable"},
		{"match on int", StringMatch{Field: "age", Kind: Contains, Value: "1"}, "requires a string property"},
		{"in with nil", In{Field: "age", Values: []any{nil}}, "IN cannot contain nil"},
		{"bad op", Compare{Field: "age", Op: "~", Value: 1}, `unknown operator "~"`},
		{"empty not", Not{}, "NOT requires a predicate"},
	}
	o := personSchema()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(o, tt.pred)
			require.Error(t, err)
			assert.True(t, Error.Has(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	err := Validate(personSchema(), And{Predicates: []Predicate{
		Equals("weight", 1),
		Equals("age", "old"),
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight")
	assert.Contains(t, err.Error(), "old")
}

func TestLiteral(t *testing.T) {
	v, err := Literal(schema.TypeInt, int32(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = Literal(schema.TypeFloat, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = Literal(schema.TypeInt, 1.5)
	assert.Error(t, err)
}
