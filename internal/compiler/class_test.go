package compiler

import (
	"testing"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rowbind/internal/schema"
)

func compileClass(t *testing.T, src, path string) (*schema.ObjectSchema, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("schema.cue"))
	require.NoError(t, v.Err())
	return CompileClass(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileClassBasic(t *testing.T) {
	obj, err := compileClass(t, `
		class: Person: {
			name:   {type: "string", primaryKey: true}
			age:    "int"
			email:  "string?"
			spouse: {type: "object", class: "Person"}
			dogs:   {type: "array", class: "Dog"}
		}
	`, "class.Person")
	require.NoError(t, err)

	assert.Equal(t, "Person", obj.ClassName)
	require.Len(t, obj.Properties, 5)

	names := make([]string, len(obj.Properties))
	for i, p := range obj.Properties {
		names[i] = p.Name
		assert.Equal(t, schema.NoColumn, p.Column, p.Name)
	}
	assert.Equal(t, []string{"name", "age", "email", "spouse", "dogs"}, names)

	assert.Equal(t, "name", obj.PrimaryKey().Name)
	assert.Equal(t, schema.TypeInt, obj.Property("age").Type)
	assert.False(t, obj.Property("age").Optional)
	assert.True(t, obj.Property("email").Optional)

	spouse := obj.Property("spouse")
	assert.Equal(t, schema.TypeObject, spouse.Type)
	assert.Equal(t, "Person", spouse.ObjectClass)
	assert.True(t, spouse.Optional, "object properties are always optional")

	dogs := obj.Property("dogs")
	assert.Equal(t, schema.TypeArray, dogs.Type)
	assert.Equal(t, "Dog", dogs.ObjectClass)
	assert.False(t, dogs.Optional)
}

func TestCompileClassTypeAliases(t *testing.T) {
	obj, err := compileClass(t, `
		class: Blob: {
			a: "integer"
			b: "double"
			c: "binary"
			d: "mixed"
			e: {type: "list", class: "Blob"}
		}
	`, "class.Blob")
	require.NoError(t, err)

	assert.Equal(t, schema.TypeInt, obj.Property("a").Type)
	assert.Equal(t, schema.TypeFloat, obj.Property("b").Type)
	assert.Equal(t, schema.TypeData, obj.Property("c").Type)
	assert.Equal(t, schema.TypeAny, obj.Property("d").Type)
	assert.Equal(t, schema.TypeArray, obj.Property("e").Type)
}

func TestCompileClassDefaults(t *testing.T) {
	obj, err := compileClass(t, `
		class: Settings: {
			retries: {type: "int", default: 3}
			ratio:   {type: "float", default: 1}
			enabled: {type: "bool", default: true}
			label:   {type: "string", default: "none"}
			blob:    {type: "data", default: "aGk="}
			since:   {type: "date", default: "2024-05-01T12:00:00Z"}
			extra:   {type: "any", default: 7}
		}
	`, "class.Settings")
	require.NoError(t, err)

	assert.Equal(t, int64(3), obj.Property("retries").Default)
	assert.Equal(t, 1.0, obj.Property("ratio").Default)
	assert.Equal(t, true, obj.Property("enabled").Default)
	assert.Equal(t, "none", obj.Property("label").Default)
	assert.Equal(t, []byte("hi"), obj.Property("blob").Default)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), obj.Property("since").Default)
	assert.Equal(t, int64(7), obj.Property("extra").Default)
}

func TestCompileClassIndexed(t *testing.T) {
	obj, err := compileClass(t, `
		class: Dog: {
			name: {type: "string", indexed: true}
		}
	`, "class.Dog")
	require.NoError(t, err)
	assert.True(t, obj.Property("name").Indexed)
	assert.False(t, obj.Property("name").PrimaryKey)
}

func TestCompileClassErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		msg   string
	}{
		{
			name:  "unknown shorthand type",
			src:   `class: A: { x: "decimal" }`,
			field: "type",
			msg:   `unknown property type "decimal"`,
		},
		{
			name:  "relationship shorthand",
			src:   `class: A: { x: "object" }`,
			field: "type",
			msg:   "need the struct form",
		},
		{
			name:  "missing type",
			src:   `class: A: { x: {optional: true} }`,
			field: "type",
			msg:   "type is required",
		},
		{
			name:  "unknown struct type",
			src:   `class: A: { x: {type: "money"} }`,
			field: "type",
			msg:   `unknown property type "money"`,
		},
		{
			name:  "number instead of type",
			src:   `class: A: { x: 5 }`,
			field: "property",
			msg:   "must be a type name or a struct",
		},
		{
			name:  "wrong default type",
			src:   `class: A: { x: {type: "int", default: "three"} }`,
			field: "default",
			msg:   "invalid int default",
		},
		{
			name:  "bad date default",
			src:   `class: A: { x: {type: "date", default: "yesterday"} }`,
			field: "default",
			msg:   "invalid date default",
		},
		{
			name:  "class not a struct",
			src:   `class: A: "Person"`,
			field: "class.A",
			msg:   "must be a struct",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileClass(t, tt.src, "class.A")
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.msg)
		})
	}
}

func TestCompileClassValueError(t *testing.T) {
	v := cuecontext.New().CompileString(`
		class: A: {
			x: "int"
			x: "string"
		}
	`, cue.Filename("schema.cue"))

	_, err := CompileClass(v.LookupPath(cue.ParsePath("class.A")))
	require.Error(t, err)
}

func TestCompileErrorFormat(t *testing.T) {
	plain := &CompileError{Field: "type", Message: "bad"}
	assert.Equal(t, "type: bad", plain.Error())

	v := cuecontext.New().CompileString(`
class: A: {
	x: "decimal"
}
`, cue.Filename("people.cue"))
	_, err := CompileClass(v.LookupPath(cue.ParsePath("class.A")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "people.cue:3:")
}
