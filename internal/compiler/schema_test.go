package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peopleSchema = `
version: 3
class: {
	Person: {
		name:   {type: "string", primaryKey: true}
		age:    {type: "int", default: 0}
		email:  "string?"
		spouse: {type: "object", class: "Person"}
		dogs:   {type: "array", class: "Dog"}
	}
	Dog: {
		name: "string"
		age:  {type: "int", indexed: true, default: 1}
		born: "date?"
	}
}
`

func compileSchema(t *testing.T, src string) *Compiled {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("schema.cue"))
	require.NoError(t, v.Err())
	c, err := CompileSchema(v)
	require.NoError(t, err)
	return c
}

func TestCompileSchema(t *testing.T) {
	c := compileSchema(t, peopleSchema)

	assert.Equal(t, int64(3), c.Version)
	require.Len(t, c.Classes, 2)
	assert.Equal(t, "Person", c.Classes[0].ClassName)
	assert.Equal(t, "Dog", c.Classes[1].ClassName)

	assert.Equal(t, 4, c.Pos("Person").Line())
	assert.Equal(t, 13, c.Pos("Dog.age").Line())
	assert.Equal(t, 2, c.Pos("version").Line())
	assert.False(t, c.Pos("Cat").IsValid())

	s, err := c.Schema()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.NotNil(t, s.ObjectSchema("Dog"))
}

func TestCompileSchemaDescribeGolden(t *testing.T) {
	s, err := compileSchema(t, peopleSchema).Schema()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "people", []byte(s.Describe()))
}

func TestCompileSchemaEmpty(t *testing.T) {
	c := compileSchema(t, `version: 1`)
	assert.Equal(t, int64(1), c.Version)
	assert.Empty(t, c.Classes)

	s, err := c.Schema()
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestCompileSchemaNoVersion(t *testing.T) {
	c := compileSchema(t, `class: A: { x: "int" }`)
	assert.Equal(t, int64(0), c.Version)
	require.Len(t, c.Classes, 1)
}

func TestCompileSchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"version not an integer", `version: "two"`, "version"},
		{"class not a struct", `class: "Person"`, "class"},
		{"bad property", `class: A: { x: "decimal" }`, "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileSchema(v)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompiledSchemaReturnsFirstValidationError(t *testing.T) {
	c := compileSchema(t, `
class: A: {
	x: {type: "object", class: "Missing"}
}
`)
	_, err := c.Schema()
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrUnknownTargetClass, ve.Code)
	assert.Equal(t, "A.x", ve.Field)
	assert.Equal(t, 3, ve.Line)
}
