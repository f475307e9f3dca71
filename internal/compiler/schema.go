package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rowbind/internal/schema"
)

// Compiled is a schema file after parsing and before validation.
type Compiled struct {
	// Version is the schema version the file declares. Zero when absent.
	Version int64

	// Classes in declaration order.
	Classes []*schema.ObjectSchema

	positions map[string]token.Pos
}

// CompileSchema parses a schema file value of the form
//
//	version: 2
//	class: {
//		Person: {...}
//		Dog: {...}
//	}
//
// Class bodies are parsed by CompileClass.
func CompileSchema(v cue.Value) (*Compiled, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Compiled{positions: make(map[string]token.Pos)}

	if ver := v.LookupPath(cue.ParsePath("version")); ver.Exists() {
		n, err := ver.Int64()
		if err != nil {
			return nil, &CompileError{Field: "version", Message: "version must be an integer", Pos: ver.Pos()}
		}
		c.Version = n
		c.positions["version"] = ver.Pos()
	}

	classes := v.LookupPath(cue.ParsePath("class"))
	if !classes.Exists() {
		return c, nil
	}
	iter, err := classes.Fields()
	if err != nil {
		return nil, &CompileError{Field: "class", Message: "class must be a struct", Pos: classes.Pos()}
	}
	for iter.Next() {
		cv := iter.Value()
		obj, err := CompileClass(cv)
		if err != nil {
			return nil, err
		}
		c.positions[obj.ClassName] = cv.Pos()
		props, _ := cv.Fields()
		for props != nil && props.Next() {
			c.positions[obj.ClassName+"."+labelName(props.Selector())] = props.Value().Pos()
		}
		c.Classes = append(c.Classes, obj)
	}
	return c, nil
}

// Pos returns the source position of a class ("Person"), a property
// ("Person.name") or "version". The zero Pos when unknown.
func (c *Compiled) Pos(path string) token.Pos {
	return c.positions[path]
}

// Schema validates the compiled classes and builds a Schema from them.
// The first validation error is returned; use Validate for the full list.
func (c *Compiled) Schema() (*schema.Schema, error) {
	if errs := Validate(c); len(errs) > 0 {
		return nil, errs[0]
	}
	s, err := schema.New(c.Classes...)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	return s, nil
}
