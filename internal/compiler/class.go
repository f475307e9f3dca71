package compiler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rowbind/internal/schema"
)

// CompileClass parses a CUE value into an ObjectSchema. Uses the CUE Go API
// directly (not a CLI subprocess).
//
// The value is the class struct itself; its label is the class name and each
// field is a property, in declaration order:
//
//	class: Person: {
//		name:   {type: "string", primaryKey: true}
//		age:    "int"
//		email:  "string?"
//		spouse: {type: "object", class: "Person"}
//		dogs:   {type: "array", class: "Dog"}
//	}
//
// A string field is shorthand for a scalar type; a trailing "?" makes it
// optional. The result is not validated; see Validate and schema.New.
func CompileClass(v cue.Value) (*schema.ObjectSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	obj := &schema.ObjectSchema{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		obj.ClassName = labelName(labels[len(labels)-1])
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{
			Field:   "class." + obj.ClassName,
			Message: "class must be a struct of properties",
			Pos:     v.Pos(),
		}
	}
	for iter.Next() {
		p, err := compileProperty(labelName(iter.Selector()), iter.Value())
		if err != nil {
			return nil, err
		}
		obj.Properties = append(obj.Properties, p)
	}
	return obj, nil
}

func labelName(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// compileProperty parses one property in either the shorthand or the struct
// form.
func compileProperty(name string, v cue.Value) (*schema.Property, error) {
	if s, err := v.String(); err == nil {
		optional := strings.HasSuffix(s, "?")
		t, err := schema.ParsePropertyType(strings.TrimSuffix(s, "?"))
		if err != nil {
			return nil, &CompileError{Field: "type", Message: fmt.Sprintf("property %q: %v", name, err), Pos: v.Pos()}
		}
		if t.IsRelationship() {
			return nil, &CompileError{
				Field:   "type",
				Message: fmt.Sprintf("property %q: %s properties need the struct form with a class", name, t),
				Pos:     v.Pos(),
			}
		}
		p := schema.NewProperty(name, t)
		p.Optional = optional
		return p, nil
	}

	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "property",
			Message: fmt.Sprintf("property %q must be a type name or a struct", name),
			Pos:     v.Pos(),
		}
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{Field: "type", Message: fmt.Sprintf("property %q: type is required", name), Pos: v.Pos()}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	t, err := schema.ParsePropertyType(typeName)
	if err != nil {
		return nil, &CompileError{Field: "type", Message: fmt.Sprintf("property %q: %v", name, err), Pos: typeVal.Pos()}
	}

	p := schema.NewProperty(name, t)
	if p.ObjectClass, err = optionalString(v, "class"); err != nil {
		return nil, err
	}
	if p.Optional, err = optionalBool(v, "optional"); err != nil {
		return nil, err
	}
	if p.PrimaryKey, err = optionalBool(v, "primaryKey"); err != nil {
		return nil, err
	}
	if p.Indexed, err = optionalBool(v, "indexed"); err != nil {
		return nil, err
	}
	if t == schema.TypeObject {
		p.Optional = true
	}

	if def := v.LookupPath(cue.ParsePath("default")); def.Exists() {
		p.Default, err = compileDefault(name, t, def)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// compileDefault converts a default value into the Go type stored for t.
func compileDefault(name string, t schema.PropertyType, v cue.Value) (any, error) {
	var (
		out any
		err error
	)
	switch t {
	case schema.TypeInt:
		out, err = v.Int64()
	case schema.TypeFloat:
		out, err = v.Float64()
	case schema.TypeBool:
		out, err = v.Bool()
	case schema.TypeString:
		out, err = v.String()
	case schema.TypeData:
		var s string
		if s, err = v.String(); err == nil {
			out, err = base64.StdEncoding.DecodeString(s)
		}
	case schema.TypeDate:
		var s string
		if s, err = v.String(); err == nil {
			out, err = time.Parse(time.RFC3339Nano, s)
		}
	case schema.TypeAny:
		switch v.Kind() {
		case cue.IntKind:
			out, err = v.Int64()
		case cue.FloatKind:
			out, err = v.Float64()
		case cue.BoolKind:
			out, err = v.Bool()
		case cue.StringKind:
			out, err = v.String()
		default:
			err = v.Decode(&out)
		}
	default:
		// Relationship defaults are rejected by Validate.
		err = v.Decode(&out)
	}
	if err != nil {
		return nil, &CompileError{
			Field:   "default",
			Message: fmt.Sprintf("property %q: invalid %s default: %v", name, t, err),
			Pos:     v.Pos(),
		}
	}
	return out, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	list := errors.Errors(err)
	if len(list) == 0 {
		return err
	}

	first := list[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
