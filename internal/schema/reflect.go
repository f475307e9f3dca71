package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// FromStruct derives an ObjectSchema from a Go struct type.
//
// Property order and the required set come from JSON Schema reflection
// (github.com/invopop/jsonschema), so they match what encoding/json sees.
// Fields outside the required set (omitempty) and pointer fields are optional.
// Relationship metadata comes from the `rowbind` struct tag:
//
//	Name string `json:"name" rowbind:"primarykey"`
//	Dogs []Dog  `json:"dogs" rowbind:"class=Dog"`
//
// Struct and slice-of-struct fields link to the class named by the tag, or
// by the Go type name when the tag has no class.
func FromStruct[T any](className string) (*ObjectSchema, error) {
	return FromType(reflect.TypeFor[T](), className)
}

// FromType is the non-generic form of FromStruct.
func FromType(t reflect.Type, className string) (*ObjectSchema, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type must be a struct or pointer to struct, got %s", t.Kind())
	}
	if className == "" {
		className = t.Name()
	}

	r := jsonschema.Reflector{Anonymous: true, ExpandedStruct: true}
	js := r.ReflectFromType(t)

	required := make(map[string]bool, len(js.Required))
	for _, name := range js.Required {
		required[name] = true
	}

	fields := make(map[string]reflect.StructField, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if f.IsExported() {
			fields[JSONFieldName(&f)] = f
		}
	}

	var props []*Property
	for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
		f, ok := fields[pair.Key]
		if !ok {
			continue
		}
		p, err := propertyFromField(pair.Key, &f)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", className, err)
		}
		if !required[pair.Key] && p.Type != TypeArray {
			p.Optional = true
		}
		props = append(props, p)
	}
	return NewObjectSchema(className, props...)
}

// JSONFieldName returns the JSON field name for a struct field.
func JSONFieldName(f *reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func propertyFromField(name string, f *reflect.StructField) (*Property, error) {
	opts := parseTag(f.Tag.Get("rowbind"))
	ft := f.Type
	optional := false
	if ft.Kind() == reflect.Pointer {
		ft = ft.Elem()
		optional = true
	}

	p := NewProperty(name, 0)
	p.Optional = optional
	p.PrimaryKey = opts.primaryKey
	p.Indexed = opts.indexed

	switch {
	case ft == reflect.TypeFor[time.Time]():
		p.Type = TypeDate
	case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Uint8:
		p.Type = TypeData
	case ft.Kind() == reflect.Struct:
		p.Type = TypeObject
		p.ObjectClass = opts.classOr(ft.Name())
	case ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array:
		elem := ft.Elem()
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field %s: only slices of structs are supported, got %s", f.Name, ft)
		}
		p.Type = TypeArray
		p.ObjectClass = opts.classOr(elem.Name())
		p.Optional = false
	default:
		t, err := primitiveType(ft)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		p.Type = t
	}
	return p, nil
}

func primitiveType(t reflect.Type) (PropertyType, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInt, nil
	case reflect.Bool:
		return TypeBool, nil
	case reflect.Float32, reflect.Float64:
		return TypeFloat, nil
	case reflect.String:
		return TypeString, nil
	case reflect.Interface:
		return TypeAny, nil
	default:
		return 0, fmt.Errorf("unsupported field type %s", t)
	}
}

type tagOptions struct {
	primaryKey bool
	indexed    bool
	class      string
}

func (o tagOptions) classOr(fallback string) string {
	if o.class != "" {
		return o.class
	}
	return fallback
}

func parseTag(tag string) tagOptions {
	var opts tagOptions
	for part := range strings.SplitSeq(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "primarykey":
			opts.primaryKey = true
		case part == "indexed":
			opts.indexed = true
		case strings.HasPrefix(part, "class="):
			opts.class = strings.TrimPrefix(part, "class=")
		}
	}
	return opts
}
