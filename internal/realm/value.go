package realm

import (
	"math"
	"reflect"
	"time"

	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

// normalizeScalar converts v into the form stored for a non-relationship
// property: int64, float64, bool, string, []byte, time.Time, or nil.
// ok is false when v does not fit the property type.
func normalizeScalar(t schema.PropertyType, v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	switch t {
	case schema.TypeInt:
		if n, ok := asInt64(v); ok {
			return n, true
		}
	case schema.TypeFloat:
		if f, ok := asFloat64(v); ok {
			return f, true
		}
		if n, ok := asInt64(v); ok {
			return float64(n), true
		}
	case schema.TypeBool:
		b, ok := v.(bool)
		return b, ok
	case schema.TypeString:
		s, ok := v.(string)
		return s, ok
	case schema.TypeData:
		b, ok := v.([]byte)
		return b, ok
	case schema.TypeDate:
		switch d := v.(type) {
		case time.Time:
			return d, true
		case *time.Time:
			if d == nil {
				return nil, true
			}
			return *d, true
		}
	case schema.TypeAny:
		switch val := v.(type) {
		case bool, string, []byte, time.Time:
			return val, true
		}
		if n, ok := asInt64(v); ok {
			return n, true
		}
		if f, ok := asFloat64(v); ok {
			return f, true
		}
	}
	return nil, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	return 0, false
}

// columnFor maps a property onto its storage column.
func columnFor(p *schema.Property) store.Column {
	col := store.Column{
		Name:     p.Name,
		Target:   p.ObjectClass,
		Nullable: p.Nullable(),
		Indexed:  p.IsIndexed(),
	}
	switch p.Type {
	case schema.TypeInt:
		col.Kind = store.KindInt
	case schema.TypeBool:
		col.Kind = store.KindBool
	case schema.TypeFloat:
		col.Kind = store.KindFloat
	case schema.TypeString:
		col.Kind = store.KindString
	case schema.TypeData:
		col.Kind = store.KindBinary
	case schema.TypeDate:
		col.Kind = store.KindDate
	case schema.TypeAny:
		col.Kind = store.KindAny
	case schema.TypeObject:
		col.Kind = store.KindLink
	case schema.TypeArray:
		col.Kind = store.KindLinkList
		col.Nullable = false
	}
	return col
}

// layoutFor derives the storage layout of a schema.
func layoutFor(s *schema.Schema) *store.Spec {
	spec := &store.Spec{}
	for _, obj := range s.ObjectSchemas() {
		t := store.Table{Name: obj.ClassName}
		for _, p := range obj.Properties {
			t.Columns = append(t.Columns, columnFor(p))
		}
		spec.Tables = append(spec.Tables, t)
	}
	return spec
}

// sequence returns the elements of a slice or array value. *List values are
// handled by the caller.
func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []*Object:
		out := make([]any, len(s))
		for i, o := range s {
			out[i] = o
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

var objectPtrType = reflect.TypeFor[*Object]()

// keyedValues returns the name→value view of a keyed literal: a map with
// string keys or a struct, read through its JSON field names. Nil pointer
// fields are left out, as if the struct did not have them.
func keyedValues(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, true
	case reflect.Struct:
		if _, isTime := rv.Interface().(time.Time); isTime {
			return nil, false
		}
		out := map[string]any{}
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if f.Tag.Get("json") == "-" {
				continue
			}
			name := schema.JSONFieldName(&f)
			fv := rv.Field(i)
			if fv.Kind() == reflect.Pointer && fv.Type() != objectPtrType {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			out[name] = fv.Interface()
		}
		return out, true
	}
	return nil, false
}
