package schema

import (
	"fmt"
	"strings"
)

// PropertyType is the declared type of a property.
type PropertyType int

const (
	// TypeInt stores 64-bit signed integers.
	TypeInt PropertyType = iota
	// TypeBool stores booleans.
	TypeBool
	// TypeFloat stores 64-bit floating point numbers.
	TypeFloat
	// TypeString stores UTF-8 text.
	TypeString
	// TypeData stores opaque binary values.
	TypeData
	// TypeDate stores timestamps.
	TypeDate
	// TypeAny stores a dynamically typed primitive value.
	TypeAny
	// TypeObject is a to-one relationship to another class.
	TypeObject
	// TypeArray is an ordered to-many relationship to another class.
	TypeArray
)

var typeNames = [...]string{
	TypeInt:    "int",
	TypeBool:   "bool",
	TypeFloat:  "float",
	TypeString: "string",
	TypeData:   "data",
	TypeDate:   "date",
	TypeAny:    "any",
	TypeObject: "object",
	TypeArray:  "array",
}

// String returns the lowercase name used in schema files.
func (t PropertyType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("PropertyType(%d)", int(t))
	}
	return typeNames[t]
}

// IsRelationship reports whether the type links to another class.
func (t PropertyType) IsRelationship() bool {
	return t == TypeObject || t == TypeArray
}

// ParsePropertyType parses a type name as written in schema files.
// "double" and "binary" are accepted as aliases.
func ParsePropertyType(s string) (PropertyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "integer":
		return TypeInt, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "float", "double":
		return TypeFloat, nil
	case "string":
		return TypeString, nil
	case "data", "binary":
		return TypeData, nil
	case "date":
		return TypeDate, nil
	case "any", "mixed":
		return TypeAny, nil
	case "object":
		return TypeObject, nil
	case "array", "list":
		return TypeArray, nil
	default:
		return 0, fmt.Errorf("unknown property type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t PropertyType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PropertyType) UnmarshalText(b []byte) error {
	parsed, err := ParsePropertyType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
