package compiler

import (
	"fmt"

	"github.com/roach88/rowbind/internal/schema"
)

// Validation error codes (E100-E199)
const (
	ErrNegativeVersion       = "E100" // version must be >= 0
	ErrClassNoProperties     = "E101" // class declares no properties
	ErrMultiplePrimaryKeys   = "E102" // more than one primary key
	ErrPrimaryKeyType        = "E103" // primary key must be int or string
	ErrMissingTargetClass    = "E104" // object/array without class
	ErrUnknownTargetClass    = "E105" // class names an undeclared class
	ErrOptionalArray         = "E106" // arrays cannot be optional
	ErrIndexedRelationship   = "E107" // relationships cannot be indexed
	ErrRelationshipDefault   = "E108" // relationships cannot have defaults
	ErrUnexpectedTargetClass = "E109" // class on a scalar property
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled schema file.
// Returns all errors found (does not fail-fast).
func Validate(c *Compiled) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		e := ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		}
		if pos := c.Pos(field); pos.IsValid() {
			e.Line = pos.Line()
		}
		errs = append(errs, e)
	}

	if c.Version < 0 {
		add("version", ErrNegativeVersion, "version must not be negative, got %d", c.Version)
	}

	declared := make(map[string]bool, len(c.Classes))
	for _, obj := range c.Classes {
		declared[obj.ClassName] = true
	}

	for _, obj := range c.Classes {
		if len(obj.Properties) == 0 {
			add(obj.ClassName, ErrClassNoProperties, "class declares no properties")
		}

		pk := ""
		for _, p := range obj.Properties {
			field := obj.ClassName + "." + p.Name

			if p.PrimaryKey {
				if pk != "" {
					add(field, ErrMultiplePrimaryKeys, "%q is already the primary key", pk)
				} else {
					pk = p.Name
				}
				if p.Type != schema.TypeInt && p.Type != schema.TypeString {
					add(field, ErrPrimaryKeyType, "primary key must be int or string, got %s", p.Type)
				}
			}

			if !p.Type.IsRelationship() {
				if p.ObjectClass != "" {
					add(field, ErrUnexpectedTargetClass, "class is only allowed on object and array properties")
				}
				continue
			}

			switch {
			case p.ObjectClass == "":
				add(field, ErrMissingTargetClass, "%s property requires a class", p.Type)
			case !declared[p.ObjectClass]:
				add(field, ErrUnknownTargetClass, "links to undeclared class %q", p.ObjectClass)
			}
			if p.Type == schema.TypeArray && p.Optional {
				add(field, ErrOptionalArray, "array properties cannot be optional")
			}
			if p.Indexed {
				add(field, ErrIndexedRelationship, "%s properties cannot be indexed", p.Type)
			}
			if p.Default != nil {
				add(field, ErrRelationshipDefault, "%s properties cannot have a default", p.Type)
			}
		}
	}
	return errs
}
