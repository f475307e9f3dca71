package schema

import (
	"fmt"
	"strings"
)

// Describe renders the schema as indented text, one line per property:
//
//	class Person (primary key: name)
//	  name  string  [primary, indexed]
//	  dogs  array<Dog>
func (s *Schema) Describe() string {
	var b strings.Builder
	for i, obj := range s.ObjectSchemas() {
		if i > 0 {
			b.WriteByte('\n')
		}
		obj.describe(&b)
	}
	return b.String()
}

// Describe renders a single class the same way Schema.Describe does.
func (o *ObjectSchema) Describe() string {
	var b strings.Builder
	o.describe(&b)
	return b.String()
}

func (o *ObjectSchema) describe(b *strings.Builder) {
	if pk := o.PrimaryKey(); pk != nil {
		fmt.Fprintf(b, "class %s (primary key: %s)\n", o.ClassName, pk.Name)
	} else {
		fmt.Fprintf(b, "class %s\n", o.ClassName)
	}

	nameWidth, typeWidth := 0, 0
	for _, p := range o.Properties {
		nameWidth = max(nameWidth, len(p.Name))
		typeWidth = max(typeWidth, len(p.typeString()))
	}
	for _, p := range o.Properties {
		line := fmt.Sprintf("  %-*s  %-*s", nameWidth, p.Name, typeWidth, p.typeString())
		if flags := p.flags(); len(flags) > 0 {
			line += "  [" + strings.Join(flags, ", ") + "]"
		}
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteByte('\n')
	}
}

func (p *Property) typeString() string {
	if p.Type.IsRelationship() {
		return fmt.Sprintf("%s<%s>", p.Type, p.ObjectClass)
	}
	return p.Type.String()
}

func (p *Property) flags() []string {
	var flags []string
	if p.PrimaryKey {
		flags = append(flags, "primary")
	}
	if p.IsIndexed() {
		flags = append(flags, "indexed")
	}
	if p.Optional && p.Type != TypeObject {
		flags = append(flags, "optional")
	}
	if p.Default != nil {
		flags = append(flags, fmt.Sprintf("default=%v", p.Default))
	}
	if p.Column != NoColumn {
		flags = append(flags, fmt.Sprintf("column=%d", p.Column))
	}
	return flags
}
