package ast

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// schema canonicalizes a schema node found at loc. It never fails: problems
// are recorded and a best-effort type is returned.
func (c *converter) schema(ref *openapi3.SchemaRef, loc Location) Type {
	if ref == nil {
		return Any
	}
	if ref.Ref != "" {
		return c.reference(ref, loc)
	}
	if ref.Value == nil {
		c.diag.add(ErrUnresolvedRef, loc, "schema has no value")
		return Any
	}
	return c.value(ref.Value, loc)
}

func (c *converter) reference(ref *openapi3.SchemaRef, loc Location) Type {
	if name, ok := componentName(ref.Ref); ok {
		if _, declared := c.reg.schemas[name]; !declared {
			c.diag.add(ErrUnresolvedRef, loc, "%s is not declared in components.schemas", ref.Ref)
			return Any
		}
		t := c.register(name)
		if c.cfg.namedRefs {
			return Ref(name)
		}
		return t
	}
	// Anything else (external files, non-component pointers) is inlined from
	// the value the loader resolved.
	if ref.Value == nil {
		c.diag.add(ErrUnresolvedRef, loc, "%s could not be resolved", ref.Ref)
		return Any
	}
	if _, busy := c.inline[ref.Value]; busy {
		c.diag.add(ErrUnsupportedSchema, loc, "recursive reference %s outside components.schemas", ref.Ref)
		return Any
	}
	c.inline[ref.Value] = struct{}{}
	defer delete(c.inline, ref.Value)
	return c.value(ref.Value, loc)
}

func (c *converter) value(s *openapi3.Schema, loc Location) Type {
	if kw := compositionKeywords(s); len(kw) > 0 {
		c.diag.add(ErrUnsupportedSchema, loc, "%s is not supported, using any", strings.Join(kw, ", "))
		return nullable(s, Any)
	}

	var t Type
	switch s.Type {
	case "string":
		t = String
		if len(s.Enum) > 0 {
			t = c.enum(s, loc, String)
		}
	case "number", "integer":
		t = c.scalar(s, loc, Number)
	case "boolean":
		t = c.scalar(s, loc, Boolean)
	case "array":
		t = c.array(s, loc)
	case "object":
		t = c.object(s, loc)
	case "":
		switch {
		case len(s.Properties) > 0:
			t = c.object(s, loc)
		case s.Items != nil:
			t = c.array(s, loc)
		case len(s.Enum) > 0:
			t = c.enum(s, loc, Any)
		default:
			t = Any
		}
	default:
		c.diag.add(ErrUnsupportedSchema, loc, "type %q is not supported, using any", s.Type)
		t = Any
	}
	return nullable(s, t)
}

func nullable(s *openapi3.Schema, t Type) Type {
	if s.Nullable {
		return Optionalize(t)
	}
	return t
}

func compositionKeywords(s *openapi3.Schema) []string {
	var kw []string
	if len(s.OneOf) > 0 {
		kw = append(kw, "oneOf")
	}
	if len(s.AnyOf) > 0 {
		kw = append(kw, "anyOf")
	}
	if len(s.AllOf) > 0 {
		kw = append(kw, "allOf")
	}
	if s.Not != nil {
		kw = append(kw, "not")
	}
	if s.Discriminator != nil {
		kw = append(kw, "discriminator")
	}
	return kw
}

// scalar handles number and boolean schemas; the algebra has no literal sets
// for them so an enum is reported and dropped.
func (c *converter) scalar(s *openapi3.Schema, loc Location, t Type) Type {
	if len(s.Enum) > 0 {
		c.diag.add(ErrInvalidEnum, loc, "enum on %s schema is not representable, using %s", s.Type, Format(t))
	}
	return t
}

func (c *converter) enum(s *openapi3.Schema, loc Location, fallback Type) Type {
	values := make([]string, 0, len(s.Enum))
	seen := make(map[string]struct{}, len(s.Enum))
	for i, v := range s.Enum {
		if v == nil && s.Nullable {
			continue
		}
		str, ok := v.(string)
		if !ok {
			c.diag.add(ErrInvalidEnum, loc, "enum value %d (%v) is not a string, using %s", i, v, Format(fallback))
			return fallback
		}
		if _, dup := seen[str]; dup {
			continue
		}
		seen[str] = struct{}{}
		values = append(values, str)
	}
	if len(values) == 0 {
		c.diag.add(ErrInvalidEnum, loc, "enum has no values, using %s", Format(fallback))
		return fallback
	}
	return &Enum{Values: values}
}

func (c *converter) array(s *openapi3.Schema, loc Location) Type {
	if s.Items == nil {
		c.diag.add(ErrMissingItems, loc, "using array of any")
		return &Array{Items: Any}
	}
	return &Array{Items: c.schema(s.Items, loc.at("items"))}
}

func (c *converter) object(s *openapi3.Schema, loc Location) Type {
	if len(s.Properties) == 0 {
		return Any
	}
	required := make(map[string]struct{}, len(s.Required))
	for _, r := range s.Required {
		required[r] = struct{}{}
	}
	props := loc.at("properties")
	obj := &Object{Fields: make([]Field, 0, len(s.Properties))}
	for _, name := range keys(c.cfg, props.Pointer, s.Properties) {
		ft := c.schema(s.Properties[name], props.at(name))
		if _, ok := required[name]; !ok {
			ft = Optionalize(ft)
		}
		obj.Fields = append(obj.Fields, Field{Name: name, Type: ft})
	}
	return obj
}

// at returns a copy of l whose pointer descends into tokens.
func (l Location) at(tokens ...string) Location {
	l.Pointer = child(l.Pointer, tokens...)
	return l
}
