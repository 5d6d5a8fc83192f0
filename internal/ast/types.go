package ast

import (
	"fmt"
	"strings"
)

// Kind identifies a Type variant.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBoolean
	KindAny
	KindArray
	KindObject
	KindOptional
	KindEnum
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindAny:
		return "any"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindOptional:
		return "optional"
	case KindEnum:
		return "enum"
	case KindRef:
		return "ref"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Type is the closed algebra every schema is canonicalized into. The set of
// implementations is fixed by this package.
type Type interface {
	Kind() Kind
	isType()
}

// Primitive is a leaf type without structure.
type Primitive Kind

const (
	String  = Primitive(KindString)
	Number  = Primitive(KindNumber)
	Boolean = Primitive(KindBoolean)
	// Any is the escape hatch for schemas with no structural constraint the
	// algebra can express.
	Any = Primitive(KindAny)
)

func (p Primitive) Kind() Kind { return Kind(p) }
func (Primitive) isType()      {}

// Array is a homogeneous sequence.
type Array struct {
	Items Type
}

func (*Array) Kind() Kind { return KindArray }
func (*Array) isType()    {}

// Field is one named member of an Object.
type Field struct {
	Name string
	Type Type
}

// Object is a record whose fields keep the declaration order of the source
// schema. Field names are unique.
type Object struct {
	Fields []Field
}

func (*Object) Kind() Kind { return KindObject }
func (*Object) isType()    {}

// Field returns the type of the named field.
func (o *Object) Field(name string) (Type, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// Optional marks a value that may be absent or null.
type Optional struct {
	Inner Type
}

func (*Optional) Kind() Kind { return KindOptional }
func (*Optional) isType()    {}

// Enum is a closed, ordered, non-empty set of string literals.
type Enum struct {
	Values []string
}

func (*Enum) Kind() Kind { return KindEnum }
func (*Enum) isType()    {}

// Ref names an entry of AST.Types. It anchors recursive schemas.
type Ref string

func (Ref) Kind() Kind { return KindRef }
func (Ref) isType()    {}

// NewObject builds an Object from alternating name/type pairs. It panics on a
// malformed argument list, so it is meant for literals.
func NewObject(pairs ...any) *Object {
	if len(pairs)%2 != 0 {
		panic("ast: NewObject needs name/type pairs")
	}
	o := &Object{Fields: make([]Field, 0, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		o.Fields = append(o.Fields, Field{Name: pairs[i].(string), Type: pairs[i+1].(Type)})
	}
	return o
}

// NewEnum builds an Enum from literals.
func NewEnum(values ...string) *Enum {
	return &Enum{Values: append([]string(nil), values...)}
}

// Optionalize wraps t in Optional unless it already is one.
func Optionalize(t Type) Type {
	if t == nil {
		return &Optional{Inner: Any}
	}
	if _, ok := t.(*Optional); ok {
		return t
	}
	return &Optional{Inner: t}
}

// Equal reports whether a and b are structurally identical. Object fields
// compare in order.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Primitive:
		return true
	case Ref:
		return av == b.(Ref)
	case *Array:
		return Equal(av.Items, b.(*Array).Items)
	case *Optional:
		return Equal(av.Inner, b.(*Optional).Inner)
	case *Enum:
		bv := b.(*Enum)
		if len(av.Values) != len(bv.Values) {
			return false
		}
		for i := range av.Values {
			if av.Values[i] != bv.Values[i] {
				return false
			}
		}
		return true
	case *Object:
		bv := b.(*Object)
		if av == bv {
			return true
		}
		if len(av.Fields) != len(bv.Fields) {
			return false
		}
		for i := range av.Fields {
			if av.Fields[i].Name != bv.Fields[i].Name || !Equal(av.Fields[i].Type, bv.Fields[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}

// Format renders t compactly, e.g. `{a: string, b?: [number]}`.
func Format(t Type) string {
	var b strings.Builder
	format(&b, t)
	return b.String()
}

func format(b *strings.Builder, t Type) {
	switch v := t.(type) {
	case nil:
		b.WriteString("<nil>")
	case Primitive:
		b.WriteString(v.Kind().String())
	case Ref:
		b.WriteString("#")
		b.WriteString(string(v))
	case *Array:
		b.WriteString("[")
		format(b, v.Items)
		b.WriteString("]")
	case *Optional:
		format(b, v.Inner)
		b.WriteString("?")
	case *Enum:
		b.WriteString("enum(")
		b.WriteString(strings.Join(v.Values, "|"))
		b.WriteString(")")
	case *Object:
		b.WriteString("{")
		for i, f := range v.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			format(b, f.Type)
		}
		b.WriteString("}")
	}
}
