package ast

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-openapi/jsonpointer"
)

// maxRefHops bounds how many component references are followed to reach a
// value, so a reference loop cannot spin forever.
const maxRefHops = 32

// registry is the named-type table. Each component schema is canonicalized
// at most once; a name is marked pending before its body is walked so a
// self-reference resolves to Ref(name).
type registry struct {
	schemas openapi3.Schemas
	types   map[string]Type
	pending map[string]struct{}
}

func newRegistry(doc *openapi3.T) *registry {
	r := &registry{
		types:   make(map[string]Type),
		pending: make(map[string]struct{}),
	}
	if doc.Components != nil {
		r.schemas = doc.Components.Schemas
	}
	return r
}

// componentName extracts the schema name from a local component reference.
func componentName(ref string) (string, bool) {
	return componentRef(ref, "schemas")
}

// componentRef extracts the entry name from a local reference into
// components/<section>.
func componentRef(ref, section string) (string, bool) {
	prefix := "#/components/" + section + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(ref, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return jsonpointer.Unescape(name), true
}

// The loader leaves references it could not resolve without a value. Local
// component references are followed here so one dangling $ref does not
// cost the rest of the document its resolution.

func (c *converter) parameterValue(ref *openapi3.ParameterRef) *openapi3.Parameter {
	for hops := 0; ref != nil && hops < maxRefHops; hops++ {
		if ref.Value != nil {
			return ref.Value
		}
		name, ok := componentRef(ref.Ref, "parameters")
		if !ok || c.doc.Components == nil {
			return nil
		}
		ref = c.doc.Components.Parameters[name]
	}
	return nil
}

func (c *converter) requestBodyValue(ref *openapi3.RequestBodyRef) *openapi3.RequestBody {
	for hops := 0; ref != nil && hops < maxRefHops; hops++ {
		if ref.Value != nil {
			return ref.Value
		}
		name, ok := componentRef(ref.Ref, "requestBodies")
		if !ok || c.doc.Components == nil {
			return nil
		}
		ref = c.doc.Components.RequestBodies[name]
	}
	return nil
}

func (c *converter) responseValue(ref *openapi3.ResponseRef) *openapi3.Response {
	for hops := 0; ref != nil && hops < maxRefHops; hops++ {
		if ref.Value != nil {
			return ref.Value
		}
		name, ok := componentRef(ref.Ref, "responses")
		if !ok || c.doc.Components == nil {
			return nil
		}
		ref = c.doc.Components.Responses[name]
	}
	return nil
}

// register canonicalizes the named component schema on first use and returns
// the cached entry afterwards.
func (c *converter) register(name string) Type {
	if t, ok := c.reg.types[name]; ok {
		return t
	}
	if _, ok := c.reg.pending[name]; ok {
		return Ref(name)
	}
	c.reg.pending[name] = struct{}{}
	loc := Location{Pointer: child("/components/schemas", name), Schema: name}
	t := c.schema(c.reg.schemas[name], loc)
	delete(c.reg.pending, name)
	c.reg.types[name] = t
	return t
}

// finalize registers every component schema not reached by the route walk
// and returns the table.
func (c *converter) finalize() map[string]Type {
	for _, name := range keys(c.cfg, "/components/schemas", c.reg.schemas) {
		c.register(name)
	}
	out := make(map[string]Type, len(c.reg.types))
	for name, t := range c.reg.types {
		out[name] = t
	}
	return out
}
