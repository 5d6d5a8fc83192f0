package ast

import (
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

type paramSource struct {
	value *openapi3.Parameter
	ref   string
	loc   Location
}

// parameters merges path-level and operation-level parameters and converts
// them. An operation-level parameter replaces a path-level one with the same
// location and name. Path-level parameters are located on the path item, so
// their defects are reported once however many operations share them. The
// returned headers keep declaration order.
func (c *converter) parameters(item *openapi3.PathItem, op *openapi3.Operation, route Location, pathPtr string) (map[string]Parameter, []RequestHeader) {
	var merged []paramSource
	index := make(map[string]int)

	collect := func(list openapi3.Parameters, scope Location, base string) {
		local := make(map[string]struct{}, len(list))
		for i, ref := range list {
			loc := scope
			loc.Pointer = child(base, "parameters", strconv.Itoa(i))
			p := c.parameterValue(ref)
			if p == nil {
				what := "parameter has no value"
				if ref != nil && ref.Ref != "" {
					what = ref.Ref + " could not be resolved"
				}
				c.diag.add(ErrUnresolvedRef, loc, "%s", what)
				continue
			}
			loc.Parameter = p.Name
			key := strings.ToLower(p.In) + ":" + p.Name
			if _, dup := local[key]; dup {
				c.diag.add(ErrDuplicateParameter, loc, "%s parameter %q declared twice, keeping the last", p.In, p.Name)
			}
			local[key] = struct{}{}
			src := paramSource{value: p, ref: ref.Ref, loc: loc}
			if at, ok := index[key]; ok {
				merged[at] = src
				continue
			}
			index[key] = len(merged)
			merged = append(merged, src)
		}
	}
	collect(item.Parameters, Location{Path: route.Path}, pathPtr)
	collect(op.Parameters, route, route.Pointer)

	params := make(map[string]Parameter, len(merged))
	var headers []RequestHeader
	for _, src := range merged {
		p, ok := c.parameter(src)
		if !ok {
			continue
		}
		if prev, dup := params[p.Name]; dup {
			c.diag.add(ErrDuplicateParameter, src.loc, "name %q already used by a %s parameter, keeping the %s one", p.Name, prev.Kind.In, p.Kind.In)
			if prev.Kind.In == Header {
				headers = dropHeader(headers, p.Name)
			}
		}
		params[p.Name] = p
		if p.Kind.In == Header {
			headers = append(headers, RequestHeader{Name: p.Name, Required: p.Required})
		}
	}
	return params, headers
}

func dropHeader(hs []RequestHeader, name string) []RequestHeader {
	out := hs[:0]
	for _, h := range hs {
		if h.Name != name {
			out = append(out, h)
		}
	}
	return out
}

func (c *converter) parameter(src paramSource) (Parameter, bool) {
	p, loc := src.value, src.loc
	if src.ref != "" {
		loc.Pointer = refPointer(src.ref, loc.Pointer)
	}

	var in ParamLocation
	switch strings.ToLower(p.In) {
	case openapi3.ParameterInQuery:
		in = Query
	case openapi3.ParameterInPath:
		in = Path
	case openapi3.ParameterInHeader:
		in = Header
	default:
		c.diag.add(ErrUnsupportedLocation, loc, "location %q is not supported, skipping", p.In)
		return Parameter{}, false
	}

	out := Parameter{
		Name:        p.Name,
		Description: strPtr(strings.TrimSpace(p.Description)),
		Kind:        ParameterKind{In: in, Index: Scalar},
		Required:    p.Required,
	}
	if sm, err := p.SerializationMethod(); err == nil && sm != nil {
		out.Serialization = Serialization{Style: sm.Style, Explode: sm.Explode}
	} else if err != nil {
		c.cfg.log.V(1).Info("ignoring parameter style", "pointer", loc.Pointer, "error", err.Error())
	}

	schemaRef, schemaLoc := p.Schema, loc.at("schema")
	if schemaRef == nil && len(p.Content) > 0 {
		mt := keys(c.cfg, child(loc.Pointer, "content"), p.Content)[0]
		if media := p.Content[mt]; media != nil {
			schemaRef, schemaLoc = media.Schema, loc.at("content", mt, "schema")
		}
	}
	if schemaRef == nil {
		out.Type = Any
		return out, true
	}

	sv := c.resolveValue(schemaRef)
	if sv != nil && (sv.Type == "array" || (sv.Type == "" && sv.Items != nil)) {
		out.Kind.Index = ArrayIndex
		itemsLoc := schemaLoc
		if schemaRef.Ref != "" {
			itemsLoc.Pointer = refPointer(schemaRef.Ref, schemaLoc.Pointer)
		}
		if sv.Items == nil {
			c.diag.add(ErrMissingItems, itemsLoc, "using any for array parameter items")
			out.Type = Any
		} else {
			out.Type = c.schema(sv.Items, itemsLoc.at("items"))
		}
		return out, true
	}
	out.Type = c.schema(schemaRef, schemaLoc)
	return out, true
}

// resolveValue follows component references to the schema value, also for
// documents built in code where references carry no resolved value.
func (c *converter) resolveValue(ref *openapi3.SchemaRef) *openapi3.Schema {
	for hops := 0; ref != nil && hops <= len(c.reg.schemas); hops++ {
		if ref.Value != nil {
			return ref.Value
		}
		name, ok := componentName(ref.Ref)
		if !ok {
			return nil
		}
		ref = c.reg.schemas[name]
	}
	return nil
}

// refPointer turns a local reference into a JSON pointer, or returns fallback
// for references into other documents.
func refPointer(ref, fallback string) string {
	if strings.HasPrefix(ref, "#/") {
		return ref[1:]
	}
	return fallback
}
