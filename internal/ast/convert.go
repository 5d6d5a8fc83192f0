// Package ast converts an OpenAPI 3 document into a small, strongly typed
// tree of routes and named types.
//
// The conversion never stops at the first problem. Every malformed or
// unsupported construct is recorded as a Diagnostic and replaced by a
// documented fallback, so the caller always gets everything that could be
// converted:
//
//	tree, err := ast.AsAST(doc, ast.WithKeyOrder(order))
//	var diags ast.Diagnostics
//	if errors.As(err, &diags) {
//	    // tree is partial; diags lists every problem
//	}
package ast

import (
	"errors"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-logr/logr"
	"github.com/stoewer/go-strcase"
)

var errNilDocument = errors.New("ast: nil document")

type converter struct {
	doc    *openapi3.T
	cfg    *config
	diag   *collector
	reg    *registry
	inline map[*openapi3.Schema]struct{}
	// names maps an operation name to the route that claimed it first.
	names map[string]string
}

// AsAST converts doc. It always returns the AST built so far; the error is
// nil on a clean pass and a Diagnostics value otherwise.
func AsAST(doc *openapi3.T, opts ...Option) (*AST, error) {
	if doc == nil {
		return nil, errNilDocument
	}
	cfg := &config{log: logr.Discard()}
	for _, opt := range opts {
		opt(cfg)
	}
	c := &converter{
		doc:    doc,
		cfg:    cfg,
		diag:   &collector{log: cfg.log},
		reg:    newRegistry(doc),
		inline: make(map[*openapi3.Schema]struct{}),
		names:  make(map[string]string),
	}

	out := &AST{}
	for _, p := range keys(cfg, "/paths", doc.Paths) {
		item := doc.Paths[p]
		if item == nil {
			continue
		}
		out.Routes = append(out.Routes, c.pathItem(p, item)...)
	}
	out.Types = c.finalize()

	cfg.log.V(1).Info("converted document", "routes", len(out.Routes), "types", len(out.Types), "diagnostics", len(c.diag.diags))
	return out, c.diag.err()
}

type operation struct {
	method Method
	op     *openapi3.Operation
}

func (c *converter) pathItem(p string, item *openapi3.PathItem) []Route {
	pathPtr := child("/paths", p)
	if item.Connect != nil {
		c.diag.add(ErrUnsupportedMethod, Location{Pointer: child(pathPtr, "connect"), Path: p, Method: "connect", Operation: item.Connect.OperationID}, "CONNECT operations are skipped")
	}

	var routes []Route
	for _, o := range c.operations(pathPtr, item) {
		if r, ok := c.route(p, pathPtr, item, o); ok {
			routes = append(routes, r)
		}
	}
	return routes
}

// operations lists the path item's operations in source order, falling back
// to the Method enumeration order.
func (c *converter) operations(pathPtr string, item *openapi3.PathItem) []operation {
	slots := [...]*openapi3.Operation{
		Get: item.Get, Put: item.Put, Post: item.Post, Delete: item.Delete,
		Patch: item.Patch, Head: item.Head, Options: item.Options, Trace: item.Trace,
	}
	var out []operation
	done := make(map[Method]struct{}, len(slots))
	if c.cfg.order != nil {
		for _, k := range c.cfg.order.Keys(pathPtr) {
			m, ok := ParseMethod(k)
			if !ok || slots[m] == nil {
				continue
			}
			if _, dup := done[m]; dup {
				continue
			}
			done[m] = struct{}{}
			out = append(out, operation{method: m, op: slots[m]})
		}
	}
	for i, op := range slots {
		if _, ok := done[Method(i)]; ok || op == nil {
			continue
		}
		out = append(out, operation{method: Method(i), op: op})
	}
	return out
}

func (c *converter) route(p, pathPtr string, item *openapi3.PathItem, o operation) (Route, bool) {
	op := o.op
	tags := make([]string, 0, len(op.Tags))
	for _, t := range op.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if !c.cfg.allow(o.method, p, tags) {
		return Route{}, false
	}

	loc := Location{
		Pointer:   child(pathPtr, o.method.String()),
		Path:      p,
		Method:    o.method.String(),
		Operation: strings.TrimSpace(op.OperationID),
	}
	owner := strings.ToUpper(o.method.String()) + " " + p
	name := loc.Operation
	switch prev, taken := c.names[name]; {
	case name == "":
		name = deriveName(o.method, p)
		loc.Operation = name
		c.diag.add(ErrMissingOperationID, loc, "using derived name %q", name)
		if _, taken := c.names[name]; !taken {
			c.names[name] = owner
		}
	case taken:
		c.diag.add(ErrDuplicateOperationID, loc, "%q is already used by %s", name, prev)
	default:
		c.names[name] = owner
	}

	c.cfg.log.V(2).Info("extracting route", "name", name, "method", o.method.String(), "path", p)

	params, headers := c.parameters(item, op, loc, pathPtr)
	r := Route{
		Name:        name,
		Endpoint:    p,
		Method:      o.method,
		Summary:     strPtr(strings.TrimSpace(op.Summary)),
		Description: strPtr(strings.TrimSpace(op.Description)),
		Parameters:  params,
		Request:     c.requestBody(op.RequestBody, headers, loc),
		Responses:   c.responses(op.Responses, loc),
	}
	if len(tags) > 0 {
		r.Tags = tags
	}
	return r, true
}

var nonWord = regexp.MustCompile(`[^A-Za-z0-9]+`)

// deriveName builds an identifier from method and path, e.g.
// "get /users/{id}" becomes "getUsersId".
func deriveName(m Method, p string) string {
	words := strings.Trim(nonWord.ReplaceAllString(p, "_"), "_")
	if words == "" {
		return m.String()
	}
	return strcase.LowerCamelCase(m.String() + "_" + words)
}
