package ast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// Sentinel errors identifying diagnostic kinds. A Diagnostic matches its kind
// with errors.Is.
var (
	ErrUnresolvedRef        = errors.New("unresolved $ref")
	ErrUnsupportedSchema    = errors.New("unsupported schema construct")
	ErrMissingItems         = errors.New("array schema without items")
	ErrInvalidEnum          = errors.New("invalid enum")
	ErrUnsupportedLocation  = errors.New("unsupported parameter location")
	ErrDuplicateParameter   = errors.New("duplicate parameter name")
	ErrMissingOperationID   = errors.New("missing operationId")
	ErrDuplicateOperationID = errors.New("duplicate operationId")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrUnsupportedMethod    = errors.New("unsupported HTTP method")
	ErrInvalidStatus        = errors.New("invalid response status")
)

// Location pins a diagnostic to a place in the document.
type Location struct {
	// Pointer is a JSON pointer into the document, e.g. "/paths/~1pets/get".
	Pointer   string `json:"pointer,omitempty" yaml:"pointer,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Method    string `json:"method,omitempty" yaml:"method,omitempty"`
	Operation string `json:"operation,omitempty" yaml:"operation,omitempty"`
	Parameter string `json:"parameter,omitempty" yaml:"parameter,omitempty"`
	Schema    string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

func (l Location) String() string {
	var parts []string
	if l.Method != "" || l.Path != "" {
		parts = append(parts, strings.TrimSpace(strings.ToUpper(l.Method)+" "+l.Path))
	}
	if l.Operation != "" {
		parts = append(parts, "operation "+l.Operation)
	}
	if l.Parameter != "" {
		parts = append(parts, "parameter "+l.Parameter)
	}
	if l.Schema != "" {
		parts = append(parts, "schema "+l.Schema)
	}
	if l.Pointer != "" {
		parts = append(parts, "at #"+l.Pointer)
	}
	return strings.Join(parts, ", ")
}

// Diagnostic is one recorded, non-fatal problem.
type Diagnostic struct {
	Kind     error
	Location Location
	Message  string
}

func (d Diagnostic) Error() string {
	msg := d.Kind.Error()
	if d.Message != "" {
		msg += ": " + d.Message
	}
	if loc := d.Location.String(); loc != "" {
		msg += " (" + loc + ")"
	}
	return msg
}

func (d Diagnostic) Unwrap() error { return d.Kind }

// Diagnostics is the error returned by AsAST when the conversion recorded at
// least one problem.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	switch len(ds) {
	case 0:
		return "no diagnostics"
	case 1:
		return ds[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d diagnostics:", len(ds))
	for _, d := range ds {
		b.WriteString("\n  - ")
		b.WriteString(d.Error())
	}
	return b.String()
}

func (ds Diagnostics) Unwrap() []error {
	out := make([]error, len(ds))
	for i := range ds {
		out[i] = ds[i]
	}
	return out
}

// Of returns the diagnostics of the given kind.
func (ds Diagnostics) Of(kind error) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if errors.Is(d.Kind, kind) {
			out = append(out, d)
		}
	}
	return out
}

// collector accumulates diagnostics for the whole walk. A diagnostic equal
// to one already recorded is dropped.
type collector struct {
	diags Diagnostics
	seen  map[Diagnostic]struct{}
	log   logr.Logger
}

func (c *collector) add(kind error, loc Location, format string, args ...any) {
	d := Diagnostic{Kind: kind, Location: loc, Message: fmt.Sprintf(format, args...)}
	if _, dup := c.seen[d]; dup {
		return
	}
	if c.seen == nil {
		c.seen = make(map[Diagnostic]struct{})
	}
	c.seen[d] = struct{}{}
	c.diags = append(c.diags, d)
	c.log.V(1).Info("diagnostic", "kind", kind.Error(), "pointer", loc.Pointer, "message", d.Message)
}

func (c *collector) err() error {
	if len(c.diags) == 0 {
		return nil
	}
	return c.diags
}
