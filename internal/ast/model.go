package ast

import "strings"

// Method is the HTTP method of a Route.
type Method int

const (
	Get Method = iota
	Put
	Post
	Delete
	Patch
	Head
	Options
	Trace
)

var methodNames = [...]string{"get", "put", "post", "delete", "patch", "head", "options", "trace"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return "unknown"
	}
	return methodNames[m]
}

// ParseMethod maps a case-insensitive method name to a Method.
func ParseMethod(s string) (Method, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range methodNames {
		if n == s {
			return Method(i), true
		}
	}
	return 0, false
}

// ParamLocation is where a parameter travels.
type ParamLocation int

const (
	Query ParamLocation = iota
	Path
	Header
)

func (l ParamLocation) String() string {
	switch l {
	case Query:
		return "query"
	case Path:
		return "path"
	case Header:
		return "header"
	}
	return "unknown"
}

// Index tells whether a parameter carries one value or many.
type Index int

const (
	Scalar Index = iota
	ArrayIndex
)

func (i Index) String() string {
	if i == ArrayIndex {
		return "array"
	}
	return "scalar"
}

// ParameterKind combines location and shape, e.g. Query(Array).
type ParameterKind struct {
	In    ParamLocation `json:"in" yaml:"in"`
	Index Index         `json:"index" yaml:"index"`
}

// Serialization is the declared (or defaulted) wire style of a parameter.
// Consumers use it to pick how Array parameters are encoded.
type Serialization struct {
	Style   string `json:"style,omitempty" yaml:"style,omitempty"`
	Explode bool   `json:"explode" yaml:"explode"`
}

// Parameter is one named route input. For Array parameters Type is the item
// type.
type Parameter struct {
	Name          string        `json:"name" yaml:"name"`
	Description   *string       `json:"description,omitempty" yaml:"description,omitempty"`
	Kind          ParameterKind `json:"kind" yaml:"kind"`
	Type          Type          `json:"type" yaml:"type"`
	Required      bool          `json:"required" yaml:"required"`
	Serialization Serialization `json:"serialization" yaml:"serialization"`
}

// Body is the payload of a request or response.
type Body struct {
	Typed Type `json:"typed" yaml:"typed"`
}

// RequestHeader describes a header the request carries.
type RequestHeader struct {
	Name     string `json:"name" yaml:"name"`
	Required bool   `json:"required" yaml:"required"`
}

type Request struct {
	MimeType *string         `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Headers  []RequestHeader `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body     *Body           `json:"body,omitempty" yaml:"body,omitempty"`
}

type Response struct {
	MimeType *string `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Body     *Body   `json:"body,omitempty" yaml:"body,omitempty"`
}

// StatusResponse is a status-code specific response.
type StatusResponse struct {
	Status   int      `json:"status" yaml:"status"`
	Response Response `json:"response" yaml:"response"`
}

// Responses holds the default response and status overrides in declaration
// order.
type Responses struct {
	Default  *Response        `json:"default,omitempty" yaml:"default,omitempty"`
	Specific []StatusResponse `json:"specific,omitempty" yaml:"specific,omitempty"`
}

// Lookup returns the response declared for status, falling back to Default.
func (r Responses) Lookup(status int) (*Response, bool) {
	for i := range r.Specific {
		if r.Specific[i].Status == status {
			return &r.Specific[i].Response, true
		}
	}
	if r.Default != nil {
		return r.Default, true
	}
	return nil, false
}

type Route struct {
	Name        string               `json:"name" yaml:"name"`
	Endpoint    string               `json:"endpoint" yaml:"endpoint"`
	Method      Method               `json:"method" yaml:"method"`
	Summary     *string              `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description *string              `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string             `json:"tags,omitempty" yaml:"tags,omitempty"`
	Parameters  map[string]Parameter `json:"parameters" yaml:"parameters"`
	Request     *Request             `json:"request,omitempty" yaml:"request,omitempty"`
	Responses   Responses            `json:"responses" yaml:"responses"`
}

// AST is the result of a conversion. Routes keep document order; Types is
// keyed by component schema name.
type AST struct {
	Routes []Route         `json:"routes" yaml:"routes"`
	Types  map[string]Type `json:"types" yaml:"types"`
}

// Route returns the route with the given name.
func (a *AST) Route(name string) (*Route, bool) {
	for i := range a.Routes {
		if a.Routes[i].Name == name {
			return &a.Routes[i], true
		}
	}
	return nil, false
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
