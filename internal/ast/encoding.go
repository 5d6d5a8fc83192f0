package ast

import (
	"encoding/json"
	"fmt"
)

// Types encode as tagged nodes so the variant survives serialization:
// primitives as their name, everything else as a single-key mapping such as
// {"array": ...} or {"object": [{"name": ..., "type": ...}]}.

type fieldWire struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`
}

func (p Primitive) MarshalText() ([]byte, error) { return []byte(p.Kind().String()), nil }

func (a *Array) wire() map[string]any    { return map[string]any{"array": a.Items} }
func (o *Optional) wire() map[string]any { return map[string]any{"optional": o.Inner} }
func (e *Enum) wire() map[string]any     { return map[string]any{"enum": e.Values} }
func (r Ref) wire() map[string]any       { return map[string]any{"ref": string(r)} }

func (o *Object) wire() map[string]any {
	fields := make([]fieldWire, len(o.Fields))
	for i, f := range o.Fields {
		fields[i] = fieldWire(f)
	}
	return map[string]any{"object": fields}
}

func (a *Array) MarshalJSON() ([]byte, error)    { return json.Marshal(a.wire()) }
func (o *Optional) MarshalJSON() ([]byte, error) { return json.Marshal(o.wire()) }
func (e *Enum) MarshalJSON() ([]byte, error)     { return json.Marshal(e.wire()) }
func (r Ref) MarshalJSON() ([]byte, error)       { return json.Marshal(r.wire()) }
func (o *Object) MarshalJSON() ([]byte, error)   { return json.Marshal(o.wire()) }

func (a *Array) MarshalYAML() (any, error)    { return a.wire(), nil }
func (o *Optional) MarshalYAML() (any, error) { return o.wire(), nil }
func (e *Enum) MarshalYAML() (any, error)     { return e.wire(), nil }
func (r Ref) MarshalYAML() (any, error)       { return r.wire(), nil }
func (o *Object) MarshalYAML() (any, error)   { return o.wire(), nil }

func (m Method) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(methodNames) {
		return nil, fmt.Errorf("ast: unknown method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (l ParamLocation) MarshalText() ([]byte, error) { return []byte(l.String()), nil }
func (i Index) MarshalText() ([]byte, error)         { return []byte(i.String()), nil }

type diagnosticWire struct {
	Kind     string   `json:"kind" yaml:"kind"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
	Location Location `json:"location" yaml:"location"`
}

func (d Diagnostic) wire() diagnosticWire {
	return diagnosticWire{Kind: d.Kind.Error(), Message: d.Message, Location: d.Location}
}

func (d Diagnostic) MarshalJSON() ([]byte, error) { return json.Marshal(d.wire()) }
func (d Diagnostic) MarshalYAML() (any, error)    { return d.wire(), nil }
