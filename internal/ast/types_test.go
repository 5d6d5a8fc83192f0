package ast

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestEqual(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b Type
		want bool
	}{
		{"primitives", String, String, true},
		{"different primitives", String, Number, false},
		{"refs", Ref("A"), Ref("A"), true},
		{"different refs", Ref("A"), Ref("B"), false},
		{"arrays", &Array{Items: Number}, &Array{Items: Number}, true},
		{"enum order matters", NewEnum("a", "b"), NewEnum("b", "a"), false},
		{"objects", NewObject("a", String, "b", Boolean), NewObject("a", String, "b", Boolean), true},
		{"field order matters", NewObject("a", String, "b", Boolean), NewObject("b", Boolean, "a", String), false},
		{"optional vs inner", &Optional{Inner: String}, String, false},
		{"nil", nil, nil, true},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: Equal = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOptionalizeDoesNotNest(t *testing.T) {
	t.Parallel()
	once := Optionalize(String)
	if twice := Optionalize(once); twice != once {
		t.Fatalf("Optionalize wrapped an Optional: %s", Format(twice))
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()
	typ := NewObject(
		"id", Number,
		"tags", &Optional{Inner: &Array{Items: String}},
		"kind", NewEnum("a", "b"),
		"next", Ref("Node"),
	)
	want := "{id: number, tags: [string]?, kind: enum(a|b), next: #Node}"
	if got := Format(typ); got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestEncodeTypes(t *testing.T) {
	t.Parallel()
	route := Route{
		Name:     "list",
		Endpoint: "/items",
		Method:   Get,
		Parameters: map[string]Parameter{
			"ids": {
				Name:          "ids",
				Kind:          ParameterKind{In: Query, Index: ArrayIndex},
				Type:          Number,
				Serialization: Serialization{Style: "form", Explode: true},
			},
		},
		Responses: Responses{Specific: []StatusResponse{{
			Status:   200,
			Response: Response{Body: &Body{Typed: &Array{Items: NewObject("id", Number, "parent", &Optional{Inner: Ref("Item")})}}},
		}}},
	}

	data, err := json.Marshal(route)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	got := string(data)
	for _, want := range []string{
		`"method":"get"`,
		`"kind":{"in":"query","index":"array"}`,
		`"type":"number"`,
		`"typed":{"array":{"object":[{"name":"id","type":"number"},{"name":"parent","type":{"optional":{"ref":"Item"}}}]}}`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("json output missing %s:\n%s", want, got)
		}
	}

	out, err := yaml.Marshal(route)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	for _, want := range []string{"method: get", "in: query", "index: array", "ref: Item"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("yaml output missing %q:\n%s", want, out)
		}
	}
}

func TestEncodeDiagnostics(t *testing.T) {
	t.Parallel()
	d := Diagnostic{Kind: ErrMissingItems, Location: Location{Pointer: "/paths/~1a/get", Operation: "a"}, Message: "using array of any"}
	data, err := json.Marshal(Diagnostics{d})
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	want := `[{"kind":"array schema without items","message":"using array of any","location":{"pointer":"/paths/~1a/get","operation":"a"}}]`
	if string(data) != want {
		t.Fatalf("got %s\nwant %s", data, want)
	}
	if !errors.Is(d, ErrMissingItems) {
		t.Fatalf("diagnostic should match its kind")
	}
	if !strings.Contains(d.Error(), "operation a, at #/paths/~1a/get") {
		t.Fatalf("error text lacks location: %s", d.Error())
	}
}
