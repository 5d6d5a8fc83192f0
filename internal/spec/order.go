package spec

import (
    "fmt"
    "strconv"
    "strings"

    "github.com/go-openapi/jsonpointer"
    "gopkg.in/yaml.v3"
)

// Order records the declaration order of the keys of every mapping in a raw
// YAML or JSON document, addressed by JSON pointer ("" is the root,
// "/paths" the paths object). kin-openapi keeps paths, responses and
// properties in Go maps, so this is where source order comes from.
type Order struct {
    keys map[string][]string
}

// BuildOrder indexes data, which may be YAML or JSON.
func BuildOrder(data []byte) (*Order, error) {
    var root yaml.Node
    if err := yaml.Unmarshal(data, &root); err != nil {
        return nil, fmt.Errorf("index key order: %w", err)
    }
    o := &Order{keys: make(map[string][]string)}
    if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
        o.walk("", root.Content[0], 0)
    }
    return o, nil
}

// maxAliasDepth bounds alias expansion so a pathological anchor graph cannot
// blow up the index.
const maxAliasDepth = 16

func (o *Order) walk(ptr string, n *yaml.Node, aliases int) {
    switch n.Kind {
    case yaml.AliasNode:
        if n.Alias != nil && aliases < maxAliasDepth {
            o.walk(ptr, n.Alias, aliases+1)
        }
    case yaml.MappingNode:
        ks := make([]string, 0, len(n.Content)/2)
        for i := 0; i+1 < len(n.Content); i += 2 {
            k := n.Content[i].Value
            if k == "<<" {
                continue
            }
            ks = append(ks, k)
            o.walk(ptr+"/"+jsonpointer.Escape(k), n.Content[i+1], aliases)
        }
        o.keys[ptr] = ks
    case yaml.SequenceNode:
        for i, c := range n.Content {
            o.walk(ptr+"/"+strconv.Itoa(i), c, aliases)
        }
    }
}

// Keys returns the keys of the mapping at pointer in declaration order, or
// nil when the pointer does not address a mapping.
func (o *Order) Keys(pointer string) []string {
    if o == nil {
        return nil
    }
    return o.keys[pointer]
}

// Len reports how many mappings were indexed.
func (o *Order) Len() int {
    if o == nil {
        return 0
    }
    return len(o.keys)
}

// rebase copies every entry under from to the same relative pointer under to.
// Swagger 2.0 definitions become components/schemas after conversion.
func (o *Order) rebase(from, to string) {
    for ptr, ks := range o.keys {
        if ptr == from || strings.HasPrefix(ptr, from+"/") {
            o.keys[to+strings.TrimPrefix(ptr, from)] = ks
        }
    }
}
