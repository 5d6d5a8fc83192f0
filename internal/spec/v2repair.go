package spec

import (
    "strings"

    "gopkg.in/yaml.v3"
)

var v2Methods = map[string]struct{}{
    "get": {}, "put": {}, "post": {}, "delete": {}, "patch": {}, "head": {}, "options": {},
}

// repairV2 rewrites Swagger 2.0 operations that openapi2conv rejects:
//   - several body parameters are merged into one object body whose
//     properties keep the parameters' order;
//   - body parameters next to formData ones become formData fields and the
//     operation consumes multipart/form-data.
//
// The node tree is edited in place, so key order survives for the order
// index. On any error the input is returned unchanged.
func repairV2(data []byte) ([]byte, bool, error) {
    var doc yaml.Node
    if err := yaml.Unmarshal(data, &doc); err != nil {
        return data, false, err
    }
    if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
        return data, false, nil
    }
    paths := lookup(doc.Content[0], "paths")
    if paths == nil || paths.Kind != yaml.MappingNode {
        return data, false, nil
    }

    changed := false
    for i := 1; i < len(paths.Content); i += 2 {
        item := paths.Content[i]
        if item.Kind != yaml.MappingNode {
            continue
        }
        for j := 0; j+1 < len(item.Content); j += 2 {
            if _, ok := v2Methods[strings.ToLower(item.Content[j].Value)]; !ok {
                continue
            }
            if repairOperation(item.Content[j+1]) {
                changed = true
            }
        }
    }
    if !changed {
        return data, false, nil
    }
    out, err := yaml.Marshal(&doc)
    if err != nil {
        return data, false, err
    }
    return out, true, nil
}

func repairOperation(op *yaml.Node) bool {
    params := lookup(op, "parameters")
    if params == nil || params.Kind != yaml.SequenceNode {
        return false
    }
    var bodies, rest []*yaml.Node
    formData := false
    for _, p := range params.Content {
        switch strings.ToLower(scalar(lookup(p, "in"))) {
        case "body":
            bodies = append(bodies, p)
            continue
        case "formdata":
            formData = true
        }
        rest = append(rest, p)
    }

    switch {
    case len(bodies) == 0:
        return false
    case formData:
        for i, p := range params.Content {
            if strings.EqualFold(scalar(lookup(p, "in")), "body") {
                params.Content[i] = formField(p)
            }
        }
        ensureConsumes(op, "multipart/form-data")
        return true
    case len(bodies) > 1:
        params.Content = append([]*yaml.Node{mergeBodies(bodies)}, rest...)
        return true
    }
    return false
}

func mergeBodies(bodies []*yaml.Node) *yaml.Node {
    props := mapping()
    required := seq()
    for _, p := range bodies {
        name := paramName(p)
        schema := lookup(p, "schema")
        if schema == nil {
            schema = schemaFromParam(p)
        }
        props.Content = append(props.Content, str(name), schema)
        if isTrue(lookup(p, "required")) {
            required.Content = append(required.Content, str(name))
        }
    }
    body := mapping(str("type"), str("object"), str("properties"), props)
    if len(required.Content) > 0 {
        body.Content = append(body.Content, str("required"), required)
    }
    return mapping(str("in"), str("body"), str("name"), str("body"), str("schema"), body)
}

// schemaFromParam synthesizes a schema from a parameter's type, items and
// format, falling back to string.
func schemaFromParam(p *yaml.Node) *yaml.Node {
    typ := scalar(lookup(p, "type"))
    if typ == "" {
        typ = "string"
    }
    out := mapping(str("type"), str(typ))
    if items := lookup(p, "items"); items != nil {
        out.Content = append(out.Content, str("items"), items)
    }
    if f := scalar(lookup(p, "format")); f != "" {
        out.Content = append(out.Content, str("format"), str(f))
    }
    return out
}

func formField(p *yaml.Node) *yaml.Node {
    out := mapping(str("in"), str("formData"), str("name"), str(paramName(p)))
    if d := scalar(lookup(p, "description")); d != "" {
        out.Content = append(out.Content, str("description"), str(d))
    }
    if r := lookup(p, "required"); r != nil {
        out.Content = append(out.Content, str("required"), r)
    }

    // formData cannot carry a referenced object; such fields degrade to string.
    src := p
    if schema := lookup(p, "schema"); schema != nil {
        src = schema
    }
    typ := scalar(lookup(src, "type"))
    if typ == "" {
        typ = "string"
    }
    out.Content = append(out.Content, str("type"), str(typ))
    if items := lookup(src, "items"); items != nil && typ == "array" {
        out.Content = append(out.Content, str("items"), items)
    }
    if f := scalar(lookup(src, "format")); f != "" {
        out.Content = append(out.Content, str("format"), str(f))
    }
    return out
}

func ensureConsumes(op *yaml.Node, mediaType string) {
    consumes := lookup(op, "consumes")
    if consumes == nil {
        op.Content = append(op.Content, str("consumes"), seq(str(mediaType)))
        return
    }
    if consumes.Kind != yaml.SequenceNode {
        return
    }
    for _, c := range consumes.Content {
        if c.Value == mediaType {
            return
        }
    }
    consumes.Content = append(consumes.Content, str(mediaType))
}

func paramName(p *yaml.Node) string {
    if name := scalar(lookup(p, "name")); name != "" {
        return name
    }
    return "field"
}

func lookup(n *yaml.Node, key string) *yaml.Node {
    if n == nil || n.Kind != yaml.MappingNode {
        return nil
    }
    for i := 0; i+1 < len(n.Content); i += 2 {
        if n.Content[i].Value == key {
            return n.Content[i+1]
        }
    }
    return nil
}

func scalar(n *yaml.Node) string {
    if n == nil || n.Kind != yaml.ScalarNode {
        return ""
    }
    return strings.TrimSpace(n.Value)
}

func isTrue(n *yaml.Node) bool { return strings.EqualFold(scalar(n), "true") }

func str(s string) *yaml.Node {
    return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func mapping(kv ...*yaml.Node) *yaml.Node {
    return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: kv}
}

func seq(items ...*yaml.Node) *yaml.Node {
    return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}
