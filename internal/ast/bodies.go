package ast

import (
	"mime"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const jsonMediaType = "application/json"

// isJSON accepts application/json, its parameterized forms and structured
// syntax suffixes such as application/problem+json.
func isJSON(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return mt == jsonMediaType || (strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}

func (c *converter) requestBody(ref *openapi3.RequestBodyRef, headers []RequestHeader, loc Location) *Request {
	if ref == nil {
		return nil
	}
	loc = loc.at("requestBody")
	if ref.Ref != "" {
		loc.Pointer = refPointer(ref.Ref, loc.Pointer)
	}
	req := &Request{Headers: headers}
	body := c.requestBodyValue(ref)
	if body == nil {
		c.diag.add(ErrUnresolvedRef, loc, "request body %s could not be resolved", ref.Ref)
		return req
	}
	req.MimeType, req.Body = c.content(body.Content, loc)
	return req
}

// content selects the single supported media type of a content map and
// canonicalizes its schema. Every other media type is reported.
func (c *converter) content(content openapi3.Content, loc Location) (*string, *Body) {
	if len(content) == 0 {
		return nil, nil
	}
	order := keys(c.cfg, child(loc.Pointer, "content"), content)
	chosen := ""
	if _, ok := content[jsonMediaType]; ok {
		chosen = jsonMediaType
	} else {
		for _, mt := range order {
			if isJSON(mt) {
				chosen = mt
				break
			}
		}
	}
	for _, mt := range order {
		if mt == chosen {
			continue
		}
		c.diag.add(ErrUnsupportedMediaType, loc.at("content", mt), "%q is ignored", mt)
	}
	if chosen == "" {
		return nil, nil
	}
	mimeType := chosen
	media := content[chosen]
	if media == nil || media.Schema == nil {
		return &mimeType, nil
	}
	return &mimeType, &Body{Typed: c.schema(media.Schema, loc.at("content", chosen, "schema"))}
}

func (c *converter) responses(rs openapi3.Responses, loc Location) Responses {
	var out Responses
	if len(rs) == 0 {
		return out
	}
	loc = loc.at("responses")
	for _, code := range keys(c.cfg, loc.Pointer, rs) {
		rloc := loc.at(code)
		ref := rs[code]
		value := c.responseValue(ref)
		if value == nil {
			what := "response has no value"
			if ref != nil && ref.Ref != "" {
				what = ref.Ref + " could not be resolved"
			}
			c.diag.add(ErrUnresolvedRef, rloc, "%s", what)
			continue
		}
		if ref.Ref != "" {
			rloc.Pointer = refPointer(ref.Ref, rloc.Pointer)
		}

		var resp Response
		resp.MimeType, resp.Body = c.content(value.Content, rloc)

		if strings.EqualFold(code, "default") {
			out.Default = &resp
			continue
		}
		status, err := strconv.Atoi(code)
		if err != nil || status < 100 || status > 599 {
			c.diag.add(ErrInvalidStatus, rloc, "status %q is not a status code, skipping", code)
			continue
		}
		out.Specific = append(out.Specific, StatusResponse{Status: status, Response: resp})
	}
	return out
}
