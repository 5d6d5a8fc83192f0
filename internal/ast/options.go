package ast

import (
	"regexp"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-openapi/jsonpointer"
)

// KeyOrder reports the declaration order of the keys of the mapping found at
// a JSON pointer of the source document. It returns nil when unknown.
type KeyOrder interface {
	Keys(pointer string) []string
}

// Option configures AsAST.
type Option func(*config)

type config struct {
	order       KeyOrder
	log         logr.Logger
	namedRefs   bool
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[Method]struct{}
	pathRes     []*regexp.Regexp
}

// WithKeyOrder supplies the source order of mapping keys. Without it keys are
// visited in sorted order.
func WithKeyOrder(o KeyOrder) Option {
	return func(c *config) { c.order = o }
}

func WithLogger(l logr.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithNamedRefs makes every $ref to a component schema come out as a Ref
// instead of the registry's shared value.
func WithNamedRefs() Option {
	return func(c *config) { c.namedRefs = true }
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) Option {
	return func(c *config) {
		for _, t := range tags {
			if t = strings.TrimSpace(t); t != "" {
				if c.includeTags == nil {
					c.includeTags = make(map[string]struct{}, len(tags))
				}
				c.includeTags[t] = struct{}{}
			}
		}
	}
}

// WithExcludeTags drops operations that have any of the given tags.
func WithExcludeTags(tags []string) Option {
	return func(c *config) {
		for _, t := range tags {
			if t = strings.TrimSpace(t); t != "" {
				if c.excludeTags == nil {
					c.excludeTags = make(map[string]struct{}, len(tags))
				}
				c.excludeTags[t] = struct{}{}
			}
		}
	}
}

// WithMethods keeps only operations using one of the given methods.
func WithMethods(methods []Method) Option {
	return func(c *config) {
		if len(methods) == 0 {
			return
		}
		if c.methods == nil {
			c.methods = make(map[Method]struct{}, len(methods))
		}
		for _, m := range methods {
			c.methods[m] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches one of the regular
// expressions. An invalid pattern matches nothing.
func WithPathPatterns(patterns []string) Option {
	return func(c *config) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

func (c *config) allow(m Method, path string, tags []string) bool {
	if len(c.methods) > 0 {
		if _, ok := c.methods[m]; !ok {
			return false
		}
	}
	if len(c.pathRes) > 0 {
		matched := false
		for _, re := range c.pathRes {
			if re.MatchString(path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(c.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := c.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := c.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

// keys returns the keys of m in source order, followed by any key the order
// does not know about in sorted order.
func keys[V any](c *config, pointer string, m map[string]V) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	if c.order != nil {
		for _, k := range c.order.Keys(pointer) {
			if _, ok := m[k]; !ok {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	rest := make([]string, 0, len(m)-len(out))
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// child appends escaped reference tokens to a JSON pointer.
func child(pointer string, tokens ...string) string {
	var b strings.Builder
	b.WriteString(pointer)
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(jsonpointer.Escape(t))
	}
	return b.String()
}
