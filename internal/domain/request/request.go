// Package request builds canonical query strings for the review API.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Kind identifies a remote operation supported by the review API.
type Kind string

// Supported request kinds.
const (
	Reviews Kind = "reviews"
	Scores  Kind = "scores"
)

// Query parameter names.
const (
	paramType    = "type"
	paramCourses = "courses"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == Reviews || k == Scores
}

// ParseKind maps a user-supplied name onto a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Request describes a single API call: a kind plus an optional,
// ordered course filter.
type Request struct {
	Kind    Kind
	Courses []string
}

// New returns a Request for kind filtered to courses.
func New(kind Kind, courses ...string) Request {
	return Request{Kind: kind, Courses: courses}
}

// String returns the canonical query string. See Serialize.
func (r Request) String() string {
	return join(r.components(), false)
}

// Encode returns the query string with every value percent-encoded, in the
// same component order as String. This is the form sent on the wire.
func (r Request) Encode() string {
	return join(r.components(), true)
}

// Serialize renders kind and courses as "type=<kind>[&courses=<json>]".
// The course list is embedded as a JSON array literal in input order and is
// not percent-encoded. An empty list drops the courses component.
func Serialize(kind Kind, courses ...string) string {
	return New(kind, courses...).String()
}

type component struct {
	key   string
	value string
}

func (r Request) components() []component {
	out := []component{{key: paramType, value: string(r.Kind)}}
	if len(r.Courses) > 0 {
		out = append(out, component{key: paramCourses, value: jsonArray(r.Courses)})
	}
	return out
}

func join(components []component, escape bool) string {
	parts := make([]string, len(components))
	for i, c := range components {
		v := c.value
		if escape {
			v = url.QueryEscape(v)
		}
		parts[i] = c.key + "=" + v
	}
	return strings.Join(parts, "&")
}

// jsonArray encodes courses the way a browser's JSON.stringify would:
// compact, without HTML escaping.
func jsonArray(courses []string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a []string cannot fail.
	_ = enc.Encode(courses)
	return strings.TrimSuffix(buf.String(), "\n")
}
