// Package decode turns untrusted, free-form model responses into validated
// JSON objects. It never panics; every failure is reported as an error.
package decode

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNoObject is returned when no parse strategy yields a value.
	ErrNoObject = errors.New("decode: no structured object in response")
	// ErrNotObject is returned when the response parses but is not a JSON object.
	ErrNotObject = errors.New("decode: parsed value is not an object")
)

// Tier names the strategy that produced a successful decode.
type Tier string

const (
	TierStrict    Tier = "strict"
	TierSubstring Tier = "substring"
	TierLiteral   Tier = "literal"
)

// fenceRe matches a markdown code fence block (``` or ~~~) with an optional
// language tag and captures the content between the fences.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")

// openFenceRe matches only an opening fence line, for truncated responses.
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")

// StripFences trims s and removes a code fence wrapping the whole text.
// A lone opening fence (the response was cut off before the closing one) is
// stripped too.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(strings.TrimRight(s[loc[1]:], "`~ \n\t"))
	}
	return s
}

// Object decodes raw into a JSON object using, in order: a strict parse of the
// fence-stripped text, a strict parse of the outermost {...} substring, and a
// permissive literal parse of that substring.
func Object(raw string) (map[string]any, error) {
	m, _, err := ObjectTier(raw)
	return m, err
}

// ObjectTier is Object but also reports which strategy succeeded.
func ObjectTier(raw string) (map[string]any, Tier, error) {
	cleaned := StripFences(raw)

	if v, err := strict(cleaned); err == nil {
		m, err := asObject(v)
		return m, TierStrict, err
	}

	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start == -1 || end == -1 || start >= end {
		return nil, "", ErrNoObject
	}
	inner := cleaned[start : end+1]

	if v, err := strict(inner); err == nil {
		m, err := asObject(v)
		return m, TierSubstring, err
	}

	if v, err := strict(Literal(inner)); err == nil {
		m, err := asObject(v)
		return m, TierLiteral, err
	}

	return nil, "", ErrNoObject
}

// Into decodes raw with Object, conforms the object to T and converts it.
// Mistyped fields come back as issues rather than errors; only a response
// with no usable object fails.
func Into[T any](raw string) (T, []FieldIssue, error) {
	var out T
	m, err := Object(raw)
	if err != nil {
		return out, nil, err
	}
	m, issues := Conform(m, &out)
	err = Convert(m, &out)
	return out, issues, err
}

// Convert re-encodes an already decoded object into a typed destination.
func Convert(m map[string]any, dst any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// strict parses s as exactly one JSON value; trailing data is an error.
func strict(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func asObject(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return m, nil
}
