// Package parser turns free-form completion text into structured data.
//
// JSON extraction is a plain brace counter starting at the first '{'. It does
// not understand JSON strings, so a lone '}' inside a quoted value closes the
// block early. Classification completions run in JSON mode and return a single
// object, which keeps this safe in practice.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoJSON        = errors.New("no json object found")
	ErrUnbalanced    = errors.New("json object not closed")
	ErrInvalidJSON   = errors.New("invalid json")
	ErrMarkerMissing = errors.New("marker missing")
)

const (
	MaliciousMarker = "// MALICIOUS CONTRACT"
	SafeMarker      = "// SAFE CONTRACT"
)

// Error keeps the raw completion text next to the failure.
type Error struct {
	Kind error
	Raw  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, raw string, cause error) *Error {
	return &Error{Kind: kind, Raw: raw, Err: cause}
}

// ExtractJSON returns the first brace-balanced block of text and the text that
// follows it.
func ExtractJSON(text string) (block string, rest string, err error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", "", newError(ErrNoJSON, text, nil)
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], text[i+1:], nil
			}
		}
	}
	return "", "", newError(ErrUnbalanced, text, nil)
}

// DecodeObject extracts and decodes the first JSON object in text. Numbers are
// kept as json.Number.
func DecodeObject(text string) (map[string]any, error) {
	block, _, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(block)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, newError(ErrInvalidJSON, text, err)
	}
	return out, nil
}

// ExtractCode returns the trimmed text between startMarker and endMarker. With
// an empty or absent endMarker it runs to the end of rest.
func ExtractCode(rest, startMarker, endMarker string) (string, error) {
	idx := strings.Index(rest, startMarker)
	if idx < 0 {
		return "", newError(ErrMarkerMissing, rest, fmt.Errorf("%q not found", startMarker))
	}
	body := rest[idx+len(startMarker):]
	if endMarker != "" {
		if end := strings.Index(body, endMarker); end >= 0 {
			body = body[:end]
		}
	}
	return strings.TrimSpace(body), nil
}

// Generation is a parsed contract generation completion.
type Generation struct {
	Metadata  map[string]any
	Malicious string
	// Safe is empty when the completion has no safe variant.
	Safe string
}

func ParseGeneration(text string) (*Generation, error) {
	block, rest, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	meta, err := DecodeObject(block)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.Raw = text
		}
		return nil, err
	}
	malicious, err := ExtractCode(rest, MaliciousMarker, SafeMarker)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.Raw = text
		}
		return nil, err
	}
	if malicious == "" {
		return nil, newError(ErrMarkerMissing, text, fmt.Errorf("empty malicious contract"))
	}
	gen := &Generation{Metadata: meta, Malicious: malicious}
	if safe, err := ExtractCode(rest, SafeMarker, ""); err == nil {
		gen.Safe = safe
	}
	return gen, nil
}
