// Package jsonx recovers JSON from raw language-model output. Generators
// routinely wrap JSON in prose or markdown fences, so decoding runs a fixed
// three-stage pipeline: parse as-is, parse the first fenced code block, then
// parse the first balanced top-level object span. Each stage is pure and
// exported for direct testing.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports that no recovery stage produced valid JSON. It is
// distinct from schema-level validation failures, which callers raise after
// a successful decode.
type ParseError struct {
	Stage string // last stage attempted
	Err   error  // underlying decode error from that stage
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("jsonx: unparseable model output (last stage %s): %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decode unmarshals raw into v, running the recovery pipeline in order.
func Decode(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &ParseError{Stage: "direct", Err: fmt.Errorf("empty input")}
	}

	directErr := json.Unmarshal([]byte(trimmed), v)
	if directErr == nil {
		return nil
	}
	lastStage, lastErr := "direct", directErr

	if block, ok := ExtractFencedBlock(trimmed); ok {
		if err := json.Unmarshal([]byte(block), v); err == nil {
			return nil
		} else {
			lastStage, lastErr = "fenced", err
		}
	}

	if span, ok := ExtractObjectSpan(trimmed); ok {
		if err := json.Unmarshal([]byte(span), v); err == nil {
			return nil
		} else {
			lastStage, lastErr = "brace-span", err
		}
	}

	return &ParseError{Stage: lastStage, Err: lastErr}
}

// ExtractFencedBlock returns the contents of the first ``` fenced block,
// tolerating an optional language hint after the opening fence.
func ExtractFencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}
	rest := raw[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language hint line ("json", "JSON", or empty).
		hint := strings.TrimSpace(rest[:nl])
		if hint == "" || len(hint) <= 8 && !strings.ContainsAny(hint, "{}") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	content := strings.TrimSpace(rest[:end])
	if content == "" {
		return "", false
	}
	return content, true
}

// ExtractObjectSpan returns the first balanced top-level {...} span. Brace
// counting is string-aware so braces inside JSON strings do not break the
// match.
func ExtractObjectSpan(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
