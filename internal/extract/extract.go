// Package extract pulls a single structured object out of freeform model
// output. Models wrap JSON in markdown fences, prepend prose, and sometimes
// truncate mid-object; every caller gets either a typed value or a ParseError
// carrying enough of the offending text to diagnose the failure.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// snippetLen bounds how much of the offending text a ParseError carries.
const snippetLen = 500

// ParseError reports that model output did not contain valid structured data.
type ParseError struct {
	Err     error
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract: %v (text: %s)", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Object extracts a JSON object of type T from text. It tolerates markdown
// code fences, surrounding prose, and truncated output (unclosed braces are
// repaired before the final parse attempt).
func Object[T any](text string) (T, error) {
	var out T

	cleaned := cleanJSON(text)
	if cleaned == "" {
		return out, &ParseError{Err: fmt.Errorf("no JSON object found"), Snippet: snippet(text)}
	}

	if err := json.Unmarshal([]byte(cleaned), &out); err == nil {
		return out, nil
	}

	// Second chance: the model may have run out of tokens mid-object.
	repaired := repairTruncatedJSON(cleaned)
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		var zero T
		return zero, &ParseError{Err: err, Snippet: snippet(text)}
	}
	return out, nil
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if idx := strings.Index(text, "```json"); idx >= 0 {
		// Fenced block buried in prose.
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	} else if start >= 0 {
		// Truncated output: keep from the opening brace and let the repair
		// pass close it.
		text = text[start:]
	} else {
		return ""
	}

	return strings.TrimSpace(text)
}

// repairTruncatedJSON closes unterminated strings, objects, and arrays in
// JSON that was cut off mid-generation.
func repairTruncatedJSON(text string) string {
	if len(text) == 0 {
		return text
	}

	// Track open delimiters in order.
	var stack []byte
	inString := false
	escape := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escape {
			escape = false
			continue
		}

		if c == '\\' && inString {
			escape = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		switch c {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		text += `"`
	}

	// Close unclosed delimiters in reverse order.
	for i := len(stack) - 1; i >= 0; i-- {
		// Trim trailing comma before closing (common in truncated arrays).
		text = strings.TrimRight(text, " \t\n\r,")
		text += string(stack[i])
	}

	return text
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > snippetLen {
		return text[:snippetLen]
	}
	return text
}
