package textgen

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/listenupapp/shelfwise/internal/errors"
)

// fencedBlock matches a fenced code block, optionally tagged json.
var fencedBlock = regexp.MustCompile("(?s)```[ \t]*(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// ExtractJSON pulls a JSON value out of model output. It tries, in order:
// the whole text, the contents of each fenced code block, and the first
// balanced {...} or [...] span. It returns a parse error if none is valid JSON.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.Parse("empty response")
	}

	if json.Valid([]byte(trimmed)) {
		return compact(trimmed), nil
	}

	for _, m := range fencedBlock.FindAllStringSubmatch(trimmed, -1) {
		if body := strings.TrimSpace(m[1]); body != "" && json.Valid([]byte(body)) {
			return compact(body), nil
		}
	}

	if span, ok := balancedSpan(trimmed); ok {
		return compact(span), nil
	}

	return nil, errors.Parsef("no JSON found in response: %s", snippet(trimmed))
}

// Decode extracts JSON from text and unmarshals it into a T.
func Decode[T any](text string) (T, error) {
	var v T
	raw, err := ExtractJSON(text)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrap(err, errors.CodeParse, "response JSON has the wrong shape")
	}
	return v, nil
}

// balancedSpan returns the first {...} or [...] span whose brackets balance
// and which parses as JSON. Brackets inside string literals are ignored.
func balancedSpan(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' && s[start] != '[' {
			continue
		}
		end, ok := matchBracket(s, start)
		if !ok {
			continue
		}
		if candidate := s[start : end+1]; json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// matchBracket returns the index of the bracket closing the one at s[start].
func matchBracket(s string, start int) (int, bool) {
	var stack []byte
	inString, escaped := false, false

	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func compact(s string) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return json.RawMessage(s)
	}
	return buf.Bytes()
}
