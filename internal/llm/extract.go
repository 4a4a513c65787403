package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrResponseMalformed means no JSON value could be found in a response.
var ErrResponseMalformed = errors.New("model response is not valid JSON")

const previewRunes = 200

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

// ExtractJSON pulls a JSON document out of model text. It tries, in order: a
// fenced code block, the whole text, the first balanced object embedded in
// prose, then the first balanced array. The result is compact JSON.
func ExtractJSON(text string) (json.RawMessage, error) {
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if raw, ok := compact(m[1]); ok {
			return raw, nil
		}
	}
	if raw, ok := compact(text); ok {
		return raw, nil
	}
	for _, open := range []byte{'{', '['} {
		if raw, ok := firstEmbedded(text, open); ok {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrResponseMalformed, Preview(text))
}

// firstEmbedded returns the first balanced value opening with open that
// parses.
func firstEmbedded(text string, open byte) (json.RawMessage, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != open {
			continue
		}
		end := balancedEnd(text, i)
		if end < 0 {
			continue
		}
		if raw, ok := compact(text[i : end+1]); ok {
			return raw, true
		}
	}
	return nil, false
}

func compact(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return out, true
}

// balancedEnd returns the index closing the bracket at start, honoring JSON
// strings, or -1.
func balancedEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Preview returns the first runes of s for error messages.
func Preview(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes]) + "..."
}
