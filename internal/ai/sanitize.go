package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// WarningSanitizedJSON marks results recovered from a non-conforming response.
const WarningSanitizedJSON = "sanitized-json-fallback"

var (
	anchoredFence = regexp.MustCompile("(?s)^```(?:json|JSON)?[ \\t]*\\r?\\n?(.*?)\\s*```$")
	anyFence      = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\r?\\n?(.*?)```")
)

// ExtractJSON recovers a single top level JSON object or array from a model
// response that failed strict parsing. It tries, in order, a fence wrapping the
// whole response, a fence anywhere in the text, and finally a bracket scan from
// the first '{' or '['. The scan ignores brackets inside string literals.
func ExtractJSON(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	if m := anchoredFence.FindStringSubmatch(trimmed); m != nil {
		if candidate := strings.TrimSpace(m[1]); json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}

	for _, m := range anyFence.FindAllStringSubmatch(trimmed, -1) {
		if candidate := strings.TrimSpace(m[1]); json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}

	return scanBalanced(trimmed)
}

func scanBalanced(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}

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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
