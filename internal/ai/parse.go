package ai

import (
	"encoding/json"
	"strings"
)

// parseJSONObject pulls the first JSON object out of model output and
// unmarshals it into dest. Models wrap JSON in prose and code fences often
// enough that a plain Unmarshal is not worth attempting first.
func parseJSONObject(raw string, dest interface{}) error {
	cleaned := stripCodeFences(raw)
	obj := extractFirstJSONObject(cleaned)
	if obj == "" {
		return json.Unmarshal([]byte(cleaned), dest)
	}
	return json.Unmarshal([]byte(obj), dest)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// extractFirstJSONObject scans for the first balanced top-level JSON
// object, respecting string literals and escapes. Returns "" when none is
// found.
func extractFirstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
