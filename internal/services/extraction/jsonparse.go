package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	errEmptyPayload = errors.New("empty payload")

	fencedJSONBlock  = regexp.MustCompile("(?s)```json\\s*(.+?)\\s*```")
	fencedBlock      = regexp.MustCompile("(?s)```\\s*(.+?)\\s*```")
	trailingComma    = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKey      = regexp.MustCompile(`([{,]\s*)([A-Za-z_]\w*)(\s*:)`)
	controlCharacter = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// decodeLenient decodes model output that may be wrapped in a markdown fence,
// surrounded by prose, or carry small syntax slips such as trailing commas.
// Candidates are tried from most to least literal.
func decodeLenient(input []byte, target any) error {
	s := strings.TrimSpace(strings.TrimPrefix(string(input), "\ufeff"))
	if s == "" {
		return errEmptyPayload
	}

	candidates := []string{s}
	if fenced := fromFence(s); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if start := strings.Index(s, "{"); start >= 0 {
		if obj := balancedObject(s[start:]); obj != "" {
			candidates = append(candidates, obj)
		}
	}
	candidates = append(candidates, repair(s))

	for _, c := range candidates {
		if err := json.Unmarshal([]byte(c), target); err == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to parse JSON from payload: %s", truncate(s, 100))
}

func fromFence(s string) string {
	if m := fencedJSONBlock.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if m := fencedBlock.FindStringSubmatch(s); len(m) > 1 {
		content := strings.TrimSpace(m[1])
		if strings.HasPrefix(content, "{") {
			return content
		}
	}
	return ""
}

// balancedObject returns the first complete {...} in s, honouring strings
// and escapes. s must start at the opening brace.
func balancedObject(s string) string {
	depth := 0
	inString := false
	escape := false
	for i, ch := range s {
		switch {
		case escape:
			escape = false
		case ch == '\\':
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func repair(s string) string {
	if obj := balancedObject(s[max(strings.Index(s, "{"), 0):]); obj != "" {
		s = obj
	}
	s = trailingComma.ReplaceAllString(s, "$1")
	s = unquotedKey.ReplaceAllString(s, `$1"$2"$3`)
	return controlCharacter.ReplaceAllString(s, "")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
