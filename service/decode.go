package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeModelJSON parses a JSON object out of raw model output. Markdown
// fences and prose around the object are tolerated.
func decodeModelJSON(raw string, v interface{}) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fmt.Errorf("%w: empty output", ErrParse)
	}

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return fmt.Errorf("%w: no JSON object found", ErrParse)
		}
		s = s[start : end+1]
	}

	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}

func truncateRunes(s string, n int) (string, bool) {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}

// boundText cuts s to at most n runes including the "..." suffix,
// preferring to cut at the last whitespace
func boundText(s string, n int) string {
	if n <= 3 || len([]rune(s)) <= n {
		return s
	}
	cut, _ := truncateRunes(s, n-3)
	if i := strings.LastIndexAny(cut, " \n\t"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}
