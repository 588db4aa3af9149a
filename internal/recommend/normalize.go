package recommend

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// fallbackPool pads the result when the model yields too few usable
// suggestions.
var fallbackPool = []string{
	"Can you provide more technical details about this?",
	"What are some alternative approaches to this?",
	"Do you have any code examples I can look at?",
}

// normalize turns raw model output into 2-3 clean suggestion strings. It is
// total: whatever the input, the post-condition holds. Parse order: JSON
// array; the same with brackets added (models often drop them); line split
// stripping bullets, quotes, trailing commas and stray backslashes.
func normalize(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	suggestions := parseJSONArray(raw)
	if suggestions == nil {
		wrapped := "[" + strings.TrimSuffix(strings.TrimSpace(raw), ",") + "]"
		suggestions = parseJSONArray(wrapped)
	}
	if suggestions == nil {
		suggestions = parseLines(raw)
	}

	return enforceCount(suggestions)
}

func parseJSONArray(raw string) []string {
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil
	}
	var out []string
	for _, s := range arr {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		s := cleanLine(line)
		// Fragments under 2 runes are stray brackets or bullets, not
		// suggestions.
		if utf8.RuneCountInString(s) >= 2 {
			out = append(out, s)
		}
	}
	return out
}

func cleanLine(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "•")
	s = strings.TrimPrefix(s, "*")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ",")
	s = strings.Trim(s, `"`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.TrimSuffix(s, `\`)
	return strings.TrimSpace(s)
}

// enforceCount pads from the fixed pool and caps at 3, guaranteeing the
// 2-3 contract.
func enforceCount(suggestions []string) []string {
	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	for _, pad := range fallbackPool {
		if len(suggestions) >= 2 {
			break
		}
		if !contains(suggestions, pad) {
			suggestions = append(suggestions, pad)
		}
	}
	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return suggestions
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
