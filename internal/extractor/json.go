package extractor

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseJSON pulls a JSON object out of a model reply. Models answer
// with bare JSON, fenced code blocks, or JSON buried in prose; all
// three are handled.
func ParseJSON(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return result, true
	}

	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &result); err == nil {
			return result, true
		}
	}

	// Last resort: the outermost brace span
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &result); err == nil {
			return result, true
		}
	}

	return nil, false
}
