package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls the JSON object out of a model response. JSON mode makes
// fenced or prefixed output rare but some models still wrap the object, so
// the parser tolerates surrounding text by slicing from the first '{' to the
// last '}'.
func extractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty oracle response")
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("oracle response contains no json object")
	}
	return trimmed[start : end+1], nil
}

// decodeJSON extracts and unmarshals the JSON object in a model response.
func decodeJSON(raw string, target any) error {
	object, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(object), target); err != nil {
		return fmt.Errorf("decode oracle response: %w", err)
	}
	return nil
}

func cleanStrings(values []string) []string {
	var cleaned []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
