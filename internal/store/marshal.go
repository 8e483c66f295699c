package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalTags converts a tag map to JSON TEXT for storage.
// Go's json encoder sorts map keys, so equal maps give equal TEXT.
func marshalTags(tags map[string]any) (string, error) {
	if len(tags) == 0 {
		return "{}", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tags); err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalTags parses stored JSON TEXT into a tag map.
// Numbers decode as float64.
func unmarshalTags(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	var tags map[string]any
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}
