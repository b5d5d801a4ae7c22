package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// JSONExtractor flattens arbitrary JSON into readable "path: value" lines.
// Objects use dotted paths for nesting; arrays of primitives are joined,
// arrays of objects iterated.
type JSONExtractor struct{}

var _ Extractor = JSONExtractor{}

func (JSONExtractor) Extract(content []byte) (string, error) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return "", nil
	}

	var data any
	if err := json.Unmarshal(content, &data); err != nil {
		return "", fmt.Errorf("parse json: %w", err)
	}

	var lines []string
	flattenJSON("", data, &lines)
	return strings.Join(lines, "\n"), nil
}

func flattenJSON(prefix string, v any, lines *[]string) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenJSON(key, val[k], lines)
		}
	case []any:
		if jsonAllPrimitive(val) {
			strs := make([]string, len(val))
			for i, item := range val {
				strs[i] = jsonFormatValue(item)
			}
			*lines = append(*lines, fmt.Sprintf("%s: %s", prefix, strings.Join(strs, ", ")))
		} else {
			for _, item := range val {
				flattenJSON(prefix, item, lines)
			}
		}
	case nil:
		// skip nulls
	default:
		label := prefix
		if label == "" {
			label = "value"
		}
		*lines = append(*lines, fmt.Sprintf("%s: %s", label, jsonFormatValue(val)))
	}
}

func jsonAllPrimitive(arr []any) bool {
	for _, v := range arr {
		switch v.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func jsonFormatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}
