package translate

import (
	"encoding/json"
	"strings"
)

// stringifyToolResult renders an Anthropic tool_result block's content (which
// may be null, a string, a list, or an object) to the flat string OpenAI-dialect
// tool/user messages require. No element is dropped; anything that cannot be
// rendered becomes the literal "Unparseable content" per spec.md §4.1 step 3.
func stringifyToolResult(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "No content provided"
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, stringifyToolResultElement(item))
		}
		return strings.TrimRight(strings.Join(parts, "\n"), " \t\n")
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		if t, ok := obj["type"]; ok && t == "text" {
			if text, ok := obj["text"].(string); ok {
				return text
			}
		}
		return string(raw)
	}

	return "Unparseable content"
}

// stringifyToolResultElement renders one element of a tool_result content list:
// a text block's text, a bare string, a dict with a "text" field, any other
// dict JSON-encoded, or a coerced string for anything else.
func stringifyToolResultElement(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		if text, ok := obj["text"].(string); ok {
			return text
		}
		return string(raw)
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return string(raw)
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return string(raw)
	}

	return "Unparseable content"
}
