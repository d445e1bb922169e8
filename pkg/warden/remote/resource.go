package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Meta describes the outcome of the operation that produced a resource.
type Meta struct {
	Href       string `json:"href,omitempty"`
	Status     string `json:"status,omitempty"`
	Verb       string `json:"verb,omitempty"`
	Message    string `json:"message,omitempty"`
	UIMessage  string `json:"uiMessage,omitempty"`
	DevMessage string `json:"devMessage,omitempty"`
}

// Resource wraps one entity returned by the authority.
type Resource[T any] struct {
	Entity T    `json:"entity"`
	Meta   Meta `json:"meta"`
}

// decodeResources accepts a list of resources or a single resource.
func decodeResources[T any](body []byte) ([]Resource[T], error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	if body[0] == '[' {
		var list []Resource[T]
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode resource list: %w", err)
		}
		return list, nil
	}

	var single Resource[T]
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	return []Resource[T]{single}, nil
}

// entities strips the envelopes.
func entities[T any](resources []Resource[T]) []T {
	out := make([]T, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.Entity)
	}
	return out
}

// errorMessage extracts a message from an error body, falling back to the
// raw text.
func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var generic []Resource[json.RawMessage]
	if resources, err := decodeResources[json.RawMessage](body); err == nil {
		generic = resources
	}
	for _, r := range generic {
		for _, msg := range []string{r.Meta.DevMessage, r.Meta.Message, r.Meta.UIMessage} {
			if msg != "" {
				return msg
			}
		}
	}

	var plain struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &plain); err == nil && plain.Message != "" {
		return plain.Message
	}

	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	return string(body)
}
