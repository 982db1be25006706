package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/formdeps/internal/ir"
)

// marshalPayload converts a row payload to canonical JSON TEXT for storage.
func marshalPayload(v any) (string, error) {
	data, err := ir.CanonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func unmarshalMutation(data string) (ir.Mutation, error) {
	var m ir.Mutation
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return ir.Mutation{}, fmt.Errorf("unmarshal mutation: %w", err)
	}
	m.Value = ir.Normalize(m.Value)
	return m, nil
}

func unmarshalEvent(data string) (ir.Event, error) {
	var ev ir.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return ir.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}

func unmarshalDiagnostic(data string) (ir.Diagnostic, error) {
	var d ir.Diagnostic
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return ir.Diagnostic{}, fmt.Errorf("unmarshal diagnostic: %w", err)
	}
	return d, nil
}

// unmarshalVisited parses the canonical JSON array of visited field ids.
// Returns an empty slice (not nil) for an empty array.
func unmarshalVisited(data string) ([]string, error) {
	visited := []string{}
	if data == "" || data == "[]" {
		return visited, nil
	}
	if err := json.Unmarshal([]byte(data), &visited); err != nil {
		return nil, fmt.Errorf("unmarshal visited: %w", err)
	}
	return visited, nil
}
