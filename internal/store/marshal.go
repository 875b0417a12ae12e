package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
)

// marshalStep converts a step to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalStep(st revlog.Step) (string, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshal step: %w", err)
	}
	v, err := ir.UnmarshalIRValue(raw)
	if err != nil {
		return "", fmt.Errorf("marshal step: %w", err)
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal step: %w", err)
	}
	return string(data), nil
}

// unmarshalStep parses a stored step. Hole values decode through
// ir.UnmarshalIRValue, which keeps large integers exact.
func unmarshalStep(data string) (revlog.Step, error) {
	var st revlog.Step
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return revlog.Step{}, fmt.Errorf("unmarshal step: %w", err)
	}
	return st, nil
}
