package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/brutus/internal/ir"
)

// marshalSignature converts a signature to canonical JSON TEXT for storage.
func marshalSignature(sig []ir.Type) (string, error) {
	if sig == nil {
		sig = []ir.Type{}
	}
	data, err := ir.MarshalCanonical(sig)
	if err != nil {
		return "", fmt.Errorf("marshal signature: %w", err)
	}
	return string(data), nil
}

// unmarshalSignature parses a stored signature.
func unmarshalSignature(data string) ([]ir.Type, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal signature: %w", err)
	}
	sig := make([]ir.Type, len(names))
	for i, n := range names {
		sig[i] = ir.Type(n)
	}
	return sig, nil
}
