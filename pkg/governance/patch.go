package governance

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
)

// ApplyPatch applies an RFC 6902 JSON Patch document (ops) to doc, both
// given as raw JSON, and returns the patched document.
func ApplyPatch(doc, ops []byte) ([]byte, error) {
	patch, err := jsonpatch.DecodePatch(ops)
	if err != nil {
		return nil, fmt.Errorf("governance: decode json patch: %w", err)
	}
	out, err := patch.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("governance: apply json patch: %w", err)
	}
	return out, nil
}
