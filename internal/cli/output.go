package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lazypower/strata/internal/apperror"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseProps decodes a --props flag value. Empty means no properties.
func parseProps(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, apperror.NewValidation(fmt.Sprintf("--props must be a JSON object: %v", err))
	}
	return props, nil
}
