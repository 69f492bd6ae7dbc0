package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Reserved edge property keys.
const (
	PropIsConstitutive       = "is_constitutive"
	PropEdgeType             = "edge_type"
	PropLastReclassification = "last_reclassification"
	PropSupersededBy         = "superseded_by"
	EdgeTypeConstitutive     = "constitutive"
)

// IsConstitutive reports whether a property map marks its edge as
// constitutive: is_constitutive true (or "true"), or edge_type "constitutive".
func IsConstitutive(props map[string]any) bool {
	switch v := props[PropIsConstitutive].(type) {
	case bool:
		if v {
			return true
		}
	case string:
		if strings.EqualFold(v, "true") {
			return true
		}
	}
	if t, ok := props[PropEdgeType].(string); ok && t == EdgeTypeConstitutive {
		return true
	}
	return false
}

// mergeProperties overlays incoming on existing. Neither input is modified.
func mergeProperties(existing, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

func encodeProperties(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(b), nil
}

func decodeProperties(raw string) (map[string]any, error) {
	props := map[string]any{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	if props == nil {
		props = map[string]any{}
	}
	return props, nil
}

// normalizeFilter passes filter values through JSON so they compare equal to
// decoded column values (3 and 3.0 both become float64).
func normalizeFilter(filter map[string]any) (map[string]any, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	raw, err := encodeProperties(filter)
	if err != nil {
		return nil, err
	}
	return decodeProperties(raw)
}

// matchProperties is an AND of exact equality over every filter key.
func matchProperties(props, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := props[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
