// Package sector defines the closed set of memory sectors and the rule engine
// that assigns one to every edge.
package sector

import (
	"fmt"
	"strings"
)

// Sector is the memory sector of an edge. It governs how fast the edge's
// relevance decays. The zero value is not a valid sector; use Normalize to
// read stored values.
type Sector string

const (
	Emotional  Sector = "emotional"
	Episodic   Sector = "episodic"
	Semantic   Sector = "semantic"
	Procedural Sector = "procedural"
	Reflective Sector = "reflective"
)

// Default is assumed for edges written before sectors existed.
const Default = Semantic

// all is in display order. Keep in sync with the switch in Valid.
var all = []Sector{Emotional, Episodic, Semantic, Procedural, Reflective}

// All returns every legal sector.
func All() []Sector {
	out := make([]Sector, len(all))
	copy(out, all)
	return out
}

// Names returns the legal sector names, for error messages.
func Names() []string {
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = string(s)
	}
	return out
}

// Valid reports whether s is one of the five legal sectors.
func (s Sector) Valid() bool {
	switch s {
	case Emotional, Episodic, Semantic, Procedural, Reflective:
		return true
	}
	return false
}

func (s Sector) String() string { return string(s) }

// Parse validates a caller-supplied sector. Matching is exact: "Emotional" is
// rejected rather than folded, so stored values are always lowercase.
func Parse(raw string) (Sector, error) {
	s := Sector(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid memory sector %q (legal: %s)", raw, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Normalize maps a stored value to a sector. Empty or unknown values read as
// Default so legacy rows keep working.
func Normalize(raw string) Sector {
	s := Sector(raw)
	if s.Valid() {
		return s
	}
	return Default
}

// ParseList validates a sector filter. A nil input stays nil (no filter); an
// empty, non-nil input stays empty (match nothing).
func ParseList(raw []string) ([]Sector, error) {
	if raw == nil {
		return nil, nil
	}
	out := make([]Sector, 0, len(raw))
	for _, r := range raw {
		s, err := Parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
