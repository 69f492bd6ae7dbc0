// Package decay holds the per-sector forgetting-curve parameters and the
// relevance scorer built on them.
//
// Configuration is cold: it is read once at startup, never mutated, and
// handed to every consumer. Changing it requires a restart.
package decay

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lazypower/strata/internal/logger"
	"github.com/lazypower/strata/internal/metrics"
	"github.com/lazypower/strata/internal/sector"
)

// loadBudget is the wall-clock budget for Load, fallback included.
const loadBudget = time.Second

// SectorDecay is the forgetting-curve parameters of one sector.
type SectorDecay struct {
	// SBase is the base strength in days. Larger means slower decay.
	SBase float64 `json:"S_base" yaml:"s_base"`
	// SFloor is the minimum strength in days, or nil for no floor.
	SFloor *float64 `json:"S_floor" yaml:"s_floor"`
}

// Config is an immutable sector -> SectorDecay table with exactly one entry
// per sector.
type Config struct {
	sectors map[sector.Sector]SectorDecay
	source  string
}

func floor(v float64) *float64 { return &v }

// Defaults returns the built-in parameters.
func Defaults() *Config {
	return &Config{
		source: "defaults",
		sectors: map[sector.Sector]SectorDecay{
			sector.Emotional:  {SBase: 200, SFloor: floor(150)},
			sector.Episodic:   {SBase: 150, SFloor: floor(100)},
			sector.Procedural: {SBase: 120},
			sector.Reflective: {SBase: 180, SFloor: floor(120)},
			sector.Semantic:   {SBase: 100},
		},
	}
}

// New validates params and builds a Config from them.
func New(params map[sector.Sector]SectorDecay) (*Config, error) {
	if err := validate(params); err != nil {
		return nil, err
	}
	cfg := &Config{source: "custom", sectors: make(map[sector.Sector]SectorDecay, len(params))}
	for s, d := range params {
		cfg.sectors[s] = copyDecay(d)
	}
	return cfg, nil
}

// For returns the parameters of s. Unknown sectors read as the default sector.
func (c *Config) For(s sector.Sector) SectorDecay {
	d, ok := c.sectors[s]
	if !ok {
		d = c.sectors[sector.Default]
	}
	return copyDecay(d)
}

// Sectors returns a copy of the whole table.
func (c *Config) Sectors() map[sector.Sector]SectorDecay {
	out := make(map[sector.Sector]SectorDecay, len(c.sectors))
	for s, d := range c.sectors {
		out[s] = copyDecay(d)
	}
	return out
}

// Source describes where the table came from: "defaults", "custom" or a file path.
func (c *Config) Source() string { return c.source }

func copyDecay(d SectorDecay) SectorDecay {
	if d.SFloor != nil {
		d.SFloor = floor(*d.SFloor)
	}
	return d
}

// fileFormat is the on-disk layout. JSON files parse too, since JSON is a
// subset of YAML.
//
//	sectors:
//	  emotional: {s_base: 200, s_floor: 150}
//	  semantic:  {s_base: 100, s_floor: null}
type fileFormat struct {
	Sectors map[string]SectorDecay `yaml:"sectors"`
}

// Load reads the decay table from path. It never fails: a missing or
// unreadable file, bad YAML, or an incomplete or invalid table all fall back
// to Defaults with a warning. An empty path selects Defaults silently.
func Load(path string, log *slog.Logger) *Config {
	log = logger.OrDiscard(log)
	log = log.With(logger.Scope("decay"))
	start := time.Now()

	cfg, err := loadFile(path)
	elapsed := time.Since(start)
	switch {
	case path == "":
		cfg = Defaults()
	case err != nil:
		metrics.DecayConfigFallbacks.Inc()
		log.Warn("decay config unusable, using defaults",
			slog.String("path", path),
			logger.Error(err),
		)
		cfg = Defaults()
	default:
		log.Info("decay config loaded", slog.String("path", path), slog.Duration("elapsed", elapsed))
	}
	if elapsed > loadBudget {
		log.Warn("decay config load exceeded budget",
			slog.Duration("elapsed", elapsed),
			slog.Duration("budget", loadBudget),
		)
	}
	return cfg
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("no path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	params := make(map[sector.Sector]SectorDecay, len(f.Sectors))
	for name, d := range f.Sectors {
		s, err := sector.Parse(name)
		if err != nil {
			return nil, err
		}
		params[s] = d
	}

	cfg, err := New(params)
	if err != nil {
		return nil, err
	}
	cfg.source = path
	return cfg, nil
}

func validate(params map[sector.Sector]SectorDecay) error {
	for _, s := range sector.All() {
		d, ok := params[s]
		if !ok {
			return fmt.Errorf("missing sector %q", s)
		}
		if !(d.SBase > 0) {
			return fmt.Errorf("sector %q: s_base must be > 0, got %v", s, d.SBase)
		}
		if d.SFloor != nil && *d.SFloor < 0 {
			return fmt.Errorf("sector %q: s_floor must be >= 0, got %v", s, *d.SFloor)
		}
	}
	if len(params) != len(sector.All()) {
		return fmt.Errorf("expected %d sectors, got %d", len(sector.All()), len(params))
	}
	return nil
}
