package decay

import (
	"log/slog"
	"math"
	"time"

	"github.com/lazypower/strata/internal/logger"
	"github.com/lazypower/strata/internal/metrics"
	"github.com/lazypower/strata/internal/sector"
)

const day = 24 * time.Hour

// Input is what the scorer needs to know about an edge.
type Input struct {
	Sector       sector.Sector // empty reads as sector.Default
	Constitutive bool
	AccessCount  int
	LastEngaged  *time.Time
}

// Scorer computes time-decayed relevance:
//
//	S     = S_base * (1 + ln(1 + access_count)), raised to S_floor if set
//	score = exp(-days_since_engaged / S), clamped to [0, 1]
//
// Constitutive edges and edges never engaged score 1.
type Scorer struct {
	cfg *Config
	log *slog.Logger
	now func() time.Time
}

// NewScorer returns a Scorer over cfg. A nil cfg uses Defaults.
func NewScorer(cfg *Config, log *slog.Logger) *Scorer {
	if cfg == nil {
		cfg = Defaults()
	}
	log = logger.OrDiscard(log)
	return &Scorer{cfg: cfg, log: log.With(logger.Scope("relevance")), now: time.Now}
}

// WithClock returns a copy of the scorer that reads time from now.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	cp := *s
	cp.now = now
	return &cp
}

// Reasons reported with each score.
const (
	ReasonConstitutive = "constitutive"
	ReasonNeverEngaged = "never_engaged"
	ReasonDecayed      = "decayed"
)

// Score returns the relevance of an edge in [0, 1].
func (s *Scorer) Score(in Input) float64 {
	sec := in.Sector
	if !sec.Valid() {
		sec = sector.Default
	}
	params := s.cfg.For(sec)

	accesses := in.AccessCount
	if accesses < 0 {
		accesses = 0
	}
	strength := params.SBase * (1 + math.Log1p(float64(accesses)))
	if params.SFloor != nil && strength < *params.SFloor {
		strength = *params.SFloor
	}

	delta := 0.0
	if in.LastEngaged != nil {
		delta = s.now().Sub(*in.LastEngaged).Hours() / day.Hours()
		if delta < 0 {
			delta = 0
		}
	}

	var score float64
	var reason string
	switch {
	case in.Constitutive:
		score, reason = 1.0, ReasonConstitutive
	case in.LastEngaged == nil:
		score, reason = 1.0, ReasonNeverEngaged
	default:
		score, reason = clamp(math.Exp(-delta/strength)), ReasonDecayed
	}

	metrics.RelevanceScores.WithLabelValues(string(sec)).Observe(score)
	s.log.Debug("relevance scored",
		slog.String("sector", string(sec)),
		slog.Float64("s", strength),
		slog.Float64("delta_days", delta),
		slog.Float64("score", score),
		slog.String("reason", reason),
	)
	return score
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
