package sector

import (
	"log/slog"

	"github.com/lazypower/strata/internal/logger"
	"github.com/lazypower/strata/internal/metrics"
)

// Rule names the classification rule that produced a sector.
type Rule string

const (
	RuleEmotionalValence   Rule = "emotional_valence"
	RuleSharedExperience   Rule = "shared_experience"
	RuleProceduralRelation Rule = "procedural_relation"
	RuleReflectiveRelation Rule = "reflective_relation"
	RuleDefault            Rule = "default"
)

// Reserved property keys read by the classifier.
const (
	PropEmotionalValence = "emotional_valence"
	PropContextType      = "context_type"
)

const contextSharedExperience = "shared_experience"

var (
	proceduralRelations = map[string]bool{"LEARNED": true, "CAN_DO": true}
	reflectiveRelations = map[string]bool{"REFLECTS": true, "REFLECTS_ON": true, "REALIZED": true}
)

// Result is a classification and the rule that matched.
type Result struct {
	Sector Sector `json:"memory_sector"`
	Rule   Rule   `json:"rule"`
}

// Classify assigns a sector to an edge. First match wins:
//
//  1. emotional_valence present -> emotional
//  2. context_type == "shared_experience" -> episodic
//  3. relation LEARNED or CAN_DO -> procedural
//  4. relation REFLECTS, REFLECTS_ON or REALIZED -> reflective
//  5. semantic
//
// Classify is pure. It does not log or mutate props.
func Classify(relation string, props map[string]any) Result {
	if v, ok := props[PropEmotionalValence]; ok && v != nil {
		return Result{Sector: Emotional, Rule: RuleEmotionalValence}
	}
	if ct, ok := props[PropContextType].(string); ok && ct == contextSharedExperience {
		return Result{Sector: Episodic, Rule: RuleSharedExperience}
	}
	if proceduralRelations[relation] {
		return Result{Sector: Procedural, Rule: RuleProceduralRelation}
	}
	if reflectiveRelations[relation] {
		return Result{Sector: Reflective, Rule: RuleReflectiveRelation}
	}
	return Result{Sector: Semantic, Rule: RuleDefault}
}

// Classifier is Classify plus a diagnostic side channel (debug log and a
// counter). The side channel never changes the result.
type Classifier struct {
	log *slog.Logger
}

// NewClassifier returns a Classifier that reports to log. A nil logger
// disables the log record; the counter is always updated.
func NewClassifier(log *slog.Logger) *Classifier {
	log = logger.OrDiscard(log)
	return &Classifier{log: log.With(logger.Scope("sector"))}
}

// Classify classifies and records the decision.
func (c *Classifier) Classify(relation string, props map[string]any) Result {
	res := Classify(relation, props)
	metrics.SectorClassifications.WithLabelValues(string(res.Sector), string(res.Rule)).Inc()
	c.log.Debug("memory sector classified",
		slog.String("relation", relation),
		slog.String("sector", string(res.Sector)),
		slog.String("rule", string(res.Rule)),
	)
	return res
}
