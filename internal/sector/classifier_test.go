package sector

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goldenSet is the labelled regression set. Every sector is covered and the
// classifier must get all of them right.
var goldenSet = []struct {
	relation string
	props    map[string]any
	want     Sector
}{
	{"EXPERIENCED", map[string]any{"emotional_valence": "positive"}, Emotional},
	{"FEELS_ABOUT", map[string]any{"emotional_valence": -0.7}, Emotional},
	{"LEARNED", map[string]any{"emotional_valence": "pride"}, Emotional},
	{"MISSES", map[string]any{"emotional_valence": "longing", "context_type": "shared_experience"}, Emotional},
	{"TRUSTS", map[string]any{"emotional_valence": 0.9}, Emotional},
	{"ATTENDED", map[string]any{"context_type": "shared_experience"}, Episodic},
	{"WITNESSED", map[string]any{"context_type": "shared_experience", "where": "Lisbon"}, Episodic},
	{"LEARNED", map[string]any{"context_type": "shared_experience"}, Episodic},
	{"REALIZED", map[string]any{"context_type": "shared_experience"}, Episodic},
	{"LEARNED", map[string]any{}, Procedural},
	{"CAN_DO", nil, Procedural},
	{"LEARNED", map[string]any{"context_type": "tutorial"}, Procedural},
	{"CAN_DO", map[string]any{"skill_level": "expert"}, Procedural},
	{"REFLECTS", map[string]any{}, Reflective},
	{"REFLECTS_ON", map[string]any{"depth": "high"}, Reflective},
	{"REALIZED", nil, Reflective},
	{"REFLECTS_ON", map[string]any{"context_type": "journal"}, Reflective},
	{"KNOWS", map[string]any{}, Semantic},
	{"DISCUSSED", map[string]any{"topic": "go generics"}, Semantic},
	{"WORKS_AT", nil, Semantic},
	{"learned", map[string]any{}, Semantic},
	{"IS_A", map[string]any{"context_type": "definition"}, Semantic},
	{"PART_OF", map[string]any{"emotional_valence": nil}, Semantic},
}

func TestClassifyGoldenSet(t *testing.T) {
	seen := make(map[Sector]bool)
	for _, tc := range goldenSet {
		got := Classify(tc.relation, tc.props)
		assert.Equal(t, tc.want, got.Sector, "Classify(%q, %v)", tc.relation, tc.props)
		seen[tc.want] = true
	}
	assert.GreaterOrEqual(t, len(goldenSet), 20)
	assert.Len(t, seen, len(All()), "golden set must span every sector")
}

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name     string
		relation string
		props    map[string]any
		want     Result
	}{
		{"valence wins", "LEARNED", map[string]any{"emotional_valence": "positive"}, Result{Emotional, RuleEmotionalValence}},
		{"shared experience", "KNOWS", map[string]any{"context_type": "shared_experience"}, Result{Episodic, RuleSharedExperience}},
		{"procedural", "CAN_DO", nil, Result{Procedural, RuleProceduralRelation}},
		{"reflective", "REALIZED", nil, Result{Reflective, RuleReflectiveRelation}},
		{"fallback", "DISCUSSED", nil, Result{Semantic, RuleDefault}},
		{"non-string context type", "KNOWS", map[string]any{"context_type": 3}, Result{Semantic, RuleDefault}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.relation, tt.props))
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	props := map[string]any{"context_type": "shared_experience", "note": "x"}
	first := Classify("ATTENDED", props)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, Classify("ATTENDED", props))
	}
	assert.Equal(t, map[string]any{"context_type": "shared_experience", "note": "x"}, props)
}

func TestClassifierMatchesClassify(t *testing.T) {
	c := NewClassifier(nil)
	for _, tc := range goldenSet {
		assert.Equal(t, Classify(tc.relation, tc.props), c.Classify(tc.relation, tc.props))
	}
}

func TestParse(t *testing.T) {
	for _, s := range All() {
		got, err := Parse(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	for _, bad := range []string{"", "Emotional", "EPISODIC", "working", " semantic"} {
		_, err := Parse(bad)
		assert.Error(t, err, "Parse(%q)", bad)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Semantic, Normalize(""))
	assert.Equal(t, Semantic, Normalize("bogus"))
	assert.Equal(t, Reflective, Normalize("reflective"))
}

func TestParseList(t *testing.T) {
	got, err := ParseList(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseList([]string{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = ParseList([]string{"emotional", "episodic"})
	require.NoError(t, err)
	assert.Equal(t, []Sector{Emotional, Episodic}, got)

	_, err = ParseList([]string{"emotional", "nope"})
	assert.Error(t, err)
}

func TestClassifierLogsDecision(t *testing.T) {
	var buf bytes.Buffer
	c := NewClassifier(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	c.Classify("LEARNED", map[string]any{"context_type": "tutorial"})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "memory sector classified", rec["msg"])
	assert.Equal(t, "LEARNED", rec["relation"])
	assert.Equal(t, "procedural", rec["sector"])
	assert.Equal(t, "procedural_relation", rec["rule"])
}

func TestClassifierWithinBudget(t *testing.T) {
	c := NewClassifier(slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))

	start := time.Now()
	for _, tc := range goldenSet {
		c.Classify(tc.relation, tc.props)
	}
	perCall := time.Since(start) / time.Duration(len(goldenSet))
	assert.Less(t, perCall, 10*time.Millisecond)
}

func BenchmarkClassify(b *testing.B) {
	props := map[string]any{"context_type": "shared_experience", "where": "Lisbon"}
	for i := 0; i < b.N; i++ {
		Classify("WITNESSED", props)
	}
}

func BenchmarkClassifier(b *testing.B) {
	c := NewClassifier(nil)
	props := map[string]any{"context_type": "shared_experience", "where": "Lisbon"}
	for i := 0; i < b.N; i++ {
		c.Classify("WITNESSED", props)
	}
}
