package store

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/lazypower/strata/internal/sector"
)

// chain builds alice -knows-> bob -knows-> carol -knows-> dave.
func chain(t *testing.T, db *DB) map[string]*Node {
	t.Helper()
	names := []string{"alice", "bob", "carol", "dave"}
	nodes := make(map[string]*Node)
	for _, n := range names {
		nodes[n] = mustNode(t, db, "person", n)
	}
	for i := 0; i < len(names)-1; i++ {
		mustEdge(t, db, names[i], names[i+1], "knows", nil)
	}
	return nodes
}

func neighborNames(nbs []Neighbor) map[string]int {
	out := make(map[string]int, len(nbs))
	for _, nb := range nbs {
		out[nb.Node.Name] = nb.Depth
	}
	return out
}

func TestQueryNeighborsDepth(t *testing.T) {
	db := testDB(t)
	nodes := chain(t, db)
	ctx := context.Background()

	one, err := db.QueryNeighbors(ctx, NeighborQuery{NodeID: nodes["alice"].ID})
	if err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	if got := neighborNames(one); len(got) != 1 || got["bob"] != 1 {
		t.Errorf("depth 1 = %v, want bob@1", got)
	}

	three, err := db.QueryNeighbors(ctx, NeighborQuery{NodeID: nodes["alice"].ID, MaxDepth: 3})
	if err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	got := neighborNames(three)
	if got["bob"] != 1 || got["carol"] != 2 || got["dave"] != 3 {
		t.Errorf("depth 3 = %v", got)
	}
}

func TestQueryNeighborsDirection(t *testing.T) {
	db := testDB(t)
	nodes := chain(t, db)
	ctx := context.Background()
	bob := nodes["bob"].ID

	out, _ := db.QueryNeighbors(ctx, NeighborQuery{NodeID: bob, Direction: Outgoing})
	if got := neighborNames(out); len(got) != 1 || got["carol"] != 1 {
		t.Errorf("outgoing = %v, want carol", got)
	}
	in, _ := db.QueryNeighbors(ctx, NeighborQuery{NodeID: bob, Direction: Incoming})
	if got := neighborNames(in); len(got) != 1 || got["alice"] != 1 {
		t.Errorf("incoming = %v, want alice", got)
	}
	both, _ := db.QueryNeighbors(ctx, NeighborQuery{NodeID: bob, Direction: Both})
	if got := neighborNames(both); len(got) != 2 {
		t.Errorf("both = %v, want alice and carol", got)
	}
}

func TestQueryNeighborsSectorFilter(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alice := mustNode(t, db, "person", "alice")
	mustEdge(t, db, "alice", "bob", "trusts", map[string]any{"emotional_valence": 0.7})
	mustEdge(t, db, "alice", "go", "knows", nil)
	mustEdge(t, db, "alice", "deploy", "CAN_DO", nil)

	emotional, err := db.QueryNeighbors(ctx, NeighborQuery{
		NodeID: alice.ID, SectorFilter: []sector.Sector{sector.Emotional},
	})
	if err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	if got := neighborNames(emotional); len(got) != 1 || got["bob"] != 1 {
		t.Errorf("emotional = %v, want bob only", got)
	}
	for _, nb := range emotional {
		if nb.Edge.MemorySector != sector.Emotional {
			t.Errorf("edge sector = %q, want emotional", nb.Edge.MemorySector)
		}
	}

	all, _ := db.QueryNeighbors(ctx, NeighborQuery{NodeID: alice.ID})
	if len(all) != 3 {
		t.Errorf("unfiltered = %d neighbors, want 3", len(all))
	}
}

func TestQueryNeighborsSectorFilterCoversNull(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := mustNode(t, db, "person", "alice")
	b := mustNode(t, db, "person", "bob")
	if _, err := db.Exec(`
		INSERT INTO edges (id, source_id, target_id, relation, created_at, modified_at)
		VALUES ('legacy', ?, ?, 'knows', 0, 0)
	`, a.ID, b.ID); err != nil {
		t.Fatalf("insert legacy edge: %v", err)
	}

	nbs, err := db.QueryNeighbors(ctx, NeighborQuery{NodeID: a.ID, SectorFilter: []sector.Sector{sector.Semantic}})
	if err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	if len(nbs) != 1 {
		t.Errorf("semantic filter = %d neighbors, want legacy NULL edge included", len(nbs))
	}
}

func TestQueryNeighborsEmptySectorFilter(t *testing.T) {
	db := testDB(t)
	nodes := chain(t, db)

	// An empty filter must not touch storage at all.
	db.Close()
	nbs, err := db.QueryNeighbors(context.Background(), NeighborQuery{
		NodeID: nodes["alice"].ID, SectorFilter: []sector.Sector{},
	})
	if err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	if nbs == nil || len(nbs) != 0 {
		t.Errorf("got %v, want empty non-nil slice", nbs)
	}
}

func TestQueryNeighborsFilterBlocksTraversal(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alice := mustNode(t, db, "person", "alice")
	// alice -trusts(emotional)-> bob -knows(semantic)-> carol
	mustEdge(t, db, "alice", "bob", "trusts", map[string]any{"emotional_valence": 0.5})
	mustEdge(t, db, "bob", "carol", "knows", nil)

	nbs, err := db.QueryNeighbors(ctx, NeighborQuery{
		NodeID: alice.ID, MaxDepth: 2, SectorFilter: []sector.Sector{sector.Semantic},
	})
	if err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	if len(nbs) != 0 {
		t.Errorf("got %v, carol is only reachable through an emotional edge", neighborNames(nbs))
	}
}

func TestQueryNeighborsRelationAndProperties(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alice := mustNode(t, db, "person", "alice")
	mustEdge(t, db, "alice", "bob", "works_with", map[string]any{"team": "infra"})
	mustEdge(t, db, "alice", "carol", "works_with", map[string]any{"team": "web"})
	mustEdge(t, db, "alice", "dave", "knows", map[string]any{"team": "infra"})

	nbs, err := db.QueryNeighbors(ctx, NeighborQuery{
		NodeID: alice.ID, RelationType: "works_with",
		PropertiesFilter: map[string]any{"team": "infra"},
	})
	if err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	if got := neighborNames(nbs); len(got) != 1 || got["bob"] != 1 {
		t.Errorf("got %v, want bob only", got)
	}
}

func TestQueryNeighborsSuperseded(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alice := mustNode(t, db, "person", "alice")
	mustEdge(t, db, "alice", "bob", "knows", map[string]any{"superseded_by": "e-2"})

	nbs, _ := db.QueryNeighbors(ctx, NeighborQuery{NodeID: alice.ID})
	if len(nbs) != 0 {
		t.Errorf("superseded edge followed: %v", neighborNames(nbs))
	}
	nbs, _ = db.QueryNeighbors(ctx, NeighborQuery{NodeID: alice.ID, IncludeSuperseded: true})
	if len(nbs) != 1 {
		t.Errorf("IncludeSuperseded = %d neighbors, want 1", len(nbs))
	}
}

func TestQueryNeighborsCycleVisitedOnce(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alice := mustNode(t, db, "person", "alice")
	mustEdge(t, db, "alice", "bob", "knows", nil)
	mustEdge(t, db, "bob", "carol", "knows", nil)
	mustEdge(t, db, "carol", "alice", "knows", nil)

	nbs, err := db.QueryNeighbors(ctx, NeighborQuery{NodeID: alice.ID, MaxDepth: 5})
	if err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	seen := map[string]int{}
	for _, nb := range nbs {
		seen[nb.Node.ID]++
		if nb.Node.ID == alice.ID {
			t.Error("start node returned as its own neighbor")
		}
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("node %s returned %d times", id, n)
		}
	}
	if len(nbs) != 2 {
		t.Errorf("got %d neighbors, want 2", len(nbs))
	}
}

func TestQueryNeighborsTouchesEdges(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	alice := mustNode(t, db, "person", "alice")
	e := mustEdge(t, db, "alice", "bob", "knows", nil)

	if _, err := db.QueryNeighbors(ctx, NeighborQuery{NodeID: alice.ID}); err != nil {
		t.Fatalf("QueryNeighbors: %v", err)
	}
	got, _ := db.GetEdge(ctx, e.ID)
	if got.AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", got.AccessCount)
	}
}

func TestParseDirection(t *testing.T) {
	tests := map[string]Direction{"": Both, "both": Both, "out": Outgoing, "OUTGOING": Outgoing, "in": Incoming}
	for in, want := range tests {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Errorf("ParseDirection(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected error for sideways")
	}
}

func TestClampDepth(t *testing.T) {
	if got := clampDepth(0, DefaultNeighborDepth, MaxNeighborDepth); got != 1 {
		t.Errorf("clampDepth(0) = %d, want 1", got)
	}
	if got := clampDepth(99, DefaultNeighborDepth, MaxNeighborDepth); got != 5 {
		t.Errorf("clampDepth(99) = %d, want 5", got)
	}
	if got := clampDepth(3, DefaultNeighborDepth, MaxNeighborDepth); got != 3 {
		t.Errorf("clampDepth(3) = %d, want 3", got)
	}
}

// seedTree builds a tree of depth levels with the given fanout under a
// "root" node, rotating edge properties so every sector is represented.
func seedTree(tb testing.TB, db *DB, fanout, levels int) *Node {
	tb.Helper()
	variants := []struct {
		relation string
		props    map[string]any
	}{
		{"knows", nil},
		{"trusts", map[string]any{"emotional_valence": 0.5}},
		{"attended", map[string]any{"context_type": "shared_experience"}},
		{"LEARNED", nil},
		{"REFLECTS_ON", nil},
	}
	root := mustNode(tb, db, "person", "root")
	parents := []string{"root"}
	n := 0
	for level := 0; level < levels; level++ {
		var next []string
		for _, p := range parents {
			for i := 0; i < fanout; i++ {
				name := fmt.Sprintf("n%d", n)
				v := variants[n%len(variants)]
				n++
				mustEdge(tb, db, p, name, v.relation, v.props)
				next = append(next, name)
			}
		}
		parents = next
	}
	return root
}

func BenchmarkQueryNeighbors(b *testing.B) {
	db := testDB(b)
	root := seedTree(b, db, 6, 3)
	ctx := context.Background()

	cases := []struct {
		name    string
		sectors []sector.Sector
	}{
		{"unfiltered", nil},
		{"one_sector", []sector.Sector{sector.Semantic}},
		{"all_sectors", sector.All()},
	}
	for _, c := range cases {
		b.Run(c.name, func(b *testing.B) {
			q := NeighborQuery{NodeID: root.ID, MaxDepth: 3, Direction: Outgoing, SectorFilter: c.sectors}
			for i := 0; i < b.N; i++ {
				if _, err := db.QueryNeighbors(ctx, q); err != nil {
					b.Fatalf("QueryNeighbors: %v", err)
				}
			}
		})
	}
}

func TestSectorFilterOverhead(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	db := testDB(t)
	root := seedTree(t, db, 6, 3)
	ctx := context.Background()

	fastest := func(q NeighborQuery) time.Duration {
		best := time.Duration(math.MaxInt64)
		for i := 0; i < 20; i++ {
			start := time.Now()
			if _, err := db.QueryNeighbors(ctx, q); err != nil {
				t.Fatalf("QueryNeighbors: %v", err)
			}
			if d := time.Since(start); d < best {
				best = d
			}
		}
		return best
	}

	base := NeighborQuery{NodeID: root.ID, MaxDepth: 3, Direction: Outgoing}
	filtered := base
	filtered.SectorFilter = sector.All()

	unfilteredTime := fastest(base)
	filteredTime := fastest(filtered)
	limit := unfilteredTime*12/10 + time.Millisecond
	if filteredTime > limit {
		t.Errorf("filtered traversal %v exceeds %v (unfiltered %v)", filteredTime, limit, unfilteredTime)
	}
}
