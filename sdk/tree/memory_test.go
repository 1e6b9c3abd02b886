package tree

import "testing"

func TestNodePoolAllocateFree(t *testing.T) {
	t.Parallel()
	pool, err := NewNodePool(4)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	var ids []int32
	for i := 0; i < 4; i++ {
		_, idx, err := pool.Allocate()
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		ids = append(ids, idx)
	}
	if _, _, err := pool.Allocate(); err == nil {
		t.Fatal("expected exhaustion error")
	}
	if pool.InUse() != 4 {
		t.Fatalf("in use = %d, want 4", pool.InUse())
	}

	pool.Free(ids[1])
	if pool.InUse() != 3 {
		t.Fatalf("in use after free = %d, want 3", pool.InUse())
	}
	if pool.Get(ids[1]) != nil {
		t.Fatal("freed slot still accessible")
	}

	_, idx, err := pool.Allocate()
	if err != nil {
		t.Fatalf("allocate after free: %v", err)
	}
	if idx != ids[1] {
		t.Errorf("expected slot %d reuse, got %d", ids[1], idx)
	}
	if pool.Capacity() != 4 {
		t.Errorf("capacity changed to %d", pool.Capacity())
	}
}

func TestLazyTreeExpandsToDepth(t *testing.T) {
	t.Parallel()
	lt, err := NewLazyTree(DefaultParams(), 2)
	if err != nil {
		t.Fatalf("new lazy tree: %v", err)
	}
	for _, n := range lt.Tree.Nodes {
		if d := nodeDepth(n); d > 2 {
			t.Errorf("node %d at depth %d beyond limit", n.ID, d)
		}
	}
	if lt.PendingCount() == 0 {
		t.Fatal("expected unexpanded frontier nodes at depth 2")
	}
}

func TestLazyExpandIdempotent(t *testing.T) {
	t.Parallel()
	lt, err := NewLazyTree(DefaultParams(), 1)
	if err != nil {
		t.Fatalf("new lazy tree: %v", err)
	}
	var frontier int32 = NoNode
	for id := range lt.pending {
		frontier = id
		break
	}
	if frontier == NoNode {
		t.Fatal("no frontier node")
	}

	if _, err := lt.ExpandNode(frontier); err != nil {
		t.Fatalf("expand: %v", err)
	}
	before := lt.Tree.NumNodes()
	created, err := lt.ExpandNode(frontier)
	if err != nil {
		t.Fatalf("re-expand: %v", err)
	}
	if created != nil || lt.Tree.NumNodes() != before {
		t.Errorf("re-expansion created nodes: %d -> %d", before, lt.Tree.NumNodes())
	}
	if !lt.IsExpanded(frontier) {
		t.Error("node not marked expanded")
	}
}

func TestLazyTreeFullyExpandedMatchesEager(t *testing.T) {
	t.Parallel()
	params := GameParams{Stack: 4, SmallBlind: 1, BigBlind: 2, MaxRaisesPerStreet: 2}
	lt, err := NewLazyTree(params, 0)
	if err != nil {
		t.Fatalf("new lazy tree: %v", err)
	}
	for lt.PendingCount() > 0 {
		for id := range lt.pending {
			if _, err := lt.ExpandNode(id); err != nil {
				t.Fatalf("expand %d: %v", id, err)
			}
			break
		}
	}
	eager, err := BuildGameTree(params, BuildOptions{})
	if err != nil {
		t.Fatalf("eager build: %v", err)
	}
	if lt.Tree.NumNodes() != eager.NumNodes() {
		t.Errorf("lazy tree %d nodes, eager %d", lt.Tree.NumNodes(), eager.NumNodes())
	}
	if err := lt.Tree.Validate(); err != nil {
		t.Errorf("fully expanded lazy tree invalid: %v", err)
	}
}
