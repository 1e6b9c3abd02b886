package tree

import "testing"

func buildFull(t *testing.T) *GameTree {
	t.Helper()
	tr, err := BuildGameTree(DefaultParams(), BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return tr
}

func TestComputeImportanceRootIsOne(t *testing.T) {
	t.Parallel()
	tr := buildFull(t)
	imp := ComputeImportance(tr)
	if imp[tr.Root] != 1 {
		t.Fatalf("root importance = %v, want 1", imp[tr.Root])
	}
	for id, v := range imp {
		if v < 0 {
			t.Errorf("node %d importance %v negative", id, v)
		}
	}
}

func TestPruneDepth(t *testing.T) {
	t.Parallel()
	tr := buildFull(t)
	before := tr.NumNodes()
	if err := PruneDepth(tr, 4); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if tr.NumNodes() >= before {
		t.Fatalf("depth prune did not shrink tree: %d -> %d", before, tr.NumNodes())
	}
	for _, n := range tr.Nodes {
		if n.Kind == NodePlayer && nodeDepth(n) >= 4 {
			t.Errorf("player node %d at depth %d survived", n.ID, nodeDepth(n))
		}
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("pruned tree invalid: %v", err)
	}
}

func TestPruneImportance(t *testing.T) {
	t.Parallel()
	tr := buildFull(t)
	before := tr.NumNodes()
	if err := PruneImportance(tr, 1e-4); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if tr.NumNodes() >= before {
		t.Fatalf("importance prune did not shrink tree: %d -> %d", before, tr.NumNodes())
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("pruned tree invalid: %v", err)
	}
}

func TestPruneFrequency(t *testing.T) {
	t.Parallel()
	tr := buildFull(t)
	visits := make(map[int32]int64)
	// Only the root line through an immediate fold was ever visited.
	visits[tr.Root] = 100
	fold := tr.RootNode().ActionChild[ActionFold]
	visits[fold] = 100
	if err := PruneFrequency(tr, visits, 1); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if tr.NumNodes() != 2 {
		t.Fatalf("expected 2 surviving nodes, got %d", tr.NumNodes())
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("pruned tree invalid: %v", err)
	}
}

func TestPruneAdaptive(t *testing.T) {
	t.Parallel()
	tr := buildFull(t)
	before := tr.NumNodes()
	target := before / 4
	if err := PruneAdaptive(tr, target, 10); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if tr.NumNodes() >= before {
		t.Fatalf("adaptive prune did not shrink tree: %d -> %d", before, tr.NumNodes())
	}
	if tr.NumNodes() < 10 {
		t.Fatalf("adaptive prune went below floor: %d", tr.NumNodes())
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("pruned tree invalid: %v", err)
	}
}

func TestRemoveOrphans(t *testing.T) {
	t.Parallel()
	tr := buildFull(t)
	// Detach a subtree by hand, leaving its nodes orphaned.
	root := tr.RootNode()
	raise := root.ActionChild[ActionRaise]
	root.Children = root.Children[:0]
	for a, cid := range root.ActionChild {
		if cid == raise {
			delete(root.ActionChild, a)
			continue
		}
		root.Children = append(root.Children, cid)
	}

	before := tr.NumNodes()
	if err := RemoveOrphans(tr); err != nil {
		t.Fatalf("remove orphans: %v", err)
	}
	if tr.NumNodes() >= before {
		t.Fatalf("orphan removal did not shrink tree: %d -> %d", before, tr.NumNodes())
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("tree invalid after orphan removal: %v", err)
	}
}
