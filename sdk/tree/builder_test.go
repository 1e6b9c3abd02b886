package tree

import (
	"strings"
	"testing"
)

func TestBuildPreflopOnlyTree(t *testing.T) {
	t.Parallel()
	params := GameParams{Stack: 4, SmallBlind: 1, BigBlind: 2, MaxRaisesPerStreet: 4}
	tr, err := BuildGameTree(params, BuildOptions{PreflopOnly: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	root := tr.RootNode()
	if root.Pot != 3 {
		t.Errorf("root pot = %d, want 3", root.Pot)
	}
	if root.FacingBet {
		t.Error("root should not be facing a bet")
	}
	if root.Player != 0 {
		t.Errorf("root to-act = %d, want player 0", root.Player)
	}
	if root.Street != Preflop {
		t.Errorf("root street = %s, want PRE", root.Street)
	}

	seqs := EnumerateSequences(Preflop, 3, false, params)
	if len(tr.TerminalIDs) != len(seqs) {
		t.Errorf("terminal count %d != sequence count %d", len(tr.TerminalIDs), len(seqs))
	}

	foldID, ok := root.ActionChild[ActionFold]
	if !ok {
		t.Fatal("small blind cannot fold at the root")
	}
	fold := tr.Node(foldID)
	if fold.TermKind != TerminalFold {
		t.Fatalf("fold child kind = %d", fold.TermKind)
	}
	if fold.Utils != [2]float64{-1, 1} {
		t.Errorf("fold utilities = %v, want (-1, +1)", fold.Utils)
	}
}

func TestBuildFullTree(t *testing.T) {
	t.Parallel()
	tr, err := BuildGameTree(DefaultParams(), BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	// Every street must be represented and river closes go to showdown.
	streets := make(map[Street]bool)
	for _, n := range tr.Nodes {
		streets[n.Street] = true
	}
	for s := Preflop; s <= River; s++ {
		if !streets[s] {
			t.Errorf("street %s missing from full tree", s)
		}
	}

	for _, id := range tr.TerminalIDs {
		n := tr.Node(id)
		if n.TermKind == TerminalShowdown && n.Street != River {
			t.Errorf("showdown terminal %d on %s; only the river shows down in a full tree", id, n.Street)
		}
		if n.Invested[0]+n.Invested[1] != n.Pot {
			t.Errorf("terminal %d: invested %v does not sum to pot %d", id, n.Invested, n.Pot)
		}
	}
}

func TestBuildRejectsBadParams(t *testing.T) {
	t.Parallel()
	bad := []GameParams{
		{Stack: 0, SmallBlind: 1, BigBlind: 2, MaxRaisesPerStreet: 4},
		{Stack: 100, SmallBlind: 0, BigBlind: 2, MaxRaisesPerStreet: 4},
		{Stack: 100, SmallBlind: 2, BigBlind: 1, MaxRaisesPerStreet: 4},
		{Stack: 100, SmallBlind: 1, BigBlind: 2, MaxRaisesPerStreet: 0},
	}
	for _, p := range bad {
		if _, err := BuildGameTree(p, BuildOptions{}); err == nil {
			t.Errorf("params %+v accepted", p)
		}
	}
}

func TestBoundedBuildCapsNodes(t *testing.T) {
	t.Parallel()
	const maxNodes = 500
	tr, err := BuildGameTree(DefaultParams(), BuildOptions{MaxNodes: maxNodes})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	full, err := BuildGameTree(DefaultParams(), BuildOptions{})
	if err != nil {
		t.Fatalf("full build: %v", err)
	}
	if tr.NumNodes() >= full.NumNodes() {
		t.Errorf("bounded tree (%d nodes) not smaller than full tree (%d)", tr.NumNodes(), full.NumNodes())
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("bounded tree invalid: %v", err)
	}
}

func TestInfoSetIDFormat(t *testing.T) {
	t.Parallel()
	tr, err := BuildGameTree(DefaultParams(), BuildOptions{PreflopOnly: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	root := tr.RootNode()
	if root.InfoSetID != "P0|PRE|" {
		t.Errorf("root infoset id = %q", root.InfoSetID)
	}
	for _, id := range tr.PlayerIDs {
		n := tr.Node(id)
		if !strings.HasPrefix(n.InfoSetID, "P0|") && !strings.HasPrefix(n.InfoSetID, "P1|") {
			t.Errorf("node %d infoset id %q lacks player prefix", id, n.InfoSetID)
		}
		if tr.InfoSets[n.InfoSetID] == nil {
			t.Errorf("infoset %q not registered", n.InfoSetID)
		}
	}
}

func TestComposeInfoSetID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		player  int8
		street  Street
		hole    string
		board   string
		history string
		want    string
	}{
		{0, Preflop, "", "", "cr", "P0|PRE|cr"},
		{0, Preflop, "AKs", "", "cr", "P0|PRE|AKs|cr"},
		{1, Flop, "QQo", "QJT", "cc/r", "P1|FLOP|QQo|B:QJT|cc/r"},
	}
	for _, tt := range tests {
		got := ComposeInfoSetID(tt.player, tt.street, tt.hole, tt.board, tt.history)
		if got != tt.want {
			t.Errorf("ComposeInfoSetID = %q, want %q", got, tt.want)
		}
	}
}
