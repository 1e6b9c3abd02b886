package solver

import (
	"fmt"

	"github.com/bizarc/lhecfr/sdk/tree"
)

// ValidationGame is a small game with a known equilibrium used to exercise
// the engine end to end. The trees are built by hand; they reuse the same
// node arena the betting tree uses, so the whole traversal stack runs
// unmodified.
type ValidationGame struct {
	Name          string
	Tree          *tree.GameTree
	ExpectedValue float64 // player 0's value at equilibrium
	Tolerance     float64
}

// fixture accumulates a hand-built game tree.
type fixture struct {
	t *tree.GameTree
}

func newFixture() *fixture {
	return &fixture{t: &tree.GameTree{
		Params:   tree.DefaultParams(),
		InfoSets: make(map[string][]int32),
		Root:     tree.NoNode,
	}}
}

func (f *fixture) add(n *tree.GameNode) *tree.GameNode {
	n.ID = int32(len(f.t.Nodes))
	n.Parent = tree.NoNode
	f.t.Nodes = append(f.t.Nodes, n)
	if f.t.Root == tree.NoNode {
		f.t.Root = n.ID
	}
	switch n.Kind {
	case tree.NodePlayer:
		f.t.PlayerIDs = append(f.t.PlayerIDs, n.ID)
		f.t.InfoSets[n.InfoSetID] = append(f.t.InfoSets[n.InfoSetID], n.ID)
	case tree.NodeTerminal:
		f.t.TerminalIDs = append(f.t.TerminalIDs, n.ID)
	}
	return n
}

func (f *fixture) player(player int8, infoSet string) *tree.GameNode {
	return f.add(&tree.GameNode{
		Kind:        tree.NodePlayer,
		Player:      player,
		InfoSetID:   infoSet,
		ActionChild: make(map[tree.Action]int32),
	})
}

func (f *fixture) chance() *tree.GameNode {
	return f.add(&tree.GameNode{Kind: tree.NodeChance, Player: tree.NoPlayer})
}

func (f *fixture) terminal(u0 float64) *tree.GameNode {
	return f.add(&tree.GameNode{
		Kind:     tree.NodeTerminal,
		Player:   tree.NoPlayer,
		TermKind: tree.TerminalShowdown,
		Utils:    [2]float64{u0, -u0},
	})
}

func (f *fixture) link(parent, child *tree.GameNode, a tree.Action) {
	child.Parent = parent.ID
	parent.Children = append(parent.Children, child.ID)
	if parent.Kind == tree.NodePlayer {
		parent.ActionChild[a] = child.ID
	}
}

func (f *fixture) linkChance(parent, child *tree.GameNode, prob float64) {
	child.Parent = parent.ID
	parent.Children = append(parent.Children, child.ID)
	parent.ChanceProbs = append(parent.ChanceProbs, prob)
}

// RockPaperScissorsGame encodes the simultaneous game sequentially: player 1
// moves without observing player 0, so all three of their nodes share one
// infoset. The unique equilibrium is uniform with value 0.
func RockPaperScissorsGame() ValidationGame {
	f := newFixture()
	root := f.player(0, "P0|RPS|")

	// payoff[i][j] for player 0: i is P0's move, j is P1's (rock, paper,
	// scissors in f/c/r order).
	payoff := [3][3]float64{
		{0, -1, 1},
		{1, 0, -1},
		{-1, 1, 0},
	}
	actions := []tree.Action{tree.ActionFold, tree.ActionCall, tree.ActionRaise}
	for i, ai := range actions {
		p1 := f.player(1, "P1|RPS|")
		f.link(root, p1, ai)
		for j, aj := range actions {
			f.link(p1, f.terminal(payoff[i][j]), aj)
		}
	}
	return ValidationGame{Name: "rock-paper-scissors", Tree: f.t, ExpectedValue: 0, Tolerance: 0.02}
}

// KuhnPokerGame builds the classic three-card game: both players ante one
// chip, a single bet of one more is allowed. The equilibrium value for the
// first player is -1/18.
func KuhnPokerGame() ValidationGame {
	f := newFixture()
	root := f.chance()

	cards := []string{"J", "Q", "K"}
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			if a == b {
				continue
			}
			win := 1.0 // showdown sign for player 0
			if b > a {
				win = -1
			}

			p0 := f.player(0, fmt.Sprintf("P0|%s|", cards[a]))
			f.linkChance(root, p0, 1.0/6)

			// Check line.
			p1AfterCheck := f.player(1, fmt.Sprintf("P1|%s|c", cards[b]))
			f.link(p0, p1AfterCheck, tree.ActionCall)
			f.link(p1AfterCheck, f.terminal(win), tree.ActionCall) // check-check showdown for the ante
			p0Facing := f.player(0, fmt.Sprintf("P0|%s|cr", cards[a]))
			f.link(p1AfterCheck, p0Facing, tree.ActionRaise)
			f.link(p0Facing, f.terminal(-1), tree.ActionFold)      // surrender the ante
			f.link(p0Facing, f.terminal(2*win), tree.ActionCall)   // two-chip showdown

			// Bet line.
			p1Facing := f.player(1, fmt.Sprintf("P1|%s|r", cards[b]))
			f.link(p0, p1Facing, tree.ActionRaise)
			f.link(p1Facing, f.terminal(1), tree.ActionFold)       // player 1 surrenders the ante
			f.link(p1Facing, f.terminal(2*win), tree.ActionCall)   // two-chip showdown
		}
	}
	return ValidationGame{Name: "kuhn-poker", Tree: f.t, ExpectedValue: -1.0 / 18, Tolerance: 0.01}
}

// SmallBettingGame is a two-level perfect-information game: the opener
// either takes a safe chip or offers a pot the responder settles. The
// subgame-perfect value is +1 for the opener.
func SmallBettingGame() ValidationGame {
	f := newFixture()
	root := f.player(0, "P0|SBG|")

	f.link(root, f.terminal(1), tree.ActionCall) // take the safe chip

	offer := f.player(1, "P1|SBG|r")
	f.link(root, offer, tree.ActionRaise)
	f.link(offer, f.terminal(-2), tree.ActionCall) // responder punishes
	f.link(offer, f.terminal(3), tree.ActionRaise) // responder blunders

	return ValidationGame{Name: "small-betting", Tree: f.t, ExpectedValue: 1, Tolerance: 0.05}
}
