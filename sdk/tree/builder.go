package tree

import (
	"fmt"
	"strings"
)

// BuildOptions tunes tree construction.
type BuildOptions struct {
	// PreflopOnly stops at the first street transition; every preflop
	// close becomes a showdown-kind terminal.
	PreflopOnly bool
	// MaxNodes, when positive, stops opening new streets once the arena
	// holds that many nodes; capped transitions become terminals.
	MaxNodes int
	// Verbose makes the builder report per-street node counts through
	// Progress.
	Verbose bool
	// Progress receives builder events when Verbose is set.
	Progress func(format string, args ...any)
}

type builder struct {
	params GameParams
	opts   BuildOptions
	tree   *GameTree
}

// BuildGameTree enumerates the full HU-LHE betting tree for the given
// parameters. The root is the preflop small-blind decision with both blinds
// posted. The returned tree always passes Validate; construction failures
// never yield a partial tree.
func BuildGameTree(params GameParams, opts BuildOptions) (*GameTree, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game params: %w", err)
	}

	b := &builder{
		params: params,
		opts:   opts,
		tree: &GameTree{
			Params:   params,
			InfoSets: make(map[string][]int32),
		},
	}

	root := b.newNode(NodePlayer, 0, Preflop, params.SmallBlind+params.BigBlind, "", NoNode)
	root.Invested = [2]int{params.SmallBlind, params.BigBlind}
	b.tree.Root = root.ID

	st := openingState(Preflop, false, params)
	b.expand(root, st)

	EvaluateTerminalUtilities(b.tree)

	if err := b.tree.Validate(); err != nil {
		return nil, fmt.Errorf("built tree failed validation: %w", err)
	}
	if b.opts.Verbose && b.opts.Progress != nil {
		b.opts.Progress("built tree: %d nodes, %d player, %d terminal",
			len(b.tree.Nodes), len(b.tree.PlayerIDs), len(b.tree.TerminalIDs))
	}
	return b.tree, nil
}

func (b *builder) newNode(kind NodeKind, player int8, street Street, pot int, history string, parent int32) *GameNode {
	n := &GameNode{
		ID:      int32(len(b.tree.Nodes)),
		Kind:    kind,
		Player:  player,
		Street:  street,
		Pot:     pot,
		History: history,
		Parent:  parent,
	}
	b.tree.Nodes = append(b.tree.Nodes, n)
	switch kind {
	case NodePlayer:
		n.ActionChild = make(map[Action]int32, 3)
		n.InfoSetID = infoSetID(player, street, history)
		b.tree.InfoSets[n.InfoSetID] = append(b.tree.InfoSets[n.InfoSetID], n.ID)
		b.tree.PlayerIDs = append(b.tree.PlayerIDs, n.ID)
	case NodeTerminal:
		b.tree.TerminalIDs = append(b.tree.TerminalIDs, n.ID)
	}
	return n
}

// expand grows the action fan-out of a player node mid-street.
func (b *builder) expand(n *GameNode, st streetState) {
	n.Raises = st.raises
	n.FacingBet = st.raises > 0

	for _, a := range st.legalActions(b.params) {
		next, chips, closed, kind := st.apply(a, n.Street, b.params)
		history := n.History + string(a)
		pot := n.Pot + chips
		invested := n.Invested
		invested[n.Player] += chips
		actor := n.Player

		var child *GameNode
		switch {
		case closed && kind == TerminalFold:
			child = b.newNode(NodeTerminal, NoPlayer, n.Street, pot, history, n.ID)
			child.TermKind = TerminalFold
			child.Invested = invested
			// Remember who folded for utility assignment.
			child.Player = actor
		case closed:
			child = b.streetClose(n, history, pot, invested)
		default:
			nextPlayer := int8(1 - actor)
			child = b.newNode(NodePlayer, nextPlayer, n.Street, pot, history, n.ID)
			child.Invested = invested
			b.expand(child, next)
		}
		n.Children = append(n.Children, child.ID)
		n.ActionChild[a] = child.ID
	}
}

// streetClose handles a completed betting round: showdown on the river (or
// when construction is bounded), otherwise the first decision of the next
// street with the big blind to act.
func (b *builder) streetClose(n *GameNode, history string, pot int, invested [2]int) *GameNode {
	last := n.Street == River || b.opts.PreflopOnly
	if !last && b.opts.MaxNodes > 0 && len(b.tree.Nodes) >= b.opts.MaxNodes {
		last = true
	}
	if last {
		child := b.newNode(NodeTerminal, NoPlayer, n.Street, pot, history, n.ID)
		child.TermKind = TerminalShowdown
		child.Invested = invested
		return child
	}

	street := n.Street + 1
	child := b.newNode(NodePlayer, 1, street, pot, history+"/", n.ID)
	child.Invested = invested
	if b.opts.Verbose && b.opts.Progress != nil && n.Street == Preflop {
		b.opts.Progress("opening %s subtree at node %d (pot %d)", street, child.ID, pot)
	}
	b.expand(child, openingState(street, false, b.params))
	return child
}

// EvaluateTerminalUtilities assigns zero-sum utilities to every terminal.
// Folds settle from invested chips: the folder loses what they put in and
// the opponent wins the same amount. Showdowns stay at the (0, 0)
// placeholder; they resolve against actual cards during traversal.
func EvaluateTerminalUtilities(t *GameTree) {
	for _, id := range t.TerminalIDs {
		n := t.Node(id)
		switch n.TermKind {
		case TerminalFold:
			folder := n.Player
			loss := float64(n.Invested[folder])
			n.Utils[folder] = -loss
			n.Utils[1-folder] = loss
		case TerminalShowdown:
			n.Utils = [2]float64{0, 0}
		}
	}
}

// infoSetID builds the card-free identifier for a decision point. Traversal
// splices hole and board tokens into the card slots when cards are in play.
func infoSetID(player int8, street Street, history string) string {
	var sb strings.Builder
	sb.Grow(8 + len(history))
	sb.WriteByte('P')
	sb.WriteByte('0' + byte(player))
	sb.WriteByte('|')
	sb.WriteString(street.String())
	sb.WriteByte('|')
	sb.WriteString(history)
	return sb.String()
}

// ComposeInfoSetID splices card tokens into the card-free id layout:
// P{player}|{STREET}[|{hole}[|B:{board}]]|{history}.
func ComposeInfoSetID(player int8, street Street, hole, board, history string) string {
	var sb strings.Builder
	sb.Grow(16 + len(hole) + len(board) + len(history))
	sb.WriteByte('P')
	sb.WriteByte('0' + byte(player))
	sb.WriteByte('|')
	sb.WriteString(street.String())
	if hole != "" {
		sb.WriteByte('|')
		sb.WriteString(hole)
		if board != "" {
			sb.WriteString("|B:")
			sb.WriteString(board)
		}
	}
	sb.WriteByte('|')
	sb.WriteString(history)
	return sb.String()
}
