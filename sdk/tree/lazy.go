package tree

import (
	"fmt"
	"strings"
)

// LazyTree expands the betting tree on demand. Construction materialises
// nodes down to MaxDepth actions from the root; everything deeper stays a
// frontier node until ExpandNode reaches it. Expansion is idempotent.
type LazyTree struct {
	Tree     *GameTree
	MaxDepth int

	// pending maps a frontier player node to the street state it will be
	// expanded with.
	pending map[int32]streetState
}

// NewLazyTree builds a tree eagerly down to maxDepth actions (street
// separators not counted). A maxDepth of 0 leaves only the root.
func NewLazyTree(params GameParams, maxDepth int) (*LazyTree, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game params: %w", err)
	}
	lt := &LazyTree{
		Tree: &GameTree{
			Params:   params,
			InfoSets: make(map[string][]int32),
		},
		MaxDepth: maxDepth,
		pending:  make(map[int32]streetState),
	}

	b := &builder{params: params, tree: lt.Tree}
	root := b.newNode(NodePlayer, 0, Preflop, params.SmallBlind+params.BigBlind, "", NoNode)
	root.Invested = [2]int{params.SmallBlind, params.BigBlind}
	lt.Tree.Root = root.ID
	lt.pending[root.ID] = openingState(Preflop, false, params)

	// Breadth-first to the depth limit.
	frontier := []int32{root.ID}
	for len(frontier) > 0 {
		var next []int32
		for _, id := range frontier {
			if nodeDepth(lt.Tree.Node(id)) >= maxDepth {
				continue
			}
			created, err := lt.ExpandNode(id)
			if err != nil {
				return nil, err
			}
			next = append(next, created...)
		}
		frontier = next
	}
	return lt, nil
}

// IsExpanded reports whether a node already has its children materialised
// (terminals count as expanded).
func (lt *LazyTree) IsExpanded(id int32) bool {
	_, pending := lt.pending[id]
	return !pending
}

// ExpandNode materialises the children of a frontier node, returning the ids
// of any newly created frontier nodes. Expanding an already-expanded node is
// a no-op.
func (lt *LazyTree) ExpandNode(id int32) ([]int32, error) {
	n := lt.Tree.Node(id)
	if n == nil {
		return nil, fmt.Errorf("no node %d", id)
	}
	st, ok := lt.pending[id]
	if !ok {
		return nil, nil
	}
	delete(lt.pending, id)

	b := &builder{params: lt.Tree.Params, tree: lt.Tree}
	n.Raises = st.raises
	n.FacingBet = st.raises > 0

	var created []int32
	for _, a := range st.legalActions(lt.Tree.Params) {
		next, chips, closed, kind := st.apply(a, n.Street, lt.Tree.Params)
		history := n.History + string(a)
		pot := n.Pot + chips
		invested := n.Invested
		invested[n.Player] += chips

		var child *GameNode
		switch {
		case closed && kind == TerminalFold:
			child = b.newNode(NodeTerminal, NoPlayer, n.Street, pot, history, n.ID)
			child.TermKind = TerminalFold
			child.Invested = invested
			child.Player = n.Player
		case closed && n.Street == River:
			child = b.newNode(NodeTerminal, NoPlayer, n.Street, pot, history, n.ID)
			child.TermKind = TerminalShowdown
			child.Invested = invested
		case closed:
			street := n.Street + 1
			child = b.newNode(NodePlayer, 1, street, pot, history+"/", n.ID)
			child.Invested = invested
			lt.pending[child.ID] = openingState(street, false, lt.Tree.Params)
			created = append(created, child.ID)
		default:
			child = b.newNode(NodePlayer, int8(1-n.Player), n.Street, pot, history, n.ID)
			child.Invested = invested
			lt.pending[child.ID] = next
			created = append(created, child.ID)
		}
		n.Children = append(n.Children, child.ID)
		n.ActionChild[a] = child.ID
	}
	EvaluateTerminalUtilities(lt.Tree)
	return created, nil
}

// PendingCount returns how many frontier nodes await expansion.
func (lt *LazyTree) PendingCount() int {
	return len(lt.pending)
}

// nodeDepth is the number of actions on the path from the root.
func nodeDepth(n *GameNode) int {
	return len(n.History) - strings.Count(n.History, "/")
}
