package tree

import (
	"errors"
	"math"
	"sort"
)

// PruneStrategy names the available pruning policies.
type PruneStrategy uint8

const (
	PruneByDepth PruneStrategy = iota
	PruneByImportance
	PruneByFrequency
	PruneAdaptively
)

func (s PruneStrategy) String() string {
	switch s {
	case PruneByDepth:
		return "depth"
	case PruneByImportance:
		return "importance"
	case PruneByFrequency:
		return "frequency"
	case PruneAdaptively:
		return "adaptive"
	default:
		return "unknown"
	}
}

// ComputeImportance scores every node as uniform-strategy reach probability
// times the largest absolute terminal utility below it, normalised so the
// root scores exactly 1. Scores are non-negative and non-increasing along
// any root-to-leaf path.
func ComputeImportance(t *GameTree) []float64 {
	reach := make([]float64, len(t.Nodes))
	mag := make([]float64, len(t.Nodes))

	reach[t.Root] = 1
	order := topDownOrder(t)
	for _, id := range order {
		n := t.Node(id)
		if len(n.Children) == 0 {
			continue
		}
		var p float64
		if n.Kind == NodeChance && len(n.ChanceProbs) == len(n.Children) {
			p = -1 // use priors below
		} else {
			p = 1.0 / float64(len(n.Children))
		}
		for i, cid := range n.Children {
			if p < 0 {
				reach[cid] = reach[id] * n.ChanceProbs[i]
			} else {
				reach[cid] = reach[id] * p
			}
		}
	}

	// Subtree payoff magnitudes, bottom-up.
	for i := len(order) - 1; i >= 0; i-- {
		n := t.Node(order[i])
		if n.Kind == NodeTerminal {
			mag[n.ID] = math.Max(math.Abs(n.Utils[0]), math.Abs(n.Utils[1]))
			// The placeholder showdown utility would zero out entire
			// subtrees; weight it by the pot instead.
			if n.TermKind == TerminalShowdown && mag[n.ID] == 0 {
				mag[n.ID] = float64(n.Pot)
			}
			continue
		}
		for _, cid := range n.Children {
			if mag[cid] > mag[n.ID] {
				mag[n.ID] = mag[cid]
			}
		}
	}

	maxMag := mag[t.Root]
	if maxMag == 0 {
		maxMag = 1
	}
	out := make([]float64, len(t.Nodes))
	for i := range out {
		out[i] = reach[i] * mag[i] / maxMag
	}
	return out
}

// PruneDepth truncates the tree below maxDepth actions: player nodes at the
// limit become showdown terminals and their subtrees are discarded.
func PruneDepth(t *GameTree, maxDepth int) error {
	if maxDepth < 0 {
		return errors.New("max depth cannot be negative")
	}
	cut := func(n *GameNode) bool {
		parent := t.Node(n.Parent)
		return parent != nil && parent.Kind == NodePlayer && nodeDepth(parent) >= maxDepth
	}
	return pruneWhere(t, cut)
}

// PruneImportance discards every subtree whose importance falls below the
// threshold. The root always survives; a player node that would lose its
// whole fan-out is converted to a terminal instead.
func PruneImportance(t *GameTree, threshold float64) error {
	if threshold < 0 {
		return errors.New("importance threshold cannot be negative")
	}
	imp := ComputeImportance(t)
	cut := func(n *GameNode) bool {
		return n.ID != t.Root && imp[n.ID] < threshold
	}
	return pruneWhere(t, cut)
}

// PruneFrequency discards subtrees whose root was visited fewer than
// minVisits times. Visit counts come from traversal statistics; untracked
// nodes count as zero.
func PruneFrequency(t *GameTree, visits map[int32]int64, minVisits int64) error {
	if minVisits < 0 {
		return errors.New("min visits cannot be negative")
	}
	cut := func(n *GameNode) bool {
		return n.ID != t.Root && visits[n.ID] < minVisits
	}
	return pruneWhere(t, cut)
}

// PruneAdaptive removes least-important subtrees until the tree holds at
// most targetNodes, but never fewer than minNodesToKeep.
func PruneAdaptive(t *GameTree, targetNodes, minNodesToKeep int) error {
	if targetNodes <= 0 || minNodesToKeep <= 0 {
		return errors.New("adaptive prune targets must be positive")
	}
	floor := targetNodes
	if floor < minNodesToKeep {
		floor = minNodesToKeep
	}
	if len(t.Nodes) <= floor {
		return nil
	}

	imp := ComputeImportance(t)
	type scored struct {
		id    int32
		score float64
		size  int
	}
	sizes := subtreeSizes(t)
	var candidates []scored
	for _, n := range t.Nodes {
		if n.ID == t.Root || n.Parent == t.Root {
			continue
		}
		candidates = append(candidates, scored{n.ID, imp[n.ID], sizes[n.ID]})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})

	doomed := make(map[int32]bool)
	remaining := len(t.Nodes)
	for _, c := range candidates {
		if remaining <= targetNodes {
			break
		}
		if hasDoomedAncestor(t, c.id, doomed) {
			continue
		}
		if remaining-c.size < floor {
			continue
		}
		doomed[c.id] = true
		remaining -= c.size
	}
	if len(doomed) == 0 {
		return nil
	}
	return pruneWhere(t, func(n *GameNode) bool { return doomed[n.ID] })
}

func hasDoomedAncestor(t *GameTree, id int32, doomed map[int32]bool) bool {
	for cur := id; cur != NoNode; cur = t.Node(cur).Parent {
		if doomed[cur] {
			return true
		}
	}
	return false
}

// pruneWhere removes every subtree rooted at a node matching cut, converts
// player nodes left childless into showdown terminals, and compacts ids.
func pruneWhere(t *GameTree, cut func(*GameNode) bool) error {
	keep := make(map[int32]bool, len(t.Nodes))
	var walk func(id int32)
	walk = func(id int32) {
		n := t.Node(id)
		keep[id] = true
		for _, cid := range n.Children {
			if cut(t.Node(cid)) {
				continue
			}
			walk(cid)
		}
	}
	walk(t.Root)
	return rebuild(t, keep)
}

// RemoveOrphans drops every node unreachable from the root and renumbers
// the arena.
func RemoveOrphans(t *GameTree) error {
	keep := make(map[int32]bool, len(t.Nodes))
	stack := []int32{t.Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if keep[id] {
			continue
		}
		keep[id] = true
		for _, cid := range t.Node(id).Children {
			stack = append(stack, cid)
		}
	}
	return rebuild(t, keep)
}

// rebuild compacts the arena to the kept set, remapping ids, pruning child
// lists to surviving children, converting childless player nodes into
// showdown terminals, and regenerating the derived indexes.
func rebuild(t *GameTree, keep map[int32]bool) error {
	if !keep[t.Root] {
		return errors.New("prune would remove the root")
	}

	remap := make(map[int32]int32, len(keep))
	var nodes []*GameNode
	for _, n := range t.Nodes {
		if !keep[n.ID] {
			continue
		}
		remap[n.ID] = int32(len(nodes))
		nodes = append(nodes, n)
	}

	t.TerminalIDs = t.TerminalIDs[:0]
	t.PlayerIDs = t.PlayerIDs[:0]
	t.InfoSets = make(map[string][]int32)

	for _, n := range nodes {
		oldChildren := n.Children
		n.Children = n.Children[:0]
		newActions := make(map[Action]int32, len(oldChildren))
		for _, cid := range oldChildren {
			nid, ok := remap[cid]
			if !ok {
				continue
			}
			n.Children = append(n.Children, nid)
			for a, acid := range n.ActionChild {
				if acid == cid {
					newActions[a] = nid
				}
			}
		}
		n.ID = remap[n.ID]
		if n.Parent != NoNode {
			if nid, ok := remap[n.Parent]; ok {
				n.Parent = nid
			} else {
				return errors.New("kept node lost its parent")
			}
		}
		n.ActionChild = newActions

		if n.Kind == NodePlayer && len(n.Children) == 0 {
			n.Kind = NodeTerminal
			n.TermKind = TerminalShowdown
			n.Player = NoPlayer
			n.Utils = [2]float64{0, 0}
			n.InfoSetID = ""
			n.ActionChild = nil
		}
		switch n.Kind {
		case NodeTerminal:
			t.TerminalIDs = append(t.TerminalIDs, n.ID)
		case NodePlayer:
			t.PlayerIDs = append(t.PlayerIDs, n.ID)
			t.InfoSets[n.InfoSetID] = append(t.InfoSets[n.InfoSetID], n.ID)
		}
	}

	t.Nodes = nodes
	t.Root = remap[t.Root]
	return nil
}

// topDownOrder returns node ids in an order where parents precede children.
func topDownOrder(t *GameTree) []int32 {
	order := make([]int32, 0, len(t.Nodes))
	stack := []int32{t.Root}
	seen := make(map[int32]bool, len(t.Nodes))
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
		for _, cid := range t.Node(id).Children {
			stack = append(stack, cid)
		}
	}
	return order
}

// subtreeSizes returns the node count of each subtree.
func subtreeSizes(t *GameTree) map[int32]int {
	sizes := make(map[int32]int, len(t.Nodes))
	order := topDownOrder(t)
	for i := len(order) - 1; i >= 0; i-- {
		n := t.Node(order[i])
		size := 1
		for _, cid := range n.Children {
			size += sizes[cid]
		}
		sizes[n.ID] = size
	}
	return sizes
}
