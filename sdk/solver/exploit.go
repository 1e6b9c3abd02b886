package solver

import "github.com/bizarc/lhecfr/sdk/tree"

// Exploitability measures how far the average strategy profile sits from
// equilibrium: the mean of both players' best-response values against it.
// Zero at Nash, non-negative everywhere else (up to float rounding). The
// walk enumerates the whole tree, so it runs on the enumerable trees the
// stopping controller checks (fixture games and card-free betting trees);
// sampled large-scale runs fall back to the regret bound between checks.
func Exploitability(t *tree.GameTree, idx *TreeIndex, store *Store) float64 {
	br0 := bestResponseValue(t, idx, store, t.RootNode(), 0)
	br1 := bestResponseValue(t, idx, store, t.RootNode(), 1)
	return (br0 + br1) / 2
}

// RegretBound returns the average-positive-regret bound Σ_I max_a R⁺(I,a)/T,
// a cheap exploitability surrogate that decays as training converges.
func RegretBound(store *Store, iteration int64) float64 {
	if iteration <= 0 {
		return 0
	}
	total := 0.0
	store.Range(func(_ string, rec *InfoSet) bool {
		maxR := 0.0
		for _, r := range rec.Regrets {
			if r > maxR {
				maxR = r
			}
		}
		total += maxR
		return true
	})
	return total / float64(iteration)
}

// bestResponseValue computes the value the responder achieves by playing a
// best response while the opponent follows the stored average strategy.
func bestResponseValue(t *tree.GameTree, idx *TreeIndex, store *Store, n *tree.GameNode, responder int8) float64 {
	switch n.Kind {
	case tree.NodeTerminal:
		return n.Utils[responder]
	case tree.NodeChance:
		sum := 0.0
		for i, cid := range n.Children {
			sum += n.ChanceProbs[i] * bestResponseValue(t, idx, store, t.Node(cid), responder)
		}
		return sum
	}

	if n.Player == responder {
		best := 0.0
		for i, cid := range n.Children {
			v := bestResponseValue(t, idx, store, t.Node(cid), responder)
			if i == 0 || v > best {
				best = v
			}
		}
		return best
	}

	strategy := storedAverageStrategy(idx, store, n)
	sum := 0.0
	for i, cid := range n.Children {
		sum += strategy[i] * bestResponseValue(t, idx, store, t.Node(cid), responder)
	}
	return sum
}

// storedAverageStrategy returns the average strategy at a node, uniform when
// the infoset was never visited.
func storedAverageStrategy(idx *TreeIndex, store *Store, n *tree.GameNode) []float64 {
	if rec := store.Get(idx.InfoSetOf(n.ID)); rec != nil && rec.NumActions() == len(n.Children) {
		return AverageStrategy(rec)
	}
	k := len(n.Children)
	out := make([]float64, k)
	u := 1.0 / float64(k)
	for i := range out {
		out[i] = u
	}
	return out
}

// ProfileValue returns a player's expected utility when both players follow
// the stored average strategy profile. Validation games compare it against
// their known equilibrium values.
func ProfileValue(t *tree.GameTree, idx *TreeIndex, store *Store, player int8) float64 {
	return profileValue(t, idx, store, t.RootNode(), player)
}

func profileValue(t *tree.GameTree, idx *TreeIndex, store *Store, n *tree.GameNode, player int8) float64 {
	switch n.Kind {
	case tree.NodeTerminal:
		return n.Utils[player]
	case tree.NodeChance:
		sum := 0.0
		for i, cid := range n.Children {
			sum += n.ChanceProbs[i] * profileValue(t, idx, store, t.Node(cid), player)
		}
		return sum
	}
	strategy := storedAverageStrategy(idx, store, n)
	sum := 0.0
	for i, cid := range n.Children {
		sum += strategy[i] * profileValue(t, idx, store, t.Node(cid), player)
	}
	return sum
}
