package solver

import (
	"math"
	rand "math/rand/v2"

	"github.com/bizarc/lhecfr/sdk/tree"
)

// TraversalStats captures instrumentation for one iteration's traversals.
type TraversalStats struct {
	NodesVisited    int64
	TerminalNodes   int64
	InfoSetsTouched int64
	MaxDepth        int
}

func (s *TraversalStats) merge(o TraversalStats) {
	s.NodesVisited += o.NodesVisited
	s.TerminalNodes += o.TerminalNodes
	s.InfoSetsTouched += o.InfoSetsTouched
	if o.MaxDepth > s.MaxDepth {
		s.MaxDepth = o.MaxDepth
	}
}

// engine performs the regret-minimising traversal over one tree. It is
// stateless between calls apart from the shared store and cache, so one
// engine serves every worker.
type engine struct {
	tree  *tree.GameTree
	index *TreeIndex
	store *Store
	cache *Cache
	cfg   CFRConfig
}

// traversalContext is the per-worker mutable state of one traversal.
type traversalContext struct {
	rng       *rand.Rand
	deal      *Deal
	iteration int64
	traverser int8
	stats     *TraversalStats
}

// traverse returns the expected utility of the node for the traversing
// player. reachP is the traverser's own reach probability, reachO the
// combined reach of the opponent and chance.
func (e *engine) traverse(ctx *traversalContext, n *tree.GameNode, reachP, reachO float64, depth int) float64 {
	ctx.stats.NodesVisited++
	if depth > ctx.stats.MaxDepth {
		ctx.stats.MaxDepth = depth
	}

	switch n.Kind {
	case tree.NodeTerminal:
		ctx.stats.TerminalNodes++
		return e.terminalUtility(ctx, n)
	case tree.NodeChance:
		return e.chanceNode(ctx, n, reachP, reachO, depth)
	default:
		return e.playerNode(ctx, n, reachP, reachO, depth)
	}
}

func (e *engine) terminalUtility(ctx *traversalContext, n *tree.GameNode) float64 {
	if n.TermKind == tree.TerminalShowdown && ctx.deal != nil {
		return ctx.deal.ShowdownUtility(n, ctx.traverser)
	}
	return n.Utils[ctx.traverser]
}

// chanceNode handles dealing points in fixture games. Full traversal
// enumerates every outcome weighted by its prior; chance sampling visits a
// uniform subset scaled back up; outcome sampling follows a single draw.
func (e *engine) chanceNode(ctx *traversalContext, n *tree.GameNode, reachP, reachO float64, depth int) float64 {
	if e.cfg.UseSampling && e.cfg.Sampling == SamplingOutcome {
		i := sampleIndex(ctx.rng, n.ChanceProbs)
		return e.traverse(ctx, e.tree.Node(n.Children[i]), reachP, reachO, depth+1)
	}
	if e.cfg.UseSampling && (e.cfg.Sampling == SamplingChance || e.cfg.Sampling == SamplingExternal) {
		p := clampProbability(e.cfg.SamplingProbability)
		if e.cfg.Sampling == SamplingExternal {
			// External sampling draws a single chance outcome.
			i := sampleIndex(ctx.rng, n.ChanceProbs)
			return e.traverse(ctx, e.tree.Node(n.Children[i]), reachP, reachO, depth+1)
		}
		total := len(n.Children)
		m := int(math.Ceil(p * float64(total)))
		if m >= total {
			return e.enumerateChance(ctx, n, reachP, reachO, depth)
		}
		picked := sampleWithoutReplacement(ctx.rng, total, m)
		scale := float64(total) / float64(m)
		sum := 0.0
		for _, i := range picked {
			prior := n.ChanceProbs[i]
			sum += prior * e.traverse(ctx, e.tree.Node(n.Children[i]), reachP, reachO*prior, depth+1)
		}
		return scale * sum
	}
	return e.enumerateChance(ctx, n, reachP, reachO, depth)
}

func (e *engine) enumerateChance(ctx *traversalContext, n *tree.GameNode, reachP, reachO float64, depth int) float64 {
	sum := 0.0
	for i, cid := range n.Children {
		prior := n.ChanceProbs[i]
		sum += prior * e.traverse(ctx, e.tree.Node(cid), reachP, reachO*prior, depth+1)
	}
	return sum
}

// infoSetKey resolves a player node to its full canonical id, splicing the
// deal's card tokens into the card-free id from the index.
func (e *engine) infoSetKey(ctx *traversalContext, n *tree.GameNode) string {
	if ctx.deal == nil {
		return e.index.InfoSetOf(n.ID)
	}
	return tree.ComposeInfoSetID(n.Player, n.Street,
		ctx.deal.HoleToken(n.Player), ctx.deal.BoardToken(n.Street), n.History)
}

// record fetches the infoset record through the cache.
func (e *engine) record(key string, actions int) *InfoSet {
	if e.cache != nil {
		if rec, ok := e.cache.Get(key); ok {
			return rec
		}
	}
	rec := e.store.GetOrCreate(key, actions)
	if e.cache != nil {
		e.cache.Put(key, rec)
	}
	return rec
}

func (e *engine) playerNode(ctx *traversalContext, n *tree.GameNode, reachP, reachO float64, depth int) float64 {
	key := e.infoSetKey(ctx, n)
	rec := e.record(key, len(n.Children))
	ctx.stats.InfoSetsTouched++

	mu := e.store.Lock(key)
	strategy := CurrentStrategy(rec, e.cfg.PruneThreshold, nil)
	mu.Unlock()

	owned := n.Player == ctx.traverser

	if e.cfg.UseSampling {
		switch e.cfg.Sampling {
		case SamplingExternal:
			if !owned {
				// Sample the opponent; the sampling probability cancels
				// in the counterfactual value.
				i := sampleStrategyIndex(ctx.rng, strategy)
				return e.traverse(ctx, e.tree.Node(n.Children[i]), reachP, reachO, depth+1)
			}
		case SamplingOutcome:
			return e.outcomeSample(ctx, n, key, rec, strategy, reachP, reachO, owned, depth)
		}
	}

	// Full enumeration of the fan-out.
	utils := make([]float64, len(n.Children))
	nodeUtil := 0.0
	for i, cid := range n.Children {
		child := e.tree.Node(cid)
		var u float64
		if owned {
			u = e.traverse(ctx, child, reachP*strategy[i], reachO, depth+1)
		} else {
			u = e.traverse(ctx, child, reachP, reachO*strategy[i], depth+1)
		}
		utils[i] = u
		nodeUtil += strategy[i] * u
	}

	if owned {
		regrets := make([]float64, len(utils))
		for i, u := range utils {
			regrets[i] = reachO * (u - nodeUtil)
		}
		e.applyUpdates(ctx, key, rec, regrets, strategy, reachP)
	}
	return nodeUtil
}

// outcomeSample follows a single sampled action, importance-weighting the
// estimate so regret updates stay unbiased.
func (e *engine) outcomeSample(ctx *traversalContext, n *tree.GameNode, key string, rec *InfoSet, strategy []float64, reachP, reachO float64, owned bool, depth int) float64 {
	j, q := sampleStrategyIndexProb(ctx.rng, strategy)
	child := e.tree.Node(n.Children[j])

	if !owned {
		return e.traverse(ctx, child, reachP, reachO, depth+1)
	}

	u := e.traverse(ctx, child, reachP*strategy[j], reachO, depth+1)
	est := u / q
	nodeUtil := strategy[j] * est

	regrets := make([]float64, len(strategy))
	for i := range regrets {
		if i == j {
			regrets[i] = reachO * (est - nodeUtil)
		} else {
			regrets[i] = reachO * (0 - nodeUtil)
		}
	}
	e.applyUpdates(ctx, key, rec, regrets, strategy, reachP)
	return nodeUtil
}

// applyUpdates commits regret and strategy-sum deltas under the id's
// striped lock. The CFR+ clamp happens inside the critical section so
// concurrent updates can never resurrect a negative regret.
func (e *engine) applyUpdates(ctx *traversalContext, key string, rec *InfoSet, regrets, strategy []float64, reachP float64) {
	weight := 1.0
	if e.cfg.UseLinearWeighting || e.cfg.UseCFRPlus {
		weight = float64(ctx.iteration)
		if weight < 1 {
			weight = 1
		}
	}
	mu := e.store.Lock(key)
	e.store.UpdateRegrets(rec, regrets, e.cfg.UseCFRPlus, ctx.iteration)
	e.store.UpdateStrategySum(rec, strategy, reachP, weight)
	mu.Unlock()
}

func clampProbability(p float64) float64 {
	if p <= 0 {
		return 1e-9
	}
	if p > 1 {
		return 1
	}
	return p
}

func sampleIndex(rng *rand.Rand, probs []float64) int {
	r := rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r <= acc {
			return i
		}
	}
	return len(probs) - 1
}

func sampleStrategyIndex(rng *rand.Rand, strategy []float64) int {
	i, _ := sampleStrategyIndexProb(rng, strategy)
	return i
}

// sampleStrategyIndexProb draws an action from the strategy with a uniform
// exploration floor and returns the effective sampling probability.
func sampleStrategyIndexProb(rng *rand.Rand, strategy []float64) (int, float64) {
	const explore = 0.1
	k := len(strategy)
	floor := explore / float64(k)
	r := rng.Float64()
	acc := 0.0
	for i, p := range strategy {
		q := floor + (1-explore)*p
		acc += q
		if r <= acc || i == k-1 {
			return i, q
		}
	}
	return k - 1, floor + (1-explore)*strategy[k-1]
}

func sampleWithoutReplacement(rng *rand.Rand, n, m int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx[:m]
}
