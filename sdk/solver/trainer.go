package solver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/bizarc/lhecfr/internal/randutil"
	"github.com/bizarc/lhecfr/poker"
	"github.com/bizarc/lhecfr/sdk/tree"
)

// Progress is the per-batch callback payload during training. The library
// never logs; callers turn these into whatever sink they use.
type Progress struct {
	Iteration      int64
	InfoSets       int
	Exploitability float64
	Stats          TraversalStats
	IterationTime  time.Duration
}

// TrainingStats summarises a finished (or stopped) run.
type TrainingStats struct {
	Iterations          int64
	Elapsed             time.Duration
	IterationsPerSecond float64
	InfoSets            int
	StoppingReason      string
	Exploitability      float64
}

// Stop reasons surfaced through TrainingStats. Matched by substring in
// callers, so keep them stable.
const (
	StopReasonExploitability = "target exploitability reached"
	StopReasonTime           = "time limit reached"
	StopReasonMaxIterations  = "maximum iterations reached"
	StopReasonCancelled      = "context cancelled"
)

// Trainer drives CFR iterations over one betting tree. All traversal state
// is per-iteration; the trainer itself owns the store, cache, index and the
// convergence bookkeeping.
type Trainer struct {
	params GameParams
	cfg    CFRConfig

	tree    *tree.GameTree
	index   *TreeIndex
	store   *Store
	cache   *Cache
	eng     *engine
	coord   *Coordinator
	tracker *ConvergenceTracker
	monitor *MemoryMonitor
	clock   quartz.Clock

	// useCards controls whether iterations sample private and board cards.
	// Betting trees that reach river showdowns need them; preflop-only and
	// fixture trees train card-free on their fixed terminal utilities.
	useCards bool

	iteration int64
	elapsed   time.Duration

	statsMu   sync.Mutex
	stats     TraversalStats
	rootVals  [2]float64
	exploit   float64
	stopWhy   string

	progress      func(Progress)
	progressEvery int64

	checkpointPath  string
	checkpointEvery int64
}

// TrainerOption customises trainer construction.
type TrainerOption func(*Trainer)

// WithClock injects a clock; tests pass a quartz mock to drive the
// time-limit stop condition without sleeping.
func WithClock(clock quartz.Clock) TrainerOption {
	return func(t *Trainer) { t.clock = clock }
}

// WithCache fronts the store with a bounded record cache.
func WithCache(cache *Cache) TrainerOption {
	return func(t *Trainer) { t.cache = cache }
}

// WithMemoryMonitor attaches pressure-driven pruning between iterations.
func WithMemoryMonitor(m *MemoryMonitor) TrainerOption {
	return func(t *Trainer) { t.monitor = m }
}

// WithProgress installs a progress callback invoked every n iterations.
func WithProgress(every int64, fn func(Progress)) TrainerOption {
	return func(t *Trainer) { t.progress = fn; t.progressEvery = every }
}

// WithCards forces card sampling on or off, overriding the tree heuristic.
func WithCards(use bool) TrainerOption {
	return func(t *Trainer) { t.useCards = use }
}

// WithSchedule selects the parallel scheduling policy and chunk size.
func WithSchedule(policy SchedulePolicy, chunkSize int) TrainerOption {
	return func(t *Trainer) {
		t.coord, _ = NewCoordinator(maxInt(t.cfg.Workers, 1), policy, chunkSize, t.cfg.Seed)
	}
}

// NewTrainer validates the configuration and wires the traversal engine.
func NewTrainer(gameTree *tree.GameTree, cfg CFRConfig, opts ...TrainerOption) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := gameTree.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tree: %w", err)
	}
	index, err := NewTreeIndex(gameTree)
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		params:   gameTree.Params,
		cfg:      cfg,
		tree:     gameTree,
		index:    index,
		store:    NewStore(128),
		tracker:  NewConvergenceTracker(1000, 20),
		clock:    quartz.NewReal(),
		useCards: treeNeedsCards(gameTree),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.coord == nil {
		t.coord, err = NewCoordinator(maxInt(cfg.Workers, 1), ScheduleStatic, 4, cfg.Seed)
		if err != nil {
			return nil, err
		}
	}
	t.eng = &engine{tree: gameTree, index: index, store: t.store, cache: t.cache, cfg: cfg}
	return t, nil
}

// treeNeedsCards reports whether any showdown requires a card deal: true
// once the tree reaches river showdowns.
func treeNeedsCards(t *tree.GameTree) bool {
	for _, id := range t.TerminalIDs {
		n := t.Node(id)
		if n.TermKind == tree.TerminalShowdown && n.Street == tree.River {
			return true
		}
	}
	return false
}

// EnableCheckpoints writes a snapshot every n iterations.
func (t *Trainer) EnableCheckpoints(path string, every int64) {
	t.checkpointPath = path
	t.checkpointEvery = every
}

// Train runs iterations until a stop condition fires, then records the
// reason. Each iteration performs one paired traversal (traverser 0, then
// traverser 1) per deal; the counter increments exactly once per pair.
func (t *Trainer) Train(ctx context.Context) error {
	start := t.clock.Now()
	t.coord.ResetStop()

	for t.iteration < int64(t.cfg.MaxIterations) {
		select {
		case <-ctx.Done():
			t.stopWhy = StopReasonCancelled
			t.elapsed += t.clock.Since(start)
			return ctx.Err()
		default:
		}

		iter := t.iteration + 1
		iterStart := t.clock.Now()
		stats, err := t.runIteration(ctx, iter)
		if err != nil {
			t.elapsed += t.clock.Since(start)
			return err
		}
		t.iteration = iter
		t.setStats(stats)

		if f := t.cfg.DiscountFactor; f > 0 && f < 1 {
			t.store.DiscountRegrets(f)
		}

		if t.checkpointPath != "" && t.checkpointEvery > 0 && iter%t.checkpointEvery == 0 {
			if err := t.SaveCheckpoint(t.checkpointPath); err != nil {
				t.elapsed += t.clock.Since(start)
				return err
			}
		}
		if t.progress != nil && t.progressEvery > 0 && iter%t.progressEvery == 0 {
			t.progress(Progress{
				Iteration:      iter,
				InfoSets:       t.store.Len(),
				Exploitability: t.exploit,
				Stats:          stats,
				IterationTime:  t.clock.Since(iterStart),
			})
		}

		if stop, why := t.checkStop(iter, t.clock.Since(start)); stop {
			t.stopWhy = why
			break
		}
	}
	if t.stopWhy == "" {
		t.stopWhy = StopReasonMaxIterations
	}
	t.elapsed += t.clock.Since(start)
	return nil
}

// checkStop evaluates the stop conditions every CheckFrequency iterations
// once MinIterations have run. Exploitability wins over the time limit,
// which wins over the iteration cap.
func (t *Trainer) checkStop(iter int64, elapsed time.Duration) (bool, string) {
	atCheck := iter >= int64(t.cfg.MinIterations) && iter%int64(t.cfg.CheckFrequency) == 0
	if atCheck {
		t.exploit = t.measureExploitability(iter)
		t.tracker.Record(iter, t.exploit, t.store, t.Stats(), t.elapsed+elapsed)

		if t.monitor != nil {
			if _, err := t.monitor.Check(t.tree, t.store, iter); err == nil {
				// A prune may have rewritten node ids; refresh the index.
				if idx, err := NewTreeIndex(t.tree); err == nil {
					t.index = idx
					t.eng.index = idx
				}
			}
		}

		if t.exploit <= t.cfg.TargetExploitability {
			return true, StopReasonExploitability
		}
		if t.cfg.MaxTimeSeconds > 0 && (t.elapsed+elapsed).Seconds() >= t.cfg.MaxTimeSeconds {
			return true, StopReasonTime
		}
	}
	if iter >= int64(t.cfg.MaxIterations) {
		return true, StopReasonMaxIterations
	}
	return false, ""
}

// measureExploitability walks a best response on enumerable card-free
// trees; sampled card play falls back to the positive-regret bound.
func (t *Trainer) measureExploitability(iter int64) float64 {
	if t.useCards {
		return RegretBound(t.store, iter)
	}
	return Exploitability(t.tree, t.index, t.store)
}

// runIteration executes one paired traversal for every deal of the batch,
// fanning items over the coordinator. Item results only meet at the root,
// which the driver completes after the barrier.
func (t *Trainer) runIteration(ctx context.Context, iter int64) (TraversalStats, error) {
	deals := t.sampleDeals(iter)

	root := t.tree.RootNode()
	if root.Kind != tree.NodePlayer {
		// Fixture trees can open on a chance node; traverse whole.
		return t.runWholeTree(ctx, iter, deals)
	}

	k := len(root.Children)
	items := len(deals) * k
	perItem := make([]TraversalStats, items)
	utils := make([]float64, items)
	strategies := make([][]float64, len(deals))

	var agg TraversalStats
	for traverser := int8(0); traverser < 2; traverser++ {
		for d := range deals {
			key := t.rootKey(deals[d], root)
			rec := t.eng.record(key, k)
			mu := t.store.Lock(key)
			strategies[d] = CurrentStrategy(rec, t.cfg.PruneThreshold, nil)
			mu.Unlock()
		}

		err := t.coord.Run(ctx, items, func(worker, item int) error {
			d, child := item/k, item%k
			sigma := strategies[d][child]
			tctx := &traversalContext{
				rng:       randutil.Derive(t.cfg.Seed+iter*1000003, item*2+int(traverser)),
				deal:      deals[d],
				iteration: iter,
				traverser: traverser,
				stats:     &perItem[item],
			}
			node := t.tree.Node(root.Children[child])
			if root.Player == traverser {
				utils[item] = t.eng.traverse(tctx, node, sigma, 1, 1)
			} else {
				utils[item] = t.eng.traverse(tctx, node, 1, sigma, 1)
			}
			return nil
		})
		if err != nil {
			return agg, err
		}

		// Complete the root update on the driver.
		rootVal := 0.0
		for d := range deals {
			key := t.rootKey(deals[d], root)
			rec := t.store.Get(key)
			sigma := strategies[d]
			nodeUtil := 0.0
			for i := 0; i < k; i++ {
				nodeUtil += sigma[i] * utils[d*k+i]
			}
			if root.Player == traverser {
				regrets := make([]float64, k)
				for i := 0; i < k; i++ {
					regrets[i] = utils[d*k+i] - nodeUtil
				}
				tctx := &traversalContext{iteration: iter, traverser: traverser}
				t.eng.applyUpdates(tctx, key, rec, regrets, sigma, 1)
			}
			rootVal += nodeUtil
		}
		t.rootVals[traverser] = rootVal / float64(len(deals))
		for i := range perItem {
			agg.merge(perItem[i])
			perItem[i] = TraversalStats{}
		}
	}
	agg.NodesVisited += int64(2 * len(deals)) // the root itself, per pass
	return agg, nil
}

// runWholeTree is the fallback for chance-rooted fixture trees: each deal
// is one item, traversed from the root.
func (t *Trainer) runWholeTree(ctx context.Context, iter int64, deals []*Deal) (TraversalStats, error) {
	perItem := make([]TraversalStats, len(deals))
	var agg TraversalStats
	for traverser := int8(0); traverser < 2; traverser++ {
		rootVal := 0.0
		var mu sync.Mutex
		err := t.coord.Run(ctx, len(deals), func(worker, item int) error {
			tctx := &traversalContext{
				rng:       randutil.Derive(t.cfg.Seed+iter*1000003, item*2+int(traverser)),
				deal:      deals[item],
				iteration: iter,
				traverser: traverser,
				stats:     &perItem[item],
			}
			v := t.eng.traverse(tctx, t.tree.RootNode(), 1, 1, 0)
			mu.Lock()
			rootVal += v
			mu.Unlock()
			return nil
		})
		if err != nil {
			return agg, err
		}
		t.rootVals[traverser] = rootVal / float64(len(deals))
		for i := range perItem {
			agg.merge(perItem[i])
			perItem[i] = TraversalStats{}
		}
	}
	return agg, nil
}

// rootKey resolves the root's infoset id for a deal.
func (t *Trainer) rootKey(deal *Deal, root *tree.GameNode) string {
	if deal == nil {
		return root.InfoSetID
	}
	return tree.ComposeInfoSetID(root.Player, root.Street,
		deal.HoleToken(root.Player), deal.BoardToken(root.Street), root.History)
}

// sampleDeals draws the iteration's card deals deterministically from the
// seed, or a single nil deal for card-free trees.
func (t *Trainer) sampleDeals(iter int64) []*Deal {
	if !t.useCards {
		return []*Deal{nil}
	}
	n := t.cfg.DealsPerIteration
	if n <= 0 {
		n = maxInt(1, t.cfg.Workers)
	}
	deals := make([]*Deal, n)
	for i := range deals {
		deck := poker.NewDeck(randutil.Derive(t.cfg.Seed+iter*999983, i))
		deals[i] = SampleDeal(deck)
	}
	return deals
}

func (t *Trainer) setStats(stats TraversalStats) {
	t.statsMu.Lock()
	t.stats = stats
	t.statsMu.Unlock()
}

// Stats returns the most recent iteration's traversal statistics.
func (t *Trainer) Stats() TraversalStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

// TrainingStats reports the run summary surfaced to callers.
func (t *Trainer) TrainingStats() TrainingStats {
	stats := TrainingStats{
		Iterations:     t.iteration,
		Elapsed:        t.elapsed,
		InfoSets:       t.store.Len(),
		StoppingReason: t.stopWhy,
		Exploitability: t.exploit,
	}
	if secs := t.elapsed.Seconds(); secs > 0 {
		stats.IterationsPerSecond = float64(t.iteration) / secs
	}
	return stats
}

// RootValues returns the latest paired-traversal root values, the
// per-traverser exploitability surrogates.
func (t *Trainer) RootValues() [2]float64 {
	return t.rootVals
}

// CurrentStrategyAt returns the regret-matching strategy at a node using
// its card-free infoset id.
func (t *Trainer) CurrentStrategyAt(n *tree.GameNode) []float64 {
	rec := t.store.Get(t.index.InfoSetOf(n.ID))
	if rec == nil {
		return uniform(len(n.Children))
	}
	return CurrentStrategy(rec, t.cfg.PruneThreshold, nil)
}

// AverageStrategyAt returns the averaged strategy at a node, uniform when
// never visited.
func (t *Trainer) AverageStrategyAt(n *tree.GameNode) []float64 {
	rec := t.store.Get(t.index.InfoSetOf(n.ID))
	if rec == nil {
		return uniform(len(n.Children))
	}
	return AverageStrategy(rec)
}

// Store exposes the infoset store for inspection and export.
func (t *Trainer) Store() *Store { return t.store }

// Tree returns the tree being solved.
func (t *Trainer) Tree() *tree.GameTree { return t.tree }

// Index returns the node-to-infoset index.
func (t *Trainer) Index() *TreeIndex { return t.index }

// Tracker returns the convergence history.
func (t *Trainer) Tracker() *ConvergenceTracker { return t.tracker }

// Coordinator exposes the worker pool, mainly for its statistics.
func (t *Trainer) Coordinator() *Coordinator { return t.coord }

// Iteration returns the number of completed iterations.
func (t *Trainer) Iteration() int64 { return t.iteration }

// Config returns the training configuration.
func (t *Trainer) Config() CFRConfig { return t.cfg }

func uniform(k int) []float64 {
	out := make([]float64, k)
	u := 1.0 / float64(k)
	for i := range out {
		out[i] = u
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
