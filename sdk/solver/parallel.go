package solver

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	rand "math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/bizarc/lhecfr/internal/randutil"
)

// SchedulePolicy selects how iteration work is split across workers.
type SchedulePolicy uint8

const (
	ScheduleStatic SchedulePolicy = iota
	ScheduleDynamic
	ScheduleWorkStealing
)

func (p SchedulePolicy) String() string {
	switch p {
	case ScheduleStatic:
		return "static"
	case ScheduleDynamic:
		return "dynamic"
	case ScheduleWorkStealing:
		return "work-stealing"
	default:
		return "unknown"
	}
}

// ParseSchedulePolicy maps a config spelling to a policy.
func ParseSchedulePolicy(s string) (SchedulePolicy, error) {
	switch s {
	case "", "static":
		return ScheduleStatic, nil
	case "dynamic":
		return ScheduleDynamic, nil
	case "stealing", "work-stealing":
		return ScheduleWorkStealing, nil
	default:
		return ScheduleStatic, errors.New("unknown schedule policy " + s)
	}
}

// WorkerStats is the per-worker accounting for one run.
type WorkerStats struct {
	Worker int
	Items  int64
	Steals int64
	Busy   time.Duration
}

// Coordinator fans one iteration's work items out over a fixed worker pool.
// Infoset updates are already serialized by the store's striped locks; the
// coordinator only divides indices and provides the end-of-iteration
// barrier. Cancellation is cooperative: a stop request is observed between
// chunks, so in-flight chunks drain before workers exit.
type Coordinator struct {
	workers   int
	policy    SchedulePolicy
	chunkSize int
	seed      int64

	stopped atomic.Bool
	statsMu sync.Mutex
	stats   []WorkerStats
}

// NewCoordinator creates a pool of the given width. chunkSize bounds how
// many items a worker claims per grab under the dynamic and stealing
// policies (minimum 1).
func NewCoordinator(workers int, policy SchedulePolicy, chunkSize int, seed int64) (*Coordinator, error) {
	if workers <= 0 {
		return nil, errors.New("coordinator needs at least one worker")
	}
	if chunkSize <= 0 {
		chunkSize = 1
	}
	return &Coordinator{
		workers:   workers,
		policy:    policy,
		chunkSize: chunkSize,
		seed:      seed,
		stats:     make([]WorkerStats, workers),
	}, nil
}

// RequestStop asks workers to exit after their current chunk.
func (c *Coordinator) RequestStop() {
	c.stopped.Store(true)
}

// Stopped reports whether a stop was requested.
func (c *Coordinator) Stopped() bool {
	return c.stopped.Load()
}

// ResetStop clears a previous stop request for the next run.
func (c *Coordinator) ResetStop() {
	c.stopped.Store(false)
}

// Stats returns a copy of the accumulated per-worker statistics.
func (c *Coordinator) Stats() []WorkerStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	out := make([]WorkerStats, len(c.stats))
	copy(out, c.stats)
	return out
}

// Run distributes item indices [0, items) over the pool and blocks until
// every claimed item completed (the iteration barrier). fn must be safe for
// concurrent calls with distinct items.
func (c *Coordinator) Run(ctx context.Context, items int, fn func(worker, item int) error) error {
	if items == 0 {
		return nil
	}
	switch c.policy {
	case ScheduleDynamic:
		return c.runDynamic(ctx, items, fn)
	case ScheduleWorkStealing:
		return c.runStealing(ctx, items, fn)
	default:
		return c.runStatic(ctx, items, fn)
	}
}

// runStatic hands each worker one contiguous range at iteration start.
func (c *Coordinator) runStatic(ctx context.Context, items int, fn func(int, int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	per := (items + c.workers - 1) / c.workers
	for w := 0; w < c.workers; w++ {
		worker := w
		lo := worker * per
		hi := min(lo+per, items)
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			done := int64(0)
			defer func() { c.addStats(worker, done, 0, time.Since(start)) }()
			for i := lo; i < hi; i++ {
				if c.stopped.Load() || ctx.Err() != nil {
					return ctx.Err()
				}
				if err := fn(worker, i); err != nil {
					return err
				}
				done++
			}
			return nil
		})
	}
	return g.Wait()
}

// runDynamic hands out chunks through one shared atomic counter.
func (c *Coordinator) runDynamic(ctx context.Context, items int, fn func(int, int) error) error {
	var next atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < c.workers; w++ {
		worker := w
		g.Go(func() error {
			start := time.Now()
			done := int64(0)
			defer func() { c.addStats(worker, done, 0, time.Since(start)) }()
			for {
				if c.stopped.Load() || ctx.Err() != nil {
					return ctx.Err()
				}
				lo := int(next.Add(int64(c.chunkSize))) - c.chunkSize
				if lo >= items {
					return nil
				}
				hi := min(lo+c.chunkSize, items)
				for i := lo; i < hi; i++ {
					if err := fn(worker, i); err != nil {
						return err
					}
					done++
				}
			}
		})
	}
	return g.Wait()
}

// stealDeque is a mutex-guarded worker queue: the owner pops from the head,
// thieves take from the tail.
type stealDeque struct {
	mu    sync.Mutex
	items []int
}

func (d *stealDeque) popHead() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return 0, false
	}
	item := d.items[0]
	d.items = d.items[1:]
	return item, true
}

func (d *stealDeque) stealTail(n int) []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil
	}
	if n > len(d.items) {
		n = len(d.items)
	}
	stolen := append([]int(nil), d.items[len(d.items)-n:]...)
	d.items = d.items[:len(d.items)-n]
	return stolen
}

func (d *stealDeque) push(items []int) {
	d.mu.Lock()
	d.items = append(d.items, items...)
	d.mu.Unlock()
}

// runStealing seeds each worker's deque with a contiguous share; idle
// workers steal chunks from the tail of a random victim until every deque
// drains.
func (c *Coordinator) runStealing(ctx context.Context, items int, fn func(int, int) error) error {
	deques := make([]*stealDeque, c.workers)
	per := (items + c.workers - 1) / c.workers
	for w := 0; w < c.workers; w++ {
		d := &stealDeque{}
		lo := w * per
		hi := min(lo+per, items)
		for i := lo; i < hi; i++ {
			d.items = append(d.items, i)
		}
		deques[w] = d
	}

	var remaining atomic.Int64
	remaining.Store(int64(items))

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < c.workers; w++ {
		worker := w
		g.Go(func() error {
			start := time.Now()
			rng := randutil.Derive(c.seed, worker)
			var done, steals int64
			defer func() { c.addStats(worker, done, steals, time.Since(start)) }()
			for remaining.Load() > 0 {
				if c.stopped.Load() || ctx.Err() != nil {
					return ctx.Err()
				}
				item, ok := deques[worker].popHead()
				if !ok {
					if !c.stealInto(rng, deques, worker) {
						if remaining.Load() == 0 {
							return nil
						}
						runtime.Gosched()
						continue
					}
					steals++
					continue
				}
				if err := fn(worker, item); err != nil {
					return err
				}
				done++
				remaining.Add(-1)
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Coordinator) stealInto(rng *rand.Rand, deques []*stealDeque, worker int) bool {
	victim := rng.IntN(len(deques))
	if victim == worker {
		return false
	}
	stolen := deques[victim].stealTail(c.chunkSize)
	if len(stolen) == 0 {
		return false
	}
	deques[worker].push(stolen)
	return true
}

func (c *Coordinator) addStats(worker int, items, steals int64, busy time.Duration) {
	c.statsMu.Lock()
	c.stats[worker].Worker = worker
	c.stats[worker].Items += items
	c.stats[worker].Steals += steals
	c.stats[worker].Busy += busy
	c.statsMu.Unlock()
}
