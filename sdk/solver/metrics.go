package solver

import (
	"math"
	"time"
)

// MetricsSample is one row of the convergence history.
type MetricsSample struct {
	Iteration         int64
	Exploitability    float64
	TotalAbsRegret    float64
	AvgStrategyChange float64
	MaxStrategyChange float64
	AvgEntropy        float64
	InfoSetsVisited   int
	Elapsed           time.Duration
}

// ConvergenceTracker keeps bounded per-iteration histories and derives
// trend statistics from the trailing window.
type ConvergenceTracker struct {
	maxHistory int
	window     int
	samples    []MetricsSample

	// previous average strategies, for change tracking between samples.
	prev map[string][]float64
}

// NewConvergenceTracker bounds the history at maxHistory samples and uses
// window samples for trend estimates.
func NewConvergenceTracker(maxHistory, window int) *ConvergenceTracker {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	if window <= 0 || window > maxHistory {
		window = 20
	}
	return &ConvergenceTracker{
		maxHistory: maxHistory,
		window:     window,
		prev:       make(map[string][]float64),
	}
}

// Record snapshots the store against the previous snapshot and appends a
// sample. Old samples fall off the front once the history is full.
func (c *ConvergenceTracker) Record(iteration int64, exploitability float64, store *Store, stats TraversalStats, elapsed time.Duration) MetricsSample {
	sample := MetricsSample{
		Iteration:       iteration,
		Exploitability:  exploitability,
		TotalAbsRegret:  store.TotalAbsoluteRegret(),
		InfoSetsVisited: store.Len(),
		Elapsed:         elapsed,
	}

	next := make(map[string][]float64, store.Len())
	var changeSum, changeMax float64
	var entropySum float64
	changed := 0
	store.Range(func(key string, rec *InfoSet) bool {
		avg := AverageStrategy(rec)
		next[key] = avg
		entropySum += entropy(avg)
		if old, ok := c.prev[key]; ok && len(old) == len(avg) {
			d := 0.0
			for i := range avg {
				d += math.Abs(avg[i] - old[i])
			}
			d /= float64(len(avg))
			changeSum += d
			if d > changeMax {
				changeMax = d
			}
			changed++
		}
		return true
	})
	if changed > 0 {
		sample.AvgStrategyChange = changeSum / float64(changed)
	}
	sample.MaxStrategyChange = changeMax
	if len(next) > 0 {
		sample.AvgEntropy = entropySum / float64(len(next))
	}
	c.prev = next

	c.samples = append(c.samples, sample)
	if len(c.samples) > c.maxHistory {
		c.samples = c.samples[len(c.samples)-c.maxHistory:]
	}
	return sample
}

// History returns the recorded samples, oldest first.
func (c *ConvergenceTracker) History() []MetricsSample {
	return c.samples
}

// Latest returns the most recent sample, if any.
func (c *ConvergenceTracker) Latest() (MetricsSample, bool) {
	if len(c.samples) == 0 {
		return MetricsSample{}, false
	}
	return c.samples[len(c.samples)-1], true
}

// ConvergenceRate returns the least-squares slope of log-exploitability
// over the trailing window. Negative slopes mean the solve is converging;
// zero is returned until two positive measurements exist.
func (c *ConvergenceTracker) ConvergenceRate() float64 {
	var xs, ys []float64
	start := len(c.samples) - c.window
	if start < 0 {
		start = 0
	}
	for _, s := range c.samples[start:] {
		if s.Exploitability <= 0 {
			continue
		}
		xs = append(xs, float64(s.Iteration))
		ys = append(ys, math.Log(s.Exploitability))
	}
	if len(xs) < 2 {
		return 0
	}
	return slope(xs, ys)
}

// Stability scores the trailing window as 1 minus the mean strategy change,
// clamped to [0, 1]: 1 means the average strategy has stopped moving.
func (c *ConvergenceTracker) Stability() float64 {
	start := len(c.samples) - c.window
	if start < 0 {
		start = 0
	}
	tail := c.samples[start:]
	if len(tail) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range tail {
		sum += s.AvgStrategyChange
	}
	stability := 1 - sum/float64(len(tail))
	if stability < 0 {
		return 0
	}
	if stability > 1 {
		return 1
	}
	return stability
}

func entropy(dist []float64) float64 {
	h := 0.0
	for _, p := range dist {
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}

func slope(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / denom
}
