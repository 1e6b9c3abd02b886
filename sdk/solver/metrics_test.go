package solver

import (
	"math"
	"testing"
	"time"
)

func TestConvergenceTrackerHistoryBounded(t *testing.T) {
	t.Parallel()
	tracker := NewConvergenceTracker(5, 3)
	store := NewStore(64)
	for i := 1; i <= 10; i++ {
		tracker.Record(int64(i), 1.0/float64(i), store, TraversalStats{}, time.Second)
	}
	if len(tracker.History()) != 5 {
		t.Fatalf("history length = %d, want 5", len(tracker.History()))
	}
	latest, ok := tracker.Latest()
	if !ok || latest.Iteration != 10 {
		t.Fatalf("latest = %+v", latest)
	}
}

func TestConvergenceRateNegativeWhenImproving(t *testing.T) {
	t.Parallel()
	tracker := NewConvergenceTracker(100, 10)
	store := NewStore(64)
	for i := 1; i <= 10; i++ {
		// Exponentially decaying exploitability.
		tracker.Record(int64(i), math.Exp(-float64(i)), store, TraversalStats{}, 0)
	}
	rate := tracker.ConvergenceRate()
	if rate >= 0 {
		t.Fatalf("rate = %v, want negative slope", rate)
	}
	if math.Abs(rate-(-1)) > 1e-6 {
		t.Fatalf("rate = %v, want -1", rate)
	}
}

func TestStrategyChangeAndStability(t *testing.T) {
	t.Parallel()
	tracker := NewConvergenceTracker(100, 10)
	store := NewStore(64)
	rec := store.GetOrCreate("x", 2)

	store.UpdateStrategySum(rec, []float64{1, 0}, 1, 1)
	tracker.Record(1, 1, store, TraversalStats{}, 0)

	// Shift the average and observe the change.
	store.UpdateStrategySum(rec, []float64{0, 1}, 1, 3)
	sample := tracker.Record(2, 1, store, TraversalStats{}, 0)
	if sample.AvgStrategyChange <= 0 {
		t.Fatalf("expected non-zero strategy change, got %v", sample.AvgStrategyChange)
	}
	if sample.MaxStrategyChange < sample.AvgStrategyChange {
		t.Fatalf("max change %v below average %v", sample.MaxStrategyChange, sample.AvgStrategyChange)
	}

	stability := tracker.Stability()
	if stability < 0 || stability > 1 {
		t.Fatalf("stability = %v outside [0, 1]", stability)
	}
}

func TestEntropyOfUniformStrategy(t *testing.T) {
	t.Parallel()
	tracker := NewConvergenceTracker(10, 5)
	store := NewStore(64)
	store.GetOrCreate("u", 4) // untouched record averages to uniform
	sample := tracker.Record(1, 1, store, TraversalStats{}, 0)
	if math.Abs(sample.AvgEntropy-2) > 1e-9 { // log2(4)
		t.Fatalf("entropy = %v, want 2 bits", sample.AvgEntropy)
	}
}

func TestRegretBoundDecaysWithIterations(t *testing.T) {
	t.Parallel()
	store := NewStore(64)
	rec := store.GetOrCreate("x", 2)
	store.UpdateRegrets(rec, []float64{10, 4}, false, 1)

	early := RegretBound(store, 10)
	late := RegretBound(store, 1000)
	if early != 1.0 {
		t.Fatalf("bound at t=10: %v, want 1.0", early)
	}
	if late >= early {
		t.Fatalf("bound did not decay: %v -> %v", early, late)
	}
}
