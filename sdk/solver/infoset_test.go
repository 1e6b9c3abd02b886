package solver

import (
	"math"
	"testing"
)

func TestStoreGetOrCreate(t *testing.T) {
	t.Parallel()
	s := NewStore(64)
	rec := s.GetOrCreate("P0|PRE|", 3)
	if rec.NumActions() != 3 {
		t.Fatalf("actions = %d, want 3", rec.NumActions())
	}
	again := s.GetOrCreate("P0|PRE|", 3)
	if rec != again {
		t.Fatal("second GetOrCreate returned a different record")
	}
	if s.Get("P0|PRE|") != rec {
		t.Fatal("Get did not find the record")
	}
	if s.Get("missing") != nil {
		t.Fatal("Get invented a record")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
}

func TestCurrentStrategyRegretMatching(t *testing.T) {
	t.Parallel()
	rec := &InfoSet{Regrets: []float64{3, 1, -2}, StrategySum: make([]float64, 3)}
	strat := CurrentStrategy(rec, 0, nil)
	if math.Abs(strat[0]-0.75) > 1e-12 || math.Abs(strat[1]-0.25) > 1e-12 || strat[2] != 0 {
		t.Fatalf("strategy = %v", strat)
	}
	assertDistribution(t, strat)
}

func TestCurrentStrategyUniformFallback(t *testing.T) {
	t.Parallel()
	rec := &InfoSet{Regrets: []float64{-1, -2, 0}, StrategySum: make([]float64, 3)}
	strat := CurrentStrategy(rec, 0, nil)
	for i, p := range strat {
		if math.Abs(p-1.0/3) > 1e-12 {
			t.Fatalf("strat[%d] = %v, want uniform", i, p)
		}
	}
}

func TestCurrentStrategySingleAction(t *testing.T) {
	t.Parallel()
	rec := &InfoSet{Regrets: []float64{0}, StrategySum: []float64{0}}
	strat := CurrentStrategy(rec, 0, nil)
	if len(strat) != 1 || strat[0] != 1.0 {
		t.Fatalf("k=1 strategy = %v, want [1.0]", strat)
	}
}

func TestCurrentStrategyPruneThreshold(t *testing.T) {
	t.Parallel()
	rec := &InfoSet{Regrets: []float64{5, -400, 5}, StrategySum: make([]float64, 3)}
	strat := CurrentStrategy(rec, -300, nil)
	if strat[1] != 0 {
		t.Fatalf("pruned action still in support: %v", strat)
	}
	if math.Abs(strat[0]-0.5) > 1e-12 || math.Abs(strat[2]-0.5) > 1e-12 {
		t.Fatalf("strategy = %v", strat)
	}
}

func TestAverageStrategyUnvisitedIsUniform(t *testing.T) {
	t.Parallel()
	rec := &InfoSet{Regrets: make([]float64, 4), StrategySum: make([]float64, 4)}
	avg := AverageStrategy(rec)
	for i, p := range avg {
		if math.Abs(p-0.25) > 1e-12 {
			t.Fatalf("avg[%d] = %v, want 0.25", i, p)
		}
	}
}

func TestUpdateRegretsClampsUnderCFRPlus(t *testing.T) {
	t.Parallel()
	s := NewStore(64)
	rec := s.GetOrCreate("x", 2)
	s.UpdateRegrets(rec, []float64{-5, 3}, true, 1)
	if rec.Regrets[0] != 0 || rec.Regrets[1] != 3 {
		t.Fatalf("regrets = %v", rec.Regrets)
	}
	s.UpdateRegrets(rec, []float64{2, -10}, true, 2)
	if rec.Regrets[0] != 2 || rec.Regrets[1] != 0 {
		t.Fatalf("regrets = %v", rec.Regrets)
	}
	if rec.LastIteration != 2 {
		t.Fatalf("last iteration = %d", rec.LastIteration)
	}
}

func TestUpdateRegretsKeepsNegativesWithoutPlus(t *testing.T) {
	t.Parallel()
	s := NewStore(64)
	rec := s.GetOrCreate("x", 2)
	s.UpdateRegrets(rec, []float64{-5, 3}, false, 1)
	if rec.Regrets[0] != -5 {
		t.Fatalf("regrets = %v", rec.Regrets)
	}
}

func TestUpdateDimensionMismatchPanics(t *testing.T) {
	t.Parallel()
	s := NewStore(64)
	rec := s.GetOrCreate("x", 2)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on dimension mismatch")
		}
	}()
	s.UpdateRegrets(rec, []float64{1, 2, 3}, false, 1)
}

func TestUpdateStrategySumLinearWeight(t *testing.T) {
	t.Parallel()
	s := NewStore(64)
	rec := s.GetOrCreate("x", 2)
	s.UpdateStrategySum(rec, []float64{0.25, 0.75}, 0.5, 4)
	if math.Abs(rec.StrategySum[0]-0.5) > 1e-12 || math.Abs(rec.StrategySum[1]-1.5) > 1e-12 {
		t.Fatalf("strategy sum = %v", rec.StrategySum)
	}
}

func TestPruneUnusedRemovesStale(t *testing.T) {
	t.Parallel()
	s := NewStore(64)
	old := s.GetOrCreate("old", 2)
	s.UpdateRegrets(old, []float64{1, 1}, false, 5)
	fresh := s.GetOrCreate("fresh", 2)
	s.UpdateRegrets(fresh, []float64{1, 1}, false, 100)

	removed := s.PruneUnused(100, 50)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if s.Get("old") != nil {
		t.Fatal("stale record survived")
	}
	if s.Get("fresh") == nil {
		t.Fatal("fresh record pruned")
	}
}

func TestResetVectors(t *testing.T) {
	t.Parallel()
	s := NewStore(64)
	rec := s.GetOrCreate("x", 2)
	s.UpdateRegrets(rec, []float64{4, 2}, false, 1)
	s.UpdateStrategySum(rec, []float64{0.5, 0.5}, 1, 1)
	s.ResetRegrets(rec)
	s.ResetStrategySum(rec)
	for i := range rec.Regrets {
		if rec.Regrets[i] != 0 || rec.StrategySum[i] != 0 {
			t.Fatalf("vectors not zeroed: %v %v", rec.Regrets, rec.StrategySum)
		}
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()
	s := NewStore(64)
	rec := s.GetOrCreate("a", 2)
	s.UpdateRegrets(rec, []float64{1, 2}, false, 3)
	s.UpdateStrategySum(rec, []float64{0.4, 0.6}, 1, 1)

	snap := s.Snapshot()
	other := NewStore(64)
	other.Restore(snap)
	got := other.Get("a")
	if got == nil || got.Regrets[1] != 2 || got.LastIteration != 3 {
		t.Fatalf("restored record = %+v", got)
	}
}

func assertDistribution(t *testing.T, dist []float64) {
	t.Helper()
	sum := 0.0
	for _, p := range dist {
		if p < 0 {
			t.Fatalf("negative probability in %v", dist)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-10 {
		t.Fatalf("distribution sums to %v: %v", sum, dist)
	}
}
