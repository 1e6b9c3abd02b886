package solver

import (
	"testing"

	"github.com/bizarc/lhecfr/sdk/tree"
)

func monitorWithUsage(t *testing.T, cfg MemoryMonitorConfig, used uint64) *MemoryMonitor {
	t.Helper()
	m, err := NewMemoryMonitor(cfg)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	m.readMemory = func() uint64 { return used }
	return m
}

func TestMemoryPressureLevels(t *testing.T) {
	t.Parallel()
	cfg := MemoryMonitorConfig{MaxMemoryGB: 1} // thresholds default to 0.7/0.9
	tests := []struct {
		used uint64
		want PressureLevel
	}{
		{100e6, PressureNormal},
		{750e6, PressureWarning},
		{950e6, PressureCritical},
	}
	for _, tt := range tests {
		m := monitorWithUsage(t, cfg, tt.used)
		tr, err := tree.BuildGameTree(tree.DefaultParams(), tree.BuildOptions{PreflopOnly: true})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		event, err := m.Check(tr, NewStore(64), 1)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if event.Level != tt.want {
			t.Errorf("used %d: level %v, want %v", tt.used, event.Level, tt.want)
		}
		if event.Pruned {
			t.Errorf("used %d: pruned without auto-prune enabled", tt.used)
		}
	}
}

func TestMemoryCriticalTriggersAutoPrune(t *testing.T) {
	t.Parallel()
	m := monitorWithUsage(t, MemoryMonitorConfig{
		MaxMemoryGB: 1,
		AutoPrune:   true,
		Strategy:    tree.PruneAdaptively,
	}, 990e6)

	tr, err := tree.BuildGameTree(tree.DefaultParams(), tree.BuildOptions{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	store := NewStore(64)
	rec := store.GetOrCreate("stale", 2)
	store.UpdateRegrets(rec, []float64{1, 1}, false, 1)

	before := tr.NumNodes()
	event, err := m.Check(tr, store, 5000)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !event.Pruned {
		t.Fatal("critical pressure did not trigger a prune")
	}
	if tr.NumNodes() >= before {
		t.Fatalf("tree did not shrink: %d -> %d", before, tr.NumNodes())
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("tree invalid after auto-prune: %v", err)
	}
	if store.Get("stale") != nil {
		t.Fatal("stale infoset survived the prune")
	}
	if len(m.History()) != 1 {
		t.Fatalf("history length = %d", len(m.History()))
	}
}

func TestMemoryMonitorRejectsBadThresholds(t *testing.T) {
	t.Parallel()
	if _, err := NewMemoryMonitor(MemoryMonitorConfig{MaxMemoryGB: 1, WarningThreshold: 0.95, CriticalThreshold: 0.9}); err == nil {
		t.Fatal("expected threshold order error")
	}
	if _, err := NewMemoryMonitor(MemoryMonitorConfig{}); err == nil {
		t.Fatal("expected missing budget error")
	}
}
