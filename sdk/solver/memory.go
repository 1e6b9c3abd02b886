package solver

import (
	"errors"
	"runtime"
	"time"

	"github.com/bizarc/lhecfr/sdk/tree"
)

// PressureLevel grades current memory use against the configured budget.
type PressureLevel uint8

const (
	PressureNormal PressureLevel = iota
	PressureWarning
	PressureCritical
)

func (p PressureLevel) String() string {
	switch p {
	case PressureNormal:
		return "normal"
	case PressureWarning:
		return "warning"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MemoryEvent is one row of the monitor's history.
type MemoryEvent struct {
	At        time.Time
	UsedBytes uint64
	Level     PressureLevel
	Pruned    bool
	// PrunedNodes and PrunedInfoSets record what an auto-prune removed.
	PrunedNodes    int
	PrunedInfoSets int
}

// MemoryMonitorConfig bounds solver memory and wires the response to
// pressure.
type MemoryMonitorConfig struct {
	MaxMemoryGB       float64
	WarningThreshold  float64 // used/max fraction, default 0.7
	CriticalThreshold float64 // default 0.9
	AutoPrune         bool
	Strategy          tree.PruneStrategy
	// Aggressiveness scales how hard an auto-prune cuts: the adaptive node
	// target is (1-α) of the current size, depth pruning keeps (1-α) of the
	// deepest terminal's depth, and importance pruning uses α/100 as its
	// score threshold.
	Aggressiveness float64
	// StaleIterations feeds the store's stale-record prune.
	StaleIterations int64
}

// Validate fills defaults and rejects inconsistent thresholds.
func (c *MemoryMonitorConfig) Validate() error {
	if c.MaxMemoryGB <= 0 {
		return errors.New("max memory must be > 0")
	}
	if c.WarningThreshold == 0 {
		c.WarningThreshold = 0.7
	}
	if c.CriticalThreshold == 0 {
		c.CriticalThreshold = 0.9
	}
	if c.WarningThreshold <= 0 || c.WarningThreshold >= c.CriticalThreshold || c.CriticalThreshold > 1 {
		return errors.New("thresholds must satisfy 0 < warning < critical <= 1")
	}
	if c.Aggressiveness <= 0 || c.Aggressiveness >= 1 {
		c.Aggressiveness = 0.25
	}
	if c.StaleIterations <= 0 {
		c.StaleIterations = 1000
	}
	return nil
}

// MemoryMonitor polls heap use between iterations and reacts to pressure by
// pruning the tree and the infoset store. It only ever runs on the driver,
// while no traversal is in flight.
type MemoryMonitor struct {
	cfg     MemoryMonitorConfig
	history []MemoryEvent

	// readMemory is swapped out by tests.
	readMemory func() uint64
}

// NewMemoryMonitor validates the config and returns a monitor.
func NewMemoryMonitor(cfg MemoryMonitorConfig) (*MemoryMonitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MemoryMonitor{cfg: cfg, readMemory: heapInUse}, nil
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse
}

// level grades the given usage.
func (m *MemoryMonitor) level(used uint64) PressureLevel {
	frac := float64(used) / (m.cfg.MaxMemoryGB * 1e9)
	switch {
	case frac >= m.cfg.CriticalThreshold:
		return PressureCritical
	case frac >= m.cfg.WarningThreshold:
		return PressureWarning
	default:
		return PressureNormal
	}
}

// Check polls usage, appends to the history, and on critical pressure (with
// auto-prune enabled) prunes the tree and store, then forces a GC pass.
func (m *MemoryMonitor) Check(t *tree.GameTree, store *Store, currentIteration int64) (MemoryEvent, error) {
	used := m.readMemory()
	event := MemoryEvent{At: time.Now(), UsedBytes: used, Level: m.level(used)}

	if event.Level == PressureCritical && m.cfg.AutoPrune {
		nodesBefore := t.NumNodes()
		infoSetsBefore := store.Len()
		if err := m.prune(t); err != nil {
			return event, err
		}
		store.PruneUnused(currentIteration, m.cfg.StaleIterations)
		runtime.GC()
		event.Pruned = true
		event.PrunedNodes = nodesBefore - t.NumNodes()
		event.PrunedInfoSets = infoSetsBefore - store.Len()
	}

	m.history = append(m.history, event)
	return event, nil
}

func (m *MemoryMonitor) prune(t *tree.GameTree) error {
	switch m.cfg.Strategy {
	case tree.PruneByDepth:
		depth := int(float64(maxTreeDepth(t)) * (1 - m.cfg.Aggressiveness))
		if depth < 1 {
			depth = 1
		}
		return tree.PruneDepth(t, depth)
	case tree.PruneByImportance:
		return tree.PruneImportance(t, m.cfg.Aggressiveness*0.01)
	case tree.PruneByFrequency:
		// Without visit counts the frequency strategy degrades to the
		// adaptive cut.
		fallthrough
	default:
		target := int(float64(t.NumNodes()) * (1 - m.cfg.Aggressiveness))
		return tree.PruneAdaptive(t, target, 16)
	}
}

// History returns the monotone event log.
func (m *MemoryMonitor) History() []MemoryEvent {
	return m.history
}

func maxTreeDepth(t *tree.GameTree) int {
	maxDepth := 0
	for _, id := range t.TerminalIDs {
		n := t.Node(id)
		d := 0
		for cur := n; cur != nil && cur.Parent != tree.NoNode; cur = t.Node(cur.Parent) {
			d++
		}
		if d > maxDepth {
			maxDepth = d
		}
	}
	return maxDepth
}
