package solver

import (
	"fmt"
	"math"
	"sync"
)

// InfoSet accumulates cumulative regrets and strategy-sum weights for one
// information set. Vectors are indexed like the actions of the nodes that
// carry the id; all mutation goes through the Store so the striped locks
// serialize concurrent updates.
type InfoSet struct {
	Regrets       []float64
	StrategySum   []float64
	LastIteration int64
}

// NumActions returns the action count the record was created with.
func (is *InfoSet) NumActions() int {
	return len(is.Regrets)
}

// StoreStats summarises the record population.
type StoreStats struct {
	InfoSets     int
	TotalActions int
	// BytesEstimate approximates resident size: two float64 vectors plus
	// record and map overhead per infoset.
	BytesEstimate int64
}

const storeShardCount = 64
const storeShardMask = storeShardCount - 1

type storeShard struct {
	mu      sync.RWMutex
	records map[string]*InfoSet
}

// Store maps canonical infoset ids to their regret records. Lookups go
// through 64 sharded maps; record mutation is serialized by a separate
// striped lock array so two workers touching different infosets never
// contend on the same mutex.
type Store struct {
	shards  [storeShardCount]storeShard
	stripes []sync.Mutex
}

// NewStore returns an empty store with the given number of striped update
// locks (rounded up to a power of two, minimum 64).
func NewStore(stripes int) *Store {
	n := 64
	for n < stripes {
		n <<= 1
	}
	s := &Store{stripes: make([]sync.Mutex, n)}
	for i := range s.shards {
		s.shards[i].records = make(map[string]*InfoSet)
	}
	return s
}

func (s *Store) shardFor(key string) *storeShard {
	return &s.shards[fnv32(key)&storeShardMask]
}

// Lock returns the striped mutex serializing updates for the given id and
// locks it. The caller must Unlock it.
func (s *Store) Lock(key string) *sync.Mutex {
	m := &s.stripes[fnv32(key)&uint32(len(s.stripes)-1)]
	m.Lock()
	return m
}

// GetOrCreate returns the record for the id, creating a zeroed one with the
// given action count on first touch.
func (s *Store) GetOrCreate(key string, actions int) *InfoSet {
	shard := s.shardFor(key)

	shard.mu.RLock()
	rec, ok := shard.records[key]
	shard.mu.RUnlock()
	if ok {
		return rec
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if rec, ok = shard.records[key]; ok {
		return rec
	}
	rec = &InfoSet{
		Regrets:     make([]float64, actions),
		StrategySum: make([]float64, actions),
	}
	shard.records[key] = rec
	return rec
}

// Get returns the record for the id, or nil when it was never visited.
func (s *Store) Get(key string) *InfoSet {
	shard := s.shardFor(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return shard.records[key]
}

// UpdateRegrets adds delta to the cumulative regrets, clamping at zero when
// plus is set (CFR+), and stamps the touch iteration. The delta dimension
// must match the record.
func (s *Store) UpdateRegrets(rec *InfoSet, delta []float64, plus bool, iteration int64) {
	if len(delta) != len(rec.Regrets) {
		panic(fmt.Sprintf("regret dimension mismatch: got %d, record has %d", len(delta), len(rec.Regrets)))
	}
	for i, d := range delta {
		rec.Regrets[i] += d
		if plus && rec.Regrets[i] < 0 {
			rec.Regrets[i] = 0
		}
	}
	rec.LastIteration = iteration
}

// UpdateStrategySum accumulates weight*reach*strategy into the averaging
// vector. Linear weighting passes the iteration number as weight.
func (s *Store) UpdateStrategySum(rec *InfoSet, strategy []float64, reach, weight float64) {
	if len(strategy) != len(rec.StrategySum) {
		panic(fmt.Sprintf("strategy dimension mismatch: got %d, record has %d", len(strategy), len(rec.StrategySum)))
	}
	w := weight * reach
	for i, p := range strategy {
		rec.StrategySum[i] += w * p
	}
}

// CurrentStrategy computes the regret-matching distribution into dst and
// returns it, allocating when dst is too small. Actions whose regret falls
// below pruneThreshold are removed from the support; a support that sums to
// zero falls back to uniform.
func CurrentStrategy(rec *InfoSet, pruneThreshold float64, dst []float64) []float64 {
	n := len(rec.Regrets)
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]

	total := 0.0
	for i, r := range rec.Regrets {
		if pruneThreshold != 0 && r < pruneThreshold {
			dst[i] = 0
			continue
		}
		if r > 0 {
			dst[i] = r
			total += r
		} else {
			dst[i] = 0
		}
	}
	if total <= 0 {
		u := 1.0 / float64(n)
		for i := range dst {
			dst[i] = u
		}
		return dst
	}
	for i := range dst {
		dst[i] /= total
	}
	return dst
}

// AverageStrategy returns the normalised strategy-sum vector, or uniform
// for an unvisited record.
func AverageStrategy(rec *InfoSet) []float64 {
	n := len(rec.StrategySum)
	out := make([]float64, n)
	total := 0.0
	for _, v := range rec.StrategySum {
		total += v
	}
	if total <= 0 {
		u := 1.0 / float64(n)
		for i := range out {
			out[i] = u
		}
		return out
	}
	for i, v := range rec.StrategySum {
		out[i] = v / total
	}
	return out
}

// ResetRegrets zeroes the regret vector.
func (s *Store) ResetRegrets(rec *InfoSet) {
	for i := range rec.Regrets {
		rec.Regrets[i] = 0
	}
}

// ResetStrategySum zeroes the averaging vector.
func (s *Store) ResetStrategySum(rec *InfoSet) {
	for i := range rec.StrategySum {
		rec.StrategySum[i] = 0
	}
}

// DiscountRegrets multiplies all regrets by factor. Used by discounted
// variants between iterations; factor 1 is a no-op.
func (s *Store) DiscountRegrets(factor float64) {
	if factor == 1 || factor <= 0 {
		return
	}
	s.Range(func(key string, rec *InfoSet) bool {
		mu := s.Lock(key)
		for i := range rec.Regrets {
			rec.Regrets[i] *= factor
		}
		mu.Unlock()
		return true
	})
}

// PruneUnused deletes records untouched for more than staleThreshold
// iterations and reports how many were removed.
func (s *Store) PruneUnused(currentIteration, staleThreshold int64) int {
	removed := 0
	cutoff := currentIteration - staleThreshold
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for key, rec := range shard.records {
			if rec.LastIteration < cutoff {
				delete(shard.records, key)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// Len returns the number of records.
func (s *Store) Len() int {
	total := 0
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.RLock()
		total += len(shard.records)
		shard.mu.RUnlock()
	}
	return total
}

// Stats walks the store once and reports population and size estimates.
func (s *Store) Stats() StoreStats {
	stats := StoreStats{}
	s.Range(func(key string, rec *InfoSet) bool {
		stats.InfoSets++
		stats.TotalActions += len(rec.Regrets)
		stats.BytesEstimate += int64(len(key)) + int64(16*len(rec.Regrets)) + 64
		return true
	})
	return stats
}

// Range calls fn for every record until it returns false. The iteration
// order is unspecified.
func (s *Store) Range(fn func(key string, rec *InfoSet) bool) {
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.RLock()
		for key, rec := range shard.records {
			if !fn(key, rec) {
				shard.mu.RUnlock()
				return
			}
		}
		shard.mu.RUnlock()
	}
}

// Snapshot copies every record for serialisation.
func (s *Store) Snapshot() map[string]*InfoSet {
	out := make(map[string]*InfoSet, s.Len())
	s.Range(func(key string, rec *InfoSet) bool {
		out[key] = &InfoSet{
			Regrets:       append([]float64(nil), rec.Regrets...),
			StrategySum:   append([]float64(nil), rec.StrategySum...),
			LastIteration: rec.LastIteration,
		}
		return true
	})
	return out
}

// Restore replaces the store contents with a snapshot.
func (s *Store) Restore(records map[string]*InfoSet) {
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		shard.records = make(map[string]*InfoSet)
		shard.mu.Unlock()
	}
	for key, rec := range records {
		shard := s.shardFor(key)
		shard.mu.Lock()
		shard.records[key] = &InfoSet{
			Regrets:       append([]float64(nil), rec.Regrets...),
			StrategySum:   append([]float64(nil), rec.StrategySum...),
			LastIteration: rec.LastIteration,
		}
		shard.mu.Unlock()
	}
}

// TotalAbsoluteRegret sums |regret| over every record. A standard
// convergence diagnostic: it grows sublinearly once the strategy stops
// moving.
func (s *Store) TotalAbsoluteRegret() float64 {
	total := 0.0
	s.Range(func(_ string, rec *InfoSet) bool {
		for _, r := range rec.Regrets {
			total += math.Abs(r)
		}
		return true
	})
	return total
}

func fnv32(key string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	var hash uint32 = offset32
	for i := 0; i < len(key); i++ {
		hash ^= uint32(key[i])
		hash *= prime32
	}
	return hash
}
