package solver

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

const blueprintFileVersion = 1

// Blueprint captures the averaged strategies of a finished solve so play
// and analysis can sample actions without rerunning CFR.
type Blueprint struct {
	Version     int                  `json:"version"`
	GeneratedAt time.Time            `json:"generated_at"`
	Iterations  int64                `json:"iterations"`
	Params      GameParams           `json:"params"`
	Strategies  map[string][]float64 `json:"strategies"`
}

// Blueprint materialises the averaged strategy trained so far.
func (t *Trainer) Blueprint() *Blueprint {
	strategies := make(map[string][]float64, t.store.Len())
	t.store.Range(func(key string, rec *InfoSet) bool {
		strategies[key] = AverageStrategy(rec)
		return true
	})
	return &Blueprint{
		Version:     blueprintFileVersion,
		GeneratedAt: time.Now().UTC(),
		Iterations:  t.iteration,
		Params:      t.params,
		Strategies:  strategies,
	}
}

// Save writes the blueprint to disk as JSON.
func (b *Blueprint) Save(path string) error {
	if b == nil {
		return errors.New("nil blueprint")
	}
	if path == "" {
		return errors.New("destination path is required")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// LoadBlueprint reads a blueprint and checks version compatibility.
func LoadBlueprint(path string) (*Blueprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var bp Blueprint
	if err := json.NewDecoder(f).Decode(&bp); err != nil {
		return nil, err
	}
	if bp.Version != blueprintFileVersion {
		return nil, errors.New("unsupported blueprint version")
	}
	if err := bp.Params.Validate(); err != nil {
		return nil, err
	}
	return &bp, nil
}

// Strategy returns the stored average strategy for an infoset id.
func (b *Blueprint) Strategy(key string) ([]float64, bool) {
	if b == nil {
		return nil, false
	}
	strat, ok := b.Strategies[key]
	return strat, ok
}
