// Package runtime consumes solver blueprints at play time.
package runtime

import (
	"errors"

	"github.com/bizarc/lhecfr/sdk/solver"
)

// Policy exposes read-only access to a blueprint for sampling actions
// during live play or analysis.
type Policy struct {
	blueprint *solver.Blueprint
}

// Load constructs a runtime policy from a stored blueprint file.
func Load(path string) (*Policy, error) {
	bp, err := solver.LoadBlueprint(path)
	if err != nil {
		return nil, err
	}
	return &Policy{blueprint: bp}, nil
}

// Blueprint returns the underlying blueprint metadata.
func (p *Policy) Blueprint() *solver.Blueprint {
	if p == nil {
		return nil
	}
	return p.blueprint
}

// ActionWeights returns the stored distribution for an infoset id, padded
// or defaulted to uniform so callers always receive a valid distribution.
func (p *Policy) ActionWeights(key string, actionCount int) ([]float64, error) {
	if p == nil || p.blueprint == nil {
		return nil, errors.New("nil policy")
	}
	if actionCount <= 0 {
		return nil, errors.New("action count must be positive")
	}

	out := make([]float64, actionCount)
	if strat, ok := p.blueprint.Strategy(key); ok {
		copy(out, strat)
		if len(strat) < actionCount {
			uniform := 1.0 / float64(actionCount)
			for i := len(strat); i < actionCount; i++ {
				out[i] = uniform
			}
		}
		if len(strat) != actionCount {
			total := 0.0
			for _, w := range out {
				total += w
			}
			if total > 0 {
				for i := range out {
					out[i] /= total
				}
			}
		}
		return out, nil
	}
	uniform := 1.0 / float64(actionCount)
	for i := range out {
		out[i] = uniform
	}
	return out, nil
}
