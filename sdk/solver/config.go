// Package solver computes approximate Nash equilibria for heads-up limit
// hold'em by counterfactual regret minimization over the betting tree.
package solver

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/bizarc/lhecfr/sdk/tree"
)

// GameParams re-exports the game structure so callers configure a run
// through one package.
type GameParams = tree.GameParams

// SamplingStrategy selects the Monte Carlo flavour used during traversal.
type SamplingStrategy uint8

const (
	SamplingNone SamplingStrategy = iota
	SamplingChance
	SamplingExternal
	SamplingOutcome
)

func (s SamplingStrategy) String() string {
	switch s {
	case SamplingNone:
		return "none"
	case SamplingChance:
		return "chance"
	case SamplingExternal:
		return "external"
	case SamplingOutcome:
		return "outcome"
	default:
		return "unknown"
	}
}

// ParseSamplingStrategy maps the CLI/config spelling onto a strategy.
func ParseSamplingStrategy(s string) (SamplingStrategy, error) {
	switch s {
	case "", "none":
		return SamplingNone, nil
	case "chance":
		return SamplingChance, nil
	case "external":
		return SamplingExternal, nil
	case "outcome":
		return SamplingOutcome, nil
	default:
		return SamplingNone, fmt.Errorf("unknown sampling strategy %q", s)
	}
}

// CFRConfig aggregates every knob of a training run.
type CFRConfig struct {
	UseCFRPlus         bool
	UseLinearWeighting bool
	UseSampling        bool
	Sampling           SamplingStrategy
	// SamplingProbability applies to chance sampling; zero and values
	// above 1 are clamped into (0, 1] during traversal, while negative
	// values are rejected by Validate.
	SamplingProbability float64
	// PruneThreshold removes actions whose cumulative regret sits below
	// it from the regret-matching support. Zero disables action pruning.
	PruneThreshold float64
	DiscountFactor float64

	MaxIterations        int
	MinIterations        int
	TargetExploitability float64
	MaxTimeSeconds       float64
	CheckFrequency       int

	// Workers sets traversal parallelism; values below 2 run the
	// single-threaded driver loop.
	Workers           int
	DealsPerIteration int
	Seed              int64
}

// Validate rejects configurations no solver should be constructed from.
func (c CFRConfig) Validate() error {
	if c.MaxIterations <= 0 {
		return errors.New("max iterations must be > 0")
	}
	if c.MinIterations < 0 {
		return errors.New("min iterations cannot be negative")
	}
	if c.MinIterations > c.MaxIterations {
		return errors.New("min iterations cannot exceed max iterations")
	}
	if c.TargetExploitability < 0 {
		return errors.New("target exploitability cannot be negative")
	}
	if c.MaxTimeSeconds < 0 {
		return errors.New("max time cannot be negative")
	}
	if c.CheckFrequency <= 0 {
		return errors.New("check frequency must be > 0")
	}
	if c.UseSampling && c.Sampling == SamplingNone {
		return errors.New("sampling enabled but no strategy selected")
	}
	if c.SamplingProbability < 0 {
		return errors.New("sampling probability cannot be negative")
	}
	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}
	if c.DealsPerIteration < 0 {
		return errors.New("deals per iteration cannot be negative")
	}
	return nil
}

// DefaultConfig returns a CFR+ configuration suitable for local solves.
func DefaultConfig() CFRConfig {
	return CFRConfig{
		UseCFRPlus:           true,
		UseLinearWeighting:   true,
		SamplingProbability:  1.0,
		MaxIterations:        100000,
		MinIterations:        100,
		TargetExploitability: 0.001,
		MaxTimeSeconds:       0,
		CheckFrequency:       100,
		Workers:              1,
		DealsPerIteration:    1,
		Seed:                 1,
	}
}

// fileConfig is the HCL shape of a run configuration on disk.
type fileConfig struct {
	Game struct {
		Stack              int `hcl:"stack"`
		SmallBlind         int `hcl:"small_blind"`
		BigBlind           int `hcl:"big_blind"`
		MaxRaisesPerStreet int `hcl:"max_raises_per_street"`
	} `hcl:"game,block"`
	Training struct {
		CFRPlus              *bool    `hcl:"cfr_plus,optional"`
		LinearWeighting      *bool    `hcl:"linear_weighting,optional"`
		Sampling             *string  `hcl:"sampling,optional"`
		SamplingProbability  *float64 `hcl:"sampling_probability,optional"`
		PruneThreshold       *float64 `hcl:"prune_threshold,optional"`
		MaxIterations        *int     `hcl:"max_iterations,optional"`
		MinIterations        *int     `hcl:"min_iterations,optional"`
		TargetExploitability *float64 `hcl:"target_exploitability,optional"`
		MaxTimeSeconds       *float64 `hcl:"max_time_seconds,optional"`
		CheckFrequency       *int     `hcl:"check_frequency,optional"`
		Workers              *int     `hcl:"workers,optional"`
		Seed                 *int64   `hcl:"seed,optional"`
	} `hcl:"training,block"`
}

// LoadConfigFile reads a run configuration from an HCL file, layering it
// over the defaults. The LHECFR_SEED environment variable, when set,
// overrides the configured seed for deterministic CI runs.
func LoadConfigFile(path string) (CFRConfig, GameParams, error) {
	var fc fileConfig
	if err := hclsimple.DecodeFile(path, nil, &fc); err != nil {
		return CFRConfig{}, GameParams{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	params := GameParams{
		Stack:              fc.Game.Stack,
		SmallBlind:         fc.Game.SmallBlind,
		BigBlind:           fc.Game.BigBlind,
		MaxRaisesPerStreet: fc.Game.MaxRaisesPerStreet,
	}
	cfg := DefaultConfig()
	tr := fc.Training
	if tr.CFRPlus != nil {
		cfg.UseCFRPlus = *tr.CFRPlus
	}
	if tr.LinearWeighting != nil {
		cfg.UseLinearWeighting = *tr.LinearWeighting
	}
	if tr.Sampling != nil {
		strat, err := ParseSamplingStrategy(*tr.Sampling)
		if err != nil {
			return CFRConfig{}, GameParams{}, err
		}
		cfg.Sampling = strat
		cfg.UseSampling = strat != SamplingNone
	}
	if tr.SamplingProbability != nil {
		cfg.SamplingProbability = *tr.SamplingProbability
	}
	if tr.PruneThreshold != nil {
		cfg.PruneThreshold = *tr.PruneThreshold
	}
	if tr.MaxIterations != nil {
		cfg.MaxIterations = *tr.MaxIterations
	}
	if tr.MinIterations != nil {
		cfg.MinIterations = *tr.MinIterations
	}
	if tr.TargetExploitability != nil {
		cfg.TargetExploitability = *tr.TargetExploitability
	}
	if tr.MaxTimeSeconds != nil {
		cfg.MaxTimeSeconds = *tr.MaxTimeSeconds
	}
	if tr.CheckFrequency != nil {
		cfg.CheckFrequency = *tr.CheckFrequency
	}
	if tr.Workers != nil {
		cfg.Workers = *tr.Workers
	}
	if tr.Seed != nil {
		cfg.Seed = *tr.Seed
	}
	if env := os.Getenv("LHECFR_SEED"); env != "" {
		seed, err := strconv.ParseInt(env, 10, 64)
		if err != nil {
			return CFRConfig{}, GameParams{}, fmt.Errorf("invalid LHECFR_SEED: %w", err)
		}
		cfg.Seed = seed
	}

	if err := params.Validate(); err != nil {
		return CFRConfig{}, GameParams{}, err
	}
	if err := cfg.Validate(); err != nil {
		return CFRConfig{}, GameParams{}, err
	}
	return cfg, params, nil
}
