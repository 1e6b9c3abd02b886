package main

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bizarc/lhecfr/sdk/solver"
	solverRuntime "github.com/bizarc/lhecfr/sdk/solver/runtime"
	"github.com/bizarc/lhecfr/sdk/tree"
)

var cli struct {
	Debug bool `help:"enable debug logging"`

	Train   TrainCmd   `cmd:"" help:"run CFR training and emit a blueprint"`
	Inspect InspectCmd `cmd:"" help:"summarise an existing blueprint"`
}

type TrainCmd struct {
	Out    string `help:"path to write the blueprint pack" required:""`
	Config string `help:"HCL run configuration file"`

	Stack      int `help:"starting stack in chips" default:"200"`
	SmallBlind int `help:"small blind size" default:"1"`
	BigBlind   int `help:"big blind size" default:"2"`
	MaxRaises  int `help:"raise cap per street" default:"4"`

	Iterations     int     `help:"maximum CFR iterations" default:"100000"`
	MinIterations  int     `help:"iterations before stop conditions apply" default:"100"`
	Target         float64 `help:"target exploitability" default:"0.001"`
	MaxTimeSecs    float64 `help:"wall-clock budget in seconds (0 disables)" default:"0"`
	CheckEvery     int     `help:"stop-condition check frequency" default:"100"`
	Workers        int     `help:"traversal workers" default:"1"`
	Schedule       string  `help:"work schedule (static|dynamic|stealing)" enum:"static,dynamic,stealing" default:"static"`
	Seed           int64   `help:"random seed" default:"1"`
	CFRPlus        bool    `help:"enable CFR+ (regret clamping with linear averaging)" default:"true" negatable:""`
	Sampling       string  `help:"sampling strategy (none|chance|external|outcome)" enum:"none,chance,external,outcome" default:"none"`
	SamplingProb   float64 `help:"chance sampling probability" default:"1.0"`
	PreflopOnly    bool    `help:"solve the preflop-only tree"`
	MaxMemoryGB    float64 `help:"memory budget with auto-prune (0 disables)" default:"0"`
	CheckpointPath string  `help:"path for periodic checkpoints"`
	CheckpointEvery int64  `help:"checkpoint interval in iterations (0 disables)" default:"0"`
	ProgressEvery  int64   `help:"log progress every N iterations" default:"1000"`
	CPUProfile     string  `help:"write CPU profile to file"`
}

type InspectCmd struct {
	Blueprint string `help:"path to blueprint pack" required:""`
	Top       int    `help:"number of infosets to print" default:"10"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("solver"),
		kong.Description("heads-up limit hold'em CFR solver"),
		kong.UsageOnError(),
	)

	setupLogger(cli.Debug)

	switch ctx.Command() {
	case "train":
		if err := cli.Train.Run(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("training failed")
		}
	case "inspect":
		if err := cli.Inspect.Run(); err != nil {
			log.Fatal().Err(err).Msg("inspect failed")
		}
	default:
		log.Fatal().Msgf("unknown command: %s", ctx.Command())
	}
}

func setupLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

func (cmd *TrainCmd) Run(ctx context.Context) error {
	if cmd.CPUProfile != "" {
		f, err := os.Create(cmd.CPUProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", cmd.CPUProfile).Msg("CPU profiling enabled")
	}

	cfg, params, err := cmd.resolveConfig()
	if err != nil {
		return err
	}

	gameTree, err := tree.BuildGameTree(params, tree.BuildOptions{
		PreflopOnly: cmd.PreflopOnly,
		Verbose:     cli.Debug,
		Progress: func(format string, args ...any) {
			log.Debug().Msgf(format, args...)
		},
	})
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}
	log.Info().Int("nodes", gameTree.NumNodes()).Int("infosets", len(gameTree.InfoSets)).Msg("tree built")

	schedule, err := solver.ParseSchedulePolicy(cmd.Schedule)
	if err != nil {
		return err
	}

	opts := []solver.TrainerOption{
		solver.WithSchedule(schedule, 4),
		solver.WithProgress(cmd.ProgressEvery, func(p solver.Progress) {
			log.Info().
				Int64("iteration", p.Iteration).
				Int("infosets", p.InfoSets).
				Float64("exploitability", p.Exploitability).
				Int64("nodes", p.Stats.NodesVisited).
				Dur("iter_time", p.IterationTime).
				Msg("progress")
		}),
	}
	if cmd.MaxMemoryGB > 0 {
		monitor, err := solver.NewMemoryMonitor(solver.MemoryMonitorConfig{
			MaxMemoryGB: cmd.MaxMemoryGB,
			AutoPrune:   true,
			Strategy:    tree.PruneAdaptively,
		})
		if err != nil {
			return err
		}
		opts = append(opts, solver.WithMemoryMonitor(monitor))
	}
	cache, err := solver.NewCache(1<<16, solver.EvictLRU)
	if err != nil {
		return err
	}
	opts = append(opts, solver.WithCache(cache))

	trainer, err := solver.NewTrainer(gameTree, cfg, opts...)
	if err != nil {
		return err
	}
	if cmd.CheckpointPath != "" && cmd.CheckpointEvery > 0 {
		trainer.EnableCheckpoints(cmd.CheckpointPath, cmd.CheckpointEvery)
	}

	log.Info().
		Int("max_iterations", cfg.MaxIterations).
		Int("workers", cfg.Workers).
		Bool("cfr_plus", cfg.UseCFRPlus).
		Str("sampling", cfg.Sampling.String()).
		Str("schedule", schedule.String()).
		Msg("starting training run")

	start := time.Now()
	if err := trainer.Train(ctx); err != nil {
		return err
	}

	stats := trainer.TrainingStats()
	log.Info().
		Int64("iterations", stats.Iterations).
		Dur("duration", time.Since(start)).
		Float64("iters_per_sec", stats.IterationsPerSecond).
		Int("infosets", stats.InfoSets).
		Float64("exploitability", stats.Exploitability).
		Str("stop_reason", stats.StoppingReason).
		Msg("training completed")

	for _, w := range trainer.Coordinator().Stats() {
		log.Debug().Int("worker", w.Worker).Int64("items", w.Items).Int64("steals", w.Steals).Dur("busy", w.Busy).Msg("worker summary")
	}
	hits := cache.Stats()
	log.Debug().Int64("hits", hits.Hits).Int64("misses", hits.Misses).Float64("hit_rate", hits.HitRate()).Msg("cache summary")

	bp := trainer.Blueprint()
	if err := bp.Save(cmd.Out); err != nil {
		return fmt.Errorf("save blueprint: %w", err)
	}
	log.Info().Str("path", cmd.Out).Msg("blueprint saved")
	return nil
}

// resolveConfig layers CLI flags over an optional HCL file.
func (cmd *TrainCmd) resolveConfig() (solver.CFRConfig, solver.GameParams, error) {
	if cmd.Config != "" {
		return solver.LoadConfigFile(cmd.Config)
	}

	params := solver.GameParams{
		Stack:              cmd.Stack,
		SmallBlind:         cmd.SmallBlind,
		BigBlind:           cmd.BigBlind,
		MaxRaisesPerStreet: cmd.MaxRaises,
	}
	strat, err := solver.ParseSamplingStrategy(cmd.Sampling)
	if err != nil {
		return solver.CFRConfig{}, solver.GameParams{}, err
	}
	cfg := solver.DefaultConfig()
	cfg.UseCFRPlus = cmd.CFRPlus
	cfg.UseLinearWeighting = cmd.CFRPlus
	cfg.UseSampling = strat != solver.SamplingNone
	cfg.Sampling = strat
	cfg.SamplingProbability = cmd.SamplingProb
	cfg.MaxIterations = cmd.Iterations
	cfg.MinIterations = cmd.MinIterations
	cfg.TargetExploitability = cmd.Target
	cfg.MaxTimeSeconds = cmd.MaxTimeSecs
	cfg.CheckFrequency = cmd.CheckEvery
	cfg.Workers = cmd.Workers
	cfg.Seed = cmd.Seed

	if err := params.Validate(); err != nil {
		return solver.CFRConfig{}, solver.GameParams{}, err
	}
	if err := cfg.Validate(); err != nil {
		return solver.CFRConfig{}, solver.GameParams{}, err
	}
	return cfg, params, nil
}

func (cmd *InspectCmd) Run() error {
	policy, err := solverRuntime.Load(cmd.Blueprint)
	if err != nil {
		return fmt.Errorf("load blueprint: %w", err)
	}
	bp := policy.Blueprint()
	log.Info().
		Str("generated", bp.GeneratedAt.Format(time.RFC3339)).
		Int64("iterations", bp.Iterations).
		Int("infosets", len(bp.Strategies)).
		Msg("blueprint loaded")

	printed := 0
	for key, strat := range bp.Strategies {
		if printed >= cmd.Top {
			break
		}
		fmt.Printf("%-40s %v\n", key, strat)
		printed++
	}
	return nil
}
