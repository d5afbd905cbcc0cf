package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/signalq/signalq/grid"
	"github.com/signalq/signalq/internal/progress"
	"github.com/signalq/signalq/policy"
)

type searchFlags struct {
	env     envFlags
	valueFn valueFnFlags

	gamma           []float64
	learningRate    []float64
	batchSize       []int
	trainFreq       []int
	targetFreq      []int
	burnIn          []int
	memorySize      []int
	policyTypes     []string
	eps             []float64
	decaySteps      []int
	episodes        int
	maxEpLen        int
	seed            uint64
	workers         int
	logDir          string
	checkpointEvery int
	evalFixed       bool
	top             int
}

// SearchCommand sweeps a hyperparameter grid, one independent agent per
// setting.
func SearchCommand() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search",
		Short: "grid-search hyperparameters with parallel runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(f)
		},
	}

	f.env.register(cmd)
	f.valueFn.register(cmd)
	cmd.Flags().Float64SliceVar(&f.gamma, "gamma", []float64{0.99},
		"discount factor candidates")
	cmd.Flags().Float64SliceVar(&f.learningRate, "lr",
		[]float64{1e-3}, "learning rate candidates")
	cmd.Flags().IntSliceVar(&f.batchSize, "batch-size", []int{32},
		"batch size candidates")
	cmd.Flags().IntSliceVar(&f.trainFreq, "train-freq", []int{1},
		"train frequency candidates")
	cmd.Flags().IntSliceVar(&f.targetFreq, "target-update-freq",
		[]int{500}, "target synchronization interval candidates")
	cmd.Flags().IntSliceVar(&f.burnIn, "burn-in", []int{1000},
		"burn-in size candidates")
	cmd.Flags().IntSliceVar(&f.memorySize, "memory-size", []int{10000},
		"replay capacity candidates")
	cmd.Flags().StringSliceVar(&f.policyTypes, "policy",
		[]string{string(policy.LinDecEpsGreedy)}, "behaviour policy "+
			"candidates")
	cmd.Flags().Float64SliceVar(&f.eps, "eps", []float64{0.05},
		"exploration rate candidates")
	cmd.Flags().IntSliceVar(&f.decaySteps, "decay-steps", []int{10000},
		"decay length candidates")
	cmd.Flags().IntVar(&f.episodes, "episodes", 100,
		"training episodes per run")
	cmd.Flags().IntVar(&f.maxEpLen, "max-ep-len", 300,
		"cut episodes off after this many steps")
	cmd.Flags().Uint64Var(&f.seed, "seed", 42, "base random seed")
	cmd.Flags().IntVar(&f.workers, "workers", 4,
		"runs trained concurrently")
	cmd.Flags().StringVar(&f.logDir, "logdir", "",
		"directory for checkpoints and results")
	cmd.Flags().IntVar(&f.checkpointEvery, "checkpoint-every", 0,
		"save a checkpoint every this many episodes (0 disables)")
	cmd.Flags().BoolVar(&f.evalFixed, "eval-fixed", false,
		"run greedy evaluations during each run")
	cmd.Flags().IntVar(&f.top, "top", 10,
		"number of ranked settings to print")

	return cmd
}

func runSearch(f searchFlags) error {
	space := grid.Space{
		Gamma:            f.gamma,
		LearningRate:     f.learningRate,
		BatchSize:        f.batchSize,
		TrainFreq:        f.trainFreq,
		TargetUpdateFreq: f.targetFreq,
		NumBurnIn:        f.burnIn,
		MemorySize:       f.memorySize,
		Policy:           policyTypes(f.policyTypes),
		Eps:              f.eps,
		DecaySteps:       f.decaySteps,
		NumEpisodes:      f.episodes,
		MaxEpLength:      f.maxEpLen,
		BaseSeed:         f.seed,
	}
	if err := space.Validate(); err != nil {
		return err
	}

	newValueFn, err := f.valueFn.builder()
	if err != nil {
		return err
	}

	fmt.Printf("sweeping %v settings with %v workers\n",
		aurora.Bold(space.Len()), f.workers)
	bar := progress.New(os.Stdout, 50, space.Len())
	defer bar.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := grid.Search(ctx, space, grid.Options{
		LogDir:           f.logDir,
		Workers:          f.workers,
		NewEnvironment:   f.env.builder(),
		NewValueFunction: newValueFn,
		EvalFixed:        f.evalFixed,
		CheckpointEvery:  f.checkpointEvery,
		OnResult:         func(grid.Result) { bar.Increment() },
	})
	if err != nil {
		return err
	}
	bar.Close()

	printResults(results, f.top)
	return nil
}

func policyTypes(names []string) []policy.Type {
	types := make([]policy.Type, len(names))
	for i, name := range names {
		types[i] = policy.Type(name)
	}
	return types
}

func printResults(results []grid.Result, top int) {
	ranked := make([]grid.Result, len(results))
	copy(ranked, results)
	grid.Sort(ranked)

	if top > len(ranked) {
		top = len(ranked)
	}
	fmt.Printf("%-6s %-10s %-9s %-6s %-7s %-17s %-10s %s\n",
		"run", "delay", "return", "gamma", "lr", "policy", "eps",
		"batch")
	for i := 0; i < top; i++ {
		r := ranked[i]
		if r.Failed {
			fmt.Printf("%-6d %v\n", r.RunID,
				aurora.Red("failed: "+r.Err))
			continue
		}

		delay := fmt.Sprintf("%.3f", r.MeanDelay)
		line := fmt.Sprintf("%-6d %-10s %-9.2f %-6v %-7v %-17s %-10v %v",
			r.RunID, delay, r.Return, r.Params.Gamma,
			r.Params.LearningRate, r.Params.Policy, r.Params.Eps,
			r.Params.BatchSize)
		if i == 0 {
			fmt.Println(aurora.Green(line))
		} else {
			fmt.Println(line)
		}
	}
}
