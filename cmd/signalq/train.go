package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/signalq/signalq/agent"
	"github.com/signalq/signalq/agent/ddqn"
	"github.com/signalq/signalq/environment"
	"github.com/signalq/signalq/experiment"
	"github.com/signalq/signalq/experiment/checkpointer"
	"github.com/signalq/signalq/expreplay"
	"github.com/signalq/signalq/internal/progress"
	"github.com/signalq/signalq/policy"
)

type trainFlags struct {
	env     envFlags
	valueFn valueFnFlags

	episodes        int
	maxEpLen        int
	gamma           float64
	learningRate    float64
	batchSize       int
	trainFreq       int
	targetFreq      int
	burnIn          int
	memorySize      int
	policyType      string
	eps             float64
	decaySteps      int
	seed            uint64
	logDir          string
	runID           string
	checkpointEvery int
	evalFixed       bool
	resume          bool
	verbose         bool
}

// TrainCommand trains a single agent with fixed hyperparameters.
func TrainCommand() *cobra.Command {
	var f trainFlags
	cmd := &cobra.Command{
		Use:   "train",
		Short: "train one agent with fixed hyperparameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(f)
		},
	}

	f.env.register(cmd)
	f.valueFn.register(cmd)
	cmd.Flags().IntVar(&f.episodes, "episodes", 100,
		"number of training episodes")
	cmd.Flags().IntVar(&f.maxEpLen, "max-ep-len", 300,
		"cut episodes off after this many steps")
	cmd.Flags().Float64Var(&f.gamma, "gamma", 0.99, "discount factor")
	cmd.Flags().Float64Var(&f.learningRate, "lr", 1e-3, "learning rate")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 32,
		"transitions per learning update")
	cmd.Flags().IntVar(&f.trainFreq, "train-freq", 1,
		"steps between learning updates")
	cmd.Flags().IntVar(&f.targetFreq, "target-update-freq", 500,
		"steps between target network synchronizations")
	cmd.Flags().IntVar(&f.burnIn, "burn-in", 1000,
		"transitions collected before learning starts")
	cmd.Flags().IntVar(&f.memorySize, "memory-size", 10000,
		"replay memory capacity")
	cmd.Flags().StringVar(&f.policyType, "policy",
		string(policy.LinDecEpsGreedy), "behaviour policy (greedy, "+
			"epsGreedy, linDecEpsGreedy, or randUni)")
	cmd.Flags().Float64Var(&f.eps, "eps", 0.05,
		"exploration rate, or its final value for a decaying policy")
	cmd.Flags().IntVar(&f.decaySteps, "decay-steps", 10000,
		"steps over which a decaying policy anneals")
	cmd.Flags().Uint64Var(&f.seed, "seed", 42, "random seed")
	cmd.Flags().StringVar(&f.logDir, "logdir", "",
		"directory for checkpoints")
	cmd.Flags().StringVar(&f.runID, "run-id", "run0",
		"name of this run within the log directory")
	cmd.Flags().IntVar(&f.checkpointEvery, "checkpoint-every", 0,
		"save a checkpoint every this many episodes (0 disables)")
	cmd.Flags().BoolVar(&f.evalFixed, "eval-fixed", false,
		"run a greedy evaluation episode after every training episode")
	cmd.Flags().BoolVar(&f.resume, "resume", false,
		"resume from the latest checkpoint in the log directory")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false,
		"print every episode summary instead of a progress bar")

	return cmd
}

func runTrain(f trainFlags) error {
	newEnv := f.env.builder()
	env, err := newEnv(f.seed)
	if err != nil {
		return err
	}

	newValueFn, err := f.valueFn.builder()
	if err != nil {
		return err
	}
	online, err := newValueFn(env.NumFeatures(), env.NumActions(),
		f.batchSize, f.learningRate, f.seed+1)
	if err != nil {
		return err
	}
	target, err := newValueFn(env.NumFeatures(), env.NumActions(),
		f.batchSize, f.learningRate, f.seed+2)
	if err != nil {
		return err
	}

	memory, err := expreplay.New(f.memorySize, f.seed+3)
	if err != nil {
		return err
	}
	pol, err := policy.New(policy.Config{
		Type:       policy.Type(f.policyType),
		NumActions: env.NumActions(),
		Eps:        f.eps,
		DecaySteps: f.decaySteps,
	}, rand.NewSource(f.seed+4))
	if err != nil {
		return err
	}

	ag, err := ddqn.New(online, target, memory, pol, agent.Config{
		Gamma:            f.gamma,
		BatchSize:        f.batchSize,
		TrainFreq:        f.trainFreq,
		TargetUpdateFreq: f.targetFreq,
		NumBurnIn:        f.burnIn,
	})
	if err != nil {
		return err
	}

	var store checkpointer.Store
	if f.logDir != "" {
		fileStore, err := checkpointer.NewFileStore(f.logDir, f.runID)
		if err != nil {
			return err
		}
		store = fileStore
	}

	var bar *progress.Bar
	conf := experiment.Config{
		RunID:           f.runID,
		NumEpisodes:     f.episodes,
		MaxEpLength:     f.maxEpLen,
		CheckpointEvery: f.checkpointEvery,
		EvalFixed:       f.evalFixed,
		Seed:            f.seed,
		OnEpisode: func(s experiment.EpisodeSummary) {
			if f.verbose {
				printSummary(s)
			} else if s.Label == experiment.LabelRL {
				bar.Increment()
			}
		},
	}
	if f.evalFixed {
		conf.EvalEnv = func() (environment.Environment, error) {
			return newEnv(f.seed + 5)
		}
	}

	loop, err := experiment.New(env, ag, store, conf)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !f.verbose {
		bar = progress.New(os.Stdout, 50, f.episodes)
		defer bar.Close()
	}

	var summaries []experiment.EpisodeSummary
	if f.resume {
		summaries, err = loop.Resume(ctx)
	} else {
		summaries, err = loop.Run(ctx)
	}
	if err != nil {
		return err
	}
	if !f.verbose {
		bar.Close()
	}

	printTrainReport(summaries)
	return nil
}

func printSummary(s experiment.EpisodeSummary) {
	label := aurora.Blue(s.Label)
	if s.Label == experiment.LabelFixed {
		label = aurora.Magenta(s.Label)
	}
	fmt.Printf("episode %4d  %-5v  steps %5d  return %10.2f  delay %8.3f\n",
		s.Episode, label, s.Steps, s.Return, s.MeanDelay)
}

func printTrainReport(summaries []experiment.EpisodeSummary) {
	var (
		bestDelay   = -1.0
		bestEpisode int
		finalReturn float64
	)
	for _, s := range summaries {
		if s.Label != experiment.LabelRL {
			continue
		}
		finalReturn = s.Return
		if s.MeanDelay >= 0 && (bestDelay < 0 || s.MeanDelay < bestDelay) {
			bestDelay = s.MeanDelay
			bestEpisode = s.Episode
		}
	}

	fmt.Printf("final return: %v\n", aurora.Cyan(fmt.Sprintf("%.2f",
		finalReturn)))
	if bestDelay >= 0 {
		fmt.Printf("best mean delay: %v (episode %d)\n",
			aurora.Green(fmt.Sprintf("%.3f", bestDelay)), bestEpisode)
	}
}
