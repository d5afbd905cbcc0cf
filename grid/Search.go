package grid

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/rand"

	"github.com/signalq/signalq/agent"
	"github.com/signalq/signalq/agent/ddqn"
	"github.com/signalq/signalq/environment"
	"github.com/signalq/signalq/experiment"
	"github.com/signalq/signalq/experiment/checkpointer"
	"github.com/signalq/signalq/expreplay"
	"github.com/signalq/signalq/policy"
	"github.com/signalq/signalq/valuefn"
)

// Options configures how a Search executes.
type Options struct {
	// LogDir is the directory run checkpoints and the final results are
	// written under. Empty disables persistence.
	LogDir string

	// Workers is the number of runs trained concurrently. Values below
	// one run the search sequentially.
	Workers int

	// NewEnvironment builds a training or evaluation environment from a
	// seed.
	NewEnvironment func(seed uint64) (environment.Environment, error)

	// NewValueFunction builds one network. It is called twice per run,
	// once for the online network and once for the target network.
	NewValueFunction func(numFeatures, numActions, batchSize int,
		learningRate float64, seed uint64) (valuefn.ValueFunction, error)

	// EvalFixed enables per-episode greedy evaluation within each run.
	EvalFixed bool

	// CheckpointEvery is forwarded to every run. Zero disables
	// checkpointing.
	CheckpointEvery int

	// OnResult, when non-nil, is called as each run finishes. Calls may
	// come from different goroutines but never concurrently.
	OnResult func(Result)
}

func (o Options) validate() error {
	if o.NewEnvironment == nil {
		return fmt.Errorf("search: no environment constructor")
	}
	if o.NewValueFunction == nil {
		return fmt.Errorf("search: no value function constructor")
	}
	if o.CheckpointEvery > 0 && o.LogDir == "" {
		return fmt.Errorf("search: checkpointing requires a log directory")
	}
	return nil
}

// Search trains one agent per setting of the space and returns one
// Result per run, ordered by run index. A run that fails is reported in
// its Result and never aborts the others. When opts.LogDir is set the
// results are also saved there.
func Search(ctx context.Context, space Space, opts Options) ([]Result, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	n := space.Len()
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	results := make([]Result, n)
	jobs := make(chan int)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := runOne(ctx, space, opts, i)
				results[i] = res
				if opts.OnResult != nil {
					mu.Lock()
					opts.OnResult(res)
					mu.Unlock()
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if opts.LogDir != "" {
		if err := SaveResults(opts.LogDir, results); err != nil {
			return results, err
		}
	}
	return results, nil
}

// runOne trains and evaluates the i'th setting. Panics inside a run are
// converted into a failed Result so one bad setting cannot take down
// the sweep.
func runOne(ctx context.Context, space Space, opts Options,
	i int) (res Result) {

	defer func() {
		if r := recover(); r != nil {
			res = failed(i, space.At(i), fmt.Errorf("run panicked: %v", r))
		}
	}()

	params := space.At(i)
	res = Result{RunID: i, Params: params}

	loop, err := buildRun(space, opts, params, i)
	if err != nil {
		return failed(i, params, err)
	}

	summaries, err := loop.Run(ctx)
	if err != nil {
		return failed(i, params, err)
	}
	res.Episodes = countTraining(summaries)

	// Rank the setting by a final greedy evaluation on a fresh,
	// identically seeded environment.
	evalEnv, err := opts.NewEnvironment(params.Seed + evalSeedOffset)
	if err != nil {
		return failed(i, params, err)
	}
	final, err := experiment.Evaluate(evalEnv, loop.Agent(), space.MaxEpLength)
	if err != nil {
		return failed(i, params, err)
	}
	res.MeanDelay = final.MeanDelay
	res.Return = final.Return
	return res
}

// Seed offsets for the independent random streams within one run.
const (
	onlineSeedOffset = 1
	targetSeedOffset = 2
	memorySeedOffset = 3
	policySeedOffset = 4
	evalSeedOffset   = 5
)

// buildRun assembles the environment, networks, memory, policy, agent,
// and training loop for one setting.
func buildRun(space Space, opts Options, params Params,
	i int) (*experiment.Loop, error) {

	env, err := opts.NewEnvironment(params.Seed)
	if err != nil {
		return nil, err
	}

	online, err := opts.NewValueFunction(env.NumFeatures(), env.NumActions(),
		params.BatchSize, params.LearningRate, params.Seed+onlineSeedOffset)
	if err != nil {
		return nil, err
	}
	target, err := opts.NewValueFunction(env.NumFeatures(), env.NumActions(),
		params.BatchSize, params.LearningRate, params.Seed+targetSeedOffset)
	if err != nil {
		return nil, err
	}

	memory, err := expreplay.New(params.MemorySize,
		params.Seed+memorySeedOffset)
	if err != nil {
		return nil, err
	}

	pol, err := policy.New(policy.Config{
		Type:       params.Policy,
		NumActions: env.NumActions(),
		Eps:        params.Eps,
		DecaySteps: params.DecaySteps,
	}, rand.NewSource(params.Seed+policySeedOffset))
	if err != nil {
		return nil, err
	}

	ag, err := ddqn.New(online, target, memory, pol, agent.Config{
		Gamma:            params.Gamma,
		BatchSize:        params.BatchSize,
		TrainFreq:        params.TrainFreq,
		TargetUpdateFreq: params.TargetUpdateFreq,
		NumBurnIn:        params.NumBurnIn,
	})
	if err != nil {
		return nil, err
	}

	var store checkpointer.Store
	if opts.LogDir != "" {
		fileStore, err := checkpointer.NewFileStore(opts.LogDir, RunID(i))
		if err != nil {
			return nil, err
		}
		store = fileStore
	}

	conf := experiment.Config{
		RunID:           RunID(i),
		NumEpisodes:     space.NumEpisodes,
		MaxEpLength:     space.MaxEpLength,
		CheckpointEvery: opts.CheckpointEvery,
		EvalFixed:       opts.EvalFixed,
		Seed:            params.Seed,
	}
	if opts.EvalFixed {
		conf.EvalEnv = func() (environment.Environment, error) {
			return opts.NewEnvironment(params.Seed + evalSeedOffset)
		}
	}

	return experiment.New(env, ag, store, conf)
}

func failed(i int, params Params, err error) Result {
	return Result{
		RunID:     i,
		Params:    params,
		MeanDelay: -1,
		Failed:    true,
		Err:       err.Error(),
	}
}

func countTraining(summaries []experiment.EpisodeSummary) int {
	count := 0
	for _, s := range summaries {
		if s.Label == experiment.LabelRL {
			count++
		}
	}
	return count
}

// RunID names the i'th run's checkpoint directory.
func RunID(i int) string {
	return fmt.Sprintf("run%d", i)
}

// LoadCheckpoint restores the latest checkpoint of run i from a
// previous search's log directory.
func LoadCheckpoint(logDir string, i int) (checkpointer.Checkpoint, error) {
	store, err := checkpointer.NewFileStore(logDir, RunID(i))
	if err != nil {
		return checkpointer.Checkpoint{}, err
	}
	return store.LoadLatest()
}
