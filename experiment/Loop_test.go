package experiment

import (
	"context"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/signalq/signalq/agent"
	"github.com/signalq/signalq/environment"
	"github.com/signalq/signalq/experiment/checkpointer"
	"github.com/signalq/signalq/expreplay"
)

// fakeEnv terminates every terminalAfter steps, or never when
// terminalAfter is zero.
type fakeEnv struct {
	terminalAfter int
	delay         float64

	steps  int
	resets int
}

func (f *fakeEnv) Reset() (mat.Vector, error) {
	f.steps = 0
	f.resets++
	return mat.NewVecDense(2, []float64{0, 0}), nil
}

func (f *fakeEnv) Step(action int) (mat.Vector, float64, bool, error) {
	f.steps++
	terminal := f.terminalAfter > 0 && f.steps >= f.terminalAfter
	next := mat.NewVecDense(2, []float64{float64(f.steps), float64(action)})
	return next, -1, terminal, nil
}

func (f *fakeEnv) NumActions() int    { return 2 }
func (f *fakeEnv) NumFeatures() int   { return 2 }
func (f *fakeEnv) MeanDelay() float64 { return f.delay }

// fakeAgent counts interactions and becomes ready to learn after a
// fixed number of observed transitions.
type fakeAgent struct {
	readyAfter int
	conf       agent.Config

	observed int
	steps    int
	learns   int
	syncs    int
	params   []float64
}

func newFakeAgent(readyAfter int, conf agent.Config) *fakeAgent {
	return &fakeAgent{
		readyAfter: readyAfter,
		conf:       conf,
		params:     []float64{1, 2, 3},
	}
}

func (f *fakeAgent) Act(state mat.Vector) (int, error) { return 0, nil }

func (f *fakeAgent) ActionValues(state mat.Vector) (mat.Vector, error) {
	return mat.NewVecDense(2, nil), nil
}

func (f *fakeAgent) Observe(t expreplay.Transition) error {
	f.observed++
	f.steps++
	return nil
}

func (f *fakeAgent) Learn() error      { f.learns++; return nil }
func (f *fakeAgent) SyncTarget() error { f.syncs++; return nil }

func (f *fakeAgent) ReadyToLearn() bool { return f.observed >= f.readyAfter }
func (f *fakeAgent) TotalSteps() int    { return f.steps }

func (f *fakeAgent) Config() agent.Config { return f.conf }

func (f *fakeAgent) Parameters() []float64 {
	out := make([]float64, len(f.params))
	copy(out, f.params)
	return out
}

func (f *fakeAgent) SetParameters(params []float64) error {
	f.params = make([]float64, len(params))
	copy(f.params, params)
	return nil
}

func (f *fakeAgent) SetTotalSteps(steps int) { f.steps = steps }

func testAgentConfig() agent.Config {
	return agent.Config{
		Gamma:            0.9,
		BatchSize:        4,
		TrainFreq:        1,
		TargetUpdateFreq: 1000,
		NumBurnIn:        4,
	}
}

func TestRunProducesOneSummaryPerEpisode(t *testing.T) {
	env := &fakeEnv{terminalAfter: 10, delay: 2.5}
	ag := newFakeAgent(0, testAgentConfig())
	loop, err := New(env, ag, nil, Config{
		NumEpisodes: 5,
		MaxEpLength: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	summaries, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 5 {
		t.Fatalf("expected 5 summaries, got %v", len(summaries))
	}
	for i, s := range summaries {
		if s.Episode != i+1 {
			t.Errorf("expected episode %v, got %v", i+1, s.Episode)
		}
		if s.Steps != 10 {
			t.Errorf("expected 10 steps per episode, got %v", s.Steps)
		}
		if s.Return != -10 {
			t.Errorf("expected return -10, got %v", s.Return)
		}
		if s.Label != LabelRL {
			t.Errorf("expected label %q, got %q", LabelRL, s.Label)
		}
		if s.MeanDelay != 2.5 {
			t.Errorf("expected the environment's delay 2.5, got %v",
				s.MeanDelay)
		}
	}
}

func TestCutOffEpisodeReportsNoDelay(t *testing.T) {
	env := &fakeEnv{terminalAfter: 0, delay: 2.5}
	loop, err := New(env, newFakeAgent(0, testAgentConfig()), nil, Config{
		NumEpisodes: 1,
		MaxEpLength: 25,
	})
	if err != nil {
		t.Fatal(err)
	}

	summaries, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summaries[0].Steps != 25 {
		t.Errorf("expected the cutoff after 25 steps, got %v",
			summaries[0].Steps)
	}
	if summaries[0].MeanDelay != -1 {
		t.Errorf("a cut-off episode must report delay -1, got %v",
			summaries[0].MeanDelay)
	}
}

func TestBurnInFillsBeforeLearningWithoutAdvancingSteps(t *testing.T) {
	env := &fakeEnv{terminalAfter: 10}
	ag := newFakeAgent(30, testAgentConfig())
	loop, err := New(env, ag, nil, Config{
		NumEpisodes: 2,
		MaxEpLength: 10,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// 30 burn-in transitions plus 2 episodes of 10 training steps, but
	// the step counter only reflects the training steps.
	if ag.observed != 50 {
		t.Errorf("expected 50 observed transitions, got %v", ag.observed)
	}
	if ag.steps != 20 {
		t.Errorf("expected 20 training steps after burn-in reset, got %v",
			ag.steps)
	}
	if ag.learns != 20 {
		t.Errorf("expected a learning update per training step, got %v",
			ag.learns)
	}
}

func TestLearnAndSyncFrequencies(t *testing.T) {
	conf := testAgentConfig()
	conf.TrainFreq = 3
	conf.TargetUpdateFreq = 7

	env := &fakeEnv{terminalAfter: 10}
	ag := newFakeAgent(0, conf)
	loop, err := New(env, ag, nil, Config{
		NumEpisodes: 7, // 70 steps
		MaxEpLength: 10,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ag.learns != 23 { // steps 3, 6, ..., 69
		t.Errorf("expected 23 learning updates over 70 steps, got %v",
			ag.learns)
	}
	if ag.syncs != 10 { // steps 7, 14, ..., 70
		t.Errorf("expected 10 target synchronizations over 70 steps, got %v",
			ag.syncs)
	}
}

func TestEvalFixedAppendsEvaluationRows(t *testing.T) {
	env := &fakeEnv{terminalAfter: 10, delay: 3.0}
	ag := newFakeAgent(0, testAgentConfig())
	loop, err := New(env, ag, nil, Config{
		NumEpisodes: 3,
		MaxEpLength: 100,
		EvalFixed:   true,
		EvalEnv: func() (environment.Environment, error) {
			return &fakeEnv{terminalAfter: 10, delay: 7.0}, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	summaries, err := loop.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 6 {
		t.Fatalf("expected 3 training plus 3 evaluation rows, got %v",
			len(summaries))
	}
	for i := 0; i < len(summaries); i += 2 {
		if summaries[i].Label != LabelRL ||
			summaries[i+1].Label != LabelFixed {
			t.Fatalf("expected alternating RL and fixed labels at %v", i)
		}
		if summaries[i+1].Episode != summaries[i].Episode {
			t.Errorf("evaluation row should share its episode number")
		}
		if summaries[i+1].MeanDelay != 7.0 {
			t.Errorf("expected the evaluation environment's delay, got %v",
				summaries[i+1].MeanDelay)
		}
	}

	// Evaluation episodes never feed the agent's memory.
	if ag.observed != 30 {
		t.Errorf("expected 30 observed transitions from training only, "+
			"got %v", ag.observed)
	}
}

func TestResumeContinuesFromLatestCheckpoint(t *testing.T) {
	root := t.TempDir()
	store, err := checkpointer.NewFileStore(root, "run0")
	if err != nil {
		t.Fatal(err)
	}

	conf := Config{
		NumEpisodes:     10,
		MaxEpLength:     10,
		CheckpointEvery: 5,
	}
	first := newFakeAgent(0, testAgentConfig())
	first.params = []float64{42, 43}
	loop, err := New(&fakeEnv{terminalAfter: 10}, first, store, conf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Resume with a larger budget: episodes 11 through 50 remain.
	conf.NumEpisodes = 50
	second := newFakeAgent(0, testAgentConfig())
	resumed, err := New(&fakeEnv{terminalAfter: 10}, second, store, conf)
	if err != nil {
		t.Fatal(err)
	}
	summaries, err := resumed.Resume(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(summaries) != 40 {
		t.Fatalf("expected 40 resumed episodes, got %v", len(summaries))
	}
	if summaries[0].Episode != 11 {
		t.Errorf("expected the resumed run to start at episode 11, got %v",
			summaries[0].Episode)
	}
	if second.params[0] != 42 || second.params[1] != 43 {
		t.Errorf("expected restored parameters [42 43], got %v",
			second.params)
	}
}

func TestResumeWithoutCheckpointIsAnError(t *testing.T) {
	store, err := checkpointer.NewFileStore(t.TempDir(), "run0")
	if err != nil {
		t.Fatal(err)
	}

	ag := newFakeAgent(0, testAgentConfig())
	loop, err := New(&fakeEnv{terminalAfter: 10}, ag, store, Config{
		NumEpisodes:     4,
		MaxEpLength:     10,
		CheckpointEvery: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	summaries, err := loop.Resume(context.Background())
	if !checkpointer.IsNoCheckpoint(err) {
		t.Fatalf("expected the missing checkpoint surfaced, got %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("resume must never retrain from scratch, trained %v "+
			"episodes", len(summaries))
	}
	if ag.observed != 0 || ag.learns != 0 {
		t.Errorf("resume without a checkpoint must leave the agent "+
			"untouched, got %v observes and %v learns", ag.observed,
			ag.learns)
	}
}

func TestRunStopsAtContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	count := 0
	loop, err := New(&fakeEnv{terminalAfter: 10}, newFakeAgent(0,
		testAgentConfig()), nil, Config{
		NumEpisodes: 100,
		MaxEpLength: 10,
		OnEpisode: func(s EpisodeSummary) {
			count++
			if count == 3 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	summaries, err := loop.Run(ctx)
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(summaries) != 3 {
		t.Errorf("expected 3 episodes before cancellation, got %v",
			len(summaries))
	}
}

func TestConfigValidation(t *testing.T) {
	bad := []Config{
		{NumEpisodes: 0, MaxEpLength: 10},
		{NumEpisodes: 10, MaxEpLength: 0},
		{NumEpisodes: 10, MaxEpLength: 10, CheckpointEvery: -1},
		{NumEpisodes: 10, MaxEpLength: 10, EvalFixed: true},
	}
	for i, conf := range bad {
		if err := conf.Validate(); err == nil {
			t.Errorf("config %v should have been rejected", i)
		}
	}
}
