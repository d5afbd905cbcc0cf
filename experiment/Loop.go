// Package experiment runs training experiments: it drives an agent
// through an environment episode by episode, fills the replay memory
// before learning starts, periodically checkpoints the run, and can
// resume an interrupted run from its last checkpoint.
package experiment

import (
	"context"
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/signalq/signalq/agent"
	"github.com/signalq/signalq/environment"
	"github.com/signalq/signalq/experiment/checkpointer"
	"github.com/signalq/signalq/expreplay"
	"github.com/signalq/signalq/policy"
)

// Labels attached to episode summaries. Training episodes are labelled
// LabelRL; fixed-seed evaluation episodes are labelled LabelFixed.
const (
	LabelRL    = "RL"
	LabelFixed = "fixed"
)

// EpisodeSummary records one episode's outcome.
type EpisodeSummary struct {
	// Episode is the 1-based episode number within the run.
	Episode int

	// Steps is the number of environment steps the episode took.
	Steps int

	// Return is the undiscounted sum of rewards.
	Return float64

	// MeanDelay is the environment's mean per-vehicle delay for the
	// episode, or -1 when the episode was cut off before terminating or
	// the environment does not report delay.
	MeanDelay float64

	// Label distinguishes training episodes from evaluation episodes.
	Label string
}

// Config describes one training run.
type Config struct {
	// RunID names the run. Checkpoints are stored under this name.
	RunID string

	// NumEpisodes is the total number of training episodes.
	NumEpisodes int

	// MaxEpLength cuts an episode off after this many steps if the
	// environment has not terminated it.
	MaxEpLength int

	// BurnInPolicy selects actions while the replay memory fills before
	// learning starts. Defaults to a uniform random policy.
	BurnInPolicy policy.Policy

	// CheckpointEvery saves a checkpoint after every such number of
	// episodes. Zero disables checkpointing.
	CheckpointEvery int

	// EvalFixed runs a greedy evaluation episode on a freshly seeded
	// environment after every training episode and appends its summary.
	EvalFixed bool

	// EvalEnv constructs the evaluation environment. Each call must
	// return an identically seeded environment so evaluation conditions
	// stay fixed across the run. Required when EvalFixed is set.
	EvalEnv func() (environment.Environment, error)

	// Seed drives the default burn-in policy.
	Seed uint64

	// OnEpisode, when non-nil, is called with each summary as it is
	// produced.
	OnEpisode func(EpisodeSummary)
}

// Validate checks that the Config describes a runnable experiment.
func (c Config) Validate() error {
	if c.NumEpisodes < 1 {
		return fmt.Errorf("config: number of episodes must be positive, "+
			"got %v", c.NumEpisodes)
	}
	if c.MaxEpLength < 1 {
		return fmt.Errorf("config: maximum episode length must be positive, "+
			"got %v", c.MaxEpLength)
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("config: checkpoint interval cannot be negative, "+
			"got %v", c.CheckpointEvery)
	}
	if c.EvalFixed && c.EvalEnv == nil {
		return fmt.Errorf("config: fixed evaluation requires an evaluation " +
			"environment constructor")
	}
	return nil
}

// Loop trains one agent on one environment.
type Loop struct {
	env   environment.Environment
	agent agent.Agent
	store checkpointer.Store
	conf  Config

	burnIn policy.Policy
	best   float64
}

// New returns a training loop. The store may be nil when
// conf.CheckpointEvery is zero; otherwise the agent must support
// checkpointing.
func New(env environment.Environment, ag agent.Agent,
	store checkpointer.Store, conf Config) (*Loop, error) {

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.CheckpointEvery > 0 {
		if store == nil {
			return nil, fmt.Errorf("new: checkpointing enabled without a " +
				"checkpoint store")
		}
		if _, ok := ag.(agent.Checkpointable); !ok {
			return nil, fmt.Errorf("new: agent does not support checkpointing")
		}
	}

	burnIn := conf.BurnInPolicy
	if burnIn == nil {
		burnIn = policy.NewUniform(env.NumActions(), rand.NewSource(conf.Seed))
	}

	return &Loop{
		env:    env,
		agent:  ag,
		store:  store,
		conf:   conf,
		burnIn: burnIn,
		best:   -1,
	}, nil
}

// Agent returns the agent being trained.
func (l *Loop) Agent() agent.Agent { return l.agent }

// Run trains from scratch: fill the replay memory to the burn-in quota,
// then run conf.NumEpisodes training episodes. The returned summaries
// include one entry per training episode plus, when fixed evaluation is
// enabled, one evaluation entry after each.
func (l *Loop) Run(ctx context.Context) ([]EpisodeSummary, error) {
	if err := l.fillReplay(); err != nil {
		return nil, err
	}
	return l.run(ctx, 0)
}

// Resume continues an interrupted run from its latest checkpoint. A
// missing or unreadable checkpoint is an error: resuming never falls
// back to retraining from scratch. The replay memory is not persisted,
// so it is refilled before training continues.
func (l *Loop) Resume(ctx context.Context) ([]EpisodeSummary, error) {
	if l.store == nil {
		return nil, fmt.Errorf("resume: no checkpoint store configured")
	}

	cp, err := l.store.LoadLatest()
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}

	restorable, ok := l.agent.(agent.Checkpointable)
	if !ok {
		return nil, fmt.Errorf("resume: agent does not support checkpointing")
	}
	if err := restorable.SetParameters(cp.Params); err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}

	if err := l.fillReplay(); err != nil {
		return nil, err
	}
	restorable.SetTotalSteps(cp.Step)
	l.best = cp.BestMetric

	return l.run(ctx, cp.Episode)
}

// run executes training episodes startEpisode+1 through
// conf.NumEpisodes.
func (l *Loop) run(ctx context.Context,
	startEpisode int) ([]EpisodeSummary, error) {

	var summaries []EpisodeSummary
	for episode := startEpisode + 1; episode <= l.conf.NumEpisodes; episode++ {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}

		summary, err := l.runEpisode(episode)
		if err != nil {
			return summaries, err
		}
		summaries = l.emit(summaries, summary)

		if summary.MeanDelay >= 0 &&
			(l.best < 0 || summary.MeanDelay < l.best) {
			l.best = summary.MeanDelay
		}

		if l.conf.EvalFixed {
			evalSummary, err := l.evalFixed(episode)
			if err != nil {
				return summaries, err
			}
			summaries = l.emit(summaries, evalSummary)
		}

		if l.conf.CheckpointEvery > 0 &&
			episode%l.conf.CheckpointEvery == 0 {
			if err := l.checkpoint(episode); err != nil {
				return summaries, err
			}
		}
	}
	return summaries, nil
}

func (l *Loop) emit(summaries []EpisodeSummary,
	s EpisodeSummary) []EpisodeSummary {

	if l.conf.OnEpisode != nil {
		l.conf.OnEpisode(s)
	}
	return append(summaries, s)
}

// fillReplay collects transitions with the burn-in policy until the
// agent is ready to learn. Burn-in steps do not count toward the
// agent's step counter, so learning schedules start at step zero.
func (l *Loop) fillReplay() error {
	if l.agent.ReadyToLearn() {
		return nil
	}
	startSteps := l.agent.TotalSteps()

	state, err := l.env.Reset()
	if err != nil {
		return fmt.Errorf("fillreplay: %w", err)
	}
	for steps := 0; !l.agent.ReadyToLearn(); steps++ {
		q, err := l.agent.ActionValues(state)
		if err != nil {
			return fmt.Errorf("fillreplay: %w", err)
		}
		action, err := l.burnIn.Select(q, 0)
		if err != nil {
			return fmt.Errorf("fillreplay: %w", err)
		}

		next, reward, terminal, err := l.env.Step(action)
		if err != nil {
			return fmt.Errorf("fillreplay: %w", err)
		}
		err = l.agent.Observe(expreplay.Transition{
			State:     state,
			Action:    action,
			Reward:    reward,
			NextState: next,
			Terminal:  terminal,
		})
		if err != nil {
			return fmt.Errorf("fillreplay: %w", err)
		}

		state = next
		if terminal || (steps+1)%l.conf.MaxEpLength == 0 {
			if state, err = l.env.Reset(); err != nil {
				return fmt.Errorf("fillreplay: %w", err)
			}
		}
	}

	if restorable, ok := l.agent.(agent.Checkpointable); ok {
		restorable.SetTotalSteps(startSteps)
	}
	return nil
}

// runEpisode runs one training episode, learning at the configured
// frequency and synchronizing the target network at exact multiples of
// the target update frequency.
func (l *Loop) runEpisode(episode int) (EpisodeSummary, error) {
	conf := l.agent.Config()

	state, err := l.env.Reset()
	if err != nil {
		return EpisodeSummary{}, fmt.Errorf("runepisode: %w", err)
	}

	var (
		episodeReturn float64
		steps         int
		terminal      bool
	)
	for steps < l.conf.MaxEpLength && !terminal {
		action, err := l.agent.Act(state)
		if err != nil {
			return EpisodeSummary{}, fmt.Errorf("runepisode: %w", err)
		}

		next, reward, done, err := l.env.Step(action)
		if err != nil {
			return EpisodeSummary{}, fmt.Errorf("runepisode: %w", err)
		}
		err = l.agent.Observe(expreplay.Transition{
			State:     state,
			Action:    action,
			Reward:    reward,
			NextState: next,
			Terminal:  done,
		})
		if err != nil {
			return EpisodeSummary{}, fmt.Errorf("runepisode: %w", err)
		}

		if l.agent.ReadyToLearn() &&
			l.agent.TotalSteps()%conf.TrainFreq == 0 {
			if err := l.agent.Learn(); err != nil {
				return EpisodeSummary{}, fmt.Errorf("runepisode: %w", err)
			}
		}
		if l.agent.TotalSteps()%conf.TargetUpdateFreq == 0 {
			if err := l.agent.SyncTarget(); err != nil {
				return EpisodeSummary{}, fmt.Errorf("runepisode: %w", err)
			}
		}

		episodeReturn += reward
		state = next
		terminal = done
		steps++
	}

	// A cut-off episode has no trustworthy delay figure.
	delay := -1.0
	if terminal {
		if reporter, ok := l.env.(environment.DelayReporter); ok {
			delay = reporter.MeanDelay()
		}
	}

	return EpisodeSummary{
		Episode:   episode,
		Steps:     steps,
		Return:    episodeReturn,
		MeanDelay: delay,
		Label:     LabelRL,
	}, nil
}

// evalFixed evaluates the current greedy policy on a freshly seeded
// environment without touching the agent's memory or networks.
func (l *Loop) evalFixed(episode int) (EpisodeSummary, error) {
	env, err := l.conf.EvalEnv()
	if err != nil {
		return EpisodeSummary{}, fmt.Errorf("evalfixed: %w", err)
	}

	summary, err := Evaluate(env, l.agent, l.conf.MaxEpLength)
	if err != nil {
		return EpisodeSummary{}, fmt.Errorf("evalfixed: %w", err)
	}
	summary.Episode = episode
	return summary, nil
}

func (l *Loop) checkpoint(episode int) error {
	restorable := l.agent.(agent.Checkpointable)
	err := l.store.Save(checkpointer.Checkpoint{
		Step:       l.agent.TotalSteps(),
		Episode:    episode,
		Params:     restorable.Parameters(),
		BestMetric: l.best,
	})
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Evaluate runs one greedy episode on env without learning or
// observing, so the agent is left exactly as it was. The summary
// carries the fixed-evaluation label.
func Evaluate(env environment.Environment, ag agent.Agent,
	maxSteps int) (EpisodeSummary, error) {

	greedy := policy.NewGreedy()

	state, err := env.Reset()
	if err != nil {
		return EpisodeSummary{}, fmt.Errorf("evaluate: %w", err)
	}

	var (
		episodeReturn float64
		steps         int
		terminal      bool
	)
	for steps < maxSteps && !terminal {
		q, err := ag.ActionValues(state)
		if err != nil {
			return EpisodeSummary{}, fmt.Errorf("evaluate: %w", err)
		}
		action, err := greedy.Select(q, 0)
		if err != nil {
			return EpisodeSummary{}, fmt.Errorf("evaluate: %w", err)
		}

		var reward float64
		state, reward, terminal, err = env.Step(action)
		if err != nil {
			return EpisodeSummary{}, fmt.Errorf("evaluate: %w", err)
		}
		episodeReturn += reward
		steps++
	}

	delay := -1.0
	if terminal {
		if reporter, ok := env.(environment.DelayReporter); ok {
			delay = reporter.MeanDelay()
		}
	}

	return EpisodeSummary{
		Steps:     steps,
		Return:    episodeReturn,
		MeanDelay: delay,
		Label:     LabelFixed,
	}, nil
}
