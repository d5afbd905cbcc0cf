// Package phasesim implements a small synthetic signalized
// intersection. Two approaches accumulate vehicles from seeded random
// arrivals; the agent holds or switches the green phase and the reward
// is the negated total queue length. The dynamics are deliberately
// simple: this environment exists so that training runs, tests, and
// grid searches have a deterministic simulator that needs no external
// process.
package phasesim

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

const (
	// Actions
	Hold   = 0
	Switch = 1

	// NumFeatures is the length of the observation vector:
	// [queueN, queueE, phase is NS, phase is EW, phase age, progress].
	NumFeatures = 6

	// queueScale normalizes queue lengths and phase ages into a range
	// a neural value function digests without feature scaling.
	queueScale = 10.0
)

// Config describes one intersection.
type Config struct {
	// ArrivalNorth and ArrivalEast are per-step arrival probabilities
	// on the two approaches.
	ArrivalNorth float64
	ArrivalEast  float64

	// ServiceRate is the number of vehicles the green approach
	// discharges per step.
	ServiceRate int

	// EpisodeLen is the number of steps per episode.
	EpisodeLen int

	// Seed drives the arrival process.
	Seed uint64
}

// Validate checks the Config for constructible values.
func (c Config) Validate() error {
	if c.ArrivalNorth < 0 || c.ArrivalNorth > 1 ||
		c.ArrivalEast < 0 || c.ArrivalEast > 1 {
		return fmt.Errorf("phasesim: arrival probabilities must be in "+
			"[0, 1], got %v and %v", c.ArrivalNorth, c.ArrivalEast)
	}
	if c.ServiceRate < 1 {
		return fmt.Errorf("phasesim: service rate must be positive, got %v",
			c.ServiceRate)
	}
	if c.EpisodeLen < 1 {
		return fmt.Errorf("phasesim: episode length must be positive, "+
			"got %v", c.EpisodeLen)
	}
	return nil
}

// DefaultConfig returns a light-traffic intersection with a slight
// north-south bias.
func DefaultConfig(seed uint64) Config {
	return Config{
		ArrivalNorth: 0.4,
		ArrivalEast:  0.25,
		ServiceRate:  2,
		EpisodeLen:   300,
		Seed:         seed,
	}
}

// PhaseSim is a two-approach intersection.
type PhaseSim struct {
	conf Config
	rng  *rand.Rand

	queueN   int
	queueE   int
	phase    int // 0 = north-south green, 1 = east-west green
	phaseAge int
	step     int
	started  bool

	// Delay bookkeeping for the episode in progress and the last
	// completed episode.
	waitSteps    int
	served       int
	lastDelay    float64
	hasLastDelay bool
}

// New returns a PhaseSim for the given Config.
func New(conf Config) (*PhaseSim, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &PhaseSim{
		conf: conf,
		rng:  rand.New(rand.NewSource(conf.Seed)),
	}, nil
}

// Reset implements the environment.Environment interface
func (p *PhaseSim) Reset() (mat.Vector, error) {
	p.queueN = 0
	p.queueE = 0
	p.phase = 0
	p.phaseAge = 0
	p.step = 0
	p.waitSteps = 0
	p.served = 0
	p.started = true
	return p.observation(), nil
}

// Step implements the environment.Environment interface
func (p *PhaseSim) Step(action int) (mat.Vector, float64, bool, error) {
	if !p.started {
		return nil, 0, false, fmt.Errorf("step: environment not reset")
	}
	if action != Hold && action != Switch {
		return nil, 0, false, fmt.Errorf("step: invalid action %v", action)
	}

	// Arrivals consume exactly two random draws per step, so the
	// process is deterministic given the seed and the action sequence.
	if p.rng.Float64() < p.conf.ArrivalNorth {
		p.queueN++
	}
	if p.rng.Float64() < p.conf.ArrivalEast {
		p.queueE++
	}

	if action == Switch {
		// Switching loses one step of service.
		p.phase = 1 - p.phase
		p.phaseAge = 0
	} else {
		departed := p.discharge()
		p.served += departed
		p.phaseAge++
	}

	p.waitSteps += p.queueN + p.queueE
	p.step++

	reward := -float64(p.queueN + p.queueE)
	terminal := p.step >= p.conf.EpisodeLen
	if terminal {
		p.finishEpisode()
	}
	return p.observation(), reward, terminal, nil
}

// discharge serves vehicles on the green approach and returns the
// number that departed.
func (p *PhaseSim) discharge() int {
	queue := &p.queueN
	if p.phase == 1 {
		queue = &p.queueE
	}
	departed := p.conf.ServiceRate
	if *queue < departed {
		departed = *queue
	}
	*queue -= departed
	return departed
}

func (p *PhaseSim) finishEpisode() {
	served := p.served
	if served < 1 {
		served = 1
	}
	p.lastDelay = float64(p.waitSteps) / float64(served)
	p.hasLastDelay = true
	p.started = false
}

func (p *PhaseSim) observation() mat.Vector {
	obs := mat.NewVecDense(NumFeatures, nil)
	obs.SetVec(0, float64(p.queueN)/queueScale)
	obs.SetVec(1, float64(p.queueE)/queueScale)
	if p.phase == 0 {
		obs.SetVec(2, 1)
	} else {
		obs.SetVec(3, 1)
	}
	obs.SetVec(4, float64(p.phaseAge)/queueScale)
	obs.SetVec(5, float64(p.step)/float64(p.conf.EpisodeLen))
	return obs
}

// NumActions implements the environment.Environment interface
func (p *PhaseSim) NumActions() int { return 2 }

// NumFeatures implements the environment.Environment interface
func (p *PhaseSim) NumFeatures() int { return NumFeatures }

// MeanDelay implements the environment.DelayReporter interface. It
// reports the mean vehicle-steps waited per served vehicle over the
// most recently completed episode, or -1 when no episode has run to
// completion yet.
func (p *PhaseSim) MeanDelay() float64 {
	if !p.hasLastDelay {
		return -1
	}
	return p.lastDelay
}
