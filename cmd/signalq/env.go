package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalq/signalq/environment"
	"github.com/signalq/signalq/environment/phasesim"
	"github.com/signalq/signalq/valuefn"
)

// envFlags configures the simulated intersection shared by the train
// and search commands.
type envFlags struct {
	arrivalNorth float64
	arrivalEast  float64
	serviceRate  int
	episodeLen   int
}

func (f *envFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.arrivalNorth, "arrival-north", 0.4,
		"per-step arrival probability on the north approach")
	cmd.Flags().Float64Var(&f.arrivalEast, "arrival-east", 0.25,
		"per-step arrival probability on the east approach")
	cmd.Flags().IntVar(&f.serviceRate, "service-rate", 2,
		"vehicles served per step on the green approach")
	cmd.Flags().IntVar(&f.episodeLen, "episode-len", 300,
		"steps per episode")
}

func (f *envFlags) builder() func(seed uint64) (environment.Environment,
	error) {

	return func(seed uint64) (environment.Environment, error) {
		return phasesim.New(phasesim.Config{
			ArrivalNorth: f.arrivalNorth,
			ArrivalEast:  f.arrivalEast,
			ServiceRate:  f.serviceRate,
			EpisodeLen:   f.episodeLen,
			Seed:         seed,
		})
	}
}

// valueFnFlags selects and configures the network architecture.
type valueFnFlags struct {
	kind   string
	hidden []int
}

func (f *valueFnFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "value-fn", "mlp",
		"value function architecture (linear or mlp)")
	cmd.Flags().IntSliceVar(&f.hidden, "hidden", []int{64, 64},
		"hidden layer sizes of the mlp value function")
}

func (f *valueFnFlags) builder() (func(numFeatures, numActions,
	batchSize int, learningRate float64, seed uint64) (valuefn.ValueFunction,
	error), error) {

	switch f.kind {
	case "linear":
		return func(numFeatures, numActions, batchSize int,
			learningRate float64, seed uint64) (valuefn.ValueFunction,
			error) {

			return valuefn.NewLinear(numFeatures, numActions, learningRate)
		}, nil

	case "mlp":
		hidden := f.hidden
		return func(numFeatures, numActions, batchSize int,
			learningRate float64, seed uint64) (valuefn.ValueFunction,
			error) {

			return valuefn.NewMLP(numFeatures, hidden, numActions, batchSize,
				learningRate, seed)
		}, nil
	}
	return nil, fmt.Errorf("unknown value function %q, expected linear "+
		"or mlp", f.kind)
}
