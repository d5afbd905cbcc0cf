// Command signalq trains double-DQN agents to control a signalized
// intersection and sweeps their hyperparameters.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "signalq",
		Short:        "train and tune traffic-signal control agents",
		SilenceUsage: true,
	}
	root.AddCommand(TrainCommand())
	root.AddCommand(SearchCommand())
	root.AddCommand(ShowCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
