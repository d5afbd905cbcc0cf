package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalq/signalq/grid"
)

// ShowCommand prints the ranked results of a previous search.
func ShowCommand() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "show <logdir>",
		Short: "print the ranked results of a saved search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := grid.LoadResults(args[0])
			if err != nil {
				return fmt.Errorf("could not load results: %w", err)
			}
			printResults(results, top)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10,
		"number of ranked settings to print")
	return cmd
}
