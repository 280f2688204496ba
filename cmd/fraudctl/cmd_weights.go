package main

import (
	"fmt"
	"io"

	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/internal/signals"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newWeightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Inspect and validate scoring weight tables",
	}

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a weight file against the registered signals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateWeights(cmd.OutOrStdout(), args[0])
		},
	}

	var weightsFile string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective weight tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showWeights(cmd.OutOrStdout(), weightsFile)
		},
	}
	showCmd.Flags().StringVar(&weightsFile, "weights", "", "YAML file overriding the built-in tables")

	cmd.AddCommand(validateCmd, showCmd)
	return cmd
}

func validateWeights(out io.Writer, path string) error {
	weights, err := risk.LoadWeights(path)
	if err != nil {
		return err
	}
	set, _ := signals.Build(signals.Dependencies{})
	if err := weights.Validate(set.Known); err != nil {
		return err
	}

	for _, kind := range risk.AllKinds {
		table, _ := weights.For(kind)
		fmt.Fprintf(out, "%-8s ok (%d signals)\n", kind, len(table.Entries))
	}
	return nil
}

func showWeights(out io.Writer, path string) error {
	weights, err := risk.LoadWeights(path)
	if err != nil {
		return err
	}

	doc := make(map[string][]risk.Weight, len(weights))
	for kind, table := range weights {
		doc[string(kind)] = table.Entries
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
