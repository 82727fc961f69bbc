package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"abcsmc/pkg/abcsmc"

	"github.com/spf13/cobra"
)

var probabilitiesCmd = &cobra.Command{
	Use:   "probabilities [run-id]",
	Short: "Print the model-probability series of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbabilities,
}

func init() {
	rootCmd.AddCommand(probabilitiesCmd)
}

func runProbabilities(cmd *cobra.Command, args []string) error {
	client, err := abcsmc.New(abcsmc.Options{StoreKind: storeKind, DBPath: dbPath})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if err := client.Init(ctx); err != nil {
		return err
	}
	rows, err := client.ModelProbabilities(ctx, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "T\tMODEL PROBABILITIES")
	for _, row := range rows {
		fmt.Fprintf(w, "%d\t%v\n", row.T, row.Probabilities)
	}
	return w.Flush()
}
