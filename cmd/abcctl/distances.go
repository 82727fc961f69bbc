package main

import (
	"fmt"

	"abcsmc/pkg/abcsmc"

	"github.com/spf13/cobra"
)

var distancesT int

var distancesCmd = &cobra.Command{
	Use:   "distances [run-id]",
	Short: "Print the accepted distances of one population",
	Args:  cobra.ExactArgs(1),
	RunE:  runDistances,
}

func init() {
	distancesCmd.Flags().IntVar(&distancesT, "t", 0, "Population index")
	rootCmd.AddCommand(distancesCmd)
}

func runDistances(cmd *cobra.Command, args []string) error {
	client, err := abcsmc.New(abcsmc.Options{StoreKind: storeKind, DBPath: dbPath})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if err := client.Init(ctx); err != nil {
		return err
	}
	distances, err := client.Distances(ctx, args[0], distancesT)
	if err != nil {
		return err
	}

	for _, d := range distances {
		fmt.Printf("%.6g\n", d)
	}
	return nil
}
