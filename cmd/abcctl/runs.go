package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"abcsmc/pkg/abcsmc"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs stored in the storage target",
	RunE:  runListRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runListRuns(cmd *cobra.Command, args []string) error {
	client, err := abcsmc.New(abcsmc.Options{StoreKind: storeKind, DBPath: dbPath})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if err := client.Init(ctx); err != nil {
		return err
	}
	runs, err := client.Runs(ctx)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tCREATED\tMODELS\tPOP SIZE\tPOPULATIONS\tSTOPPED")
	for _, run := range runs {
		hist := client.History(run.ID)
		n, err := hist.NPopulations(ctx)
		if err != nil {
			return err
		}
		stopped := string(run.StopReason)
		if stopped == "" {
			stopped = "open"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"),
			len(run.ModelNames), run.PopulationSize, n, stopped)
	}
	return w.Flush()
}
