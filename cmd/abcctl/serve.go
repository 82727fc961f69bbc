package main

import (
	"log/slog"

	"abcsmc/pkg/abcsmc"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only inspection API over HTTP",
	Long:  `Exposes runs, model probabilities, populations and distances as JSON.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	client, err := abcsmc.New(abcsmc.Options{StoreKind: storeKind, DBPath: dbPath})
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Init(cmd.Context()); err != nil {
		return err
	}

	slog.Info("Serving inspection API", "addr", serveAddr)
	return client.Router().Run(serveAddr)
}
