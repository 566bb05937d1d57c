// Command etl runs the warehouse landing pipelines, either as an HTTP service
// or as one-shot invocations.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "Load bike, exchange-rate, weather and trip data into BigQuery",
	Long: `etl fetches landing data from its upstream sources, normalizes it, and
truncate-loads it into the warehouse.

Pipelines: blob, rates, weather, trips, enriched.

Configuration is read from environment variables. A .env file in the working
directory (or the file given by --env-file) is loaded first when present.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(envFile); err != nil {
			// The default file is optional; an explicit one is not.
			if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
				return nil
			}
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading configuration")
	rootCmd.AddCommand(serveCmd, runCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
