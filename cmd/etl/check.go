package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/couchcryptid/warehouse-etl/internal/config"
	"github.com/couchcryptid/warehouse-etl/internal/domain"
	"github.com/couchcryptid/warehouse-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

var checkOut string

var checkCmd = &cobra.Command{
	Use:   "check <pipeline> <file>...",
	Short: "Normalize local source files without loading them",
	Long: `Check parses and normalizes downloaded source files with the same rules a
pipeline run uses, and reports row counts. Nothing is written to the warehouse.
Only blob, rates and weather have fetched sources. For rates, pass the yearly
files in ascending year order.

Examples:
  etl check rates 2022.txt 2023.txt
  etl check blob bikes.csv --out bikes_normalized.csv`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkOut, "out", "o", "", "write the normalized CSV to this file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts, norm, err := pipeline.SourceRules(args[0], cfg)
	if err != nil {
		return err
	}

	var batches []domain.RawBatch
	for _, path := range args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		b, err := domain.ParseDelimited(path, string(data), opts)
		if err != nil {
			return err
		}
		batches = append(batches, b)
	}

	table, stats, err := norm.Normalize(domain.MergeBatches(batches...))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "input rows:     %d\n", stats.Input)
	fmt.Fprintf(out, "output rows:    %d\n", stats.Output)
	fmt.Fprintf(out, "defaulted ids:  %d\n", stats.Defaulted)
	reasons := make([]string, 0, len(stats.Dropped))
	for r := range stats.Dropped {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(out, "dropped %-14s %d\n", r+":", stats.Dropped[r])
	}

	if checkOut == "" {
		return nil
	}
	f, err := os.Create(checkOut)
	if err != nil {
		return err
	}
	if err := table.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
