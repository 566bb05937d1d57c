package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/couchcryptid/warehouse-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run <pipeline>",
	Short: "Run one pipeline to completion",
	Long: `Run invokes a single pipeline and prints its status line. The command exits
non-zero when the pipeline fails.

Examples:
  etl run rates
  etl run blob --json`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: pipeline.Names(),
	RunE:      runPipeline,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	name := strings.ToLower(args[0])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.InvocationTimeout)
	defer cancel()

	res, err := a.service.Invoke(ctx, name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]string{
			"pipeline": res.Pipeline,
			"run_id":   res.RunID,
			"outcome":  res.Outcome.String(),
			"status":   res.Status,
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, res.Status)
	}

	if !res.Outcome.OK() {
		return fmt.Errorf("pipeline %s failed", res.Pipeline)
	}
	return nil
}
