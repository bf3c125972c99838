package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"spock/internal/engine"
)

var runCmd = &cobra.Command{
	Use:   "run <script.spk>",
	Short: "Parse and execute a SpockDSL script as a one-shot learn call",
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Shutdown()

	sess := e.CreateSession()
	res := sess.Learn(string(data))
	printResult(cmd, res)
	if !res.Success {
		return fmt.Errorf("execution failed: %s", res.Error)
	}
	return nil
}

func printResult(cmd *cobra.Command, res engine.Result) {
	out := cmd.OutOrStdout()
	if !res.Success {
		fmt.Fprintf(out, "failed at line %d: %s\n", res.Line, res.Error)
		return
	}

	names := make([]string, 0, len(res.Symbols))
	for name := range res.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "symbols:")
	for _, name := range names {
		fmt.Fprintf(out, "  %s = %s\n", name, res.Symbols[name].Summary())
	}
	fmt.Fprintf(out, "scores: truth=%.4f confidence=%.4f\n", res.Scores.Truth, res.Scores.Confidence)
	fmt.Fprintf(out, "trace:\n%s", res.Trace)
}
