package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"spock/internal/engine"
)

var theoryCmd = &cobra.Command{
	Use:   "theory",
	Short: "Inspect and manage the theory store",
}

var theoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every theory under the working folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Shutdown()

		names, err := e.ListTheories()
		if err != nil {
			return fmt.Errorf("listing theories: %w", err)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var theoryShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a theory's version lineage and source text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Shutdown()

		d, err := e.LoadTheory(args[0])
		if err != nil {
			return fmt.Errorf("loading theory %q: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "name: %s\n", d.Name)
		fmt.Fprintf(out, "version: %s\n", d.VersionID)
		if d.ParentVersionID != "" {
			fmt.Fprintf(out, "parent version: %s\n", d.ParentVersionID)
		}
		if d.BranchedFrom != "" {
			fmt.Fprintf(out, "branched from: %s\n", d.BranchedFrom)
		}
		if d.MergeProvenance != nil {
			fmt.Fprintf(out, "merge provenance: %+v\n", *d.MergeProvenance)
		}
		fmt.Fprintf(out, "created: %s\n", d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
		fmt.Fprintf(out, "updated: %s\n", d.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
		fmt.Fprintln(out, "---")
		fmt.Fprint(out, d.SourceText)
		return nil
	},
}

var theoryDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a theory from the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Shutdown()

		if err := e.DeleteTheory(args[0]); err != nil {
			return fmt.Errorf("deleting theory %q: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func openEngine() (*engine.Engine, error) {
	cfg, err := loadEngineConfig()
	if err != nil {
		return nil, err
	}
	e, err := engine.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("starting engine: %w", err)
	}
	return e, nil
}
