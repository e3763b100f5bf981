package main

import (
	"log"

	"github.com/spf13/cobra"

	"toolshed/internal/catalog"
	"toolshed/internal/export"
)

type exportOptions struct {
	in  string
	out string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("export failed: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := exportOptions{
		in:  "tools.json",
		out: "tools_dataset.csv",
	}

	cmd := &cobra.Command{
		Use:           "export-csv",
		Short:         "Flatten the tool catalog into a CSV dataset",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	cmd.Flags().StringVar(&opts.in, "in", opts.in, "catalog file (JSON or YAML)")
	cmd.Flags().StringVar(&opts.out, "out", opts.out, "output CSV path")
	return cmd
}

func run(opts exportOptions) error {
	// the exporter is strict: a missing or broken catalog must not produce an empty dataset
	tools, err := catalog.NewLoader(opts.in, nil).Read()
	if err != nil {
		return err
	}

	if err := export.WriteFile(opts.out, tools); err != nil {
		return err
	}

	log.Printf("✅ exported %d tools to %s", len(tools), opts.out)
	return nil
}
