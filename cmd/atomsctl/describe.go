package main

import (
	"fmt"
	"text/tabwriter"

	atoms "github.com/goliatone/go-atoms"
	"github.com/goliatone/go-atoms/pkg/persist"
	"github.com/spf13/cobra"
)

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [path]",
		Short: "Describe the fields of one or all persisted values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			refs, err := store.List(cmd.Context(), opts.namespace)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				refs = []persist.Ref{opts.ref(args[0])}
			}

			snapshot := make(map[string]any, len(refs))
			for _, ref := range refs {
				value, _, ok, err := store.Load(cmd.Context(), ref)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s not found", ref)
				}
				snapshot[ref.Path] = value
			}

			fields := atoms.DescribeSnapshot(snapshot)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), fields)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tTYPE")
			for _, field := range fields {
				fmt.Fprintf(tw, "%s\t%s\n", field.Path, field.Type)
			}
			return tw.Flush()
		},
	}
}
