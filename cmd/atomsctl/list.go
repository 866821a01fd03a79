package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted atom paths in the namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			refs, err := store.List(cmd.Context(), opts.namespace)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				paths := make([]string, 0, len(refs))
				for _, ref := range refs {
					paths = append(paths, ref.Path)
				}
				return writeJSON(out, paths)
			}
			for _, ref := range refs {
				fmt.Fprintln(out, ref.Path)
			}
			return nil
		},
	}
}
