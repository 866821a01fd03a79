package main

import (
	"fmt"

	"github.com/goliatone/go-atoms/pkg/persist"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSetCmd(opts *rootOptions) *cobra.Command {
	var etag string
	cmd := &cobra.Command{
		Use:   "set <path> <yaml>",
		Short: "Write a persisted atom value",
		Long:  "set parses the value as YAML (so JSON works too) and stores it at path. With --etag the write is rejected unless the stored ETag matches.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := yaml.Unmarshal([]byte(args[1]), &value); err != nil {
				return fmt.Errorf("parse value: %w", err)
			}
			store, err := opts.store()
			if err != nil {
				return err
			}
			ref := opts.ref(args[0])
			meta, err := store.Save(cmd.Context(), ref, value, persist.Meta{ETag: etag})
			if err != nil {
				return err
			}
			opts.logger.Debugw("value written", "ref", ref.String(), "snapshot_id", meta.SnapshotID)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), meta)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s etag=%s\n", ref.Path, meta.ETag)
			return nil
		},
	}
	cmd.Flags().StringVar(&etag, "etag", "", "expected current ETag")
	return cmd
}
