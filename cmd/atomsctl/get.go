package main

import (
	"fmt"

	"github.com/goliatone/go-atoms/pkg/persist"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type getOutput struct {
	Path  string       `json:"path" yaml:"path"`
	Meta  persist.Meta `json:"meta" yaml:"meta"`
	Value any          `json:"value" yaml:"value"`
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print a persisted atom value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store()
			if err != nil {
				return err
			}
			ref := opts.ref(args[0])
			value, meta, ok, err := store.Load(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s not found", ref)
			}
			result := getOutput{Path: ref.Path, Meta: meta, Value: value}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			data, err := yaml.Marshal(result)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
