package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goliatone/go-atoms/pkg/persist"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	dir       string
	namespace string
	json      bool
	verbose   bool
	logger    *zap.SugaredLogger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "atomsctl",
		Short:         "Inspect atom values persisted in a file store",
		Long:          "atomsctl reads and writes the YAML documents a persist.FileStore keeps for persistent atoms.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = zap.NewNop().Sugar()
			if opts.verbose {
				logger, err := zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				opts.logger = logger.Sugar()
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.dir, "dir", ".atoms", "file store root directory")
	cmd.PersistentFlags().StringVarP(&opts.namespace, "namespace", "n", persist.DefaultNamespace, "namespace to operate on")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newListCmd(opts),
		newGetCmd(opts),
		newSetCmd(opts),
		newDescribeCmd(opts),
	)
	return cmd
}

func (o *rootOptions) store() (*persist.FileStore, error) {
	o.logger.Debugw("opening file store", "dir", o.dir, "namespace", o.namespace)
	return persist.NewFileStore(o.dir)
}

func (o *rootOptions) ref(path string) persist.Ref {
	return persist.Ref{Namespace: o.namespace, Path: path}
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
