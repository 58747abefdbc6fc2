package main

import (
	"context"
	"sort"

	"github.com/spf13/cobra"
)

type centralListOpts struct {
	*centralOpts
	outputFormat string
}

func newCentralList(parent *centralOpts) *centralListOpts {
	return &centralListOpts{centralOpts: parent}
}

func (opts *centralListOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List deployments visible to the configured token.",
		Example: makeExample("cococi central list"),
		RunE:    opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.outputFormat, "output-format", "o", outputFormatTable, outputFormatHelp())
	return cmd
}

func (opts *centralListOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if !outputFormatIsValid(opts.outputFormat) {
		return errorInvalidOutputFormat
	}

	deployments, err := opts.client().List(context.Background())
	if err != nil {
		return err
	}
	sort.SliceStable(deployments, func(i, j int) bool {
		return deployments[i].Name < deployments[j].Name
	})

	if opts.outputFormat != outputFormatTable {
		return printStructured(cmd.OutOrStdout(), opts.outputFormat, deployments)
	}
	printDeployments(cmd.OutOrStdout(), deployments)
	return nil
}
