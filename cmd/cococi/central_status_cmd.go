package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/infinilabs/cococi/pkg/central"
)

type centralStatusOpts struct {
	*centralOpts
	outputFormat string
}

func newCentralStatus(parent *centralOpts) *centralStatusOpts {
	return &centralStatusOpts{centralOpts: parent}
}

func (opts *centralStatusOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status <deployment-id>",
		Short:   "Show the state of a deployment.",
		Example: makeExample("cococi central status 28570f16-da32-4c14-bd2e-c1acc0782365 -o yaml"),
		RunE:    opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.outputFormat, "output-format", "o", outputFormatTable, outputFormatHelp())
	return cmd
}

func (opts *centralStatusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("expected exactly one deployment ID")
	}
	if !outputFormatIsValid(opts.outputFormat) {
		return errorInvalidOutputFormat
	}

	status, err := opts.client().Status(context.Background(), central.DeploymentID(args[0]))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.outputFormat != outputFormatTable {
		return printStructured(out, opts.outputFormat, status)
	}
	printDeployments(out, []central.DeploymentStatus{status})
	for _, e := range status.Errors {
		fmt.Fprintf(out, "  - %s\n", e)
	}
	return nil
}
