package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/infinilabs/cococi/pkg/central"
)

type centralCleanFailedOpts struct {
	*centralOpts
}

func newCentralCleanFailed(parent *centralOpts) *centralCleanFailedOpts {
	return &centralCleanFailedOpts{centralOpts: parent}
}

func (opts *centralCleanFailedOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clean-failed",
		Short:   "Drop every deployment in the FAILED state.",
		Example: makeExample("cococi central clean-failed"),
		RunE:    opts.RunE,
	}
	return cmd
}

func (opts *centralCleanFailedOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	p, err := opts.publisher()
	if err != nil {
		return err
	}
	res, err := p.CleanFailed(context.Background())
	if err != nil {
		return err
	}
	printSweep(cmd.OutOrStdout(), res)
	return sweepError(res)
}

type centralCleanAllOpts struct {
	*centralOpts
	yes bool
}

func newCentralCleanAll(parent *centralOpts) *centralCleanAllOpts {
	return &centralCleanAllOpts{centralOpts: parent}
}

func (opts *centralCleanAllOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean-all",
		Short: "Drop every deployment that is not yet published.",
		Long: `Drop every deployment that is not yet published, including ones still
validating or publishing. The deployments are listed and must be
confirmed first, unless --yes is given.`,
		Example: makeExample(
			"cococi central clean-all",
			"cococi central clean-all --yes",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "drop without asking for confirmation")
	return cmd
}

func (opts *centralCleanAllOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	p, err := opts.publisher()
	if err != nil {
		return err
	}

	confirm := func(selected []central.DeploymentStatus) bool {
		out := cmd.OutOrStdout()
		printDeployments(out, selected)
		fmt.Fprintf(out, "Drop these %d deployments? Type 'yes' to confirm: ", len(selected))
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		return strings.ToLower(strings.TrimSpace(answer)) == "yes"
	}
	if opts.yes {
		confirm = nil
	}

	res, err := p.CleanAll(context.Background(), confirm)
	if err != nil {
		return err
	}
	printSweep(cmd.OutOrStdout(), res)
	return sweepError(res)
}
