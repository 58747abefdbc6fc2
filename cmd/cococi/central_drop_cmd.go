package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/infinilabs/cococi/pkg/central"
)

type centralDropOpts struct {
	*centralOpts
}

func newCentralDrop(parent *centralOpts) *centralDropOpts {
	return &centralDropOpts{centralOpts: parent}
}

func (opts *centralDropOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "drop <deployment-id>...",
		Short:   "Drop deployments by ID.",
		Example: makeExample("cococi central drop 28570f16-da32-4c14-bd2e-c1acc0782365"),
		RunE:    opts.RunE,
	}
	return cmd
}

func (opts *centralDropOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return newUsageError("expected at least one deployment ID")
	}
	p, err := opts.publisher()
	if err != nil {
		return err
	}

	failed := 0
	for _, id := range args {
		if err := p.Drop(context.Background(), central.DeploymentID(id)); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s.\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deployments could not be dropped", failed, len(args))
	}
	return nil
}
