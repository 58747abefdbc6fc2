package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/infinilabs/cococi/pkg/integration"
)

type integrationOpts struct {
	*rootOpts
}

func newIntegration(parent *rootOpts) *integrationOpts {
	return &integrationOpts{rootOpts: parent}
}

func (opts *integrationOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration",
		Short: "Run the DSL integration scenarios.",
	}
	cmd.AddCommand(newIntegrationRun(opts).Command())
	return cmd
}

type integrationRunOpts struct {
	*integrationOpts
}

func newIntegrationRun(parent *integrationOpts) *integrationRunOpts {
	return &integrationRunOpts{integrationOpts: parent}
}

func (opts *integrationRunOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every scenario under tests/, restoring the snapshot before each.",
		Long: `For each tests/**/*.dsl scenario, in order: stop the server, restore
the index snapshot, start the server and run loadgen on the scenario.
The server is stopped again afterwards. The first failing scenario
ends the run.`,
		Example: makeExample(
			"cococi integration run",
			"cococi integration run --filter 'search/*' --report integration-report.yml",
		),
		RunE: opts.RunE,
	}
	return cmd
}

func (opts *integrationRunOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	cfg := opts.Config
	exec := opts.executor
	if exec == nil {
		exec = integration.ProcessExecutor{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
	}
	snap := &snapshotOpts{rootOpts: opts.rootOpts, noProgress: true}

	r := integration.NewRunner(integration.Options{
		Root:      cfg.Root,
		Loadgen:   cfg.Loadgen,
		Filter:    cfg.Filter,
		Report:    cfg.Report,
		ServerLog: cfg.ServerLog,
	}, exec, snap.importer(cmd), opts.logger, cmd.OutOrStdout())

	report, err := r.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "All %d scenarios passed.\n", report.Passed)
	return nil
}
