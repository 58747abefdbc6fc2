package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	transport "github.com/infinilabs/cococi/pkg/http"
	"github.com/infinilabs/cococi/pkg/search"
	"github.com/infinilabs/cococi/pkg/snapshot"
)

type snapshotOpts struct {
	*rootOpts
	noProgress bool
}

func newSnapshot(parent *rootOpts) *snapshotOpts {
	return &snapshotOpts{rootOpts: parent}
}

func (opts *snapshotOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save indices to disk, or restore them from there.",
	}
	cmd.PersistentFlags().BoolVar(&opts.noProgress, "no-progress", false, "don't draw a progress bar")
	cmd.AddCommand(
		newSnapshotExport(opts).Command(),
		newSnapshotImport(opts).Command(),
	)
	return cmd
}

func (opts *snapshotOpts) searchClient() *search.Client {
	cfg := opts.Config
	hc := search.NewHTTPClient(cfg.ESInsecure, cfg.RequestTimeout)
	if opts.transport != nil {
		hc.Transport = opts.transport
	}
	c := search.New(hc, cfg.ESEndpoint, transport.BasicAuth{Username: cfg.ESUsername, Password: cfg.ESPassword})
	return c.WithBulkLimit(&transport.RateLimiter{RPS: cfg.BulkRPS, Burst: cfg.BulkBurst, Logger: opts.logger})
}

func (opts *snapshotOpts) progress(cmd *cobra.Command) io.Writer {
	if opts.noProgress {
		return nil
	}
	return cmd.ErrOrStderr()
}

func (opts *snapshotOpts) importer(cmd *cobra.Command) *snapshot.Importer {
	cfg := opts.Config
	return snapshot.NewImporter(opts.searchClient(), snapshot.ImportOptions{
		Dir:            cfg.SnapshotDir,
		CleanupPattern: cfg.CleanupPattern,
		Include:        cfg.IncludeIndex,
		BatchSize:      cfg.BatchSize,
		HealthAttempts: cfg.HealthAttempts,
		HealthInterval: cfg.HealthInterval,
	}, opts.logger, opts.progress(cmd))
}

func printSummaries(out io.Writer, summaries []snapshot.IndexSummary) (failed int) {
	w := newTabwriter(out)
	fmt.Fprintf(w, "INDEX\tDOCUMENTS\tSCHEMA\tERROR\n")
	for _, s := range summaries {
		var errText string
		if s.Err != nil {
			errText = s.Err.Error()
			failed++
		}
		fmt.Fprintf(w, "%s\t%d\t%t\t%s\n", s.Index, s.Documents, s.Schema, errText)
	}
	w.Flush()
	return failed
}

type snapshotExportOpts struct {
	*snapshotOpts
}

func newSnapshotExport(parent *snapshotOpts) *snapshotExportOpts {
	return &snapshotExportOpts{snapshotOpts: parent}
}

func (opts *snapshotExportOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the settings, mappings and documents of matching indices to disk.",
		Example: makeExample(
			"cococi snapshot export --es-endpoint https://127.0.0.1:9200 --snapshot-dir tests/snapshot/repo",
		),
		RunE: opts.RunE,
	}
	return cmd
}

func (opts *snapshotExportOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	cfg := opts.Config
	e := snapshot.NewExporter(opts.searchClient(), snapshot.ExportOptions{
		Dir:        cfg.SnapshotDir,
		Pattern:    cfg.IndexPattern,
		ScrollSize: cfg.ScrollSize,
	}, opts.logger, opts.progress(cmd))

	summaries, err := e.Export(cmd.Context())
	if err != nil {
		return err
	}
	// per-index failures are reported, not fatal
	printSummaries(cmd.OutOrStdout(), summaries)
	return nil
}

type snapshotImportOpts struct {
	*snapshotOpts
}

func newSnapshotImport(parent *snapshotOpts) *snapshotImportOpts {
	return &snapshotImportOpts{snapshotOpts: parent}
}

func (opts *snapshotImportOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace indices with those saved on disk.",
		Long: `Wait for the cluster to come up, delete the indices matching
--cleanup-pattern, then create each saved index with its settings
(replicas forced to 0) and bulk-load its documents.`,
		Example: makeExample("cococi snapshot import --snapshot-dir tests/snapshot/repo"),
		RunE:    opts.RunE,
	}
	return cmd
}

func (opts *snapshotImportOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	summaries, err := opts.importer(cmd).Import(cmd.Context())
	printSummaries(cmd.OutOrStdout(), summaries)
	return err
}
