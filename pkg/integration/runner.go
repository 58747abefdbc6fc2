// Package integration drives the DSL-based integration suite: for
// each scenario it stops the server, restores the index snapshot,
// starts the server again and runs loadgen against it.
package integration

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// Restorer puts the search cluster back into its known starting
// state.
type Restorer interface {
	Restore(ctx context.Context) error
}

type Options struct {
	Root string
	// Loadgen, if set, is the loadgen binary to use.
	Loadgen string
	// Filter selects scenarios by glob over their path under tests/.
	Filter string
	// Report, if set, is where a YAML report of the run is written.
	Report string
	// ServerLog is dumped after a failure when running under GitHub
	// Actions.
	ServerLog string
}

func DefaultServerLog() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "es_install_dir", "easysearch.log")
}

type Runner struct {
	opts     Options
	exec     Executor
	restorer Restorer
	logger   log.Logger
	// logs receives the server log dump.
	logs io.Writer

	lookPath func(string) (string, error)
	getenv   func(string) string
	now      func() time.Time
}

func NewRunner(opts Options, exec Executor, restorer Restorer, logger log.Logger, logs io.Writer) *Runner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if logs == nil {
		logs = os.Stdout
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	return &Runner{
		opts:     opts,
		exec:     exec,
		restorer: restorer,
		logger:   log.With(logger, "component", "integration"),
		logs:     logs,
		getenv:   os.Getenv,
		now:      time.Now,
	}
}

// Run runs every scenario in turn, stopping at the first failure. The
// report covers the scenarios run so far and is returned either way.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{Started: r.now().UTC().Format(time.RFC3339)}

	root, err := filepath.Abs(r.opts.Root)
	if err != nil {
		return report, errors.Wrap(err, "resolving project root")
	}
	report.Root = root
	if err := CheckRoot(root); err != nil {
		return report, err
	}

	loadgen, err := ResolveLoadgen(r.opts.Loadgen, root, r.lookPath)
	if err != nil {
		return report, err
	}
	report.Loadgen = loadgen
	r.logger.Log("info", "using loadgen", "binary", loadgen)

	scenarios, err := Discover(filepath.Join(root, TestsDir), r.opts.Filter)
	if err != nil {
		return report, err
	}
	if len(scenarios) == 0 {
		r.logger.Log("info", "no scenarios found", "dir", filepath.Join(root, TestsDir), "filter", r.opts.Filter)
		return report, r.writeReport(report)
	}
	r.logger.Log("info", "found scenarios", "count", len(scenarios))

	for i, path := range scenarios {
		name := filepath.Base(path)
		r.logger.Log("info", "running scenario", "n", fmt.Sprintf("%d/%d", i+1, len(scenarios)), "scenario", name)

		start := r.now()
		err := r.runScenario(ctx, root, loadgen, path)
		s := ScenarioReport{Name: name, Path: path, Duration: r.now().Sub(start).Round(time.Millisecond).String()}
		if err != nil {
			s.Result, s.Error = Failed, err.Error()
			report.add(s)
			for _, skipped := range scenarios[i+1:] {
				report.add(ScenarioReport{Name: filepath.Base(skipped), Path: skipped, Result: Skipped})
			}
			r.logger.Log("err", err, "scenario", name, "result", Failed)
			if werr := r.writeReport(report); werr != nil {
				r.logger.Log("warning", "could not write report", "err", werr)
			}
			return report, errors.Wrapf(err, "scenario %s", name)
		}
		s.Result = Passed
		report.add(s)
		r.logger.Log("info", "scenario passed", "scenario", name)
	}

	r.logger.Log("info", "all scenarios passed", "count", len(scenarios))
	return report, r.writeReport(report)
}

// runScenario takes the server through stop, restore, start and the
// loadgen run. The server is stopped again however that goes.
func (r *Runner) runScenario(ctx context.Context, root, loadgen, path string) error {
	stop := Command{Dir: root, Name: "bash", Args: []string{"./" + StopScript}}
	defer func() {
		if serr := r.exec.Run(context.WithoutCancel(ctx), stop); serr != nil {
			r.logger.Log("warning", "stopping server after scenario", "err", serr)
		}
	}()

	// Nothing may be running yet.
	if serr := r.exec.Run(ctx, stop); serr != nil {
		r.logger.Log("info", "stop before scenario failed, ignoring", "err", serr)
	}

	if err := r.restorer.Restore(ctx); err != nil {
		r.dumpServerLog()
		return errors.Wrap(err, "restoring snapshot")
	}

	steps := []Command{
		{Dir: root, Name: "bash", Args: []string{"./" + StartScript}},
		{Dir: root, Name: loadgen, Args: []string{
			"-config", filepath.Join(root, TestsDir, LoadgenConfig),
			"-run", path,
			"-debug",
		}},
	}
	for _, c := range steps {
		if err := r.exec.Run(ctx, c); err != nil {
			r.dumpServerLog()
			return err
		}
	}
	return nil
}

func (r *Runner) dumpServerLog() {
	if r.getenv("GITHUB_ACTIONS") != "true" || r.opts.ServerLog == "" {
		return
	}
	contents, err := ioutil.ReadFile(r.opts.ServerLog)
	if err != nil {
		return
	}
	fmt.Fprintf(r.logs, "--- %s ---\n", r.opts.ServerLog)
	r.logs.Write(contents)
	fmt.Fprintf(r.logs, "--- end of %s ---\n", r.opts.ServerLog)
}

func (r *Runner) writeReport(report Report) error {
	if r.opts.Report == "" {
		return nil
	}
	return report.Write(r.opts.Report)
}
