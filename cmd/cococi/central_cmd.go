package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/infinilabs/cococi/pkg/central"
	cocoerr "github.com/infinilabs/cococi/pkg/errors"
	transport "github.com/infinilabs/cococi/pkg/http"
	"github.com/infinilabs/cococi/pkg/publish"
)

type centralOpts struct {
	*rootOpts
}

func newCentral(parent *rootOpts) *centralOpts {
	return &centralOpts{rootOpts: parent}
}

func (opts *centralOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "central",
		Short: "Publish to Maven Central and manage deployments there.",
	}
	cmd.AddCommand(
		newCentralPublish(opts).Command(),
		newCentralStatus(opts).Command(),
		newCentralList(opts).Command(),
		newCentralDrop(opts).Command(),
		newCentralCleanFailed(opts).Command(),
		newCentralCleanAll(opts).Command(),
	)
	return cmd
}

var errNoCredentials = errors.New("OSSRH credentials are not set")

var errorNoCredentials = &cocoerr.Error{
	Type: cocoerr.User,
	Help: `Central needs a portal user token to accept requests. Generate one at
https://central.sonatype.com/account and supply it with

    export OSSRH_USERNAME=<token username>
    export OSSRH_PASSWORD=<token password>

or the --ossrh-username and --ossrh-password flags.
`,
	Err: errNoCredentials,
}

// publisher returns a Publisher configured from the loaded config.
func (opts *centralOpts) publisher() (*publish.Publisher, error) {
	cfg := opts.Config
	if cfg.OSSRHUsername == "" || cfg.OSSRHPassword == "" {
		return nil, errorNoCredentials
	}
	return publish.New(publish.Config{
		BaseURL:              cfg.CentralURL,
		PollInterval:         cfg.PollInterval,
		Timeout:              cfg.Timeout,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
	}, opts.httpClient(), transport.UserToken{Username: cfg.OSSRHUsername, Password: cfg.OSSRHPassword}, opts.logger), nil
}

func (opts *centralOpts) client() *central.Client {
	cfg := opts.Config
	return central.New(opts.httpClient(), cfg.CentralURL, transport.UserToken{Username: cfg.OSSRHUsername, Password: cfg.OSSRHPassword})
}

func printDeployments(out io.Writer, deployments []central.DeploymentStatus) {
	w := newTabwriter(out)
	fmt.Fprintf(w, "DEPLOYMENT\tNAME\tSTATE\tERRORS\n")
	for _, d := range deployments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", d.ID, d.Name, d.State, len(d.Errors))
	}
	w.Flush()
}

func printSweep(out io.Writer, res publish.SweepResult) {
	if len(res.Selected) == 0 {
		fmt.Fprintln(out, "No deployments to drop.")
		return
	}
	if !res.Confirmed {
		fmt.Fprintln(out, "Nothing dropped.")
		return
	}
	w := newTabwriter(out)
	fmt.Fprintf(w, "DEPLOYMENT\tRESULT\n")
	for _, id := range res.Dropped {
		fmt.Fprintf(w, "%s\tdropped\n", id)
	}
	for _, e := range res.Failed {
		fmt.Fprintf(w, "%s\t%s\n", e.ID, e.Err)
	}
	w.Flush()
}

func sweepError(res publish.SweepResult) error {
	if len(res.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d deployments could not be dropped", len(res.Failed), len(res.Selected))
}
