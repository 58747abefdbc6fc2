package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	cocoerr "github.com/infinilabs/cococi/pkg/errors"
	"github.com/infinilabs/cococi/pkg/http/httperror"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return execute(newRoot(stderr), args, stdin, stdout, stderr)
}

// execute runs the command line args and returns the exit code.
func execute(root *rootOpts, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := root.Command()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	cmd, err := rootCmd.ExecuteC()
	root.pushMetrics()
	if err == nil {
		return root.exitCode
	}

	cmd.PrintErrln("Error:", err.Error())
	if _, ok := err.(usageError); ok {
		cmd.PrintErrln("")
		cmd.PrintErrln(cmd.UsageString())
	} else if help := helpFor(err); help != "" {
		cmd.PrintErrln("")
		cmd.PrintErr(help)
	}
	if root.exitCode != 0 {
		return root.exitCode
	}
	return 1
}

// helpFor returns the help text carried by err, falling back to a
// generic message when a remote service answered unexpectedly.
func helpFor(err error) string {
	if help := cocoerr.Help(err); help != "" {
		return help
	}
	var apiErr *httperror.APIError
	if !errors.As(err, &apiErr) {
		return ""
	}
	if apiErr.IsUnavailable() {
		return fmt.Sprintf("The remote service is unavailable (HTTP %d). Try again later.\n", apiErr.StatusCode)
	}
	return cocoerr.CoverAllError(err).Help
}
