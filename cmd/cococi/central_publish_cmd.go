package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cocoerr "github.com/infinilabs/cococi/pkg/errors"
	"github.com/infinilabs/cococi/pkg/publish"
)

type centralPublishOpts struct {
	*centralOpts
}

func newCentralPublish(parent *centralOpts) *centralPublishOpts {
	return &centralPublishOpts{centralOpts: parent}
}

func (opts *centralPublishOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [bundle]",
		Short: "Upload a bundle and wait until Central has published it.",
		Long: `Upload a bundle for automatic publishing, then check its status until
Central reports it PUBLISHED. A deployment that fails validation, or
is not published within --timeout, is dropped and the command exits
non-zero.`,
		Example: makeExample(
			"cococi central publish target/central-bundle.zip",
			"ZIP_FILE_PATH=target/central-bundle.zip cococi central publish --timeout 20m",
		),
		RunE: opts.RunE,
	}
	return cmd
}

func (opts *centralPublishOpts) RunE(cmd *cobra.Command, args []string) error {
	bundle := opts.Config.Bundle
	switch len(args) {
	case 0:
	case 1:
		bundle = args[0]
	default:
		return newUsageError("expected at most one bundle path")
	}
	if bundle == "" {
		return newUsageError("no bundle given; pass its path, or set --bundle or ZIP_FILE_PATH")
	}
	if _, err := os.Stat(bundle); err != nil {
		return &cocoerr.Error{
			Type: cocoerr.User,
			Help: "The bundle is the zip produced by the release build; check the path\nand that the build got as far as packaging it.\n",
			Err:  err,
		}
	}

	p, err := opts.publisher()
	if err != nil {
		return err
	}
	out := p.Run(context.Background(), bundle)
	opts.exitCode = out.ExitCode()

	w := cmd.OutOrStdout()
	switch {
	case out.Phase == publish.Published:
		fmt.Fprintf(w, "Deployment %s published (%d status checks).\n", out.ID, out.Polls)
	case out.ID == "":
		fmt.Fprintf(w, "Upload failed.\n")
	default:
		fmt.Fprintf(w, "Deployment %s not published: %s.\n", out.ID, out.Phase)
		for _, e := range out.Status.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		if out.Dropped && out.Cleanup == nil {
			fmt.Fprintf(w, "Deployment %s dropped.\n", out.ID)
		}
	}
	if out.Cleanup != nil {
		fmt.Fprintf(w, "Warning: %s; drop it by hand with `cococi central drop %s`.\n", out.Cleanup, out.ID)
	}
	return out.Err
}
