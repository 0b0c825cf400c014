package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosstab/crosstab-go/publish"
)

func newPublishCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <dashboard.yaml | bundle> <dir | s3://bucket/prefix>",
		Short: "Publish a compiled site to a directory or an S3 bucket",
		Long: `Publish writes the static site files of a bundle to a target. Assets are
content addressed, so assets already present at the target are skipped and
the bundle document is written last.

S3 access is configured with the s3.* keys of crosstab.yaml or the
CROSSTAB_S3_* environment variables (region, endpoint, force-path-style,
access-key, secret-key, session-token); without keys the default AWS
credential chain is used.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := a.loadOrCompile(cmd, args[0])
			if err != nil {
				return err
			}
			target, err := publish.NewTarget(cmd.Context(), args[1], a.s3Config())
			if err != nil {
				return err
			}
			result, err := publish.Publish(cmd.Context(), bundle, target, a.log)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "published %s: %d written, %d unchanged\n",
				target, len(result.Written), len(result.Skipped))
			return err
		},
	}
	cmd.Flags().String("cache", "", "directory for bundles pulled from a registry")
	return cmd
}
