package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/crosstab/crosstab-go/unified"
)

func newPushCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push <dashboard.yaml | bundle> <registry/repository:tag>",
		Short: "Push a bundle to an OCI registry",
		Long: `Push compiles a declaration, or loads an existing bundle, and pushes it to
an OCI registry as an image with two layers: the dataset assets and the
bundle document. Registry credentials come from the docker keychain.

Examples:
  crosstabc push dashboard.yaml ghcr.io/acme/dashboards/sales:v1
  crosstabc push ./dist localhost:5000/sales:latest`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := a.loadOrCompile(cmd, args[0])
			if err != nil {
				return err
			}
			digest, err := unified.NewOCIBundlePusher(bundle).Push(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"ref": args[1], "digest": digest}).Info("pushed bundle")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s@%s\n", args[1], digest)
			return err
		},
	}
	cmd.Flags().String("cache", "", "directory for bundles pulled from a registry")
	return cmd
}

func newPullCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull <registry/repository:tag>",
		Short: "Pull a bundle from an OCI registry into a site directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := a.v.GetString("out")
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			bundle, err := unified.Resolve(cmd.Context(), args[0], unified.ResolveOptions{
				Checksum: a.v.GetString("checksum"),
			})
			if err != nil {
				return err
			}
			if err := writeBundle(bundle, out); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"ref": args[0], "bundle": bundle.ID, "out": out}).Info("pulled bundle")
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "output directory, or a .json file for a single bundle file")
	cmd.Flags().String("checksum", "", "expected sha256:<hex> of the bundle document")
	return cmd
}
