package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/crosstab/crosstab-go/unified"
)

func newCompileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <dashboard.yaml>",
		Short: "Compile a declaration into a bundle",
		Long: `Compile a dashboard declaration and its datasets into a bundle.

With --out pointing at a directory the bundle is written as a static site:
bundle.json plus one assets/<id>.json per dataset. With --out ending in
.json the bundle is written as a single file with assets inlined.

Examples:
  # Write a static site
  crosstabc compile dashboard.yaml --out ./dist

  # Write a single bundle file
  crosstabc compile dashboard.yaml --out ./dashboard.bundle.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := a.v.GetString("out")
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			bundle, err := a.compiler().CompileFile(cmd.Context(), args[0])
			if err != nil {
				if reportErr := writeReports(cmd.ErrOrStderr(), "text", reportsFromError(args[0], err)); reportErr != nil {
					return reportErr
				}
				return fmt.Errorf("compiling %s failed", args[0])
			}
			if err := writeBundle(bundle, out); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"bundle": bundle.ID, "out": out}).Info("wrote bundle")
			return writeReports(cmd.ErrOrStderr(), "text", reportsFromDiagnostics(args[0], bundle.Diagnostics))
		},
	}
	cmd.Flags().StringP("out", "o", "", "output directory, or a .json file for a single bundle file")
	return cmd
}

func writeBundle(bundle *unified.Bundle, out string) error {
	if strings.EqualFold(filepath.Ext(out), ".json") {
		return unified.SaveBundle(bundle, out)
	}
	return unified.WriteSite(out, bundle)
}
