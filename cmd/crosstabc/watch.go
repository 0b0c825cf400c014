package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/crosstab/crosstab-go/dashboard"
	"github.com/crosstab/crosstab-go/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dashboard.yaml>",
		Short: "Recompile whenever the declaration or its local datasets change",
		Long: `Watch compiles once, then recompiles into --out every time the declaration
file or one of its local dataset files changes. Compile errors are reported
and watching continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := a.v.GetString("out")
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			file := args[0]
			rebuild := func() {
				bundle, err := a.compiler().CompileFile(cmd.Context(), file)
				if err != nil {
					_ = writeReports(cmd.ErrOrStderr(), "text", reportsFromError(file, err))
					return
				}
				if err := writeBundle(bundle, out); err != nil {
					a.log.WithError(err).Error("writing bundle")
					return
				}
				_ = writeReports(cmd.ErrOrStderr(), "text", reportsFromDiagnostics(file, bundle.Diagnostics))
				a.log.WithField("bundle", bundle.ID).Info("rebuilt")
			}

			paths, err := watchedPaths(file)
			if err != nil {
				return err
			}
			w, err := watch.New(watch.Config{
				Paths: paths,
				Quiet: a.v.GetDuration("quiet"),
				Log:   a.log,
			})
			if err != nil {
				return err
			}

			rebuild()
			a.log.WithField("dirs", w.Dirs()).Info("watching for changes")
			err = w.Run(cmd.Context(), func(changed []string) error {
				a.log.WithFields(logrus.Fields{"changed": changed}).Info("change detected")
				rebuild()
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringP("out", "o", "", "output directory, or a .json file for a single bundle file")
	cmd.Flags().Duration("quiet", 0, "how long changes must settle before recompiling (default 200ms)")
	return cmd
}

// watchedPaths is the declaration file plus its existing local dataset
// files.
func watchedPaths(file string) ([]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading dashboard: %w", err)
	}
	d, err := dashboard.Parse(data, filepath.Ext(file))
	if err != nil {
		return nil, err
	}
	paths := []string{file}
	for _, name := range d.DatasetNames() {
		spec, ok := d.Sources[name]
		if !ok {
			continue
		}
		if p, ok := spec.LocalPath(filepath.Dir(file)); ok {
			if _, err := os.Stat(p); err == nil {
				paths = append(paths, p)
			}
		}
	}
	return paths, nil
}
