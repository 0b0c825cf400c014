package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <dashboard.yaml>...",
		Short: "Compile and lint declarations without writing output",
		Long: `Check compiles each declaration and reports every error and lint finding.

Useful for CI: the exit code is non-zero when any declaration fails to
compile, or when --fail-on-warn is set and lint reports warnings.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := a.v.GetString("format")
			failOnWarn := a.v.GetBool("fail-on-warn")

			var reports []report
			failed, warned := 0, 0
			for _, file := range args {
				bundle, err := a.compiler().CompileFile(cmd.Context(), file)
				if err != nil {
					failed++
					reports = append(reports, reportsFromError(file, err)...)
					continue
				}
				for _, d := range bundle.Diagnostics {
					if d.Severity == "warning" {
						warned++
					}
				}
				reports = append(reports, reportsFromDiagnostics(file, bundle.Diagnostics)...)
			}

			if err := writeReports(cmd.OutOrStdout(), format, reports); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d declarations failed to compile", failed, len(args))
			}
			if failOnWarn && warned > 0 {
				return fmt.Errorf("%d warnings", warned)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "text", "output format: text or json")
	cmd.Flags().Bool("fail-on-warn", false, "exit non-zero when lint reports warnings")
	return cmd
}
