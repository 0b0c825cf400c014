package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crosstab/crosstab-go/ast"
	"github.com/crosstab/crosstab-go/condition"
)

func newExplainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <formula>",
		Short: "Show how a show_when formula is parsed",
		Long: `Explain parses a formula and prints its canonical form, the inputs it
reads, the expr-lang source shipped in bundles, and the lowered tree.

Examples:
  crosstabc explain '~ year == 2021 & region %in% c("A", "B")'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := ast.Parse(args[0])
			if err != nil {
				return err
			}
			variables := ast.Variables(e)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Formula:   %s\n", e.String())
			fmt.Fprintf(out, "Variables: %s\n", strings.Join(variables, ", "))
			fmt.Fprintf(out, "Expr:      %s\n", condition.ExprSource(e))
			fmt.Fprintln(out, "Tree:")
			ast.NewDumper(out).Dump(e)
			a.log.WithField("variables", len(variables)).Debug("formula explained")
			return nil
		},
	}
}
