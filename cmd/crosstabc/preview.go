package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crosstab/crosstab-go/pipeline"
	"github.com/crosstab/crosstab-go/runtime"
	"github.com/crosstab/crosstab-go/unified"
)

func newPreviewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <dashboard.yaml | bundle>",
		Short: "Run the dashboard runtime headless and print chart data",
		Long: `Preview drives the runtime without a browser: it starts from the default
state, applies each --set in order and prints what every visible chart would
draw. Declarations (.yaml, .yml) are compiled first; anything else is
resolved as a bundle: a site directory, a bundle file or an OCI reference.

Values are JSON, with bare words taken as strings:
  crosstabc preview dashboard.yaml --set year=2021 --set 'regions=["A","B"]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := a.loadOrCompile(cmd, args[0])
			if err != nil {
				return err
			}
			prog, err := runtime.Load(bundle)
			if err != nil {
				return err
			}

			latest := make(map[string]pipeline.SeriesData)
			m := runtime.NewMachine(prog,
				runtime.WithLogger(a.log),
				runtime.WithRenderer("", runtime.RenderFunc(func(chartID string, data pipeline.SeriesData) {
					latest[chartID] = data
				})),
			)
			if err := m.Start(); err != nil {
				return err
			}
			assignments, _ := cmd.Flags().GetStringArray("set")
			for _, assignment := range assignments {
				id, value, err := parseAssignment(assignment)
				if err != nil {
					return err
				}
				if err := m.SetInput(id, value); err != nil {
					return fmt.Errorf("--set %s: %w", assignment, err)
				}
			}

			var visible []pipeline.SeriesData
			for _, id := range prog.ChartIDs() {
				if data, ok := latest[id]; ok && m.Visible(id) {
					visible = append(visible, data)
				}
			}
			if strings.EqualFold(a.v.GetString("format"), "json") {
				payload, err := json.MarshalIndent(visible, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
				return err
			}
			return printSeries(cmd.OutOrStdout(), m.Title(), visible)
		},
	}
	cmd.Flags().StringArray("set", nil, "input assignment id=value, applied in order")
	cmd.Flags().String("format", "text", "output format: text or json")
	cmd.Flags().String("cache", "", "directory for bundles pulled from a registry")
	return cmd
}

func (a *app) loadOrCompile(cmd *cobra.Command, location string) (*unified.Bundle, error) {
	lower := strings.ToLower(location)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return a.compiler().CompileFile(cmd.Context(), location)
	}
	return unified.Resolve(cmd.Context(), location, unified.ResolveOptions{
		CacheDir: a.v.GetString("cache"),
	})
}

func parseAssignment(raw string) (string, interface{}, error) {
	id, text, ok := strings.Cut(raw, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", nil, fmt.Errorf("invalid assignment %q, want id=value", raw)
	}
	var value interface{}
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		value = text
	}
	return id, value, nil
}

func printSeries(w io.Writer, title string, charts []pipeline.SeriesData) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if title != "" {
		fmt.Fprintf(tw, "# %s\n", title)
	}
	for _, chart := range charts {
		heading := chart.ChartID
		if chart.Title != "" {
			heading += ": " + chart.Title
		}
		fmt.Fprintf(tw, "\n%s\n", heading)
		if chart.Empty() {
			fmt.Fprintln(tw, "  (no data)")
			continue
		}
		for _, s := range chart.Series {
			for _, p := range s.Points {
				fmt.Fprintf(tw, "  %s\t%s\t%g\t%d\n", s.Name, p.Label, p.Value, p.Count)
			}
		}
	}
	return tw.Flush()
}
