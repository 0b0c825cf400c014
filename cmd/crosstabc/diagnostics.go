package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/crosstab/crosstab-go/compiler"
	"github.com/crosstab/crosstab-go/unified"
)

var positionPattern = regexp.MustCompile(`(\d+):(\d+): `)

// report is one line of check output.
type report struct {
	File     string `json:"file"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Subject  string `json:"subject,omitempty"`
	Message  string `json:"message"`
}

func reportsFromError(file string, err error) []report {
	var errs compiler.Errors
	if !errors.As(err, &errs) {
		errs = compiler.Errors{err}
	}
	out := make([]report, 0, len(errs))
	for _, e := range errs {
		line, col := positionFromError(e)
		out = append(out, report{
			File:     file,
			Line:     line,
			Column:   col,
			Severity: "error",
			Code:     "compile",
			Message:  e.Error(),
		})
	}
	return out
}

func positionFromError(err error) (int, int) {
	matches := positionPattern.FindStringSubmatch(err.Error())
	if len(matches) < 3 {
		return 0, 0
	}
	line, _ := strconv.Atoi(matches[1])
	col, _ := strconv.Atoi(matches[2])
	return line, col
}

func reportsFromDiagnostics(file string, diags []unified.Diagnostic) []report {
	out := make([]report, 0, len(diags))
	for _, d := range diags {
		out = append(out, report{
			File:     file,
			Severity: d.Severity,
			Code:     d.Code,
			Subject:  d.Subject,
			Message:  d.Message,
		})
	}
	return out
}

func writeReports(w io.Writer, format string, reports []report) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		payload, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	case "", "text":
		sorted := append([]report(nil), reports...)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].File != sorted[j].File {
				return sorted[i].File < sorted[j].File
			}
			return sorted[i].Line < sorted[j].Line
		})
		for _, r := range sorted {
			location := r.File
			if r.Line > 0 {
				location = fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Column)
			}
			if r.Subject != "" {
				location += " " + r.Subject
			}
			if _, err := fmt.Fprintf(w, "%s: %s [%s] %s\n", location, r.Severity, r.Code, r.Message); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}
