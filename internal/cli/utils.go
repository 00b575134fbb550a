// Package cli provides output helpers for the pagesplit command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/hyperjump/pagesplit/internal/models"
)

// OutputFormat is the format for run output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// Progress returns a ProgressFunc that prints each line to w.
func Progress(w io.Writer) models.ProgressFunc {
	return func(msg string) {
		fmt.Fprintln(w, msg)
	}
}

// StdoutProgress prints progress lines to stdout.
func StdoutProgress(msg string) {
	fmt.Fprintln(os.Stdout, msg)
}

// WriteRunResult writes a run summary to w in the given format.
func WriteRunResult(w io.Writer, run *models.RunResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, run)
	}
	fmt.Fprintf(w, "\nRun %s: %d page(s), %d output file(s)", run.ID, run.PageCount, len(run.Outputs))
	if run.DroppedPages > 0 {
		fmt.Fprintf(w, ", %d leading page(s) skipped", run.DroppedPages)
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGES\tIDENTIFIER\tNAME\tFILE")
	for _, o := range run.Outputs {
		id, name := o.Segment.Identifier, o.Segment.Name
		if !o.Segment.Matched() {
			id, name = "-", "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", pageRange(o.Segment), id, Truncate(name, 40), o.Location())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if run.BundleURL != "" {
		fmt.Fprintf(w, "Bundle: %s\n", run.BundleURL)
	} else if run.BundlePath != "" {
		fmt.Fprintf(w, "Bundle: %s\n", run.BundlePath)
	}
	return nil
}

// WriteRuns writes a list of runs, newest first, to w.
func WriteRuns(w io.Writer, runs []*models.RunResult, format OutputFormat) error {
	if format == OutputJSON {
		if runs == nil {
			runs = []*models.RunResult{}
		}
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPAGES\tINPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.PageCount, r.InputPath)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// pageRange renders a segment as 1-based inclusive pages, e.g. "3-5" or "7".
func pageRange(s models.Segment) string {
	if s.StartPage == s.EndPage {
		return fmt.Sprintf("%d", s.StartPage+1)
	}
	return fmt.Sprintf("%d-%d", s.StartPage+1, s.EndPage+1)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
