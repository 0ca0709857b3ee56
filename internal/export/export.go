// Package export renders ranking results as a terminal table, CSV, JSON or
// an XLSX workbook.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/ranking"
)

// Format selects an output encoding.
type Format string

// Output formats.
const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat validates a format name. The empty string selects table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	}
	return "", eris.Errorf("export: unknown format %q (want table, csv, json or xlsx)", s)
}

// Report is one client's ranked recommendations.
type Report struct {
	Client  string                    `json:"client"`
	Signal  string                    `json:"signal,omitempty"`
	Matches []model.RankedMatch       `json:"matches"`
	Skipped []ranking.SkippedOffering `json:"skipped"`
}

// NewReport builds a Report from a ranking result, never leaving nil slices.
func NewReport(client, signal string, res ranking.Result) Report {
	r := Report{Client: client, Signal: signal, Matches: res.Matches, Skipped: res.Skipped}
	if r.Matches == nil {
		r.Matches = []model.RankedMatch{}
	}
	if r.Skipped == nil {
		r.Skipped = []ranking.SkippedOffering{}
	}
	return r
}

// Write renders the report to w.
func Write(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatTable, "":
		return writeTable(w, r)
	case FormatCSV:
		return writeCSV(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(r), "export: encode json")
	case FormatXLSX:
		f, err := buildWorkbook(r)
		if err != nil {
			return err
		}
		return eris.Wrap(f.Write(w), "export: write xlsx")
	}
	return eris.Errorf("export: unknown format %q", format)
}

// WriteFile renders the report to path, creating or truncating it.
func WriteFile(path string, format Format, r Report) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create output")
	}
	if err := Write(f, format, r); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "export: close output")
}

func writeTable(out io.Writer, r Report) error {
	if r.Client != "" {
		fmt.Fprintf(out, "Recommendations for %s", r.Client)
		if r.Signal != "" {
			fmt.Fprintf(out, " (signal: %s)", r.Signal)
		}
		fmt.Fprintln(out)
	}
	if len(r.Matches) == 0 {
		fmt.Fprintln(out, "No matching offerings.")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tSCORE\tID\tOFFERING\tEVIDENCE")
		for i, m := range r.Matches {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", i+1, m.OverallScore, m.ID, m.Name, evidenceSummary(m))
		}
		if err := w.Flush(); err != nil {
			return eris.Wrap(err, "export: flush table")
		}
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(out, "skipped %s: %s\n", displayName(s), s.Reason)
	}
	return nil
}

var csvHeader = []string{"rank", "offering_id", "offering_name", "practice", "overall_score", "signal", "signal_score", "matched_benefits"}

// writeCSV emits one row per evidence entry; offerings without evidence get
// a single row with empty signal columns.
func writeCSV(out io.Writer, r Report) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, row := range evidenceRows(r) {
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

func evidenceRows(r Report) [][]string {
	var rows [][]string
	for i, m := range r.Matches {
		base := []string{strconv.Itoa(i + 1), m.ID, m.Name, m.Practice, strconv.Itoa(m.OverallScore)}
		if len(m.MatchEvidence) == 0 {
			rows = append(rows, append(base, "", "", ""))
			continue
		}
		for _, ev := range m.MatchEvidence {
			row := append([]string{}, base...)
			rows = append(rows, append(row, ev.ChallengeName, strconv.Itoa(ev.ConfidenceScore), strings.Join(ev.MatchedBenefits, "; ")))
		}
	}
	return rows
}

func buildWorkbook(r Report) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Recommendations")
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}
	addRow(summary, "Rank", "ID", "Offering", "Practice", "Overall Score", "Evidence")
	for i, m := range r.Matches {
		row := summary.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(m.ID)
		row.AddCell().SetString(m.Name)
		row.AddCell().SetString(m.Practice)
		row.AddCell().SetInt(m.OverallScore)
		row.AddCell().SetString(evidenceSummary(m))
	}

	evidence, err := f.AddSheet("Evidence")
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}
	addRow(evidence, "Rank", "ID", "Offering", "Practice", "Overall Score", "Signal", "Signal Score", "Matched Benefits")
	for _, cells := range evidenceRows(r) {
		addRow(evidence, cells...)
	}

	if len(r.Skipped) > 0 {
		skipped, err := f.AddSheet("Skipped")
		if err != nil {
			return nil, eris.Wrap(err, "export: add sheet")
		}
		addRow(skipped, "ID", "Name", "Reason")
		for _, s := range r.Skipped {
			addRow(skipped, s.ID, s.Name, s.Reason)
		}
	}
	return f, nil
}

func addRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

// evidenceSummary lists evidence as "signal (score)", strongest first.
func evidenceSummary(m model.RankedMatch) string {
	parts := make([]string, len(m.MatchEvidence))
	for i, ev := range m.MatchEvidence {
		parts[i] = fmt.Sprintf("%s (%d)", ev.ChallengeName, ev.ConfidenceScore)
	}
	return strings.Join(parts, ", ")
}

func displayName(s ranking.SkippedOffering) string {
	switch {
	case s.ID != "" && s.Name != "":
		return s.ID + " (" + s.Name + ")"
	case s.ID != "":
		return s.ID
	case s.Name != "":
		return s.Name
	}
	return "<unnamed>"
}
