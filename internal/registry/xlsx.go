package registry

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/portfolio-advisor/internal/model"
)

// Workbook sheet names. A workbook with a single sheet is read regardless
// of its name.
const (
	OfferingsSheet = "Offerings"
	SignalsSheet   = "Signals"
)

// ReadCatalogXLSX reads offerings from the Offerings sheet. The header row
// names the columns: ID, Name, Description, Key Features, Benefits,
// Practice, Tags. List cells hold one value per line or separated by ";".
func ReadCatalogXLSX(path string) ([]model.Offering, error) {
	rows, err := readSheet(path, OfferingsSheet)
	if err != nil {
		return nil, err
	}
	offerings := []model.Offering{}
	if len(rows) == 0 {
		return offerings, nil
	}

	cols := headerIndex(rows[0])
	if _, ok := cols["id"]; !ok {
		return nil, eris.New("registry: offerings sheet has no ID column")
	}
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		offerings = append(offerings, model.Offering{
			ID:          cols.get(row, "id"),
			Name:        cols.get(row, "name"),
			Description: cols.get(row, "description"),
			KeyFeatures: splitList(cols.get(row, "key features")),
			Benefits:    splitList(cols.get(row, "benefits")),
			Practice:    cols.get(row, "practice"),
			Tags:        splitList(cols.get(row, "tags")),
		})
	}
	return offerings, nil
}

// ReadInsightsXLSX reads signals from the Signals sheet, one row per signal,
// grouped into insight sets by the Client column. Signal order within a
// client follows row order. Sentiment is taken from the client's first row.
func ReadInsightsXLSX(path string) ([]model.ClientInsightSet, error) {
	rows, err := readSheet(path, SignalsSheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []model.ClientInsightSet{}, nil
	}

	cols := headerIndex(rows[0])
	for _, required := range []string{"client", "signal", "confidence"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("registry: signals sheet has no %s column", required)
		}
	}

	type group struct {
		sentiment int
		signals   []model.Signal
	}
	var order []string
	groups := make(map[string]*group)

	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		line := i + 2
		client := cols.get(row, "client")
		g, ok := groups[client]
		if !ok {
			sentiment, err := atoiOr(cols.get(row, "sentiment"), 50)
			if err != nil {
				return nil, eris.Wrapf(err, "registry: signals row %d: sentiment", line)
			}
			g = &group{sentiment: sentiment}
			groups[client] = g
			order = append(order, client)
		}

		name := cols.get(row, "signal")
		if name == "" {
			continue
		}
		confidence, err := atoiOr(cols.get(row, "confidence"), -1)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: signals row %d: confidence", line)
		}
		sig, err := model.NewSignal(name, confidence, model.SignalKind(cols.get(row, "kind")))
		if err != nil {
			return nil, eris.Wrapf(err, "registry: signals row %d", line)
		}
		g.signals = append(g.signals, sig)
	}

	sets := make([]model.ClientInsightSet, 0, len(order))
	for _, client := range order {
		g := groups[client]
		set, err := model.NewClientInsightSet(client, g.sentiment, g.signals...)
		if err != nil {
			return nil, eris.Wrap(err, "registry: signals sheet")
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func readSheet(path, name string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: open workbook")
	}

	sheet, ok := f.Sheet[name]
	if !ok {
		if len(f.Sheets) != 1 {
			return nil, eris.Errorf("registry: sheet %q not found", name)
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

type columns map[string]int

func headerIndex(header []string) columns {
	cols := make(columns, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

// splitList splits a multi-value cell on newlines and semicolons.
func splitList(cell string) []string {
	out := []string{}
	for _, part := range strings.FieldsFunc(cell, func(r rune) bool { return r == '\n' || r == ';' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoiOr(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("%q is not a number", s)
	}
	return int(f + 0.5), nil
}
