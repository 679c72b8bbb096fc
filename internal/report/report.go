// Package report renders dashboard tables as terminal tables, CSV or XLSX.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/site-selection/internal/classify"
	"github.com/sells-group/site-selection/internal/dashboard"
	"github.com/sells-group/site-selection/internal/mapview"
	"github.com/sells-group/site-selection/internal/sales"
)

// Output formats.
const (
	FormatText = "table"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Table is a titled grid of preformatted cells. Numeric marks the columns
// written as numbers in a workbook.
type Table struct {
	Title   string
	Header  []string
	Rows    [][]string
	Numeric []bool
}

// Write renders tables to w in the given format.
func Write(w io.Writer, format string, tables ...Table) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return WriteText(w, tables...)
	case FormatCSV:
		return WriteCSV(w, tables...)
	case FormatXLSX:
		return WriteXLSX(w, tables...)
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

// WriteCSV writes each table as a CSV block headed by its title row. Blocks
// are separated by a blank line.
func WriteCSV(w io.Writer, tables ...Table) error {
	cw := csv.NewWriter(w)
	for i, t := range tables {
		if i > 0 {
			if err := cw.Write([]string{""}); err != nil {
				return eris.Wrap(err, "report: write csv")
			}
		}
		if t.Title != "" {
			if err := cw.Write([]string{t.Title}); err != nil {
				return eris.Wrap(err, "report: write csv")
			}
		}
	if err := cw.Write(t.Header); err != nil {
			return eris.Wrap(err, "report: write csv header")
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return eris.Wrap(err, "report: write csv rows")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// SummaryTable is the per-municipality score summary.
func SummaryTable(rows []dashboard.MunicipalityRow) Table {
	t := Table{
		Title:   "Municipality Summary",
		Header:  []string{"Municipality/City", "No. of Barangays", "Average Score", "Min Score", "Max Score"},
		Numeric: []bool{false, true, true, true, true},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.CityMun,
			strconv.Itoa(r.Count),
			mapview.FormatScore(r.Mean),
			mapview.FormatScore(r.Min),
			mapview.FormatScore(r.Max),
		})
	}
	return t
}

// RankingTable is the barangay ranking. scoreCol names the source attribute in
// the score header. The competitor column is added only when withCompetitors is set.
func RankingTable(rows []dashboard.RankRow, scoreCol string, withCompetitors bool) Table {
	if scoreCol == "" {
		scoreCol = "mean_0"
	}
	t := Table{
		Title:   "Barangay Ranking",
		Header:  []string{"Rank", "Barangay", "Municipality/City", fmt.Sprintf("Score (%s)", scoreCol)},
		Numeric: []bool{true, false, false, true},
	}
	if withCompetitors {
		t.Header = append(t.Header, "Competitors")
		t.Numeric = append(t.Numeric, true)
	}
	for _, r := range rows {
		row := []string{strconv.Itoa(r.Rank), r.Barangay, r.CityMun, mapview.FormatScore(r.Score)}
		if withCompetitors {
			row = append(row, strconv.Itoa(r.Competitors))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// SalesTable lists municipalities by sales total with their class.
func SalesTable(munis []sales.MunicipalitySales) Table {
	t := Table{
		Title:   "Sales by Municipality",
		Header:  []string{"Municipality/City", "Branches", "Total Sales", "Class"},
		Numeric: []bool{false, true, true, false},
	}
	for _, m := range munis {
		t.Rows = append(t.Rows, []string{m.CityMun, strconv.Itoa(m.Branches), mapview.FormatAmount(m.Total), m.Class})
	}
	return t
}

// BranchTable ranks branches by sales total.
func BranchTable(rows []sales.BranchSales) Table {
	t := Table{
		Title:   "Branch Ranking",
		Header:  []string{"Rank", "Branch", "Municipality/City", "Total Sales", "Months"},
		Numeric: []bool{true, false, false, true, true},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(r.Rank), r.Branch, r.CityMun, mapview.FormatAmount(r.Total), strconv.Itoa(r.Months),
		})
	}
	return t
}

// TrendTable lists monthly totals.
func TrendTable(trend []sales.MonthTotal) Table {
	t := Table{
		Title:   "Monthly Trend",
		Header:  []string{"Month", "Total Sales"},
		Numeric: []bool{false, true},
	}
	for _, m := range trend {
		t.Rows = append(t.Rows, []string{m.Month, mapview.FormatAmount(m.Total)})
	}
	return t
}

// LegendTable lists legend labels with their hex colors.
func LegendTable(entries []classify.LegendEntry) Table {
	t := Table{
		Title:  "Legend",
		Header: []string{"Range", "Color", "RGBA"},
	}
	for _, e := range entries {
		c := e.Color
		t.Rows = append(t.Rows, []string{e.Label, c.Hex(), fmt.Sprintf("[%d, %d, %d, %d]", c[0], c[1], c[2], c[3])})
	}
	return t
}
