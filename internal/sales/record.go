// Package sales aggregates monthly branch sales per municipality and classifies
// municipalities into low, medium and high sales bands.
package sales

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-selection/internal/fetcher"
)

// Record is one branch's sales for one month.
type Record struct {
	Branch  string  `json:"branch"`
	CityMun string  `json:"citymun"`
	Month   string  `json:"month"` // YYYY-MM
	Amount  float64 `json:"amount"`
}

// ColumnMap names the sales sheet columns.
type ColumnMap struct {
	Branch  string
	CityMun string
	Month   string
	Amount  string
	Sheet   string
}

// TableReader reads a sheet into a header and rows.
type TableReader interface {
	ReadTable(ctx context.Context, src string, opts fetcher.TableOptions) (*fetcher.Table, error)
}

// Load reads the sales sheet. Unlike point layers the sheet is required, so
// read failures and missing columns are errors. Rows with an unparseable
// month or amount are dropped and reported as warnings.
func Load(ctx context.Context, src string, cols ColumnMap, r TableReader) ([]Record, []string, error) {
	log := zap.L().With(zap.String("component", "sales"), zap.String("source", src))

	tbl, err := r.ReadTable(ctx, src, fetcher.TableOptions{Sheet: cols.Sheet})
	if err != nil {
		return nil, nil, eris.Wrap(err, "sales: read sheet")
	}
	if missing := tbl.Missing(cols.Branch, cols.CityMun, cols.Month, cols.Amount); len(missing) > 0 {
		return nil, nil, eris.Errorf("sales: sheet %s is missing columns: %s", src, strings.Join(missing, ", "))
	}

	var (
		branchIdx = tbl.Index(cols.Branch)
		cityIdx   = tbl.Index(cols.CityMun)
		monthIdx  = tbl.Index(cols.Month)
		amountIdx = tbl.Index(cols.Amount)
	)

	records := make([]Record, 0, len(tbl.Rows))
	badMonth, badAmount := 0, 0
	for i := range tbl.Rows {
		month, ok := ParseMonth(tbl.Cell(i, monthIdx))
		if !ok {
			badMonth++
			continue
		}
		amount, ok := ParseAmount(tbl.Cell(i, amountIdx))
		if !ok {
			badAmount++
			continue
		}
		records = append(records, Record{
			Branch:  tbl.Cell(i, branchIdx),
			CityMun: tbl.Cell(i, cityIdx),
			Month:   month,
			Amount:  amount,
		})
	}

	var warnings []string
	if badMonth > 0 {
		warnings = append(warnings, fmt.Sprintf("Dropped %d sales rows with an unreadable month", badMonth))
	}
	if badAmount > 0 {
		warnings = append(warnings, fmt.Sprintf("Dropped %d sales rows with an unreadable amount", badAmount))
	}
	log.Info("sales loaded",
		zap.Int("records", len(records)),
		zap.Int("bad_month", badMonth),
		zap.Int("bad_amount", badAmount),
	)
	return records, warnings, nil
}

var monthLayouts = []string{
	"2006-01",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01",
	"2006/01/02",
	"01/2006",
	"1/2006",
	"01-02-06",
	"1/2/2006",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"Jan-06",
}

// ParseMonth normalizes a month cell to YYYY-MM.
func ParseMonth(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01"), true
		}
	}
	return "", false
}

// ParseAmount parses a sales figure, tolerating thousands separators and a
// peso sign.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₱")
	s = strings.TrimPrefix(s, "PHP")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Months returns the distinct months present, ascending.
func Months(records []Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if !seen[r.Month] {
			seen[r.Month] = true
			out = append(out, r.Month)
		}
	}
	sort.Strings(out)
	return out
}

// MonthTotal is the sales total for one month.
type MonthTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// Trend totals sales per month, ascending by month.
func Trend(records []Record) []MonthTotal {
	totals := make(map[string]float64)
	for _, r := range records {
		totals[r.Month] += r.Amount
	}
	out := make([]MonthTotal, 0, len(totals))
	for _, m := range Months(records) {
		out = append(out, MonthTotal{Month: m, Total: totals[m]})
	}
	return out
}
