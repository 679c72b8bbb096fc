package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// WriteXLSX writes one worksheet per table. Cells in numeric columns that
// parse as numbers are stored as numbers.
func WriteXLSX(w io.Writer, tables ...Table) error {
	if len(tables) == 0 {
		return eris.New("report: no tables to write")
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return eris.Wrap(err, "report: header style")
	}

	used := make(map[string]int)
	for i, t := range tables {
		name := uniqueSheetName(t.Title, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return eris.Wrapf(err, "report: rename sheet %s", name)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return eris.Wrapf(err, "report: new sheet %s", name)
		}

		if err := writeSheet(f, name, t, bold); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t Table, headerStyle int) error {
	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return eris.Wrapf(err, "report: header %s", sheet)
	}
	if len(t.Header) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.Header), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return eris.Wrapf(err, "report: header style %s", sheet)
		}
	}

	for r, row := range t.Rows {
		vals := make([]any, len(row))
		for c, v := range row {
			vals[c] = cellValue(t, c, v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return eris.Wrapf(err, "report: row %d of %s", r+1, sheet)
		}
	}

	for c, h := range t.Header {
		col, _ := excelize.ColumnNumberToName(c + 1)
		width := float64(len(h) + 4)
		if width < 12 {
			width = 12
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return eris.Wrapf(err, "report: column width %s", sheet)
		}
	}
	return nil
}

func cellValue(t Table, col int, v string) any {
	if col < len(t.Numeric) && t.Numeric[col] {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return v
}

// uniqueSheetName strips characters Excel rejects, truncates to the sheet
// name limit and suffixes repeats.
func uniqueSheetName(title string, idx int, used map[string]int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Sheet" + strconv.Itoa(idx+1)
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	key := strings.ToLower(name)
	used[key]++
	if n := used[key]; n > 1 {
		suffix := " " + strconv.Itoa(n)
		if len(name)+len(suffix) > maxSheetName {
			name = name[:maxSheetName-len(suffix)]
		}
		name += suffix
	}
	return name
}
