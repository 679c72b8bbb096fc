package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX parses a workbook and returns the rows of the named sheet, or the
// first sheet when name is empty. Sheet names match case-insensitively.
// Numeric cells keep their stored value unless formatted as a date, so
// coordinates are not rounded by a display format.
func ReadXLSX(data []byte, name string) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}

	sheet, err := findSheet(f, name)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = cellText(c)
		}
		rows = append(rows, trimTrailingEmpty(cells))
	}
	return rows, nil
}

func findSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return f.Sheets[0], nil
	}
	for _, s := range f.Sheets {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return nil, eris.Errorf("xlsx: sheet %q not found", name)
}

func cellText(c *xlsx.Cell) string {
	if c == nil {
		return ""
	}
	if c.Type() == xlsx.CellTypeNumeric && !isDateFormat(c.NumFmt) {
		return strings.TrimSpace(c.Value)
	}
	return strings.TrimSpace(c.String())
}

// isDateFormat reports whether a number format renders a date.
func isDateFormat(format string) bool {
	f := strings.ToLower(format)
	if f == "" || f == "general" {
		return false
	}
	return strings.ContainsAny(f, "dy") || strings.Contains(f, "mmm")
}

func trimTrailingEmpty(cells []string) []string {
	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return cells[:n]
}
