package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rotisserie/eris"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// WriteText renders tables as bordered terminal tables. Numeric columns are
// right aligned.
func WriteText(w io.Writer, tables ...Table) error {
	for _, t := range tables {
		if _, err := io.WriteString(w, Render(t)+"\n"); err != nil {
			return eris.Wrap(err, "report: write table")
		}
	}
	return nil
}

// Render returns the terminal rendering of t, title included.
func Render(t Table) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(t.Header...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col < len(t.Numeric) && t.Numeric[col] {
				return numberStyle
			}
			return cellStyle
		})

	out := tbl.Render()
	if t.Title != "" {
		out = lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(t.Title), out)
	}
	return out
}
