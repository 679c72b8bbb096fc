package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "sheet.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func readFixture(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestReadXLSX_FirstSheet(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Competitors": {{"brand", "latitude"}, {" Jollibee ", "14.8"}},
	})

	rows, err := ReadXLSX(readFixture(t, path), "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"brand", "latitude"}, {"Jollibee", "14.8"}}, rows)
}

func TestReadXLSX_SheetNameCaseInsensitive(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Competitors": {{"brand"}, {"Chowking"}},
	})

	rows, err := ReadXLSX(readFixture(t, path), "competitors")
	require.NoError(t, err)
	assert.Equal(t, "Chowking", rows[1][0])
}

func TestReadXLSX_SheetNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Competitors": {{"brand"}}})

	_, err := ReadXLSX(readFixture(t, path), "Sales")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Sales" not found`)
}

func TestReadXLSX_NumericCellsKeepPrecision(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Branches")
	require.NoError(t, err)
	header := sheet.AddRow()
	header.AddCell().SetString("branch")
	header.AddCell().SetString("latitude")
	row := sheet.AddRow()
	row.AddCell().SetString("Malolos 1")
	row.AddCell().SetFloat(14.8433215)
	path := filepath.Join(t.TempDir(), "branches.xlsx")
	require.NoError(t, f.Save(path))

	rows, err := ReadXLSX(readFixture(t, path), "")
	require.NoError(t, err)
	assert.Equal(t, "14.8433215", rows[1][1])
}

func TestReadXLSX_TrailingEmptyCellsDropped(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sales": {{"branch", "sales", "", ""}},
	})

	rows, err := ReadXLSX(readFixture(t, path), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"branch", "sales"}, rows[0])
}

func TestReadXLSX_NotAWorkbook(t *testing.T) {
	_, err := ReadXLSX([]byte("not a zip"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open workbook")
}

func TestIsDateFormat(t *testing.T) {
	assert.False(t, isDateFormat(""))
	assert.False(t, isDateFormat("General"))
	assert.False(t, isDateFormat("#,##0.00"))
	assert.True(t, isDateFormat("yyyy-mm"))
	assert.True(t, isDateFormat("mmm-yy"))
	assert.True(t, isDateFormat("m/d/yyyy"))
}
