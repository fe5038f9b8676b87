package roster

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"grouping-server-go/models"
)

func TestParseCSV(t *testing.T) {
	t.Run("reads the original french layout", func(t *testing.T) {
		in := "Prénom;Sexe;Poids\nAlice;F;42.5\nBruno;M;51\n"

		entries, err := ParseCSV(strings.NewReader(in))

		require.NoError(t, err)
		require.Equal(t, []models.RosterEntry{
			{Row: 2, Name: "Alice", Sex: "F", Weight: "42.5"},
			{Row: 3, Name: "Bruno", Sex: "M", Weight: "51"},
		}, entries)
	})

	t.Run("accepts any column order and trims fields", func(t *testing.T) {
		in := "Weight ; Name ; Gender\n 40 ; Chloé ; F \n"

		entries, err := ParseCSV(strings.NewReader(in))

		require.NoError(t, err)
		require.Equal(t, []models.RosterEntry{{Row: 2, Name: "Chloé", Sex: "F", Weight: "40"}}, entries)
	})

	t.Run("strips a leading BOM", func(t *testing.T) {
		in := "\xEF\xBB\xBFname;sex;weight\nDan;M;60\n"

		entries, err := ParseCSV(strings.NewReader(in))

		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "Dan", entries[0].Name)
	})

	t.Run("keeps bad weights and short rows for the engine to report", func(t *testing.T) {
		in := "name;sex;weight\nEve;F;abc\n\nFinn;M\n"

		entries, err := ParseCSV(strings.NewReader(in))

		require.NoError(t, err)
		require.Equal(t, []models.RosterEntry{
			{Row: 2, Name: "Eve", Sex: "F", Weight: "abc"},
			{Row: 4, Name: "Finn", Sex: "M", Weight: ""},
		}, entries)
	})

	t.Run("header only yields no entries", func(t *testing.T) {
		entries, err := ParseCSV(strings.NewReader("name;sex;weight\n"))

		require.NoError(t, err)
		require.NotNil(t, entries)
		require.Empty(t, entries)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(""))

		require.ErrorIs(t, err, ErrEmptyRoster)
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader("name,sex,weight\nA,F,1\n"))

		require.ErrorIs(t, err, ErrMissingColumn)
		require.Contains(t, err.Error(), "name, sex, weight")
	})
}

func TestParseExcel(t *testing.T) {
	t.Run("reads the first sheet", func(t *testing.T) {
		data := workbook(t, [][]any{
			{"Name", "Sex", "Weight"},
			{"Alice", "F", 42.5},
			{},
			{"Bruno", "M", "51"},
		})

		entries, err := ParseExcel(bytes.NewReader(data))

		require.NoError(t, err)
		require.Equal(t, []models.RosterEntry{
			{Row: 2, Name: "Alice", Sex: "F", Weight: "42.5"},
			{Row: 4, Name: "Bruno", Sex: "M", Weight: "51"},
		}, entries)
	})

	t.Run("missing column", func(t *testing.T) {
		data := workbook(t, [][]any{{"Name", "Weight"}, {"Alice", 40}})

		_, err := ParseExcel(bytes.NewReader(data))

		require.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("ignores weight number formats", func(t *testing.T) {
		f := excelize.NewFile()
		defer f.Close()
		sheet := f.GetSheetName(0)
		require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Name", "Sex", "Weight"}))
		require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Alice", "F", 42.123}))
		require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Bruno", "M", 1000}))
		twoDecimals, err := f.NewStyle(&excelize.Style{NumFmt: 2})
		require.NoError(t, err)
		thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3})
		require.NoError(t, err)
		require.NoError(t, f.SetCellStyle(sheet, "C2", "C2", twoDecimals))
		require.NoError(t, f.SetCellStyle(sheet, "C3", "C3", thousands))
		var buf bytes.Buffer
		require.NoError(t, f.Write(&buf))

		entries, err := ParseExcel(bytes.NewReader(buf.Bytes()))

		require.NoError(t, err)
		require.Equal(t, []models.RosterEntry{
			{Row: 2, Name: "Alice", Sex: "F", Weight: "42.123"},
			{Row: 3, Name: "Bruno", Sex: "M", Weight: "1000"},
		}, entries)
	})

	t.Run("empty sheet", func(t *testing.T) {
		data := workbook(t, nil)

		_, err := ParseExcel(bytes.NewReader(data))

		require.ErrorIs(t, err, ErrEmptyRoster)
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := ParseExcel(strings.NewReader("name;sex;weight"))

		require.Error(t, err)
	})
}

func TestParse(t *testing.T) {
	t.Run("dispatches on extension", func(t *testing.T) {
		entries, err := Parse("Class.CSV", strings.NewReader("name;sex;weight\nA;F;1\n"))
		require.NoError(t, err)
		require.Len(t, entries, 1)

		data := workbook(t, [][]any{{"name", "sex", "weight"}, {"A", "F", 1}})
		entries, err = Parse("class.xlsx", bytes.NewReader(data))
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("rejects unknown extensions", func(t *testing.T) {
		_, err := Parse("class.pdf", strings.NewReader(""))

		require.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}
