// Package roster reads student rosters from semicolon separated CSV files and
// Excel workbooks.
//
// A roster needs a header row naming a name, a sex and a weight column. Column
// order does not matter and a few common spellings are accepted (see
// columnAliases). Weights are returned as text: converting them is the
// grouping engine's job, so a bad value is reported there instead of being
// skipped here.
package roster

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"grouping-server-go/models"
)

var (
	// ErrEmptyRoster is returned when the input has no header row.
	ErrEmptyRoster = errors.New("roster is empty or badly formatted")

	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("roster is missing a required column")

	// ErrUnsupportedFormat is returned by Parse for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported roster format")
)

// Separator is the field delimiter used by roster and export CSV files.
const Separator = ';'

const (
	colName = iota
	colSex
	colWeight
)

var columnAliases = map[string]int{
	"name":       colName,
	"prénom":     colName,
	"prenom":     colName,
	"firstname":  colName,
	"first name": colName,
	"sex":        colSex,
	"sexe":       colSex,
	"gender":     colSex,
	"weight":     colWeight,
	"poids":      colWeight,
}

var columnNames = [...]string{"name", "sex", "weight"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse picks the reader from the file extension: .csv or .xlsx.
func Parse(filename string, r io.Reader) ([]models.RosterEntry, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return ParseCSV(r)
	case ".xlsx", ".xlsm":
		return ParseExcel(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// ParseCSV reads a semicolon separated roster. Blank lines are ignored; short
// lines produce empty fields.
func ParseCSV(r io.Reader) ([]models.RosterEntry, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.Comma = Separator
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyRoster
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read roster header: %w", err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	entries := []models.RosterEntry{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read roster: %w", err)
		}
		line, _ := cr.FieldPos(0)
		entries = append(entries, entryFromRow(line, record, cols))
	}
	return entries, nil
}

// ParseExcel reads the first sheet of a workbook.
func ParseExcel(r io.Reader) ([]models.RosterEntry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}

	// Raw values keep number formats such as "0.00" from rounding weights.
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	headerAt := -1
	for i, row := range rows {
		if !blank(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrEmptyRoster
	}
	cols, err := mapHeader(rows[headerAt])
	if err != nil {
		return nil, err
	}

	entries := []models.RosterEntry{}
	for i := headerAt + 1; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		entries = append(entries, entryFromRow(i+1, rows[i], cols))
	}
	return entries, nil
}

func mapHeader(header []string) ([3]int, error) {
	cols := [3]int{-1, -1, -1}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, string(utf8BOM))))
		if c, ok := columnAliases[key]; ok && cols[c] < 0 {
			cols[c] = i
		}
	}

	var missing []string
	for c, idx := range cols {
		if idx < 0 {
			missing = append(missing, columnNames[c])
		}
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s (found %s)", ErrMissingColumn, strings.Join(missing, ", "), strings.Join(header, ";"))
	}
	return cols, nil
}

func entryFromRow(line int, row []string, cols [3]int) models.RosterEntry {
	field := func(c int) string {
		if cols[c] < len(row) {
			return strings.TrimSpace(row[cols[c]])
		}
		return ""
	}
	return models.RosterEntry{
		Row:    line,
		Name:   field(colName),
		Sex:    field(colSex),
		Weight: field(colWeight),
	}
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
