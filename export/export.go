// Package export writes grouping results as CSV or Excel files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"grouping-server-go/models"
	"grouping-server-go/roster"
)

// Header is the first line of every CSV export.
var Header = []string{"Group", "Name", "Sex", "Weight"}

// SheetName is the worksheet used by WriteExcel.
const SheetName = "Groups"

// Content types for the supported formats.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteCSV writes one line per student, prefixed with the 1-based position of
// its group. Group and member order are kept as given.
func WriteCSV(w io.Writer, groups []models.Group) error {
	cw := csv.NewWriter(w)
	cw.Comma = roster.Separator

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, g := range groups {
		idx := strconv.Itoa(i + 1)
		for _, s := range g.Members {
			if err := cw.Write([]string{idx, s.Name, s.Sex, FormatWeight(s.Weight)}); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteExcel writes the same table as WriteCSV into a single-sheet workbook.
func WriteExcel(w io.Writer, groups []models.Group) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("failed to write header cell %s: %w", cell, err)
		}
	}

	row := 2
	for i, g := range groups {
		for _, s := range g.Members {
			values := []any{i + 1, s.Name, s.Sex, s.Weight}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
			row++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write excel file: %w", err)
	}
	return nil
}

// FormatWeight renders a weight with as few digits as needed: 42, 42.5.
func FormatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// FileName derives the download name from the uploaded roster name:
// "class.csv" becomes "class_groupes.csv" (or ".xlsx").
func FileName(source, ext string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." || base == "/" {
		base = "roster"
	}
	return base + "_groupes." + strings.TrimPrefix(ext, ".")
}
