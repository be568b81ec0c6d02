// Package export writes run results to xlsx files and Google Sheets.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName = "Данные"

	minColumnWidth = 15
	maxCellLength  = 50
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// XLSX writes a single styled sheet: header row, data rows, frozen header.
func XLSX(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("can't rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorder,
	})
	if err != nil {
		return fmt.Errorf("can't create header style: %w", err)
	}

	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
		Border:    thinBorder,
	})
	if err != nil {
		return fmt.Errorf("can't create cell style: %w", err)
	}

	if err := writeRow(f, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	if len(header) > 0 {
		lastColumn, err := excelize.ColumnNumberToName(len(header))
		if err != nil {
			return fmt.Errorf("can't get column name: %w", err)
		}

		if err := f.SetCellStyle(SheetName, "A1", lastColumn+"1", headerStyle); err != nil {
			return fmt.Errorf("can't set header style: %w", err)
		}
		if len(rows) > 0 {
			lastCell := lastColumn + strconv.Itoa(len(rows)+1)
			if err := f.SetCellStyle(SheetName, "A2", lastCell, cellStyle); err != nil {
				return fmt.Errorf("can't set cell style: %w", err)
			}
		}

		for i, width := range ColumnWidths(len(header), rows) {
			name, _ := excelize.ColumnNumberToName(i + 1)
			if err := f.SetColWidth(SheetName, name, name, width); err != nil {
				return fmt.Errorf("can't set column width: %w", err)
			}
		}
	}

	err = f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	if err != nil {
		return fmt.Errorf("can't freeze header: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("can't save xlsx file: %w", err)
	}

	return nil
}

func writeRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("can't get cell name: %w", err)
	}

	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("can't write row %d: %w", row, err)
	}
	return nil
}

// ColumnWidths fits each column to its longest data cell, capped at 50 characters
// plus padding and never narrower than 15.
func ColumnWidths(columns int, rows [][]string) []float64 {
	widths := make([]float64, columns)
	for i := range widths {
		longest := 0
		for _, row := range rows {
			if i < len(row) {
				longest = max(longest, min(utf8.RuneCountInString(row[i]), maxCellLength))
			}
		}
		widths[i] = float64(max(longest+2, minColumnWidth))
	}
	return widths
}

// FileName builds TORGI_<subjects>_<statuses>_<yyyymmdd_HHMMSS>.xlsx.
// More than two subjects or statuses are replaced with their count.
func FileName(subjectNames, statuses []string, now time.Time) string {
	subjects := make([]string, 0, len(subjectNames))
	for _, name := range subjectNames {
		subjects = append(subjects, strings.ReplaceAll(name, " ", "_"))
	}

	subjectsPart := strings.Join(subjects, "-")
	if len(subjects) > 2 {
		subjectsPart = fmt.Sprintf("%d_субъектов", len(subjects))
	}

	statusesPart := strings.Join(statuses, "-")
	if len(statuses) > 2 {
		statusesPart = fmt.Sprintf("%d_статусов", len(statuses))
	}

	return fmt.Sprintf("TORGI_%s_%s_%s.xlsx", subjectsPart, statusesPart, now.Format("20060102_150405"))
}
