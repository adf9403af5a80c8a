package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/ufcsebrae/Prumo/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Resumo"
	maxSheetName  = 31
	labelColWidth = 40
	valueColWidth = 16
)

// xlsxStyles caches excelize style ids per display hint
type xlsxStyles struct {
	file  *excelize.File
	cache map[xlsxStyleKey]int
}

type xlsxStyleKey struct {
	style models.CellStyle
	label bool
}

func (s *xlsxStyles) id(style models.CellStyle, label bool) (int, error) {
	key := xlsxStyleKey{style: style, label: label}
	if id, ok := s.cache[key]; ok {
		return id, nil
	}

	horizontal := "right"
	if label {
		horizontal = "left"
	}
	font := &excelize.Font{Bold: style.Bold, Italic: style.Italic}
	if style.Color != "" {
		font.Color = strings.TrimPrefix(style.Color, "#")
	}

	id, err := s.file.NewStyle(&excelize.Style{
		Font:      font,
		Alignment: &excelize.Alignment{Horizontal: horizontal},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create cell style: %w", err)
	}
	s.cache[key] = id
	return id, nil
}

// generateXLSXReport writes a workbook with a summary sheet followed by one
// sheet per report section
func (rg *ReportGenerator) generateXLSXReport(report *models.Report, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	styles := &xlsxStyles{file: f, cache: make(map[xlsxStyleKey]int)}

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("failed to rename summary sheet: %w", err)
	}
	if err := rg.writeSummarySheet(f, styles, report); err != nil {
		return err
	}

	used := map[string]bool{summarySheet: true}
	for _, section := range report.Sections {
		name := uniqueSheetName(section.Title, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if err := writeSectionSheet(f, styles, name, section.Table); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", name, err)
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (rg *ReportGenerator) writeSummarySheet(f *excelize.File, styles *xlsxStyles, report *models.Report) error {
	rows := [][2]string{
		{report.Title, ""},
		{"Atualizado em", report.GeneratedAt.Format(rg.config.DateLayout)},
		{"Receita total", report.KPIText.TotalRevenue},
		{"Despesa total", report.KPIText.TotalExpense},
		{"Resultado", report.KPIText.NetResult},
	}
	if report.KPIText.NetResultExcluding != "" {
		rows = append(rows, [2]string{"Resultado sem " + report.KPIs.ExcludedCategory, report.KPIText.NetResultExcluding})
	}
	if rg.config.IncludeWarnings {
		for i, warning := range report.Warnings {
			label := ""
			if i == 0 {
				label = "Avisos"
			}
			rows = append(rows, [2]string{label, warning})
		}
	}

	bold, err := styles.id(models.CellStyle{Bold: true}, true)
	if err != nil {
		return err
	}

	for i, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(summarySheet, cell, value); err != nil {
				return err
			}
		}
	}

	if err := f.SetCellStyle(summarySheet, "A1", "A1", bold); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "A", "B", labelColWidth)
}

func writeSectionSheet(f *excelize.File, styles *xlsxStyles, sheet string, table *models.DisplayTable) error {
	if table == nil || table.Empty {
		return f.SetCellValue(sheet, "A1", emptyMessage(table))
	}

	header, err := styles.id(models.CellStyle{Bold: true}, false)
	if err != nil {
		return err
	}
	for col, h := range table.Headers {
		if err := setStyledCell(f, sheet, col+1, 1, h, header); err != nil {
			return err
		}
	}

	for r, row := range table.Rows {
		line := r + 2

		labelStyle, err := styles.id(models.CellStyle{Bold: row.Total}, true)
		if err != nil {
			return err
		}
		if err := setStyledCell(f, sheet, 1, line, row.Label, labelStyle); err != nil {
			return err
		}

		for c, cell := range row.Cells {
			id, err := styles.id(cell.Style, false)
			if err != nil {
				return err
			}
			if err := setStyledCell(f, sheet, c+2, line, cell.Text, id); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", labelColWidth); err != nil {
		return err
	}
	if len(table.Headers) > 1 {
		last, err := excelize.ColumnNumberToName(len(table.Headers))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, "B", last, valueColWidth); err != nil {
			return err
		}
	}
	return nil
}

func setStyledCell(f *excelize.File, sheet string, col, row int, value string, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

// uniqueSheetName strips characters Excel rejects in sheet names, truncates
// to the name limit and suffixes repeats
func uniqueSheetName(title string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return ' '
		}
		return r
	}, strings.TrimSpace(title))
	name = strings.Trim(name, "' ")
	if name == "" {
		name = "Tabela"
	}
	name = truncateRunes(name, maxSheetName)

	candidate := name
	for i := 2; used[candidate]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	used[candidate] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
