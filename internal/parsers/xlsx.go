package parsers

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"github.com/xuri/excelize/v2"
)

// XLSXTableParser reads one worksheet into a raw table
type XLSXTableParser struct {
	config *XLSXConfig
	logger logger.Logger
}

// NewXLSXTableParser creates a new worksheet parser
func NewXLSXTableParser(config *XLSXConfig) (*XLSXTableParser, error) {
	if config == nil {
		config = DefaultXLSXConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "xlsx", config.HeaderRow, err)
	}

	return &XLSXTableParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("xlsx_parser"),
	}, nil
}

// ParseFile reads the configured worksheet of a workbook file
func (p *XLSXTableParser) ParseFile(ctx context.Context, filePath, name string) (*models.RawTable, *ParseStats, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, nil, errors.FileError(errors.CodeDirectoryError, filePath, err)
	}
	defer file.Close()

	return p.Parse(ctx, file, name)
}

// Parse reads the configured worksheet from a stream
func (p *XLSXTableParser) Parse(ctx context.Context, r io.Reader, name string) (*models.RawTable, *ParseStats, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, name, 0, err)
	}
	defer f.Close()

	sheet, err := p.resolveSheet(f, name)
	if err != nil {
		return nil, nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: p.config.RawValues})
	if err != nil {
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, name, 0, err)
	}

	table := &models.RawTable{Name: name, Source: models.SourceXLSX}
	headerIdx := p.config.HeaderRow - 1

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, errors.InternalError(errors.CodeUnexpectedError, "xlsx_parsing", err)
		}

		switch {
		case i < headerIdx:
			continue
		case i == headerIdx:
			table.Columns = cleanCells(row)
			continue
		}

		if p.config.SkipEmptyRows && isEmptyRecord(row) {
			continue
		}

		table.Records = append(table.Records, models.RawRecord{
			Line:   i + 1,
			Fields: row,
		})
	}

	stats := &ParseStats{
		Source:        name,
		TotalLines:    len(rows),
		RecordsParsed: len(table.Records),
		Columns:       len(table.Columns),
	}

	p.logger.WithFields(logger.Fields{
		"source":  name,
		"sheet":   sheet,
		"records": stats.RecordsParsed,
		"columns": stats.Columns,
	}).Debug("Worksheet parsed")

	return table, stats, nil
}

func (p *XLSXTableParser) resolveSheet(f *excelize.File, name string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.ParseError(errors.CodeInvalidFormat, name, 0, fmt.Errorf("workbook has no sheets"))
	}

	if p.config.Sheet == "" {
		return sheets[0], nil
	}

	for _, sheet := range sheets {
		if strings.EqualFold(strings.TrimSpace(sheet), strings.TrimSpace(p.config.Sheet)) {
			return sheet, nil
		}
	}

	return "", errors.ParseError(errors.CodeInvalidFormat, name, 0,
		fmt.Errorf("sheet %q not found", p.config.Sheet)).
		WithSuggestion(fmt.Sprintf("available sheets: %s", strings.Join(sheets, ", ")))
}

func cleanCells(row []string) []string {
	cleaned := make([]string, len(row))
	for i, cell := range row {
		cleaned[i] = strings.TrimSpace(cell)
	}
	return cleaned
}
