package parsers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"
)

// CSVTableParser reads a delimited file into a raw table
type CSVTableParser struct {
	*BaseParser
}

// NewCSVTableParser creates a new CSV table parser
func NewCSVTableParser(config *ParseConfig) (*CSVTableParser, error) {
	if config == nil {
		config = DefaultParseConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "csv", string(config.Delimiter), err)
	}

	return &CSVTableParser{BaseParser: NewBaseParser(config)}, nil
}

// ParseFile reads the whole file. name labels the table in errors and logs.
func (p *CSVTableParser) ParseFile(ctx context.Context, filePath, name string) (*models.RawTable, *ParseStats, error) {
	closer, reader, err := p.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer closer.Close()

	return p.parse(ctx, reader, name)
}

// Parse reads a table from an already open stream
func (p *CSVTableParser) Parse(ctx context.Context, r io.Reader, name string) (*models.RawTable, *ParseStats, error) {
	reader, err := p.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return p.parse(ctx, reader, name)
}

func (p *CSVTableParser) parse(ctx context.Context, reader *csv.Reader, name string) (*models.RawTable, *ParseStats, error) {
	parseCtx := NewParseContext(ctx, name)
	if err := p.ReadHeaders(reader, parseCtx); err != nil {
		return nil, nil, err
	}

	table := &models.RawTable{
		Name:    name,
		Source:  models.SourceCSV,
		Columns: parseCtx.Headers,
	}

	for {
		record, err := p.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		if len(table.Columns) == 0 && !p.config.HasHeader {
			table.Columns = positionalColumns(len(record))
		}

		table.Records = append(table.Records, models.RawRecord{
			Line:   parseCtx.LineNumber,
			Fields: record,
		})
	}

	stats := &ParseStats{
		Source:        name,
		TotalLines:    parseCtx.LineNumber,
		RecordsParsed: len(table.Records),
		Columns:       len(table.Columns),
	}

	p.logger.WithFields(logger.Fields{
		"source":  name,
		"records": stats.RecordsParsed,
		"columns": stats.Columns,
	}).Debug("CSV table parsed")

	return table, stats, nil
}

// positionalColumns names columns col1..colN
func positionalColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("col%d", i+1)
	}
	return cols
}
