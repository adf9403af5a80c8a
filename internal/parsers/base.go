// Package parsers reads tabular source files into raw tables.
//
// It covers the file formats budget sources arrive in and leaves every
// semantic decision (column meaning, month labels, amounts) to the
// normalizer.
//
// Key features:
//   - Configurable CSV parsing: delimiter, comments, header handling
//   - UTF-8 validation, or Latin-1 / Windows-1252 decoding for exports from
//     legacy finance systems
//   - XLSX worksheets read by name or position
//   - Category mapping (de-para) files in CSV, XLSX or YAML
//
// Example usage:
//
//	parser, err := parsers.NewCSVTableParser(&parsers.ParseConfig{HasHeader: true, Delimiter: ';', Encoding: "latin1"})
//	table, stats, err := parser.ParseFile(ctx, "execucao.csv", "execucao")
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"
)

const utf8BOM = "\ufeff"

// ParseConfig holds configuration for CSV parsing
type ParseConfig struct {
	HasHeader        bool   `json:"has_header"`
	Delimiter        rune   `json:"delimiter"`
	Comment          rune   `json:"comment"`
	TrimLeadingSpace bool   `json:"trim_leading_space"`
	SkipEmptyRows    bool   `json:"skip_empty_rows"`
	MaxFieldSize     int    `json:"max_field_size"`
	ValidateEncoding bool   `json:"validate_encoding"`
	Encoding         string `json:"encoding"`
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		HasHeader:        true,
		Delimiter:        ',',
		Comment:          0,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1000000, // 1MB per field
		ValidateEncoding: true,
		Encoding:         EncodingUTF8,
	}
}

// BaseParser provides common CSV parsing functionality
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("base_parser")
	log.WithFields(logger.Fields{
		"has_header":        config.HasHeader,
		"delimiter":         string(config.Delimiter),
		"encoding":          config.Encoding,
		"validate_encoding": config.ValidateEncoding,
	}).Debug("Created base parser")

	return &BaseParser{
		config: config,
		logger: log,
	}
}

// ParseContext holds state during parsing operations
type ParseContext struct {
	Source     string
	LineNumber int
	Headers    []string
	ctx        context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context, source string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		Source: source,
		ctx:    ctx,
	}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// OpenFile opens a CSV file and returns a reader over its decoded content
func (bp *BaseParser) OpenFile(filePath string) (io.ReadCloser, *csv.Reader, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening CSV file")

	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Debug("Failed to open CSV file")

		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, nil, errors.FileError(errors.CodeDirectoryError, filePath, err)
	}

	enc, err := ParseEncoding(bp.config.Encoding)
	if err != nil {
		file.Close()
		return nil, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "encoding", bp.config.Encoding, err)
	}

	if enc == nil && bp.config.ValidateEncoding {
		bp.logger.WithField("file_path", filePath).Debug("Validating file encoding")

		if err := bp.validateEncoding(file, filePath); err != nil {
			file.Close()
			return nil, nil, err
		}

		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
		}
	}

	var content io.Reader = file
	if enc != nil {
		content = enc.NewDecoder().Reader(file)
	}

	reader := csv.NewReader(content)
	bp.configureReader(reader)

	bp.logger.WithField("file_path", filePath).Debug("Successfully opened CSV file")
	return file, reader, nil
}

// NewReader wraps an already open stream
func (bp *BaseParser) NewReader(r io.Reader) (*csv.Reader, error) {
	enc, err := ParseEncoding(bp.config.Encoding)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "encoding", bp.config.Encoding, err)
	}
	if enc != nil {
		r = enc.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	bp.configureReader(reader)
	return reader, nil
}

// configureReader sets up the CSV reader with our configuration
func (bp *BaseParser) configureReader(reader *csv.Reader) {
	reader.Comma = bp.config.Delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1 // Variable number of fields
}

// validateEncoding checks if the file contains valid UTF-8 text
func (bp *BaseParser) validateEncoding(file *os.File, filePath string) error {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), bp.maxLineSize())
	lineNum := 0

	for scanner.Scan() && lineNum < 100 { // Check first 100 lines
		lineNum++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(
				errors.CodeEncodingError,
				filePath,
				lineNum,
				fmt.Errorf("invalid UTF-8 encoding detected"),
			)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}

	return nil
}

func (bp *BaseParser) maxLineSize() int {
	if bp.config.MaxFieldSize > 64*1024 {
		return bp.config.MaxFieldSize
	}
	return 64 * 1024
}

// ReadHeaders reads the header row when the file has one
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext) error {
	bp.logger.WithField("has_header", bp.config.HasHeader).Debug("Reading CSV headers")

	if !bp.config.HasHeader {
		return nil
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			// A header-only or blank file is treated as a table without rows
			return nil
		}

		return errors.ParseError(errors.CodeInvalidFormat, parseCtx.Source, 1, err)
	}

	parseCtx.LineNumber, _ = reader.FieldPos(0)
	parseCtx.Headers = bp.cleanHeaders(headers)

	bp.logger.WithField("headers", parseCtx.Headers).Debug("Successfully read headers")
	return nil
}

// cleanHeaders removes whitespace and a leading byte order mark
func (bp *BaseParser) cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, utf8BOM)
		}
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

// ReadRecord reads the next non-empty record. io.EOF marks the end.
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			return nil, errors.InternalError(
				errors.CodeUnexpectedError,
				"csv_parsing",
				parseCtx.ctx.Err(),
			)
		}

		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, err
			}

			line := parseCtx.LineNumber + 1
			if csvErr, ok := err.(*csv.ParseError); ok {
				line = csvErr.Line
			}

			bp.logger.WithError(err).WithField("line_number", line).Warn("Failed to read CSV record")
			return nil, errors.ParseError(errors.CodeInvalidFormat, parseCtx.Source, line, err)
		}

		parseCtx.LineNumber, _ = reader.FieldPos(0)

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			bp.logger.WithField("line_number", parseCtx.LineNumber).Debug("Skipping empty record")
			continue
		}

		if bp.config.MaxFieldSize > 0 {
			for i, field := range record {
				if len(field) > bp.config.MaxFieldSize {
					return nil, errors.ParseError(
						errors.CodeInvalidFormat,
						parseCtx.Source,
						parseCtx.LineNumber,
						fmt.Errorf("field %d exceeds maximum size of %d bytes", i+1, bp.config.MaxFieldSize),
					)
				}
			}
		}

		return record, nil
	}
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	Source        string `json:"source"`
	TotalLines    int    `json:"total_lines"`
	RecordsParsed int    `json:"records_parsed"`
	Columns       int    `json:"columns"`
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %s: %d lines, %d records, %d columns",
		ps.Source, ps.TotalLines, ps.RecordsParsed, ps.Columns)
}
