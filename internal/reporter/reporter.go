// Package reporter turns reconciled pivot tables into report documents.
//
// The Formatter converts each pivot cell into display text plus a
// rendering-neutral style hint. The ReportGenerator then renders a
// models.Report in one of several formats:
//   - HTML: the e-mail body, with inline styles
//   - Console: colored terminal tables
//   - JSON: structured data for programmatic consumption
//   - CSV: one block per report section
//   - XLSX: one worksheet per report section
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatHTML})
//	if err != nil {
//		return err
//	}
//	err = generator.GenerateReport(report, os.Stdout)
package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ufcsebrae/Prumo/internal/models"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatHTML    OutputFormat = "html"
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatHTML, FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format cannot be written to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// Extension returns the usual file extension for the format
func (f OutputFormat) Extension() string {
	switch f {
	case FormatConsole:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// HTML options
	TemplateFile string `json:"template_file,omitempty"`
	DateLayout   string `json:"date_layout"`

	// Console options
	UseColors bool `json:"use_colors"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`

	IncludeWarnings bool `json:"include_warnings"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:          FormatHTML,
		DateLayout:      "02/01/2006",
		UseColors:       true,
		CSVDelimiter:    ',',
		IncludeWarnings: true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r' {
		return fmt.Errorf("invalid CSV delimiter: %q", c.CSVDelimiter)
	}

	if strings.TrimSpace(c.DateLayout) == "" {
		return fmt.Errorf("date layout cannot be empty")
	}

	return nil
}

// ReportGenerator renders reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport renders a report and writes it to the provided writer.
// The document is rendered in memory first, so a failed render leaves the
// writer untouched.
func (rg *ReportGenerator) GenerateReport(report *models.Report, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	var buf bytes.Buffer
	if err := rg.render(report, &buf, writer); err != nil {
		return err
	}

	if _, err := buf.WriteTo(writer); err != nil {
		return &outputError{err: err}
	}
	return nil
}

// render writes the document into buf. Terminal capabilities are taken from
// the final destination.
func (rg *ReportGenerator) render(report *models.Report, buf *bytes.Buffer, destination io.Writer) error {
	switch rg.config.Format {
	case FormatHTML:
		return rg.generateHTMLReport(report, buf)
	case FormatConsole:
		return rg.generateConsoleReport(report, buf, destination)
	case FormatJSON:
		return rg.generateJSONReport(report, buf)
	case FormatCSV:
		return rg.generateCSVReport(report, buf)
	case FormatXLSX:
		return rg.generateXLSXReport(report, buf)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// outputError marks a failure to deliver a fully rendered document
type outputError struct {
	err error
}

func (e *outputError) Error() string {
	return fmt.Sprintf("failed to write report: %v", e.err)
}

func (e *outputError) Unwrap() error {
	return e.err
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(report *models.Report, writer io.Writer) error {
	out := *report
	if !rg.config.IncludeWarnings {
		out.Warnings = nil
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(&out)
}

// generateCSVReport writes one block per section: title, header, rows and a
// blank separator line
func (rg *ReportGenerator) generateCSVReport(report *models.Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	for _, section := range report.Sections {
		records := [][]string{{section.Title}}
		table := section.Table

		if table == nil || table.Empty {
			records = append(records, []string{emptyMessage(table)})
		} else {
			records = append(records, table.Headers)
			for _, row := range table.Rows {
				record := make([]string, 0, len(row.Cells)+1)
				record = append(record, row.Label)
				for _, cell := range row.Cells {
					record = append(record, cell.Text)
				}
				records = append(records, record)
			}
		}
		records = append(records, []string{})

		for _, record := range records {
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record for section %s: %w", section.Key, err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// UpdateConfiguration updates the generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

func emptyMessage(table *models.DisplayTable) string {
	if table != nil && table.EmptyMessage != "" {
		return table.EmptyMessage
	}
	return DefaultFormatConfig().EmptyMessage
}
