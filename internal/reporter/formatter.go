package reporter

import (
	"fmt"
	"strings"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/pkg/errors"

	"github.com/shopspring/decimal"
)

// Colors holds the presentation colors
type Colors struct {
	Positive string `json:"positive" mapstructure:"positive"`
	Negative string `json:"negative" mapstructure:"negative"`
	Forecast string `json:"forecast" mapstructure:"forecast"`
}

// FormatConfig controls how values are turned into display text
type FormatConfig struct {
	CurrencySymbol     string `json:"currency_symbol" mapstructure:"currency_symbol"`
	ThousandsSeparator string `json:"thousands_separator" mapstructure:"thousands_separator"`
	DecimalSeparator   string `json:"decimal_separator" mapstructure:"decimal_separator"`
	CategoryHeader     string `json:"category_header" mapstructure:"category_header"`
	EmptyMessage       string `json:"empty_message" mapstructure:"empty_message"`
	Colors             Colors `json:"colors" mapstructure:"colors"`
}

// DefaultFormatConfig returns the pt-BR presentation
func DefaultFormatConfig() *FormatConfig {
	return &FormatConfig{
		CurrencySymbol:     "R$",
		ThousandsSeparator: ".",
		DecimalSeparator:   ",",
		CategoryHeader:     "Grupo",
		EmptyMessage:       "Não há dados para exibir.",
		Colors: Colors{
			Positive: "#107C10",
			Negative: "#D83B01",
			Forecast: "#605E5C",
		},
	}
}

// Validate validates the format configuration
func (c *FormatConfig) Validate() error {
	if c.DecimalSeparator == "" {
		return fmt.Errorf("decimal separator cannot be empty")
	}
	if c.DecimalSeparator == c.ThousandsSeparator {
		return fmt.Errorf("decimal and thousands separators must differ, both are %q", c.DecimalSeparator)
	}
	for name, color := range map[string]string{
		"positive": c.Colors.Positive,
		"negative": c.Colors.Negative,
		"forecast": c.Colors.Forecast,
	} {
		if strings.TrimSpace(color) == "" {
			return fmt.Errorf("%s color cannot be empty", name)
		}
	}
	return nil
}

// FormatCurrency renders a value with the symbol first, grouped thousands
// and two decimals: R$ 1.234,56 and R$ -1.234,56 with the default config.
func FormatCurrency(v decimal.Decimal, cfg *FormatConfig) string {
	if cfg == nil {
		cfg = DefaultFormatConfig()
	}

	rounded := v.Round(2)
	fixed := rounded.Abs().StringFixed(2)
	intPart, fracPart := fixed, "00"
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart, fracPart = fixed[:i], fixed[i+1:]
	}

	var b strings.Builder
	if cfg.CurrencySymbol != "" {
		b.WriteString(cfg.CurrencySymbol)
		b.WriteByte(' ')
	}
	if rounded.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString(groupThousands(intPart, cfg.ThousandsSeparator))
	b.WriteString(cfg.DecimalSeparator)
	b.WriteString(fracPart)
	return b.String()
}

func groupThousands(digits, sep string) string {
	if len(digits) <= 3 || sep == "" {
		return digits
	}

	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Formatter turns pivot tables into display tables
type Formatter struct {
	config *FormatConfig
}

// NewFormatter creates a new formatter
func NewFormatter(config *FormatConfig) (*Formatter, error) {
	if config == nil {
		config = DefaultFormatConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "format", config.DecimalSeparator, err)
	}

	return &Formatter{config: config}, nil
}

// Config returns the formatter configuration
func (f *Formatter) Config() *FormatConfig {
	return f.config
}

// FormatCell renders one cell. Zero is blank. A forecast value is shown in
// parentheses and, like a combined value, in italic with the forecast color.
// In summary tables non-total cells take the color of their sign. Totals are
// bold and never sign-colored.
func (f *Formatter) FormatCell(cell models.Cell, tableType models.TableType, total bool) models.DisplayCell {
	if cell.Value.IsZero() {
		return models.DisplayCell{}
	}

	text := FormatCurrency(cell.Value, f.config)
	var style models.CellStyle

	if total || cell.Provenance == models.ProvenanceTotal {
		style.Bold = true
		return models.DisplayCell{Text: text, Style: style}
	}

	switch cell.Provenance {
	case models.ProvenanceForecast:
		text = "(" + text + ")"
		style.Italic = true
		style.Color = f.config.Colors.Forecast
	case models.ProvenanceCombined:
		style.Italic = true
		style.Color = f.config.Colors.Forecast
	}

	if tableType == models.TableSummary {
		if cell.Value.IsPositive() {
			style.Color = f.config.Colors.Positive
		} else {
			style.Color = f.config.Colors.Negative
		}
	}

	return models.DisplayCell{Text: text, Style: style}
}

// FormatTable renders every cell of a pivot table. A table without rows
// becomes an empty table carrying the configured message.
func (f *Formatter) FormatTable(table *models.PivotTable) *models.DisplayTable {
	out := &models.DisplayTable{}
	if table == nil {
		out.Empty = true
		out.EmptyMessage = f.config.EmptyMessage
		return out
	}

	out.Title = table.Title
	out.Type = table.Type
	if table.IsEmpty() {
		out.Empty = true
		out.EmptyMessage = f.config.EmptyMessage
		return out
	}

	out.Headers = make([]string, 0, len(table.MonthLabels)+2)
	out.Headers = append(out.Headers, f.config.CategoryHeader)
	out.Headers = append(out.Headers, table.MonthLabels...)
	out.Headers = append(out.Headers, table.AnnualLabel)

	out.Rows = make([]models.DisplayRow, 0, len(table.Rows)+1)
	for _, row := range table.Rows {
		out.Rows = append(out.Rows, f.formatRow(row, table.Type, false))
	}
	out.Rows = append(out.Rows, f.formatRow(table.Total, table.Type, true))

	return out
}

func (f *Formatter) formatRow(row models.PivotRow, tableType models.TableType, total bool) models.DisplayRow {
	cells := make([]models.DisplayCell, 0, len(row.Cells)+1)
	for _, cell := range row.Cells {
		cells = append(cells, f.FormatCell(cell, tableType, total))
	}
	cells = append(cells, f.FormatCell(row.Annual, tableType, true))

	return models.DisplayRow{Label: row.Category, Cells: cells, Total: total}
}

// FormatKPI renders a headline figure. Unlike table cells, zero is shown.
func (f *Formatter) FormatKPI(v decimal.Decimal) string {
	return FormatCurrency(v, f.config)
}

// FormatKPIs renders all headline figures
func (f *Formatter) FormatKPIs(kpis models.KPIs) models.KPIText {
	text := models.KPIText{
		TotalRevenue: f.FormatKPI(kpis.TotalRevenue),
		TotalExpense: f.FormatKPI(kpis.TotalExpense),
		NetResult:    f.FormatKPI(kpis.NetResult),
	}
	if kpis.ExcludedCategory != "" {
		text.NetResultExcluding = f.FormatKPI(kpis.NetResultExcluding)
	}
	return text
}
