// Package config turns the viper settings of the CLI into the typed
// configurations of the report pipeline.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/internal/normalizer"
	"github.com/ufcsebrae/Prumo/internal/parsers"
	"github.com/ufcsebrae/Prumo/internal/pivot"
	"github.com/ufcsebrae/Prumo/internal/reconciler"
	"github.com/ufcsebrae/Prumo/internal/reporter"
	"github.com/ufcsebrae/Prumo/internal/sources"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Settings is the report configuration file
type Settings struct {
	Year  int    `mapstructure:"year"`
	Title string `mapstructure:"title"`

	// Months overrides the twelve month labels, January first
	Months []string `mapstructure:"months"`

	Revenue FlowSettings `mapstructure:"revenue"`
	Expense FlowSettings `mapstructure:"expense"`

	Mapping          string `mapstructure:"mapping"`
	MappingDelimiter string `mapstructure:"mapping_delimiter"`

	Summary SummarySettings          `mapstructure:"summary"`
	Pivot   PivotSettings            `mapstructure:"pivot"`
	Format  reporter.FormatConfig    `mapstructure:"format"`
	Titles  reconciler.SectionTitles `mapstructure:"titles"`
	Output  OutputSettings           `mapstructure:"output"`
	Loader  sources.LoaderConfig     `mapstructure:"loader"`
	Log     LogSettings              `mapstructure:"log"`

	RevenueCategories []string `mapstructure:"revenue_categories"`
	ExpenseCategories []string `mapstructure:"expense_categories"`

	// LedgerDB is the optional snapshot database path
	LedgerDB string `mapstructure:"ledger_db"`
}

// FlowSettings lists the three inputs of one flow
type FlowSettings struct {
	Executed *InputSettings `mapstructure:"executed"`
	Planned  *InputSettings `mapstructure:"planned"`
	Forecast *InputSettings `mapstructure:"forecast"`
}

// InputSettings describes one source and the layout of its table
type InputSettings struct {
	sources.SourceSpec `mapstructure:",squash"`

	// Layout names a predefined layout; empty selects the one of the role
	Layout  string         `mapstructure:"layout"`
	Columns ColumnSettings `mapstructure:"columns"`
}

// ColumnSettings overrides column names of the selected layout
type ColumnSettings struct {
	Category string              `mapstructure:"category"`
	Month    string              `mapstructure:"month"`
	Value    string              `mapstructure:"value"`
	Aliases  map[string][]string `mapstructure:"aliases"`
}

// SummarySettings configures the surplus/deficit rows
type SummarySettings struct {
	Label                  string `mapstructure:"label"`
	ExcludeRevenueCategory string `mapstructure:"exclude_revenue_category"`
}

// PivotSettings configures the pivot tables
type PivotSettings struct {
	Epsilon           string `mapstructure:"epsilon"`
	TotalRowLabel     string `mapstructure:"total_row_label"`
	AnnualColumnLabel string `mapstructure:"annual_column_label"`
}

// OutputSettings selects the rendered document
type OutputSettings struct {
	Format       string `mapstructure:"format"`
	File         string `mapstructure:"file"`
	Template     string `mapstructure:"template"`
	Colors       bool   `mapstructure:"colors"`
	CSVDelimiter string `mapstructure:"csv_delimiter"`
}

// LogSettings configures the logger
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// SetDefaults registers the default of every setting, which also lets
// PRUMO_* environment variables override keys absent from the file
func SetDefaults(v *viper.Viper) {
	format := reporter.DefaultFormatConfig()
	pivotConfig := pivot.DefaultConfig()
	titles := reconciler.DefaultServiceConfig().Titles
	loader := sources.DefaultLoaderConfig()

	v.SetDefault("year", time.Now().Year())
	v.SetDefault("title", "")
	v.SetDefault("mapping", "")
	v.SetDefault("mapping_delimiter", ",")
	v.SetDefault("ledger_db", "")

	v.SetDefault("summary.label", "")
	v.SetDefault("summary.exclude_revenue_category", "")

	v.SetDefault("pivot.epsilon", pivotConfig.Epsilon.String())
	v.SetDefault("pivot.total_row_label", pivotConfig.TotalRowLabel)
	v.SetDefault("pivot.annual_column_label", pivotConfig.AnnualColumnLabel)

	v.SetDefault("format.currency_symbol", format.CurrencySymbol)
	v.SetDefault("format.thousands_separator", format.ThousandsSeparator)
	v.SetDefault("format.decimal_separator", format.DecimalSeparator)
	v.SetDefault("format.category_header", format.CategoryHeader)
	v.SetDefault("format.empty_message", format.EmptyMessage)
	v.SetDefault("format.colors.positive", format.Colors.Positive)
	v.SetDefault("format.colors.negative", format.Colors.Negative)
	v.SetDefault("format.colors.forecast", format.Colors.Forecast)

	v.SetDefault("titles.revenue", titles.Revenue)
	v.SetDefault("titles.expense", titles.Expense)
	v.SetDefault("titles.summary", titles.Summary)
	v.SetDefault("titles.summary_excluding", titles.SummaryExcluding)

	v.SetDefault("output.format", string(reporter.FormatHTML))
	v.SetDefault("output.file", "")
	v.SetDefault("output.template", "")
	v.SetDefault("output.colors", true)
	v.SetDefault("output.csv_delimiter", ",")

	v.SetDefault("loader.max_concurrency", loader.MaxConcurrency)
	v.SetDefault("loader.query_timeout", loader.QueryTimeout)

	v.SetDefault("log.level", string(logger.InfoLevel))
	v.SetDefault("log.format", string(logger.TextFormat))
	v.SetDefault("log.file", "")
}

// Load decodes and validates the settings held by v
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// LoadRender decodes and validates the settings needed to render stored
// ledgers. Sources are not required.
func LoadRender(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if err := s.validateRender(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks the settings that no component validates on its own
func (s *Settings) Validate() error {
	if s.Revenue.Executed == nil && s.Expense.Executed == nil {
		return fmt.Errorf("at least one executed source is required (revenue.executed or expense.executed)")
	}

	for _, in := range s.inputs() {
		if err := in.settings.Validate(); err != nil {
			return fmt.Errorf("%s: %w", in.path, err)
		}
	}

	return s.validateRender()
}

func (s *Settings) validateRender() error {
	if s.Year < 1900 || s.Year > 9999 {
		return fmt.Errorf("year out of range: %d", s.Year)
	}

	if len(s.Months) > 0 {
		if _, err := normalizer.NewMonthMap(s.Months); err != nil {
			return fmt.Errorf("months: %w", err)
		}
	}

	if _, err := decimal.NewFromString(s.Pivot.Epsilon); err != nil {
		return fmt.Errorf("pivot.epsilon is not a number: %q", s.Pivot.Epsilon)
	}

	if !reporter.OutputFormat(s.Output.Format).IsValid() {
		return fmt.Errorf("invalid output format %q. Valid formats: html, console, json, csv, xlsx", s.Output.Format)
	}
	if reporter.OutputFormat(s.Output.Format).IsBinary() && strings.TrimSpace(s.Output.File) == "" {
		return fmt.Errorf("output format %s requires an output file", s.Output.Format)
	}

	return nil
}

type namedInput struct {
	path     string
	role     models.SourceRole
	settings *InputSettings
}

func (s *Settings) inputs() []namedInput {
	var out []namedInput
	for _, flow := range []struct {
		name string
		set  FlowSettings
	}{{"revenue", s.Revenue}, {"expense", s.Expense}} {
		for _, in := range []namedInput{
			{role: models.RoleExecuted, settings: flow.set.Executed},
			{role: models.RolePlanned, settings: flow.set.Planned},
			{role: models.RoleForecast, settings: flow.set.Forecast},
		} {
			if in.settings == nil {
				continue
			}
			in.path = fmt.Sprintf("%s.%s", flow.name, in.role)
			out = append(out, in)
		}
	}
	return out
}

// Validate checks one input
func (in *InputSettings) Validate() error {
	if err := in.SourceSpec.Validate(); err != nil {
		return err
	}
	if in.Layout != "" {
		if _, ok := normalizer.GetLayout(in.Layout); !ok {
			return fmt.Errorf("unknown layout %q. Valid layouts: %s", in.Layout, strings.Join(normalizer.LayoutNames(), ", "))
		}
	}
	return nil
}

// NormalizerConfig returns the layout of the input for the given role
func (in *InputSettings) NormalizerConfig(role models.SourceRole) (*normalizer.Config, error) {
	name := in.Layout
	if name == "" {
		name = string(role)
	}

	layout, ok := normalizer.GetLayout(name)
	if !ok {
		return nil, fmt.Errorf("unknown layout %q", name)
	}

	if in.Columns.Category != "" {
		layout.CategoryColumn = in.Columns.Category
	}
	if in.Columns.Month != "" {
		layout.MonthColumn = in.Columns.Month
	}
	if in.Columns.Value != "" {
		layout.ValueColumn = in.Columns.Value
	}
	for standard, aliases := range in.Columns.Aliases {
		layout.ColumnAliases[standard] = append(layout.ColumnAliases[standard], aliases...)
	}

	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return layout, nil
}

// MonthMap returns the configured month labels
func (s *Settings) MonthMap() (*normalizer.MonthMap, error) {
	if len(s.Months) == 0 {
		return normalizer.DefaultMonthMap(), nil
	}
	return normalizer.NewMonthMap(s.Months)
}

// ServiceConfig creates the report service configuration
func (s *Settings) ServiceConfig() (*reconciler.ServiceConfig, error) {
	months, err := s.MonthMap()
	if err != nil {
		return nil, err
	}

	epsilon, err := decimal.NewFromString(s.Pivot.Epsilon)
	if err != nil {
		return nil, fmt.Errorf("invalid pivot epsilon: %w", err)
	}

	pivotConfig := pivot.DefaultConfig()
	pivotConfig.Epsilon = epsilon
	pivotConfig.Months = months
	if s.Pivot.TotalRowLabel != "" {
		pivotConfig.TotalRowLabel = s.Pivot.TotalRowLabel
	}
	if s.Pivot.AnnualColumnLabel != "" {
		pivotConfig.AnnualColumnLabel = s.Pivot.AnnualColumnLabel
	}

	format := s.Format

	config := &reconciler.ServiceConfig{
		Months: months,
		Summary: reconciler.SummaryOptions{
			Label:                  s.Summary.Label,
			ExcludeRevenueCategory: s.Summary.ExcludeRevenueCategory,
		},
		Pivot:             pivotConfig,
		Format:            &format,
		Titles:            s.Titles,
		RevenueCategories: s.RevenueCategories,
		ExpenseCategories: s.ExpenseCategories,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ReportRequest creates the request of one run
func (s *Settings) ReportRequest(mapping *normalizer.CategoryMapping) (*reconciler.ReportRequest, error) {
	req := &reconciler.ReportRequest{
		Year:    s.Year,
		Title:   s.Title,
		Mapping: mapping,
	}

	build := func(in *InputSettings, role models.SourceRole) (*reconciler.SourceInput, error) {
		if in == nil {
			return nil, nil
		}
		layout, err := in.NormalizerConfig(role)
		if err != nil {
			return nil, err
		}
		spec := in.SourceSpec
		spec.Params = make(map[string]string, len(in.Params)+1)
		for k, v := range in.Params {
			spec.Params[k] = v
		}
		if _, ok := spec.Params["year"]; !ok {
			spec.Params["year"] = fmt.Sprint(s.Year)
		}
		return &reconciler.SourceInput{Spec: &spec, Layout: layout}, nil
	}

	var err error
	for _, target := range []struct {
		set  *reconciler.SourceSet
		from FlowSettings
	}{{&req.Revenue, s.Revenue}, {&req.Expense, s.Expense}} {
		if target.set.Executed, err = build(target.from.Executed, models.RoleExecuted); err != nil {
			return nil, err
		}
		if target.set.Planned, err = build(target.from.Planned, models.RolePlanned); err != nil {
			return nil, err
		}
		if target.set.Forecast, err = build(target.from.Forecast, models.RoleForecast); err != nil {
			return nil, err
		}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// MappingParseConfig returns the CSV options of the de-para file
func (s *Settings) MappingParseConfig() (*parsers.ParseConfig, error) {
	config := parsers.DefaultParseConfig()
	delimiter, err := parsers.ParseDelimiter(s.MappingDelimiter)
	if err != nil {
		return nil, fmt.Errorf("mapping_delimiter: %w", err)
	}
	config.Delimiter = delimiter
	return config, nil
}

// ReportConfig creates the renderer configuration
func (s *Settings) ReportConfig() (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(s.Output.Format)
	config.TemplateFile = s.Output.Template
	config.UseColors = s.Output.Colors

	delimiter, err := parsers.ParseDelimiter(s.Output.CSVDelimiter)
	if err != nil {
		return nil, fmt.Errorf("output.csv_delimiter: %w", err)
	}
	config.CSVDelimiter = delimiter

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoaderConfig returns the source loader configuration
func (s *Settings) LoaderConfig() *sources.LoaderConfig {
	config := s.Loader
	return &config
}

// LoggerConfig returns the logger configuration. verbose forces debug level.
func (s *Settings) LoggerConfig(verbose bool) *logger.Config {
	config := logger.DefaultConfig()
	if s.Log.Level != "" {
		config.Level = logger.Level(strings.ToLower(s.Log.Level))
	}
	if verbose {
		config.Level = logger.DebugLevel
	}
	if s.Log.Format != "" {
		config.Format = logger.Format(strings.ToLower(s.Log.Format))
	}
	if s.Log.File != "" {
		config.Output = logger.FileOutput
		config.File = s.Log.File
	}
	return config
}
