package normalizer

import (
	"fmt"
	"sort"
	"strings"
)

// Standard column names used as ColumnAliases keys
const (
	ColumnCategory = "category"
	ColumnMonth    = "month"
	ColumnValue    = "value"
)

// Config describes the layout of one source table
type Config struct {
	Name           string              `json:"name" mapstructure:"name"`
	CategoryColumn string              `json:"category_column" mapstructure:"category_column"`
	MonthColumn    string              `json:"month_column" mapstructure:"month_column"`
	ValueColumn    string              `json:"value_column" mapstructure:"value_column"`
	ColumnAliases  map[string][]string `json:"column_aliases,omitempty" mapstructure:"column_aliases"`
	MaxWarnings    int                 `json:"max_warnings" mapstructure:"max_warnings"`
	Months         *MonthMap           `json:"-" mapstructure:"-"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CategoryColumn) == "" {
		return fmt.Errorf("category column cannot be empty")
	}

	if strings.TrimSpace(c.MonthColumn) == "" {
		return fmt.Errorf("month column cannot be empty")
	}

	if strings.TrimSpace(c.ValueColumn) == "" {
		return fmt.Errorf("value column cannot be empty")
	}

	for standard := range c.ColumnAliases {
		switch standard {
		case ColumnCategory, ColumnMonth, ColumnValue:
		default:
			return fmt.Errorf("unknown column alias key: %s", standard)
		}
	}

	if c.MaxWarnings < 0 {
		return fmt.Errorf("max warnings cannot be negative")
	}

	return nil
}

// GetColumnNames returns the candidate column names for a standard column,
// the configured name first and then its aliases.
func (c *Config) GetColumnNames(standardName string) []string {
	var names []string
	switch standardName {
	case ColumnCategory:
		names = append(names, c.CategoryColumn)
	case ColumnMonth:
		names = append(names, c.MonthColumn)
	case ColumnValue:
		names = append(names, c.ValueColumn)
	default:
		names = append(names, standardName)
	}
	return append(names, c.ColumnAliases[standardName]...)
}

// DefaultConfig returns the layout of the execution queries
func DefaultConfig() *Config {
	return &Config{
		Name:           "execucao",
		CategoryColumn: "Grupo",
		MonthColumn:    "MesNum",
		ValueColumn:    "Valor",
		ColumnAliases: map[string][]string{
			ColumnMonth: {"Mes", "Mês"},
		},
		MaxWarnings: 100,
	}
}

// Predefined source layouts
var (
	// ExecutionLayout is produced by the revenue and expense queries
	ExecutionLayout = DefaultConfig()

	// ForecastLayout is the hand-maintained forecast spreadsheet
	ForecastLayout = &Config{
		Name:           "previsao",
		CategoryColumn: "Grupo",
		MonthColumn:    "Mes",
		ValueColumn:    "Valor",
		ColumnAliases: map[string][]string{
			ColumnMonth: {"Mês", "MesNum"},
		},
		MaxWarnings: 100,
	}

	// PlanningLayout is the plan extract keyed by finance-system nature
	PlanningLayout = &Config{
		Name:           "ppa",
		CategoryColumn: "Descrição Natureza",
		MonthColumn:    "Mês",
		ValueColumn:    "Valor",
		ColumnAliases: map[string][]string{
			ColumnCategory: {"Natureza", "Grupo"},
			ColumnMonth:    {"Mes", "MesNum"},
			ColumnValue:    {"Planejado"},
		},
		MaxWarnings: 100,
	}
)

// GetLayout returns a copy of a predefined layout by name
func GetLayout(name string) (*Config, bool) {
	var layout *Config
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "execucao", "executed":
		layout = ExecutionLayout
	case "previsao", "forecast":
		layout = ForecastLayout
	case "ppa", "planned":
		layout = PlanningLayout
	default:
		return nil, false
	}

	cp := *layout
	cp.ColumnAliases = make(map[string][]string, len(layout.ColumnAliases))
	for k, v := range layout.ColumnAliases {
		cp.ColumnAliases[k] = append([]string(nil), v...)
	}
	return &cp, true
}

// LayoutNames lists the predefined layouts
func LayoutNames() []string {
	names := []string{ExecutionLayout.Name, ForecastLayout.Name, PlanningLayout.Name}
	sort.Strings(names)
	return names
}
