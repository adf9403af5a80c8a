package normalizer

import (
	"sort"
	"strings"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeCategory trims a category label and upper-cases it with pt-BR
// rules. Applying it twice yields the same label as applying it once.
func NormalizeCategory(label string) string {
	return strings.TrimSpace(cases.Upper(language.BrazilianPortuguese).String(strings.TrimSpace(label)))
}

// Stats records what happened to the rows of one table
type Stats struct {
	Source           string                `json:"source"`
	RowsRead         int                   `json:"rows_read"`
	RowsKept         int                   `json:"rows_kept"`
	MonthFailures    int                   `json:"month_failures"`
	CategoryFailures int                   `json:"category_failures"`
	CoercionFailures int                   `json:"coercion_failures"`
	Duplicates       int                   `json:"duplicates"`
	Output           int                   `json:"output"`
	Warnings         []*errors.ReportError `json:"-"`
}

// Dropped returns the number of rows excluded from the output
func (s *Stats) Dropped() int {
	return s.MonthFailures + s.CategoryFailures + s.CoercionFailures
}

// Normalizer turns raw tables into join-compatible source amounts
type Normalizer struct {
	config *Config
	months *MonthMap
	logger logger.Logger
}

// NewNormalizer creates a normalizer for one table layout
func NewNormalizer(config *Config) (*Normalizer, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "normalizer", config.Name, err)
	}

	months := config.Months
	if months == nil {
		months = DefaultMonthMap()
	}

	return &Normalizer{
		config: config,
		months: months,
		logger: logger.GetGlobalLogger().WithComponent("normalizer"),
	}, nil
}

// Months returns the month map in use
func (n *Normalizer) Months() *MonthMap {
	return n.months
}

// Normalize canonicalizes a raw table. Rows with an unmappable month, an
// empty category or an unparsable value are dropped and counted. Rows that
// share a (category, month) key are summed. The output is sorted by month
// and then category. A required column missing from a non-empty table is a
// fatal schema violation.
func (n *Normalizer) Normalize(table *models.RawTable) ([]models.SourceAmount, *Stats, error) {
	stats := &Stats{}
	if table != nil {
		stats.Source = table.Name
	}

	if table.IsEmpty() {
		n.logger.WithField("source", stats.Source).Debug("Empty table, nothing to normalize")
		return []models.SourceAmount{}, stats, nil
	}

	catIdx, err := n.resolveColumn(table, ColumnCategory)
	if err != nil {
		return nil, stats, err
	}
	monthIdx, err := n.resolveColumn(table, ColumnMonth)
	if err != nil {
		return nil, stats, err
	}
	valueIdx, err := n.resolveColumn(table, ColumnValue)
	if err != nil {
		return nil, stats, err
	}

	collector := errors.NewCollector(n.config.MaxWarnings)
	sums := make(map[models.Key]decimal.Decimal)

	for _, record := range table.Records {
		stats.RowsRead++

		rawMonth := record.Field(monthIdx)
		month, ok := n.months.Number(rawMonth)
		if !ok {
			stats.MonthFailures++
			n.warn(collector, errors.KeyMappingError(stats.Source, record.Line, "month", rawMonth))
			continue
		}

		category := NormalizeCategory(record.Field(catIdx))
		if category == "" {
			stats.CategoryFailures++
			n.warn(collector, errors.KeyMappingError(stats.Source, record.Line, "category", record.Field(catIdx)))
			continue
		}

		rawValue := record.Field(valueIdx)
		value, err := ParseAmount(rawValue)
		if err != nil {
			stats.CoercionFailures++
			n.warn(collector, errors.CoercionError(stats.Source, record.Line, rawValue, err))
			continue
		}

		stats.RowsKept++
		key := models.Key{Category: category, Month: month}
		if prev, exists := sums[key]; exists {
			stats.Duplicates++
			sums[key] = prev.Add(value)
		} else {
			sums[key] = value
		}
	}

	out := make([]models.SourceAmount, 0, len(sums))
	for key, value := range sums {
		out = append(out, models.SourceAmount{Category: key.Category, Month: key.Month, Value: value})
	}
	SortAmounts(out)

	stats.Output = len(out)
	stats.Warnings = collector.Errors()

	n.logger.WithFields(logger.Fields{
		"source":     stats.Source,
		"rows_read":  stats.RowsRead,
		"rows_kept":  stats.RowsKept,
		"dropped":    stats.Dropped(),
		"duplicates": stats.Duplicates,
		"output":     stats.Output,
	}).Info("Table normalized")

	return out, stats, nil
}

func (n *Normalizer) resolveColumn(table *models.RawTable, standard string) (int, error) {
	candidates := n.config.GetColumnNames(standard)
	for _, name := range candidates {
		if idx := table.ColumnIndex(name); idx >= 0 {
			return idx, nil
		}
	}
	return -1, errors.SchemaError(table.Name, candidates[0], table.Columns).
		WithContext("aliases", candidates[1:])
}

func (n *Normalizer) warn(collector *errors.Collector, err *errors.ReportError) {
	collector.Add(err)
	n.logger.WithFields(logger.Fields{
		"source": err.Context["source"],
		"line":   err.Context["line"],
		"code":   err.Code,
	}).Warn(err.Message)
}

// SortAmounts orders rows by month and then category
func SortAmounts(rows []models.SourceAmount) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Month != rows[j].Month {
			return rows[i].Month < rows[j].Month
		}
		return rows[i].Category < rows[j].Category
	})
}
