package pivot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/internal/normalizer"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config holds the pivot options
type Config struct {
	// Epsilon is the activity threshold: a month column is kept only when the
	// sum of absolute values across categories exceeds it.
	Epsilon           decimal.Decimal      `json:"epsilon"`
	Months            *normalizer.MonthMap `json:"-"`
	TotalRowLabel     string               `json:"total_row_label"`
	AnnualColumnLabel string               `json:"annual_column_label"`
	// Categories always get a row, even with no ledger entries
	Categories []string `json:"categories,omitempty"`
}

// DefaultConfig returns the default pivot configuration
func DefaultConfig() *Config {
	return &Config{
		Epsilon:           decimal.RequireFromString("0.01"),
		Months:            normalizer.DefaultMonthMap(),
		TotalRowLabel:     "TOTAL GERAL",
		AnnualColumnLabel: "Total Anual",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Epsilon.IsNegative() {
		return fmt.Errorf("epsilon cannot be negative, got %s", c.Epsilon)
	}
	if strings.TrimSpace(c.TotalRowLabel) == "" {
		return fmt.Errorf("total row label cannot be empty")
	}
	if strings.TrimSpace(c.AnnualColumnLabel) == "" {
		return fmt.Errorf("annual column label cannot be empty")
	}
	return nil
}

// WithCategories returns a copy of the configuration with the given
// always-present categories
func (c *Config) WithCategories(categories []string) *Config {
	cp := *c
	cp.Categories = append([]string(nil), categories...)
	return &cp
}

// Builder reshapes long-form ledgers into pivot tables
type Builder struct {
	config *Config
	months *normalizer.MonthMap
	logger logger.Logger
}

// NewBuilder creates a new pivot builder
func NewBuilder(config *Config) (*Builder, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "pivot", config.Epsilon.String(), err)
	}

	months := config.Months
	if months == nil {
		months = normalizer.DefaultMonthMap()
	}

	return &Builder{
		config: config,
		months: months,
		logger: logger.GetGlobalLogger().WithComponent("pivot"),
	}, nil
}

// Config returns the builder configuration
func (b *Builder) Config() *Config {
	return b.config
}

// Build pivots a ledger into a table with one row per category and one
// column per active month. Absent cells are filled with empty cells. Every
// row gets an annual total over the active months and a total row sums all
// columns. Rows are sorted by category and never filtered.
func (b *Builder) Build(title string, tableType models.TableType, ledger []models.LedgerEntry) (*models.PivotTable, error) {
	if !tableType.IsValid() {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "pivot",
			fmt.Errorf("invalid table type: %s", tableType))
	}

	grid := make(map[string]*[12]models.Cell)
	filled := make(map[models.Key]bool)
	collisions := 0

	ensureRow := func(category string) *[12]models.Cell {
		row, ok := grid[category]
		if !ok {
			row = new([12]models.Cell)
			for i := range row {
				row[i] = models.EmptyCell()
			}
			grid[category] = row
		}
		return row
	}

	for _, category := range b.config.Categories {
		if c := normalizer.NormalizeCategory(category); c != "" {
			ensureRow(c)
		}
	}

	for _, entry := range ledger {
		if entry.Month < 1 || entry.Month > 12 {
			return nil, errors.ReconciliationError(errors.CodeDataInconsistent, "pivot",
				fmt.Errorf("month %d out of range for %s", entry.Month, entry.Category))
		}

		key := entry.Key()
		if filled[key] {
			collisions++
			continue
		}
		filled[key] = true

		row := ensureRow(entry.Category)
		row[entry.Month-1] = models.Cell{Value: entry.FinalValue, Provenance: entry.Provenance}
	}

	if collisions > 0 {
		b.logger.WithFields(logger.Fields{
			"title":      title,
			"collisions": collisions,
		}).Warn("Colliding ledger entries, kept the first of each")
	}

	active := b.activeMonths(grid)

	categories := make([]string, 0, len(grid))
	for category := range grid {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	table := &models.PivotTable{
		Title:       title,
		Type:        tableType,
		Months:      active,
		MonthLabels: make([]string, len(active)),
		AnnualLabel: b.config.AnnualColumnLabel,
		Rows:        make([]models.PivotRow, 0, len(categories)),
	}
	for i, m := range active {
		table.MonthLabels[i] = b.months.Label(m)
	}

	columnTotals := make([]decimal.Decimal, len(active))
	for i := range columnTotals {
		columnTotals[i] = decimal.Zero
	}
	grandTotal := decimal.Zero

	for _, category := range categories {
		full := grid[category]
		row := models.PivotRow{
			Category: category,
			Cells:    make([]models.Cell, len(active)),
		}

		annual := decimal.Zero
		for i, m := range active {
			cell := full[m-1]
			row.Cells[i] = cell
			annual = annual.Add(cell.Value)
			columnTotals[i] = columnTotals[i].Add(cell.Value)
		}
		row.Annual = models.TotalCell(annual)
		grandTotal = grandTotal.Add(annual)

		table.Rows = append(table.Rows, row)
	}

	table.Total = models.PivotRow{
		Category: b.config.TotalRowLabel,
		Cells:    make([]models.Cell, len(active)),
		Annual:   models.TotalCell(grandTotal),
	}
	for i, total := range columnTotals {
		table.Total.Cells[i] = models.TotalCell(total)
	}

	b.logger.WithFields(logger.Fields{
		"title":         title,
		"type":          tableType,
		"rows":          len(table.Rows),
		"active_months": len(active),
	}).Debug("Pivot table built")

	return table, nil
}

// activeMonths returns, in calendar order, the months whose absolute
// activity across all categories exceeds epsilon
func (b *Builder) activeMonths(grid map[string]*[12]models.Cell) []int {
	var active []int
	for m := 1; m <= 12; m++ {
		activity := decimal.Zero
		for _, row := range grid {
			activity = activity.Add(row[m-1].Value.Abs())
		}
		if activity.GreaterThan(b.config.Epsilon) {
			active = append(active, m)
		}
	}
	if active == nil {
		active = []int{}
	}
	return active
}
