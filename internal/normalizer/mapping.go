package normalizer

import (
	"fmt"
	"sort"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"github.com/schollz/closestmatch"
	"github.com/shopspring/decimal"
)

// mappingSource labels warnings raised while applying a category mapping
const mappingSource = "de-para"

// MappingEntry translates a finance-system category into an execution-system
// category. An empty Flow applies to both revenue and expense.
type MappingEntry struct {
	From string      `json:"from" yaml:"from"`
	To   string      `json:"to" yaml:"to"`
	Flow models.Flow `json:"flow,omitempty" yaml:"flow,omitempty"`
}

// CategoryMapping is the de-para table
type CategoryMapping struct {
	Entries []MappingEntry `json:"entries" yaml:"entries"`

	index   map[string][]MappingEntry
	matcher *closestmatch.ClosestMatch
}

// NewCategoryMapping normalizes and indexes mapping entries. A label mapped
// to two different targets for the same flow is rejected.
func NewCategoryMapping(entries []MappingEntry) (*CategoryMapping, error) {
	m := &CategoryMapping{index: make(map[string][]MappingEntry)}

	for i, entry := range entries {
		entry.From = NormalizeCategory(entry.From)
		entry.To = NormalizeCategory(entry.To)
		if entry.From == "" || entry.To == "" {
			return nil, fmt.Errorf("mapping entry %d has an empty label", i+1)
		}

		duplicate := false
		for _, existing := range m.index[entry.From] {
			if !flowsOverlap(existing.Flow, entry.Flow) {
				continue
			}
			if existing.To != entry.To {
				return nil, fmt.Errorf("category %q is mapped to both %q and %q", entry.From, existing.To, entry.To)
			}
			duplicate = true
		}
		if duplicate {
			continue
		}

		m.Entries = append(m.Entries, entry)
		m.index[entry.From] = append(m.index[entry.From], entry)
	}

	if len(m.index) > 0 {
		labels := make([]string, 0, len(m.index))
		for from := range m.index {
			labels = append(labels, from)
		}
		sort.Strings(labels)
		m.matcher = closestmatch.New(labels, []int{2, 3})
	}

	return m, nil
}

func flowsOverlap(a, b models.Flow) bool {
	return a == "" || b == "" || a == b
}

// Len returns the number of entries
func (m *CategoryMapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Entries)
}

// Lookup returns the target category for a label and flow. known reports
// whether the label has any entry at all, for any flow.
func (m *CategoryMapping) Lookup(from string, flow models.Flow) (to string, ok bool, known bool) {
	entries, known := m.index[NormalizeCategory(from)]
	for _, entry := range entries {
		if entry.Flow == "" || flow == "" || entry.Flow == flow {
			return entry.To, true, true
		}
	}
	return "", false, known
}

// Suggest returns the closest known label, or "" when none is close
func (m *CategoryMapping) Suggest(label string) string {
	if m.matcher == nil {
		return ""
	}
	return m.matcher.Closest(NormalizeCategory(label))
}

// MappingStats records what happened while applying a mapping
type MappingStats struct {
	RowsIn         int                   `json:"rows_in"`
	RowsMapped     int                   `json:"rows_mapped"`
	Unmapped       int                   `json:"unmapped"`
	FilteredByFlow int                   `json:"filtered_by_flow"`
	Output         int                   `json:"output"`
	Warnings       []*errors.ReportError `json:"-"`
}

// ApplyMapping translates the categories of normalized rows. Rows whose
// category has no entry are dropped with a key mapping warning. Rows whose
// entries all belong to the other flow are excluded silently. Mapped rows
// are summed again on the translated key.
func ApplyMapping(rows []models.SourceAmount, mapping *CategoryMapping, flow models.Flow) ([]models.SourceAmount, *MappingStats) {
	stats := &MappingStats{RowsIn: len(rows)}
	log := logger.GetGlobalLogger().WithComponent("normalizer").WithField("source", mappingSource)

	if mapping == nil || mapping.Len() == 0 {
		stats.Output = len(rows)
		return rows, stats
	}

	sums := make(map[models.Key]decimal.Decimal)
	warned := make(map[string]bool)

	for _, row := range rows {
		to, ok, known := mapping.Lookup(row.Category, flow)
		if !ok {
			if known {
				stats.FilteredByFlow++
				continue
			}
			stats.Unmapped++
			if !warned[row.Category] {
				warned[row.Category] = true
				err := errors.KeyMappingError(mappingSource, 0, "category", row.Category)
				if suggestion := mapping.Suggest(row.Category); suggestion != "" {
					err.WithSuggestion(fmt.Sprintf("no mapping entry; closest known label is %q", suggestion))
				}
				stats.Warnings = append(stats.Warnings, err)
				log.WithField("category", row.Category).Warn(err.Error())
			}
			continue
		}

		stats.RowsMapped++
		key := models.Key{Category: to, Month: row.Month}
		sums[key] = sums[key].Add(row.Value)
	}

	out := make([]models.SourceAmount, 0, len(sums))
	for key, value := range sums {
		out = append(out, models.SourceAmount{Category: key.Category, Month: key.Month, Value: value})
	}
	SortAmounts(out)
	stats.Output = len(out)

	log.WithFields(logger.Fields{
		"flow":             flow,
		"rows_in":          stats.RowsIn,
		"rows_mapped":      stats.RowsMapped,
		"unmapped":         stats.Unmapped,
		"filtered_by_flow": stats.FilteredByFlow,
	}).Info("Category mapping applied")

	return out, stats
}
