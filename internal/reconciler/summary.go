package reconciler

import (
	"fmt"
	"sort"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/internal/normalizer"

	"github.com/shopspring/decimal"
)

// DefaultSummaryLabel is the category of the surplus/deficit row
const DefaultSummaryLabel = "SUPERÁVIT/DÉFICIT"

// SummaryOptions parameterizes the surplus/deficit aggregation
type SummaryOptions struct {
	// Label overrides the summary category. When empty the default label is
	// used, suffixed with the excluded category if there is one.
	Label string `json:"label,omitempty"`

	// ExcludeRevenueCategory removes one revenue category before subtracting
	ExcludeRevenueCategory string `json:"exclude_revenue_category,omitempty"`
}

// ResolvedLabel returns the category label the summary rows will carry
func (o SummaryOptions) ResolvedLabel() string {
	if o.Label != "" {
		return o.Label
	}
	if excluded := normalizer.NormalizeCategory(o.ExcludeRevenueCategory); excluded != "" {
		return fmt.Sprintf("%s (SEM %s)", DefaultSummaryLabel, excluded)
	}
	return DefaultSummaryLabel
}

type monthTotals struct {
	executed, planned, forecast decimal.NullDecimal
	final                       decimal.Decimal
}

func (t *monthTotals) add(e models.LedgerEntry, sign int64) {
	s := decimal.NewFromInt(sign)
	t.executed = addNull(t.executed, e.Executed, s)
	t.planned = addNull(t.planned, e.Planned, s)
	t.forecast = addNull(t.forecast, e.Forecast, s)
	t.final = t.final.Add(e.FinalValue.Mul(s))
}

func addNull(acc, v decimal.NullDecimal, sign decimal.Decimal) decimal.NullDecimal {
	if !v.Valid {
		return acc
	}
	if !acc.Valid {
		return decimal.NullDecimal{Decimal: v.Decimal.Mul(sign), Valid: true}
	}
	return decimal.NullDecimal{Decimal: acc.Decimal.Add(v.Decimal.Mul(sign)), Valid: true}
}

// Summarize derives one summary entry per month present in either ledger:
// revenue minus expense, applied to the reconciled value and to each source
// column. A side with no entries for a month counts as zero.
func Summarize(revenue, expense []models.LedgerEntry, opts SummaryOptions) []models.LedgerEntry {
	excluded := normalizer.NormalizeCategory(opts.ExcludeRevenueCategory)
	label := opts.ResolvedLabel()

	totals := make(map[int]*monthTotals)
	accumulate := func(entries []models.LedgerEntry, sign int64) {
		for _, e := range entries {
			if sign > 0 && excluded != "" && e.Category == excluded {
				continue
			}
			t, ok := totals[e.Month]
			if !ok {
				t = &monthTotals{final: decimal.Zero}
				totals[e.Month] = t
			}
			t.add(e, sign)
		}
	}
	accumulate(revenue, 1)
	accumulate(expense, -1)

	months := make([]int, 0, len(totals))
	for m := range totals {
		months = append(months, m)
	}
	sort.Ints(months)

	out := make([]models.LedgerEntry, 0, len(months))
	for _, m := range months {
		t := totals[m]
		out = append(out, models.LedgerEntry{
			Category:   label,
			Month:      m,
			Executed:   t.executed,
			Planned:    t.planned,
			Forecast:   t.forecast,
			FinalValue: t.final,
			Provenance: models.ProvenanceSummary,
		})
	}

	return out
}

// ComputeKPIs totals the reconciled ledgers for the report prose. When
// excluded names a revenue category, NetResultExcluding leaves it out.
func ComputeKPIs(revenue, expense []models.LedgerEntry, excluded string) models.KPIs {
	excluded = normalizer.NormalizeCategory(excluded)

	totalRevenue := models.SumFinal(revenue)
	totalExpense := models.SumFinal(expense)

	excludedRevenue := decimal.Zero
	if excluded != "" {
		for _, e := range revenue {
			if e.Category == excluded {
				excludedRevenue = excludedRevenue.Add(e.FinalValue)
			}
		}
	}

	net := totalRevenue.Sub(totalExpense)
	return models.KPIs{
		TotalRevenue:       totalRevenue,
		TotalExpense:       totalExpense,
		NetResult:          net,
		NetResultExcluding: net.Sub(excludedRevenue),
		ExcludedCategory:   excluded,
	}
}
