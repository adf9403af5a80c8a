package reconciler

import (
	"fmt"
	"sort"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/pkg/errors"

	"github.com/shopspring/decimal"
)

// Decide applies the precedence policy to one cell. Absent sources are
// passed as zero.
//
//  1. forecast > 0: the larger of forecast and executed, tagged combined when
//     the execution has already met the forecast, else forecast
//  2. executed != 0: executed
//  3. all three zero: zero, empty
//  4. otherwise: planned
func Decide(executed, planned, forecast decimal.Decimal) (decimal.Decimal, models.Provenance) {
	switch {
	case forecast.IsPositive():
		if executed.GreaterThanOrEqual(forecast) {
			return executed, models.ProvenanceCombined
		}
		return forecast, models.ProvenanceForecast
	case !executed.IsZero():
		return executed, models.ProvenanceExecuted
	case planned.IsZero() && forecast.IsZero():
		return decimal.Zero, models.ProvenanceEmpty
	default:
		return planned, models.ProvenancePlanned
	}
}

// Merge outer-joins the three normalized sources on (category, month) and
// reconciles every key present in any of them. Each input must already be
// unique per key. The result is sorted by month and then category.
func Merge(executed, planned, forecast []models.SourceAmount) ([]models.LedgerEntry, error) {
	entries := make(map[models.Key]*models.LedgerEntry)

	inputs := []struct {
		role models.SourceRole
		rows []models.SourceAmount
		set  func(e *models.LedgerEntry, v decimal.Decimal)
	}{
		{models.RoleExecuted, executed, func(e *models.LedgerEntry, v decimal.Decimal) { e.Executed = present(v) }},
		{models.RolePlanned, planned, func(e *models.LedgerEntry, v decimal.Decimal) { e.Planned = present(v) }},
		{models.RoleForecast, forecast, func(e *models.LedgerEntry, v decimal.Decimal) { e.Forecast = present(v) }},
	}

	for _, input := range inputs {
		seen := make(map[models.Key]bool, len(input.rows))
		for _, row := range input.rows {
			key := row.Key()
			if err := validateKey(key); err != nil {
				return nil, errors.ReconciliationError(errors.CodeDataInconsistent, "merge", err).
					WithContext("source", string(input.role))
			}
			if seen[key] {
				return nil, errors.ReconciliationError(errors.CodeDataInconsistent, "merge",
					fmt.Errorf("duplicate key %s in %s source", key, input.role)).
					WithContext("source", string(input.role)).
					WithContext("key", key.String())
			}
			seen[key] = true

			entry, exists := entries[key]
			if !exists {
				entry = &models.LedgerEntry{Category: key.Category, Month: key.Month}
				entries[key] = entry
			}
			input.set(entry, row.Value)
		}
	}

	ledger := make([]models.LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		entry.FinalValue, entry.Provenance = Decide(
			valueOrZero(entry.Executed),
			valueOrZero(entry.Planned),
			valueOrZero(entry.Forecast),
		)
		ledger = append(ledger, *entry)
	}
	SortLedger(ledger)

	return ledger, nil
}

// SortLedger orders entries by month and then category
func SortLedger(ledger []models.LedgerEntry) {
	sort.Slice(ledger, func(i, j int) bool {
		if ledger[i].Month != ledger[j].Month {
			return ledger[i].Month < ledger[j].Month
		}
		return ledger[i].Category < ledger[j].Category
	})
}

func validateKey(key models.Key) error {
	if key.Category == "" {
		return fmt.Errorf("empty category at month %d", key.Month)
	}
	if key.Month < 1 || key.Month > 12 {
		return fmt.Errorf("month %d out of range for %s", key.Month, key.Category)
	}
	return nil
}

func present(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: v, Valid: true}
}

func valueOrZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}
