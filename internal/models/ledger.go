package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Provenance records which rule produced a reconciled value
type Provenance string

const (
	ProvenanceExecuted Provenance = "executed"
	ProvenanceForecast Provenance = "forecast"
	ProvenancePlanned  Provenance = "planned"
	ProvenanceCombined Provenance = "combined"
	ProvenanceSummary  Provenance = "summary"
	ProvenanceEmpty    Provenance = "empty"
	ProvenanceTotal    Provenance = "total"
)

// String returns the string representation of Provenance
func (p Provenance) String() string {
	return string(p)
}

// IsValid checks if the provenance is one of the known values
func (p Provenance) IsValid() bool {
	switch p {
	case ProvenanceExecuted, ProvenanceForecast, ProvenancePlanned,
		ProvenanceCombined, ProvenanceSummary, ProvenanceEmpty, ProvenanceTotal:
		return true
	}
	return false
}

// Flow separates revenue lines from expense lines
type Flow string

const (
	FlowRevenue Flow = "revenue"
	FlowExpense Flow = "expense"
)

// ParseFlow accepts the English names and the Portuguese labels used in
// category mapping tables. An empty string yields an empty Flow.
func ParseFlow(s string) (Flow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "revenue", "receita", "receitas":
		return FlowRevenue, nil
	case "expense", "despesa", "despesas":
		return FlowExpense, nil
	default:
		return "", fmt.Errorf("unknown flow: %s", s)
	}
}

// SourceRole identifies which of the three competing inputs a table feeds
type SourceRole string

const (
	RoleExecuted SourceRole = "executed"
	RolePlanned  SourceRole = "planned"
	RoleForecast SourceRole = "forecast"
)

// IsValid checks if the role is valid
func (r SourceRole) IsValid() bool {
	return r == RoleExecuted || r == RolePlanned || r == RoleForecast
}

// SourceAmount is one normalized row of one source. Within a source the
// (Category, Month) pair is unique.
type SourceAmount struct {
	Category string          `json:"category"`
	Month    int             `json:"month"`
	Value    decimal.Decimal `json:"value"`
}

// Key returns the join key of the row
func (s SourceAmount) Key() Key {
	return Key{Category: s.Category, Month: s.Month}
}

// Key is the (category, month) join key
type Key struct {
	Category string
	Month    int
}

// String returns a string representation of the key
func (k Key) String() string {
	return fmt.Sprintf("%s/%02d", k.Category, k.Month)
}

// LedgerEntry is one reconciled (category, month) cell in long form.
// An invalid NullDecimal marks a source that had no row for the key.
type LedgerEntry struct {
	Category   string              `json:"category"`
	Month      int                 `json:"month"`
	Executed   decimal.NullDecimal `json:"executed"`
	Planned    decimal.NullDecimal `json:"planned"`
	Forecast   decimal.NullDecimal `json:"forecast"`
	FinalValue decimal.Decimal     `json:"final_value"`
	Provenance Provenance          `json:"provenance"`
}

// Key returns the join key of the entry
func (e LedgerEntry) Key() Key {
	return Key{Category: e.Category, Month: e.Month}
}

// Validate performs basic validation on the LedgerEntry
func (e LedgerEntry) Validate() error {
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("ledger entry category cannot be empty")
	}
	if e.Month < 1 || e.Month > 12 {
		return fmt.Errorf("ledger entry month out of range: %d", e.Month)
	}
	if !e.Provenance.IsValid() {
		return fmt.Errorf("invalid provenance: %s", e.Provenance)
	}
	return nil
}

// String returns a string representation of the LedgerEntry
func (e LedgerEntry) String() string {
	return fmt.Sprintf("LedgerEntry{%s, Final: %s, Provenance: %s}",
		e.Key(), e.FinalValue.StringFixed(2), e.Provenance)
}

// SumFinal returns the sum of FinalValue over the entries
func SumFinal(entries []LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.FinalValue)
	}
	return total
}
