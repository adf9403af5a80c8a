package models

import "github.com/shopspring/decimal"

// TableType selects presentation rules for a pivot table
type TableType string

const (
	TableRevenue TableType = "revenue"
	TableExpense TableType = "expense"
	TableSummary TableType = "summary"
)

// IsValid checks if the table type is valid
func (t TableType) IsValid() bool {
	return t == TableRevenue || t == TableExpense || t == TableSummary
}

// Cell carries a value together with the rule that produced it
type Cell struct {
	Value      decimal.Decimal `json:"value"`
	Provenance Provenance      `json:"provenance"`
}

// EmptyCell returns the cell used for combinations with no ledger entry
func EmptyCell() Cell {
	return Cell{Value: decimal.Zero, Provenance: ProvenanceEmpty}
}

// TotalCell returns a cell holding a computed total
func TotalCell(v decimal.Decimal) Cell {
	return Cell{Value: v, Provenance: ProvenanceTotal}
}

// PivotRow is one category row; Cells align with PivotTable.Months
type PivotRow struct {
	Category string `json:"category"`
	Cells    []Cell `json:"cells"`
	Annual   Cell   `json:"annual"`
}

// PivotTable is the wide form of a ledger: one row per category, one column
// per active month, plus the annual column and the total row.
type PivotTable struct {
	Title       string     `json:"title"`
	Type        TableType  `json:"type"`
	Months      []int      `json:"months"`
	MonthLabels []string   `json:"month_labels"`
	AnnualLabel string     `json:"annual_label"`
	Rows        []PivotRow `json:"rows"`
	Total       PivotRow   `json:"total"`
}

// GrandTotal returns the annual value of the total row
func (t *PivotTable) GrandTotal() decimal.Decimal {
	return t.Total.Annual.Value
}

// IsEmpty reports whether the table has no category rows
func (t *PivotTable) IsEmpty() bool {
	return t == nil || len(t.Rows) == 0
}

// Row returns the row for a category
func (t *PivotTable) Row(category string) (PivotRow, bool) {
	for _, row := range t.Rows {
		if row.Category == category {
			return row, true
		}
	}
	return PivotRow{}, false
}

// ColumnOf returns the column index of a month, or -1 when it is not active
func (t *PivotTable) ColumnOf(month int) int {
	for i, m := range t.Months {
		if m == month {
			return i
		}
	}
	return -1
}
