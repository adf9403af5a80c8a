package models

import "strings"

// SourceKind identifies where a raw table was read from
type SourceKind string

const (
	SourceCSV   SourceKind = "csv"
	SourceXLSX  SourceKind = "xlsx"
	SourceSQL   SourceKind = "sql"
	SourceEmpty SourceKind = "empty"
)

// RawRecord is one data row with the line it came from
type RawRecord struct {
	Line   int      `json:"line"`
	Fields []string `json:"fields"`
}

// RawTable is a tabular dataset as handed over by a data-access collaborator,
// before any normalization.
type RawTable struct {
	Name    string      `json:"name"`
	Source  SourceKind  `json:"source"`
	Columns []string    `json:"columns"`
	Records []RawRecord `json:"records"`
}

// EmptyTable returns the table substituted for a missing source
func EmptyTable(name string) *RawTable {
	return &RawTable{Name: name, Source: SourceEmpty}
}

// IsEmpty reports whether the table has neither columns nor records
func (t *RawTable) IsEmpty() bool {
	return t == nil || (len(t.Columns) == 0 && len(t.Records) == 0)
}

// ColumnIndex returns the index of the named column, compared
// case-insensitively after trimming, or -1.
func (t *RawTable) ColumnIndex(name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, col := range t.Columns {
		if strings.ToLower(strings.TrimSpace(col)) == want {
			return i
		}
	}
	return -1
}

// Field returns the value at column index i, or "" when the record is short
func (r RawRecord) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}
