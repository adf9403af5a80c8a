package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// KPIs are the headline figures quoted in the report prose
type KPIs struct {
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	TotalExpense       decimal.Decimal `json:"total_expense"`
	NetResult          decimal.Decimal `json:"net_result"`
	NetResultExcluding decimal.Decimal `json:"net_result_excluding"`
	ExcludedCategory   string          `json:"excluded_category,omitempty"`
}

// CellStyle is a rendering-neutral presentation hint
type CellStyle struct {
	Color  string `json:"color,omitempty"`
	Italic bool   `json:"italic,omitempty"`
	Bold   bool   `json:"bold,omitempty"`
}

// IsZero reports whether the style carries no hint
func (s CellStyle) IsZero() bool {
	return s.Color == "" && !s.Italic && !s.Bold
}

// CSS returns the inline style declaration for the hint
func (s CellStyle) CSS() string {
	var parts []string
	if s.Color != "" {
		parts = append(parts, fmt.Sprintf("color: %s;", s.Color))
	}
	if s.Italic {
		parts = append(parts, "font-style: italic;")
	}
	if s.Bold {
		parts = append(parts, "font-weight: bold;")
	}
	return strings.Join(parts, " ")
}

// DisplayCell is a formatted cell ready to be embedded in a template
type DisplayCell struct {
	Text  string    `json:"text"`
	Style CellStyle `json:"style"`
}

// DisplayRow is one formatted table row
type DisplayRow struct {
	Label string        `json:"label"`
	Cells []DisplayCell `json:"cells"`
	Total bool          `json:"total,omitempty"`
}

// DisplayTable is a formatted pivot table. Headers include the label column.
type DisplayTable struct {
	Title        string       `json:"title"`
	Type         TableType    `json:"type"`
	Headers      []string     `json:"headers"`
	Rows         []DisplayRow `json:"rows"`
	Empty        bool         `json:"empty,omitempty"`
	EmptyMessage string       `json:"empty_message,omitempty"`
}

// ReportSection is one titled table of the report
type ReportSection struct {
	Key   string        `json:"key"`
	Title string        `json:"title"`
	Table *DisplayTable `json:"table"`
}

// Report is everything a renderer needs to produce the final document
type Report struct {
	RunID       string          `json:"run_id"`
	Title       string          `json:"title"`
	Year        int             `json:"year"`
	GeneratedAt time.Time       `json:"generated_at"`
	KPIs        KPIs            `json:"kpis"`
	KPIText     KPIText         `json:"kpi_text"`
	Sections    []ReportSection `json:"sections"`
	Warnings    []string        `json:"warnings,omitempty"`
}

// KPIText holds the formatted KPI strings for report prose
type KPIText struct {
	TotalRevenue       string `json:"total_revenue"`
	TotalExpense       string `json:"total_expense"`
	NetResult          string `json:"net_result"`
	NetResultExcluding string `json:"net_result_excluding,omitempty"`
}
