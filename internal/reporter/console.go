package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/ufcsebrae/Prumo/internal/models"

	"github.com/charmbracelet/lipgloss"
)

type consoleStyles struct {
	renderer *lipgloss.Renderer
	title    lipgloss.Style
	section  lipgloss.Style
	header   lipgloss.Style
	label    lipgloss.Style
	muted    lipgloss.Style
	colors   bool
}

func (rg *ReportGenerator) newConsoleStyles(writer io.Writer) *consoleStyles {
	r := lipgloss.NewRenderer(writer)
	s := &consoleStyles{
		renderer: r,
		title:    r.NewStyle().Bold(true),
		section:  r.NewStyle().Bold(true).Underline(true),
		header:   r.NewStyle().Bold(true),
		label:    r.NewStyle(),
		muted:    r.NewStyle(),
		colors:   rg.config.UseColors,
	}
	if rg.config.UseColors {
		s.title = s.title.Foreground(lipgloss.Color("86"))
		s.header = s.header.Foreground(lipgloss.Color("4"))
		s.muted = s.muted.Foreground(lipgloss.Color("241"))
	}
	return s
}

// cell applies a display hint to terminal text
func (s *consoleStyles) cell(style models.CellStyle) lipgloss.Style {
	st := s.renderer.NewStyle().Italic(style.Italic).Bold(style.Bold)
	if s.colors && style.Color != "" {
		st = st.Foreground(lipgloss.Color(style.Color))
	}
	return st
}

// generateConsoleReport generates a human-readable terminal report. Colors
// follow the capabilities of terminal.
func (rg *ReportGenerator) generateConsoleReport(report *models.Report, writer, terminal io.Writer) error {
	styles := rg.newConsoleStyles(terminal)
	var b strings.Builder

	b.WriteString(styles.title.Render(report.Title))
	b.WriteString("\n")
	b.WriteString(styles.muted.Render(fmt.Sprintf("Atualizado em %s", report.GeneratedAt.Format(rg.config.DateLayout))))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Receita total: %s\n", report.KPIText.TotalRevenue))
	b.WriteString(fmt.Sprintf("Despesa total: %s\n", report.KPIText.TotalExpense))
	b.WriteString(fmt.Sprintf("Resultado:     %s\n", report.KPIText.NetResult))
	if report.KPIText.NetResultExcluding != "" {
		b.WriteString(fmt.Sprintf("Resultado sem %s: %s\n", report.KPIs.ExcludedCategory, report.KPIText.NetResultExcluding))
	}

	for _, section := range report.Sections {
		b.WriteString("\n")
		b.WriteString(styles.section.Render(section.Title))
		b.WriteString("\n")
		b.WriteString(renderConsoleTable(section.Table, styles))
	}

	if rg.config.IncludeWarnings && len(report.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.header.Render(fmt.Sprintf("Avisos (%d)", len(report.Warnings))))
		b.WriteString("\n")
		for _, warning := range report.Warnings {
			b.WriteString(styles.muted.Render("  - " + warning))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(writer, b.String())
	return err
}

// renderConsoleTable lays out a display table with the label column left
// aligned and every value column right aligned
func renderConsoleTable(table *models.DisplayTable, styles *consoleStyles) string {
	if table == nil || table.Empty {
		return styles.muted.Render(emptyMessage(table)) + "\n"
	}

	widths := make([]int, len(table.Headers))
	for i, h := range table.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range table.Rows {
		if w := lipgloss.Width(row.Label); len(widths) > 0 && w > widths[0] {
			widths[0] = w
		}
		for i, cell := range row.Cells {
			if i+1 < len(widths) {
				if w := lipgloss.Width(cell.Text); w > widths[i+1] {
					widths[i+1] = w
				}
			}
		}
	}

	var b strings.Builder
	for i, h := range table.Headers {
		if i > 0 {
			b.WriteString("  ")
		}
		st := styles.header.Width(widths[i])
		if i > 0 {
			st = st.Align(lipgloss.Right)
		}
		b.WriteString(st.Render(h))
	}
	b.WriteString("\n")

	for _, row := range table.Rows {
		label := styles.label.Width(widths[0])
		if row.Total {
			label = label.Bold(true)
		}
		b.WriteString(label.Render(row.Label))
		for i, cell := range row.Cells {
			if i+1 >= len(widths) {
				break
			}
			b.WriteString("  ")
			b.WriteString(styles.cell(cell.Style).Width(widths[i+1]).Align(lipgloss.Right).Render(cell.Text))
		}
		b.WriteString("\n")
	}

	return b.String()
}
