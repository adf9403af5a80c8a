package reporter

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"time"

	"github.com/ufcsebrae/Prumo/internal/models"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

const defaultTemplate = "templates/report.html.tmpl"

func (rg *ReportGenerator) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format(rg.config.DateLayout)
		},
		// Styles come from the format configuration, never from source data.
		"css": func(s models.CellStyle) template.CSS {
			return template.CSS(s.CSS())
		},
		"emptyMessage": emptyMessage,
		"warnings": func(r *models.Report) []string {
			if !rg.config.IncludeWarnings {
				return nil
			}
			return r.Warnings
		},
	}
}

// loadTemplate parses the configured template file, or the embedded default
func (rg *ReportGenerator) loadTemplate() (*template.Template, error) {
	if rg.config.TemplateFile != "" {
		name := filepath.Base(rg.config.TemplateFile)
		tmpl, err := template.New(name).Funcs(rg.templateFuncs()).ParseFiles(rg.config.TemplateFile)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", rg.config.TemplateFile, err)
		}
		return tmpl, nil
	}

	tmpl, err := template.New(filepath.Base(defaultTemplate)).Funcs(rg.templateFuncs()).ParseFS(templateFS, defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded template: %w", err)
	}
	return tmpl, nil
}

// generateHTMLReport renders the e-mail body
func (rg *ReportGenerator) generateHTMLReport(report *models.Report, writer io.Writer) error {
	tmpl, err := rg.loadTemplate()
	if err != nil {
		return err
	}

	if err := tmpl.Execute(writer, report); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	return nil
}
