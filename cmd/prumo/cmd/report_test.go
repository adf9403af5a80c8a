package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ufcsebrae/Prumo/cmd/prumo/config"
	"github.com/ufcsebrae/Prumo/internal/reconciler"
	"github.com/ufcsebrae/Prumo/internal/reporter"
	"github.com/ufcsebrae/Prumo/internal/store"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"github.com/spf13/viper"
)

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "de_para.csv")
	if err := os.WriteFile(validFile, []byte("from,to\n"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name        string
		filePath    string
		expectError bool
	}{
		{name: "valid file", filePath: validFile, expectError: false},
		{name: "empty path", filePath: "", expectError: true},
		{name: "non-existent file", filePath: "/non/existent/file.csv", expectError: true},
		{name: "directory instead of file", filePath: tmpDir, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "mapping file")

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// writeSources creates a small revenue/expense pair and returns its settings
func writeSources(t *testing.T) *config.Settings {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"receitas.csv": "Grupo;MesNum;Valor\nVENDAS;1;1.000,00\nVENDAS;2;800,00\n",
		"despesas.csv": "Grupo;MesNum;Valor\nPESSOAL;1;300,00\nPESSOAL;2;900,00\n",
		"previsao.csv": "Grupo;Mes;Valor\nVENDAS;mar;1.200,00\n",
		"ppa_desp.csv": "Descrição Natureza;Mês;Valor\nPESSOAL;mar;700\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	yaml := fmt.Sprintf(`
year: 2025
title: Prévia 2025
revenue:
  executed:
    name: receitas
    path: %[1]s/receitas.csv
    delimiter: ";"
  forecast:
    name: previsao
    path: %[1]s/previsao.csv
    delimiter: ";"
    optional: true
expense:
  executed:
    name: despesas
    path: %[1]s/despesas.csv
    delimiter: ";"
  planned:
    name: ppa_despesas
    path: %[1]s/ppa_desp.csv
    delimiter: ";"
output:
  format: json
`, filepath.ToSlash(dir))

	v := viper.New()
	config.SetDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("failed to read config: %v", err)
	}

	s, err := config.Load(v)
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	return s
}

func TestProcessReport_FromSettings(t *testing.T) {
	logger.SetGlobalLogger(logger.NewNoOpLogger())
	s := writeSources(t)

	result, err := processReport(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", result.Warnings)
	}
	if len(result.Ledgers.Summary) != 3 {
		t.Fatalf("expected 3 summary months, got %d", len(result.Ledgers.Summary))
	}

	expected := []string{"700", "-100", "500"}
	for i, entry := range result.Ledgers.Summary {
		if entry.FinalValue.String() != expected[i] {
			t.Errorf("month %d: expected %s, got %s", entry.Month, expected[i], entry.FinalValue)
		}
	}

	if result.Report.Title != "Prévia 2025" {
		t.Errorf("unexpected title %q", result.Report.Title)
	}
	if result.Report.KPIText.NetResult != "R$ 1.100,00" {
		t.Errorf("unexpected net result %q", result.Report.KPIText.NetResult)
	}
}

func TestSaveLedgers(t *testing.T) {
	logger.SetGlobalLogger(logger.NewNoOpLogger())
	s := writeSources(t)

	result, err := processReport(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	if err := saveLedgers(context.Background(), dbPath, result); err != nil {
		t.Fatalf("failed to save ledgers: %v", err)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	runID, err := db.RunID(context.Background(), 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runID != result.RunID {
		t.Errorf("expected run %s, got %s", result.RunID, runID)
	}

	for section, want := range map[string]int{
		reconciler.SectionRevenue: len(result.Ledgers.Revenue),
		reconciler.SectionExpense: len(result.Ledgers.Expense),
		reconciler.SectionSummary: len(result.Ledgers.Summary),
	} {
		entries, err := db.LoadSnapshot(context.Background(), 2025, section)
		if err != nil {
			t.Fatalf("%s: %v", section, err)
		}
		if len(entries) != want {
			t.Errorf("%s: expected %d entries, got %d", section, want, len(entries))
		}
	}
}

func TestWriteReport_ReplacesFileOnlyOnSuccess(t *testing.T) {
	logger.SetGlobalLogger(logger.NewNoOpLogger())
	s := writeSources(t)

	result, err := processReport(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	generator, err := reporter.NewSafeReportGenerator(nil, logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "previa.html")
	if err := os.WriteFile(path, []byte("previous"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if err := writeReport(&bytes.Buffer{}, path, generator, nil); err == nil {
		t.Fatalf("expected error for nil report")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(content) != "previous" {
		t.Errorf("failed render changed the output file: %q", content)
	}

	if err := writeReport(&bytes.Buffer{}, path, generator, result.Report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if !strings.Contains(string(content), "Prezados,") {
		t.Errorf("expected the HTML report in the output file")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to list dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the report file, found %d entries", len(entries))
	}
}

func TestRunMonths(t *testing.T) {
	viper.Set("months", nil)

	tests := []struct {
		name        string
		args        []string
		contains    []string
		expectError bool
	}{
		{
			name:     "list labels",
			args:     nil,
			contains: []string{" 1  jan", "12  dez"},
		},
		{
			name:     "resolve labels",
			args:     []string{"Março", "03", "dez."},
			contains: []string{" 3  mar", "12  dez"},
		},
		{
			name:        "unknown label",
			args:        []string{"jan", "13"},
			contains:    []string{"not a month"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			monthsCmd.SetOut(&out)
			defer monthsCmd.SetOut(nil)

			err := runMonths(monthsCmd, tt.args)
			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestCLIErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		contains     []string
	}{
		{
			name:         "nil error",
			err:          nil,
			expectedCode: 0,
		},
		{
			name:         "configuration error",
			err:          errors.ConfigurationError(errors.CodeInvalidConfig, "output.format", "pdf", nil),
			expectedCode: 4,
			contains:     []string{"Configuration error help"},
		},
		{
			name: "schema violation with context",
			err: errors.SchemaError("despesas", "Valor", []string{"Grupo", "MesNum"}).
				WithContext("flow", "expense"),
			expectedCode: 3,
			contains:     []string{"flow: expense", "Parse error help"},
		},
		{
			name:         "source error",
			err:          errors.SourceError(errors.CodeConnectionFailed, "ppa", fmt.Errorf("refused")),
			expectedCode: 6,
			contains:     []string{"Source error help"},
		},
		{
			name:         "missing file",
			err:          os.ErrNotExist,
			expectedCode: 2,
			contains:     []string{"File not found"},
		},
		{
			name:         "generic error",
			err:          fmt.Errorf("boom"),
			expectedCode: 1,
			contains:     []string{"Error: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			h := &CLIErrorHandler{logger: logger.NewNoOpLogger(), out: &out}

			code := h.HandleError(tt.err)
			if code != tt.expectedCode {
				t.Errorf("expected exit code %d, got %d", tt.expectedCode, code)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out.String(), want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out.String())
				}
			}
		})
	}
}
