package parsers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/pkg/errors"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Helper function to create a temporary file with the given content
func createTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

// Helper function to create a workbook with one or more sheets
func createTempWorkbook(t *testing.T, sheets map[string][][]interface{}, order ...string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				t.Fatalf("Failed to rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("Failed to create sheet: %v", err)
		}

		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("Failed to compute cell name: %v", err)
			}
			values := row
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				t.Fatalf("Failed to write row: %v", err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}
	return path
}

func expectCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()

	if err == nil {
		t.Fatalf("Expected error with code %s, got nil", code)
	}
	reportErr, ok := errors.AsReportError(err)
	if !ok {
		t.Fatalf("Expected ReportError, got %T: %v", err, err)
	}
	if reportErr.Code != code {
		t.Errorf("Expected code %s, got %s", code, reportErr.Code)
	}
}

func TestDefaultParseConfig(t *testing.T) {
	config := DefaultParseConfig()

	if !config.HasHeader {
		t.Error("Expected HasHeader to be true")
	}

	if config.Delimiter != ',' {
		t.Errorf("Expected delimiter to be ',', got %q", config.Delimiter)
	}

	if !config.SkipEmptyRows {
		t.Error("Expected SkipEmptyRows to be true")
	}

	if config.Encoding != EncodingUTF8 {
		t.Errorf("Expected encoding %s, got %s", EncodingUTF8, config.Encoding)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid: %v", err)
	}
}

func TestParseConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *ParseConfig)
		wantErr bool
	}{
		{"semicolon delimiter", func(c *ParseConfig) { c.Delimiter = ';' }, false},
		{"latin1", func(c *ParseConfig) { c.Encoding = "latin1" }, false},
		{"zero delimiter", func(c *ParseConfig) { c.Delimiter = 0 }, true},
		{"quote delimiter", func(c *ParseConfig) { c.Delimiter = '"' }, true},
		{"comment equals delimiter", func(c *ParseConfig) { c.Comment = ',' }, true},
		{"negative field size", func(c *ParseConfig) { c.MaxFieldSize = -1 }, true},
		{"unknown encoding", func(c *ParseConfig) { c.Encoding = "ebcdic" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultParseConfig()
			tt.modify(config)

			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		name     string
		wantNil  bool
		wantErr  bool
		expected string
	}{
		{name: "", wantNil: true},
		{name: "UTF-8", wantNil: true},
		{name: "latin1", expected: charmap.ISO8859_1.String()},
		{name: "ISO-8859-1", expected: charmap.ISO8859_1.String()},
		{name: "cp1252", expected: charmap.Windows1252.String()},
		{name: "utf-16", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := ParseEncoding(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEncoding() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if enc != nil {
					t.Errorf("Expected nil encoding, got %v", enc)
				}
				return
			}
			cm, ok := enc.(*charmap.Charmap)
			if !ok || cm.String() != tt.expected {
				t.Errorf("Expected %s, got %v", tt.expected, enc)
			}
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		input    string
		expected rune
		wantErr  bool
	}{
		{"", ',', false},
		{";", ';', false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{"|", '|', false},
		{";;", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDelimiter(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDelimiter(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDelimiter(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path     string
		expected models.SourceKind
		wantErr  bool
	}{
		{"execucao.csv", models.SourceCSV, false},
		{"PPA.XLSX", models.SourceXLSX, false},
		{"previsao.txt", models.SourceCSV, false},
		{"notes.pdf", "", true},
	}

	for _, tt := range tests {
		got, err := DetectFormat(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("DetectFormat(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("DetectFormat(%q) = %s, expected %s", tt.path, got, tt.expected)
		}
	}
}

func TestCSVTableParser_ParseFile(t *testing.T) {
	content := "Grupo;MesNum;Valor\nPESSOAL;1;100,50\n\n;;\nVIAGENS;2;30\n"
	path := createTempFile(t, "execucao.csv", content)

	config := DefaultParseConfig()
	config.Delimiter = ';'
	parser, err := NewCSVTableParser(config)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	table, stats, err := parser.ParseFile(context.Background(), path, "execucao")
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}

	if table.Name != "execucao" || table.Source != models.SourceCSV {
		t.Errorf("Unexpected table identity: %s %s", table.Name, table.Source)
	}

	expectedColumns := []string{"Grupo", "MesNum", "Valor"}
	if strings.Join(table.Columns, ",") != strings.Join(expectedColumns, ",") {
		t.Errorf("Expected columns %v, got %v", expectedColumns, table.Columns)
	}

	if len(table.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(table.Records))
	}

	if table.Records[0].Line != 2 || table.Records[1].Line != 5 {
		t.Errorf("Expected lines 2 and 5, got %d and %d", table.Records[0].Line, table.Records[1].Line)
	}

	if table.Records[0].Field(2) != "100,50" {
		t.Errorf("Expected value 100,50, got %q", table.Records[0].Field(2))
	}

	if stats.RecordsParsed != 2 || stats.Columns != 3 {
		t.Errorf("Unexpected stats: %s", stats)
	}
}

func TestCSVTableParser_ByteOrderMark(t *testing.T) {
	parser, err := NewCSVTableParser(nil)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	table, _, err := parser.Parse(context.Background(), strings.NewReader("\ufeffGrupo,Mes,Valor\nPESSOAL,jan,1\n"), "previsao")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if table.ColumnIndex("Grupo") != 0 {
		t.Errorf("Expected BOM to be stripped from the first header, got %q", table.Columns[0])
	}
}

func TestCSVTableParser_Latin1(t *testing.T) {
	encoded, err := charmap.ISO8859_1.NewEncoder().String("Descrição Natureza;Mês;Valor\nSERVIÇOS;mar;10\n")
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	path := createTempFile(t, "ppa.csv", encoded)

	config := DefaultParseConfig()
	config.Delimiter = ';'

	// UTF-8 validation rejects the file as it is
	utf8Parser, err := NewCSVTableParser(config)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	_, _, err = utf8Parser.ParseFile(context.Background(), path, "ppa")
	expectCode(t, err, errors.CodeEncodingError)

	latinConfig := *config
	latinConfig.Encoding = EncodingLatin1
	parser, err := NewCSVTableParser(&latinConfig)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	table, _, err := parser.ParseFile(context.Background(), path, "ppa")
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}

	if table.ColumnIndex("Descrição Natureza") != 0 || table.ColumnIndex("Mês") != 1 {
		t.Errorf("Expected decoded headers, got %v", table.Columns)
	}
	if table.Records[0].Field(0) != "SERVIÇOS" {
		t.Errorf("Expected decoded category, got %q", table.Records[0].Field(0))
	}
}

func TestCSVTableParser_NoHeader(t *testing.T) {
	config := DefaultParseConfig()
	config.HasHeader = false
	parser, err := NewCSVTableParser(config)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	table, _, err := parser.Parse(context.Background(), strings.NewReader("PESSOAL,1,10\nVIAGENS,2,20\n"), "execucao")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if strings.Join(table.Columns, ",") != "col1,col2,col3" {
		t.Errorf("Expected positional columns, got %v", table.Columns)
	}
	if len(table.Records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(table.Records))
	}
}

func TestCSVTableParser_EmptyInputs(t *testing.T) {
	parser, err := NewCSVTableParser(nil)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	table, _, err := parser.Parse(context.Background(), strings.NewReader(""), "vazio")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if !table.IsEmpty() {
		t.Errorf("Expected empty table, got %+v", table)
	}

	table, _, err = parser.Parse(context.Background(), strings.NewReader("Grupo,Mes,Valor\n"), "cabecalho")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(table.Columns) != 3 || len(table.Records) != 0 {
		t.Errorf("Expected header-only table, got %+v", table)
	}
}

func TestCSVTableParser_Errors(t *testing.T) {
	parser, err := NewCSVTableParser(nil)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	_, _, err = parser.ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), "execucao")
	expectCode(t, err, errors.CodeFileNotFound)

	_, _, err = parser.Parse(context.Background(), strings.NewReader("Grupo,Valor\n\"PESSOAL,10\n"), "execucao")
	expectCode(t, err, errors.CodeInvalidFormat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = parser.Parse(ctx, strings.NewReader("Grupo,Valor\nPESSOAL,10\n"), "execucao")
	expectCode(t, err, errors.CodeUnexpectedError)

	if _, err := NewCSVTableParser(&ParseConfig{Delimiter: '"'}); err == nil {
		t.Error("Expected error for invalid delimiter")
	}
}

func TestXLSXTableParser(t *testing.T) {
	path := createTempWorkbook(t, map[string][][]interface{}{
		"Notas": {
			{"ignorar"},
		},
		"Execucao": {
			{"Grupo", "MesNum", "Valor"},
			{"PESSOAL", 1, 1234.5},
			{},
			{"VIAGENS", 2, -30},
		},
	}, "Notas", "Execucao")

	config := DefaultXLSXConfig()
	config.Sheet = "execucao"
	parser, err := NewXLSXTableParser(config)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	table, stats, err := parser.ParseFile(context.Background(), path, "execucao")
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}

	if table.Source != models.SourceXLSX {
		t.Errorf("Expected xlsx source, got %s", table.Source)
	}
	if strings.Join(table.Columns, ",") != "Grupo,MesNum,Valor" {
		t.Errorf("Unexpected columns: %v", table.Columns)
	}
	if len(table.Records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(table.Records))
	}
	if table.Records[0].Field(2) != "1234.5" {
		t.Errorf("Expected raw numeric value 1234.5, got %q", table.Records[0].Field(2))
	}
	if table.Records[1].Line != 4 {
		t.Errorf("Expected spreadsheet row 4, got %d", table.Records[1].Line)
	}
	if stats.RecordsParsed != 2 {
		t.Errorf("Expected 2 parsed records, got %d", stats.RecordsParsed)
	}

	// the first sheet is used when none is configured
	first, err := NewXLSXTableParser(nil)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	table, _, err = first.ParseFile(context.Background(), path, "notas")
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if len(table.Columns) != 1 || table.Columns[0] != "ignorar" {
		t.Errorf("Expected first sheet, got columns %v", table.Columns)
	}

	config.Sheet = "Inexistente"
	_, _, err = parser.ParseFile(context.Background(), path, "execucao")
	expectCode(t, err, errors.CodeInvalidFormat)

	_, _, err = parser.ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"), "execucao")
	expectCode(t, err, errors.CodeFileNotFound)

	if _, err := NewXLSXTableParser(&XLSXConfig{HeaderRow: 0}); err == nil {
		t.Error("Expected error for header row 0")
	}
}

func TestLoadCategoryMapping_CSV(t *testing.T) {
	content := "Natureza_Planejamento;Grupo_Execucao;Tipo_Fluxo\n" +
		"Pessoal e Encargos;PESSOAL;Despesa\n" +
		"Receita de Serviços;SERVIÇOS;Receita\n" +
		";;\n"
	path := createTempFile(t, "de_para.csv", content)

	config := DefaultParseConfig()
	config.Delimiter = ';'
	mapping, err := LoadCategoryMapping(context.Background(), path, config)
	if err != nil {
		t.Fatalf("LoadCategoryMapping() error: %v", err)
	}

	if mapping.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", mapping.Len())
	}

	to, ok, _ := mapping.Lookup("pessoal e encargos", models.FlowExpense)
	if !ok || to != "PESSOAL" {
		t.Errorf("Expected PESSOAL, got %q (ok=%v)", to, ok)
	}

	_, ok, known := mapping.Lookup("Receita de Serviços", models.FlowExpense)
	if ok || !known {
		t.Errorf("Expected revenue entry to be filtered for expense flow, ok=%v known=%v", ok, known)
	}
}

func TestLoadCategoryMapping_YAML(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "entries document",
			content: `entries:
  - from: Pessoal e Encargos
    to: PESSOAL
    flow: despesa
  - from: Diárias
    to: VIAGENS
`,
		},
		{
			name: "top-level list",
			content: `- from: Pessoal e Encargos
  to: PESSOAL
  flow: expense
- from: Diárias
  to: VIAGENS
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := createTempFile(t, "de_para.yaml", tt.content)

			mapping, err := LoadCategoryMapping(context.Background(), path, nil)
			if err != nil {
				t.Fatalf("LoadCategoryMapping() error: %v", err)
			}
			if mapping.Len() != 2 {
				t.Fatalf("Expected 2 entries, got %d", mapping.Len())
			}

			to, ok, _ := mapping.Lookup("DIÁRIAS", models.FlowRevenue)
			if !ok || to != "VIAGENS" {
				t.Errorf("Expected flowless entry to match any flow, got %q (ok=%v)", to, ok)
			}
		})
	}
}

func TestLoadCategoryMapping_XLSX(t *testing.T) {
	path := createTempWorkbook(t, map[string][][]interface{}{
		"DePara": {
			{"Natureza_Planejamento", "Grupo_Execucao", "Tipo_Fluxo"},
			{"Pessoal e Encargos", "PESSOAL", "Despesa"},
		},
	}, "DePara")

	mapping, err := LoadCategoryMapping(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("LoadCategoryMapping() error: %v", err)
	}
	if mapping.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", mapping.Len())
	}
}

func TestLoadCategoryMapping_Errors(t *testing.T) {
	_, err := LoadCategoryMapping(context.Background(), createTempFile(t, "de_para.json", "{}"), nil)
	expectCode(t, err, errors.CodeInvalidFormat)

	_, err = LoadCategoryMapping(context.Background(), createTempFile(t, "de_para.csv", "Natureza_Planejamento,Outro\nA,B\n"), nil)
	expectCode(t, err, errors.CodeSchemaViolation)

	_, err = LoadCategoryMapping(context.Background(), createTempFile(t, "de_para.csv", "Natureza,Grupo,Fluxo\nA,B,transferencia\n"), nil)
	expectCode(t, err, errors.CodeOutOfRange)

	conflicting := "Natureza,Grupo\nA,B\na,C\n"
	_, err = LoadCategoryMapping(context.Background(), createTempFile(t, "de_para.csv", conflicting), nil)
	expectCode(t, err, errors.CodeDataInconsistent)

	_, err = LoadCategoryMapping(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), nil)
	expectCode(t, err, errors.CodeFileNotFound)

	_, err = LoadCategoryMapping(context.Background(), createTempFile(t, "de_para.yaml", "entries: [from: x"), nil)
	expectCode(t, err, errors.CodeInvalidFormat)
}
