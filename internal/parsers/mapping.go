package parsers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/internal/normalizer"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"gopkg.in/yaml.v3"
)

// Accepted column names of a tabular de-para file, first match wins
var (
	mappingFromColumns = []string{"Natureza_Planejamento", "Natureza", "From"}
	mappingToColumns   = []string{"Grupo_Execucao", "Grupo", "To"}
	mappingFlowColumns = []string{"Tipo_Fluxo", "Fluxo", "Flow"}
)

type yamlMappingEntry struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Flow string `yaml:"flow"`
}

type yamlMappingFile struct {
	Entries []yamlMappingEntry `yaml:"entries"`
}

// LoadCategoryMapping reads a de-para table from a CSV, XLSX or YAML file.
// csvConfig applies to CSV files only and may be nil.
func LoadCategoryMapping(ctx context.Context, path string, csvConfig *ParseConfig) (*normalizer.CategoryMapping, error) {
	log := logger.GetGlobalLogger().WithComponent("mapping_loader").WithField("file_path", path)

	var (
		entries []normalizer.MappingEntry
		err     error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = loadYAMLMapping(path)
	case ".csv", ".txt":
		var parser *CSVTableParser
		parser, err = NewCSVTableParser(csvConfig)
		if err != nil {
			return nil, err
		}
		var table *models.RawTable
		table, _, err = parser.ParseFile(ctx, path, "de-para")
		if err == nil {
			entries, err = mappingFromTable(table)
		}
	case ".xlsx", ".xlsm":
		var parser *XLSXTableParser
		parser, err = NewXLSXTableParser(nil)
		if err != nil {
			return nil, err
		}
		var table *models.RawTable
		table, _, err = parser.ParseFile(ctx, path, "de-para")
		if err == nil {
			entries, err = mappingFromTable(table)
		}
	default:
		return nil, errors.FileError(errors.CodeInvalidFormat, path,
			fmt.Errorf("unsupported mapping file type %q", filepath.Ext(path)))
	}
	if err != nil {
		return nil, err
	}

	mapping, err := normalizer.NewCategoryMapping(entries)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeDataInconsistent, "mapping", path, err)
	}

	log.WithField("entries", mapping.Len()).Info("Category mapping loaded")
	return mapping, nil
}

func loadYAMLMapping(path string) ([]normalizer.MappingEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}

	var raw []yamlMappingEntry
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '-' {
		err = yaml.Unmarshal(data, &raw)
	} else {
		var file yamlMappingFile
		err = yaml.Unmarshal(data, &file)
		raw = file.Entries
	}
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, err)
	}

	entries := make([]normalizer.MappingEntry, 0, len(raw))
	for i, r := range raw {
		flow, err := models.ParseFlow(r.Flow)
		if err != nil {
			return nil, errors.ValidationError(errors.CodeOutOfRange, fmt.Sprintf("entries[%d].flow", i), r.Flow, err)
		}
		entries = append(entries, normalizer.MappingEntry{From: r.From, To: r.To, Flow: flow})
	}
	return entries, nil
}

// mappingFromTable reads de-para rows. Rows with a blank label are skipped.
func mappingFromTable(table *models.RawTable) ([]normalizer.MappingEntry, error) {
	fromIdx := firstColumn(table, mappingFromColumns)
	if fromIdx < 0 {
		return nil, errors.SchemaError(table.Name, mappingFromColumns[0], table.Columns)
	}
	toIdx := firstColumn(table, mappingToColumns)
	if toIdx < 0 {
		return nil, errors.SchemaError(table.Name, mappingToColumns[0], table.Columns)
	}
	flowIdx := firstColumn(table, mappingFlowColumns)

	entries := make([]normalizer.MappingEntry, 0, len(table.Records))
	for _, record := range table.Records {
		from := strings.TrimSpace(record.Field(fromIdx))
		to := strings.TrimSpace(record.Field(toIdx))
		if from == "" || to == "" {
			continue
		}

		var flow models.Flow
		if flowIdx >= 0 {
			var err error
			flow, err = models.ParseFlow(record.Field(flowIdx))
			if err != nil {
				return nil, errors.ValidationError(errors.CodeOutOfRange, mappingFlowColumns[0], record.Field(flowIdx), err).
					WithContext("line", record.Line)
			}
		}

		entries = append(entries, normalizer.MappingEntry{From: from, To: to, Flow: flow})
	}
	return entries, nil
}

func firstColumn(table *models.RawTable, names []string) int {
	for _, name := range names {
		if idx := table.ColumnIndex(name); idx >= 0 {
			return idx
		}
	}
	return -1
}
