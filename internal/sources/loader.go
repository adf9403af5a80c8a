package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/internal/parsers"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// LoaderConfig holds configuration for source loading
type LoaderConfig struct {
	// MaxConcurrency bounds how many sources are read at once
	MaxConcurrency int `json:"max_concurrency" mapstructure:"max_concurrency"`

	// QueryTimeout bounds each SQL source; zero means no limit
	QueryTimeout time.Duration `json:"query_timeout" mapstructure:"query_timeout"`
}

// DefaultLoaderConfig returns a loader configuration with sensible defaults
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		MaxConcurrency: 4,
		QueryTimeout:   2 * time.Minute,
	}
}

// Validate checks if the loader configuration is valid
func (c *LoaderConfig) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query timeout cannot be negative")
	}
	return nil
}

// Loader reads raw tables described by source specifications
type Loader struct {
	config *LoaderConfig
	logger logger.Logger
}

// NewLoader creates a new source loader
func NewLoader(config *LoaderConfig) (*Loader, error) {
	if config == nil {
		config = DefaultLoaderConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "loader", config.MaxConcurrency, err)
	}

	return &Loader{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("sources"),
	}, nil
}

// Load reads one source. When an optional source cannot be obtained the
// result is an empty table and a MissingSource warning instead of an error.
func (l *Loader) Load(ctx context.Context, spec *SourceSpec) (*models.RawTable, *errors.ReportError, error) {
	if spec == nil {
		return nil, nil, errors.ValidationError(errors.CodeMissingField, "source", nil, nil)
	}
	if err := spec.Validate(); err != nil {
		return nil, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "source", spec.Name, err)
	}

	start := time.Now()
	table, err := l.read(ctx, spec)
	if err != nil {
		if spec.Optional && isUnavailable(err) {
			warning := errors.MissingSourceError(spec.Name, spec.Location(), err)
			l.logger.WithFields(logger.Fields{
				"source":   spec.Name,
				"location": spec.Location(),
			}).WithError(err).Warn("Optional source unavailable, continuing with an empty table")
			return models.EmptyTable(spec.Name), warning, nil
		}
		return nil, nil, err
	}

	l.logger.WithFields(logger.Fields{
		"source":   spec.Name,
		"kind":     table.Source,
		"records":  len(table.Records),
		"columns":  len(table.Columns),
		"duration": time.Since(start).String(),
	}).Info("Source loaded")

	return table, nil, nil
}

func (l *Loader) read(ctx context.Context, spec *SourceSpec) (*models.RawTable, error) {
	kind, err := spec.ResolvedKind()
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "kind", spec.Name, err)
	}

	switch kind {
	case models.SourceCSV:
		config := parsers.DefaultParseConfig()
		config.Delimiter, _ = parsers.ParseDelimiter(spec.Delimiter)
		if spec.Encoding != "" {
			config.Encoding = spec.Encoding
		}
		parser, err := parsers.NewCSVTableParser(config)
		if err != nil {
			return nil, err
		}
		table, _, err := parser.ParseFile(ctx, spec.Path, spec.Name)
		return table, err

	case models.SourceXLSX:
		config := parsers.DefaultXLSXConfig()
		config.Sheet = spec.Sheet
		parser, err := parsers.NewXLSXTableParser(config)
		if err != nil {
			return nil, err
		}
		table, _, err := parser.ParseFile(ctx, spec.Path, spec.Name)
		return table, err

	case models.SourceSQL:
		return l.loadSQL(ctx, spec)

	default:
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "kind", kind, fmt.Errorf("unsupported source kind"))
	}
}

// isUnavailable reports whether err means the source could not be reached,
// as opposed to a source that was read but is malformed
func isUnavailable(err error) bool {
	reportErr, ok := errors.AsReportError(err)
	if !ok {
		return false
	}

	switch reportErr.Code {
	case errors.CodeFileNotFound, errors.CodeFilePermission, errors.CodeDirectoryError,
		errors.CodeConnectionFailed, errors.CodeQueryFailed:
		return true
	default:
		return false
	}
}

// LoadAll reads every source concurrently. The result maps source names to
// tables; warnings follow the order of specs. The first fatal error cancels
// the remaining loads.
func (l *Loader) LoadAll(ctx context.Context, specs []*SourceSpec) (map[string]*models.RawTable, []*errors.ReportError, error) {
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if spec == nil {
			return nil, nil, errors.ValidationError(errors.CodeMissingField, "source", nil, nil)
		}
		if seen[spec.Name] {
			return nil, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "source", spec.Name,
				fmt.Errorf("duplicate source name %q", spec.Name))
		}
		seen[spec.Name] = true
	}

	tables := make([]*models.RawTable, len(specs))
	warnings := make([]*errors.ReportError, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.MaxConcurrency)

	for i, spec := range specs {
		g.Go(func() error {
			table, warning, err := l.Load(gctx, spec)
			if err != nil {
				return err
			}
			tables[i] = table
			warnings[i] = warning
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	result := make(map[string]*models.RawTable, len(specs))
	var collected []*errors.ReportError
	for i, spec := range specs {
		result[spec.Name] = tables[i]
		if warnings[i] != nil {
			collected = append(collected, warnings[i])
		}
	}

	return result, collected, nil
}
