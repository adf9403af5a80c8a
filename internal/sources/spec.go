// Package sources obtains the raw tables a report run needs: delimited files,
// workbooks and SQL query results. A source marked optional that cannot be
// obtained is replaced by an empty table and reported as a warning.
package sources

import (
	"fmt"
	"strings"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/internal/parsers"
)

// Supported SQL drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// SourceSpec describes where one raw table comes from
type SourceSpec struct {
	Name string            `json:"name" mapstructure:"name" yaml:"name"`
	Kind models.SourceKind `json:"kind,omitempty" mapstructure:"kind" yaml:"kind,omitempty"`

	// File sources
	Path      string `json:"path,omitempty" mapstructure:"path" yaml:"path,omitempty"`
	Sheet     string `json:"sheet,omitempty" mapstructure:"sheet" yaml:"sheet,omitempty"`
	Encoding  string `json:"encoding,omitempty" mapstructure:"encoding" yaml:"encoding,omitempty"`
	Delimiter string `json:"delimiter,omitempty" mapstructure:"delimiter" yaml:"delimiter,omitempty"`

	// SQL sources
	Driver    string            `json:"driver,omitempty" mapstructure:"driver" yaml:"driver,omitempty"`
	DSN       string            `json:"dsn,omitempty" mapstructure:"dsn" yaml:"dsn,omitempty"`
	QueryFile string            `json:"query_file,omitempty" mapstructure:"query_file" yaml:"query_file,omitempty"`
	Query     string            `json:"query,omitempty" mapstructure:"query" yaml:"query,omitempty"`
	Params    map[string]string `json:"params,omitempty" mapstructure:"params" yaml:"params,omitempty"`

	// Optional sources that cannot be obtained become empty tables
	Optional bool `json:"optional,omitempty" mapstructure:"optional" yaml:"optional,omitempty"`
}

// ResolvedKind returns the explicit kind, or infers it from the query or the
// file extension
func (s *SourceSpec) ResolvedKind() (models.SourceKind, error) {
	if s.Kind != "" {
		return s.Kind, nil
	}
	if s.Query != "" || s.QueryFile != "" {
		return models.SourceSQL, nil
	}
	return parsers.DetectFormat(s.Path)
}

// Validate checks if the source specification is complete
func (s *SourceSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("source name cannot be empty")
	}

	kind, err := s.ResolvedKind()
	if err != nil {
		return fmt.Errorf("source %s: %w", s.Name, err)
	}

	switch kind {
	case models.SourceCSV, models.SourceXLSX:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("source %s: path cannot be empty", s.Name)
		}
		if kind == models.SourceCSV {
			if _, err := parsers.ParseDelimiter(s.Delimiter); err != nil {
				return fmt.Errorf("source %s: %w", s.Name, err)
			}
			if _, err := parsers.ParseEncoding(s.Encoding); err != nil {
				return fmt.Errorf("source %s: %w", s.Name, err)
			}
		}
	case models.SourceSQL:
		switch s.Driver {
		case DriverSQLite, DriverPostgres:
		default:
			return fmt.Errorf("source %s: unsupported driver %q (use %s or %s)", s.Name, s.Driver, DriverSQLite, DriverPostgres)
		}
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("source %s: dsn cannot be empty", s.Name)
		}
		if (s.Query == "") == (s.QueryFile == "") {
			return fmt.Errorf("source %s: set exactly one of query and query_file", s.Name)
		}
	default:
		return fmt.Errorf("source %s: unsupported kind %q", s.Name, kind)
	}

	return nil
}

// Location describes the source for messages, without credentials
func (s *SourceSpec) Location() string {
	switch {
	case s.Path != "":
		return s.Path
	case s.QueryFile != "":
		return fmt.Sprintf("%s query %s", s.Driver, s.QueryFile)
	default:
		return fmt.Sprintf("%s query", s.Driver)
	}
}
