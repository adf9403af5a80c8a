package parsers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ufcsebrae/Prumo/internal/models"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Supported source file encodings
const (
	EncodingUTF8        = "utf-8"
	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"
)

// ParseEncoding resolves an encoding name. UTF-8 resolves to nil: the bytes
// are read as they are and validated instead of decoded.
func ParseEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252", "win1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", name)
	}
}

// DetectFormat infers the table format from a file extension
func DetectFormat(path string) (models.SourceKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return models.SourceCSV, nil
	case ".xlsx", ".xlsm":
		return models.SourceXLSX, nil
	default:
		return "", fmt.Errorf("cannot infer table format from %q", filepath.Base(path))
	}
}

// XLSXConfig holds configuration for reading a worksheet
type XLSXConfig struct {
	// Sheet is the worksheet name; empty selects the first sheet
	Sheet string `json:"sheet,omitempty"`

	// HeaderRow is the 1-based row holding column names
	HeaderRow int `json:"header_row"`

	// RawValues reads stored cell values instead of their displayed text,
	// so numbers keep a plain decimal form
	RawValues bool `json:"raw_values"`

	SkipEmptyRows bool `json:"skip_empty_rows"`
}

// DefaultXLSXConfig returns a configuration with sensible defaults
func DefaultXLSXConfig() *XLSXConfig {
	return &XLSXConfig{
		HeaderRow:     1,
		RawValues:     true,
		SkipEmptyRows: true,
	}
}

// Validate checks if the worksheet configuration is valid
func (c *XLSXConfig) Validate() error {
	if c.HeaderRow < 1 {
		return fmt.Errorf("header row must be at least 1, got %d", c.HeaderRow)
	}
	return nil
}

// Validate checks if the CSV configuration is valid
func (c *ParseConfig) Validate() error {
	if c.Delimiter == 0 || c.Delimiter == '"' || c.Delimiter == '\n' || c.Delimiter == '\r' {
		return fmt.Errorf("invalid delimiter: %q", c.Delimiter)
	}
	if c.Comment != 0 && c.Comment == c.Delimiter {
		return fmt.Errorf("comment character cannot equal the delimiter")
	}
	if c.MaxFieldSize < 0 {
		return fmt.Errorf("max field size cannot be negative")
	}
	if _, err := ParseEncoding(c.Encoding); err != nil {
		return err
	}
	return nil
}

// ParseDelimiter turns a configured delimiter string into a rune. Empty
// yields the default comma; "tab" and "\t" yield a tab.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return runes[0], nil
}
