package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Collector gathers recoverable errors raised while processing rows.
// It stops accepting errors once maxErrors is reached (zero means no limit).
type Collector struct {
	errors    []*ReportError
	maxErrors int
	dropped   int
}

// NewCollector creates a new error collector
func NewCollector(maxErrors int) *Collector {
	return &Collector{
		errors:    make([]*ReportError, 0),
		maxErrors: maxErrors,
	}
}

// Add records an error. It returns false when the error is fatal, signalling
// that processing must stop.
func (c *Collector) Add(err *ReportError) bool {
	if err == nil {
		return true
	}

	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		c.dropped++
	} else {
		c.errors = append(c.errors, err)
	}

	return err.Recoverable()
}

// HasErrors returns true if any errors have been collected
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0 || c.dropped > 0
}

// Errors returns the retained errors
func (c *Collector) Errors() []*ReportError {
	return c.errors
}

// Count returns the number of errors seen, including those past the limit
func (c *Collector) Count() int {
	return len(c.errors) + c.dropped
}

// Summary returns an error summary for all retained errors
func (c *Collector) Summary() *ErrorSummary {
	return NewErrorSummary(c.errors)
}

// Merge appends the errors of another collector
func (c *Collector) Merge(other *Collector) {
	if other == nil {
		return
	}
	for _, err := range other.errors {
		c.Add(err)
	}
	c.dropped += other.dropped
}

// MissingColumns returns the expected columns absent from actual, compared
// case-insensitively.
func MissingColumns(expected, actual []string) []string {
	actualSet := make(map[string]bool)
	for _, col := range actual {
		actualSet[strings.ToLower(strings.TrimSpace(col))] = true
	}

	var missing []string
	for _, col := range expected {
		if !actualSet[strings.ToLower(strings.TrimSpace(col))] {
			missing = append(missing, col)
		}
	}

	return missing
}

// FormatForUser formats multiple errors grouped by source
func FormatForUser(errs []*ReportError) string {
	if len(errs) == 0 {
		return "No errors"
	}

	if len(errs) == 1 {
		return errs[0].Error()
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d problems:", len(errs)))

	bySource := make(map[string][]*ReportError)
	for _, err := range errs {
		source := "unknown"
		if s, ok := err.Context["source"].(string); ok && s != "" {
			source = s
		}
		bySource[source] = append(bySource[source], err)
	}

	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	maxDetailed := 3
	for _, source := range sources {
		sourceErrs := bySource[source]
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Source: %s (%d problems)", source, len(sourceErrs)))
		for i, err := range sourceErrs {
			if i == maxDetailed {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(sourceErrs)-maxDetailed))
				break
			}
			lines = append(lines, "  "+err.Message)
		}
	}

	return strings.Join(lines, "\n")
}
