package normalizer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMonthLabels are the pt-BR three-letter month abbreviations
var DefaultMonthLabels = []string{
	"jan", "fev", "mar", "abr", "mai", "jun",
	"jul", "ago", "set", "out", "nov", "dez",
}

// MonthMap is a bidirectional mapping between month labels and numbers 1..12
type MonthMap struct {
	labels [12]string
	index  map[string]int
}

// DefaultMonthMap returns the pt-BR month map
func DefaultMonthMap() *MonthMap {
	m, err := NewMonthMap(DefaultMonthLabels)
	if err != nil {
		panic(err)
	}
	return m
}

// NewMonthMap builds a month map from exactly twelve labels, January first.
// Labels must stay distinct after case and accent folding.
func NewMonthMap(labels []string) (*MonthMap, error) {
	if len(labels) != 12 {
		return nil, fmt.Errorf("month map needs 12 labels, got %d", len(labels))
	}

	m := &MonthMap{index: make(map[string]int, 24)}
	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("month %d has an empty label", i+1)
		}
		key := foldMonth(label)
		if prev, exists := m.index[key]; exists {
			return nil, fmt.Errorf("month label %q is used for months %d and %d", label, prev, i+1)
		}
		m.labels[i] = label
		m.index[key] = i + 1
	}

	return m, nil
}

// Number resolves a month label to 1..12. It accepts the configured labels in
// any case with or without accents or a trailing dot, full month names whose
// first three letters match a label, and numeric strings such as "3", "03"
// or "3.0".
func (m *MonthMap) Number(label string) (int, bool) {
	s := strings.TrimSpace(label)
	if s == "" {
		return 0, false
	}

	if n, ok := parseMonthNumber(s); ok {
		return n, n >= 1 && n <= 12
	}

	key := foldMonth(s)
	if n, ok := m.index[key]; ok {
		return n, true
	}

	if r := []rune(key); len(r) > 3 {
		if n, ok := m.index[string(r[:3])]; ok {
			return n, true
		}
	}

	return 0, false
}

// Label returns the display label of month n, or "" when n is out of range
func (m *MonthMap) Label(n int) string {
	if n < 1 || n > 12 {
		return ""
	}
	return m.labels[n-1]
}

// Labels returns the twelve labels in calendar order
func (m *MonthMap) Labels() []string {
	out := make([]string, 12)
	copy(out, m.labels[:])
	return out
}

func parseMonthNumber(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, true
	}
	// IntPart keeps only the low 64 bits of larger numbers
	if d.LessThan(decimal.NewFromInt(1)) || d.GreaterThan(decimal.NewFromInt(12)) {
		return 0, true
	}
	return int(d.IntPart()), true
}

// foldMonth lowercases and strips accents and a trailing dot
func foldMonth(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	return strings.TrimSuffix(folded, ".")
}
