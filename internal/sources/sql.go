package sources

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// BindNamed rewrites :name placeholders into the driver's positional form
// and returns the matching arguments. Quoted text and :: casts are left alone.
func BindNamed(driver, query string, params map[string]string) (string, []any, error) {
	var (
		b    strings.Builder
		args []any
	)

	runes := []rune(query)
	inQuote := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\'' {
			inQuote = !inQuote
			b.WriteRune(r)
			continue
		}

		if inQuote || r != ':' {
			b.WriteRune(r)
			continue
		}

		if i+1 < len(runes) && runes[i+1] == ':' {
			b.WriteString("::")
			i++
			continue
		}

		j := i + 1
		for j < len(runes) && isParamRune(runes[j], j == i+1) {
			j++
		}
		if j == i+1 {
			b.WriteRune(r)
			continue
		}

		name := string(runes[i+1 : j])
		value, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("query parameter %q has no value", name)
		}
		args = append(args, value)

		if driver == DriverPostgres {
			b.WriteString("$" + strconv.Itoa(len(args)))
		} else {
			b.WriteByte('?')
		}
		i = j - 1
	}

	return b.String(), args, nil
}

func isParamRune(r rune, first bool) bool {
	switch {
	case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return !first
	default:
		return false
	}
}

// loadSQL runs the source query and returns its result set as a raw table
func (l *Loader) loadSQL(ctx context.Context, spec *SourceSpec) (*models.RawTable, error) {
	query := spec.Query
	if spec.QueryFile != "" {
		data, err := os.ReadFile(spec.QueryFile)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.FileError(errors.CodeFileNotFound, spec.QueryFile, err)
			}
			return nil, errors.FileError(errors.CodeFilePermission, spec.QueryFile, err)
		}
		query = string(data)
	}

	bound, args, err := BindNamed(spec.Driver, query, spec.Params)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "params", spec.Name, err)
	}

	db, err := sql.Open(spec.Driver, os.ExpandEnv(spec.DSN))
	if err != nil {
		return nil, errors.SourceError(errors.CodeConnectionFailed, spec.Name, err)
	}
	defer db.Close()

	if l.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.QueryTimeout)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.SourceError(errors.CodeConnectionFailed, spec.Name, err)
	}

	l.logger.WithFields(logger.Fields{
		"source": spec.Name,
		"driver": spec.Driver,
		"params": len(args),
	}).Debug("Running source query")

	rows, err := db.QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, errors.SourceError(errors.CodeQueryFailed, spec.Name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.SourceError(errors.CodeQueryFailed, spec.Name, err)
	}

	table := &models.RawTable{Name: spec.Name, Source: models.SourceSQL, Columns: columns}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for line := 1; rows.Next(); line++ {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.SourceError(errors.CodeQueryFailed, spec.Name, err)
		}

		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = sqlText(v)
		}
		table.Records = append(table.Records, models.RawRecord{Line: line, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SourceError(errors.CodeQueryFailed, spec.Name, err)
	}

	return table, nil
}

// sqlText renders a scanned column value as plain text. Floats never use
// exponent notation so amounts stay parseable.
func sqlText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
