// Package store keeps a point-in-time SQLite snapshot of the reconciled
// ledgers for inspection. Saving replaces whatever an earlier run stored for
// the same year, so the database never accumulates history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store is the SQLite snapshot database
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// Open creates or opens the snapshot database and applies migrations
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.FileError(errors.CodeDirectoryError, dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.SourceError(errors.CodeConnectionFailed, "ledger_store", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.SourceError(errors.CodeConnectionFailed, "ledger_store", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, errors.InternalError(errors.CodeProcessingError, "ledger_store_migrate", err)
	}

	return &Store{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("store").WithField("db_path", dbPath),
	}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Section is the ledger of one report section
type Section struct {
	Name    string
	Entries []models.LedgerEntry
}

// SaveSnapshot replaces the stored entries of one year and section
func (s *Store) SaveSnapshot(ctx context.Context, runID string, year int, section string, entries []models.LedgerEntry) error {
	return s.replace(ctx, runID, year, []Section{{Name: section, Entries: entries}},
		`DELETE FROM ledger_snapshot WHERE year = ? AND section = ?`, year, section)
}

// SaveSnapshots replaces every stored section of a year in one transaction.
// Sections a previous run stored but sections omits are removed.
func (s *Store) SaveSnapshots(ctx context.Context, runID string, year int, sections []Section) error {
	return s.replace(ctx, runID, year, sections,
		`DELETE FROM ledger_snapshot WHERE year = ?`, year)
}

func (s *Store) replace(ctx context.Context, runID string, year int, sections []Section, deleteQuery string, deleteArgs ...interface{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.SourceError(errors.CodeQueryFailed, "ledger_store", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
		return errors.SourceError(errors.CodeQueryFailed, "ledger_store", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_snapshot
		(year, section, category, month, executed, planned, forecast, final_value, provenance, run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.SourceError(errors.CodeQueryFailed, "ledger_store", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, section := range sections {
		for _, e := range section.Entries {
			if _, err := stmt.ExecContext(ctx,
				year, section.Name, e.Category, e.Month,
				nullText(e.Executed), nullText(e.Planned), nullText(e.Forecast),
				e.FinalValue.String(), string(e.Provenance), runID, createdAt,
			); err != nil {
				return errors.SourceError(errors.CodeQueryFailed, "ledger_store", err).
					WithContext("section", section.Name).
					WithContext("key", e.Key().String())
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.SourceError(errors.CodeQueryFailed, "ledger_store", err)
	}

	for _, section := range sections {
		s.logger.WithFields(logger.Fields{
			"run_id":  runID,
			"year":    year,
			"section": section.Name,
			"entries": len(section.Entries),
		}).Info("Ledger snapshot saved")
	}

	return nil
}

// LoadSnapshot returns the stored entries of one year and section, ordered
// by month and category
func (s *Store) LoadSnapshot(ctx context.Context, year int, section string) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, month, executed, planned, forecast, final_value, provenance
		FROM ledger_snapshot WHERE year = ? AND section = ? ORDER BY month, category`, year, section)
	if err != nil {
		return nil, errors.SourceError(errors.CodeQueryFailed, "ledger_store", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var (
			e                           models.LedgerEntry
			executed, planned, forecast sql.NullString
			final, provenance           string
		)
		if err := rows.Scan(&e.Category, &e.Month, &executed, &planned, &forecast, &final, &provenance); err != nil {
			return nil, errors.SourceError(errors.CodeQueryFailed, "ledger_store", err)
		}

		if e.Executed, err = parseNull(executed); err != nil {
			return nil, corrupted(e, err)
		}
		if e.Planned, err = parseNull(planned); err != nil {
			return nil, corrupted(e, err)
		}
		if e.Forecast, err = parseNull(forecast); err != nil {
			return nil, corrupted(e, err)
		}
		if e.FinalValue, err = decimal.NewFromString(final); err != nil {
			return nil, corrupted(e, err)
		}
		e.Provenance = models.Provenance(provenance)

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SourceError(errors.CodeQueryFailed, "ledger_store", err)
	}

	return entries, nil
}

// RunID returns the run that stored the current snapshot of a year, or ""
func (s *Store) RunID(ctx context.Context, year int) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM ledger_snapshot WHERE year = ? ORDER BY created_at DESC LIMIT 1`, year).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.SourceError(errors.CodeQueryFailed, "ledger_store", err)
	}
	return runID, nil
}

func nullText(v decimal.NullDecimal) sql.NullString {
	if !v.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: v.Decimal.String(), Valid: true}
}

func parseNull(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func corrupted(e models.LedgerEntry, err error) error {
	return errors.ReconciliationError(errors.CodeDataInconsistent, "load_snapshot",
		fmt.Errorf("stored value for %s is not a decimal: %w", e.Key(), err))
}
