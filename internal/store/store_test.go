package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ufcsebrae/Prumo/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func present(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func openStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data", "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStore_SaveAndLoad(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	entries := []models.LedgerEntry{
		{
			Category:   "PESSOAL",
			Month:      1,
			Executed:   present("100.25"),
			Forecast:   present("200"),
			FinalValue: decimal.RequireFromString("200"),
			Provenance: models.ProvenanceForecast,
		},
		{
			Category:   "VIAGENS",
			Month:      1,
			Planned:    present("70"),
			FinalValue: decimal.RequireFromString("70"),
			Provenance: models.ProvenancePlanned,
		},
	}

	require.NoError(t, s.SaveSnapshot(ctx, "run-1", 2025, "expense", entries))

	loaded, err := s.LoadSnapshot(ctx, 2025, "expense")
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "PESSOAL", loaded[0].Category)
	assert.True(t, loaded[0].Executed.Valid)
	assert.True(t, loaded[0].Executed.Decimal.Equal(decimal.RequireFromString("100.25")))
	assert.False(t, loaded[0].Planned.Valid)
	assert.True(t, loaded[0].FinalValue.Equal(decimal.RequireFromString("200")))
	assert.Equal(t, models.ProvenanceForecast, loaded[0].Provenance)

	assert.False(t, loaded[1].Executed.Valid)
	assert.True(t, loaded[1].Planned.Valid)

	other, err := s.LoadSnapshot(ctx, 2025, "revenue")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_SaveReplacesPreviousRun(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	first := []models.LedgerEntry{
		{Category: "PESSOAL", Month: 1, Executed: present("100"), FinalValue: decimal.NewFromInt(100), Provenance: models.ProvenanceExecuted},
		{Category: "VIAGENS", Month: 2, Executed: present("30"), FinalValue: decimal.NewFromInt(30), Provenance: models.ProvenanceExecuted},
	}
	second := []models.LedgerEntry{
		{Category: "PESSOAL", Month: 1, Executed: present("120"), FinalValue: decimal.NewFromInt(120), Provenance: models.ProvenanceExecuted},
	}

	require.NoError(t, s.SaveSnapshot(ctx, "run-1", 2025, "expense", first))
	require.NoError(t, s.SaveSnapshot(ctx, "run-1", 2024, "expense", first))
	require.NoError(t, s.SaveSnapshot(ctx, "run-2", 2025, "expense", second))

	loaded, err := s.LoadSnapshot(ctx, 2025, "expense")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.True(t, loaded[0].FinalValue.Equal(decimal.NewFromInt(120)))

	// other years are untouched
	previous, err := s.LoadSnapshot(ctx, 2024, "expense")
	require.NoError(t, err)
	assert.Len(t, previous, 2)

	runID, err := s.RunID(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, "run-2", runID)

	runID, err = s.RunID(ctx, 2023)
	require.NoError(t, err)
	assert.Empty(t, runID)
}

func TestStore_ReopenKeepsSnapshot(t *testing.T) {
	s, path := openStore(t)
	ctx := context.Background()

	entries := []models.LedgerEntry{
		{Category: "SUPERÁVIT/DÉFICIT", Month: 3, FinalValue: decimal.NewFromInt(-40), Provenance: models.ProvenanceSummary},
	}
	require.NoError(t, s.SaveSnapshot(ctx, "run-1", 2025, "summary", entries))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadSnapshot(ctx, 2025, "summary")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "SUPERÁVIT/DÉFICIT", loaded[0].Category)
	assert.True(t, loaded[0].FinalValue.Equal(decimal.NewFromInt(-40)))
}

func TestStore_RejectsInvalidMonth(t *testing.T) {
	s, _ := openStore(t)

	err := s.SaveSnapshot(context.Background(), "run-1", 2025, "expense", []models.LedgerEntry{
		{Category: "PESSOAL", Month: 13, FinalValue: decimal.NewFromInt(1), Provenance: models.ProvenanceExecuted},
	})
	assert.Error(t, err)
}

func TestStore_SaveSnapshotsReplacesYear(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	entry := func(category string, value int64) models.LedgerEntry {
		return models.LedgerEntry{Category: category, Month: 1, Executed: present(decimal.NewFromInt(value).String()),
			FinalValue: decimal.NewFromInt(value), Provenance: models.ProvenanceExecuted}
	}

	require.NoError(t, s.SaveSnapshots(ctx, "run-1", 2025, []Section{
		{Name: "revenue", Entries: []models.LedgerEntry{entry("VENDAS", 100)}},
		{Name: "expense", Entries: []models.LedgerEntry{entry("PESSOAL", 60)}},
		{Name: "summary_excluding", Entries: []models.LedgerEntry{entry("SUPERÁVIT/DÉFICIT", 40)}},
	}))

	require.NoError(t, s.SaveSnapshots(ctx, "run-2", 2025, []Section{
		{Name: "revenue", Entries: []models.LedgerEntry{entry("VENDAS", 150)}},
		{Name: "expense", Entries: []models.LedgerEntry{entry("PESSOAL", 90)}},
	}))

	revenue, err := s.LoadSnapshot(ctx, 2025, "revenue")
	require.NoError(t, err)
	require.Len(t, revenue, 1)
	assert.True(t, revenue[0].FinalValue.Equal(decimal.NewFromInt(150)))

	// a section the new run did not produce is gone
	excluding, err := s.LoadSnapshot(ctx, 2025, "summary_excluding")
	require.NoError(t, err)
	assert.Empty(t, excluding)

	runID, err := s.RunID(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, "run-2", runID)
}

func TestStore_SaveSnapshotsFailureKeepsPreviousRun(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	valid := models.LedgerEntry{Category: "VENDAS", Month: 1, Executed: present("100"),
		FinalValue: decimal.NewFromInt(100), Provenance: models.ProvenanceExecuted}
	require.NoError(t, s.SaveSnapshots(ctx, "run-1", 2025, []Section{
		{Name: "revenue", Entries: []models.LedgerEntry{valid}},
		{Name: "expense", Entries: []models.LedgerEntry{valid}},
	}))

	replacement := valid
	replacement.FinalValue = decimal.NewFromInt(999)
	invalid := valid
	invalid.Month = 13

	// revenue is written before expense fails
	err := s.SaveSnapshots(ctx, "run-2", 2025, []Section{
		{Name: "revenue", Entries: []models.LedgerEntry{replacement}},
		{Name: "expense", Entries: []models.LedgerEntry{invalid}},
	})
	require.Error(t, err)

	for _, section := range []string{"revenue", "expense"} {
		loaded, err := s.LoadSnapshot(ctx, 2025, section)
		require.NoError(t, err)
		require.Len(t, loaded, 1, section)
		assert.True(t, loaded[0].FinalValue.Equal(decimal.NewFromInt(100)), section)
	}

	runID, err := s.RunID(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
}
