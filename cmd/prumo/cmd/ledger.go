package cmd

import (
	"context"
	"fmt"

	"github.com/ufcsebrae/Prumo/cmd/prumo/config"
	"github.com/ufcsebrae/Prumo/internal/reconciler"
	"github.com/ufcsebrae/Prumo/internal/reporter"
	"github.com/ufcsebrae/Prumo/internal/sources"
	"github.com/ufcsebrae/Prumo/internal/store"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ledgerCmd renders a stored ledger snapshot
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Render the ledger snapshot saved by a previous report",
	Long: `Ledger reads the revenue and expense ledgers that 'prumo report --ledger-db'
stored for a year and renders them again with the current format settings,
without touching the sources.

Examples:
  prumo ledger --config report.yaml --ledger-db ledger.db --year 2025 -f console`,

	RunE: runLedger,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)

	ledgerCmd.Flags().IntP("year", "y", 0, "budget year (default: current year)")
	ledgerCmd.Flags().StringP("output-format", "f", "console", "output format: html, console, json, csv, xlsx")
	ledgerCmd.Flags().StringP("output-file", "o", "", "output file path (default: stdout)")
	ledgerCmd.Flags().String("ledger-db", "", "SQLite file written by the report command")
}

func runLedger(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	for key, flag := range map[string]string{
		"year":          "year",
		"output.format": "output-format",
		"output.file":   "output-file",
		"ledger_db":     "ledger-db",
	} {
		if cmd.Flags().Changed(flag) {
			v.Set(key, cmd.Flags().Lookup(flag).Value.String())
		}
	}
	if !cmd.Flags().Changed("output-format") && !v.InConfig("output.format") {
		v.Set("output.format", "console")
	}

	s, err := config.LoadRender(v)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "ledger", cfgFile, err)
	}
	if s.LedgerDB == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "ledger_db", nil, nil).
			WithSuggestion("Pass --ledger-db with the file written by 'prumo report --ledger-db'")
	}
	if err := validateFileExists(s.LedgerDB, "ledger database"); err != nil {
		return errors.FileError(errors.CodeFileNotFound, s.LedgerDB, err)
	}

	log, err := logger.NewLogger(s.LoggerConfig(viper.GetBool("verbose")))
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", s.Log.Level, err)
	}
	logger.SetGlobalLogger(log)

	ctx := context.Background()
	db, err := store.Open(s.LedgerDB)
	if err != nil {
		return err
	}
	defer db.Close()

	runID, err := db.RunID(ctx, s.Year)
	if err != nil {
		return err
	}
	if runID == "" {
		return errors.ValidationError(errors.CodeMissingField, "year", s.Year,
			fmt.Errorf("no snapshot stored for %d", s.Year)).
			WithSuggestion("Run 'prumo report --ledger-db' for this year first")
	}

	revenue, err := db.LoadSnapshot(ctx, s.Year, reconciler.SectionRevenue)
	if err != nil {
		return err
	}
	expense, err := db.LoadSnapshot(ctx, s.Year, reconciler.SectionExpense)
	if err != nil {
		return err
	}

	serviceConfig, err := s.ServiceConfig()
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report", nil, err)
	}
	loader, err := sources.NewLoader(s.LoaderConfig())
	if err != nil {
		return err
	}
	service, err := reconciler.NewReportService(serviceConfig, loader)
	if err != nil {
		return err
	}

	result, err := service.RenderLedgers(runID, s.Year, s.Title, revenue, expense)
	if err != nil {
		return err
	}

	reportConfig, err := s.ReportConfig()
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output", s.Output.Format, err)
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), s.Output.File, generator, result.Report)
}
