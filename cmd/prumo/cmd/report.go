package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ufcsebrae/Prumo/cmd/prumo/config"
	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/internal/normalizer"
	"github.com/ufcsebrae/Prumo/internal/parsers"
	"github.com/ufcsebrae/Prumo/internal/reconciler"
	"github.com/ufcsebrae/Prumo/internal/reporter"
	"github.com/ufcsebrae/Prumo/internal/sources"
	"github.com/ufcsebrae/Prumo/internal/store"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the report command
var (
	year                   int
	outputFormat           string
	outputFile             string
	ledgerDB               string
	mappingFile            string
	excludeRevenueCategory string

	settings *config.Settings
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Reconcile the budget sources and render the report",
	Long: `Report loads the executed, planned and forecast sources of revenue and
expense, reconciles them into one ledger per category and month, and renders
the revenue, expense and surplus/deficit tables.

Sources, layouts, colors and titles come from the config file. The flags
below override the matching settings.

Examples:
  # HTML email body on stdout
  prumo report --config report.yaml

  # Terminal preview of another year
  prumo report --config report.yaml --year 2024 --output-format console

  # Workbook plus a snapshot of the reconciled ledger
  prumo report --config report.yaml -f xlsx -o previa.xlsx --ledger-db ledger.db

  # Result without financial investments
  prumo report --config report.yaml --exclude-revenue-category "APLICAÇÕES FINANCEIRAS"`,

	PreRunE: validateReportFlags,
	RunE:    runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().IntVarP(&year, "year", "y", 0, "budget year (default: current year)")
	reportCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "html", "output format: html, console, json, csv, xlsx")
	reportCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reportCmd.Flags().StringVar(&ledgerDB, "ledger-db", "", "SQLite file that keeps a snapshot of the reconciled ledger")
	reportCmd.Flags().StringVar(&mappingFile, "mapping", "", "de-para file (csv, xlsx or yaml) for the planned categories")
	reportCmd.Flags().StringVar(&excludeRevenueCategory, "exclude-revenue-category", "", "add a result table without this revenue category")

	// Bind flags to viper
	viper.BindPFlag("year", reportCmd.Flags().Lookup("year"))
	viper.BindPFlag("output.format", reportCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output.file", reportCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("ledger_db", reportCmd.Flags().Lookup("ledger-db"))
	viper.BindPFlag("mapping", reportCmd.Flags().Lookup("mapping"))
	viper.BindPFlag("summary.exclude_revenue_category", reportCmd.Flags().Lookup("exclude-revenue-category"))
}

func validateReportFlags(cmd *cobra.Command, args []string) error {
	s, err := config.Load(viper.GetViper())
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report", cfgFile, err).
			WithSuggestion("Check the report config file; see report.example.yaml for every setting")
	}

	if s.Output.File != "" {
		dir := filepath.Dir(s.Output.File)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return errors.FileError(errors.CodeDirectoryError, dir, err)
			}
		}
	}

	if s.Mapping != "" {
		if err := validateFileExists(s.Mapping, "mapping file"); err != nil {
			return errors.FileError(errors.CodeFileNotFound, s.Mapping, err)
		}
	}

	settings = s
	return nil
}

func validateFileExists(filePath, description string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := logger.NewLogger(settings.LoggerConfig(viper.GetBool("verbose")))
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", settings.Log.Level, err)
	}
	logger.SetGlobalLogger(log)

	result, err := processReport(ctx, settings)
	if err != nil {
		return err
	}

	if settings.LedgerDB != "" {
		if err := saveLedgers(ctx, settings.LedgerDB, result); err != nil {
			return err
		}
	}

	reportConfig, err := settings.ReportConfig()
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output", settings.Output.Format, err)
	}

	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	if err := writeReport(cmd.OutOrStdout(), settings.Output.File, generator, result.Report); err != nil {
		return err
	}

	// Show completion message
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReport %s completed in %s.\n", result.RunID, result.Duration)
		fmt.Fprintf(os.Stderr, "Revenue entries: %d, expense entries: %d, summary months: %d.\n",
			len(result.Ledgers.Revenue), len(result.Ledgers.Expense), len(result.Ledgers.Summary))
		if len(result.Warnings) > 0 {
			fmt.Fprintf(os.Stderr, "%s\n", errors.FormatForUser(result.Warnings))
		}
	}

	return nil
}

// writeReport renders to stdout, or renders in memory and then replaces path
// through a temporary file in the same directory
func writeReport(stdout io.Writer, path string, generator *reporter.SafeReportGenerator, report *models.Report) error {
	if path == "" {
		return generator.GenerateReportSafely(report, stdout)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReportSafely(report, &buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := buf.WriteTo(tmp); err != nil {
		tmp.Close()
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	return nil
}

// processReport runs the pipeline described by the settings
func processReport(ctx context.Context, s *config.Settings) (*reconciler.ReportResult, error) {
	var mapping *normalizer.CategoryMapping
	if s.Mapping != "" {
		csvConfig, err := s.MappingParseConfig()
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "mapping_delimiter", s.MappingDelimiter, err)
		}
		mapping, err = parsers.LoadCategoryMapping(ctx, s.Mapping, csvConfig)
		if err != nil {
			return nil, err
		}
	}

	serviceConfig, err := s.ServiceConfig()
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report", nil, err)
	}

	loader, err := sources.NewLoader(s.LoaderConfig())
	if err != nil {
		return nil, err
	}

	service, err := reconciler.NewReportService(serviceConfig, loader)
	if err != nil {
		return nil, err
	}

	req, err := s.ReportRequest(mapping)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "sources", nil, err)
	}

	return service.ProcessReport(ctx, req)
}

// saveLedgers replaces the snapshot of the report year
func saveLedgers(ctx context.Context, path string, result *reconciler.ReportResult) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.SaveSnapshots(ctx, result.RunID, result.Year, []store.Section{
		{Name: reconciler.SectionRevenue, Entries: result.Ledgers.Revenue},
		{Name: reconciler.SectionExpense, Entries: result.Ledgers.Expense},
		{Name: reconciler.SectionSummary, Entries: result.Ledgers.Summary},
		{Name: reconciler.SectionSummaryExcluding, Entries: result.Ledgers.SummaryExcluding},
	})
}
