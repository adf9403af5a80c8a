// Package reconciler turns the executed, planned and forecast inputs of one
// budget year into reconciled ledgers and the display tables of the report.
//
// The ReportService drives the whole run:
//  1. load every source, recovering optional sources that are unavailable
//  2. normalize each table and translate planned categories through the
//     de-para mapping
//  3. merge the three inputs of each flow into one ledger
//  4. derive the surplus/deficit ledger
//  5. pivot and format each ledger, and compute the KPIs
//
// Example usage:
//
//	service, err := reconciler.NewReportService(nil, loader)
//	if err != nil {
//		return err
//	}
//	result, err := service.ProcessReport(ctx, &reconciler.ReportRequest{
//		Year:    2025,
//		Revenue: reconciler.SourceSet{Executed: &reconciler.SourceInput{Spec: receitas}},
//		Expense: reconciler.SourceSet{Executed: &reconciler.SourceInput{Spec: despesas}},
//	})
package reconciler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ufcsebrae/Prumo/internal/models"
	"github.com/ufcsebrae/Prumo/internal/normalizer"
	"github.com/ufcsebrae/Prumo/internal/pivot"
	"github.com/ufcsebrae/Prumo/internal/reporter"
	"github.com/ufcsebrae/Prumo/internal/sources"
	"github.com/ufcsebrae/Prumo/pkg/errors"
	"github.com/ufcsebrae/Prumo/pkg/logger"

	"github.com/google/uuid"
)

// Section keys of the report
const (
	SectionRevenue          = "revenue"
	SectionExpense          = "expense"
	SectionSummary          = "summary"
	SectionSummaryExcluding = "summary_excluding"
)

// SourceLoader reads the raw tables of a run
type SourceLoader interface {
	LoadAll(ctx context.Context, specs []*sources.SourceSpec) (map[string]*models.RawTable, []*errors.ReportError, error)
}

// SectionTitles are the headings of the report tables
type SectionTitles struct {
	Revenue string `json:"revenue" mapstructure:"revenue"`
	Expense string `json:"expense" mapstructure:"expense"`
	Summary string `json:"summary" mapstructure:"summary"`

	// SummaryExcluding may contain %s for the excluded category
	SummaryExcluding string `json:"summary_excluding" mapstructure:"summary_excluding"`
}

// ServiceConfig holds configuration for the report service
type ServiceConfig struct {
	Months  *normalizer.MonthMap   `json:"-"`
	Summary SummaryOptions         `json:"summary"`
	Pivot   *pivot.Config          `json:"pivot"`
	Format  *reporter.FormatConfig `json:"format"`
	Titles  SectionTitles          `json:"titles"`

	// Categories listed here always get a row in their table
	RevenueCategories []string `json:"revenue_categories,omitempty"`
	ExpenseCategories []string `json:"expense_categories,omitempty"`
}

// DefaultServiceConfig returns a service configuration with sensible defaults
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Months: normalizer.DefaultMonthMap(),
		Pivot:  pivot.DefaultConfig(),
		Format: reporter.DefaultFormatConfig(),
		Titles: SectionTitles{
			Revenue:          "Receitas",
			Expense:          "Despesas",
			Summary:          "Resultado",
			SummaryExcluding: "Resultado sem %s",
		},
	}
}

// Validate checks if the service configuration is valid
func (c *ServiceConfig) Validate() error {
	if c.Pivot == nil {
		return fmt.Errorf("pivot configuration is required")
	}
	if err := c.Pivot.Validate(); err != nil {
		return fmt.Errorf("invalid pivot configuration: %w", err)
	}

	if c.Format == nil {
		return fmt.Errorf("format configuration is required")
	}
	if err := c.Format.Validate(); err != nil {
		return fmt.Errorf("invalid format configuration: %w", err)
	}

	if strings.TrimSpace(c.Titles.Revenue) == "" ||
		strings.TrimSpace(c.Titles.Expense) == "" ||
		strings.TrimSpace(c.Titles.Summary) == "" {
		return fmt.Errorf("section titles cannot be empty")
	}

	return nil
}

// SourceInput is one source of a run. A nil Layout selects the predefined
// layout of the role the input plays.
type SourceInput struct {
	Spec   *sources.SourceSpec `json:"spec"`
	Layout *normalizer.Config  `json:"layout,omitempty"`
}

// SourceSet groups the three competing inputs of one flow. Nil inputs are
// treated as empty tables.
type SourceSet struct {
	Executed *SourceInput `json:"executed,omitempty"`
	Planned  *SourceInput `json:"planned,omitempty"`
	Forecast *SourceInput `json:"forecast,omitempty"`
}

func (s SourceSet) input(role models.SourceRole) *SourceInput {
	switch role {
	case models.RoleExecuted:
		return s.Executed
	case models.RolePlanned:
		return s.Planned
	default:
		return s.Forecast
	}
}

// ReportRequest describes one report run
type ReportRequest struct {
	Year    int       `json:"year"`
	Title   string    `json:"title"`
	Revenue SourceSet `json:"revenue"`
	Expense SourceSet `json:"expense"`

	// Mapping translates the planned categories; nil leaves them unchanged
	Mapping *normalizer.CategoryMapping `json:"-"`

	// GeneratedAt stamps the report; zero means now
	GeneratedAt time.Time `json:"generated_at"`
}

// Validate checks the request before any source is read
func (r *ReportRequest) Validate() error {
	if r.Year < 1900 || r.Year > 9999 {
		return fmt.Errorf("year out of range: %d", r.Year)
	}

	seen := make(map[string]string)
	for _, flow := range []models.Flow{models.FlowRevenue, models.FlowExpense} {
		for _, role := range roles {
			in := r.set(flow).input(role)
			if in == nil {
				continue
			}
			if in.Spec == nil {
				return fmt.Errorf("%s %s input has no source", flow, role)
			}
			if previous, dup := seen[in.Spec.Name]; dup {
				return fmt.Errorf("source name %q used by %s and %s/%s", in.Spec.Name, previous, flow, role)
			}
			seen[in.Spec.Name] = fmt.Sprintf("%s/%s", flow, role)
		}
	}

	if r.Revenue.Executed == nil && r.Expense.Executed == nil {
		return fmt.Errorf("at least one executed source is required")
	}

	return nil
}

func (r *ReportRequest) set(flow models.Flow) SourceSet {
	if flow == models.FlowRevenue {
		return r.Revenue
	}
	return r.Expense
}

var roles = []models.SourceRole{models.RoleExecuted, models.RolePlanned, models.RoleForecast}

// Ledgers are the reconciled long-form ledgers of a run
type Ledgers struct {
	Revenue          []models.LedgerEntry `json:"revenue"`
	Expense          []models.LedgerEntry `json:"expense"`
	Summary          []models.LedgerEntry `json:"summary"`
	SummaryExcluding []models.LedgerEntry `json:"summary_excluding,omitempty"`
}

// ReportResult contains everything a run produced
type ReportResult struct {
	RunID        string                                   `json:"run_id"`
	Year         int                                      `json:"year"`
	Ledgers      Ledgers                                  `json:"ledgers"`
	Tables       map[string]*models.PivotTable            `json:"tables"`
	Display      map[string]*models.DisplayTable          `json:"display"`
	KPIs         models.KPIs                              `json:"kpis"`
	Stats        map[string]*normalizer.Stats             `json:"stats"`
	MappingStats map[models.Flow]*normalizer.MappingStats `json:"mapping_stats,omitempty"`
	Steps        []logger.StepStats                       `json:"steps"`
	Warnings     []*errors.ReportError                    `json:"warnings,omitempty"`
	Report       *models.Report                           `json:"report"`
	Duration     time.Duration                            `json:"duration"`
}

// ReportService runs the reconciliation pipeline
type ReportService struct {
	config    *ServiceConfig
	loader    SourceLoader
	formatter *reporter.Formatter
	logger    logger.Logger
}

// NewReportService creates a new report service
func NewReportService(config *ServiceConfig, loader SourceLoader) (*ReportService, error) {
	if config == nil {
		config = DefaultServiceConfig()
	}

	if loader == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "loader", nil, nil)
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report_service", nil, err)
	}

	if config.Months == nil {
		config.Months = normalizer.DefaultMonthMap()
	}

	formatter, err := reporter.NewFormatter(config.Format)
	if err != nil {
		return nil, err
	}

	return &ReportService{
		config:    config,
		loader:    loader,
		formatter: formatter,
		logger:    logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// GetConfig returns the service configuration
func (s *ReportService) GetConfig() *ServiceConfig {
	return s.config
}

// ProcessReport runs the pipeline for one request. Recoverable problems are
// returned as warnings; any fatal error aborts the run with no result.
func (s *ReportService) ProcessReport(ctx context.Context, req *ReportRequest) (*ReportResult, error) {
	if req == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "report_request", nil, nil)
	}
	if err := req.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidConfig, "report_request", req.Year, err).
			WithSuggestion("Check the year and the source list of the report configuration")
	}

	start := time.Now()
	result := &ReportResult{
		RunID:        uuid.New().String(),
		Year:         req.Year,
		Tables:       make(map[string]*models.PivotTable),
		Display:      make(map[string]*models.DisplayTable),
		Stats:        make(map[string]*normalizer.Stats),
		MappingStats: make(map[models.Flow]*normalizer.MappingStats),
	}

	log := s.logger.WithFields(logger.Fields{"run_id": result.RunID, "year": req.Year})
	tracker := logger.NewStepTracker("report", log)

	fail := func(err error) (*ReportResult, error) {
		tracker.Fail(err)
		return nil, err
	}

	// Step 1
	tracker.Start("Loading sources")
	tables, warnings, err := s.loader.LoadAll(ctx, collectSpecs(req))
	if err != nil {
		return fail(err)
	}
	result.Warnings = append(result.Warnings, warnings...)
	tracker.Done(logger.Fields{"sources": len(tables), "missing": len(warnings)})

	// Step 2
	tracker.Start("Normalizing sources")
	amounts := make(map[models.Flow]map[models.SourceRole][]models.SourceAmount)
	for _, flow := range []models.Flow{models.FlowRevenue, models.FlowExpense} {
		amounts[flow] = make(map[models.SourceRole][]models.SourceAmount)
		for _, role := range roles {
			rows, err := s.normalize(req.set(flow).input(role), flow, role, tables, result)
			if err != nil {
				return fail(err)
			}
			amounts[flow][role] = rows
		}

		if req.Mapping != nil && req.set(flow).Planned != nil {
			mapped, stats := normalizer.ApplyMapping(amounts[flow][models.RolePlanned], req.Mapping, flow)
			amounts[flow][models.RolePlanned] = mapped
			result.MappingStats[flow] = stats
			result.Warnings = append(result.Warnings, stats.Warnings...)
		}
	}
	tracker.Done(logger.Fields{"warnings": len(result.Warnings)})

	// Step 3
	tracker.Start("Merging ledgers")
	result.Ledgers.Revenue, err = Merge(
		amounts[models.FlowRevenue][models.RoleExecuted],
		amounts[models.FlowRevenue][models.RolePlanned],
		amounts[models.FlowRevenue][models.RoleForecast],
	)
	if err != nil {
		return fail(err)
	}
	result.Ledgers.Expense, err = Merge(
		amounts[models.FlowExpense][models.RoleExecuted],
		amounts[models.FlowExpense][models.RolePlanned],
		amounts[models.FlowExpense][models.RoleForecast],
	)
	if err != nil {
		return fail(err)
	}
	tracker.Done(logger.Fields{
		"revenue_entries": len(result.Ledgers.Revenue),
		"expense_entries": len(result.Ledgers.Expense),
	})

	// Step 4
	tracker.Start("Calculating summary")
	excluded := normalizer.NormalizeCategory(s.config.Summary.ExcludeRevenueCategory)
	result.Ledgers.Summary = Summarize(result.Ledgers.Revenue, result.Ledgers.Expense,
		SummaryOptions{Label: s.config.Summary.Label})
	if excluded != "" {
		result.Ledgers.SummaryExcluding = Summarize(result.Ledgers.Revenue, result.Ledgers.Expense,
			SummaryOptions{ExcludeRevenueCategory: excluded})
	}
	result.KPIs = ComputeKPIs(result.Ledgers.Revenue, result.Ledgers.Expense, excluded)
	tracker.Done(logger.Fields{
		"net_result": result.KPIs.NetResult.StringFixed(2),
		"excluded":   excluded,
	})

	// Step 5
	tracker.Start("Building pivot tables")
	if err := s.buildTables(result, excluded); err != nil {
		return fail(err)
	}
	tracker.Done(logger.Fields{"tables": len(result.Tables)})

	// Step 6
	tracker.Start("Formatting report")
	result.Report = s.buildReport(req, result, excluded)
	tracker.Done(logger.Fields{"sections": len(result.Report.Sections)})

	tracker.Complete()
	result.Steps = tracker.Steps()
	result.Duration = time.Since(start)

	log.WithFields(logger.Fields{
		"warnings": len(result.Warnings),
		"duration": result.Duration.String(),
	}).Info("Report processed")

	return result, nil
}

// RenderLedgers rebuilds the tables and the report from ledgers that were
// reconciled earlier, such as a stored snapshot. The summaries are derived
// again from the revenue and expense ledgers.
func (s *ReportService) RenderLedgers(runID string, year int, title string, revenue, expense []models.LedgerEntry) (*ReportResult, error) {
	if year < 1900 || year > 9999 {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "year", year, nil)
	}
	req := &ReportRequest{Year: year, Title: title}

	result := &ReportResult{
		RunID:   runID,
		Year:    year,
		Tables:  make(map[string]*models.PivotTable),
		Display: make(map[string]*models.DisplayTable),
	}
	result.Ledgers.Revenue = revenue
	result.Ledgers.Expense = expense

	excluded := normalizer.NormalizeCategory(s.config.Summary.ExcludeRevenueCategory)
	result.Ledgers.Summary = Summarize(revenue, expense, SummaryOptions{Label: s.config.Summary.Label})
	if excluded != "" {
		result.Ledgers.SummaryExcluding = Summarize(revenue, expense, SummaryOptions{ExcludeRevenueCategory: excluded})
	}
	result.KPIs = ComputeKPIs(revenue, expense, excluded)

	if err := s.buildTables(result, excluded); err != nil {
		return nil, err
	}
	result.Report = s.buildReport(req, result, excluded)

	s.logger.WithFields(logger.Fields{
		"run_id":          runID,
		"year":            year,
		"revenue_entries": len(revenue),
		"expense_entries": len(expense),
	}).Debug("Ledgers rendered")

	return result, nil
}

func collectSpecs(req *ReportRequest) []*sources.SourceSpec {
	var specs []*sources.SourceSpec
	for _, flow := range []models.Flow{models.FlowRevenue, models.FlowExpense} {
		for _, role := range roles {
			if in := req.set(flow).input(role); in != nil {
				specs = append(specs, in.Spec)
			}
		}
	}
	return specs
}

func (s *ReportService) normalize(in *SourceInput, flow models.Flow, role models.SourceRole,
	tables map[string]*models.RawTable, result *ReportResult) ([]models.SourceAmount, error) {
	if in == nil {
		return []models.SourceAmount{}, nil
	}

	layout := in.Layout
	if layout == nil {
		layout, _ = normalizer.GetLayout(string(role))
	} else {
		cp := *layout
		layout = &cp
	}
	if layout.Months == nil {
		layout.Months = s.config.Months
	}

	n, err := normalizer.NewNormalizer(layout)
	if err != nil {
		return nil, err
	}

	table, ok := tables[in.Spec.Name]
	if !ok {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "normalize",
			fmt.Errorf("source %q was not loaded", in.Spec.Name))
	}

	rows, stats, err := n.Normalize(table)
	if err != nil {
		if reportErr, ok := errors.AsReportError(err); ok {
			reportErr.WithContext("flow", string(flow)).WithContext("role", string(role))
		}
		return nil, err
	}

	result.Stats[fmt.Sprintf("%s/%s", flow, role)] = stats
	result.Warnings = append(result.Warnings, stats.Warnings...)

	return rows, nil
}

func (s *ReportService) buildTables(result *ReportResult, excluded string) error {
	build := func(key, title string, tableType models.TableType, categories []string, ledger []models.LedgerEntry) error {
		config := s.config.Pivot.WithCategories(categories)
		if config.Months == nil {
			config.Months = s.config.Months
		}
		builder, err := pivot.NewBuilder(config)
		if err != nil {
			return err
		}
		table, err := builder.Build(title, tableType, ledger)
		if err != nil {
			return err
		}
		result.Tables[key] = table
		result.Display[key] = s.formatter.FormatTable(table)
		return nil
	}

	titles := s.config.Titles
	if err := build(SectionRevenue, titles.Revenue, models.TableRevenue, s.config.RevenueCategories, result.Ledgers.Revenue); err != nil {
		return err
	}
	if err := build(SectionExpense, titles.Expense, models.TableExpense, s.config.ExpenseCategories, result.Ledgers.Expense); err != nil {
		return err
	}
	if err := build(SectionSummary, titles.Summary, models.TableSummary, nil, result.Ledgers.Summary); err != nil {
		return err
	}
	if excluded != "" {
		if err := build(SectionSummaryExcluding, s.excludingTitle(excluded), models.TableSummary, nil, result.Ledgers.SummaryExcluding); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReportService) excludingTitle(excluded string) string {
	title := s.config.Titles.SummaryExcluding
	if title == "" {
		return fmt.Sprintf("%s sem %s", s.config.Titles.Summary, excluded)
	}
	if strings.Contains(title, "%s") {
		return fmt.Sprintf(title, excluded)
	}
	return title
}

func (s *ReportService) buildReport(req *ReportRequest, result *ReportResult, excluded string) *models.Report {
	generatedAt := req.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Execução orçamentária %d", req.Year)
	}

	kpiText := s.formatter.FormatKPIs(result.KPIs)

	report := &models.Report{
		RunID:       result.RunID,
		Title:       title,
		Year:        req.Year,
		GeneratedAt: generatedAt,
		KPIs:        result.KPIs,
		KPIText:     kpiText,
	}

	keys := []string{SectionRevenue, SectionExpense, SectionSummary}
	if excluded != "" {
		keys = append(keys, SectionSummaryExcluding)
	}
	for _, key := range keys {
		table := result.Display[key]
		report.Sections = append(report.Sections, models.ReportSection{
			Key:   key,
			Title: table.Title,
			Table: table,
		})
	}

	for _, w := range result.Warnings {
		report.Warnings = append(report.Warnings, w.Error())
	}

	return report
}
