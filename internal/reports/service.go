// Package reports generates LLM markdown reports over user-selected search
// results and persists them.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/painscout/painscout/internal/models"
	"github.com/painscout/painscout/internal/storage"
)

// MaxSelectedResults caps how many results a single report may analyze.
const MaxSelectedResults = 10

// Token budgets per report type. MVP builder reports run longer.
const (
	summaryMaxTokens    = 4000
	mvpBuilderMaxTokens = 6000
)

// ValidationError rejects a malformed report request.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// PermissionError rejects report generation for callers outside paid tiers.
type PermissionError struct {
	Tier models.Tier
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("report generation requires a paid plan (current tier: %s)", e.Tier)
}

// GenerationError wraps an LLM failure. The request itself was valid.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("report generation failed: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// Notifier delivers a finished report out of band. Delivery failures never
// fail the report.
type Notifier interface {
	DeliverReport(ctx context.Context, report *models.Report) error
}

// Service generates and stores reports.
type Service struct {
	llm      LLM
	store    *storage.Store
	notifier Notifier
}

// NewService creates the report service. notifier may be nil.
func NewService(llm LLM, store *storage.Store, notifier Notifier) *Service {
	return &Service{llm: llm, store: store, notifier: notifier}
}

// Generate produces one report for a paid caller over their selected results.
func (s *Service) Generate(ctx context.Context, caller models.CallerIdentity, reportType models.ReportType, searchID string, selected []models.SearchResult) (*models.Report, error) {
	if reportType != models.ReportSummary && reportType != models.ReportMVPBuilder {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown report type %q", reportType)}
	}
	if len(selected) == 0 {
		return nil, &ValidationError{Reason: "at least one result must be selected"}
	}
	if len(selected) > MaxSelectedResults {
		return nil, &ValidationError{Reason: fmt.Sprintf("at most %d results may be selected", MaxSelectedResults)}
	}
	if !paidTier(caller.Tier) {
		return nil, &PermissionError{Tier: caller.Tier}
	}

	maxTokens := summaryMaxTokens
	if reportType == models.ReportMVPBuilder {
		maxTokens = mvpBuilderMaxTokens
	}

	start := time.Now()
	markdown, err := s.llm.Generate(ctx, systemPrompt(reportType), buildUserPrompt(selected), maxTokens)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}
	if markdown == "" {
		return nil, &GenerationError{Err: fmt.Errorf("model returned empty content")}
	}

	report := &models.Report{
		ID:              storage.NewID(),
		UserID:          caller.UserID,
		SearchID:        searchID,
		ReportType:      reportType,
		SelectedResults: selected,
		Markdown:        markdown,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.SaveReport(ctx, report); err != nil {
		return nil, err
	}
	logrus.Infof("Generated %s report %s for %s over %d results in %v",
		reportType, report.ID, caller.UserID, len(selected), time.Since(start))

	if s.notifier != nil {
		if err := s.notifier.DeliverReport(ctx, report); err != nil {
			logrus.Errorf("Report delivery failed for %s: %v", report.ID, err)
		}
	}
	return report, nil
}

// Get loads a stored report, refusing to serve another user's report.
func (s *Service) Get(ctx context.Context, caller models.CallerIdentity, id string) (*models.Report, error) {
	report, err := s.store.Report(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.UserID != caller.UserID {
		return nil, &PermissionError{Tier: caller.Tier}
	}
	return report, nil
}

// paidTier gates report generation: professional and above. Starter buys
// search volume, not reports.
func paidTier(t models.Tier) bool {
	switch t {
	case models.TierProfessional, models.TierAgency,
		models.TierEnterprise, models.TierAdmin:
		return true
	}
	return false
}
