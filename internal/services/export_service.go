package services

import (
	"context"

	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/sheets"
)

// ExportService builds month reports and hands them to a spreadsheet.
type ExportService struct {
	finance  *FinanceService
	exporter sheets.MonthExporter
}

func NewExportService(finance *FinanceService, exporter sheets.MonthExporter) *ExportService {
	return &ExportService{finance: finance, exporter: exporter}
}

// Report assembles the summary and transactions of month for the ctx user.
func (s *ExportService) Report(ctx context.Context, month core.MonthKey) (sheets.Report, error) {
	user, err := core.UserFromContext(ctx)
	if err != nil {
		return sheets.Report{}, err
	}
	if month == "" {
		month = s.finance.currentMonth(ctx)
	}
	summary, err := s.finance.Summary(ctx, month)
	if err != nil {
		return sheets.Report{}, err
	}
	txs, err := s.finance.Transactions(ctx, month)
	if err != nil {
		return sheets.Report{}, err
	}
	return sheets.Report{User: user, Month: month, Summary: summary, Transactions: txs}, nil
}

// Export writes the month report and returns the exporter's reference.
func (s *ExportService) Export(ctx context.Context, month core.MonthKey) (string, error) {
	r, err := s.Report(ctx, month)
	if err != nil {
		return "", err
	}
	ref, err := s.exporter.ExportMonth(ctx, r)
	if err != nil {
		s.finance.logger.LogError(ctx, "Month export failed", err, log.OpExport,
			log.NewFields().WithUser(r.User).WithMonth(r.Month))
		return "", err
	}
	s.finance.logger.InfoContext(ctx, "Month exported",
		log.NewFields().WithUser(r.User).WithMonth(r.Month).With("ref", ref).ToSlice()...)
	return ref, nil
}
