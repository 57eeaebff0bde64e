package services

import (
	"context"
	"fmt"
	"strings"

	"bolso/internal/core"
	"bolso/internal/log"
	"bolso/internal/store"
)

// RolloverProcessor carries fixed payments into a new month.
type RolloverProcessor struct {
	store  store.FixedPaymentStore
	logger *log.Logger
}

func NewRolloverProcessor(s store.FixedPaymentStore, logger *log.Logger) *RolloverProcessor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RolloverProcessor{store: s, logger: logger.WithComponent(log.ComponentScheduler)}
}

// Rollover copies every fixed payment of the month before into month, unpaid,
// unless month already has a payment with the same name. Running it twice
// for the same month creates nothing the second time.
func (p *RolloverProcessor) Rollover(ctx context.Context, month core.MonthKey) (int, error) {
	if err := month.Validate(); err != nil {
		return 0, err
	}
	all, err := p.store.ListFixedPayments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list fixed payments: %w", err)
	}

	prev := month.Add(-1)
	existing := make(map[string]bool)
	for _, fp := range all {
		if fp.Month == month {
			existing[rolloverKey(fp.Name)] = true
		}
	}

	created := 0
	for _, fp := range all {
		if fp.Month != prev || existing[rolloverKey(fp.Name)] {
			continue
		}
		next := fp
		next.ID = ""
		next.Month = month
		next.IsPaid = false
		if _, err := p.store.InsertFixedPayment(ctx, next); err != nil {
			p.logger.LogError(ctx, "Failed to roll over fixed payment", err, log.OpRollover,
				log.NewFields().WithMonth(month).With("name", fp.Name))
			continue
		}
		existing[rolloverKey(fp.Name)] = true
		created++
	}

	if created > 0 {
		p.logger.InfoContext(ctx, "Fixed payments rolled over",
			log.NewFields().WithMonth(month).With(log.FieldCount, created).ToSlice()...)
	}
	return created, nil
}

func rolloverKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
