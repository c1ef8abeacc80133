package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/optica-erp/optica-erp/internal/jobs"
	"github.com/optica-erp/optica-erp/internal/quotes"
)

// QuoteExpirer expires stale quotes of one tenant.
type QuoteExpirer interface {
	ExpireStale(ctx context.Context, tenantID int64) (quotes.ExpireResult, error)
}

// TenantLister enumerates active tenants.
type TenantLister interface {
	TenantIDs(ctx context.Context) ([]int64, error)
}

// ExpireQuotesJob runs the nightly quote expiry sweep. A failing tenant is
// logged and does not stop the others.
type ExpireQuotesJob struct {
	Quotes  QuoteExpirer
	Tenants TenantLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewExpireQuotesJob wires dependencies for the sweep handler.
func NewExpireQuotesJob(expirer QuoteExpirer, tenants TenantLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpireQuotesJob {
	return &ExpireQuotesJob{Quotes: expirer, Tenants: tenants, Logger: logger, Metrics: metrics}
}

// Handle processes TaskExpireStaleQuotes.
func (j *ExpireQuotesJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Quotes == nil || j.Tenants == nil {
		return errors.New("expire quotes: handler not configured")
	}
	var payload ExpireQuotesPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	tracker := j.Metrics.Track(TaskExpireStaleQuotes)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := j.logger()
	ids := payload.TenantIDs
	if len(ids) == 0 {
		var err error
		if ids, err = j.Tenants.TenantIDs(ctx); err != nil {
			logger.Error("list tenants", slog.Any("error", err))
			return err
		}
	}
	var (
		total  int64
		failed int
	)
	for _, id := range ids {
		res, err := j.Quotes.ExpireStale(ctx, id)
		if err != nil {
			failed++
			logger.Error("expire quotes", slog.Int64("tenant_id", id), slog.Any("error", err))
			continue
		}
		total += res.ExpiredCount
		j.Metrics.AddExpiredQuotes(id, res.ExpiredCount)
	}
	logger.Info("quote expiry sweep finished",
		slog.Int("tenants", len(ids)),
		slog.Int("failed", failed),
		slog.Int64("expired", total))
	if failed > 0 && failed == len(ids) {
		return fmt.Errorf("expire quotes: all %d tenants failed", failed)
	}
	return nil
}

func (j *ExpireQuotesJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
