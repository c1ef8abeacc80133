package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/optica-erp/optica-erp/internal/finance"
	jobmetrics "github.com/optica-erp/optica-erp/internal/jobs"
)

// BatchProvisioner provisions finance data for many tenants.
type BatchProvisioner interface {
	ProvisionAll(ctx context.Context, tenantIDs []int64) finance.BatchReport
	TenantIDs(ctx context.Context) ([]int64, error)
}

// ProvisionJob runs batch finance provisioning.
type ProvisionJob struct {
	Provisioner BatchProvisioner
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewProvisionJob wires dependencies for the provisioning handler.
func NewProvisionJob(p BatchProvisioner, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProvisionJob {
	return &ProvisionJob{Provisioner: p, Logger: logger, Metrics: metrics}
}

// Handle processes TaskFinanceProvision. Provisioning is idempotent, so a
// retry after partial failure is safe.
func (j *ProvisionJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Provisioner == nil {
		return errors.New("finance provision: handler not configured")
	}
	var payload ProvisionPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	tracker := j.Metrics.Track(TaskFinanceProvision)
	defer func() { resultErr = tracker.End(resultErr) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ids := payload.TenantIDs
	if len(ids) == 0 {
		var err error
		if ids, err = j.Provisioner.TenantIDs(ctx); err != nil {
			return err
		}
	}
	report := j.Provisioner.ProvisionAll(ctx, ids)
	j.Metrics.AddProvisioned("ok", len(report.Succeeded))
	j.Metrics.AddProvisioned("failed", len(report.Failed))
	for id, err := range report.Failed {
		logger.Error("provision tenant", slog.Int64("tenant_id", id), slog.Any("error", err))
	}
	logger.Info("finance provisioning finished",
		slog.Int("succeeded", len(report.Succeeded)),
		slog.Int("failed", len(report.Failed)))
	if len(report.Failed) > 0 {
		return fmt.Errorf("finance provision: %d of %d tenants failed", len(report.Failed), len(ids))
	}
	return nil
}
