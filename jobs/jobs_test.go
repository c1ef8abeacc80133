package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/finance"
	jobmetrics "github.com/optica-erp/optica-erp/internal/jobs"
	"github.com/optica-erp/optica-erp/internal/quotes"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeExpirer struct {
	mu      sync.Mutex
	counts  map[int64]int64
	failFor map[int64]bool
	calls   []int64
}

func (f *fakeExpirer) ExpireStale(_ context.Context, tenantID int64) (quotes.ExpireResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tenantID)
	if f.failFor[tenantID] {
		return quotes.ExpireResult{TenantID: tenantID}, errors.New("db down")
	}
	return quotes.ExpireResult{TenantID: tenantID, ExpiredCount: f.counts[tenantID]}, nil
}

type fakeTenants struct {
	ids []int64
	err error
}

func (f fakeTenants) TenantIDs(context.Context) ([]int64, error) { return f.ids, f.err }

func counterSum(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestExpireQuotesJobSweepsAllTenants(t *testing.T) {
	reg := prometheus.NewRegistry()
	expirer := &fakeExpirer{counts: map[int64]int64{1: 3, 2: 0, 3: 2}}
	job := NewExpireQuotesJob(expirer, fakeTenants{ids: []int64{1, 2, 3}}, discard, jobmetrics.NewMetrics(reg))

	task, err := NewExpireQuotesTask(ExpireQuotesPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, []int64{1, 2, 3}, expirer.calls)
	assert.Equal(t, float64(5), counterSum(t, reg, "optica_quotes_expired_total"))
}

func TestExpireQuotesJobPayloadRestrictsTenants(t *testing.T) {
	expirer := &fakeExpirer{counts: map[int64]int64{}}
	job := NewExpireQuotesJob(expirer, fakeTenants{err: errors.New("must not be called")}, discard, nil)

	task, err := NewExpireQuotesTask(ExpireQuotesPayload{TenantIDs: []int64{9}})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []int64{9}, expirer.calls)
}

func TestExpireQuotesJobToleratesPartialFailure(t *testing.T) {
	expirer := &fakeExpirer{counts: map[int64]int64{2: 1}, failFor: map[int64]bool{1: true}}
	job := NewExpireQuotesJob(expirer, fakeTenants{ids: []int64{1, 2}}, discard, nil)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskExpireStaleQuotes, nil)))
	assert.Equal(t, []int64{1, 2}, expirer.calls)
}

func TestExpireQuotesJobFailsWhenEveryTenantFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	expirer := &fakeExpirer{failFor: map[int64]bool{1: true, 2: true}}
	job := NewExpireQuotesJob(expirer, fakeTenants{ids: []int64{1, 2}}, discard, jobmetrics.NewMetrics(reg))

	err := job.Handle(context.Background(), asynq.NewTask(TaskExpireStaleQuotes, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 tenants failed")
	assert.Equal(t, float64(1), counterSum(t, reg, "optica_jobs_failures_total"))
}

func TestExpireQuotesJobRejectsMalformedPayload(t *testing.T) {
	job := NewExpireQuotesJob(&fakeExpirer{}, fakeTenants{}, discard, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskExpireStaleQuotes, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestExpireQuotesJobNotConfigured(t *testing.T) {
	var job *ExpireQuotesJob
	assert.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskExpireStaleQuotes, nil)))
}

type fakeProvisioner struct {
	tenants []int64
	report  finance.BatchReport
	got     []int64
}

func (f *fakeProvisioner) ProvisionAll(_ context.Context, ids []int64) finance.BatchReport {
	f.got = ids
	return f.report
}

func (f *fakeProvisioner) TenantIDs(context.Context) ([]int64, error) { return f.tenants, nil }

func TestProvisionJobReportsSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := &fakeProvisioner{tenants: []int64{1, 2}, report: finance.BatchReport{Succeeded: []int64{1, 2}, Failed: map[int64]error{}}}
	job := NewProvisionJob(p, discard, jobmetrics.NewMetrics(reg))

	task, err := NewProvisionTask(ProvisionPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, []int64{1, 2}, p.got)
	assert.Equal(t, float64(2), counterSum(t, reg, "optica_finance_provisioned_tenants_total"))
}

func TestProvisionJobFailsOnAnyTenant(t *testing.T) {
	p := &fakeProvisioner{report: finance.BatchReport{
		Succeeded: []int64{4},
		Failed:    map[int64]error{5: errors.New("constraint")},
	}}
	job := NewProvisionJob(p, discard, nil)

	task, err := NewProvisionTask(ProvisionPayload{TenantIDs: []int64{4, 5}})
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 tenants failed")
	assert.Equal(t, []int64{4, 5}, p.got)
}

func TestTaskConstructors(t *testing.T) {
	task, err := NewProvisionTask(ProvisionPayload{TenantIDs: []int64{7}})
	require.NoError(t, err)
	assert.Equal(t, TaskFinanceProvision, task.Type())

	var payload ProvisionPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, []int64{7}, payload.TenantIDs)

	cron, err := DefaultCron()
	require.NoError(t, err)
	require.Len(t, cron, 1)
	assert.Equal(t, ExpireQuotesCron, cron[0].Spec)
	assert.Equal(t, TaskExpireStaleQuotes, cron[0].Task.Type())
}
