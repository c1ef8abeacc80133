package finance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// ProvisionerConfig tunes the provisioner.
type ProvisionerConfig struct {
	// Concurrency bounds how many tenants ProvisionAll handles at once.
	Concurrency int
	Chart       []SeedNode
	Accounts    []SeedAccount
}

// Provisioner builds or repairs tenant ledgers.
type Provisioner struct {
	repo        RepositoryPort
	logger      *slog.Logger
	chart       []SeedNode
	accounts    []SeedAccount
	concurrency int
}

// NewProvisioner constructs a Provisioner, defaulting to the standard seed.
func NewProvisioner(repo RepositoryPort, logger *slog.Logger, cfg ProvisionerConfig) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	chart := cfg.Chart
	if chart == nil {
		chart = DefaultChart()
	}
	accounts := cfg.Accounts
	if accounts == nil {
		accounts = DefaultAccounts()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Provisioner{repo: repo, logger: logger, chart: chart, accounts: accounts, concurrency: concurrency}
}

// Provision upserts the chart of accounts and finance accounts of one tenant
// in a single transaction. Re-running it is harmless: existing nodes keep
// their kind and existing accounts keep their balance.
func (p *Provisioner) Provision(ctx context.Context, tenantID int64, branchID *int64) error {
	if tenantID <= 0 {
		return shared.Validationf("tenant id is required")
	}
	if err := ValidateSeed(p.chart, p.accounts); err != nil {
		return err
	}
	var created int
	err := p.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created = 0
		ids := make(map[string]int64, len(p.chart))
		for _, node := range p.chart {
			var parentID *int64
			if parent := ParentCode(node.Code); parent != "" {
				id := ids[parent]
				parentID = &id
			}
			id, err := tx.UpsertChartNode(ctx, tenantID, node, parentID)
			if err != nil {
				return fmt.Errorf("upsert chart node %s: %w", node.Code, err)
			}
			ids[node.Code] = id
		}
		for _, seed := range p.accounts {
			_, inserted, err := tx.UpsertFinanceAccount(ctx, tenantID, branchID, seed)
			if err != nil {
				return fmt.Errorf("upsert finance account %s: %w", seed.Name, err)
			}
			if inserted {
				created++
			}
		}
		return nil
	})
	if err != nil {
		p.logger.Error("finance provisioning failed", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
		return err
	}
	p.logger.Info("finance provisioned",
		slog.Int64("tenant_id", tenantID),
		slog.Int("chart_nodes", len(p.chart)),
		slog.Int("accounts_created", created))
	return nil
}

// ProvisionAll provisions tenants concurrently, each in its own transaction.
// A failing tenant is recorded in the report and never affects the others.
func (p *Provisioner) ProvisionAll(ctx context.Context, tenantIDs []int64) BatchReport {
	report := BatchReport{Failed: make(map[int64]error)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, tenantID := range tenantIDs {
		g.Go(func() error {
			err := p.Provision(gctx, tenantID, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[tenantID] = err
				return nil
			}
			report.Succeeded = append(report.Succeeded, tenantID)
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// ListChart returns the tenant chart of accounts.
func (p *Provisioner) ListChart(ctx context.Context, tenantID int64) ([]ChartNode, error) {
	return p.repo.ListChart(ctx, tenantID)
}

// ListAccounts returns the tenant finance accounts.
func (p *Provisioner) ListAccounts(ctx context.Context, tenantID int64) ([]FinanceAccount, error) {
	return p.repo.ListAccounts(ctx, tenantID)
}

// TenantIDs lists tenants eligible for provisioning.
func (p *Provisioner) TenantIDs(ctx context.Context) ([]int64, error) {
	return p.repo.ListTenantIDs(ctx)
}
