package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// ServiceConfig tunes quote defaults.
type ServiceConfig struct {
	// ValidityDays is added to today when a draft has no validUntil.
	ValidityDays int
	// Location defines "today" for validity and follow-up dates.
	Location *time.Location
}

// Service implements the quote lifecycle.
type Service struct {
	repo   RepositoryPort
	cache  StatsCacher
	logger *slog.Logger
	cfg    ServiceConfig
	now    func() time.Time
}

// NewService constructs the quote service. cache may be nil.
func NewService(repo RepositoryPort, cache StatsCacher, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ValidityDays <= 0 {
		cfg.ValidityDays = 15
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{repo: repo, cache: cache, logger: logger, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) today() time.Time {
	return shared.Today(s.now(), s.cfg.Location)
}

// Create stores a new PENDING quote for the actor's branch.
func (s *Service) Create(ctx context.Context, actor shared.Actor, draft Draft) (Quote, error) {
	if !actor.Valid() || actor.BranchID <= 0 {
		return Quote{}, shared.Validationf("tenant, branch and user are required")
	}
	customerID, customerName, err := resolveCustomer(draft.CustomerID, draft.CustomerName)
	if err != nil {
		return Quote{}, err
	}
	items, err := buildItems(draft.Items)
	if err != nil {
		return Quote{}, err
	}
	mode, err := resolveMode(draft.DiscountMode)
	if err != nil {
		return Quote{}, err
	}
	totals, err := ComputeTotals(items, draft.DiscountTotal, draft.DiscountPercent, mode)
	if err != nil {
		return Quote{}, err
	}
	today := s.today()
	validUntil := today.AddDate(0, 0, s.cfg.ValidityDays)
	if draft.ValidUntil != nil {
		validUntil = shared.CivilDate(*draft.ValidUntil)
		if validUntil.Before(today) {
			return Quote{}, shared.Validationf("valid until %s is in the past", validUntil.Format(time.DateOnly))
		}
	}
	now := s.now().UTC()
	q := Quote{
		TenantID:        actor.TenantID,
		BranchID:        actor.BranchID,
		SellerID:        actor.UserID,
		CustomerID:      customerID,
		CustomerName:    customerName,
		Status:          StatusPending,
		Subtotal:        totals.Subtotal,
		DiscountTotal:   totals.DiscountTotal,
		DiscountPercent: draft.DiscountPercent,
		DiscountMode:    mode,
		Total:           totals.Total,
		ValidUntil:      &validUntil,
		FollowUpDate:    civilPtr(draft.FollowUpDate),
		Notes:           trimmedPtr(draft.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, q)
		if err != nil {
			return err
		}
		q.ID = id
		for i := range items {
			items[i].QuoteID = id
		}
		return tx.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return Quote{}, err
	}
	s.invalidate(ctx, q.TenantID)
	s.logger.Info("quote created",
		slog.Int64("tenant_id", q.TenantID),
		slog.Int64("quote_id", q.ID),
		slog.String("total", q.Total.StringFixed(2)))
	return s.repo.Get(ctx, q.TenantID, q.ID)
}

// Update applies patch to an editable quote, replacing items wholesale when
// provided and recomputing totals.
func (s *Service) Update(ctx context.Context, tenantID, quoteID int64, patch Patch) (Quote, error) {
	var items []Item
	if patch.Items != nil {
		built, err := buildItems(*patch.Items)
		if err != nil {
			return Quote{}, err
		}
		items = built
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, tenantID, quoteID)
		if err != nil {
			return err
		}
		if !q.Status.Editable() {
			return fmt.Errorf("%w: quote %d is %s", ErrNotEditable, q.ID, q.Status)
		}
		if patch.CustomerID != nil || patch.CustomerName != nil {
			if q.CustomerID, q.CustomerName, err = resolveCustomer(patch.CustomerID, patch.CustomerName); err != nil {
				return err
			}
		}
		if patch.DiscountTotal != nil {
			q.DiscountTotal = *patch.DiscountTotal
		}
		if patch.DiscountPercent != nil {
			q.DiscountPercent = *patch.DiscountPercent
		}
		if patch.DiscountMode != nil {
			if q.DiscountMode, err = resolveMode(*patch.DiscountMode); err != nil {
				return err
			}
		}
		if patch.ValidUntil != nil {
			v := shared.CivilDate(*patch.ValidUntil)
			if v.Before(s.today()) {
				return shared.Validationf("valid until %s is in the past", v.Format(time.DateOnly))
			}
			q.ValidUntil = &v
		}
		if patch.FollowUpDate != nil {
			q.FollowUpDate = civilPtr(patch.FollowUpDate)
		}
		if patch.Notes != nil {
			q.Notes = trimmedPtr(patch.Notes)
		}
		lines := q.Items
		if items != nil {
			lines = items
		}
		totals, err := ComputeTotals(lines, q.DiscountTotal, q.DiscountPercent, q.DiscountMode)
		if err != nil {
			return err
		}
		q.Subtotal, q.Total = totals.Subtotal, totals.Total
		q.UpdatedAt = s.now().UTC()
		if err := tx.UpdateHeader(ctx, q); err != nil {
			return err
		}
		if items != nil {
			for i := range items {
				items[i].QuoteID = q.ID
			}
			return tx.ReplaceItems(ctx, q.ID, items)
		}
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	s.invalidate(ctx, tenantID)
	return s.repo.Get(ctx, tenantID, quoteID)
}

// ErrManualConversion rejects moving a quote to CONVERTED outside a sale conversion.
var ErrManualConversion = shared.RuleError("quotes become CONVERTED only through sale conversion")

// Transition moves a quote to target following the lifecycle table.
// lostReason is required when cancelling.
func (s *Service) Transition(ctx context.Context, tenantID, quoteID int64, target Status, lostReason *string) (Quote, error) {
	if target == StatusConverted {
		return Quote{}, ErrManualConversion
	}
	reason := trimmedPtr(lostReason)
	if target == StatusCancelled && reason == nil {
		return Quote{}, shared.Validationf("a lost reason is required to cancel a quote")
	}
	var from Status
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, tenantID, quoteID)
		if err != nil {
			return err
		}
		from = q.Status
		if !q.Status.CanTransitionTo(target) {
			return transitionError(q.Status, target)
		}
		now := s.now().UTC()
		q.Status = target
		q.FollowUpCount++
		q.LastFollowUpAt = &now
		q.UpdatedAt = now
		switch target {
		case StatusSent:
			q.SentAt = &now
		case StatusCancelled, StatusExpired:
			if reason != nil {
				q.LostReason = reason
			}
		}
		if from == StatusExpired && q.ValidUntil != nil && q.ValidUntil.Before(s.today()) {
			renewed := s.today().AddDate(0, 0, s.cfg.ValidityDays)
			q.ValidUntil = &renewed
		}
		return tx.UpdateHeader(ctx, q)
	})
	if err != nil {
		return Quote{}, err
	}
	s.invalidate(ctx, tenantID)
	s.logger.Info("quote transitioned",
		slog.Int64("tenant_id", tenantID),
		slog.Int64("quote_id", quoteID),
		slog.String("from", string(from)),
		slog.String("to", string(target)))
	return s.repo.Get(ctx, tenantID, quoteID)
}

// Cancel marks the quote lost with a reason.
func (s *Service) Cancel(ctx context.Context, tenantID, quoteID int64, reason string) (Quote, error) {
	return s.Transition(ctx, tenantID, quoteID, StatusCancelled, &reason)
}

// ExpireStale expires every PENDING or SENT quote of the tenant whose
// validity ended before today.
func (s *Service) ExpireStale(ctx context.Context, tenantID int64) (ExpireResult, error) {
	result := ExpireResult{TenantID: tenantID}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.ExpireStale(ctx, tenantID, s.today(), s.now().UTC())
		result.ExpiredCount = n
		return err
	})
	if err != nil {
		return ExpireResult{TenantID: tenantID}, err
	}
	if result.ExpiredCount > 0 {
		s.invalidate(ctx, tenantID)
		s.logger.Info("quotes expired", slog.Int64("tenant_id", tenantID), slog.Int64("count", result.ExpiredCount))
	}
	return result, nil
}

// Stats aggregates quote outcomes, served from cache when configured.
func (s *Service) Stats(ctx context.Context, filter StatsFilter) (StatsReport, error) {
	if filter.TenantID <= 0 {
		return StatsReport{}, shared.Validationf("tenant id is required")
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return StatsReport{}, shared.Validationf("from must be before to")
	}
	load := func(ctx context.Context) (StatsReport, error) {
		rows, err := s.repo.StatsRows(ctx, filter)
		if err != nil {
			return StatsReport{}, err
		}
		return BuildStats(rows, s.today()), nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	report, err := s.cache.Fetch(ctx, filter, load)
	if err != nil {
		s.logger.Warn("quote stats cache unavailable", slog.Any("error", err))
		return load(ctx)
	}
	return report, nil
}

// Get returns a hydrated quote.
func (s *Service) Get(ctx context.Context, tenantID, quoteID int64) (Quote, error) {
	return s.repo.Get(ctx, tenantID, quoteID)
}

// List returns quotes matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quote, error) {
	if filter.TenantID <= 0 {
		return nil, shared.Validationf("tenant id is required")
	}
	return s.repo.List(ctx, filter)
}

// InvalidateStats drops cached statistics of a tenant. Other packages that
// change quote state call it after committing.
func (s *Service) InvalidateStats(ctx context.Context, tenantID int64) {
	s.invalidate(ctx, tenantID)
}

func (s *Service) invalidate(ctx context.Context, tenantID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.Warn("invalidate quote stats", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
	}
}

func resolveCustomer(id *int64, name *string) (*int64, *string, error) {
	name = trimmedPtr(name)
	if id != nil && *id <= 0 {
		return nil, nil, shared.Validationf("invalid customer id")
	}
	if (id == nil) == (name == nil) {
		return nil, nil, shared.Validationf("exactly one of customer id or customer name is required")
	}
	return id, name, nil
}

func resolveMode(mode DiscountMode) (DiscountMode, error) {
	switch mode {
	case "":
		return DiscountSequential, nil
	case DiscountSequential, DiscountIndependent:
		return mode, nil
	}
	return "", shared.Validationf("unknown discount mode %q", mode)
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func civilPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := shared.CivilDate(*t)
	return &d
}
