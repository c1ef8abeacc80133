package quotes

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/shared"
)

type memoryRepo struct {
	quotes map[int64]Quote
	nextID int64
	failOn string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quotes: make(map[int64]Quote)}
}

func (r *memoryRepo) snapshot() map[int64]Quote {
	cp := make(map[int64]Quote, len(r.quotes))
	for id, q := range r.quotes {
		q.Items = append([]Item(nil), q.Items...)
		cp[id] = q
	}
	return cp
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap, next := r.snapshot(), r.nextID
	if err := fn(ctx, r); err != nil {
		r.quotes, r.nextID = snap, next
		return err
	}
	return nil
}

func (r *memoryRepo) Get(_ context.Context, tenantID, quoteID int64) (Quote, error) {
	q, ok := r.quotes[quoteID]
	if !ok || q.TenantID != tenantID {
		return Quote{}, shared.NotFoundf("quote %d", quoteID)
	}
	q.Items = append([]Item(nil), q.Items...)
	return q, nil
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, tenantID, quoteID int64) (Quote, error) {
	return r.Get(ctx, tenantID, quoteID)
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Quote, error) {
	var out []Quote
	for _, q := range r.quotes {
		if q.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != nil && q.Status != *filter.Status {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) StatsRows(_ context.Context, filter StatsFilter) ([]StatsRow, error) {
	var rows []StatsRow
	for _, q := range r.quotes {
		if q.TenantID != filter.TenantID {
			continue
		}
		rows = append(rows, StatsRow{
			Status: q.Status, CreatedAt: q.CreatedAt, ConvertedAt: q.ConvertedAt,
			LostReason: q.LostReason, SentAt: q.SentAt, FollowUpDate: q.FollowUpDate,
		})
	}
	return rows, nil
}

func (r *memoryRepo) Insert(_ context.Context, q Quote) (int64, error) {
	r.nextID++
	q.ID = r.nextID
	r.quotes[q.ID] = q
	return q.ID, nil
}

func (r *memoryRepo) UpdateHeader(_ context.Context, q Quote) error {
	cur, ok := r.quotes[q.ID]
	if !ok {
		return shared.NotFoundf("quote %d", q.ID)
	}
	q.Items = cur.Items
	r.quotes[q.ID] = q
	return nil
}

func (r *memoryRepo) ReplaceItems(_ context.Context, quoteID int64, items []Item) error {
	if r.failOn == "items" {
		return assert.AnError
	}
	q := r.quotes[quoteID]
	q.Items = append([]Item(nil), items...)
	r.quotes[quoteID] = q
	return nil
}

func (r *memoryRepo) ExpireStale(_ context.Context, tenantID int64, cutoff, now time.Time) (int64, error) {
	var n int64
	for id, q := range r.quotes {
		if q.TenantID != tenantID || !q.Status.Editable() || q.ValidUntil == nil || !q.ValidUntil.Before(cutoff) {
			continue
		}
		q.Status = StatusExpired
		q.UpdatedAt = now
		r.quotes[id] = q
		n++
	}
	return n, nil
}

type countingCache struct {
	invalidated []int64
}

func (c *countingCache) Fetch(ctx context.Context, _ StatsFilter, load func(context.Context) (StatsReport, error)) (StatsReport, error) {
	return load(ctx)
}

func (c *countingCache) Invalidate(_ context.Context, tenantID int64) error {
	c.invalidated = append(c.invalidated, tenantID)
	return nil
}

var fixedNow = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func ptr[T any](v T) *T { return &v }

func newTestService(repo *memoryRepo, cache StatsCacher) *Service {
	svc := NewService(repo, cache, nil, ServiceConfig{})
	svc.WithNow(func() time.Time { return fixedNow })
	return svc
}

var seller = shared.Actor{TenantID: 1, BranchID: 3, UserID: 7, Role: "SELLER"}

func frameDraft() Draft {
	return Draft{
		CustomerID: ptr(int64(40)),
		Items: []ItemInput{
			{ProductID: ptr(int64(100)), Description: "Armação", Quantity: 1, UnitPrice: dec("300")},
			{Description: "Montagem", Quantity: 1, UnitPrice: dec("50"), Discount: dec("10")},
		},
	}
}

func TestCreateComputesTotalsAndDefaults(t *testing.T) {
	cache := &countingCache{}
	repo := newMemoryRepo()
	svc := newTestService(repo, cache)

	q, err := svc.Create(context.Background(), seller, frameDraft())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, q.Status)
	assert.Equal(t, int64(7), q.SellerID)
	assert.Equal(t, int64(3), q.BranchID)
	assert.True(t, q.Subtotal.Equal(dec("340")))
	assert.True(t, q.Total.Equal(dec("340")))
	assert.Equal(t, DiscountSequential, q.DiscountMode)
	require.NotNil(t, q.ValidUntil)
	assert.Equal(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), *q.ValidUntil)
	require.Len(t, q.Items, 2)
	assert.Equal(t, ItemProduct, q.Items[0].ItemType)
	assert.Equal(t, ItemService, q.Items[1].ItemType)
	assert.True(t, q.Items[1].LineTotal.Equal(dec("40")))
	assert.Equal(t, []int64{1}, cache.invalidated)
}

func TestCreateValidatesDraft(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	ctx := context.Background()

	cases := map[string]func(d *Draft){
		"no customer":      func(d *Draft) { d.CustomerID = nil },
		"both customers":   func(d *Draft) { d.CustomerName = ptr("Ana") },
		"no items":         func(d *Draft) { d.Items = nil },
		"zero quantity":    func(d *Draft) { d.Items[0].Quantity = 0 },
		"negative price":   func(d *Draft) { d.Items[0].UnitPrice = dec("-1") },
		"negative total":   func(d *Draft) { d.DiscountTotal = dec("1000") },
		"percent over 100": func(d *Draft) { d.DiscountPercent = dec("101") },
		"past validity":    func(d *Draft) { d.ValidUntil = ptr(fixedNow.AddDate(0, 0, -1)) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := frameDraft()
			mutate(&d)
			_, err := svc.Create(ctx, seller, d)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestCreateAcceptsWalkInCustomer(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	d := frameDraft()
	d.CustomerID = nil
	d.CustomerName = ptr("  Maria Souza ")

	q, err := svc.Create(context.Background(), seller, d)
	require.NoError(t, err)
	require.NotNil(t, q.CustomerName)
	assert.Equal(t, "Maria Souza", *q.CustomerName)
	assert.Nil(t, q.CustomerID)
}

func TestUpdateReplacesItemsWholesale(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	q, err := svc.Create(ctx, seller, frameDraft())
	require.NoError(t, err)

	items := []ItemInput{{ProductID: ptr(int64(200)), Description: "Lente", Quantity: 2, UnitPrice: dec("150")}}
	updated, err := svc.Update(ctx, 1, q.ID, Patch{Items: &items, DiscountPercent: ptr(dec("10"))})
	require.NoError(t, err)

	require.Len(t, updated.Items, 1)
	assert.Equal(t, int64(200), *updated.Items[0].ProductID)
	assert.True(t, updated.Subtotal.Equal(dec("300")))
	assert.True(t, updated.Total.Equal(dec("270")))
}

func TestUpdateRejectsApprovedQuote(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	q, err := svc.Create(ctx, seller, frameDraft())
	require.NoError(t, err)
	_, err = svc.Transition(ctx, 1, q.ID, StatusApproved, nil)
	require.NoError(t, err)

	_, err = svc.Update(ctx, 1, q.ID, Patch{Notes: ptr("late change")})
	require.ErrorIs(t, err, ErrNotEditable)
	require.ErrorIs(t, err, shared.ErrBusinessRule)
}

func TestUpdateRollsBackOnItemFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	q, err := svc.Create(ctx, seller, frameDraft())
	require.NoError(t, err)

	repo.failOn = "items"
	items := []ItemInput{{Description: "Ajuste", Quantity: 1, UnitPrice: dec("1")}}
	_, err = svc.Update(ctx, 1, q.ID, Patch{Items: &items})
	require.Error(t, err)

	stored := repo.quotes[q.ID]
	assert.True(t, stored.Total.Equal(dec("340")))
	assert.Len(t, stored.Items, 2)
}

func TestTransitionBookkeeping(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	q, err := svc.Create(ctx, seller, frameDraft())
	require.NoError(t, err)

	sent, err := svc.Transition(ctx, 1, q.ID, StatusSent, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
	assert.Equal(t, 1, sent.FollowUpCount)
	require.NotNil(t, sent.SentAt)
	require.NotNil(t, sent.LastFollowUpAt)
	assert.Equal(t, fixedNow, *sent.LastFollowUpAt)

	approved, err := svc.Transition(ctx, 1, q.ID, StatusApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, approved.FollowUpCount)

	_, err = svc.Transition(ctx, 1, q.ID, StatusPending, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "APPROVED -> PENDING")
	assert.Equal(t, StatusApproved, repo.quotes[q.ID].Status)
	assert.Equal(t, 2, repo.quotes[q.ID].FollowUpCount)
}

func TestTransitionRefusesManualConversion(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	q, err := svc.Create(ctx, seller, frameDraft())
	require.NoError(t, err)
	_, err = svc.Transition(ctx, 1, q.ID, StatusApproved, nil)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, 1, q.ID, StatusConverted, nil)
	require.ErrorIs(t, err, ErrManualConversion)
	assert.Equal(t, StatusApproved, repo.quotes[q.ID].Status)
}

func TestCancelRequiresReasonAndAllowsReopen(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	q, err := svc.Create(ctx, seller, frameDraft())
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, 1, q.ID, "   ")
	require.ErrorIs(t, err, shared.ErrValidation)

	cancelled, err := svc.Cancel(ctx, 1, q.ID, "preço")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.LostReason)
	assert.Equal(t, "preço", *cancelled.LostReason)

	reopened, err := svc.Transition(ctx, 1, q.ID, StatusPending, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, reopened.Status)
}

func TestExpireStaleOnlyTouchesOpenQuotes(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	past := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	seed := []Quote{
		{TenantID: 1, Status: StatusPending, ValidUntil: &past},
		{TenantID: 1, Status: StatusSent, ValidUntil: &past},
		{TenantID: 1, Status: StatusApproved, ValidUntil: &past},
		{TenantID: 1, Status: StatusPending, ValidUntil: &today},
		{TenantID: 2, Status: StatusPending, ValidUntil: &past},
	}
	for _, q := range seed {
		_, err := repo.Insert(ctx, q)
		require.NoError(t, err)
	}

	res, err := svc.ExpireStale(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.ExpiredCount)
	assert.Equal(t, StatusExpired, repo.quotes[1].Status)
	assert.Equal(t, StatusExpired, repo.quotes[2].Status)
	assert.Equal(t, StatusApproved, repo.quotes[3].Status)
	assert.Equal(t, StatusPending, repo.quotes[4].Status)
	assert.Equal(t, StatusPending, repo.quotes[5].Status)
}

func TestReactivatingExpiredQuoteRenewsValidity(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	past := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	id, err := repo.Insert(ctx, Quote{TenantID: 1, Status: StatusExpired, ValidUntil: &past})
	require.NoError(t, err)

	q, err := svc.Transition(ctx, 1, id, StatusSent, nil)
	require.NoError(t, err)
	require.NotNil(t, q.ValidUntil)
	assert.Equal(t, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), *q.ValidUntil)
}

func TestStatsThroughService(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &countingCache{})
	ctx := context.Background()

	created := fixedNow.AddDate(0, 0, -4)
	converted := fixedNow.AddDate(0, 0, -1)
	_, _ = repo.Insert(ctx, Quote{TenantID: 1, Status: StatusConverted, CreatedAt: created, ConvertedAt: &converted})
	_, _ = repo.Insert(ctx, Quote{TenantID: 1, Status: StatusCancelled, CreatedAt: created, LostReason: ptr("preço")})

	report, err := svc.Stats(ctx, StatsFilter{TenantID: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 50.0, report.ConversionRate)
	assert.Equal(t, 3.0, report.AvgDaysToConversion)

	_, err = svc.Stats(ctx, StatsFilter{})
	require.ErrorIs(t, err, shared.ErrValidation)
}
