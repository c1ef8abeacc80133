package quotes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/shared"
)

func TestParseStatusNormalisesLegacySpellings(t *testing.T) {
	cases := map[string]Status{
		"OPEN":      StatusPending,
		"open":      StatusPending,
		"CANCELED":  StatusCancelled,
		"cancelled": StatusCancelled,
		" sent ":    StatusSent,
		"CONVERTED": StatusConverted,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseStatus("DRAFT")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransitionTable(t *testing.T) {
	all := []Status{StatusPending, StatusSent, StatusApproved, StatusConverted, StatusExpired, StatusCancelled}
	allowed := map[Status]map[Status]bool{
		StatusPending:   {StatusSent: true, StatusApproved: true, StatusCancelled: true, StatusExpired: true},
		StatusSent:      {StatusApproved: true, StatusCancelled: true, StatusExpired: true, StatusPending: true},
		StatusApproved:  {StatusConverted: true, StatusCancelled: true, StatusExpired: true},
		StatusExpired:   {StatusPending: true, StatusSent: true},
		StatusCancelled: {StatusPending: true},
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestComputeTotalsModes(t *testing.T) {
	items := []Item{
		{LineTotal: LineTotal(2, dec("100"), dec("0"))},
		{LineTotal: LineTotal(1, dec("60"), dec("10"))},
	}

	seq, err := ComputeTotals(items, dec("50"), dec("10"), DiscountSequential)
	require.NoError(t, err)
	assert.True(t, seq.Subtotal.Equal(dec("250")))
	assert.True(t, seq.PercentAmount.Equal(dec("20")))
	assert.True(t, seq.Total.Equal(dec("180")))

	ind, err := ComputeTotals(items, dec("50"), dec("10"), DiscountIndependent)
	require.NoError(t, err)
	assert.True(t, ind.PercentAmount.Equal(dec("25")))
	assert.True(t, ind.Total.Equal(dec("175")))
}

func TestComputeTotalsRoundsToCents(t *testing.T) {
	items := []Item{{LineTotal: dec("99.99")}}
	tot, err := ComputeTotals(items, dec("0"), dec("33.333"), DiscountSequential)
	require.NoError(t, err)
	assert.Equal(t, "66.66", tot.Total.StringFixed(2))
	assert.Equal(t, int32(-2), tot.Total.Exponent())
}

func TestComputeTotalsRejectsNegativeTotal(t *testing.T) {
	_, err := ComputeTotals([]Item{{LineTotal: dec("10")}}, dec("11"), dec("0"), DiscountSequential)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "R$")
}

func TestBuildItemsInfersType(t *testing.T) {
	items, err := buildItems([]ItemInput{
		{ProductID: ptr(int64(1)), Quantity: 1, UnitPrice: dec("10")},
		{Description: "Limpeza", Quantity: 1, UnitPrice: dec("5")},
	})
	require.NoError(t, err)
	assert.Equal(t, ItemProduct, items[0].ItemType)
	assert.Equal(t, ItemService, items[1].ItemType)
	assert.Equal(t, 2, items[1].Position)

	_, err = buildItems([]ItemInput{{ItemType: ItemProduct, Quantity: 1}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = buildItems([]ItemInput{{Quantity: 1, UnitPrice: dec("5"), Discount: dec("6")}})
	require.ErrorIs(t, err, shared.ErrValidation)
}
