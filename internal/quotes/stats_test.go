package quotes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildStats(t *testing.T) {
	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	conv1 := created.Add(48 * time.Hour)
	conv2 := created.Add(96 * time.Hour)
	yesterday := today.AddDate(0, 0, -1)
	sent := created.Add(time.Hour)

	rows := []StatsRow{
		{Status: StatusConverted, CreatedAt: created, ConvertedAt: &conv1, SentAt: &sent},
		{Status: StatusConverted, CreatedAt: created, ConvertedAt: &conv2},
		{Status: StatusCancelled, CreatedAt: created, LostReason: ptr(" preço ")},
		{Status: StatusExpired, CreatedAt: created},
		{Status: StatusPending, CreatedAt: created, FollowUpDate: &yesterday},
		{Status: StatusSent, CreatedAt: created, FollowUpDate: &today, SentAt: &sent},
		{Status: StatusCancelled, CreatedAt: created, FollowUpDate: &yesterday, LostReason: ptr("preço")},
	}

	report := BuildStats(rows, today)
	assert.Equal(t, 7, report.Total)
	assert.Equal(t, 2, report.ByStatus[StatusConverted])
	assert.Equal(t, 2, report.ByStatus[StatusCancelled])
	assert.Equal(t, 28.57, report.ConversionRate)
	assert.Equal(t, 3.0, report.AvgDaysToConversion)
	assert.Equal(t, map[string]int{"preço": 2, UnspecifiedReason: 1}, report.LossReasons)
	assert.Equal(t, 2, report.SentCount)
	assert.Equal(t, 1, report.OverdueFollowUps)
}

func TestBuildStatsEmpty(t *testing.T) {
	report := BuildStats(nil, time.Now())
	assert.Zero(t, report.Total)
	assert.Zero(t, report.ConversionRate)
	assert.Empty(t, report.LossReasons)
}

func TestStatsFilterCacheKeyDistinguishesBranches(t *testing.T) {
	a := StatsFilter{TenantID: 1, BranchID: ptr(int64(2))}
	b := StatsFilter{TenantID: 1, BranchID: ptr(int64(3))}
	c := StatsFilter{TenantID: 1}
	assert.NotEqual(t, a.cacheKey(), b.cacheKey())
	assert.NotEqual(t, a.cacheKey(), c.cacheKey())
}
