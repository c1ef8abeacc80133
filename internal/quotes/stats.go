package quotes

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// StatsFilter scopes statistics to a tenant, optionally a branch and a
// creation date range [From, To).
type StatsFilter struct {
	TenantID int64
	BranchID *int64
	From     *time.Time
	To       *time.Time
}

// cacheKey identifies the filter inside a tenant cache namespace.
func (f StatsFilter) cacheKey() string {
	var b strings.Builder
	b.WriteString("branch=")
	if f.BranchID != nil {
		fmt.Fprintf(&b, "%d", *f.BranchID)
	}
	b.WriteString(":from=")
	if f.From != nil {
		b.WriteString(f.From.UTC().Format(time.RFC3339))
	}
	b.WriteString(":to=")
	if f.To != nil {
		b.WriteString(f.To.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// StatsRow is the per-quote projection statistics are built from.
type StatsRow struct {
	Status       Status
	CreatedAt    time.Time
	ConvertedAt  *time.Time
	LostReason   *string
	SentAt       *time.Time
	FollowUpDate *time.Time
}

// StatsReport aggregates quote outcomes.
type StatsReport struct {
	Total               int            `json:"total"`
	ByStatus            map[Status]int `json:"by_status"`
	ConversionRate      float64        `json:"conversion_rate"`
	AvgDaysToConversion float64        `json:"avg_days_to_conversion"`
	LossReasons         map[string]int `json:"loss_reasons"`
	SentCount           int            `json:"sent_count"`
	OverdueFollowUps    int            `json:"overdue_follow_ups"`
}

// UnspecifiedReason buckets lost quotes without a recorded reason.
const UnspecifiedReason = "unspecified"

// BuildStats aggregates rows. today is the civil date follow-ups are
// compared against.
func BuildStats(rows []StatsRow, today time.Time) StatsReport {
	report := StatsReport{
		Total:       len(rows),
		ByStatus:    make(map[Status]int),
		LossReasons: make(map[string]int),
	}
	var (
		converted     int
		conversionHrs float64
		timed         int
	)
	for _, r := range rows {
		report.ByStatus[r.Status]++
		switch r.Status {
		case StatusConverted:
			converted++
			if r.ConvertedAt != nil {
				conversionHrs += r.ConvertedAt.Sub(r.CreatedAt).Hours()
				timed++
			}
		case StatusCancelled, StatusExpired:
			reason := UnspecifiedReason
			if r.LostReason != nil && strings.TrimSpace(*r.LostReason) != "" {
				reason = strings.TrimSpace(*r.LostReason)
			}
			report.LossReasons[reason]++
		}
		if r.SentAt != nil {
			report.SentCount++
		}
		if r.FollowUpDate != nil && r.Status.Active() && r.FollowUpDate.Before(today) {
			report.OverdueFollowUps++
		}
	}
	if report.Total > 0 {
		report.ConversionRate = round2(float64(converted) / float64(report.Total) * 100)
	}
	if timed > 0 {
		report.AvgDaysToConversion = round2(conversionHrs / 24 / float64(timed))
	}
	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
