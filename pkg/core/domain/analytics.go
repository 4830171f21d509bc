package domain

import (
	"sort"
	"time"
)

const (
	DefaultTopReferrers = 5
	RecentClicksLimit   = 10
)

// Analytics represents aggregated statistics for a link
type Analytics struct {
	TotalClicks     int64           `json:"total_clicks"`
	ClicksLast24h   int64           `json:"clicks_last_24h"`
	ClicksLast7d    int64           `json:"clicks_last_7d"`
	ClicksLast30d   int64           `json:"clicks_last_30d"`
	UniqueReferrers []string        `json:"unique_referrers"`
	TopReferrers    []ReferrerCount `json:"top_referrers"`
	ClicksByDate    []DailyClick    `json:"clicks_by_date"` // timeline
	RecentClicks    []Click         `json:"recent_clicks"`
}

type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Count    int64  `json:"count"`
}

type DailyClick struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int64  `json:"count"`
}

// Analytics summarizes the click history as seen at now.
func (l *Link) Analytics(now time.Time) Analytics {
	return Analytics{
		TotalClicks:     l.ClickCount,
		ClicksLast24h:   l.ClicksSince(now.Add(-24 * time.Hour)),
		ClicksLast7d:    l.ClicksSince(now.Add(-7 * 24 * time.Hour)),
		ClicksLast30d:   l.ClicksSince(now.Add(-30 * 24 * time.Hour)),
		UniqueReferrers: l.UniqueReferrers(),
		TopReferrers:    l.TopReferrers(DefaultTopReferrers),
		ClicksByDate:    l.ClicksByDate(),
		RecentClicks:    l.RecentClicks(RecentClicksLimit),
	}
}

// ClicksSince counts clicks strictly after since.
func (l *Link) ClicksSince(since time.Time) int64 {
	var n int64
	for _, c := range l.Clicks {
		if c.Timestamp.After(since) {
			n++
		}
	}
	return n
}

// UniqueReferrers lists distinct non-empty referrers in first-seen order.
func (l *Link) UniqueReferrers() []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, c := range l.Clicks {
		if c.Referrer == "" {
			continue
		}
		if _, ok := seen[c.Referrer]; ok {
			continue
		}
		seen[c.Referrer] = struct{}{}
		out = append(out, c.Referrer)
	}
	return out
}

// TopReferrers ranks referrers by click count, descending. Equal counts keep
// first-seen order.
func (l *Link) TopReferrers(limit int) []ReferrerCount {
	if limit <= 0 {
		return []ReferrerCount{}
	}

	index := make(map[string]int)
	ranked := []ReferrerCount{}
	for _, c := range l.Clicks {
		if c.Referrer == "" {
			continue
		}
		i, ok := index[c.Referrer]
		if !ok {
			i = len(ranked)
			index[c.Referrer] = i
			ranked = append(ranked, ReferrerCount{Referrer: c.Referrer})
		}
		ranked[i].Count++
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ClicksByDate buckets clicks by UTC calendar day, ascending.
func (l *Link) ClicksByDate() []DailyClick {
	counts := make(map[string]int64)
	for _, c := range l.Clicks {
		counts[c.Timestamp.UTC().Format(time.DateOnly)]++
	}

	out := make([]DailyClick, 0, len(counts))
	for date, n := range counts {
		out = append(out, DailyClick{Date: date, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// RecentClicks returns up to limit of the latest clicks, most recent first.
func (l *Link) RecentClicks(limit int) []Click {
	if limit <= 0 {
		return []Click{}
	}
	start := len(l.Clicks) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Click, 0, len(l.Clicks)-start)
	for i := len(l.Clicks) - 1; i >= start; i-- {
		out = append(out, l.Clicks[i])
	}
	return out
}
