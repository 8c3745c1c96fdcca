package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/kvstore"
)

// DashboardTopN is how many entries each ranking on the dashboard shows.
const DashboardTopN = 10

// DailyStats is the request total for one day.
type DailyStats struct {
	Date      string `json:"date"`
	Requests  int64  `json:"requests"`
	Available bool   `json:"available"`
}

// HourCount is the request total for one hour of a day.
type HourCount struct {
	Hour     int   `json:"hour"`
	Requests int64 `json:"requests"`
}

// HourlyStats is today's request totals per UTC hour, from midnight to the current hour.
type HourlyStats struct {
	Date      string      `json:"date"`
	Hours     []HourCount `json:"hours"`
	Available bool        `json:"available"`
}

// RankEntry is one member of a ranking.
type RankEntry struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Ranking is a ranking read, highest count first.
type Ranking struct {
	Entries   []RankEntry `json:"entries"`
	Available bool        `json:"available"`
}

// ErrorStats is one day's error totals by type and by endpoint.
type ErrorStats struct {
	Date       string           `json:"date"`
	ByType     map[string]int64 `json:"by_type"`
	ByEndpoint map[string]int64 `json:"by_endpoint"`
	Total      int64            `json:"total"`
	Available  bool             `json:"available"`
}

// Dashboard aggregates today's view of every analytics read.
type Dashboard struct {
	Today        DailyStats  `json:"today"`
	Hourly       HourlyStats `json:"hourly"`
	TopEndpoints Ranking     `json:"top_endpoints"`
	TopLocations Ranking     `json:"top_locations"`
	Errors       ErrorStats  `json:"errors"`
	Available    bool        `json:"available"`
	GeneratedAt  time.Time   `json:"generated_at"`
}

// DailyStats returns the request total for the UTC day containing date.
func (t *Tracker) DailyStats(ctx context.Context, date time.Time) DailyStats {
	out := DailyStats{Date: date.UTC().Format(dateLayout)}
	n, err := t.gw.GetInt(ctx, DailyKey(date))
	if err != nil {
		return out
	}
	out.Requests = n
	out.Available = true
	return out
}

// HourlyStatsToday returns one entry per UTC hour of today up to and including the current hour.
func (t *Tracker) HourlyStatsToday(ctx context.Context) HourlyStats {
	now := t.clock.Now().UTC()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	out := HourlyStats{Date: now.Format(dateLayout), Hours: make([]HourCount, 0, now.Hour()+1)}
	for h := 0; h <= now.Hour(); h++ {
		n, err := t.gw.GetInt(ctx, HourlyKey(midnight.Add(time.Duration(h)*time.Hour)))
		if err != nil {
			out.Hours = out.Hours[:0]
			return out
		}
		out.Hours = append(out.Hours, HourCount{Hour: h, Requests: n})
	}
	out.Available = true
	return out
}

// TopEndpoints ranks endpoints by lifetime request count.
func (t *Tracker) TopEndpoints(ctx context.Context, limit int) Ranking {
	return t.ranking(ctx, KeyEndpointUsage, limit)
}

// TopLocations ranks locations by lifetime request count.
func (t *Tracker) TopLocations(ctx context.Context, limit int) Ranking {
	return t.ranking(ctx, KeyLocationRequests, limit)
}

// UserActivity ranks the endpoints one user has called.
func (t *Tracker) UserActivity(ctx context.Context, userID string, limit int) Ranking {
	if userID == "" {
		return Ranking{Entries: []RankEntry{}, Available: true}
	}
	return t.ranking(ctx, UserActivityKey(userID), limit)
}

// UserErrors ranks the error types one user has run into.
func (t *Tracker) UserErrors(ctx context.Context, userID string, limit int) Ranking {
	if userID == "" {
		return Ranking{Entries: []RankEntry{}, Available: true}
	}
	return t.ranking(ctx, UserErrorsKey(userID), limit)
}

// ErrorStats returns the error counters recorded for the UTC day containing date.
func (t *Tracker) ErrorStats(ctx context.Context, date time.Time) ErrorStats {
	day := date.UTC().Format(dateLayout)
	out := ErrorStats{Date: day, ByType: map[string]int64{}, ByEndpoint: map[string]int64{}}

	byType, err := t.counters(ctx, prefixErrors+day+":")
	if err != nil {
		return out
	}
	byEndpoint, err := t.counters(ctx, prefixEndpointErrors+day+":")
	if err != nil {
		return out
	}
	for k, n := range byType {
		out.ByType[k] = n
		out.Total += n
	}
	out.ByEndpoint = byEndpoint
	out.Available = true
	return out
}

// Dashboard gathers today's totals, the hourly series, the top rankings, and
// today's errors. It is Available only when every part was read.
func (t *Tracker) Dashboard(ctx context.Context) Dashboard {
	now := t.clock.Now().UTC()
	d := Dashboard{
		Today:        t.DailyStats(ctx, now),
		Hourly:       t.HourlyStatsToday(ctx),
		TopEndpoints: t.TopEndpoints(ctx, DashboardTopN),
		TopLocations: t.TopLocations(ctx, DashboardTopN),
		Errors:       t.ErrorStats(ctx, now),
		GeneratedAt:  now,
	}
	d.Available = d.Today.Available && d.Hourly.Available && d.TopEndpoints.Available &&
		d.TopLocations.Available && d.Errors.Available
	return d
}

// ResetAll deletes every analytics key and reports how many were removed.
func (t *Tracker) ResetAll(ctx context.Context) (int, error) {
	n, err := t.gw.EvictNamespace(ctx, "analytics:*")
	if err != nil {
		return 0, err
	}
	t.logger.Warn("analytics reset", "deleted", n)
	return n, nil
}

func (t *Tracker) ranking(ctx context.Context, key string, limit int) Ranking {
	members, err := t.gw.Top(ctx, key, limit)
	if err != nil {
		return Ranking{Entries: []RankEntry{}}
	}
	return Ranking{Entries: toEntries(members), Available: true}
}

// counters reads every counter whose key starts with prefix, keyed by the remainder.
func (t *Tracker) counters(ctx context.Context, prefix string) (map[string]int64, error) {
	keys, err := t.gw.Keys(ctx, kvstore.EscapeGlob(prefix)+"*")
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		n, err := t.gw.GetInt(ctx, k)
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(k, prefix)] = n
	}
	return out, nil
}

func toEntries(members []kvstore.ScoredMember) []RankEntry {
	out := make([]RankEntry, 0, len(members))
	for _, m := range members {
		out = append(out, RankEntry{Name: m.Member, Count: int64(m.Score)})
	}
	return out
}
