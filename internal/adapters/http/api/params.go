package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/quotaboard/internal/adapters/oauth"
	"github.com/okian/quotaboard/internal/domain/dashboard"
	"github.com/okian/quotaboard/internal/domain/period"
	"github.com/okian/quotaboard/internal/domain/report"
)

// yearsBack is how many past years the period picker offers.
const yearsBack = 2

// yearOptions lists the selectable years, newest first.
func yearOptions(now time.Time) []int {
	years := make([]int, 0, yearsBack+1)
	for y := now.Year(); y >= now.Year()-yearsBack; y-- {
		years = append(years, y)
	}
	return years
}

// parsePeriod reads month and year from q. Missing or malformed values fall
// back to the session's last selection, then to now. Months are clamped to
// 1..12 and years outside the picker fall back to the current year.
func parsePeriod(q url.Values, sess oauth.Session, now time.Time) (int, time.Month) {
	year, month := now.Year(), now.Month()
	if sess.Year != 0 && sess.Month != 0 {
		year, month = sess.Year, sess.Month
	}
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get("month"))); err == nil {
		month = period.Clamp(v)
	}
	if v, err := strconv.Atoi(strings.TrimSpace(q.Get("year"))); err == nil {
		year = v
	}
	valid := false
	for _, y := range yearOptions(now) {
		if y == year {
			valid = true
			break
		}
	}
	if !valid {
		year = now.Year()
	}
	return year, month
}

// parseFilter builds a report filter from q. Name selections are active
// whenever the key is present, so "manager=" selects nobody. A range is
// active when either bound is given; the other bound defaults to the
// extent of rows.
func parseFilter(q url.Values, rows []dashboard.Row) (report.Filter, error) {
	var f report.Filter
	f.Managers = selection(q, "manager")
	f.AEs = selection(q, "ae")

	ranges := []struct {
		key   string
		dst   **report.Range
		value func(dashboard.Row) float64
	}{
		{"pct", &f.PercentToQuota, func(r dashboard.Row) float64 { return r.PercentToQuota }},
		{"won", &f.ClosedWon, func(r dashboard.Row) float64 { return r.ClosedWon }},
		{"pipe", &f.OpenPipeline, func(r dashboard.Row) float64 { return r.OpenPipeline }},
		{"meet", &f.MeetingsScheduled, func(r dashboard.Row) float64 { return float64(r.MeetingsScheduled) }},
	}
	for _, r := range ranges {
		rng, err := parseRange(q, r.key, rows, r.value)
		if err != nil {
			return report.Filter{}, err
		}
		*r.dst = rng
	}
	return f, nil
}

func selection(q url.Values, key string) []string {
	values, ok := q[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseRange(q url.Values, key string, rows []dashboard.Row, value func(dashboard.Row) float64) (*report.Range, error) {
	minRaw := strings.TrimSpace(q.Get(key + "_min"))
	maxRaw := strings.TrimSpace(q.Get(key + "_max"))
	if minRaw == "" && maxRaw == "" {
		return nil, nil
	}

	lo, hi := extent(rows, value)
	if minRaw != "" {
		v, err := strconv.ParseFloat(minRaw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, WrapKind("api.parse_filter", ErrBadRequest, fmt.Errorf("invalid %s_min %q", key, minRaw))
		}
		lo = v
	}
	if maxRaw != "" {
		v, err := strconv.ParseFloat(maxRaw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, WrapKind("api.parse_filter", ErrBadRequest, fmt.Errorf("invalid %s_max %q", key, maxRaw))
		}
		hi = v
	}
	switch {
	case minRaw == "" && lo > hi:
		lo = hi
	case maxRaw == "" && hi < lo:
		hi = lo
	}
	if lo > hi {
		return nil, WrapKind("api.parse_filter", ErrBadRequest, fmt.Errorf("%s_min exceeds %s_max", key, key))
	}
	return &report.Range{Min: lo, Max: hi}, nil
}

func extent(rows []dashboard.Row, value func(dashboard.Row) float64) (float64, float64) {
	if len(rows) == 0 {
		return 0, 0
	}
	lo, hi := value(rows[0]), value(rows[0])
	for _, r := range rows[1:] {
		v := value(r)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
