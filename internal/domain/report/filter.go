package report

import (
	"fmt"
	"sort"

	"github.com/okian/quotaboard/internal/domain/dashboard"
)

// Range is an inclusive numeric bound.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r *Range) contains(v float64) bool {
	return r == nil || (v >= r.Min && v <= r.Max)
}

// Filter narrows the rows shown. A nil name selection keeps every row; an
// empty non-nil selection keeps none. Nil ranges are inactive.
type Filter struct {
	Managers          []string `json:"managers,omitempty"`
	AEs               []string `json:"aes,omitempty"`
	PercentToQuota    *Range   `json:"percent_to_quota,omitempty"`
	ClosedWon         *Range   `json:"closed_won,omitempty"`
	OpenPipeline      *Range   `json:"open_pipeline,omitempty"`
	MeetingsScheduled *Range   `json:"meetings_scheduled,omitempty"`
}

// Apply returns the rows matching every active criterion, in input order.
func (f Filter) Apply(rows []dashboard.Row) []dashboard.Row {
	managers := toSet(f.Managers)
	aes := toSet(f.AEs)

	out := make([]dashboard.Row, 0, len(rows))
	for _, r := range rows {
		if managers != nil && !managers[r.ManagerName] {
			continue
		}
		if aes != nil && !aes[r.AEName] {
			continue
		}
		if !f.PercentToQuota.contains(r.PercentToQuota) ||
			!f.ClosedWon.contains(r.ClosedWon) ||
			!f.OpenPipeline.contains(r.OpenPipeline) ||
			!f.MeetingsScheduled.contains(float64(r.MeetingsScheduled)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Describe lists the active criteria for display.
func (f Filter) Describe() []string {
	var active []string
	if f.Managers != nil {
		active = append(active, fmt.Sprintf("%d manager(s)", len(f.Managers)))
	}
	if f.AEs != nil {
		active = append(active, fmt.Sprintf("%d AE(s)", len(f.AEs)))
	}
	if r := f.PercentToQuota; r != nil {
		active = append(active, fmt.Sprintf("Quota: %.0f%%-%.0f%%", r.Min, r.Max))
	}
	if r := f.ClosedWon; r != nil {
		active = append(active, fmt.Sprintf("Closed Won: %s-%s", Currency(r.Min), Currency(r.Max)))
	}
	if r := f.OpenPipeline; r != nil {
		active = append(active, fmt.Sprintf("Pipeline: %s-%s", Currency(r.Min), Currency(r.Max)))
	}
	if r := f.MeetingsScheduled; r != nil {
		active = append(active, fmt.Sprintf("Meetings: %.0f-%.0f", r.Min, r.Max))
	}
	return active
}

// ManagerNames returns the sorted distinct manager names.
func ManagerNames(rows []dashboard.Row) []string {
	return distinct(rows, func(r dashboard.Row) string { return r.ManagerName })
}

// AENames returns the sorted distinct AE names.
func AENames(rows []dashboard.Row) []string {
	return distinct(rows, func(r dashboard.Row) string { return r.AEName })
}

func distinct(rows []dashboard.Row, key func(dashboard.Row) string) []string {
	seen := make(map[string]bool, len(rows))
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func toSet(values []string) map[string]bool {
	if values == nil {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
