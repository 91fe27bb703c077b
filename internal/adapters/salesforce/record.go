package salesforce

import (
	"math"
	"strconv"

	"github.com/okian/quotaboard/internal/domain/dashboard"
)

// Record is one row of a SOQL result. Aggregate aliases appear as keys.
type Record map[string]any

// String returns field as a string, or "" when absent or null.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Float returns field as a number. Null aggregates read as 0.
func (r Record) Float(field string) float64 {
	switch v := r[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int returns field rounded to an integer.
func (r Record) Int(field string) int {
	return int(math.Round(r.Float(field)))
}

func amountsByOwner(records []Record, keyField, valueField string) dashboard.Amounts {
	out := make(dashboard.Amounts, len(records))
	for _, r := range records {
		if id := r.String(keyField); id != "" {
			out[id] += r.Float(valueField)
		}
	}
	return out
}

func countsByOwner(records []Record, keyField, valueField string) dashboard.Counts {
	out := make(dashboard.Counts, len(records))
	for _, r := range records {
		if id := r.String(keyField); id != "" {
			out[id] += r.Int(valueField)
		}
	}
	return out
}
