package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/okian/quotaboard/internal/domain/dashboard"
)

// FileName is the download name for a period's export.
func FileName(year int, month time.Month) string {
	return fmt.Sprintf("ae_dashboard_%d_%02d.csv", year, int(month))
}

// WriteCSV writes a header of column names followed by one record per row
// with raw values. The NoHistoricData sentinel is written unchanged.
func WriteCSV(w io.Writer, rows []dashboard.Row) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(Columns))
	for i, c := range Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(Columns))
	for _, r := range rows {
		for i, v := range Values(r) {
			record[i] = raw(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %q: %w", r.AEName, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func raw(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	default:
		return fmt.Sprint(v)
	}
}
