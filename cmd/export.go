package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	service "github.com/okian/quotaboard/internal/app"
	"github.com/okian/quotaboard/internal/domain/period"
	"github.com/okian/quotaboard/internal/domain/report"
	"github.com/okian/quotaboard/pkg/logger"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	now := time.Now()
	var (
		year  int
		month int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a month's dashboard rows as CSV",
		Long: `Build the dashboard for one month with the saved Salesforce tokens and
write it as CSV. Sign in through the web UI first so a token file exists.

Without --out the file is named ae_dashboard_YYYY_MM.csv; use --out - for stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, lg, err := setup(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			c, err := buildService(ctx, cfg, lg)
			if err != nil {
				return err
			}
			defer c.Close()

			if out == "" {
				out = report.FileName(year, time.Month(month))
			}
			n, err := export(ctx, c.svc, year, time.Month(month), out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if out != "-" {
				lg.Info(ctx, "dashboard exported", logger.String("file", out), logger.Int("rows", n))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", now.Year(), "report year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "report month (1-12)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")
	return cmd
}

// export builds one month from the saved tokens and writes its CSV to path,
// or to stdout when path is "-". It returns the number of rows written.
func export(ctx context.Context, svc *service.Service, year int, month time.Month, path string, stdout io.Writer) (int, error) {
	if _, err := period.MonthRange(year, month); err != nil {
		return 0, err
	}
	sess := svc.Restore(ctx)
	if !sess.Authenticated() {
		return 0, fmt.Errorf("%w: sign in through the web UI first", service.ErrNotAuthenticated)
	}
	rep, err := svc.Dashboard(ctx, sess.ID, year, month)
	if err != nil {
		return 0, err
	}
	for _, w := range rep.WarningMessages() {
		fmt.Fprintln(os.Stderr, "warning: "+w)
	}

	if path == "-" {
		return len(rep.Rows), report.WriteCSV(stdout, rep.Rows)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := report.WriteCSV(f, rep.Rows); err != nil {
		_ = f.Close()
		return 0, err
	}
	return len(rep.Rows), f.Close()
}
