package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/quotaboard/internal/adapters/oauth"
	"github.com/okian/quotaboard/internal/adapters/repository"
	"github.com/okian/quotaboard/internal/adapters/salesforce"
	service "github.com/okian/quotaboard/internal/app"
	"github.com/okian/quotaboard/internal/config"
	"github.com/okian/quotaboard/internal/domain/dashboard"
	"github.com/okian/quotaboard/internal/domain/dedupe"
	"github.com/okian/quotaboard/pkg/logger"
	"github.com/spf13/cobra"
)

// Authorization codes are remembered for this long to reject replays.
const codeGuardTTL = 10 * time.Minute

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quotaboard",
		Short: "Monthly AE performance dashboard backed by Salesforce",
		Long: `quotaboard serves a monthly Account Executive dashboard built from
Salesforce opportunities, quotas, forecasts and activities.

Without a subcommand it runs the HTTP server.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(newServeCmd(), newExportCmd(), newMigrateCmd())
	return root
}

// setup loads configuration and initializes logging. Configuration comes from
// defaults, the optional QUOTABOARD_CONFIG file, SALESFORCE_* and QUOTABOARD_* env.
func setup(ctx context.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		fmt.Fprintln(os.Stderr, "failed to load config: "+err.Error())
		return nil, nil, err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging: "+err.Error())
		return nil, nil, err
	}
	lg := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		lg.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, lg, nil
}

// components holds what buildService opened so callers can release it.
type components struct {
	svc *service.Service
	db  *repository.DB
}

func (c *components) Close() {
	if c.db != nil {
		c.db.Close()
	}
}

// buildService wires the dashboard service from cfg.
func buildService(ctx context.Context, cfg *config.Config, lg logger.Logger) (*components, error) {
	opts := []service.Option{
		service.WithLogger(lg.Named("service")),
		service.WithAPIVersion(cfg.APIVersion),
		service.WithAllowPartial(cfg.AllowPartial),
		service.WithSessionTTL(cfg.SessionTTL),
		service.WithRestoreSavedTokens(cfg.RestoreSavedTokens),
		service.WithCodeGuard(dedupe.NewInMemoryDeduper(dedupe.WithTTL(codeGuardTTL))),
		service.WithBuilder(dashboard.NewBuilder(
			dashboard.WithAvgDealSize(cfg.AvgDealSize),
			dashboard.WithWinRate(cfg.WinRate),
			dashboard.WithFallbackCoverageRatio(cfg.FallbackCoverageRatio),
		)),
		service.WithLoaderOptions(
			salesforce.WithQueries(salesforce.NewQueries(cfg.WonStage, cfg.Keywords())),
			salesforce.WithHistoryMonths(cfg.HistoryMonths),
			salesforce.WithConcurrency(cfg.QueryConcurrency),
			salesforce.WithLogger(lg.Named("salesforce")),
		),
	}

	if cfg.OAuthConfigured() {
		provider, err := oauth.NewProvider(oauth.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes(),
			Sandbox:      cfg.Sandbox,
			LoginURL:     cfg.LoginURL,
		}, oauth.WithLogger(lg.Named("oauth")))
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithAuthenticator(provider))
		if cfg.PasswordLoginConfigured() {
			opts = append(opts, service.WithPasswordCredentials(oauth.Credentials{
				Username:      cfg.Username,
				Password:      cfg.Password,
				SecurityToken: cfg.SecurityToken,
			}))
		}
	} else {
		lg.Warn(ctx, "Salesforce OAuth is not configured; login is disabled")
	}

	tokenPath := cfg.TokenFile
	if tokenPath == "" {
		p, err := repository.DefaultTokenPath()
		if err != nil {
			return nil, err
		}
		tokenPath = p
	}
	opts = append(opts, service.WithTokenStore(repository.NewFileTokenStore(tokenPath)))

	c := &components{}
	if cfg.DatabaseURL != "" {
		if _, err := repository.MigrateUp(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		db, err := repository.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.db = db
		opts = append(opts, service.WithSnapshotStore(
			repository.NewPostgresStore(db, repository.WithLogger(lg.Named("snapshots"))),
		))
	}

	c.svc = service.New(opts...)
	return c, nil
}
