// Package oauth implements the Salesforce OAuth 2.0 web server flow and the
// browser sessions that carry its tokens.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/quotaboard/pkg/logger"
	"github.com/okian/quotaboard/pkg/metrics"
	"golang.org/x/oauth2"
)

// Login hosts.
const (
	ProductionLoginURL = "https://login.salesforce.com"
	SandboxLoginURL    = "https://test.salesforce.com"
)

// DefaultScopes requests API access plus a long-lived refresh token.
var DefaultScopes = []string{"api", "refresh_token", "offline_access"}

// Config describes the connected app.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Sandbox      bool
	// LoginURL overrides the production and sandbox hosts, e.g. a My Domain URL.
	LoginURL string
}

// Endpoint resolves the authorize and token URLs. A custom login URL wins
// over the sandbox flag.
func Endpoint(sandbox bool, loginURL string) oauth2.Endpoint {
	base := ProductionLoginURL
	switch {
	case strings.TrimSpace(loginURL) != "":
		base = strings.TrimRight(strings.TrimSpace(loginURL), "/")
	case sandbox:
		base = SandboxLoginURL
	}
	return oauth2.Endpoint{
		AuthURL:   base + "/services/oauth2/authorize",
		TokenURL:  base + "/services/oauth2/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// Provider runs the authorization code flow against Salesforce.
type Provider struct {
	cfg        *oauth2.Config
	httpClient *http.Client
	logger     logger.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvider validates cfg and returns a Provider.
func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	p := &Provider{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     Endpoint(cfg.Sandbox, cfg.LoginURL),
		},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// AuthCodeURL returns the authorize URL. The login screen is always shown.
func (p *Provider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "login"))
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code string) (Token, error) {
	tok, err := p.cfg.Exchange(p.context(ctx), code)
	if err != nil {
		metrics.RecordOAuthExchange(metrics.OutcomeFailure)
		return Token{}, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	out := fromOAuth2(tok, Token{})
	if out.InstanceURL == "" {
		metrics.RecordOAuthExchange(metrics.OutcomeFailure)
		return Token{}, ErrMissingInstanceURL
	}
	metrics.RecordOAuthExchange(metrics.OutcomeSuccess)
	p.logger.Info(ctx, "authorization code exchanged", logger.String("instance_url", out.InstanceURL))
	return out, nil
}

// Refresh obtains a new access token from tok's refresh token.
func (p *Provider) Refresh(ctx context.Context, tok Token) (Token, error) {
	if tok.RefreshToken == "" {
		metrics.RecordOAuthRefresh(metrics.OutcomeFailure)
		return Token{}, fmt.Errorf("%w: no refresh token", ErrRefresh)
	}
	src := p.cfg.TokenSource(p.context(ctx), &oauth2.Token{RefreshToken: tok.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		metrics.RecordOAuthRefresh(metrics.OutcomeFailure)
		return Token{}, fmt.Errorf("%w: %v", ErrRefresh, err)
	}
	metrics.RecordOAuthRefresh(metrics.OutcomeSuccess)
	p.logger.Debug(ctx, "access token refreshed")
	return fromOAuth2(fresh, tok), nil
}

// PasswordLogin signs in as the integration user with the username-password
// flow. Salesforce expects the security token appended to the password.
func (p *Provider) PasswordLogin(ctx context.Context, c Credentials) (Token, error) {
	if !c.Complete() {
		return Token{}, ErrNoCredentials
	}
	tok, err := p.cfg.PasswordCredentialsToken(p.context(ctx), c.Username, c.Password+c.SecurityToken)
	if err != nil {
		metrics.RecordOAuthExchange(metrics.OutcomeFailure)
		return Token{}, fmt.Errorf("%w: %v", ErrPasswordLogin, err)
	}
	out := fromOAuth2(tok, Token{})
	if out.InstanceURL == "" {
		metrics.RecordOAuthExchange(metrics.OutcomeFailure)
		return Token{}, ErrMissingInstanceURL
	}
	metrics.RecordOAuthExchange(metrics.OutcomeSuccess)
	p.logger.Info(ctx, "password login succeeded",
		logger.String("username", c.Username),
		logger.String("instance_url", out.InstanceURL),
	)
	return out, nil
}

// Client returns an HTTP client that sends tok as a bearer token and
// refreshes it once it expires.
func (p *Provider) Client(ctx context.Context, tok Token) *http.Client {
	return p.cfg.Client(p.context(ctx), tok.oauth2Token())
}

func (p *Provider) context(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}
