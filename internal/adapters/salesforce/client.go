package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/quotaboard/pkg/logger"
	"golang.org/x/oauth2"
)

// DefaultAPIVersion is the REST API version used when none is configured.
const DefaultAPIVersion = "v59.0"

const maxErrorBody = 64 << 10

// Querier runs a SOQL query and returns every record across all pages.
type Querier interface {
	Query(ctx context.Context, soql string) ([]Record, error)
}

// Client is a Salesforce REST query client. The http.Client is expected to
// authenticate requests, typically one produced by an OAuth token source.
type Client struct {
	httpClient  *http.Client
	instanceURL string
	apiVersion  string
	logger      logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIVersion sets the REST API version, e.g. "v59.0".
func WithAPIVersion(version string) ClientOption {
	return func(c *Client) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a Client for the org at instanceURL.
func NewClient(httpClient *http.Client, instanceURL string, opts ...ClientOption) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("%w: nil http client", ErrInvalidConfig)
	}
	u, err := url.Parse(instanceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: instance url %q", ErrInvalidConfig, instanceURL)
	}

	c := &Client{
		httpClient:  httpClient,
		instanceURL: strings.TrimRight(instanceURL, "/"),
		apiVersion:  DefaultAPIVersion,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type queryPage struct {
	TotalSize      int      `json:"totalSize"`
	Done           bool     `json:"done"`
	NextRecordsURL string   `json:"nextRecordsUrl"`
	Records        []Record `json:"records"`
}

// Query runs soql and follows nextRecordsUrl until the result is complete.
// The per-record "attributes" envelope is dropped.
func (c *Client) Query(ctx context.Context, soql string) ([]Record, error) {
	start := time.Now()
	next := fmt.Sprintf("%s/services/data/%s/query?q=%s", c.instanceURL, c.apiVersion, url.QueryEscape(soql))

	var records []Record
	pages := 0
	for next != "" {
		page, err := c.fetch(ctx, next)
		if err != nil {
			return nil, err
		}
		pages++
		for _, r := range page.Records {
			delete(r, "attributes")
		}
		records = append(records, page.Records...)

		next = ""
		if !page.Done && page.NextRecordsURL != "" {
			next = c.instanceURL + page.NextRecordsURL
		}
	}

	c.logger.Debug(ctx, "soql query complete",
		logger.Int("records", len(records)),
		logger.Int("pages", pages),
		logger.Duration("took", time.Since(start)))
	return records, nil
}

func (c *Client) fetch(ctx context.Context, target string) (*queryPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isUnauthorized(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn(ctx, "failed to close response body", logger.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var page queryPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrQuery, err)
	}
	return &page, nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var entries []struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	if json.Unmarshal(body, &entries) == nil && len(entries) > 0 {
		apiErr.Code = entries[0].ErrorCode
		apiErr.Message = entries[0].Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// isUnauthorized reports a failed token refresh surfaced by the transport.
func isUnauthorized(err error) bool {
	var re *oauth2.RetrieveError
	return errors.As(err, &re)
}
