// Package registry queries the npm registry for get-shit-done version
// metadata. It is a thin read-only client: lookups that fail because the
// package or version does not exist return zero values rather than errors,
// so callers can tell "no update information" apart from a hard failure.
package registry

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

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"

	"github.com/gsdhq/gsd/internal/errs"
	"github.com/gsdhq/gsd/pkg/versioning"
)

// DefaultURL is the public npm registry.
const DefaultURL = "https://registry.npmjs.org"

// PackageName is the npm package carrying the gsd templates.
const PackageName = "get-shit-done-cc"

var (
	errNotFound     = errors.New("package not found")
	errUpstreamDown = errors.New("registry unavailable")
)

// Client fetches package metadata with retry and circuit breaking.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
	userAgent  string
	maxRetries uint64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different registry (used in tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets the maximum retry attempts per request.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a registry client. The circuit breaker trips after five
// consecutive upstream failures and recovers on an exponential schedule, so
// a dead registry fails fast instead of hanging every phase that asks for
// version metadata.
func NewClient(opts ...Option) *Client {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	c := &Client{
		baseURL: DefaultURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: circuit.NewBreakerWithOptions(&circuit.Options{
			BackOff:    expBackoff,
			ShouldTrip: circuit.ThresholdTripFunc(5),
		}),
		userAgent:  "gsd-cli",
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// packument is the subset of the npm package document gsd needs.
type packument struct {
	Name     string                     `json:"name"`
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]json.RawMessage `json:"versions"`
}

// LatestVersion returns the version behind the dist-tag (typically "latest"
// or "beta"), or "" when the package or tag does not exist. Network failures
// surface as NetworkError so the caller aborts before any destructive step.
func (c *Client) LatestVersion(ctx context.Context, pkg, distTag string) (string, error) {
	doc, err := c.fetchPackument(ctx, pkg)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return "", nil
		}
		return "", err
	}
	if distTag == "" {
		distTag = "latest"
	}
	return versioning.Normalize(doc.DistTags[distTag]), nil
}

// VersionExists reports whether the exact version is published. A missing
// package or version is (false, nil).
func (c *Client) VersionExists(ctx context.Context, pkg, version string) (bool, error) {
	doc, err := c.fetchPackument(ctx, pkg)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return false, nil
		}
		return false, err
	}
	_, ok := doc.Versions[versioning.Normalize(version)]
	return ok, nil
}

// CompareVersions orders two semantic versions: -1, 0, or 1.
func CompareVersions(a, b string) (int, error) {
	cmp, err := versioning.Compare(a, b)
	if err != nil {
		return 0, err
	}
	return cmp.Int(), nil
}

func (c *Client) fetchPackument(ctx context.Context, pkg string) (*packument, error) {
	if !c.breaker.Ready() {
		return nil, errs.Newf(errs.TagNetworkError, "registry", "circuit breaker open for %s", c.baseURL)
	}

	var doc *packument
	operation := func() error {
		var fetchErr error
		doc, fetchErr = c.doFetch(ctx, pkg)
		if fetchErr == nil {
			return nil
		}
		// Not-found is a definitive answer, not a transient failure.
		if errors.Is(fetchErr, errNotFound) {
			return backoff.Permanent(fetchErr)
		}
		if errors.Is(fetchErr, errUpstreamDown) {
			return fetchErr
		}
		return backoff.Permanent(fetchErr)
	}

	policy := backoff.WithContext(c.retryPolicy(), ctx)

	err := c.breaker.Call(func() error { return backoff.Retry(operation, policy) }, 0)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, errNotFound
		}
		if errors.Is(err, circuit.ErrBreakerOpen) {
			return nil, errs.Newf(errs.TagNetworkError, "registry", "circuit breaker open for %s", c.baseURL)
		}
		return nil, errs.New(errs.TagNetworkError, "registry", err)
	}
	return doc, nil
}

// retryPolicy caps retries at maxRetries. WithMaxRetries treats zero as
// unlimited, so zero retries means a single attempt and no backoff at all.
func (c *Client) retryPolicy() backoff.BackOff {
	if c.maxRetries == 0 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(newRetryBackOff(), c.maxRetries)
}

func newRetryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	return b
}

func (c *Client) doFetch(ctx context.Context, pkg string) (*packument, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(pkg))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	// The abbreviated document would do, but dist-tags plus the version map
	// is all we parse either way.
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUpstreamDown, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		var doc packument
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding package document: %w", err)
		}
		return &doc, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errUpstreamDown, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
