package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL   = "https://localhost:7051/api"
	DefaultTimeout   = 10 * time.Second
	DefaultLoginPath = "/login"
)

// SessionClearer drops local session remnants after the server reports 401
type SessionClearer interface {
	Clear(ctx context.Context) error
}

// Navigator is the consumer's notion of a current location and how to move to the login entry point
type Navigator interface {
	Location() string
	Redirect(path string)
}

// Options configures a Client
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	LoginPath string

	// TokenSource supplies bearer tokens. When nil, cookies are used for credentials.
	TokenSource oauth2.TokenSource

	Session   SessionClearer
	Navigator Navigator
	Logger    *zap.Logger

	// Transport overrides the base round tripper (tests)
	Transport http.RoundTripper
}

// Client is the single chokepoint for calls to the booking service
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	loginPath string
	session   SessionClearer
	nav       Navigator
	logger    *zap.Logger
}

// New creates a Client
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.TokenSource != nil {
		transport = &bearerTransport{source: opts.TokenSource, base: transport}
	}

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   opts.Timeout,
	}
	if opts.TokenSource == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	return &Client{
		baseURL:   base,
		http:      httpClient,
		loginPath: opts.LoginPath,
		session:   opts.Session,
		nav:       opts.Navigator,
		logger:    opts.Logger,
	}, nil
}

// SetSession wires the session and navigator after construction, for callers
// whose session store itself depends on the client.
func (c *Client) SetSession(session SessionClearer, nav Navigator) {
	c.session = session
	c.nav = nav
}

// LoginPath returns the login entry point used for 401 redirects
func (c *Client) LoginPath() string {
	return c.loginPath
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodDelete, path, body, out)
}

// Do performs a JSON request. Every failure is returned as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.DoStatus(ctx, method, path, body, out)
	return err
}

// DoStatus is Do that also reports the response status code
func (c *Client) DoStatus(ctx context.Context, method, path string, body, out any) (int, error) {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, unknownError(fmt.Errorf("failed to encode request body: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return 0, unknownError(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("API request failed without response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return 0, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, transportError(fmt.Errorf("failed to read response body: %w", err))
	}

	c.logger.Debug("API request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := serverError(resp.StatusCode, data)
		if apiErr.Status == http.StatusUnauthorized {
			c.handleUnauthorized(ctx)
		}
		return resp.StatusCode, apiErr
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, unknownError(fmt.Errorf("failed to decode response: %w", err))
		}
	}

	return resp.StatusCode, nil
}

// handleUnauthorized clears the session and sends the consumer to the login
// entry point, unless it is already there.
func (c *Client) handleUnauthorized(ctx context.Context) {
	if c.session != nil {
		if err := c.session.Clear(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("Failed to clear session after 401", zap.Error(err))
		}
	}
	if c.nav == nil {
		return
	}
	if c.nav.Location() == c.loginPath {
		c.logger.Debug("Already at login entry point, not redirecting")
		return
	}
	c.logger.Info("Session expired, redirecting to login", zap.String("login_path", c.loginPath))
	c.nav.Redirect(c.loginPath)
}

func (c *Client) resolve(path string) string {
	return c.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

// bearerTransport attaches the session token when one is available and sends
// the request unauthenticated otherwise.
type bearerTransport struct {
	source oauth2.TokenSource
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil || token == nil || token.AccessToken == "" {
		return t.base.RoundTrip(req)
	}
	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(token),
		Base:   t.base,
	}
	return transport.RoundTrip(req)
}
