package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
)

// New creates a Client which keeps the A-record for domain in sync with the host's public IP.
//
// A Provider must be registered with one of the Using* provider options.
// Without UsingResolver or UsingWebResolver the client asks the services in DefaultServices for its public IP.
func New(domain string, options ...ClientOption) (*Client, error) {
	if domain == "" {
		return nil, fmt.Errorf("ddns.New: %w: domain cannot be empty", ErrConfiguration)
	}
	c := &Client{
		logger: logr.Discard(),
		domain: domain,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %w", i, err)
		}
	}

	if c.provider == nil {
		return nil, fmt.Errorf("ddns.New: %w: no DNS provider was registered and there is no default option - use ddns.UsingGoDaddy or similar", ErrConfiguration)
	}
	if c.resolver == nil {
		c.resolver = defaultResolver()
	}

	// dependencies registered after WithLogger or UsingHTTPClient still get them
	c.propagate()
	return c, nil
}

type ClientOption func(*Client) error

// UsingGoDaddy registers the GoDaddy API at basePath (e.g. https://api.godaddy.com/v1) as the DNS provider.
func UsingGoDaddy(apiKey, apiSecret, basePath string) ClientOption {
	return func(c *Client) (err error) {
		if c.provider, err = NewGoDaddy(apiKey, apiSecret, basePath); err != nil {
			return fmt.Errorf("ddns.UsingGoDaddy: error creating GoDaddy DNS provider: %w", err)
		}
		return nil
	}
}

// UsingCloudflare registers Cloudflare as the DNS provider.
// If zoneID is empty, the zone is looked up from the domain name on every call.
func UsingCloudflare(token, zoneID string) ClientOption {
	return func(c *Client) (err error) {
		if c.provider, err = newCloudflareProvider(token, zoneID); err != nil {
			return fmt.Errorf("ddns.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

// UsingProvider registers a custom DNS provider.
func UsingProvider(provider Provider) ClientOption {
	return func(c *Client) error {
		if provider == nil {
			return errors.New("ddns.UsingProvider: provider cannot be nil")
		}
		c.provider = provider
		return nil
	}
}

func UsingResolver(resolver Resolver) ClientOption {
	return func(c *Client) error {
		if resolver == nil {
			resolver = defaultResolver()
		}
		c.resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) ClientOption {
	return func(c *Client) (err error) {
		c.resolver, err = NewWebResolver(serviceURL...)
		return err
	}
}

func WithLogger(logger logr.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the HTTP client used by the provider and resolver.
// Use it to bound request durations; by default requests wait indefinitely.
func UsingHTTPClient(httpclient *http.Client) ClientOption {
	return func(c *Client) error {
		c.httpClient = httpclient
		return nil
	}
}

// WithMetrics records the outcome of every cycle in m.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

func (c *Client) propagate() {
	type setLogger interface {
		SetLogger(logr.Logger)
	}
	type setHTTPClient interface {
		SetHTTPClient(*http.Client)
	}

	if l, ok := c.provider.(setLogger); ok {
		l.SetLogger(c.logger.WithName("provider"))
	}
	if l, ok := c.resolver.(setLogger); ok {
		l.SetLogger(c.logger.WithName("resolver"))
	}

	if c.httpClient == nil {
		return
	}
	if hc, ok := c.provider.(setHTTPClient); ok {
		hc.SetHTTPClient(c.httpClient)
	}
	if hc, ok := c.resolver.(setHTTPClient); ok {
		hc.SetHTTPClient(c.httpClient)
	}
}

// DDNSClient runs one reconciliation cycle per call.
type DDNSClient interface {
	RunDDNS(ctx context.Context) (Outcome, error)
}

// Client reconciles one A-record.
//
// A Client is not safe for concurrent use; cycles must run one at a time.
type Client struct {
	resolver   Resolver
	provider   Provider
	logger     logr.Logger
	httpClient *http.Client
	metrics    *Metrics
	domain     string

	// record is nil until the first successful read from the provider.
	// Afterwards only its Data field changes, and only after a confirmed update.
	record *Record
}

// CachedRecord returns the last value the provider is known to hold.
func (c *Client) CachedRecord() (Record, bool) {
	if c.record == nil {
		return Record{}, false
	}
	return *c.record, true
}

// RunDDNS performs one reconciliation cycle.
//
// The provider record is read only when nothing is cached yet.
// The record is written only when the public IP differs from the cached value,
// compared as exact strings.
func (c *Client) RunDDNS(ctx context.Context) (o Outcome, err error) {
	defer func() { c.metrics.observe(o, err) }()

	if c.record == nil {
		rec, err := c.provider.GetRecord(ctx, c.domain)
		if err != nil {
			return failed(), fmt.Errorf("error getting current record for %s: %w", c.domain, err)
		}
		c.logger.V(1).Info("cached current record", "domain", c.domain, "data", rec.Data)
		c.record = &rec
	}

	addr, err := c.resolver.Resolve(ctx)
	if err == nil && !addr.IsValid() {
		err = errors.New("resolver returned no address")
	}
	if err != nil {
		if !errors.Is(err, ErrUnableToResolvePublicIP) {
			err = fmt.Errorf("%w: %w", ErrUnableToResolvePublicIP, err)
		}
		return failed(), fmt.Errorf("error getting public IP: %w", err)
	}
	c.logger.V(1).Info("got public IP", "ip", addr)

	if c.record == nil {
		return failed(), fmt.Errorf("%w: current record should be set", ErrUnexpected)
	}

	current, ip := c.record.Data, addr.String()
	if ip == current {
		c.logger.V(1).Info("DNS record is up to date", "domain", c.domain, "ip", ip)
		return Outcome{Status: NoChangeNeeded, Old: current, New: current}, nil
	}

	c.logger.Info("DNS record out of date", "domain", c.domain, "record", current, "ip", ip)
	if err := c.provider.UpdateRecord(ctx, c.domain, addr); err != nil {
		return failed(), fmt.Errorf("error updating %s to %s: %w", c.domain, ip, err)
	}
	c.record.Data = ip
	c.logger.Info("updated DNS record", "domain", c.domain, "ip", ip)

	return Outcome{Status: Updated, Old: current, New: ip}, nil
}

// Status is the result of a reconciliation cycle.
type Status int

const (
	Failed Status = iota
	NoChangeNeeded
	Updated
)

func (s Status) String() string {
	switch s {
	case NoChangeNeeded:
		return "no_change"
	case Updated:
		return "updated"
	default:
		return "failed"
	}
}

// Outcome describes what a cycle did.
// Old and New are only set for NoChangeNeeded and Updated.
type Outcome struct {
	Status Status
	Old    string
	New    string
}

func (o Outcome) String() string {
	switch o.Status {
	case Updated:
		return fmt.Sprintf("updated %s -> %s", o.Old, o.New)
	case NoChangeNeeded:
		return fmt.Sprintf("no change needed (%s)", o.Old)
	}
	return "failed"
}

func failed() Outcome { return Outcome{Status: Failed} }
