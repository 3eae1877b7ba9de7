package ddns

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-cleanhttp"
)

// DefaultServices are the IP echo services used when no resolver is configured.
// They all return the IP of the client connection as plain text.
var DefaultServices = []string{
	"https://checkip.amazonaws.com/",
	"https://icanhazip.com/", // operated by Cloudflare since ~2021
	"https://ipinfo.io/ip",
}

var defaultHTTPClient = cleanhttp.DefaultPooledClient()

func defaultResolver() Resolver {
	wr, err := NewWebResolver(DefaultServices...)
	if err != nil {
		panic(err) // DefaultServices are constants
	}
	return wr
}

// NewWebResolver constructs a resolver which uses external web services to look up a "public" IP address.
//
// Each serviceURL must speak http and return status "200 OK",
// with a valid IPv4 or IPv6 address as the first line of the response body.
// All other responses are considered an error.
//
// If only one serviceURL is given,
// then the resolver will simply return the response.
// If multiple are given,
// then the resolver will request from up to three of them and only return successfully if two non-error responses agreed on the IP.
// This approach is taken due to the sensitive nature of having control over DNS records.
//
// The recommended approach is to run your own service over https.
func NewWebResolver(serviceURL ...string) (*WebResolver, error) {
	if len(serviceURL) == 0 {
		return nil, fmt.Errorf("%w: no external IP lookup services were provided", ErrConfiguration)
	}
	var URLs []*url.URL
	for _, u := range serviceURL {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("%w: error parsing URL: %w", ErrConfiguration, err)
		}
		URLs = append(URLs, pu)
	}
	return &WebResolver{URLs: URLs}, nil
}

// WebResolver implements ddns.Resolver using IP echo services.
type WebResolver struct {
	URLs       []*url.URL
	HTTPClient *http.Client // defaults to a pooled client without timeout

	logger logr.Logger
}

func (wr *WebResolver) SetLogger(logger logr.Logger) { wr.logger = logger }

func (wr *WebResolver) SetHTTPClient(httpclient *http.Client) { wr.HTTPClient = httpclient }

// Resolve implements ddns.Resolver.
func (wr *WebResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	// Asking several services has a number of benefits:
	// - faster responses
	// - less likely to be affected by service downtime
	// - safer from wrong results in the event of accidental caching
	// - safer from a single compromised service returning malicious results (assuming all supplied services are https)
	if len(wr.URLs) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: no external IP lookup services were provided", ErrUnableToResolvePublicIP)
	}
	if len(wr.URLs) == 1 {
		ip, err := wr.lookup(ctx, wr.URLs[0])
		if err != nil {
			return netip.Addr{}, fmt.Errorf("%w: %w", ErrUnableToResolvePublicIP, err)
		}
		return ip, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	useCount := min(3, len(wr.URLs))
	// buffered so that lookups still in flight after an early return never block
	results := make(chan result, useCount)
	for _, u := range wr.URLs[:useCount] {
		u := u
		go func() {
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			results <- r
		}()
	}

	var errs []error
	var answers []netip.Addr
	for i := 0; i < useCount; i++ {
		r := <-results
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		for _, a := range answers {
			if a == r.addr {
				return a, nil
			}
		}
		answers = append(answers, r.addr)
	}
	if len(answers) < 2 {
		return netip.Addr{}, fmt.Errorf("%w: not enough services responded without errors: %w", ErrUnableToResolvePublicIP, errors.Join(errs...))
	}
	return netip.Addr{}, fmt.Errorf("%w: IP services did not agree on our IP: %v", ErrUnableToResolvePublicIP, answers)
}

func (wr *WebResolver) lookup(ctx context.Context, url *url.URL) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.HTTPClient
	if httpclient == nil {
		httpclient = defaultHTTPClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("%s returned %s", url.Host, resp.Status)
	}

	scanner := bufio.NewReader(resp.Body)
	ipstring, _ := scanner.ReadString('\n')
	ip, err := netip.ParseAddr(strings.TrimSpace(ipstring))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from %s response body: %w", url.Host, err)
	}
	wr.logger.V(1).Info("service answered", "service", url.Host, "ip", ip)
	return ip, nil
}
